package trainer

// lrOptimizer is the slice of the optimizer surface the scheduler needs.
// Both optim.SGD and optim.Adam satisfy it.
type lrOptimizer interface {
	GetLR() float32
	SetLR(lr float32)
}

// ExponentialLR multiplies the optimizer's learning rate by a fixed gamma
// once per epoch.
type ExponentialLR struct {
	opt   lrOptimizer
	gamma float32
}

// NewExponentialLR wraps opt with per-epoch decay gamma. Gamma 1 keeps the
// rate constant.
func NewExponentialLR(opt lrOptimizer, gamma float32) *ExponentialLR {
	return &ExponentialLR{opt: opt, gamma: gamma}
}

// Step applies one decay. Call it at the end of each epoch.
func (s *ExponentialLR) Step() {
	s.opt.SetLR(s.opt.GetLR() * s.gamma)
}

// LR reports the current learning rate.
func (s *ExponentialLR) LR() float32 {
	return s.opt.GetLR()
}
