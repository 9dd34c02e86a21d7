package trainer

import (
	"fmt"

	"denoise-forge/internal/metrics"
)

// Loss pairs a scalar training objective with the gradient that seeds the
// backward pass. Values and gradients are computed on the host from raw
// prediction and target buffers; per is the element count of one sample.
type Loss interface {
	Name() string
	Value(pred, target []float32, batch, per int) float64
	Grad(pred, target []float32, batch, per int) []float32
}

// ParseLoss maps a config string to a loss. Accepts "MSE" and "SSIM".
func ParseLoss(name string) (Loss, error) {
	switch name {
	case "MSE", "mse", "":
		return SumMSE{}, nil
	case "SSIM", "ssim":
		return InverseSSIM{}, nil
	default:
		return nil, fmt.Errorf("trainer: unknown loss %q", name)
	}
}

// SumMSE is the squared error summed over all elements and divided by the
// batch size, so per-pixel error scales with image size.
type SumMSE struct{}

func (SumMSE) Name() string { return "MSE" }

func (SumMSE) Value(pred, target []float32, batch, _ int) float64 {
	var sum float64
	for i, p := range pred {
		d := float64(p) - float64(target[i])
		sum += d * d
	}
	return sum / float64(batch)
}

func (SumMSE) Grad(pred, target []float32, batch, _ int) []float32 {
	grad := make([]float32, len(pred))
	inv := 2.0 / float32(batch)
	for i, p := range pred {
		grad[i] = (p - target[i]) * inv
	}
	return grad
}

// InverseSSIM is 1 minus the batch-mean structural similarity, a perceptual
// alternative to squared error.
type InverseSSIM struct{}

func (InverseSSIM) Name() string { return "SSIM" }

func (InverseSSIM) Value(pred, target []float32, _, per int) float64 {
	return 1 - metrics.SSIM(target, pred, per)
}

func (InverseSSIM) Grad(pred, target []float32, _, per int) []float32 {
	grad := metrics.SSIMGrad(target, pred, per)
	for i := range grad {
		grad[i] = -grad[i]
	}
	return grad
}
