package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeOptimizer struct{ lr float32 }

func (f *fakeOptimizer) GetLR() float32   { return f.lr }
func (f *fakeOptimizer) SetLR(lr float32) { f.lr = lr }

func TestExponentialLR(t *testing.T) {
	opt := &fakeOptimizer{lr: 0.05}
	sched := NewExponentialLR(opt, 0.99)

	assert.InDelta(t, 0.05, float64(sched.LR()), 1e-7)

	sched.Step()
	assert.InDelta(t, 0.0495, float64(sched.LR()), 1e-7)

	sched.Step()
	assert.InDelta(t, 0.049005, float64(sched.LR()), 1e-7)
}

func TestExponentialLRIdentity(t *testing.T) {
	opt := &fakeOptimizer{lr: 0.001}
	sched := NewExponentialLR(opt, 1.0)

	for i := 0; i < 10; i++ {
		sched.Step()
	}
	assert.InDelta(t, 0.001, float64(sched.LR()), 1e-9)
}
