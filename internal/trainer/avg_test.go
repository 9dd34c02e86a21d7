package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"denoise-forge/internal/compute"
)

// offsetSolver shifts every pixel by a fixed amount, alternating sign
// between calls so averaging over an even count cancels the shift.
type offsetSolver struct {
	b      compute.Backend
	offset float32
	calls  int
}

func (s *offsetSolver) Reconstruct(x *compute.Tensor) *compute.Tensor {
	delta := s.offset
	if s.calls%2 == 1 {
		delta = -s.offset
	}
	s.calls++

	data := x.Data()
	out := make([]float32, len(data))
	for i, v := range data {
		out[i] = v + delta
	}
	return compute.FromSlice(out, x.Shape(), s.b)
}

func TestAverageEvalPerfectReconstruction(t *testing.T) {
	b := compute.New()
	set := constantSet(t, 4, 2, 2, 0.5)

	res := AverageEval(set, &offsetSolver{b: b, offset: 0}, 1, b)
	assert.InDelta(t, 0.0, res.MSE, 1e-10)
	assert.InDelta(t, 1.0, res.SSIM, 1e-6)
	require.Len(t, res.Recon, set.Len()*set.SampleSize())
}

func TestAverageEvalSingleRun(t *testing.T) {
	b := compute.New()
	set := constantSet(t, 4, 2, 2, 0.5)

	res := AverageEval(set, &offsetSolver{b: b, offset: 0.1}, 1, b)

	// One run of the offset solver misses by exactly 0.1 per pixel:
	// per-image squared error is 4·0.01.
	assert.InDelta(t, 0.04, res.MSE, 1e-6)
}

func TestAverageEvalAveragesOutNoise(t *testing.T) {
	b := compute.New()
	set := constantSet(t, 4, 2, 2, 0.5)

	// Two runs with opposite offsets average to the clean image.
	res := AverageEval(set, &offsetSolver{b: b, offset: 0.1}, 2, b)
	assert.InDelta(t, 0.0, res.MSE, 1e-10)
}

func TestAverageEvalClampsCount(t *testing.T) {
	b := compute.New()
	set := constantSet(t, 2, 2, 2, 0.5)

	res := AverageEval(set, &offsetSolver{b: b, offset: 0}, 0, b)
	assert.InDelta(t, 0.0, res.MSE, 1e-10)
}
