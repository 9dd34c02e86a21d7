package trainer

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"denoise-forge/internal/dataset"
)

// lineSet builds zero-mean samples along a single direction, so rank-1 PCA
// captures them exactly.
func lineSet(t *testing.T) *dataset.Set {
	t.Helper()
	dir := []float32{0.5, 0.5, 0.5, 0.5}
	coeffs := []float32{1, -1, 2, -2}

	patches := make([]dataset.Patch, len(coeffs))
	for i, a := range coeffs {
		pix := make([]float32, len(dir))
		for j, v := range dir {
			pix[j] = a * v
		}
		patches[i] = dataset.Patch{H: 2, W: 2, C: 1, Pix: pix}
	}
	set, err := dataset.NewSet(patches)
	require.NoError(t, err)
	return set
}

func TestPCAProjectionRankOne(t *testing.T) {
	set := lineSet(t)

	proj, err := PCAProjection(set, 1)
	require.NoError(t, err)

	rows, cols := proj.Dims()
	require.Equal(t, 1, rows)
	require.Equal(t, 4, cols)

	// The single component is the (unit) data direction, up to sign.
	var norm float64
	for j := 0; j < cols; j++ {
		norm += proj.At(0, j) * proj.At(0, j)
	}
	assert.InDelta(t, 1.0, norm, 1e-9)
	for j := 1; j < cols; j++ {
		assert.InDelta(t, math.Abs(proj.At(0, 0)), math.Abs(proj.At(0, j)), 1e-9)
	}
}

func TestPCAProjectionBounds(t *testing.T) {
	set := lineSet(t)

	_, err := PCAProjection(set, 0)
	assert.Error(t, err)

	_, err = PCAProjection(set, 5)
	assert.Error(t, err)
}

func TestLinearReconstructExactOnSubspace(t *testing.T) {
	set := lineSet(t)

	proj, err := PCAProjection(set, 1)
	require.NoError(t, err)

	res := LinearReconstruct(set, proj)
	assert.InDelta(t, 0.0, res.MSE, 1e-9)
	assert.True(t, math.IsInf(res.PSNR, 1) || res.PSNR > 80)
	require.Len(t, res.Recon, set.Len()*set.SampleSize())
}

func TestLinearReconstructLossy(t *testing.T) {
	b := constantSet(t, 4, 2, 2, 0.5)

	// A projection orthogonal to the constant direction keeps nothing.
	proj, err := PCAProjection(lineSet(t), 1)
	require.NoError(t, err)
	// Rotate the component so it is orthogonal to all-ones.
	proj.Set(0, 0, 0.70710678)
	proj.Set(0, 1, -0.70710678)
	proj.Set(0, 2, 0)
	proj.Set(0, 3, 0)

	res := LinearReconstruct(b, proj)
	// Reconstruction is zero, so the per-image error is 4·0.25.
	assert.InDelta(t, 1.0, res.MSE, 1e-6)
}
