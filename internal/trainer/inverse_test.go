package trainer

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"denoise-forge/internal/artifact"
	"denoise-forge/internal/dataset"
	"denoise-forge/internal/compute"
	"denoise-forge/internal/model"
)

// variedSet builds patches with at least two directions of variation, so
// a rank-2 PCA is well defined.
func variedSet(t *testing.T, n int) *dataset.Set {
	t.Helper()
	patches := make([]dataset.Patch, n)
	for i := range patches {
		pix := make([]float32, 4)
		for j := range pix {
			pix[j] = 0.5 + 0.1*float32(i%3) - 0.05*float32((i+j)%4)
		}
		patches[i] = dataset.Patch{H: 2, W: 2, C: 1, Pix: pix}
	}
	set, err := dataset.NewSet(patches)
	require.NoError(t, err)
	return set
}

func TestRunInverseValidation(t *testing.T) {
	b := compute.New()
	set := lineSet(t)
	den := model.NewMLPDenoiser(1, 2, 2, nil, b)

	_, err := RunInverse(context.Background(), set, set, den, InverseConfig{
		NSample: 0, Epochs: 1, BatchSize: 2,
	}, b)
	assert.Error(t, err)

	_, err = RunInverse(context.Background(), set, set, den, InverseConfig{
		NSample: 1, Epochs: 1, BatchSize: 2, Loss: "huber",
		ResultsDir: t.TempDir(),
	}, b)
	assert.Error(t, err)
}

func TestRunInverseSmoke(t *testing.T) {
	b := compute.New()
	train := variedSet(t, 8)
	test := constantSet(t, 4, 2, 2, 0.5)
	den := model.NewMLPDenoiser(1, 2, 2, nil, b)
	results := t.TempDir()

	res, err := RunInverse(context.Background(), train, test, den, InverseConfig{
		NSample:    2,
		Loss:       "MSE",
		Epochs:     1,
		BatchSize:  4,
		LR:         0.001,
		DecayLR:    0.99,
		NAvg:       1,
		MaxT:       2,
		Seed:       5,
		ResultsDir: results,
	}, b)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(results, "2_MSE_im2"), res.RunPath)
	assert.False(t, math.IsNaN(res.PCA.MSE))
	assert.False(t, math.IsNaN(res.PCAPrior.MSE))
	assert.False(t, math.IsNaN(res.Trained.MSE))
	require.Len(t, res.Trained.Recon, test.Len()*test.SampleSize())

	_, err = os.Stat(res.RunPath + ".log")
	assert.NoError(t, err)

	// One artifact file with all five arrays, in write order: three n×D
	// reconstructions, then both k×D projection matrices.
	mats, err := artifact.Load(res.RunPath+".npy", 5)
	require.NoError(t, err)
	for k := 0; k < 3; k++ {
		rows, cols := mats[k].Dims()
		assert.Equal(t, test.Len(), rows, "section %d", k)
		assert.Equal(t, test.SampleSize(), cols, "section %d", k)
	}
	for k := 3; k < 5; k++ {
		rows, cols := mats[k].Dims()
		assert.Equal(t, 2, rows, "section %d", k)
		assert.Equal(t, 4, cols, "section %d", k)
	}
}

func TestRunInverseTrainsFromRandomInit(t *testing.T) {
	b := compute.New()
	train := variedSet(t, 8)
	test := constantSet(t, 4, 2, 2, 0.5)
	den := model.NewMLPDenoiser(1, 2, 2, nil, b)

	// With a vanishing learning rate the trained matrix stays at its
	// starting point, which must be the solver's random initialization,
	// not the PCA baseline handed to the zero-shot evaluation.
	res, err := RunInverse(context.Background(), train, test, den, InverseConfig{
		NSample:    2,
		Loss:       "MSE",
		Epochs:     1,
		BatchSize:  4,
		LR:         1e-12,
		DecayLR:    1.0,
		NAvg:       1,
		MaxT:       2,
		Seed:       5,
		ResultsDir: t.TempDir(),
	}, b)
	require.NoError(t, err)

	mats, err := artifact.Load(res.RunPath+".npy", 5)
	require.NoError(t, err)
	pcaMtx, trainedMtx := mats[3], mats[4]

	var diff float64
	rows, cols := pcaMtx.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			d := pcaMtx.At(i, j) - trainedMtx.At(i, j)
			diff += d * d
		}
	}
	assert.Greater(t, diff, 1e-3, "trained projection should not start from the PCA matrix")
}
