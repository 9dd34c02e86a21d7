package trainer

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"denoise-forge/internal/compute"
	"denoise-forge/internal/dataset"
	"denoise-forge/internal/model"
)

// constantSet builds n single-channel patches of one uniform value. A
// residual denoiser for this distribution is a single affine map, so even
// the smallest MLP can fit it exactly.
func constantSet(t *testing.T, n, h, w int, v float32) *dataset.Set {
	t.Helper()
	patches := make([]dataset.Patch, n)
	for i := range patches {
		pix := make([]float32, h*w)
		for j := range pix {
			pix[j] = v
		}
		patches[i] = dataset.Patch{H: h, W: w, C: 1, Pix: pix}
	}
	set, err := dataset.NewSet(patches)
	require.NoError(t, err)
	return set
}

func TestTrainDenoiserValidation(t *testing.T) {
	b := compute.New()
	set := constantSet(t, 4, 2, 2, 0.5)
	mdl := model.NewMLPDenoiser(1, 2, 2, nil, b)

	_, err := TrainDenoiser(context.Background(), set, set, mdl, DenoiseConfig{Epochs: 0, BatchSize: 4}, b)
	assert.Error(t, err)

	_, err = TrainDenoiser(context.Background(), set, set, mdl, DenoiseConfig{Epochs: 1, BatchSize: 0}, b)
	assert.Error(t, err)
}

func TestTrainDenoiserSingleEpoch(t *testing.T) {
	b := compute.New()
	set := constantSet(t, 16, 2, 2, 0.5)
	mdl := model.NewMLPDenoiser(1, 2, 2, nil, b)

	history, err := TrainDenoiser(context.Background(), set, set, mdl, DenoiseConfig{
		NoiseLow:  20,
		NoiseHigh: 100,
		TestNoise: 64,
		Epochs:    1,
		BatchSize: 8,
		LR:        0.1,
		DecayLR:   1.0,
		Seed:      1,
	}, b)
	require.NoError(t, err)
	require.Len(t, history, 1)

	assert.False(t, math.IsNaN(history[0].TrainLoss))
	assert.Greater(t, history[0].TrainLoss, 0.0)
	assert.Greater(t, history[0].TestIn, 0.0)
}

func TestTrainDenoiserLearnsResidual(t *testing.T) {
	if testing.Short() {
		t.Skip("multi-epoch training")
	}
	b := compute.New()
	train := constantSet(t, 64, 2, 2, 0.5)
	test := constantSet(t, 32, 2, 2, 0.5)
	mdl := model.NewMLPDenoiser(1, 2, 2, nil, b)

	history, err := TrainDenoiser(context.Background(), train, test, mdl, DenoiseConfig{
		NoiseLow:  20,
		NoiseHigh: 100,
		TestNoise: 64,
		Epochs:    100,
		BatchSize: 16,
		LR:        0.2,
		DecayLR:   1.0,
		Seed:      7,
	}, b)
	require.NoError(t, err)
	require.Len(t, history, 100)

	first := history[0]
	last := history[len(history)-1]

	// Training reduces the residual prediction error.
	assert.Less(t, last.TrainLoss, first.TrainLoss)

	// A trained denoiser removes most of the injected noise.
	assert.Less(t, last.TestOut, last.TestIn,
		"denoised error should undercut the noisy input error")
	assert.Less(t, last.TestOut, first.TestIn/2)
}

func TestTrainDenoiserTestNoiseLevel(t *testing.T) {
	b := compute.New()
	train := constantSet(t, 8, 4, 4, 0.5)
	test := constantSet(t, 64, 4, 4, 0.5)
	mdl := model.NewMLPDenoiser(1, 4, 4, nil, b)

	// TestIn is the empirical mean square of the injected test noise, so it
	// pins the evaluation level: σ = 128/255 regardless of PowNoise, which
	// biases the training draw only.
	history, err := TrainDenoiser(context.Background(), train, test, mdl, DenoiseConfig{
		NoiseLow:  5,
		NoiseHigh: 200,
		TestNoise: 128,
		PowNoise:  true,
		Epochs:    1,
		BatchSize: 8,
		LR:        1e-6,
		DecayLR:   1.0,
		Seed:      3,
	}, b)
	require.NoError(t, err)
	require.Len(t, history, 1)

	sd := 128.0 / 255.0
	assert.InEpsilon(t, sd*sd, history[0].TestIn, 0.15)
}

func TestTrainDenoiserCancel(t *testing.T) {
	b := compute.New()
	set := constantSet(t, 16, 2, 2, 0.5)
	mdl := model.NewMLPDenoiser(1, 2, 2, nil, b)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := TrainDenoiser(ctx, set, set, mdl, DenoiseConfig{
		NoiseLow: 20, NoiseHigh: 100, TestNoise: 64,
		Epochs: 5, BatchSize: 8, LR: 0.1, DecayLR: 1.0, Seed: 1,
	}, b)
	assert.ErrorIs(t, err, context.Canceled)
}
