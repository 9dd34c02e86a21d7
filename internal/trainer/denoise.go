package trainer

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"github.com/born-ml/born/optim"

	"denoise-forge/internal/compute"
	"denoise-forge/internal/dataset"
	"denoise-forge/internal/metrics"
	"denoise-forge/internal/model"
	"denoise-forge/internal/noise"
)

// DenoiseConfig captures the knobs of the residual-denoiser training run.
type DenoiseConfig struct {
	NoiseLow   int     // inclusive lower bound of the training noise level, in 1/255 units
	NoiseHigh  int     // inclusive upper bound
	TestNoise  int     // fixed evaluation noise level, in 1/255 units
	Epochs     int
	BatchSize  int
	LR         float64 // initial SGD learning rate
	DecayLR    float64 // per-epoch exponential decay factor
	PowNoise   bool    // square the normalized noise level before sampling
	Verbose    bool
	NumWorkers int
	Seed       int64
	Log        *slog.Logger
}

// EpochStats is one row of the training history: the mean training loss and
// the test-set error before and after denoising at the fixed test level.
type EpochStats struct {
	TrainLoss float64
	TestIn    float64
	TestOut   float64
}

// TrainDenoiser fits mdl to predict the noise residual of corrupted patches
// with momentum SGD and exponential learning-rate decay. Each batch draws a
// fresh per-sample noise level from [NoiseLow, NoiseHigh]; the target is the
// injected noise itself, under a mean squared error over all elements.
//
// The returned history has one entry per completed epoch.
func TrainDenoiser(ctx context.Context, train, test *dataset.Set, mdl model.Denoiser, cfg DenoiseConfig, b compute.Backend) ([]EpochStats, error) {
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("trainer: batch size must be > 0")
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	logger := cfg.Log
	if logger == nil {
		logger = slog.Default()
	}

	rng := newRand(cfg.Seed)
	trainNoise := noise.NewSampler(cfg.NoiseLow, cfg.NoiseHigh, cfg.PowNoise, rng)
	// The small-noise bias only shapes the training draw; evaluation always
	// corrupts at exactly TestNoise/255.
	testNoise := noise.NewSampler(cfg.TestNoise, cfg.TestNoise, false, rng)
	loader := dataset.NewLoader(train, cfg.BatchSize, cfg.NumWorkers, rng)

	opt := optim.NewSGD(mdl.Parameters(), optim.SGDConfig{
		LR:       float32(cfg.LR),
		Momentum: 0.9,
	}, b)
	sched := NewExponentialLR(opt, float32(cfg.DecayLR))

	b.Tape().StartRecording()
	defer b.Tape().StopRecording()

	history := make([]EpochStats, 0, cfg.Epochs)
	var window metrics.Window

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		var epochLoss float64
		batches := 0

		for batch := range loader.Epoch(ctx) {
			startData := time.Now()
			shape := train.Shape(batch.N)
			clean := compute.FromSlice(batch.Data, shape, b)
			noiseT := trainNoise.Sample(shape, b)
			dataTime := time.Since(startData)

			startCompute := time.Now()
			opt.ZeroGrad()
			pred := mdl.Forward(clean.Add(noiseT))

			predData := pred.Data()
			target := noiseT.Data()
			loss := metrics.MSE(predData, target)

			grad := make([]float32, len(predData))
			scale := 2 / float32(len(predData))
			for i := range grad {
				grad[i] = (predData[i] - target[i]) * scale
			}

			grads := b.Tape().Backward(compute.GradSeed(pred.Shape(), grad, b), b)
			opt.Step(grads)
			b.Tape().Clear()
			computeTime := time.Since(startCompute)

			window.Record(batch.N, dataTime, computeTime, loss)
			epochLoss += loss
			batches++
		}
		if err := ctx.Err(); err != nil {
			return history, err
		}
		if batches == 0 {
			return history, errors.New("trainer: empty training set")
		}

		testIn, testOut := evalDenoiser(test, mdl, testNoise, b)
		history = append(history, EpochStats{
			TrainLoss: epochLoss / float64(batches),
			TestIn:    testIn,
			TestOut:   testOut,
		})

		if cfg.Verbose {
			snap := window.Snapshot()
			logger.Info("epoch",
				"epoch", epoch,
				"train_loss", history[epoch-1].TrainLoss,
				"test_in", testIn,
				"test_out", testOut,
				"lr", sched.LR(),
				"images_per_sec", snap.ImagesPerSec,
				"compute_ms", snap.AvgComputeMS,
			)
		}
		sched.Step()
	}

	return history, nil
}

// newRand seeds a generator, falling back to the wall clock for seed 0.
func newRand(seed int64) *rand.Rand {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return rand.New(rand.NewSource(seed))
}

// evalDenoiser measures test-set MSE before and after denoising at a fixed
// noise level, with tape recording suspended for the duration.
func evalDenoiser(test *dataset.Set, mdl model.Denoiser, sampler *noise.Sampler, b compute.Backend) (lossIn, lossOut float64) {
	wasRecording := b.Tape().IsRecording()
	if wasRecording {
		b.Tape().StopRecording()
		defer b.Tape().StartRecording()
	}

	clean := test.Tensor(b)
	noisy := clean.Add(sampler.Sample(test.Shape(test.Len()), b))
	denoised := noisy.Sub(mdl.Forward(noisy))

	lossIn = metrics.MSE(noisy.Data(), clean.Data())
	lossOut = metrics.MSE(denoised.Data(), clean.Data())
	return lossIn, lossOut
}
