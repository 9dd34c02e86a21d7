package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/born-ml/born/optim"
	"github.com/schollz/progressbar/v3"
	"gonum.org/v1/gonum/mat"

	"denoise-forge/internal/artifact"
	"denoise-forge/internal/compute"
	"denoise-forge/internal/dataset"
	"denoise-forge/internal/model"
)

// InverseConfig captures the knobs of a linear-inverse experiment: learn a
// k-row measurement matrix whose reconstructions, run through a fixed
// denoiser prior, beat the PCA subspace of the same rank.
type InverseConfig struct {
	NSample    int    // number of linear measurements k
	Loss       string // "MSE" or "SSIM"
	Epochs     int
	BatchSize  int
	LR         float64
	DecayLR    float64
	NAvg       int // reconstructions averaged per evaluation
	MaxT       int // iteration cap of the reconstruction loop
	NumWorkers int
	Seed       int64
	ResultsDir string
	Verbose    bool
}

// InverseResult summarizes one run: the closed-form PCA baseline, the PCA
// matrix pushed through the denoiser prior, and the trained projection.
type InverseResult struct {
	// RunPath is the extension-less base path of the run's outputs:
	// RunPath+".log" and RunPath+".npy".
	RunPath  string
	PCA      EvalResult
	PCAPrior EvalResult
	Trained  EvalResult
}

// RunInverse executes the full linear-inverse experiment. It scores the PCA
// baseline, then trains the projection of a fresh solver with Adam and
// exponential decay, evaluating by averaged reconstruction after every
// epoch. The run writes two files under ResultsDir, named after the sample
// count and loss: `<run>.log` and `<run>.npy` with the five arrays of
// saveArtifacts.
func RunInverse(ctx context.Context, train, test *dataset.Set, den model.Denoiser, cfg InverseConfig, b compute.Backend) (*InverseResult, error) {
	if cfg.NSample <= 0 {
		return nil, errors.New("trainer: n_sample must be > 0")
	}
	if cfg.Epochs <= 0 {
		return nil, errors.New("trainer: epochs must be > 0")
	}
	if cfg.BatchSize <= 0 {
		return nil, errors.New("trainer: batch size must be > 0")
	}
	if cfg.NAvg <= 0 {
		cfg.NAvg = 1
	}
	if cfg.NumWorkers <= 0 {
		cfg.NumWorkers = 1
	}
	loss, err := ParseLoss(cfg.Loss)
	if err != nil {
		return nil, err
	}

	c, h, w := train.Dims()
	if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	base := filepath.Join(cfg.ResultsDir, fmt.Sprintf("%d_%s_im%d", cfg.NSample, loss.Name(), h))

	logFile, err := os.Create(base + ".log")
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	defer logFile.Close()
	logger := slog.New(slog.NewTextHandler(io.MultiWriter(os.Stdout, logFile), nil))

	logger.Info("run",
		"n_sample", cfg.NSample,
		"loss", loss.Name(),
		"image", fmt.Sprintf("%dx%dx%d", c, h, w),
		"train", train.Len(),
		"test", test.Len(),
	)

	result := &InverseResult{RunPath: base}

	// Closed-form PCA baseline.
	pcaMtx, err := PCAProjection(train, cfg.NSample)
	if err != nil {
		return nil, err
	}
	result.PCA = LinearReconstruct(test, pcaMtx)
	logger.Info("pca", "mse", result.PCA.MSE, "ssim", result.PCA.SSIM, "psnr", result.PCA.PSNR)

	rng := newRand(cfg.Seed)

	// Zero-shot: the PCA matrix reconstructed through the denoiser prior,
	// on its own fixed-projection solver. The trained solver below starts
	// from its random initialization, not from the PCA matrix.
	pcaSolver := model.NewLinearInverse(cfg.NSample, c, h, w, den, rng, b).Assign(pcaMtx)
	if cfg.MaxT > 0 {
		pcaSolver.MaxT = cfg.MaxT
	}
	result.PCAPrior = AverageEval(test, pcaSolver, cfg.NAvg, b)
	logger.Info("pca+prior", "mse", result.PCAPrior.MSE, "ssim", result.PCAPrior.SSIM, "psnr", result.PCAPrior.PSNR)

	solver := model.NewLinearInverse(cfg.NSample, c, h, w, den, rng, b)
	if cfg.MaxT > 0 {
		solver.MaxT = cfg.MaxT
	}
	opt := optim.NewAdam(solver.Parameters(), optim.AdamConfig{
		LR:    float32(cfg.LR),
		Betas: [2]float32{0.9, 0.999},
		Eps:   1e-8,
	}, b)
	sched := NewExponentialLR(opt, float32(cfg.DecayLR))
	loader := dataset.NewLoader(train, cfg.BatchSize, cfg.NumWorkers, rng)
	per := train.SampleSize()

	b.Tape().StartRecording()
	defer b.Tape().StopRecording()

	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		var bar *progressbar.ProgressBar
		if cfg.Verbose {
			bar = progressbar.NewOptions(loader.Batches(),
				progressbar.OptionSetDescription(fmt.Sprintf("epoch %d/%d", epoch, cfg.Epochs)),
				progressbar.OptionSetWriter(os.Stderr),
			)
		}

		var epochLoss float64
		batches := 0
		for batch := range loader.Epoch(ctx) {
			opt.ZeroGrad()
			clean := compute.FromSlice(batch.Data, train.Shape(batch.N), b)
			recon := solver.Reconstruct(clean)

			epochLoss += loss.Value(recon.Data(), batch.Data, batch.N, per)
			grad := loss.Grad(recon.Data(), batch.Data, batch.N, per)

			grads := b.Tape().Backward(compute.GradSeed(recon.Shape(), grad, b), b)
			opt.Step(grads)
			b.Tape().Clear()
			batches++
			if bar != nil {
				bar.Add(1)
			}
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		if batches == 0 {
			return result, errors.New("trainer: empty training set")
		}
		if bar != nil {
			bar.Finish()
		}

		eval := AverageEval(test, solver, cfg.NAvg, b)
		logger.Info("epoch",
			"epoch", epoch,
			"train_loss", epochLoss/float64(batches),
			"mse", eval.MSE,
			"ssim", eval.SSIM,
			"psnr", eval.PSNR,
			"lr", sched.LR(),
		)
		sched.Step()
	}

	result.Trained = AverageEval(test, solver, cfg.NAvg, b)

	if err := saveArtifacts(base+".npy", test.Len(), pcaMtx, solver, result); err != nil {
		return result, err
	}
	logger.Info("done",
		"mse", result.Trained.MSE,
		"ssim", result.Trained.SSIM,
		"psnr", result.Trained.PSNR,
	)
	return result, nil
}

// saveArtifacts appends the run's five arrays into one file, in a fixed
// order: PCA reconstruction, PCA-through-prior reconstruction, trained
// reconstruction, PCA matrix, trained matrix.
func saveArtifacts(path string, n int, pcaMtx *mat.Dense, solver *model.LinearInverse, r *InverseResult) error {
	mats := make([]*mat.Dense, 0, 5)
	for _, recon := range [][]float32{r.PCA.Recon, r.PCAPrior.Recon, r.Trained.Recon} {
		m, err := artifact.SamplesMatrix(recon, n)
		if err != nil {
			return err
		}
		mats = append(mats, m)
	}
	mats = append(mats, pcaMtx, solver.Matrix())
	return artifact.Save(path, mats)
}
