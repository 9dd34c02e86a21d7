package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"denoise-forge/internal/compute"
	"denoise-forge/internal/config"
	"denoise-forge/internal/dataset"
	"denoise-forge/internal/model"
	"denoise-forge/internal/trainer"
)

// Evaluation uses a fixed held-out geometry: half-scale patches of this size.
const (
	testPatchSize = 128
	testScale     = 0.5
)

func main() {
	cfgPath := flag.String("config", "configs/denoise.yaml", "Path to YAML config")
	experiment := flag.String("experiment", "", "Override experiment (denoise or inverse)")
	dataDir := flag.String("data-dir", "", "Override training image directory")
	testDir := flag.String("test-dir", "", "Override test image directory")
	epochs := flag.Int("epochs", 0, "Number of training epochs")
	batchSize := flag.Int("batch-size", 0, "Batch size")
	nSample := flag.Int("n-sample", 0, "Linear measurements for the inverse experiment")
	lossName := flag.String("loss", "", "Training loss (MSE or SSIM)")
	seed := flag.Int64("seed", 0, "PRNG seed")
	resultsDir := flag.String("results-dir", "", "Run output directory")

	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	cfg.ApplyOverrides(config.Overrides{
		Experiment: *experiment,
		DataDir:    *dataDir,
		TestDir:    *testDir,
		Epochs:     *epochs,
		BatchSize:  *batchSize,
		NSample:    *nSample,
		Loss:       *lossName,
		Seed:       *seed,
		ResultsDir: *resultsDir,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid config: %v", err)
	}

	train, err := dataset.Load(cfg.DataDir, cfg.Scales, cfg.PatchSize, cfg.PatchSize, dataset.TrainMinMean)
	if err != nil {
		log.Fatalf("load training set: %v", err)
	}
	log.Printf("train dir=%s patches=%d", cfg.DataDir, train.Len())

	testDirPath := cfg.TestDir
	if testDirPath == "" {
		testDirPath = cfg.DataDir
	}
	test, err := dataset.Load(testDirPath, []float64{testScale}, testPatchSize, testPatchSize, 0)
	if err != nil {
		log.Fatalf("load test set: %v", err)
	}
	log.Printf("test dir=%s patches=%d", testDirPath, test.Len())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	b := compute.New()
	c, h, w := train.Dims()
	den := model.NewCNNDenoiser(c, 64, 5, b)

	denoiseCfg := trainer.DenoiseConfig{
		NoiseLow:   cfg.TrainNoise[0],
		NoiseHigh:  cfg.TrainNoise[1],
		TestNoise:  cfg.TestNoise,
		Epochs:     cfg.Epochs,
		BatchSize:  cfg.BatchSize,
		LR:         cfg.LR,
		DecayLR:    cfg.DecayLR,
		PowNoise:   cfg.PowNoise,
		Verbose:    cfg.Verbose,
		NumWorkers: cfg.NumWorkers,
		Seed:       cfg.Seed,
		Log:        slog.Default(),
	}

	switch cfg.Experiment {
	case "denoise":
		history, err := trainer.TrainDenoiser(ctx, train, test, den, denoiseCfg, b)
		if err != nil {
			log.Fatalf("training failed: %v", err)
		}
		final := history[len(history)-1]
		log.Printf("done train_loss=%.6f test_in=%.6f test_out=%.6f",
			final.TrainLoss, final.TestIn, final.TestOut)

	case "inverse":
		// The reconstruction loop needs a denoiser prior trained on the
		// same patch distribution at matching dimensions.
		priorTest, err := dataset.Load(testDirPath, []float64{testScale}, h, w, 0)
		if err != nil {
			log.Fatalf("load prior test set: %v", err)
		}
		if _, err := trainer.TrainDenoiser(ctx, train, priorTest, den, denoiseCfg, b); err != nil {
			log.Fatalf("prior training failed: %v", err)
		}

		result, err := trainer.RunInverse(ctx, train, priorTest, den, trainer.InverseConfig{
			NSample:    cfg.NSample,
			Loss:       cfg.Loss,
			Epochs:     cfg.Epochs,
			BatchSize:  cfg.BatchSize,
			LR:         cfg.LR,
			DecayLR:    cfg.DecayLR,
			NAvg:       cfg.NAvg,
			MaxT:       cfg.MaxT,
			NumWorkers: cfg.NumWorkers,
			Seed:       cfg.Seed,
			ResultsDir: cfg.ResultsDir,
			Verbose:    cfg.Verbose,
		}, b)
		if err != nil {
			log.Fatalf("inverse run failed: %v", err)
		}
		log.Printf("done run=%s pca_mse=%.6f trained_mse=%.6f",
			result.RunPath, result.PCA.MSE, result.Trained.MSE)
	}
}
