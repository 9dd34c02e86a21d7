package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config captures the runtime knobs for an experiment run.
type Config struct {
	Experiment string `yaml:"experiment"` // "denoise" or "inverse"

	DataDir string `yaml:"data_dir"`
	TestDir string `yaml:"test_dir"`

	Scales    []float64 `yaml:"scales"`
	PatchSize int       `yaml:"patch_size"`

	TrainNoise [2]int `yaml:"train_noise"` // inclusive bounds, in 1/255 units
	TestNoise  int    `yaml:"test_noise"`
	PowNoise   bool   `yaml:"pow_noise"`

	Epochs    int     `yaml:"epochs"`
	BatchSize int     `yaml:"batch_size"`
	LR        float64 `yaml:"lr"`
	DecayLR   float64 `yaml:"decay_lr"`

	NSample int    `yaml:"n_sample"` // linear measurements of the inverse experiment
	Loss    string `yaml:"loss"`
	NAvg    int    `yaml:"n_avg"`
	MaxT    int    `yaml:"max_t"`

	NumWorkers int    `yaml:"num_workers"`
	Seed       int64  `yaml:"seed"`
	Verbose    bool   `yaml:"verbose"`
	ResultsDir string `yaml:"results_dir"`
}

// Overrides captures CLI supplied values.
type Overrides struct {
	Experiment string
	DataDir    string
	TestDir    string
	Epochs     int
	BatchSize  int
	NSample    int
	Loss       string
	Seed       int64
	ResultsDir string
}

// Load reads and validates a Config from YAML. Missing optional keys take
// the experiment defaults.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyOverrides updates cfg using any non-zero override.
func (c *Config) ApplyOverrides(o Overrides) {
	if o.Experiment != "" {
		c.Experiment = o.Experiment
	}
	if o.DataDir != "" {
		c.DataDir = o.DataDir
	}
	if o.TestDir != "" {
		c.TestDir = o.TestDir
	}
	if o.Epochs > 0 {
		c.Epochs = o.Epochs
	}
	if o.BatchSize > 0 {
		c.BatchSize = o.BatchSize
	}
	if o.NSample > 0 {
		c.NSample = o.NSample
	}
	if o.Loss != "" {
		c.Loss = o.Loss
	}
	if o.Seed != 0 {
		c.Seed = o.Seed
	}
	if o.ResultsDir != "" {
		c.ResultsDir = o.ResultsDir
	}
}

func (c *Config) applyDefaults() {
	if len(c.Scales) == 0 {
		c.Scales = []float64{1.0}
	}
	if c.PatchSize == 0 {
		c.PatchSize = 48
	}
	if c.TrainNoise == [2]int{} {
		c.TrainNoise = [2]int{5, 200}
	}
	if c.TestNoise == 0 {
		c.TestNoise = 128
	}
	if c.Epochs == 0 {
		c.Epochs = 50
	}
	if c.BatchSize == 0 {
		c.BatchSize = 128
	}
	if c.LR == 0 {
		c.LR = 0.05
	}
	if c.DecayLR == 0 {
		c.DecayLR = 0.99
	}
	if c.Loss == "" {
		c.Loss = "MSE"
	}
	if c.NAvg == 0 {
		c.NAvg = 5
	}
	if c.MaxT == 0 {
		c.MaxT = 60
	}
	if c.NumWorkers == 0 {
		c.NumWorkers = 4
	}
	if c.ResultsDir == "" {
		c.ResultsDir = "results"
	}
}

// Validate verifies the config is runnable.
func (c *Config) Validate() error {
	if c == nil {
		return errors.New("config is nil")
	}
	switch c.Experiment {
	case "denoise", "inverse":
	case "":
		return errors.New("experiment must be set")
	default:
		return fmt.Errorf("unknown experiment %q", c.Experiment)
	}
	if c.DataDir == "" {
		return errors.New("data_dir must be set")
	}
	if c.PatchSize <= 0 {
		return fmt.Errorf("patch_size must be > 0 (got %d)", c.PatchSize)
	}
	for _, s := range c.Scales {
		if s <= 0 || s > 1 {
			return fmt.Errorf("scales must lie in (0, 1] (got %v)", s)
		}
	}
	if c.TrainNoise[0] < 0 || c.TrainNoise[1] < c.TrainNoise[0] {
		return fmt.Errorf("train_noise must be a non-negative inclusive range (got %v)", c.TrainNoise)
	}
	if c.TestNoise <= 0 {
		return fmt.Errorf("test_noise must be > 0 (got %d)", c.TestNoise)
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be > 0 (got %d)", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch_size must be > 0 (got %d)", c.BatchSize)
	}
	if c.LR <= 0 {
		return fmt.Errorf("lr must be > 0 (got %v)", c.LR)
	}
	if c.DecayLR <= 0 || c.DecayLR > 1 {
		return fmt.Errorf("decay_lr must lie in (0, 1] (got %v)", c.DecayLR)
	}
	if c.Experiment == "inverse" && c.NSample <= 0 {
		return fmt.Errorf("n_sample must be > 0 for the inverse experiment (got %d)", c.NSample)
	}
	if c.NumWorkers <= 0 {
		return fmt.Errorf("num_workers must be > 0 (got %d)", c.NumWorkers)
	}
	return nil
}
