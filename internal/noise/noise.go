// Package noise draws the randomized Gaussian noise that drives
// noise-conditional training. Noise levels are expressed in 8-bit units
// (0..255) and scaled to the [0,1] pixel range on sampling.
package noise

import (
	"math/rand"

	"github.com/born-ml/born/tensor"

	"denoise-forge/internal/compute"
)

// Sampler draws per-sample Gaussian noise with a randomized standard
// deviation. Every sample in a batch gets its own σ, drawn uniformly from
// the integers [Low, High], divided by 255 and optionally squared to bias
// the distribution toward small noise.
type Sampler struct {
	Low  int
	High int
	Pow  bool

	rng *rand.Rand
}

// NewSampler builds a sampler over [low, high] with an injectable random
// source. The rng is the only source of entropy the sampler consumes.
func NewSampler(low, high int, pow bool, rng *rand.Rand) *Sampler {
	if low < 0 || high < low {
		panic("noise: invalid level range")
	}
	return &Sampler{Low: low, High: high, Pow: pow, rng: rng}
}

// Sample returns a tensor of the given shape where sample i holds i.i.d.
// draws from N(0, σ_i²). The leading dimension indexes samples; σ is drawn
// per sample, never per batch.
func (s *Sampler) Sample(shape tensor.Shape, b compute.Backend) *compute.Tensor {
	n := shape[0]
	per := 1
	for _, d := range shape[1:] {
		per *= d
	}

	data := make([]float32, n*per)
	for i := 0; i < n; i++ {
		sd := s.drawSD()
		base := i * per
		for j := 0; j < per; j++ {
			data[base+j] = float32(s.rng.NormFloat64() * sd)
		}
	}
	return compute.FromSlice(data, shape, b)
}

// drawSD picks one standard deviation in [0,1] pixel units.
func (s *Sampler) drawSD() float64 {
	sd := float64(s.Low+s.rng.Intn(s.High-s.Low+1)) / 255.0
	if s.Pow {
		sd = sd * sd
	}
	return sd
}

// Gaussian returns a tensor of i.i.d. N(0, sd²) draws, sd in [0,1] pixel
// units. Used for the fixed-level test corruption and for the stochastic
// steps inside the linear-inverse solver.
func Gaussian(shape tensor.Shape, sd float64, rng *rand.Rand, b compute.Backend) *compute.Tensor {
	total := 1
	for _, d := range shape {
		total *= d
	}
	data := make([]float32, total)
	for i := range data {
		data[i] = float32(rng.NormFloat64() * sd)
	}
	return compute.FromSlice(data, shape, b)
}
