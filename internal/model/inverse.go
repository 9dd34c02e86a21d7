package model

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/born/nn"
	"github.com/born-ml/born/tensor"
	"gonum.org/v1/gonum/mat"

	"denoise-forge/internal/compute"
	"denoise-forge/internal/noise"
)

// LinearInverse reconstructs images from k linear measurements using a
// denoiser prior. It owns a k×D projection matrix M (D = C·H·W, rows of M
// measure channel-major flattened images) and a fixed denoiser. The
// projection is the only trainable parameter; the same architecture
// evaluates a fixed PCA matrix (via Assign) and a gradient-trained one.
//
// Reconstruct runs a stochastic coarse-to-fine iteration: start from noise,
// take partial denoising steps, re-impose the measurement through
// Mᵀ(m − M·f(y)), and inject fresh Gaussian noise whose amplitude decays
// with the estimated residual level. Every call draws fresh noise.
type LinearInverse struct {
	k       int
	c, h, w int

	proj     *nn.Parameter[compute.Backend]
	denoiser Denoiser
	backend  compute.Backend
	rng      *rand.Rand

	// Iteration knobs.
	MaxT     int     // step cap, default 60
	StepSize float32 // fraction of the denoising direction applied per step
	Beta     float32 // controls how much injected noise undershoots the step
	Sigma0   float64 // standard deviation of the starting iterate
	SigmaEnd float64 // residual level at which iteration stops
}

// NewLinearInverse builds a solver with k measurements over c×h×w images.
// The projection starts as a random matrix scaled by 1/sqrt(D); rng drives
// both initialization and the stochastic reconstruction steps.
func NewLinearInverse(k, c, h, w int, den Denoiser, rng *rand.Rand, b compute.Backend) *LinearInverse {
	d := c * h * w
	data := make([]float32, k*d)
	scale := 1.0 / math.Sqrt(float64(d))
	for i := range data {
		data[i] = float32(rng.NormFloat64() * scale)
	}
	proj := nn.NewParameter("projection", compute.FromSlice(data, tensor.Shape{k, d}, b))

	return &LinearInverse{
		k: k, c: c, h: h, w: w,
		proj:     proj,
		denoiser: den,
		backend:  b,
		rng:      rng,
		MaxT:     60,
		StepSize: 0.1,
		Beta:     0.5,
		Sigma0:   0.3,
		SigmaEnd: 0.01,
	}
}

// Assign substitutes a fixed k×D matrix for the projection, e.g. the PCA
// baseline. Returns the solver for chaining.
func (s *LinearInverse) Assign(m *mat.Dense) *LinearInverse {
	rows, cols := m.Dims()
	d := s.c * s.h * s.w
	if rows != s.k || cols != d {
		panic(fmt.Sprintf("model: assign %dx%d matrix to %dx%d projection", rows, cols, s.k, d))
	}
	data := s.proj.Tensor().Raw().AsFloat32()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			data[i*cols+j] = float32(m.At(i, j))
		}
	}
	return s
}

// Matrix returns a copy of the current projection as a k×D dense matrix.
func (s *LinearInverse) Matrix() *mat.Dense {
	d := s.c * s.h * s.w
	data := s.proj.Tensor().Data()
	out := mat.NewDense(s.k, d, nil)
	for i := 0; i < s.k; i++ {
		for j := 0; j < d; j++ {
			out.Set(i, j, float64(data[i*d+j]))
		}
	}
	return out
}

// Measure projects a batch onto the measurement space: [N,C,H,W] → [N,k].
func (s *LinearInverse) Measure(x *compute.Tensor) *compute.Tensor {
	n := x.Shape()[0]
	return x.Reshape(n, s.c*s.h*s.w).MatMul(s.proj.Tensor().T())
}

// Reconstruct recovers a batch from its own measurements. The input is
// only used through Measure; the iterate starts from noise.
func (s *LinearInverse) Reconstruct(x *compute.Tensor) *compute.Tensor {
	n := x.Shape()[0]
	d := s.c * s.h * s.w
	shape := tensor.Shape{n, s.c, s.h, s.w}

	m := s.Measure(x)

	start := noise.Gaussian(shape, s.Sigma0, s.rng, s.backend)
	y := start.Add(compute.Constant(shape, 0.5, s.backend))

	for t := 0; t < s.MaxT; t++ {
		res := s.denoiser.Forward(y)
		sigma := rms(res.Data())

		// Partial step toward the denoised, measurement-consistent image.
		f := y.Sub(res)
		fv := f.Reshape(n, d)
		proj := s.proj.Tensor()
		corr := m.Sub(fv.MatMul(proj.T())).MatMul(proj)
		target := fv.Add(corr).Reshape(n, s.c, s.h, s.w)

		dir := target.Sub(y)
		step := compute.Constant(shape, s.StepSize, s.backend)
		y = y.Add(dir.Mul(step))

		// Inject decaying noise to keep the iterate on the denoiser's
		// training manifold.
		gamma := s.gamma(sigma)
		if gamma > 0 {
			y = y.Add(noise.Gaussian(shape, gamma, s.rng, s.backend))
		}

		if sigma <= s.SigmaEnd {
			break
		}
	}
	return y
}

// Parameters exposes the projection as the solver's only trainable weight.
func (s *LinearInverse) Parameters() []*nn.Parameter[compute.Backend] {
	return []*nn.Parameter[compute.Backend]{s.proj}
}

// gamma is the injected-noise amplitude for the current residual level.
func (s *LinearInverse) gamma(sigma float64) float64 {
	h := float64(s.StepSize)
	b := float64(s.Beta)
	v := (1-b*h)*(1-b*h) - (1-h)*(1-h)
	if v <= 0 {
		return 0
	}
	return math.Sqrt(v) * sigma
}

func rms(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum / float64(len(v)))
}
