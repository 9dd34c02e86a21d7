// Package dataset loads image directories into stacked patch collections
// and serves them as shuffled training batches.
package dataset

import (
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/born-ml/born/tensor"

	"denoise-forge/internal/compute"
)

// TrainMinMean is the default brightness floor for training patches.
const TrainMinMean = 0.05

// Set is an immutable stack of same-sized patches. Pixel data is held in
// CHW order per sample so batches map directly onto [N,C,H,W] tensors.
type Set struct {
	n       int
	c, h, w int
	data    []float32
}

// NewSet stacks patches into a set. All patches must share one size.
func NewSet(patches []Patch) (*Set, error) {
	if len(patches) == 0 {
		return nil, fmt.Errorf("dataset: no patches to stack")
	}
	h, w, c := patches[0].H, patches[0].W, patches[0].C
	per := c * h * w
	data := make([]float32, len(patches)*per)
	for i, p := range patches {
		if p.H != h || p.W != w || p.C != c {
			return nil, fmt.Errorf("dataset: patch %d has size %dx%dx%d, want %dx%dx%d",
				i, p.H, p.W, p.C, h, w, c)
		}
		toCHW(p, data[i*per:(i+1)*per])
	}
	return &Set{n: len(patches), c: c, h: h, w: w, data: data}, nil
}

// toCHW reorders one HWC patch into channel-major layout.
func toCHW(p Patch, dst []float32) {
	plane := p.H * p.W
	for y := 0; y < p.H; y++ {
		for x := 0; x < p.W; x++ {
			base := (y*p.W + x) * p.C
			for ch := 0; ch < p.C; ch++ {
				dst[ch*plane+y*p.W+x] = p.Pix[base+ch]
			}
		}
	}
}

// Len returns the number of samples.
func (s *Set) Len() int { return s.n }

// Dims returns the per-sample channel, height and width.
func (s *Set) Dims() (c, h, w int) { return s.c, s.h, s.w }

// SampleSize returns the flattened length of one sample.
func (s *Set) SampleSize() int { return s.c * s.h * s.w }

// At returns the CHW pixel data of sample i. The slice aliases the set's
// storage and must not be modified.
func (s *Set) At(i int) []float32 {
	per := s.SampleSize()
	return s.data[i*per : (i+1)*per]
}

// Shape returns the [n, C, H, W] tensor shape for n samples of this set.
func (s *Set) Shape(n int) tensor.Shape {
	return tensor.Shape{n, s.c, s.h, s.w}
}

// Tensor materializes the whole set as one [N,C,H,W] tensor.
func (s *Set) Tensor(b compute.Backend) *compute.Tensor {
	data := make([]float32, len(s.data))
	copy(data, s.data)
	return compute.FromSlice(data, s.Shape(s.n), b)
}

// Load walks dir for image files, extracts multi-scale patches and keeps
// those whose mean intensity is at least minMean. Files that fail to decode
// or do not carry three channels are silently skipped, mirroring the
// research-grade contract of the corpus layout.
func Load(dir string, scales []float64, ph, pw int, minMean float32) (*Set, error) {
	var patches []Patch
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		img, ok := decodeColor(path)
		if !ok {
			return nil
		}
		for _, p := range SamplePatches(img, scales, ph, pw) {
			if p.Mean() >= minMean {
				patches = append(patches, p)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load dataset: %w", err)
	}
	if len(patches) == 0 {
		return nil, fmt.Errorf("load dataset: no usable patches under %s", dir)
	}
	return NewSet(patches)
}

// decodeColor decodes path and reports whether it is a 3-channel image.
func decodeColor(path string) (image.Image, bool) {
	f, err := os.Open(path)
	if err != nil {
		return nil, false
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, false
	}
	switch img.(type) {
	case *image.Gray, *image.Gray16:
		return nil, false
	}
	return img, true
}
