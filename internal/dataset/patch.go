package dataset

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// Patch is one fixed-size RGB crop with float pixels in [0,1], stored in
// HWC order. Patches are immutable after extraction.
type Patch struct {
	H, W, C int
	Pix     []float32
}

// Mean returns the average intensity across all pixels and channels.
func (p Patch) Mean() float32 {
	var sum float32
	for _, v := range p.Pix {
		sum += v
	}
	return sum / float32(len(p.Pix))
}

// SamplePatches tiles img into non-overlapping ph×pw patches at each scale.
// Per scale the image is resized bilinearly, then tiled from (0,0) stepping
// by ph and pw; remainder strips smaller than a full patch are discarded.
// The result is ordered scale-major, then row-major within a scale.
func SamplePatches(img image.Image, scales []float64, ph, pw int) []Patch {
	var samples []Patch
	for _, scale := range scales {
		resized := resize(img, scale)
		bounds := resized.Bounds()
		ih, iw := bounds.Dy(), bounds.Dx()
		if ih < ph || iw < pw {
			continue
		}
		for y := 0; y+ph <= ih; y += ph {
			for x := 0; x+pw <= iw; x += pw {
				samples = append(samples, extract(resized, x, y, ph, pw))
			}
		}
	}
	return samples
}

func resize(img image.Image, scale float64) *image.RGBA {
	bounds := img.Bounds()
	w := int(float64(bounds.Dx()) * scale)
	h := int(float64(bounds.Dy()) * scale)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, xdraw.Src, nil)
	return dst
}

func extract(img *image.RGBA, x0, y0, ph, pw int) Patch {
	pix := make([]float32, ph*pw*3)
	i := 0
	for y := y0; y < y0+ph; y++ {
		for x := x0; x < x0+pw; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			pix[i] = float32(r) / 65535.0
			pix[i+1] = float32(g) / 65535.0
			pix[i+2] = float32(b) / 65535.0
			i += 3
		}
	}
	return Patch{H: ph, W: pw, C: 3, Pix: pix}
}
