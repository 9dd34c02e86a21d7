package model

import (
	"github.com/born-ml/born/nn"

	"denoise-forge/internal/compute"
)

// MLPDenoiser is a dense residual predictor over flattened samples. The
// small bivariate experiments use it directly; with no hidden layers it
// reduces to a single affine map.
type MLPDenoiser struct {
	c, h, w int
	layers  []*nn.Linear[compute.Backend]
	relu    *nn.ReLU[compute.Backend]
}

// NewMLPDenoiser builds a dense denoiser for c×h×w samples with the given
// hidden widths.
func NewMLPDenoiser(c, h, w int, hidden []int, b compute.Backend) *MLPDenoiser {
	dims := append([]int{c * h * w}, hidden...)
	dims = append(dims, c*h*w)

	layers := make([]*nn.Linear[compute.Backend], 0, len(dims)-1)
	for i := 0; i < len(dims)-1; i++ {
		layers = append(layers, nn.NewLinear[compute.Backend](dims[i], dims[i+1], b))
	}
	return &MLPDenoiser{c: c, h: h, w: w, layers: layers, relu: nn.NewReLU[compute.Backend]()}
}

// Forward flattens the batch, applies the dense stack and restores the
// image layout. Input shape [N,C,H,W].
func (m *MLPDenoiser) Forward(x *compute.Tensor) *compute.Tensor {
	n := x.Shape()[0]
	out := x.Reshape(n, m.c*m.h*m.w)
	for i, layer := range m.layers {
		out = layer.Forward(out)
		if i < len(m.layers)-1 {
			out = m.relu.Forward(out)
		}
	}
	return out.Reshape(n, m.c, m.h, m.w)
}

// Parameters returns the trainable weights of all layers.
func (m *MLPDenoiser) Parameters() []*nn.Parameter[compute.Backend] {
	var params []*nn.Parameter[compute.Backend]
	for _, layer := range m.layers {
		params = append(params, layer.Parameters()...)
	}
	return params
}
