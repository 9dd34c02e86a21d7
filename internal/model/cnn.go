package model

import (
	"github.com/born-ml/born/nn"

	"denoise-forge/internal/compute"
)

// CNNDenoiser is a convolutional residual predictor: a stack of 3×3
// same-padding convolutions with ReLU between them, channels
// in → features → … → in.
type CNNDenoiser struct {
	convs []*nn.Conv2D[compute.Backend]
	relu  *nn.ReLU[compute.Backend]
}

// NewCNNDenoiser builds a depth-layer network over channels-channel images.
// depth counts convolutions and must be at least 2.
func NewCNNDenoiser(channels, features, depth int, b compute.Backend) *CNNDenoiser {
	if depth < 2 {
		panic("model: CNN denoiser needs depth >= 2")
	}
	convs := make([]*nn.Conv2D[compute.Backend], 0, depth)
	convs = append(convs, nn.NewConv2D[compute.Backend](channels, features, 3, 3, 1, 1, true, b))
	for i := 0; i < depth-2; i++ {
		convs = append(convs, nn.NewConv2D[compute.Backend](features, features, 3, 3, 1, 1, true, b))
	}
	convs = append(convs, nn.NewConv2D[compute.Backend](features, channels, 3, 3, 1, 1, true, b))
	return &CNNDenoiser{convs: convs, relu: nn.NewReLU[compute.Backend]()}
}

// Forward runs the convolution stack on an [N,C,H,W] batch.
func (m *CNNDenoiser) Forward(x *compute.Tensor) *compute.Tensor {
	out := x
	for i, conv := range m.convs {
		out = conv.Forward(out)
		if i < len(m.convs)-1 {
			out = m.relu.Forward(out)
		}
	}
	return out
}

// Parameters returns the trainable weights of all convolutions.
func (m *CNNDenoiser) Parameters() []*nn.Parameter[compute.Backend] {
	var params []*nn.Parameter[compute.Backend]
	for _, conv := range m.convs {
		params = append(params, conv.Parameters()...)
	}
	return params
}
