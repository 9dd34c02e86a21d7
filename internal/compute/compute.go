// Package compute pins down the concrete compute stack used by every
// experiment: the born CPU backend wrapped with a reverse-mode gradient
// tape. The backend is constructed once in main and passed explicitly to
// each component, so tests run deterministically on host-only machines.
package compute

import (
	"github.com/born-ml/born/autodiff"
	"github.com/born-ml/born/backend/cpu"
	"github.com/born-ml/born/tensor"
)

// Backend is the autodiff-enabled CPU backend all components share.
type Backend = *autodiff.Backend[*cpu.Backend]

// Tensor is the float32 tensor type exchanged between components.
type Tensor = tensor.Tensor[float32, Backend]

// New constructs a fresh backend with an empty gradient tape.
func New() Backend {
	return autodiff.New(cpu.New())
}

// FromSlice wraps tensor.FromSlice for the concrete backend. Shape/length
// mismatches are programming errors and panic, matching the framework's own
// creation semantics.
func FromSlice(data []float32, shape tensor.Shape, b Backend) *Tensor {
	t, err := tensor.FromSlice[float32, Backend](data, shape, b)
	if err != nil {
		panic(err)
	}
	return t
}

// GradSeed builds the raw tensor handed to Tape().Backward as the gradient
// of the loss with respect to the last recorded operation's output.
func GradSeed(shape tensor.Shape, grad []float32, b Backend) *tensor.RawTensor {
	raw, err := tensor.NewRaw(shape, tensor.Float32, b.Device())
	if err != nil {
		panic(err)
	}
	copy(raw.AsFloat32(), grad)
	return raw
}

// Constant returns a tensor of the given shape filled with v. Used for
// on-tape scalar scaling, where a full-shape factor keeps the recorded
// multiply free of broadcasting.
func Constant(shape tensor.Shape, v float32, b Backend) *Tensor {
	return tensor.Full[float32](shape, v, b)
}
