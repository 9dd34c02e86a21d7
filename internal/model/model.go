// Package model defines the learned components of the experiments: residual
// denoisers built on the born framework and the linear-inverse solver that
// wraps a projection matrix around a denoiser prior.
package model

import (
	"github.com/born-ml/born/nn"

	"denoise-forge/internal/compute"
)

// Denoiser predicts the noise residual of an [N,C,H,W] batch, so that
// input − residual recovers the clean image.
type Denoiser interface {
	Forward(x *compute.Tensor) *compute.Tensor
	Parameters() []*nn.Parameter[compute.Backend]
}

// Solver reconstructs a batch of images from their own measurements.
// Implementations may be stochastic: repeated calls on the same input are
// allowed to differ.
type Solver interface {
	Reconstruct(x *compute.Tensor) *compute.Tensor
}
