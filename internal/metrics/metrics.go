// Package metrics implements the reconstruction-quality measures reported
// by the trainers: mean-squared error, global structural similarity and
// peak signal-to-noise ratio, all over float pixels in [0,1].
package metrics

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// SSIM stabilization constants for a dynamic range of 1.
const (
	ssimC1 = 0.01 * 0.01
	ssimC2 = 0.03 * 0.03
)

// MSE returns the mean squared error over all elements.
func MSE(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		panic("metrics: length mismatch")
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum / float64(len(a))
}

// BatchMSE returns the squared error summed over all elements and divided
// by the number of samples, the sum-reduction convention of the
// linear-inverse experiments.
func BatchMSE(a, b []float32, batch int) float64 {
	return MSE(a, b) * float64(len(a)) / float64(batch)
}

// PSNR returns the peak signal-to-noise ratio in decibels for a dynamic
// range of 1. Identical inputs give +Inf.
func PSNR(a, b []float32) float64 {
	mse := MSE(a, b)
	if mse == 0 {
		return math.Inf(1)
	}
	return -10.0 * math.Log10(mse)
}

// SSIM returns the structural similarity index between x and y, averaged
// over images of per elements each. Statistics are global per image across
// all channels.
func SSIM(x, y []float32, per int) float64 {
	if len(x) != len(y) || per <= 0 || len(x)%per != 0 {
		panic("metrics: bad SSIM arguments")
	}
	n := len(x) / per
	var total float64
	for i := 0; i < n; i++ {
		total += ssimOne(toF64(x[i*per:(i+1)*per]), toF64(y[i*per:(i+1)*per]))
	}
	return total / float64(n)
}

func ssimOne(x, y []float64) float64 {
	muX := stat.Mean(x, nil)
	muY := stat.Mean(y, nil)
	varX := stat.Variance(x, nil)
	varY := stat.Variance(y, nil)
	cov := stat.Covariance(x, y, nil)

	num := (2*muX*muY + ssimC1) * (2*cov + ssimC2)
	den := (muX*muX + muY*muY + ssimC1) * (varX + varY + ssimC2)
	return num / den
}

// SSIMGrad returns the gradient of the batch-mean SSIM with respect to y.
// It is the analytic counterpart of SSIM and is used to seed the backward
// pass for the 1−SSIM training loss.
func SSIMGrad(x, y []float32, per int) []float32 {
	if len(x) != len(y) || per <= 0 || len(x)%per != 0 {
		panic("metrics: bad SSIM arguments")
	}
	nImages := len(x) / per
	grad := make([]float32, len(x))
	for i := 0; i < nImages; i++ {
		lo, hi := i*per, (i+1)*per
		ssimGradOne(toF64(x[lo:hi]), toF64(y[lo:hi]), grad[lo:hi], float64(nImages))
	}
	return grad
}

func ssimGradOne(x, y []float64, out []float32, scale float64) {
	n := float64(len(x))
	muX := stat.Mean(x, nil)
	muY := stat.Mean(y, nil)
	varX := stat.Variance(x, nil)
	varY := stat.Variance(y, nil)
	cov := stat.Covariance(x, y, nil)

	a1 := 2*muX*muY + ssimC1
	a2 := 2*cov + ssimC2
	b1 := muX*muX + muY*muY + ssimC1
	b2 := varX + varY + ssimC2
	s := a1 * a2 / (b1 * b2)

	// Moments use the same estimators as ssimOne: means over n, variance
	// and covariance over n−1.
	for i := range y {
		dA1 := 2 * muX / n
		dA2 := 2 * (x[i] - muX) / (n - 1)
		dB1 := 2 * muY / n
		dB2 := 2 * (y[i] - muY) / (n - 1)

		g := (a2*dA1+a1*dA2)/(b1*b2) - s*(dB1/b1+dB2/b2)
		out[i] = float32(g / scale)
	}
}

func toF64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		out[i] = float64(f)
	}
	return out
}
