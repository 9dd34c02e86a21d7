package trainer

import (
	"denoise-forge/internal/compute"
	"denoise-forge/internal/dataset"
	"denoise-forge/internal/metrics"
	"denoise-forge/internal/model"
)

// EvalResult holds quality measures of an averaged reconstruction against
// the clean reference set.
type EvalResult struct {
	MSE   float64 // squared error summed per image, divided by the set size
	SSIM  float64 // mean per-image structural similarity
	PSNR  float64
	Recon []float32 // averaged reconstruction, channel-major per sample
}

// AverageEval reconstructs the set nAvg times and averages the results
// elementwise before scoring, smoothing out the solver's sampling noise.
// nAvg 1 scores a single reconstruction. Tape recording is suspended for
// the duration.
func AverageEval(clean *dataset.Set, solver model.Solver, nAvg int, b compute.Backend) EvalResult {
	if nAvg < 1 {
		nAvg = 1
	}

	wasRecording := b.Tape().IsRecording()
	if wasRecording {
		b.Tape().StopRecording()
		defer b.Tape().StartRecording()
	}

	ref := clean.Tensor(b)
	refData := ref.Data()

	avg := make([]float32, len(refData))
	for i := 0; i < nAvg; i++ {
		recon := solver.Reconstruct(ref).Data()
		for j, v := range recon {
			avg[j] += v
		}
	}
	inv := 1 / float32(nAvg)
	for j := range avg {
		avg[j] *= inv
	}

	return EvalResult{
		MSE:   metrics.BatchMSE(refData, avg, clean.Len()),
		SSIM:  metrics.SSIM(refData, avg, clean.SampleSize()),
		PSNR:  metrics.PSNR(refData, avg),
		Recon: avg,
	}
}
