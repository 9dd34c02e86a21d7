package trainer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"denoise-forge/internal/dataset"
	"denoise-forge/internal/metrics"
)

// PCAProjection computes the top-k principal directions of the training set
// and returns them as a k×D matrix, one component per row. It is the
// classical baseline the trained projection is compared against.
func PCAProjection(train *dataset.Set, k int) (*mat.Dense, error) {
	n, d := train.Len(), train.SampleSize()
	if k <= 0 || k > d {
		return nil, fmt.Errorf("trainer: pca components %d out of range (1..%d)", k, d)
	}

	x := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		row := train.At(i)
		for j, v := range row {
			x.Set(i, j, float64(v))
		}
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, fmt.Errorf("trainer: principal component decomposition failed")
	}

	var vec mat.Dense
	pc.VectorsTo(&vec)
	if _, cols := vec.Dims(); cols < k {
		return nil, fmt.Errorf("trainer: only %d principal components available, need %d", cols, k)
	}

	proj := mat.NewDense(k, d, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < d; j++ {
			proj.Set(i, j, vec.At(j, i))
		}
	}
	return proj, nil
}

// LinearReconstruct scores the closed-form reconstruction x ↦ x·Mᵀ·M of a
// set under projection m. Vectors are projected uncentered, so the score
// reflects the raw subspace fit rather than the covariance fit.
func LinearReconstruct(set *dataset.Set, m *mat.Dense) EvalResult {
	n, d := set.Len(), set.SampleSize()

	x := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j, v := range set.At(i) {
			x.Set(i, j, float64(v))
		}
	}

	var coeff, recon mat.Dense
	coeff.Mul(x, m.T())
	recon.Mul(&coeff, m)

	flat := make([]float32, n*d)
	ref := make([]float32, n*d)
	for i := 0; i < n; i++ {
		row := set.At(i)
		for j := 0; j < d; j++ {
			flat[i*d+j] = float32(recon.At(i, j))
			ref[i*d+j] = row[j]
		}
	}

	return EvalResult{
		MSE:   metrics.BatchMSE(ref, flat, n),
		SSIM:  metrics.SSIM(ref, flat, d),
		PSNR:  metrics.PSNR(ref, flat),
		Recon: flat,
	}
}
