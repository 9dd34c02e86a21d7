// Package artifact persists run outputs as NumPy .npy data, so
// reconstructions and learned projections can be inspected with the usual
// numerical tooling. A run's arrays are appended sequentially into one
// file and read back in write order.
package artifact

import (
	"fmt"
	"os"

	"github.com/sbinet/npyio"
	"gonum.org/v1/gonum/mat"
)

// Save writes the matrices sequentially to path, creating or truncating
// the file. Each matrix becomes one self-contained .npy section.
func Save(path string, mats []*mat.Dense) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	defer f.Close()

	for i, m := range mats {
		if err := npyio.Write(f, m); err != nil {
			return fmt.Errorf("artifact: write %s section %d: %w", path, i, err)
		}
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("artifact: close %s: %w", path, err)
	}
	return nil
}

// Load reads n matrices from a file written by Save, in write order.
func Load(path string, n int) ([]*mat.Dense, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}
	defer f.Close()

	mats := make([]*mat.Dense, 0, n)
	for i := 0; i < n; i++ {
		var m mat.Dense
		if err := npyio.Read(f, &m); err != nil {
			return nil, fmt.Errorf("artifact: read %s section %d: %w", path, i, err)
		}
		mats = append(mats, &m)
	}
	return mats, nil
}

// SamplesMatrix lays out a flat sample buffer as an n×d matrix.
func SamplesMatrix(data []float32, n int) (*mat.Dense, error) {
	if n <= 0 || len(data)%n != 0 {
		return nil, fmt.Errorf("artifact: cannot shape %d values into %d rows", len(data), n)
	}
	d := len(data) / n
	m := mat.NewDense(n, d, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < d; j++ {
			m.Set(i, j, float64(data[i*d+j]))
		}
	}
	return m, nil
}
