package artifact

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.npy")

	want := []*mat.Dense{
		mat.NewDense(2, 3, []float64{1, 2, 3, 4.5, -1, 0}),
		mat.NewDense(1, 4, []float64{0.25, 0.5, 0.75, 1}),
		mat.NewDense(3, 2, []float64{9, 8, 7, 6, 5, 4}),
	}
	require.NoError(t, Save(path, want))

	got, err := Load(path, len(want))
	require.NoError(t, err)
	require.Len(t, got, len(want))

	// Sections come back in the order they were appended.
	for k := range want {
		wr, wc := want[k].Dims()
		gr, gc := got[k].Dims()
		require.Equal(t, wr, gr, "section %d rows", k)
		require.Equal(t, wc, gc, "section %d cols", k)
		for i := 0; i < wr; i++ {
			for j := 0; j < wc; j++ {
				assert.InDelta(t, want[k].At(i, j), got[k].At(i, j), 1e-12)
			}
		}
	}
}

func TestLoadTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.npy")
	require.NoError(t, Save(path, []*mat.Dense{mat.NewDense(1, 2, []float64{1, 2})}))

	// Asking for more sections than were written fails on the missing one.
	_, err := Load(path, 2)
	assert.Error(t, err)
}

func TestSamplesMatrix(t *testing.T) {
	data := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}

	m, err := SamplesMatrix(data, 2)
	require.NoError(t, err)
	rows, cols := m.Dims()
	require.Equal(t, 2, rows)
	require.Equal(t, 3, cols)
	assert.InDelta(t, 0.4, m.At(1, 0), 1e-6)

	_, err = SamplesMatrix(data, 4)
	assert.Error(t, err)
	_, err = SamplesMatrix(data, 0)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.npy"), 1)
	assert.Error(t, err)
}
