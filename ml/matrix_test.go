package ml

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMatrixRowIsAView(t *testing.T) {
	m := NewMatrix(2, 3)

	row := m.Row(1)
	row[2] = 42

	require.Equal(t, 42.0, m.At(1, 2))
}

func TestMatrixFromSliceSharesBacking(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	m := NewMatrixFromSlice(2, 2, data)

	data[3] = 9
	require.Equal(t, 9.0, m.At(1, 1))

	require.Panics(t, func() {
		NewMatrixFromSlice(2, 2, []float64{1, 2, 3})
	})
}

func TestMatrixTranspose(t *testing.T) {
	m := NewMatrixFromSlice(2, 3, []float64{
		1, 2, 3,
		4, 5, 6,
	})

	tr := m.Transpose()

	require.Equal(t, 3, tr.Rows())
	require.Equal(t, 2, tr.Cols())
	for i := 0; i < 2; i++ {
		for j := 0; j < 3; j++ {
			require.Equal(t, m.At(i, j), tr.At(j, i))
		}
	}
}

func TestMatrixGobRoundTrip(t *testing.T) {
	m := NewMatrixFromSlice(2, 2, []float64{1.5, -2, 0, 3.25})

	var buf bytes.Buffer
	require.NoError(t, gob.NewEncoder(&buf).Encode(m))

	var out Matrix
	require.NoError(t, gob.NewDecoder(&buf).Decode(&out))

	require.Equal(t, m.rows, out.rows)
	require.Equal(t, m.cols, out.cols)
	require.Equal(t, m.data, out.data)
	// the decoded matrix must still transpose, so the wrapper was rebuilt
	require.Equal(t, m.At(0, 1), out.Transpose().At(1, 0))
}

func TestMatrixEmptyPartition(t *testing.T) {
	m := NewMatrix(0, 0)

	require.Zero(t, m.Rows())
	require.NotPanics(t, func() {
		m.Transpose()
		StandardizeWith(m, ColumnStats{})
	})
}
