package ml

import (
	"testing"

	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"
)

func TestStandardizeCentersColumns(t *testing.T) {
	m := NewMatrixFromSlice(4, 2, []float64{
		1, 100,
		2, 200,
		3, 300,
		4, 400,
	})

	s := Standardize(m)

	for j := 0; j < 2; j++ {
		column := make([]float64, 4)
		for i := 0; i < 4; i++ {
			column[i] = m.At(i, j)
		}
		require.InDelta(t, 0.0, stat.Mean(column, nil), 1e-12)
		require.InDelta(t, 1.0, stat.StdDev(column, nil), 1e-12)
	}
	require.InDelta(t, 2.5, s.Mean[0], 1e-12)
	require.InDelta(t, 250, s.Mean[1], 1e-12)
}

// Validation and test partitions must be transformed with the training fit,
// never refit on their own values.
func TestStandardizeWithAppliesTrainingFit(t *testing.T) {
	train := NewMatrixFromSlice(2, 1, []float64{0, 2})
	other := NewMatrixFromSlice(1, 1, []float64{4})

	s := Standardize(train)
	StandardizeWith(other, s)

	// (4 - 1) / std(0,2): far outside the training range, not refit to 0
	require.Greater(t, other.At(0, 0), 1.0)
}

func TestStandardizeConstantColumn(t *testing.T) {
	m := NewMatrixFromSlice(3, 1, []float64{5, 5, 5})

	s := Standardize(m)

	require.Equal(t, 1.0, s.Std[0])
	for i := 0; i < 3; i++ {
		require.Zero(t, m.At(i, 0))
	}
}

func TestNormalizeRescalesToUnitInterval(t *testing.T) {
	m := NewMatrixFromSlice(3, 1, []float64{-10, 0, 10})

	r := Normalize(m)

	require.Equal(t, -10.0, r.Min[0])
	require.Equal(t, 10.0, r.Max[0])
	require.Equal(t, 0.0, m.At(0, 0))
	require.Equal(t, 0.5, m.At(1, 0))
	require.Equal(t, 1.0, m.At(2, 0))
}

func TestNormalizeWithConstantColumn(t *testing.T) {
	m := NewMatrixFromSlice(2, 1, []float64{3, 3})

	Normalize(m)

	// zero span must not divide by zero
	require.Equal(t, 0.0, m.At(0, 0))
	require.Equal(t, 0.0, m.At(1, 0))
}
