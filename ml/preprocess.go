package ml

import "gonum.org/v1/gonum/stat"

// Preprocessing statistics are always fit on the training partition and then
// applied unchanged to the validation and test partitions.

// ColumnStats holds the per-column mean and standard deviation of a fit.
type ColumnStats struct {
	Mean []float64
	Std  []float64
}

// Standardize centers every column to mean 0 and stddev 1 in place and
// returns the fitted statistics.
func Standardize(m *Matrix) ColumnStats {
	s := ColumnStats{
		Mean: make([]float64, m.Cols()),
		Std:  make([]float64, m.Cols()),
	}
	column := make([]float64, m.Rows())
	for j := 0; j < m.Cols(); j++ {
		for i := 0; i < m.Rows(); i++ {
			column[i] = m.At(i, j)
		}
		s.Mean[j] = stat.Mean(column, nil)
		s.Std[j] = stat.StdDev(column, nil)
		if s.Std[j] == 0 || m.Rows() < 2 {
			s.Std[j] = 1
		}
	}
	StandardizeWith(m, s)
	return s
}

// StandardizeWith applies previously fitted statistics in place.
func StandardizeWith(m *Matrix, s ColumnStats) {
	for i := 0; i < m.Rows(); i++ {
		row := m.Row(i)
		for j := range row {
			row[j] = (row[j] - s.Mean[j]) / s.Std[j]
		}
	}
}

// ColumnRange holds the per-column min and max of a fit.
type ColumnRange struct {
	Min []float64
	Max []float64
}

// Normalize rescales every column into [0, 1] in place and returns the
// fitted range.
func Normalize(m *Matrix) ColumnRange {
	r := ColumnRange{
		Min: make([]float64, m.Cols()),
		Max: make([]float64, m.Cols()),
	}
	for j := 0; j < m.Cols(); j++ {
		r.Min[j], r.Max[j] = m.At(0, j), m.At(0, j)
		for i := 1; i < m.Rows(); i++ {
			v := m.At(i, j)
			if v < r.Min[j] {
				r.Min[j] = v
			}
			if v > r.Max[j] {
				r.Max[j] = v
			}
		}
	}
	NormalizeWith(m, r)
	return r
}

// NormalizeWith applies a previously fitted range in place.
func NormalizeWith(m *Matrix, r ColumnRange) {
	for i := 0; i < m.Rows(); i++ {
		row := m.Row(i)
		for j := range row {
			span := r.Max[j] - r.Min[j]
			if span == 0 {
				span = 1
			}
			row[j] = (row[j] - r.Min[j]) / span
		}
	}
}
