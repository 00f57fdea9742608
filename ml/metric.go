package ml

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

const (
	MetricL1 Metric = iota
	MetricL2
	MetricAccuracy
)

// Metric selects the test-set measure reported per epoch. Purely a reporting
// artifact: it never gates the training loop.
type Metric int

func (m Metric) name() string {
	switch m {
	case MetricAccuracy:
		return "accuracy"
	case MetricL2:
		return "mse"
	default:
		return "mae"
	}
}

// computeMetric summarizes the test set into the two scalars recorded each
// epoch. For accuracy the pair is (mean positive validity, mean negative
// validity); for the cost metrics it is (mean cost, stddev of cost).
func computeMetric(kind Metric, real, predicted *Matrix, classValidity float64) (float64, float64) {
	first, second := metricPerOutput(kind, real, predicted, classValidity)
	return stat.Mean(first, nil), stat.Mean(second, nil)
}

// metricPerOutput computes the metric pair per output column, for the
// per-output rows of the training report.
func metricPerOutput(kind Metric, real, predicted *Matrix, classValidity float64) ([]float64, []float64) {
	if kind == MetricAccuracy {
		return accuracyPerOutput(real, predicted, classValidity)
	}
	return costPerOutput(kind, real, predicted)
}

// accuracyPerOutput treats each output as a class score. An expected-on
// output counts as valid when the prediction reaches classValidity, an
// expected-off output when it stays below 1 - classValidity.
func accuracyPerOutput(real, predicted *Matrix, classValidity float64) ([]float64, []float64) {
	positive := make([]float64, real.Cols())
	negative := make([]float64, real.Cols())

	for j := 0; j < real.Cols(); j++ {
		var posHit, posTotal, negHit, negTotal int
		for i := 0; i < real.Rows(); i++ {
			if real.At(i, j) >= 0.5 {
				posTotal++
				if predicted.At(i, j) >= classValidity {
					posHit++
				}
			} else {
				negTotal++
				if predicted.At(i, j) < 1-classValidity {
					negHit++
				}
			}
		}
		positive[j] = ratioOrPerfect(posHit, posTotal)
		negative[j] = ratioOrPerfect(negHit, negTotal)
	}
	return positive, negative
}

func ratioOrPerfect(hit, total int) float64 {
	if total == 0 {
		return 1
	}
	return float64(hit) / float64(total)
}

func costPerOutput(kind Metric, real, predicted *Matrix) ([]float64, []float64) {
	mean := make([]float64, real.Cols())
	spread := make([]float64, real.Cols())
	column := make([]float64, real.Rows())

	for j := 0; j < real.Cols(); j++ {
		for i := 0; i < real.Rows(); i++ {
			diff := real.At(i, j) - predicted.At(i, j)
			if kind == MetricL2 {
				column[i] = diff * diff
			} else {
				column[i] = math.Abs(diff)
			}
		}
		mean[j] = stat.Mean(column, nil)
		if real.Rows() > 1 {
			spread[j] = stat.StdDev(column, nil)
		}
	}
	return mean, spread
}
