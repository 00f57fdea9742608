package ml

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestL2LossPerfectPrediction(t *testing.T) {
	real := NewMatrixFromSlice(2, 2, []float64{1, 2, 3, 4})

	loss, gradients := L2Loss(real, real.Clone())

	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			require.Zero(t, loss.At(i, j))
			require.Zero(t, gradients.At(i, j))
		}
	}
	require.Zero(t, averageLoss(loss))
}

func TestL2LossGradientPointsTowardTarget(t *testing.T) {
	real := NewMatrixFromSlice(1, 2, []float64{1, 0})
	predicted := NewMatrixFromSlice(1, 2, []float64{0.2, 0.5})

	loss, gradients := L2Loss(real, predicted)

	require.InDelta(t, 0.5*0.8*0.8, loss.At(0, 0), 1e-12)
	require.InDelta(t, 0.8, gradients.At(0, 0), 1e-12)
	require.InDelta(t, -0.5, gradients.At(0, 1), 1e-12)
}

func TestL1LossGradientIsSign(t *testing.T) {
	real := NewMatrixFromSlice(1, 3, []float64{1, 0, 0.5})
	predicted := NewMatrixFromSlice(1, 3, []float64{0.2, 0.5, 0.5})

	loss, gradients := L1Loss(real, predicted)

	require.InDelta(t, 0.8, loss.At(0, 0), 1e-12)
	require.Equal(t, 1.0, gradients.At(0, 0))
	require.Equal(t, -1.0, gradients.At(0, 1))
	require.Equal(t, 0.0, gradients.At(0, 2))
}

// One-hot targets make the cross-entropy gradient sum to zero per sample,
// since the softmax row sums to one.
func TestCrossEntropyGradientSumsToZero(t *testing.T) {
	real := NewMatrixFromSlice(2, 3, []float64{
		1, 0, 0,
		0, 0, 1,
	})
	predicted := NewMatrixFromSlice(2, 3, []float64{
		2, 1, 0.1,
		-1, 0.5, 3,
	})

	_, gradients := CrossEntropyLoss(real, predicted)

	for i := 0; i < 2; i++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			sum += gradients.At(i, j)
		}
		require.InDelta(t, 0.0, sum, 1e-12)
	}
}

func TestBinaryCrossEntropyGradientSign(t *testing.T) {
	real := NewMatrixFromSlice(1, 2, []float64{1, 0})
	predicted := NewMatrixFromSlice(1, 2, []float64{0.6, 0.6})

	loss, gradients := BinaryCrossEntropyLoss(real, predicted)

	require.Greater(t, loss.At(0, 0), 0.0)
	require.Greater(t, gradients.At(0, 0), 0.0) // under-confident positive, push up
	require.Less(t, gradients.At(0, 1), 0.0)    // over-confident negative, push down
}

func TestAverageLossIsMeanOverSamples(t *testing.T) {
	loss := NewMatrixFromSlice(2, 2, []float64{
		1, 2,
		3, 4,
	})
	// sum over outputs, mean over samples: (3 + 7) / 2
	require.InDelta(t, 5.0, averageLoss(loss), 1e-12)
}

func TestSoftmaxRowsSumToOne(t *testing.T) {
	m := NewMatrixFromSlice(2, 3, []float64{
		1, 2, 3,
		1000, 1000, 1000, // max subtraction keeps this finite
	})

	soft := Softmax(m)

	for i := 0; i < 2; i++ {
		sum := 0.0
		for j := 0; j < 3; j++ {
			v := soft.At(i, j)
			require.Greater(t, v, 0.0)
			sum += v
		}
		require.InDelta(t, 1.0, sum, 1e-12)
	}
	require.Greater(t, soft.At(0, 2), soft.At(0, 0))
}
