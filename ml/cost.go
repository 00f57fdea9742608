package ml

import "math"

const (
	LossL1 Loss = iota
	LossL2
	LossCrossEntropy
	LossBinaryCrossEntropy
)

// Loss selects the cost function used both for training gradients and for
// the per-epoch train/validation losses.
type Loss int

// Every loss function returns a per-sample, per-output loss matrix and a
// gradient matrix of the same shape as predicted. The gradient convention is
// real - predicted: it points toward lower loss, and the optimizer applies it
// additively.

// L1Loss expects a linear activation on the last layer.
func L1Loss(real, predicted *Matrix) (*Matrix, *Matrix) {
	loss := NewMatrix(real.Rows(), real.Cols())
	gradients := NewMatrix(real.Rows(), real.Cols())
	for i := 0; i < real.Rows(); i++ {
		for j := 0; j < real.Cols(); j++ {
			diff := real.At(i, j) - predicted.At(i, j)
			loss.Set(i, j, math.Abs(diff))
			gradients.Set(i, j, sign(diff))
		}
	}
	return loss, gradients
}

// L2Loss expects a linear activation on the last layer.
func L2Loss(real, predicted *Matrix) (*Matrix, *Matrix) {
	loss := NewMatrix(real.Rows(), real.Cols())
	gradients := NewMatrix(real.Rows(), real.Cols())
	for i := 0; i < real.Rows(); i++ {
		for j := 0; j < real.Cols(); j++ {
			diff := real.At(i, j) - predicted.At(i, j)
			loss.Set(i, j, 0.5*diff*diff)
			gradients.Set(i, j, diff)
		}
	}
	return loss, gradients
}

// CrossEntropyLoss softmaxes the (linear) predictions internally.
func CrossEntropyLoss(real, predicted *Matrix) (*Matrix, *Matrix) {
	soft := Softmax(predicted)
	loss := NewMatrix(real.Rows(), real.Cols())
	gradients := NewMatrix(real.Rows(), real.Cols())
	for i := 0; i < real.Rows(); i++ {
		for j := 0; j < real.Cols(); j++ {
			loss.Set(i, j, real.At(i, j)*-math.Log(soft.At(i, j)))
			gradients.Set(i, j, real.At(i, j)-soft.At(i, j))
		}
	}
	return loss, gradients
}

// BinaryCrossEntropyLoss expects outputs in [0, 1], typically a sigmoid last
// layer.
func BinaryCrossEntropyLoss(real, predicted *Matrix) (*Matrix, *Matrix) {
	loss := NewMatrix(real.Rows(), real.Cols())
	gradients := NewMatrix(real.Rows(), real.Cols())
	for i := 0; i < real.Rows(); i++ {
		for j := 0; j < real.Cols(); j++ {
			r, p := real.At(i, j), predicted.At(i, j)
			loss.Set(i, j, -(r*math.Log(p) + (1-r)*math.Log(1-p)))
			gradients.Set(i, j, (r-p)/(p*(1-p)))
		}
	}
	return loss, gradients
}

func computeLossMatrix(loss Loss, real, predicted *Matrix) (*Matrix, *Matrix) {
	switch loss {
	case LossL1:
		return L1Loss(real, predicted)
	case LossL2:
		return L2Loss(real, predicted)
	case LossBinaryCrossEntropy:
		return BinaryCrossEntropyLoss(real, predicted)
	default:
		return CrossEntropyLoss(real, predicted)
	}
}

// averageLoss summarizes a loss matrix: sum over outputs, mean over samples.
func averageLoss(loss *Matrix) float64 {
	total := 0.0
	for i := 0; i < loss.Rows(); i++ {
		for _, v := range loss.Row(i) {
			total += v
		}
	}
	return total / float64(loss.Rows())
}
