package ml

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// Neuron owns one bias and k weight sets together with the per-weight
// optimizer state. A neuron is only ever mutated by the single worker task
// dispatched for its index, so none of its state needs locking.
type Neuron struct {
	aggregation AggregationKind
	activation  ActivationKind

	weights [][]float64
	bias    float64

	wState [][]optimizerState
	bState optimizerState

	// Forward cache, written by processToLearn and consumed by the two
	// gradient flavors. `input` aliases the batch owned by the caller.
	input     *Matrix
	preacts   []float64
	chosenSet []int
	mask      *Matrix // dropconnect keep/rescale factor per (sample, input)

	// Gradient accumulator, cleared by updateWeights.
	wGrad  [][]float64
	bGrad  float64
	inGrad *Matrix

	savedWeights [][]float64
	savedBias    float64
}

func newNeuron(aggregation AggregationKind, activation ActivationKind) *Neuron {
	return &Neuron{aggregation: aggregation, activation: activation}
}

// init draws fresh weights from the configured distribution and resets all
// optimizer state. nbOutputs is the fan-out hint of the next layer; it only
// participates in scaling when the layer asks for it.
func (n *Neuron) init(param LayerParam, nbInputs, nbOutputs int, src rand.Source) {
	k := param.K
	if k < 1 {
		k = 1
	}

	scaling := param.Scaling
	if scaling == nil {
		scaling = XavierScaling
	}
	fanOut := 0
	if param.UseOutput {
		fanOut = nbOutputs
	}
	scale := scaling(nbInputs, fanOut, k)

	n.weights = make([][]float64, k)
	n.wState = make([][]optimizerState, k)
	for set := 0; set < k; set++ {
		n.weights[set] = drawWeights(param.Distrib, param.MeanBoundary, param.Deviation, nbInputs, scale, src)
		n.wState[set] = make([]optimizerState, nbInputs)
		for j := range n.wState[set] {
			n.wState[set][j].reset()
		}
	}
	n.bias = 0
	n.bState.reset()

	n.input = nil
	n.preacts = nil
	n.chosenSet = nil
	n.mask = nil
	n.wGrad = nil
	n.bGrad = 0
	n.inGrad = nil
}

// process computes one output per input row. Pure: no caches, no mutation.
// Used for inference.
func (n *Neuron) process(inputs *Matrix) []float64 {
	out := make([]float64, inputs.Rows())
	for i := range out {
		preact, _ := n.aggregation.aggregate(n.weights, n.bias, inputs.Row(i))
		out[i] = n.activation.forward(preact)
	}
	return out
}

// processToLearn is the training-time forward pass: it applies dropconnect to
// individual weighted contributions and caches everything the backward pass
// needs. src must be a substream private to this neuron's task.
func (n *Neuron) processToLearn(inputs *Matrix, dropconnect float64, src rand.Source) []float64 {
	batch := inputs.Rows()
	cols := inputs.Cols()

	n.input = inputs
	n.preacts = make([]float64, batch)
	n.chosenSet = make([]int, batch)
	n.mask = nil

	if dropconnect > 0 {
		n.mask = NewMatrix(batch, cols)
		drop := distuv.Bernoulli{P: dropconnect, Src: src}
		keepScale := 1 / (1 - dropconnect)
		for i := 0; i < batch; i++ {
			row := n.mask.Row(i)
			for j := range row {
				if drop.Rand() == 0 {
					row[j] = keepScale
				}
			}
		}
	}

	out := make([]float64, batch)
	masked := make([]float64, cols)
	for i := 0; i < batch; i++ {
		row := inputs.Row(i)
		if n.mask != nil {
			floats.MulTo(masked, row, n.mask.Row(i))
			row = masked
		}
		preact, set := n.aggregation.aggregate(n.weights, n.bias, row)
		n.preacts[i] = preact
		n.chosenSet[i] = set
		out[i] = n.activation.forward(preact)
	}
	return out
}

// computeGradients folds the gradient flowing back for this neuron's output
// (one scalar per sample) into the per-weight accumulator via the chain rule
// through the activation and aggregation derivatives. Accumulates, so a batch
// may be folded in several calls.
func (n *Neuron) computeGradients(outputGrad []float64) {
	if n.wGrad == nil {
		n.wGrad = make([][]float64, len(n.weights))
		for set := range n.wGrad {
			n.wGrad[set] = make([]float64, len(n.weights[set]))
		}
	}

	for i, og := range outputGrad {
		local := og * n.activation.derivative(n.preacts[i])
		set := n.chosenSet[i]
		row := n.input.Row(i)
		grad := n.wGrad[set]
		if n.mask != nil {
			maskRow := n.mask.Row(i)
			for j := range grad {
				grad[j] += local * row[j] * maskRow[j]
			}
		} else {
			floats.AddScaled(grad, local, row)
		}
		n.bGrad += local
	}
}

// computeGradientsAccordingToInputs produces the symmetric gradient with
// respect to this neuron's inputs, one scalar per (sample, input dimension).
// It reads the same forward cache as computeGradients and writes separate
// storage, so the two flavors never interfere.
func (n *Neuron) computeGradientsAccordingToInputs(outputGrad []float64) {
	batch := n.input.Rows()
	cols := n.input.Cols()
	n.inGrad = NewMatrix(batch, cols)

	for i, og := range outputGrad {
		local := og * n.activation.derivative(n.preacts[i])
		w := n.weights[n.chosenSet[i]]
		dst := n.inGrad.Row(i)
		if n.mask != nil {
			maskRow := n.mask.Row(i)
			for j := range dst {
				dst[j] = local * w[j] * maskRow[j]
			}
		} else {
			floats.AddScaled(dst, local, w)
		}
	}
}

// gradients exposes the input-gradient matrix for the layer reduction.
func (n *Neuron) gradients() *Matrix {
	return n.inGrad
}

// updateWeights applies the optimizer rule to every weight and the bias using
// the accumulated gradient, rescales to maxNorm when configured, then clears
// the accumulator: gradients are single-batch, never carried across batches.
func (n *Neuron) updateWeights(learningRate, l1, l2, maxNorm float64, kind OptimizerKind, momentum, window, optimizerBias float64) {
	nesterov, automaticLR, adaptiveLR := kind.modes()
	p := updateParams{
		learningRate: learningRate,
		momentum:     momentum,
		window:       window,
		bias:         optimizerBias,
		l1:           l1,
		l2:           l2,
		nesterov:     nesterov,
		automaticLR:  automaticLR,
		adaptiveLR:   adaptiveLR,
	}

	for set := range n.weights {
		for j := range n.weights[set] {
			g := 0.0
			if n.wGrad != nil {
				g = n.wGrad[set][j]
			}
			optimizedUpdate(&n.weights[set][j], &n.wState[set][j], g, p)
		}
	}

	// bias carries no regularization
	bp := p
	bp.l1, bp.l2 = 0, 0
	optimizedUpdate(&n.bias, &n.bState, n.bGrad, bp)

	if maxNorm > 0 {
		for set := range n.weights {
			norm := floats.Norm(n.weights[set], 2)
			if norm > maxNorm {
				floats.Scale(maxNorm/norm, n.weights[set])
			}
		}
	}

	n.wGrad = nil
	n.bGrad = 0
}

// updateInput takes a gradient-descent step directly on the input vector,
// for the generative input-optimization mode. Run strictly serially: several
// neurons mutate the same shared vector.
func (n *Neuron) updateInput(input []float64, learningRate float64) {
	if n.inGrad == nil {
		return
	}
	floats.AddScaled(input, learningRate, n.inGrad.Row(0))
}

// snapshot and restore implement the logical weight checkpoint used by early
// stopping. Optimizer state deliberately survives a restore.
func (n *Neuron) snapshot() {
	n.savedWeights = make([][]float64, len(n.weights))
	for set := range n.weights {
		n.savedWeights[set] = append([]float64(nil), n.weights[set]...)
	}
	n.savedBias = n.bias
}

func (n *Neuron) restore() {
	if n.savedWeights == nil {
		return
	}
	for set := range n.savedWeights {
		copy(n.weights[set], n.savedWeights[set])
	}
	n.bias = n.savedBias
}

func (n *Neuron) weightsAndBias() ([][]float64, float64) {
	return n.weights, n.bias
}

func (n *Neuron) setWeightsAndBias(weights [][]float64, bias float64) {
	n.weights = make([][]float64, len(weights))
	n.wState = make([][]optimizerState, len(weights))
	for set := range weights {
		n.weights[set] = append([]float64(nil), weights[set]...)
		n.wState[set] = make([]optimizerState, len(weights[set]))
		for j := range n.wState[set] {
			n.wState[set][j].reset()
		}
	}
	n.bias = bias
	n.bState.reset()
}

func (n *Neuron) nbWeights() int {
	if len(n.weights) == 0 {
		return 0
	}
	return len(n.weights) * len(n.weights[0])
}
