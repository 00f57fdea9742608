package ml

import (
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// LayerParam is the configuration blueprint for a layer. Immutable once
// training starts; Resize replaces the neuron set wholesale before that.
type LayerParam struct {
	Size        int
	Aggregation AggregationKind
	Activation  ActivationKind

	Distrib      DistribKind
	MeanBoundary float64 // mean (normal) or half-range boundary (uniform); 0 = derive
	Deviation    float64 // stddev (normal); 0 = derive
	Scaling      InitScaling
	UseOutput    bool // include the next layer's size in init scaling

	MaxNorm float64
	K       int // weight sets per neuron (maxout); 0 means 1
}

type LayerOption func(*LayerParam)

// Dense builds a LayerParam for a fully connected layer of `size` neurons,
// dot aggregation and relu activation by default.
func Dense(size int, opts ...LayerOption) LayerParam {
	p := LayerParam{
		Size:        size,
		Aggregation: AggrDot,
		Activation:  ActRelu,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func Activation(name string) LayerOption {
	return func(p *LayerParam) { p.Activation = ActivationByName(name) }
}

func Aggregation(name string) LayerOption {
	return func(p *LayerParam) { p.Aggregation = AggregationByName(name) }
}

func Maxout(k int) LayerOption {
	return func(p *LayerParam) {
		p.Aggregation = AggrMaxout
		p.K = k
	}
}

func MaxNorm(bound float64) LayerOption {
	return func(p *LayerParam) { p.MaxNorm = bound }
}

func WeightInit(distrib DistribKind, meanBoundary, deviation float64) LayerOption {
	return func(p *LayerParam) {
		p.Distrib = distrib
		p.MeanBoundary = meanBoundary
		p.Deviation = deviation
	}
}

// Layer owns an ordered, fixed set of neurons. Column i of every output
// matrix corresponds to neuron i. All four batch operations fan out one task
// per neuron over the shared pool and fully fan in before returning, so the
// forward, backward and update phases never overlap for one layer.
type Layer struct {
	param     LayerParam
	inputSize int
	neurons   []*Neuron
}

func newLayer(param LayerParam) *Layer {
	l := &Layer{param: param}
	l.Resize(param.Size)
	return l
}

// init sizes every neuron for the given fan. Runs serially so that all draws
// come from the network's single generator in a stable order.
func (l *Layer) init(nbInputs, nbOutputs int, src rand.Source) {
	l.inputSize = nbInputs
	for _, n := range l.neurons {
		n.init(l.param, nbInputs, nbOutputs, src)
	}
}

// Process computes the forward pass for inference: an MxN output for an
// M-row batch and N neurons. Each task writes only its own column.
func (l *Layer) Process(inputs *Matrix, p *Pool) (*Matrix, error) {
	out := NewMatrix(inputs.Rows(), len(l.neurons))
	handles := make([]*Handle, len(l.neurons))

	for i := range l.neurons {
		i := i
		handles[i] = p.Enqueue(func() {
			result := l.neurons[i].process(inputs)
			for j, v := range result {
				out.Set(j, i, v)
			}
		})
	}
	if err := waitAll(handles); err != nil {
		return nil, err
	}
	return out, nil
}

// ProcessToLearn is the training forward pass: dropconnect inside each
// neuron, dropout on whole columns afterwards. Each task derives its own
// seeded substream from the per-batch seed, so draws are independent of
// worker interleaving; the dropout draws stay on the calling goroutine.
func (l *Layer) ProcessToLearn(inputs *Matrix, dropout, dropconnect float64, seed uint64, p *Pool) (*Matrix, error) {
	out := NewMatrix(inputs.Rows(), len(l.neurons))
	handles := make([]*Handle, len(l.neurons))

	for i := range l.neurons {
		i := i
		handles[i] = p.Enqueue(func() {
			src := rand.NewSource(seed + uint64(i))
			result := l.neurons[i].processToLearn(inputs, dropconnect, src)
			for j, v := range result {
				out.Set(j, i, v)
			}
		})
	}
	if err := waitAll(handles); err != nil {
		return nil, err
	}

	if dropout > 0 {
		drop := distuv.Bernoulli{P: dropout, Src: rand.NewSource(seed + uint64(len(l.neurons)))}
		keepScale := 1 / (1 - dropout)
		for j := 0; j < out.rows; j++ {
			row := out.Row(j)
			for i := range row {
				if drop.Rand() == 1 {
					row[i] = 0
				} else {
					row[i] *= keepScale
				}
			}
		}
	}
	return out, nil
}

// ComputeGradients consumes the gradient produced by the next layer, one row
// per neuron and one column per sample, and computes both gradient flavors
// for every neuron.
func (l *Layer) ComputeGradients(outputGrad *Matrix, p *Pool) error {
	handles := make([]*Handle, len(l.neurons))
	for i := range l.neurons {
		i := i
		handles[i] = p.Enqueue(func() {
			row := outputGrad.Row(i)
			l.neurons[i].computeGradients(row)
			l.neurons[i].computeGradientsAccordingToInputs(row)
		})
	}
	return waitAll(handles)
}

// Gradients reduces the per-neuron input gradients into the matrix consumed
// by the previous layer's backward step: one row per input dimension, one
// column per sample. The reduction is serial on the calling goroutine, never
// a concurrent read-modify-write on shared cells.
func (l *Layer) Gradients() *Matrix {
	if len(l.neurons) == 0 || l.neurons[0].inGrad == nil {
		return nil
	}
	batch := l.neurons[0].inGrad.Rows()
	grad := NewMatrix(l.inputSize, batch)

	for _, n := range l.neurons {
		ng := n.gradients()
		for s := 0; s < batch; s++ {
			row := ng.Row(s)
			for j, v := range row {
				grad.data[j*batch+s] += v
			}
		}
	}
	return grad
}

// UpdateWeights applies the optimizer step to every neuron in parallel.
func (l *Layer) UpdateWeights(learningRate, l1, l2 float64, kind OptimizerKind, momentum, window, optimizerBias float64, p *Pool) error {
	handles := make([]*Handle, len(l.neurons))
	for i := range l.neurons {
		i := i
		handles[i] = p.Enqueue(func() {
			l.neurons[i].updateWeights(learningRate, l1, l2, l.param.MaxNorm, kind, momentum, window, optimizerBias)
		})
	}
	return waitAll(handles)
}

// UpdateInput steps the shared input vector neuron by neuron. Not fanned out:
// every neuron mutates the same vector.
func (l *Layer) UpdateInput(input []float64, learningRate float64) {
	for _, n := range l.neurons {
		n.updateInput(input, learningRate)
	}
}

func (l *Layer) Snapshot() {
	for _, n := range l.neurons {
		n.snapshot()
	}
}

func (l *Layer) Restore() {
	for _, n := range l.neurons {
		n.restore()
	}
}

// Weights returns every neuron's weight sets and bias, for the
// regularization penalty and persistence.
func (l *Layer) Weights() ([][][]float64, []float64) {
	weights := make([][][]float64, len(l.neurons))
	biases := make([]float64, len(l.neurons))
	for i, n := range l.neurons {
		weights[i], biases[i] = n.weightsAndBias()
	}
	return weights, biases
}

// Resize replaces the neuron set entirely. Pre-training configuration only.
func (l *Layer) Resize(size int) {
	l.neurons = make([]*Neuron, size)
	for i := range l.neurons {
		l.neurons[i] = newNeuron(l.param.Aggregation, l.param.Activation)
	}
}

func (l *Layer) Size() int {
	return len(l.neurons)
}

// NbWeights reports one neuron's weight count; uniform across the layer by
// construction.
func (l *Layer) NbWeights() int {
	if len(l.neurons) == 0 {
		return 0
	}
	return l.neurons[0].nbWeights()
}
