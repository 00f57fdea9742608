package ml

import (
	"fmt"
	"math"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/exp/rand"
)

// Sample pairs one input vector with its expected output vector.
type Sample struct {
	Inputs  []float64
	Outputs []float64
}

// Dataset is the raw, unpartitioned sample set handed to SetData.
type Dataset []Sample

// NetworkParam bundles every hyperparameter of a training run.
type NetworkParam struct {
	Seed      uint64 // 0 = derive from the wall clock
	BatchSize int
	Epochs    int
	Patience  int
	Plateau   float64 // validation loss must fall below lowest*Plateau to count as improvement

	LearningRate    float64
	L1              float64
	L2              float64
	Dropout         float64
	Dropconnect     float64
	LRDecayConstant float64
	LRStepDecay     int
	Decay           LRDecay // nil = DecayNone

	ValidationRatio float64
	TestRatio       float64

	Loss          Loss
	Metric        Metric
	ClassValidity float64

	Optimizer     OptimizerKind
	Momentum      float64
	Window        float64
	OptimizerBias float64

	NormalizeOutputs bool

	Threads      int
	VerboseEvery int // 0 = silent
}

// DefaultNetworkParam mirrors the historical defaults of the engine.
func DefaultNetworkParam() NetworkParam {
	return NetworkParam{
		BatchSize:       1,
		Epochs:          50,
		Patience:        5,
		Plateau:         0.999,
		LearningRate:    0.001,
		LRDecayConstant: 0.01,
		LRStepDecay:     10,
		ValidationRatio: 0.2,
		TestRatio:       0.2,
		Loss:            LossL2,
		Metric:          MetricL1,
		ClassValidity:   0.9,
		Momentum:        0.9,
		Window:          0.9,
		OptimizerBias:   1e-8,
		Threads:         1,
	}
}

// Network owns the layer stack, the shared worker pool, the dataset
// partitions and the training history. One network owns one pool for its
// whole lifetime; Close releases it.
type Network struct {
	param  NetworkParam
	seed   uint64
	rng    *rand.Rand
	labels []string

	layers []*Layer
	pool   *Pool

	raw Dataset

	trainData      *Matrix
	trainReal      *Matrix
	validationData *Matrix
	validationReal *Matrix
	testData       *Matrix
	testReal       *Matrix
	nbBatch        int

	epoch        int
	optimalEpoch int

	trainLosses      []float64
	validLosses      []float64
	testMetric       []float64
	testSecondMetric []float64

	inputStats  ColumnStats
	outputRange ColumnRange
	fitted      bool
	normalized  bool
}

func NewNetwork(labels []string, param NetworkParam) *Network {
	seed := param.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	if param.Plateau == 0 {
		param.Plateau = 0.999
	}
	if param.Decay == nil {
		param.Decay = DecayNone
	}

	return &Network{
		param:  param,
		seed:   seed,
		rng:    rand.New(rand.NewSource(seed)),
		pool:   NewPool(param.Threads),
		labels: labels,
	}
}

// Close joins the worker pool. The network is unusable afterwards.
func (n *Network) Close() {
	n.pool.Close()
}

// Seed reports the effective seed, so wall-clock seeded runs can be replayed.
func (n *Network) Seed() uint64 {
	return n.seed
}

// AddLayer appends a layer to the stack. Pre-training configuration only.
func (n *Network) AddLayer(param LayerParam) {
	if param.Size < 1 {
		panic("ml: layer must have at least one neuron")
	}
	n.layers = append(n.layers, newLayer(param))
}

// SetData hands the raw dataset over; it is shuffled and partitioned when
// Learn starts.
func (n *Network) SetData(data Dataset) {
	n.raw = data
	if len(n.labels) == 0 && len(data) > 0 {
		n.labels = make([]string, len(data[0].Outputs))
		for i := range n.labels {
			n.labels[i] = fmt.Sprintf("output%d", i)
		}
	}
}

// SetLabels names the output columns for the training report.
func (n *Network) SetLabels(labels []string) {
	n.labels = labels
}

// SetValidData pins the validation partition explicitly; the validation
// ratio is then ignored.
func (n *Network) SetValidData(inputs, outputs *Matrix) {
	n.validationData = inputs
	n.validationReal = outputs
}

// SetTestData pins the test partition explicitly; the test ratio is then
// ignored.
func (n *Network) SetTestData(inputs, outputs *Matrix) {
	n.testData = inputs
	n.testReal = outputs
}

// Learn runs the whole training loop. The boolean result reports numerical
// success: false means the loss diverged to NaN and the model must not be
// trusted. Configuration problems surface as errors before any epoch runs.
func (n *Network) Learn() (bool, error) {
	if err := n.check(); err != nil {
		return false, err
	}

	n.initLayers()
	if err := n.partitionData(); err != nil {
		return false, err
	}

	if last := n.layers[len(n.layers)-1]; last.Size() != n.trainReal.Cols() {
		return false, errors.Errorf("the last layer must have as many neurons as outputs: %d != %d",
			last.Size(), n.trainReal.Cols())
	}

	n.inputStats = Standardize(n.trainData)
	n.fitted = true
	StandardizeWith(n.validationData, n.inputStats)
	StandardizeWith(n.testData, n.inputStats)

	if n.param.NormalizeOutputs {
		n.outputRange = Normalize(n.trainReal)
		n.normalized = true
		NormalizeWith(n.validationReal, n.outputRange)
		NormalizeWith(n.testReal, n.outputRange)
	}

	initialLoss, err := n.computeLoss()
	if err != nil {
		return false, err
	}
	if math.IsNaN(initialLoss) || math.IsNaN(n.trainLosses[0]) {
		return false, nil
	}
	n.snapshot()
	n.optimalEpoch = 0

	stopper := newEarlyStopper(initialLoss, n.param.Plateau, n.param.Patience)
	for n.epoch = 1; n.epoch < n.param.Epochs; n.epoch++ {
		start := time.Now()
		if err := n.performOneEpoch(); err != nil {
			return false, err
		}

		validLoss, err := n.computeLoss()
		if err != nil {
			return false, err
		}
		if n.param.VerboseEvery > 0 && n.epoch%n.param.VerboseEvery == 0 {
			fmt.Printf("Epoch %d | Valid_Loss: %.6f | Train_Loss: %.6f | LR: %g | Time: %v\n",
				n.epoch, validLoss, n.trainLosses[n.epoch],
				n.param.Decay(n.param.LearningRate, n.epoch, n.param.LRDecayConstant, n.param.LRStepDecay),
				time.Since(start).Round(time.Millisecond))
		}
		if math.IsNaN(n.trainLosses[n.epoch]) || math.IsNaN(validLoss) {
			return false, nil
		}

		improved, stop := stopper.observe(n.epoch, validLoss)
		if improved {
			n.snapshot()
			n.optimalEpoch = n.epoch
		}
		if stop {
			break
		}
	}

	n.restore()
	if n.param.VerboseEvery > 0 {
		fmt.Printf("Optimal epoch: %d | First metric: %g | Second metric: %g\n",
			n.optimalEpoch, n.testMetric[n.optimalEpoch], n.testSecondMetric[n.optimalEpoch])
	}
	return true, nil
}

// Process runs inference on raw inputs: fitted standardization is applied to
// a copy, cross-entropy outputs are softmaxed, normalized outputs are mapped
// back to their original range.
func (n *Network) Process(inputs *Matrix) (*Matrix, error) {
	if n.fitted {
		inputs = inputs.Clone()
		StandardizeWith(inputs, n.inputStats)
	}
	out, err := n.forward(inputs)
	if err != nil {
		return nil, err
	}
	if n.normalized {
		for i := 0; i < out.Rows(); i++ {
			row := out.Row(i)
			for j := range row {
				row[j] = row[j]*(n.outputRange.Max[j]-n.outputRange.Min[j]) + n.outputRange.Min[j]
			}
		}
	}
	return out, nil
}

// forward pushes an already-preprocessed batch through the stack, layer by
// layer in order; layer i+1 never starts before layer i has fanned in.
func (n *Network) forward(inputs *Matrix) (*Matrix, error) {
	current := inputs
	var err error
	for _, l := range n.layers {
		current, err = l.Process(current, n.pool)
		if err != nil {
			return nil, err
		}
	}
	if n.param.Loss == LossCrossEntropy {
		current = Softmax(current)
	}
	return current, nil
}

// OptimizeInput runs the generative mode: gradient steps directly on the
// input vector toward the target output. The input update is strictly
// serial, neuron by neuron.
func (n *Network) OptimizeInput(input, target []float64, steps int, learningRate float64) error {
	real := NewMatrixFromSlice(1, len(target), target)

	for step := 0; step < steps; step++ {
		current := NewMatrixFromSlice(1, len(input), append([]float64(nil), input...))
		var err error
		for _, l := range n.layers {
			current, err = l.ProcessToLearn(current, 0, 0, n.rng.Uint64(), n.pool)
			if err != nil {
				return err
			}
		}

		_, grad := computeLossMatrix(n.param.Loss, real, current)
		gradients := grad.Transpose()
		for i := len(n.layers) - 1; i >= 0; i-- {
			if err := n.layers[i].ComputeGradients(gradients, n.pool); err != nil {
				return err
			}
			gradients = n.layers[i].Gradients()
		}

		n.layers[0].UpdateInput(input, learningRate)
	}
	return nil
}

// check rejects degenerate configurations before any epoch runs.
func (n *Network) check() error {
	if len(n.layers) == 0 {
		return errors.New("network has no layers")
	}
	if len(n.raw) == 0 {
		return errors.New("no dataset; call SetData before Learn")
	}
	if n.param.BatchSize < 1 {
		return errors.Errorf("batch size must be at least 1, got %d", n.param.BatchSize)
	}
	if n.param.Epochs < 1 {
		return errors.Errorf("epoch cap must be at least 1, got %d", n.param.Epochs)
	}
	if n.param.ValidationRatio < 0 || n.param.TestRatio < 0 || n.param.ValidationRatio+n.param.TestRatio >= 1 {
		return errors.Errorf("validation+test ratios must stay within [0, 1): %g + %g",
			n.param.ValidationRatio, n.param.TestRatio)
	}
	if n.param.Dropout < 0 || n.param.Dropout >= 1 || n.param.Dropconnect < 0 || n.param.Dropconnect >= 1 {
		return errors.New("dropout and dropconnect rates must stay within [0, 1)")
	}
	return nil
}

// initLayers wires each layer's fan from its neighbors: layer i's input fan
// is layer i-1's size (the raw feature count for layer 0) and its output fan
// hint is layer i+1's size (the label count for the last layer).
func (n *Network) initLayers() {
	for i, l := range n.layers {
		nbInputs := len(n.raw[0].Inputs)
		if i > 0 {
			nbInputs = n.layers[i-1].Size()
		}
		nbOutputs := len(n.raw[0].Outputs)
		if i < len(n.layers)-1 {
			nbOutputs = n.layers[i+1].Size()
		}
		l.init(nbInputs, nbOutputs, n.rng)
	}
}

// partitionData shuffles the raw dataset once, then splits it into train,
// validation and test partitions. The train partition is rounded to whole
// batches; a partial final batch is kept only when it is at least half full,
// otherwise its samples flow into the validation/test pools.
func (n *Network) partitionData() error {
	n.rng.Shuffle(len(n.raw), func(i, j int) {
		n.raw[i], n.raw[j] = n.raw[j], n.raw[i]
	})

	validRatio := n.param.ValidationRatio
	if n.validationData != nil {
		validRatio = 0
	}
	testRatio := n.param.TestRatio
	if n.testData != nil {
		testRatio = 0
	}

	total := len(n.raw)
	validation := validRatio * float64(total)
	test := testRatio * float64(total)

	nbBatch := (float64(total) - validation - test) / float64(n.param.BatchSize)
	if nbBatch-math.Trunc(nbBatch) >= 0.5 {
		nbBatch = math.Trunc(nbBatch) + 1
	} else {
		nbBatch = math.Trunc(nbBatch)
	}
	if nbBatch < 1 {
		return errors.Errorf("dataset of %d samples yields no full training batch of size %d",
			total, n.param.BatchSize)
	}

	nbTrain := int(nbBatch) * n.param.BatchSize
	if nbTrain > total {
		nbTrain = total
	}
	noTrain := total - nbTrain

	validCount := 0
	if validRatio+testRatio > 0 {
		validCount = int(math.Round(float64(noTrain) * validRatio / (validRatio + testRatio)))
	}
	testCount := noTrain - validCount

	cut1 := nbTrain
	cut2 := nbTrain + validCount
	trainPart := n.raw[:cut1]
	validPart := n.raw[cut1:cut2]
	testPart := n.raw[cut2 : cut2+testCount]

	n.trainData, n.trainReal = splitSamples(trainPart)
	if n.validationData == nil {
		n.validationData, n.validationReal = splitSamples(validPart)
	}
	if n.testData == nil {
		n.testData, n.testReal = splitSamples(testPart)
	}
	n.nbBatch = int(nbBatch)
	return nil
}

// earlyStopper tracks the lowest validation loss seen so far. A new loss
// counts as an improvement only when it falls below lowest*plateau, so tiny
// oscillations around a flat loss do not reset the patience counter.
type earlyStopper struct {
	lowest       float64
	plateau      float64
	patience     int
	optimalEpoch int
}

func newEarlyStopper(initialLoss, plateau float64, patience int) *earlyStopper {
	return &earlyStopper{lowest: initialLoss, plateau: plateau, patience: patience}
}

func (e *earlyStopper) observe(epoch int, loss float64) (improved, stop bool) {
	if loss < e.lowest*e.plateau {
		e.lowest = loss
		e.optimalEpoch = epoch
		improved = true
	}
	stop = epoch-e.optimalEpoch > e.patience
	return improved, stop
}

func splitSamples(samples []Sample) (*Matrix, *Matrix) {
	if len(samples) == 0 {
		return NewMatrix(0, 0), NewMatrix(0, 0)
	}
	inputs := NewMatrix(len(samples), len(samples[0].Inputs))
	outputs := NewMatrix(len(samples), len(samples[0].Outputs))
	for i, s := range samples {
		copy(inputs.Row(i), s.Inputs)
		copy(outputs.Row(i), s.Outputs)
	}
	return inputs, outputs
}

// performOneEpoch iterates the batches in partition order: forward with
// dropout/dropconnect, external cost, reverse-order backward, then a weight
// update on every layer with the decayed learning rate.
func (n *Network) performOneEpoch() error {
	lr := n.param.Decay(n.param.LearningRate, n.epoch, n.param.LRDecayConstant, n.param.LRStepDecay)

	for batch := 0; batch < n.nbBatch; batch++ {
		input := n.batchView(n.trainData, batch)
		output := n.batchView(n.trainReal, batch)

		current := input
		var err error
		for _, l := range n.layers {
			current, err = l.ProcessToLearn(current, n.param.Dropout, n.param.Dropconnect, n.rng.Uint64(), n.pool)
			if err != nil {
				return err
			}
		}

		_, grad := computeLossMatrix(n.param.Loss, output, current)
		gradients := grad.Transpose()
		for i := len(n.layers) - 1; i >= 0; i-- {
			if err := n.layers[i].ComputeGradients(gradients, n.pool); err != nil {
				return err
			}
			gradients = n.layers[i].Gradients()
		}

		for _, l := range n.layers {
			err := l.UpdateWeights(lr, n.param.L1, n.param.L2, n.param.Optimizer,
				n.param.Momentum, n.param.Window, n.param.OptimizerBias, n.pool)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

// batchView exposes batch rows as a zero-copy view of the partition. The
// last batch may run short when the partition was rounded up.
func (n *Network) batchView(m *Matrix, batch int) *Matrix {
	size := n.param.BatchSize
	if rest := m.Rows() - batch*size; rest < size {
		size = rest
	}
	start := batch * n.param.BatchSize * m.Cols()
	return NewMatrixFromSlice(size, m.Cols(), m.data[start:start+size*m.Cols()])
}

// computeLoss records the end-of-epoch losses and test metrics and returns
// the validation loss. Both losses carry the L1/L2 regularization penalty,
// computed once over every weight of every layer.
func (n *Network) computeLoss() (float64, error) {
	penalty := n.regularizationPenalty()

	trainPredicted, err := n.forward(n.trainData)
	if err != nil {
		return 0, err
	}
	trainLossMat, _ := computeLossMatrix(n.param.Loss, n.trainReal, trainPredicted)
	trainLoss := averageLoss(trainLossMat) + penalty

	// without a validation partition, the train loss drives early stopping
	validLoss := trainLoss
	if n.validationData.Rows() > 0 {
		validPredicted, err := n.forward(n.validationData)
		if err != nil {
			return 0, err
		}
		validLossMat, _ := computeLossMatrix(n.param.Loss, n.validationReal, validPredicted)
		validLoss = averageLoss(validLossMat) + penalty
	}

	first, second := 0.0, 0.0
	if n.testData.Rows() > 0 {
		testPredicted, err := n.forward(n.testData)
		if err != nil {
			return 0, err
		}
		first, second = computeMetric(n.param.Metric, n.testReal, testPredicted, n.param.ClassValidity)
	}

	n.trainLosses = append(n.trainLosses, trainLoss)
	n.validLosses = append(n.validLosses, validLoss)
	n.testMetric = append(n.testMetric, first)
	n.testSecondMetric = append(n.testSecondMetric, second)
	return validLoss, nil
}

func (n *Network) regularizationPenalty() float64 {
	l1, l2 := 0.0, 0.0
	for _, l := range n.layers {
		weights, _ := l.Weights()
		for _, sets := range weights {
			for _, set := range sets {
				for _, w := range set {
					l1 += math.Abs(w)
					l2 += w * w
				}
			}
		}
	}
	return n.param.L1*l1 + 0.5*n.param.L2*l2
}

func (n *Network) snapshot() {
	for _, l := range n.layers {
		l.Snapshot()
	}
}

func (n *Network) restore() {
	for _, l := range n.layers {
		l.Restore()
	}
}

// OptimalEpoch reports the epoch whose weights the network ended up with.
func (n *Network) OptimalEpoch() int {
	return n.optimalEpoch
}

// TrainLosses exposes the per-epoch training loss history.
func (n *Network) TrainLosses() []float64 {
	return n.trainLosses
}

// ValidationLosses exposes the per-epoch validation loss history.
func (n *Network) ValidationLosses() []float64 {
	return n.validLosses
}
