package ml

import (
	"encoding/gob"
	"os"

	"github.com/pkg/errors"
)

type savedLayer struct {
	Weights [][][]float64 // neuron -> weight set -> weights
	Biases  []float64
}

type savedNetwork struct {
	Labels      []string
	Seed        uint64
	Layers      []savedLayer
	InputStats  ColumnStats
	OutputRange ColumnRange
	Fitted      bool
	Normalized  bool
}

// SaveToFile persists the trained weights and the fitted preprocessing
// parameters. The architecture itself is not saved; loading requires a
// network built with the same layer stack.
func (n *Network) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "cannot create model file")
	}
	defer f.Close()

	saved := savedNetwork{
		Labels:      n.labels,
		Seed:        n.seed,
		Layers:      make([]savedLayer, len(n.layers)),
		InputStats:  n.inputStats,
		OutputRange: n.outputRange,
		Fitted:      n.fitted,
		Normalized:  n.normalized,
	}
	for i, l := range n.layers {
		saved.Layers[i].Weights, saved.Layers[i].Biases = l.Weights()
	}

	if err := gob.NewEncoder(f).Encode(saved); err != nil {
		return errors.Wrap(err, "cannot encode model")
	}
	return nil
}

// LoadFromFile restores weights saved by SaveToFile into this network. The
// layer stack must already match the saved shapes; any mismatch is rejected
// before a single weight is touched.
func (n *Network) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrap(err, "cannot open model file")
	}
	defer f.Close()

	var saved savedNetwork
	if err := gob.NewDecoder(f).Decode(&saved); err != nil {
		return errors.Wrap(err, "cannot decode model")
	}

	if len(saved.Layers) != len(n.layers) {
		return errors.Errorf("layer count mismatch: model has %d, network has %d",
			len(saved.Layers), len(n.layers))
	}
	for i, sl := range saved.Layers {
		if err := n.layers[i].checkShapes(sl.Weights, sl.Biases); err != nil {
			return errors.Wrapf(err, "layer %d", i)
		}
	}

	for i, sl := range saved.Layers {
		n.layers[i].setWeights(sl.Weights, sl.Biases)
	}
	n.labels = saved.Labels
	n.inputStats = saved.InputStats
	n.outputRange = saved.OutputRange
	n.fitted = saved.Fitted
	n.normalized = saved.Normalized
	return nil
}

func (l *Layer) checkShapes(weights [][][]float64, biases []float64) error {
	if len(weights) != len(l.neurons) || len(biases) != len(l.neurons) {
		return errors.Errorf("neuron count mismatch: model has %d, layer has %d",
			len(weights), len(l.neurons))
	}
	for i, sets := range weights {
		have := l.neurons[i].weights
		if len(have) == 0 {
			// uninitialized neuron, it takes the saved shapes as is
			continue
		}
		if len(sets) != len(have) {
			return errors.Errorf("neuron %d weight set count mismatch: %d != %d",
				i, len(sets), len(have))
		}
		for k, set := range sets {
			if len(set) != len(have[k]) {
				return errors.Errorf("neuron %d set %d size mismatch: %d != %d",
					i, k, len(set), len(have[k]))
			}
		}
	}
	return nil
}

func (l *Layer) setWeights(weights [][][]float64, biases []float64) {
	for i, neuron := range l.neurons {
		neuron.setWeightsAndBias(weights[i], biases[i])
	}
}
