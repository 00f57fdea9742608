package ml

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	AggrDot AggregationKind = iota
	AggrMaxout
)

var aggregationMap = map[string]AggregationKind{
	"dot":    AggrDot,
	"maxout": AggrMaxout,
}

// AggregationKind selects how a neuron combines its weighted inputs into one
// pre-activation scalar. Dot uses the single weight set; maxout keeps k sets
// and selects the strongest response per sample.
type AggregationKind int

type aggregationEntry struct {
	// aggregate returns the pre-activation value and the index of the weight
	// set that produced it. The chosen index drives both gradient flavors:
	// d(preact)/d(w[set][j]) = input[j] and d(preact)/d(input[j]) = w[set][j].
	aggregate func(weights [][]float64, bias float64, input []float64) (float64, int)
}

var aggregationTable = [...]aggregationEntry{
	AggrDot:    {aggregateDot},
	AggrMaxout: {aggregateMaxout},
}

// AggregationByName resolves a user-facing aggregation name.
func AggregationByName(name string) AggregationKind {
	aggr, ok := aggregationMap[name]
	if !ok {
		panic("Unknown aggregation: " + name)
	}
	return aggr
}

func (a AggregationKind) aggregate(weights [][]float64, bias float64, input []float64) (float64, int) {
	return aggregationTable[a].aggregate(weights, bias, input)
}

func aggregateDot(weights [][]float64, bias float64, input []float64) (float64, int) {
	return floats.Dot(weights[0], input) + bias, 0
}

func aggregateMaxout(weights [][]float64, bias float64, input []float64) (float64, int) {
	best := math.Inf(-1)
	bestSet := 0
	for set := range weights {
		v := floats.Dot(weights[set], input) + bias
		if v > best {
			best = v
			bestSet = set
		}
	}
	return best, bestSet
}
