package ml

import (
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

const (
	DistribUniform DistribKind = iota
	DistribNormal
)

// DistribKind selects the distribution initial weights are drawn from.
// Uniform draws from [-boundary, boundary], normal from N(mean, deviation).
type DistribKind int

// InitScaling derives the characteristic scale of initial weights from the
// fan of the neuron. The result is a standard deviation for normal draws and
// is stretched to an equal-variance half-range for uniform draws. k is the
// number of weight sets of the neuron.
type InitScaling func(fanIn, fanOut, k int) float64

// XavierScaling is the default policy: Var(w) = 2 / (fanIn + fanOut).
// When the layer opts out of output-fan awareness, fanOut arrives as 0 and
// the policy degrades to Var(w) = 1 / fanIn.
func XavierScaling(fanIn, fanOut, _ int) float64 {
	if fanOut == 0 {
		return math.Sqrt(1.0 / float64(fanIn))
	}
	return math.Sqrt(2.0 / float64(fanIn+fanOut))
}

// drawWeights fills a fresh slice of n weights. meanBoundary is the mean for
// normal draws and the half-range boundary for uniform draws; a zero
// deviation/boundary falls back to the scaling policy.
func drawWeights(dist DistribKind, meanBoundary, deviation float64, n int, scale float64, src rand.Source) []float64 {
	w := make([]float64, n)

	switch dist {
	case DistribUniform:
		boundary := meanBoundary
		if boundary == 0 {
			// equal variance to a normal draw with stddev `scale`
			boundary = scale * math.Sqrt(3)
		}
		u := distuv.Uniform{Min: -boundary, Max: boundary, Src: src}
		for i := range w {
			w[i] = u.Rand()
		}
	case DistribNormal:
		sigma := deviation
		if sigma == 0 {
			sigma = scale
		}
		norm := distuv.Normal{Mu: meanBoundary, Sigma: sigma, Src: src}
		for i := range w {
			w[i] = norm.Rand()
		}
	default:
		panic("Unknown weight distribution")
	}

	return w
}
