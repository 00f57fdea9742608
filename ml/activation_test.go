package ml

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats"
)

// Every activation derivative must match the finite difference of its
// forward function, away from the relu kink.
func TestActivationDerivatives(t *testing.T) {
	settings := &fd.Settings{Formula: fd.Central, Step: 1e-6}
	points := []float64{-1.7, -0.3, 0.4, 2.1}

	for name, kind := range activationMap {
		for _, x := range points {
			numeric := fd.Derivative(kind.forward, x, settings)
			require.InDeltaf(t, numeric, kind.derivative(x), 1e-5, "%s at %v", name, x)
		}
	}
}

func TestActivationByNamePanicsOnUnknown(t *testing.T) {
	require.Panics(t, func() {
		ActivationByName("swish")
	})
}

func TestReluFamilyAtNegativeInputs(t *testing.T) {
	require.Equal(t, 0.0, relu(-2))
	require.Equal(t, 0.0, dfRelu(-2))
	require.InDelta(t, -0.02, leakyRelu(-2), 1e-12)
	require.InDelta(t, 0.01, dfLeakyRelu(-2), 1e-12)
}

func TestAggregationByNamePanicsOnUnknown(t *testing.T) {
	require.Panics(t, func() {
		AggregationByName("avgpool")
	})
}

func TestDotAggregation(t *testing.T) {
	v, set := aggregateDot([][]float64{{1, 2, 3}}, 0.5, []float64{1, 1, 1})
	require.Equal(t, 6.5, v)
	require.Equal(t, 0, set)
}

func TestXavierScalingFans(t *testing.T) {
	withFanOut := XavierScaling(100, 100, 1)
	withoutFanOut := XavierScaling(100, 0, 1)

	require.InDelta(t, 0.1, withFanOut, 1e-12)
	require.InDelta(t, 0.1, withoutFanOut, 1e-12)
	require.Greater(t, XavierScaling(10, 0, 1), withFanOut)
}

func TestDrawWeightsRespectsScale(t *testing.T) {
	src := rand.NewSource(1)

	uniform := drawWeights(DistribUniform, 0, 0, 1000, 0.1, src)
	require.Len(t, uniform, 1000)
	bound := 0.1 * 1.7320508075688772 // scale * sqrt(3)
	require.LessOrEqual(t, floats.Max(uniform), bound)
	require.GreaterOrEqual(t, floats.Min(uniform), -bound)

	normal := drawWeights(DistribNormal, 0, 0, 1000, 0.1, src)
	require.Len(t, normal, 1000)
	// not all identical, and centered near zero
	require.NotEqual(t, normal[0], normal[1])
	require.InDelta(t, 0.0, floats.Sum(normal)/1000, 0.02)
}
