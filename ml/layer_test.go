package ml

import (
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"
)

func testLayer(size, nbInputs int, opts ...LayerOption) *Layer {
	l := newLayer(Dense(size, opts...))
	l.init(nbInputs, 0, rand.NewSource(42))
	return l
}

func TestLayerProcessShape(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	l := testLayer(5, 3, Activation("sigmoid"))
	inputs := NewMatrix(7, 3)

	out, err := l.Process(inputs, p)
	require.NoError(t, err)
	require.Equal(t, 7, out.Rows())
	require.Equal(t, 5, out.Cols())
}

// Column i of the layer output must be exactly neuron i's output, whatever
// the worker interleaving was.
func TestLayerColumnPerNeuron(t *testing.T) {
	p := NewPool(4)
	defer p.Close()

	l := testLayer(6, 4, Activation("tanh"))
	inputs := NewMatrixFromSlice(3, 4, []float64{
		0.1, 0.2, 0.3, 0.4,
		-1, 0.5, 2, -0.3,
		0, 0, 1, 1,
	})

	out, err := l.Process(inputs, p)
	require.NoError(t, err)

	for i, n := range l.neurons {
		want := n.process(inputs)
		for j, v := range want {
			require.Equal(t, v, out.At(j, i))
		}
	}
}

// The same seed must produce the same training forward pass regardless of
// the pool size: the per-neuron substreams never depend on scheduling.
func TestLayerThreadCountInvariance(t *testing.T) {
	inputs := NewMatrixFromSlice(4, 3, []float64{
		0.1, 0.2, 0.3,
		-1, 0.5, 2,
		0, 0, 1,
		0.7, -0.7, 0.1,
	})

	run := func(threads int) *Matrix {
		p := NewPool(threads)
		defer p.Close()
		l := testLayer(8, 3, Activation("sigmoid"))
		out, err := l.ProcessToLearn(inputs, 0.3, 0.3, 99, p)
		require.NoError(t, err)
		return out
	}

	serial := run(1)
	parallel := run(8)
	require.Equal(t, serial.data, parallel.data)
}

func TestLayerGradientsReduction(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	// two linear neurons over two inputs with hand-set weights
	l := newLayer(Dense(2, Activation("linear")))
	l.init(2, 0, rand.NewSource(1))
	l.neurons[0].setWeightsAndBias([][]float64{{1, 2}}, 0)
	l.neurons[1].setWeightsAndBias([][]float64{{3, 4}}, 0)

	inputs := NewMatrixFromSlice(1, 2, []float64{1, 1})
	_, err := l.ProcessToLearn(inputs, 0, 0, 1, p)
	require.NoError(t, err)

	// output gradient 1 for both neurons
	outputGrad := NewMatrixFromSlice(2, 1, []float64{1, 1})
	require.NoError(t, l.ComputeGradients(outputGrad, p))

	grad := l.Gradients()
	require.Equal(t, 2, grad.Rows())
	require.Equal(t, 1, grad.Cols())
	// input j accumulates w0[j] + w1[j]
	require.InDelta(t, 4.0, grad.At(0, 0), 1e-12)
	require.InDelta(t, 6.0, grad.At(1, 0), 1e-12)
}

func TestLayerDropoutScalesSurvivors(t *testing.T) {
	p := NewPool(1)
	defer p.Close()

	l := newLayer(Dense(1, Activation("linear")))
	l.init(1, 0, rand.NewSource(1))
	l.neurons[0].setWeightsAndBias([][]float64{{1}}, 0)

	inputs := NewMatrixFromSlice(1, 1, []float64{1})
	out, err := l.ProcessToLearn(inputs, 0.5, 0, 3, p)
	require.NoError(t, err)

	// a surviving output is rescaled by 1/(1-p), a dropped one is zero
	v := out.At(0, 0)
	require.True(t, v == 0 || v == 2, "got %v", v)
}

func TestLayerResizeReplacesNeurons(t *testing.T) {
	l := newLayer(Dense(3))
	require.Equal(t, 3, l.Size())

	l.Resize(5)
	require.Equal(t, 5, l.Size())
}

func TestLayerSurfacesNeuronPanic(t *testing.T) {
	p := NewPool(2)
	defer p.Close()

	l := testLayer(2, 3)
	// wrong input width makes the dot product panic inside the worker
	inputs := NewMatrix(1, 5)

	_, err := l.Process(inputs, p)
	require.Error(t, err)
}

func BenchmarkLayerForward(b *testing.B) {
	for _, threads := range []int{1, 4} {
		p := NewPool(threads)
		l := testLayer(128, 64, Activation("sigmoid"))
		inputs := NewMatrix(32, 64)

		name := "Serial"
		if threads > 1 {
			name = "Parallel"
		}
		b.Run(name, func(b *testing.B) {
			for n := 0; n < b.N; n++ {
				if _, err := l.Process(inputs, p); err != nil {
					b.Fatal(err)
				}
			}
		})
		p.Close()
	}
}

func BenchmarkLayerBackward(b *testing.B) {
	p := NewPool(4)
	defer p.Close()

	l := testLayer(128, 64, Activation("sigmoid"))
	inputs := NewMatrix(32, 64)
	if _, err := l.ProcessToLearn(inputs, 0, 0, 1, p); err != nil {
		b.Fatal(err)
	}
	outputGrad := NewMatrix(128, 32)

	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		if err := l.ComputeGradients(outputGrad, p); err != nil {
			b.Fatal(err)
		}
		l.Gradients()
	}
}
