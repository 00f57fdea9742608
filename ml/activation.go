package ml

import "math"

const (
	ActLinear ActivationKind = iota
	ActRelu
	ActLeakyRelu
	ActSigmoid
	ActTanh
	ActGelu
)

const leak = 0.01

var activationMap = map[string]ActivationKind{
	"linear":    ActLinear,
	"relu":      ActRelu,
	"leakyrelu": ActLeakyRelu,
	"sigmoid":   ActSigmoid,
	"tanh":      ActTanh,
	"gelu":      ActGelu,
}

// ActivationKind selects one entry of the closed activation table. Keeping
// this a tagged variant instead of an interface keeps the per-neuron hot path
// free of dynamic dispatch.
type ActivationKind int

type activationEntry struct {
	forward    func(float64) float64
	derivative func(float64) float64
}

var activationTable = [...]activationEntry{
	ActLinear:    {linear, dfLinear},
	ActRelu:      {relu, dfRelu},
	ActLeakyRelu: {leakyRelu, dfLeakyRelu},
	ActSigmoid:   {sigmoid, dfSigmoid},
	ActTanh:      {tanhAct, dfTanh},
	ActGelu:      {gelu, dfGelu},
}

// ActivationByName resolves a user-facing activation name.
func ActivationByName(name string) ActivationKind {
	act, ok := activationMap[name]
	if !ok {
		panic("Unknown activation: " + name)
	}
	return act
}

func (a ActivationKind) forward(x float64) float64 {
	return activationTable[a].forward(x)
}

// derivative is evaluated at the cached pre-activation value.
func (a ActivationKind) derivative(x float64) float64 {
	return activationTable[a].derivative(x)
}

func linear(x float64) float64   { return x }
func dfLinear(_ float64) float64 { return 1 }

func relu(x float64) float64 {
	if x > 0 {
		return x
	}
	return 0
}

// Subgradient convention: derivative is 0 at exactly 0.
func dfRelu(x float64) float64 {
	if x > 0 {
		return 1
	}
	return 0
}

func leakyRelu(x float64) float64 {
	if x > 0 {
		return x
	}
	return leak * x
}

func dfLeakyRelu(x float64) float64 {
	if x > 0 {
		return 1
	}
	return leak
}

func sigmoid(x float64) float64 {
	return 1.0 / (1.0 + math.Exp(-x))
}

func dfSigmoid(x float64) float64 {
	s := sigmoid(x)
	return s * (1 - s)
}

func tanhAct(x float64) float64 { return math.Tanh(x) }

func dfTanh(x float64) float64 {
	t := math.Tanh(x)
	return 1 - t*t
}

func gelu(x float64) float64 {
	return 0.5 * x * (1 + math.Tanh(math.Sqrt(2/math.Pi)*(x+0.044715*x*x*x)))
}

func dfGelu(x float64) float64 {
	inner := math.Sqrt(2/math.Pi) * (x + 0.044715*x*x*x)
	t := math.Tanh(inner)
	dInner := math.Sqrt(2 / math.Pi) * (1 + 3*0.044715*x*x)
	return 0.5*(1+t) + 0.5*x*(1-t*t)*dInner
}

// Softmax applies row-wise softmax and returns a new matrix. Used to turn the
// linear output of a cross-entropy trained network into class scores.
func Softmax(m *Matrix) *Matrix {
	out := m.Clone()
	for i := 0; i < out.rows; i++ {
		row := out.Row(i)
		maxVal := math.Inf(-1)
		for _, v := range row {
			if v > maxVal {
				maxVal = v
			}
		}
		sum := 0.0
		for j, v := range row {
			row[j] = math.Exp(v - maxVal)
			sum += row[j]
		}
		for j := range row {
			row[j] /= sum
		}
	}
	return out
}
