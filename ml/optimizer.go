package ml

import "math"

const (
	// OptimizerNone is plain gradient descent (momentum still applies when
	// the momentum hyperparameter is non-zero).
	OptimizerNone OptimizerKind = iota
	OptimizerMomentum
	OptimizerNesterov
	// OptimizerRMSProp scales the step by a window-smoothed second moment of
	// the gradient (automatic learning rate).
	OptimizerRMSProp
	// OptimizerAdaptiveRMSProp additionally tracks the best-seen second
	// moment and damps the step whenever recent gradient variance regresses
	// above it.
	OptimizerAdaptiveRMSProp
	// OptimizerNadam combines the Nesterov correction with the automatic
	// learning rate.
	OptimizerNadam
)

// OptimizerKind selects a combination of the three update-rule modes.
type OptimizerKind int

func (k OptimizerKind) modes() (nesterov, automaticLR, adaptiveLR bool) {
	switch k {
	case OptimizerNesterov:
		return true, false, false
	case OptimizerRMSProp:
		return false, true, false
	case OptimizerAdaptiveRMSProp:
		return false, true, true
	case OptimizerNadam:
		return true, true, false
	default:
		return false, false, false
	}
}

// optimizerState is the persistent per-weight-scalar state of the update
// rule. It is created at neuron init, mutated once per update call, and
// survives across epochs.
type optimizerState struct {
	prevGrad         float64
	prevGrad2        float64
	optimalPrevGrad2 float64
	prevUpdate       float64
}

func (st *optimizerState) reset() {
	*st = optimizerState{optimalPrevGrad2: math.Inf(1)}
}

// updateParams carries the hyperparameters of one updateWeights invocation.
type updateParams struct {
	learningRate float64
	momentum     float64
	window       float64
	bias         float64
	l1           float64
	l2           float64

	nesterov    bool
	automaticLR bool
	adaptiveLR  bool
}

// optimizedUpdate applies one optimizer step to a single coefficient and
// mutates the associated state in place. `gradient` is the accumulated
// negative loss gradient (cost functions emit real - predicted), so the
// coefficient moves by +update. The rule is deterministic and must be called
// exactly once per weight per update; it never clamps, so a NaN or Inf
// coefficient is left for the caller to detect.
func optimizedUpdate(coef *float64, st *optimizerState, gradient float64, p updateParams) {
	g := gradient - p.l1*sign(*coef) - p.l2*(*coef)

	lr := p.learningRate
	if p.automaticLR {
		st.prevGrad2 = p.window*st.prevGrad2 + (1-p.window)*g*g
		lr /= math.Sqrt(st.prevGrad2) + p.bias

		if p.adaptiveLR {
			if st.prevGrad2 <= st.optimalPrevGrad2 {
				st.optimalPrevGrad2 = st.prevGrad2
			} else {
				// variance regressed above its historical best: damp
				lr *= (st.optimalPrevGrad2 + p.bias) / (st.prevGrad2 + p.bias)
			}
		}
	}

	update := p.momentum*st.prevUpdate + lr*g
	applied := update
	if p.nesterov {
		// look-ahead correction
		applied = p.momentum*update + lr*g
	}

	*coef += applied
	st.prevUpdate = update
	st.prevGrad = g
}

func sign(x float64) float64 {
	switch {
	case x > 0:
		return 1
	case x < 0:
		return -1
	default:
		return 0
	}
}
