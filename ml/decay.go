package ml

import "math"

// LRDecay maps the base learning rate and the epoch number to the effective
// learning rate for that epoch, applied uniformly to every layer.
type LRDecay func(base float64, epoch int, constant float64, period int) float64

// DecayNone keeps the base rate for the whole run.
func DecayNone(base float64, _ int, _ float64, _ int) float64 {
	return base
}

// DecayInverse divides the base rate by 1 + constant*epoch.
func DecayInverse(base float64, epoch int, constant float64, _ int) float64 {
	return base / (1 + constant*float64(epoch))
}

// DecayExp shrinks the base rate exponentially in the epoch number.
func DecayExp(base float64, epoch int, constant float64, _ int) float64 {
	return base * math.Exp(-constant*float64(epoch))
}

// DecayStep multiplies the rate by `constant` every `period` epochs.
func DecayStep(base float64, epoch int, constant float64, period int) float64 {
	if period < 1 {
		period = 1
	}
	return base * math.Pow(constant, float64(epoch/period))
}
