// Package testutil holds deterministic signals and tolerance checks shared
// by the package tests.
package testutil

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"
)

// Sine returns amplitude*sin(2*pi*freq*t) sampled at sampleRate.
func Sine(freqHz, sampleRate, amplitude float64, length int) []float64 {
	out := make([]float64, length)
	step := 2 * math.Pi * freqHz / sampleRate
	for i := range out {
		out[i] = amplitude * math.Sin(step*float64(i))
	}
	return out
}

// GaussianNoise returns zero-mean white noise with standard deviation std,
// reproducible for a given seed.
func GaussianNoise(seed uint64, std float64, length int) []float64 {
	dist := distuv.Normal{Mu: 0, Sigma: std, Src: rand.NewPCG(seed, 0)}
	out := make([]float64, length)
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// Ramp returns a straight line from start with the given slope per sample.
func Ramp(start, slope float64, length int) []float64 {
	out := make([]float64, length)
	for i := range out {
		out[i] = start + slope*float64(i)
	}
	return out
}

// Sum adds signals of equal length sample by sample.
func Sum(signals ...[]float64) []float64 {
	if len(signals) == 0 {
		return nil
	}
	out := make([]float64, len(signals[0]))
	for _, s := range signals {
		for i := range out {
			out[i] += s[i]
		}
	}
	return out
}

// TwoTone is a fast and a slow sine, the standard two-IMF test signal.
func TwoTone(length int) []float64 {
	return Sum(
		Sine(37, 1000, 1, length),
		Sine(4, 1000, 2, length),
	)
}
