package common

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Basic numeric helpers shared by the sift and spectrum code, backed by gonum

// Mean calculates the arithmetic mean of a slice using gonum
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return stat.Mean(data, nil)
}

// Variance calculates the sample variance of a slice using gonum
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return stat.Variance(data, nil)
}

// StandardDeviation calculates the sample standard deviation
func StandardDeviation(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}
	return math.Sqrt(Variance(data))
}

// PopulationStd is the standard deviation with a 1/N normaliser. Noise and
// mask amplitudes are scaled by this value.
func PopulationStd(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(stat.PopVariance(data, nil))
}

// Energy returns the sum of squares.
func Energy(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Dot(data, data)
}

// SumAbs returns the L1 norm.
func SumAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, 1)
}

// MaxAbs returns the largest absolute value.
func MaxAbs(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return floats.Norm(data, math.Inf(1))
}

// RMS calculates root mean square
func RMS(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return math.Sqrt(Energy(data) / float64(len(data)))
}

// Copy returns a fresh copy of data.
func Copy(data []float64) []float64 {
	out := make([]float64, len(data))
	copy(out, data)
	return out
}

// Sub returns a - b elementwise. Panics on length mismatch like gonum.
func Sub(a, b []float64) []float64 {
	out := make([]float64, len(a))
	floats.SubTo(out, a, b)
	return out
}

// SumSignals adds equal length signals elementwise. Returns nil for no input.
func SumSignals(signals [][]float64) []float64 {
	if len(signals) == 0 {
		return nil
	}
	out := Copy(signals[0])
	for _, s := range signals[1:] {
		floats.Add(out, s)
	}
	return out
}

// Linspace returns n evenly spaced values over [lo, hi].
func Linspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.Span(make([]float64, n), lo, hi)
}

// Logspace returns n values evenly spaced on a log10 axis over [lo, hi].
// Both bounds must be positive.
func Logspace(lo, hi float64, n int) []float64 {
	if n <= 0 {
		return []float64{}
	}
	if n == 1 {
		return []float64{lo}
	}
	return floats.LogSpan(make([]float64, n), lo, hi)
}

// AllFinite reports whether every value is neither NaN nor Inf.
func AllFinite(data []float64) bool {
	for _, v := range data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Clamp restricts value to [min, max]
func Clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
