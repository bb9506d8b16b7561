package common

import (
	"fmt"

	"gonum.org/v1/gonum/interp"
)

// InterpolationType defines interpolation method
type InterpolationType int

const (
	Linear InterpolationType = iota
	// Cubic is a not-a-knot cubic spline. Smooth but may overshoot the knots.
	Cubic
	// MonotoneCubic is the Fritsch-Butland piecewise cubic Hermite scheme.
	// It never overshoots but costs more per fit.
	MonotoneCubic
	Akima
)

func (t InterpolationType) String() string {
	switch t {
	case Linear:
		return "linear"
	case Cubic:
		return "cubic"
	case MonotoneCubic:
		return "monotone-cubic"
	case Akima:
		return "akima"
	default:
		return "unknown"
	}
}

// minCubicKnots is the smallest knot count the cubic fits accept. Fewer knots
// fall back to linear interpolation.
const minCubicKnots = 4

// Interpolator fits a curve through (x, y) knots and samples it on the
// integer grid 0..n-1.
type Interpolator struct {
	method InterpolationType
}

// NewInterpolator creates a new interpolator
func NewInterpolator(method InterpolationType) *Interpolator {
	return &Interpolator{
		method: method,
	}
}

// Method returns the configured interpolation type.
func (ip *Interpolator) Method() InterpolationType {
	return ip.method
}

// Evaluate fits xs/ys and returns the curve at every integer position in
// [0, n). xs must be strictly increasing. Outside the knot range the value of
// the nearest end knot is used.
func (ip *Interpolator) Evaluate(xs, ys []float64, n int) ([]float64, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("knot length mismatch: %d x values, %d y values", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, fmt.Errorf("need at least 2 knots, got %d", len(xs))
	}
	for i := 1; i < len(xs); i++ {
		if xs[i] <= xs[i-1] {
			return nil, fmt.Errorf("knots not strictly increasing at %d", i)
		}
	}

	predictor := ip.predictor(len(xs))
	if err := predictor.Fit(xs, ys); err != nil {
		return nil, fmt.Errorf("fit %s: %w", ip.method, err)
	}

	out := make([]float64, n)
	for i := range out {
		out[i] = predictor.Predict(float64(i))
	}
	return out, nil
}

func (ip *Interpolator) predictor(knots int) interp.FittablePredictor {
	if knots < minCubicKnots {
		return &interp.PiecewiseLinear{}
	}

	switch ip.method {
	case Cubic:
		return &interp.NotAKnotCubic{}
	case MonotoneCubic:
		return &interp.FritschButland{}
	case Akima:
		return &interp.AkimaSpline{}
	default:
		return &interp.PiecewiseLinear{}
	}
}
