// Package envelope finds the local extrema of a signal and interpolates the
// upper and lower envelopes through them.
package envelope

import (
	"fmt"
	"strings"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
)

// Interp selects how envelopes are interpolated between extrema.
type Interp int

const (
	// InterpSpline is a cubic spline. Fast, may overshoot between extrema.
	InterpSpline Interp = iota
	// InterpMonotonicCubic is a monotone piecewise cubic (PCHIP). Never
	// overshoots, slower to fit than the spline.
	InterpMonotonicCubic
	// InterpAkima is the Akima spline, a middle ground between the two.
	InterpAkima
)

func (m Interp) String() string {
	switch m {
	case InterpSpline:
		return "spline"
	case InterpMonotonicCubic:
		return "monotonic-cubic"
	case InterpAkima:
		return "akima"
	default:
		return fmt.Sprintf("Interp(%d)", int(m))
	}
}

// ParseInterp converts an option string into an Interp. The names used by
// other EMD toolkits ("splrep", "pchip", "mono_pchip") are accepted as aliases.
func ParseInterp(name string) (Interp, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "spline", "splrep", "cubic":
		return InterpSpline, nil
	case "monotonic-cubic", "monotonic_cubic", "pchip", "mono_pchip":
		return InterpMonotonicCubic, nil
	case "akima":
		return InterpAkima, nil
	default:
		return 0, fmt.Errorf("%w: unknown interpolation method %q", ErrInvalidConfiguration, name)
	}
}

func (m Interp) MarshalText() ([]byte, error) {
	if !m.valid() {
		return nil, fmt.Errorf("%w: unknown interpolation method %d", ErrInvalidConfiguration, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Interp) UnmarshalText(text []byte) error {
	parsed, err := ParseInterp(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Interp) valid() bool {
	return m >= InterpSpline && m <= InterpAkima
}

func (m Interp) interpolationType() common.InterpolationType {
	switch m {
	case InterpMonotonicCubic:
		return common.MonotoneCubic
	case InterpAkima:
		return common.Akima
	default:
		return common.Cubic
	}
}

// Boundary selects how pseudo-extrema are synthesised past the signal ends.
type Boundary int

const (
	// BoundaryReflect mirrors extremum locations about the outermost
	// extremum and repeats its magnitude.
	BoundaryReflect Boundary = iota
	// BoundaryMirror mirrors both the locations and the magnitudes.
	BoundaryMirror
	// BoundaryNone interpolates through the detected extrema only.
	BoundaryNone
)

func (b Boundary) String() string {
	switch b {
	case BoundaryReflect:
		return "reflect"
	case BoundaryMirror:
		return "mirror"
	case BoundaryNone:
		return "none"
	default:
		return fmt.Sprintf("Boundary(%d)", int(b))
	}
}

// ParseBoundary converts an option string into a Boundary.
func ParseBoundary(name string) (Boundary, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "reflect", "":
		return BoundaryReflect, nil
	case "mirror", "symmetric":
		return BoundaryMirror, nil
	case "none":
		return BoundaryNone, nil
	default:
		return 0, fmt.Errorf("%w: unknown boundary policy %q", ErrInvalidConfiguration, name)
	}
}

func (b Boundary) MarshalText() ([]byte, error) {
	if b < BoundaryReflect || b > BoundaryNone {
		return nil, fmt.Errorf("%w: unknown boundary policy %d", ErrInvalidConfiguration, int(b))
	}
	return []byte(b.String()), nil
}

func (b *Boundary) UnmarshalText(text []byte) error {
	parsed, err := ParseBoundary(string(text))
	if err != nil {
		return err
	}
	*b = parsed
	return nil
}

// Options configures an Estimator.
type Options struct {
	Interp   Interp   `json:"interp_method"`
	Boundary Boundary `json:"boundary"`
	PadWidth int      `json:"pad_width"` // pseudo-extrema added at each end
}

// DefaultOptions returns spline interpolation with two reflected
// pseudo-extrema at each end.
func DefaultOptions() Options {
	return Options{
		Interp:   InterpSpline,
		Boundary: BoundaryReflect,
		PadWidth: 2,
	}
}

// Validate reports unknown enum values or a negative pad width.
func (o Options) Validate() error {
	if !o.Interp.valid() {
		return fmt.Errorf("%w: unknown interpolation method %d", ErrInvalidConfiguration, int(o.Interp))
	}
	if o.Boundary < BoundaryReflect || o.Boundary > BoundaryNone {
		return fmt.Errorf("%w: unknown boundary policy %d", ErrInvalidConfiguration, int(o.Boundary))
	}
	if o.PadWidth < 0 {
		return fmt.Errorf("%w: pad width must be non-negative, got %d", ErrInvalidConfiguration, o.PadWidth)
	}
	return nil
}

// Envelope holds the upper and lower envelopes of a signal. Both have the
// signal's length.
type Envelope struct {
	Upper []float64
	Lower []float64
}

// Mean returns (upper+lower)/2, the local mean removed by each sift step.
func (e *Envelope) Mean() []float64 {
	mean := make([]float64, len(e.Upper))
	for i := range mean {
		mean[i] = (e.Upper[i] + e.Lower[i]) / 2
	}
	return mean
}

// Amplitude returns |upper-lower|/2.
func (e *Envelope) Amplitude() []float64 {
	amp := make([]float64, len(e.Upper))
	for i := range amp {
		d := (e.Upper[i] - e.Lower[i]) / 2
		if d < 0 {
			d = -d
		}
		amp[i] = d
	}
	return amp
}

// Estimator computes envelopes. It holds no per-signal state and is safe for
// concurrent use.
type Estimator struct {
	opts         Options
	interpolator *common.Interpolator
}

// NewEstimator validates opts and returns an Estimator.
func NewEstimator(opts Options) (*Estimator, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	return &Estimator{
		opts:         opts,
		interpolator: common.NewInterpolator(opts.Interp.interpolationType()),
	}, nil
}

// Options returns the estimator configuration.
func (e *Estimator) Options() Options {
	return e.opts
}

// Estimate returns the upper and lower envelopes of x. It fails with
// ErrInsufficientExtrema when x has fewer than two maxima or two minima.
func (e *Estimator) Estimate(x []float64) (*Envelope, error) {
	maxLocs, minLocs := FindExtrema(x)
	if len(maxLocs) < 2 || len(minLocs) < 2 {
		return nil, fmt.Errorf("%w: %d maxima, %d minima", ErrInsufficientExtrema, len(maxLocs), len(minLocs))
	}

	upper, err := e.interpolate(maxLocs, x)
	if err != nil {
		return nil, fmt.Errorf("upper envelope: %w", err)
	}
	lower, err := e.interpolate(minLocs, x)
	if err != nil {
		return nil, fmt.Errorf("lower envelope: %w", err)
	}

	return &Envelope{Upper: upper, Lower: lower}, nil
}

// Upper returns only the upper envelope of x.
func (e *Estimator) Upper(x []float64) ([]float64, error) {
	maxLocs, _ := FindExtrema(x)
	if len(maxLocs) < 2 {
		return nil, fmt.Errorf("%w: %d maxima", ErrInsufficientExtrema, len(maxLocs))
	}
	return e.interpolate(maxLocs, x)
}

// Lower returns only the lower envelope of x.
func (e *Estimator) Lower(x []float64) ([]float64, error) {
	_, minLocs := FindExtrema(x)
	if len(minLocs) < 2 {
		return nil, fmt.Errorf("%w: %d minima", ErrInsufficientExtrema, len(minLocs))
	}
	return e.interpolate(minLocs, x)
}

func (e *Estimator) interpolate(locs []int, x []float64) ([]float64, error) {
	xs, ys := padExtrema(locs, x, e.opts.Boundary, e.opts.PadWidth)
	return e.interpolator.Evaluate(xs, ys, len(x))
}
