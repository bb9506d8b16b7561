package envelope

import "errors"

var (
	// ErrInsufficientExtrema is returned when a signal has fewer than two
	// maxima or two minima. It is not fatal: it marks a residual that cannot
	// yield another IMF.
	ErrInsufficientExtrema = errors.New("insufficient extrema")

	// ErrInvalidConfiguration is returned when an option is unknown or out
	// of range. No computation is attempted.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)
