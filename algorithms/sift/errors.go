package sift

import (
	"fmt"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
	"github.com/RyanBlaney/sonido-emd/internal/workpool"
)

var (
	// ErrInvalidConfiguration marks an unknown method name or an out of range
	// option. Returned before any computation starts.
	ErrInvalidConfiguration = envelope.ErrInvalidConfiguration

	// ErrInsufficientExtrema is the envelope failure that ends a sift.
	ErrInsufficientExtrema = envelope.ErrInsufficientExtrema

	// ErrWorkerFailure marks a failed ensemble member or mask phase.
	ErrWorkerFailure = workpool.ErrWorkerFailure

	// ErrInvalidInput marks an empty or non-finite signal.
	ErrInvalidInput = common.ErrInvalidInput
)

// MaxIterationWarning reports an IMF emitted because the iteration ceiling was
// hit before the stop criterion was satisfied. It is attached to the result
// diagnostics and is never returned as the call's error.
type MaxIterationWarning struct {
	IMF        int
	Iterations int
	Metric     float64
}

func (w *MaxIterationWarning) Error() string {
	return fmt.Sprintf("IMF %d: stop criterion not met after %d iterations (metric %.4g)", w.IMF, w.Iterations, w.Metric)
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfiguration, fmt.Sprintf(format, args...))
}
