package sift

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
)

// LoopState is the state of one sift loop.
type LoopState int

const (
	StateStart LoopState = iota
	StateIterating
	// StateConverged: the stop criterion was met and the IMF is emitted.
	StateConverged
	// StateMaxIterReached: the iteration ceiling was hit. The working signal
	// is still emitted as the IMF, with a warning.
	StateMaxIterReached
	// StateNoExtrema: the envelope could not be built. No IMF is produced and
	// the input of the loop is the trend.
	StateNoExtrema
)

func (s LoopState) String() string {
	switch s {
	case StateStart:
		return "start"
	case StateIterating:
		return "iterating"
	case StateConverged:
		return "converged"
	case StateMaxIterReached:
		return "max-iter-reached"
	case StateNoExtrema:
		return "no-extrema"
	default:
		return fmt.Sprintf("LoopState(%d)", int(s))
	}
}

func (s LoopState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Terminal reports whether s ends the loop.
func (s LoopState) Terminal() bool {
	return s == StateConverged || s == StateMaxIterReached || s == StateNoExtrema
}

// ProducedIMF reports whether a terminal state yields an IMF.
func (s LoopState) ProducedIMF() bool {
	return s == StateConverged || s == StateMaxIterReached
}

// State is the working data of a single sift loop. It belongs to one call
// and is dropped once the IMF is emitted.
type State struct {
	Working   []float64
	Iteration int
	History   []float64 // stop metric per iteration

	streak int // consecutive passing iterations, used by the rilling test
}

func newState(x []float64) *State {
	return &State{
		Working: common.Copy(x),
		History: make([]float64, 0, 16),
	}
}

// LoopOutcome is the terminal result of a sift loop.
type LoopOutcome struct {
	IMF        []float64 // nil when State is StateNoExtrema
	State      LoopState
	Iterations int
	Metric     float64 // last stop metric, NaN when no iteration ran
	History    []float64
}

// siftLoop removes the local mean from x until the criterion is satisfied,
// the iteration ceiling is hit or the envelope fails.
func siftLoop(x []float64, estimator *envelope.Estimator, criterion StopCriterion, maxIterations int, fixed bool) (LoopOutcome, error) {
	state := newState(x)
	phase := StateStart

	for !phase.Terminal() {
		if !fixed && state.Iteration >= maxIterations {
			phase = StateMaxIterReached
			break
		}

		env, err := estimator.Estimate(state.Working)
		if err != nil {
			if errors.Is(err, envelope.ErrInsufficientExtrema) {
				phase = StateNoExtrema
				break
			}
			return LoopOutcome{}, err
		}

		mean := env.Mean()
		stop, metric := criterion.Evaluate(state, env, mean)
		floats.Sub(state.Working, mean)
		state.Iteration++
		state.History = append(state.History, metric)

		if stop {
			phase = StateConverged
		} else {
			phase = StateIterating
		}
	}

	out := LoopOutcome{
		State:      phase,
		Iterations: state.Iteration,
		Metric:     lastMetric(state.History),
		History:    state.History,
	}
	if phase.ProducedIMF() {
		out.IMF = state.Working
	}
	return out, nil
}

func lastMetric(history []float64) float64 {
	if len(history) == 0 {
		return math.NaN()
	}
	return history[len(history)-1]
}
