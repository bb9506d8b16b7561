// Package cycles splits IMFs into single oscillatory cycles using their
// instantaneous phase, locates the control points of each cycle and averages
// features by phase.
package cycles

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
	"github.com/RyanBlaney/sonido-emd/algorithms/spectral"
)

// Options configures cycle detection.
type Options struct {
	// PhaseStep is the phase jump, in radians, that marks the boundary
	// between two cycles. It also bounds how far from 0 and 2*pi a good
	// cycle may start and end.
	PhaseStep float64 `json:"phase_step"`
	// ReturnGood zeroes every cycle that fails the quality checks and
	// renumbers the rest.
	ReturnGood bool `json:"return_good"`
}

func DefaultOptions() Options {
	return Options{
		PhaseStep:  1.5 * math.Pi,
		ReturnGood: true,
	}
}

func (o Options) Validate() error {
	if !(o.PhaseStep > 0) || o.PhaseStep > 2*math.Pi {
		return fmt.Errorf("%w: phase step must be in (0, 2*pi], got %v", envelope.ErrInvalidConfiguration, o.PhaseStep)
	}
	return nil
}

// CycleVector labels every sample of one IMF with the cycle it belongs to.
// Labels start at 1 and increase by one at each phase jump; 0 means the
// sample is in no cycle. phase is wrapped to [0, 2*pi) as produced by
// spectral.FrequencyTransform.
//
// With ReturnGood, a cycle is kept only when its phase is strictly
// increasing, its lowest phase is below PhaseStep, its highest phase is in
// (2*pi-PhaseStep, 2*pi], none of its samples is set in exclude and, when imf
// is not nil, all four of its control points are found. exclude and imf may
// be nil.
func CycleVector(phase, imf []float64, exclude []bool, opts Options) ([]int, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	if len(phase) == 0 {
		return nil, fmt.Errorf("%w: empty phase", common.ErrInvalidInput)
	}
	if imf != nil && len(imf) != len(phase) {
		return nil, fmt.Errorf("%w: IMF has %d samples, phase has %d", common.ErrInvalidInput, len(imf), len(phase))
	}
	if exclude != nil && len(exclude) != len(phase) {
		return nil, fmt.Errorf("%w: exclusion mask has %d samples, phase has %d", common.ErrInvalidInput, len(exclude), len(phase))
	}

	labels := make([]int, len(phase))
	labels[0] = 1
	for i := 1; i < len(phase); i++ {
		labels[i] = labels[i-1]
		if math.Abs(phase[i]-phase[i-1]) > opts.PhaseStep {
			labels[i]++
		}
	}
	if !opts.ReturnGood {
		return labels, nil
	}

	var points []Points
	if imf != nil {
		points = ControlPoints(imf, labels)
	}

	renumbered := make([]int, labels[len(labels)-1]+1)
	next := 1
	for _, s := range spans(labels) {
		seg := phase[s.lo:s.hi]
		ok := increasing(seg) && inRange(seg, opts.PhaseStep) && !anySet(exclude, s.lo, s.hi)
		if ok && points != nil {
			ok = points[s.label-1].Complete()
		}
		if ok {
			renumbered[s.label] = next
			next++
		}
	}
	for i, l := range labels {
		labels[i] = renumbered[l]
	}
	return labels, nil
}

// CycleVectors runs CycleVector on every IMF of inst. imfs may be nil, in
// which case the control point check is skipped.
func CycleVectors(inst *spectral.Instantaneous, imfs [][]float64, opts Options) ([][]int, error) {
	if inst == nil || len(inst.Phase) == 0 {
		return nil, fmt.Errorf("%w: no instantaneous phase", common.ErrInvalidInput)
	}
	if imfs != nil && len(imfs) != len(inst.Phase) {
		return nil, fmt.Errorf("%w: %d IMFs for %d phase series", common.ErrInvalidInput, len(imfs), len(inst.Phase))
	}

	out := make([][]int, len(inst.Phase))
	for k, phase := range inst.Phase {
		var imf []float64
		if imfs != nil {
			imf = imfs[k]
		}
		labels, err := CycleVector(phase, imf, nil, opts)
		if err != nil {
			return nil, fmt.Errorf("IMF %d: %w", k, err)
		}
		out[k] = labels
	}
	return out, nil
}

// Count returns the number of cycles in a label vector.
func Count(labels []int) int {
	n := 0
	for _, l := range labels {
		n = max(n, l)
	}
	return n
}

type span struct {
	label  int
	lo, hi int
}

// spans returns the sample range [lo, hi) of every nonzero label, in label
// order. A label that does not occur gets an empty range.
func spans(labels []int) []span {
	out := make([]span, Count(labels))
	for i := range out {
		out[i] = span{label: i + 1, lo: -1}
	}
	for i, l := range labels {
		if l < 1 {
			continue
		}
		s := &out[l-1]
		if s.lo < 0 {
			s.lo = i
		}
		s.hi = i + 1
	}
	for i := range out {
		if out[i].lo < 0 {
			out[i].lo, out[i].hi = 0, 0
		}
	}
	return out
}

func increasing(phase []float64) bool {
	if len(phase) == 0 {
		return false
	}
	for i := 1; i < len(phase); i++ {
		if !(phase[i] > phase[i-1]) {
			return false
		}
	}
	return true
}

func inRange(phase []float64, step float64) bool {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, p := range phase {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	return lo < step && hi > 2*math.Pi-step && hi <= 2*math.Pi
}

func anySet(mask []bool, lo, hi int) bool {
	if mask == nil {
		return false
	}
	for _, m := range mask[lo:hi] {
		if m {
			return true
		}
	}
	return false
}
