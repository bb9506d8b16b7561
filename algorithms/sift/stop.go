package sift

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
)

// StopMethod selects the convergence test applied after each sift iteration.
type StopMethod int

const (
	// StopSD stops when the energy of the mean envelope relative to the
	// working signal falls below SDThreshold.
	StopSD StopMethod = iota
	// StopRilling stops when the envelope mean is small compared with the
	// envelope amplitude over nearly all samples (Rilling, Flandrin &
	// Goncalves 2003).
	StopRilling
	// StopFixed stops after exactly FixedIterations iterations.
	StopFixed
	// StopEnergy stops when the working signal energy exceeds the mean
	// envelope energy by EnergyThreshold decibels.
	StopEnergy
)

func (m StopMethod) String() string {
	switch m {
	case StopSD:
		return "sd"
	case StopRilling:
		return "rilling"
	case StopFixed:
		return "fixed"
	case StopEnergy:
		return "energy"
	default:
		return fmt.Sprintf("StopMethod(%d)", int(m))
	}
}

// ParseStopMethod converts an option string into a StopMethod.
func ParseStopMethod(name string) (StopMethod, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sd":
		return StopSD, nil
	case "rilling":
		return StopRilling, nil
	case "fixed":
		return StopFixed, nil
	case "energy":
		return StopEnergy, nil
	default:
		return 0, configError("unknown stop method %q", name)
	}
}

func (m StopMethod) MarshalText() ([]byte, error) {
	if m < StopSD || m > StopEnergy {
		return nil, configError("unknown stop method %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *StopMethod) UnmarshalText(text []byte) error {
	parsed, err := ParseStopMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// StopConfig holds the parameters of every stop method. Only the fields of
// the selected Method are read.
type StopConfig struct {
	Method StopMethod `json:"stop_method"`

	SDThreshold float64 `json:"sd_thresh"`

	RillingSigma1      float64 `json:"rilling_sigma1"`
	RillingSigma2      float64 `json:"rilling_sigma2"`
	RillingTolerance   float64 `json:"rilling_tol"`
	RillingConsecutive int     `json:"rilling_consecutive"`

	FixedIterations int `json:"fixed_iters"`

	EnergyThreshold float64 `json:"energy_stop_thresh"` // dB
}

// DefaultStopConfig returns the sd criterion with a 0.1 threshold and the
// usual defaults for the other methods.
func DefaultStopConfig() StopConfig {
	return StopConfig{
		Method:             StopSD,
		SDThreshold:        0.1,
		RillingSigma1:      0.05,
		RillingSigma2:      0.5,
		RillingTolerance:   0.05,
		RillingConsecutive: 1,
		FixedIterations:    10,
		EnergyThreshold:    50,
	}
}

// Validate checks the fields used by the selected method.
func (c StopConfig) Validate() error {
	switch c.Method {
	case StopSD:
		if !(c.SDThreshold > 0) {
			return configError("sd threshold must be positive, got %v", c.SDThreshold)
		}
	case StopRilling:
		if !(c.RillingSigma1 > 0) || !(c.RillingSigma2 > c.RillingSigma1) {
			return configError("rilling thresholds need 0 < sigma1 < sigma2, got %v and %v", c.RillingSigma1, c.RillingSigma2)
		}
		if !(c.RillingTolerance > 0 && c.RillingTolerance < 1) {
			return configError("rilling tolerance must be in (0, 1), got %v", c.RillingTolerance)
		}
		if c.RillingConsecutive < 1 {
			return configError("rilling consecutive count must be at least 1, got %d", c.RillingConsecutive)
		}
	case StopFixed:
		if c.FixedIterations < 1 {
			return configError("fixed iteration count must be at least 1, got %d", c.FixedIterations)
		}
	case StopEnergy:
		if !(c.EnergyThreshold > 0) {
			return configError("energy threshold must be positive, got %v", c.EnergyThreshold)
		}
	default:
		return configError("unknown stop method %d", int(c.Method))
	}
	return nil
}

// StopCriterion decides whether the current iteration has converged. It is
// called with the working signal before the mean envelope is removed and may
// keep counters in state.
type StopCriterion interface {
	Evaluate(state *State, env *envelope.Envelope, mean []float64) (stop bool, metric float64)
}

// NewStopCriterion builds the criterion selected by c.
func NewStopCriterion(c StopConfig) (StopCriterion, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	switch c.Method {
	case StopRilling:
		return &rillingStop{
			sigma1:      c.RillingSigma1,
			sigma2:      c.RillingSigma2,
			tolerance:   c.RillingTolerance,
			consecutive: c.RillingConsecutive,
		}, nil
	case StopFixed:
		return &fixedStop{iterations: c.FixedIterations}, nil
	case StopEnergy:
		return &energyStop{threshold: c.EnergyThreshold}, nil
	default:
		return &sdStop{threshold: c.SDThreshold}, nil
	}
}

type sdStop struct {
	threshold float64
}

func (s *sdStop) Evaluate(state *State, env *envelope.Envelope, mean []float64) (bool, float64) {
	total := common.Energy(state.Working)
	if total == 0 {
		return true, 0
	}
	metric := common.Energy(mean) / total
	return metric < s.threshold, metric
}

type rillingStop struct {
	sigma1      float64
	sigma2      float64
	tolerance   float64
	consecutive int
}

// Evaluate reports the fraction of samples whose mean/amplitude ratio is above
// sigma1.
func (r *rillingStop) Evaluate(state *State, env *envelope.Envelope, mean []float64) (bool, float64) {
	amp := env.Amplitude()

	above := 0
	bounded := true
	for i := range mean {
		m := math.Abs(mean[i])
		var sigma float64
		switch {
		case amp[i] > 0:
			sigma = m / amp[i]
		case m > 0:
			sigma = math.Inf(1)
		}
		if sigma > r.sigma1 {
			above++
		}
		if sigma >= r.sigma2 {
			bounded = false
		}
	}

	fraction := float64(above) / float64(len(mean))
	if fraction < r.tolerance && bounded {
		state.streak++
	} else {
		state.streak = 0
	}
	return state.streak >= r.consecutive, fraction
}

type fixedStop struct {
	iterations int
}

func (f *fixedStop) Evaluate(state *State, env *envelope.Envelope, mean []float64) (bool, float64) {
	done := state.Iteration + 1
	return done >= f.iterations, float64(done)
}

type energyStop struct {
	threshold float64
}

func (e *energyStop) Evaluate(state *State, env *envelope.Envelope, mean []float64) (bool, float64) {
	meanEnergy := common.Energy(mean)
	if meanEnergy == 0 {
		return true, math.Inf(1)
	}
	db := 10 * math.Log10(common.Energy(state.Working)/meanEnergy)
	return db > e.threshold, db
}
