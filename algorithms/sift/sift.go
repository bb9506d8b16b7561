// Package sift implements Empirical Mode Decomposition: the classic sift,
// the noise-assisted ensemble sift and the masked sift.
package sift

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
	"github.com/RyanBlaney/sonido-emd/logging"
)

// IMFDiagnostic describes how one IMF was obtained.
type IMFDiagnostic struct {
	Index      int       `json:"index"`
	State      LoopState `json:"state"`
	Iterations int       `json:"iterations"`
	Metric     float64   `json:"metric"`
	Warning    error     `json:"-"`
}

// Result is a decomposition: IMFs in extraction order (fastest first) and the
// trend. Summing the IMFs and the trend reproduces the input.
type Result struct {
	IMFs        [][]float64     `json:"imfs"`
	Trend       []float64       `json:"trend"`
	Diagnostics []IMFDiagnostic `json:"diagnostics,omitempty"`

	// MemberIMFCounts is the IMF count of every ensemble member, in member
	// order. Empty for the classic and mask sifts.
	MemberIMFCounts []int `json:"member_imf_counts,omitempty"`
}

// NumIMFs returns the number of IMFs.
func (r *Result) NumIMFs() int {
	return len(r.IMFs)
}

// Warnings returns the non-fatal warnings raised during the sift.
func (r *Result) Warnings() []error {
	var warnings []error
	for _, d := range r.Diagnostics {
		if d.Warning != nil {
			warnings = append(warnings, d.Warning)
		}
	}
	return warnings
}

// Reconstruct returns the sum of all IMFs and the trend.
func (r *Result) Reconstruct() []float64 {
	out := common.Copy(r.Trend)
	for _, imf := range r.IMFs {
		floats.Add(out, imf)
	}
	return out
}

// Sifter runs the classic sift. It is immutable after construction and can
// be shared between goroutines.
type Sifter struct {
	config    Config
	estimator *envelope.Estimator
	criterion StopCriterion
	logger    logging.Logger
}

// NewSifter validates config and builds a Sifter.
func NewSifter(config Config) (*Sifter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	estimator, err := envelope.NewEstimator(config.Envelope)
	if err != nil {
		return nil, err
	}
	criterion, err := NewStopCriterion(config.Stop)
	if err != nil {
		return nil, err
	}

	return &Sifter{
		config:    config,
		estimator: estimator,
		criterion: criterion,
		logger: logging.WithFields(logging.Fields{
			"component": "sift",
		}),
	}, nil
}

// WithLogger returns a copy of the Sifter that logs to logger.
func (s *Sifter) WithLogger(logger logging.Logger) *Sifter {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	clone := *s
	clone.logger = logger
	return &clone
}

// Config returns the sifter configuration.
func (s *Sifter) Config() Config {
	return s.config
}

// NextIMF runs one sift loop on x. x is not modified.
func (s *Sifter) NextIMF(x []float64) (LoopOutcome, error) {
	if err := validateSignal(x); err != nil {
		return LoopOutcome{}, err
	}
	return s.nextIMF(x)
}

func (s *Sifter) nextIMF(x []float64) (LoopOutcome, error) {
	return siftLoop(x, s.estimator, s.criterion, s.config.MaxIterations, s.config.Stop.Method == StopFixed)
}

// Sift decomposes x into IMFs and a trend.
func (s *Sifter) Sift(x []float64) (*Result, error) {
	if err := validateSignal(x); err != nil {
		return nil, err
	}

	s.logger.Info("STARTED: sift", logging.Fields{
		"samples":     len(x),
		"stop_method": s.config.Stop.Method.String(),
		"interp":      s.config.Envelope.Interp.String(),
	})

	result, err := s.sift(x, s.logger)
	if err != nil {
		s.logger.Error(err, "sift failed")
		return nil, err
	}

	s.logger.Info("COMPLETED: sift", logging.Fields{"imfs": result.NumIMFs()})
	return result, nil
}

// sift is the IMF extraction loop shared by all variants. Progress is logged
// to logger, which may be a no-op for ensemble members.
func (s *Sifter) sift(x []float64, logger logging.Logger) (*Result, error) {
	residual := common.Copy(x)
	inputEnergy := common.Energy(x)

	result := &Result{}
	prevEnergy := 0.0
	for layer := 0; s.config.MaxIMFs == 0 || layer < s.config.MaxIMFs; layer++ {
		out, err := s.nextIMF(residual)
		if err != nil {
			return nil, fmt.Errorf("IMF %d: %w", layer, err)
		}
		if out.State == StateNoExtrema {
			logger.Debug("residual has too few extrema, stopping", logging.Fields{"imfs": layer})
			break
		}

		energy := common.Energy(out.IMF)
		if layer > 0 && s.negligible(energy, prevEnergy) {
			logger.Debug("IMF negligible next to the previous one, stopping", logging.Fields{
				"imfs":     layer,
				"ratio_db": 10 * math.Log10(prevEnergy/energy),
			})
			break
		}
		prevEnergy = energy

		result.IMFs = append(result.IMFs, out.IMF)
		result.Diagnostics = append(result.Diagnostics, s.diagnose(layer, out, logger))
		floats.Sub(residual, out.IMF)

		if s.stopAfter(out.IMF, residual, inputEnergy, logger) {
			break
		}
	}

	result.Trend = residual
	return result, nil
}

func (s *Sifter) diagnose(layer int, out LoopOutcome, logger logging.Logger) IMFDiagnostic {
	d := IMFDiagnostic{
		Index:      layer,
		State:      out.State,
		Iterations: out.Iterations,
		Metric:     out.Metric,
	}

	if out.State == StateMaxIterReached {
		d.Warning = &MaxIterationWarning{IMF: layer, Iterations: out.Iterations, Metric: out.Metric}
		logger.Warn("iteration ceiling reached, emitting IMF anyway", logging.Fields{
			"imf":        layer,
			"iterations": out.Iterations,
			"metric":     out.Metric,
		})
	} else {
		logger.Verbose("IMF extracted", logging.Fields{
			"imf":        layer,
			"iterations": out.Iterations,
			"metric":     out.Metric,
		})
	}
	return d
}

// stopAfter applies the post-IMF stop rules: an IMF below SiftThreshold, or a
// residual whose energy has dropped far enough below the input.
func (s *Sifter) stopAfter(imf, residual []float64, inputEnergy float64, logger logging.Logger) bool {
	if s.config.SiftThreshold > 0 && common.SumAbs(imf) < s.config.SiftThreshold {
		logger.Debug("IMF below sift threshold, stopping")
		return true
	}

	if s.config.EnergyThresholdDB > 0 && inputEnergy > 0 {
		residualEnergy := common.Energy(residual)
		if residualEnergy == 0 {
			return true
		}
		ratio := 10 * math.Log10(inputEnergy/residualEnergy)
		if ratio > s.config.EnergyThresholdDB {
			logger.Debug("residual energy below threshold, stopping", logging.Fields{"ratio_db": ratio})
			return true
		}
	}
	return false
}

// negligible reports whether an IMF of the given energy falls more than
// RelativeEnergyDB below an IMF of energy prev.
func (s *Sifter) negligible(energy, prev float64) bool {
	if s.config.RelativeEnergyDB == 0 || prev == 0 {
		return false
	}
	if energy == 0 {
		return true
	}
	return 10*math.Log10(prev/energy) > s.config.RelativeEnergyDB
}

// Sift decomposes x with the classic sift.
func Sift(x []float64, config Config) (*Result, error) {
	sifter, err := NewSifter(config)
	if err != nil {
		return nil, err
	}
	return sifter.Sift(x)
}

func validateSignal(x []float64) error {
	if len(x) == 0 {
		return fmt.Errorf("%w: empty signal", ErrInvalidInput)
	}
	if !common.AllFinite(x) {
		return fmt.Errorf("%w: signal contains NaN or Inf", ErrInvalidInput)
	}
	return nil
}
