package sift

import (
	"fmt"
	"math"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
	"github.com/RyanBlaney/sonido-emd/algorithms/spectral"
	"github.com/RyanBlaney/sonido-emd/internal/workpool"
	"github.com/RyanBlaney/sonido-emd/logging"
)

// MaskFreqMode selects how the first mask frequency is chosen when no
// explicit list is configured.
type MaskFreqMode int

const (
	// MaskZeroCrossing uses the zero-crossing rate of an unmasked first IMF.
	MaskZeroCrossing MaskFreqMode = iota
	// MaskInstFreq uses the amplitude-weighted mean instantaneous frequency
	// of an unmasked first IMF.
	MaskInstFreq
	// MaskFixed uses FirstFrequency.
	MaskFixed
)

func (m MaskFreqMode) String() string {
	switch m {
	case MaskZeroCrossing:
		return "zc"
	case MaskInstFreq:
		return "if"
	case MaskFixed:
		return "fixed"
	default:
		return fmt.Sprintf("MaskFreqMode(%d)", int(m))
	}
}

func (m MaskFreqMode) MarshalText() ([]byte, error) {
	if m < MaskZeroCrossing || m > MaskFixed {
		return nil, configError("unknown mask frequency mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *MaskFreqMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "zc":
		*m = MaskZeroCrossing
	case "if":
		*m = MaskInstFreq
	case "fixed":
		*m = MaskFixed
	default:
		return configError("unknown mask frequency mode %q", string(text))
	}
	return nil
}

// MaskAmpMode selects how the mask amplitude is scaled.
type MaskAmpMode int

const (
	// MaskAmpRatioIMF scales layer k by the standard deviation of IMF k-1
	// (the input for the first layer).
	MaskAmpRatioIMF MaskAmpMode = iota
	// MaskAmpRatioSignal scales every layer by the input standard deviation.
	MaskAmpRatioSignal
	// MaskAmpAbsolute uses Amplitude as is.
	MaskAmpAbsolute
)

func (m MaskAmpMode) String() string {
	switch m {
	case MaskAmpRatioIMF:
		return "ratio_imf"
	case MaskAmpRatioSignal:
		return "ratio_sig"
	case MaskAmpAbsolute:
		return "abs"
	default:
		return fmt.Sprintf("MaskAmpMode(%d)", int(m))
	}
}

func (m MaskAmpMode) MarshalText() ([]byte, error) {
	if m < MaskAmpRatioIMF || m > MaskAmpAbsolute {
		return nil, configError("unknown mask amplitude mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *MaskAmpMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "ratio_imf":
		*m = MaskAmpRatioIMF
	case "ratio_sig":
		*m = MaskAmpRatioSignal
	case "abs":
		*m = MaskAmpAbsolute
	default:
		return configError("unknown mask amplitude mode %q", string(text))
	}
	return nil
}

// MaskConfig configures MaskSift. Frequencies are in cycles per sample.
type MaskConfig struct {
	Sift Config `json:"sift"`

	Phases int `json:"nphases"`

	// Frequencies lists the mask frequency per IMF. When the sift runs past
	// the end of the list each further mask is the previous one divided by
	// StepFactor. Empty means FirstMode picks the first mask.
	Frequencies    []float64    `json:"mask_freqs,omitempty"`
	FirstMode      MaskFreqMode `json:"first_mask_mode"`
	FirstFrequency float64      `json:"first_mask_freq,omitempty"`
	StepFactor     float64      `json:"mask_step_factor"`

	Amplitude     float64     `json:"mask_amp"`
	AmplitudeMode MaskAmpMode `json:"mask_amp_mode"`

	Workers int `json:"n_workers"`
}

// DefaultMaskConfig returns 4 phases, a zero-crossing first mask halved for
// each following IMF, and a mask amplitude equal to the previous IMF's
// standard deviation.
func DefaultMaskConfig() MaskConfig {
	return MaskConfig{
		Sift:          DefaultConfig(),
		Phases:        4,
		FirstMode:     MaskZeroCrossing,
		StepFactor:    2,
		Amplitude:     1,
		AmplitudeMode: MaskAmpRatioIMF,
		Workers:       1,
	}
}

// Validate checks every option.
func (c MaskConfig) Validate() error {
	if err := c.Sift.Validate(); err != nil {
		return err
	}
	if c.Phases < 1 {
		return configError("phase count must be at least 1, got %d", c.Phases)
	}
	if !(c.StepFactor > 0) {
		return configError("mask step factor must be positive, got %v", c.StepFactor)
	}
	if c.Amplitude < 0 {
		return configError("mask amplitude must be non-negative, got %v", c.Amplitude)
	}
	if c.Workers < 1 {
		return configError("worker count must be at least 1, got %d", c.Workers)
	}
	for i, f := range c.Frequencies {
		if !(f > 0 && f <= 0.5) {
			return configError("mask frequency %d must be in (0, 0.5] cycles/sample, got %v", i, f)
		}
	}
	if len(c.Frequencies) == 0 && c.FirstMode == MaskFixed && !(c.FirstFrequency > 0 && c.FirstFrequency <= 0.5) {
		return configError("fixed first mask frequency must be in (0, 0.5] cycles/sample, got %v", c.FirstFrequency)
	}
	if _, err := c.FirstMode.MarshalText(); err != nil {
		return err
	}
	if _, err := c.AmplitudeMode.MarshalText(); err != nil {
		return err
	}
	return nil
}

// MaskSifter runs the mask sift.
type MaskSifter struct {
	config MaskConfig
	sifter *Sifter
	logger logging.Logger
}

// NewMaskSifter validates config and builds a MaskSifter.
func NewMaskSifter(config MaskConfig) (*MaskSifter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	sifter, err := NewSifter(config.Sift)
	if err != nil {
		return nil, err
	}
	return &MaskSifter{
		config: config,
		sifter: sifter,
		logger: logging.WithFields(logging.Fields{
			"component": "mask_sift",
		}),
	}, nil
}

// WithLogger returns a copy that logs to logger.
func (m *MaskSifter) WithLogger(logger logging.Logger) *MaskSifter {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	clone := *m
	clone.logger = logger
	return &clone
}

// Sift decomposes x. For IMF k a cosine mask at frequency z_k is added to
// the residual at Phases equally spaced phase offsets, each masked copy is
// sifted once, the mask is subtracted again and the phase results are
// averaged in phase order.
func (m *MaskSifter) Sift(x []float64) (*Result, error) {
	if err := validateSignal(x); err != nil {
		return nil, err
	}

	m.logger.Info("STARTED: mask_sift", logging.Fields{
		"samples": len(x),
		"phases":  m.config.Phases,
		"workers": m.config.Workers,
	})

	freqs, err := m.maskFrequencies(x)
	if err != nil {
		return nil, err
	}

	signalStd := common.PopulationStd(x)
	ampScale := signalStd
	inputEnergy := common.Energy(x)
	residual := common.Copy(x)
	quiet := &logging.NoOpLogger{}

	result := &Result{}
	for layer := 0; m.config.Sift.MaxIMFs == 0 || layer < m.config.Sift.MaxIMFs; layer++ {
		if !hasEnvelope(residual) {
			m.logger.Debug("residual has too few extrema, stopping", logging.Fields{"imfs": layer})
			break
		}

		freq := freqs.at(layer)
		amp := m.config.Amplitude
		if m.config.AmplitudeMode != MaskAmpAbsolute {
			amp *= ampScale
		}

		imf, diag, ok, err := m.layer(residual, layer, freq, amp)
		if err != nil {
			m.logger.Error(err, "mask phase failed")
			return nil, err
		}
		if !ok {
			m.logger.Debug("masked residual has too few extrema, stopping", logging.Fields{"imfs": layer})
			break
		}

		if diag.State == StateMaxIterReached {
			m.logger.Warn("iteration ceiling reached in a mask phase", logging.Fields{"imf": layer, "iterations": diag.Iterations})
		} else {
			m.logger.Verbose("IMF extracted", logging.Fields{"imf": layer, "mask_freq": freq, "mask_amp": amp})
		}

		result.IMFs = append(result.IMFs, imf)
		result.Diagnostics = append(result.Diagnostics, diag)
		floats.Sub(residual, imf)

		if m.config.AmplitudeMode == MaskAmpRatioIMF {
			ampScale = common.PopulationStd(imf)
		}
		if m.sifter.stopAfter(imf, residual, inputEnergy, quiet) {
			break
		}
	}

	result.Trend = residual
	m.logger.Info("COMPLETED: mask_sift", logging.Fields{"imfs": result.NumIMFs()})
	return result, nil
}

type phaseOutcome struct {
	imf        []float64 // nil when the masked copy had too few extrema
	state      LoopState
	iterations int
	metric     float64
}

// layer extracts one IMF from residual using masks at every phase. ok is
// false when any masked copy failed to yield an IMF.
func (m *MaskSifter) layer(residual []float64, layer int, freq, amp float64) (imf []float64, diag IMFDiagnostic, ok bool, err error) {
	n := len(residual)
	phases := m.config.Phases

	outcomes, err := workpool.Map(phases, m.config.Workers, func(p int) (phaseOutcome, error) {
		mask := Mask(n, freq, amp, 2*math.Pi*float64(p)/float64(phases))
		masked := common.Copy(residual)
		floats.Add(masked, mask)

		out, err := m.sifter.nextIMF(masked)
		if err != nil {
			return phaseOutcome{}, fmt.Errorf("IMF %d phase %d: %w", layer, p, err)
		}
		po := phaseOutcome{state: out.State, iterations: out.Iterations, metric: out.Metric}
		if out.State.ProducedIMF() {
			floats.Sub(out.IMF, mask)
			po.imf = out.IMF
		}
		return po, nil
	})
	if err != nil {
		return nil, IMFDiagnostic{}, false, err
	}

	imf = make([]float64, n)
	diag = IMFDiagnostic{Index: layer, State: StateConverged}
	for _, o := range outcomes {
		if o.imf == nil {
			return nil, IMFDiagnostic{}, false, nil
		}
		floats.Add(imf, o.imf)
		diag.Iterations = max(diag.Iterations, o.iterations)
		if !math.IsNaN(o.metric) {
			diag.Metric = math.Max(diag.Metric, o.metric)
		}
		if o.state == StateMaxIterReached {
			diag.State = StateMaxIterReached
		}
	}
	floats.Scale(1/float64(phases), imf)

	if diag.State == StateMaxIterReached {
		diag.Warning = &MaxIterationWarning{IMF: layer, Iterations: diag.Iterations, Metric: diag.Metric}
	}
	return imf, diag, true, nil
}

// Mask returns amp*cos(2*pi*freq*t + phase) for t = 0..n-1, freq in cycles
// per sample.
func Mask(n int, freq, amp, phase float64) []float64 {
	out := make([]float64, n)
	w := 2 * math.Pi * freq
	for t := range out {
		out[t] = amp * math.Cos(w*float64(t)+phase)
	}
	return out
}

type maskSchedule struct {
	freqs []float64
	step  float64
}

func (s maskSchedule) at(layer int) float64 {
	if layer < len(s.freqs) {
		return s.freqs[layer]
	}
	last := s.freqs[len(s.freqs)-1]
	return last / math.Pow(s.step, float64(layer-len(s.freqs)+1))
}

// maskFrequencies resolves the mask schedule, running an unmasked sift loop
// on x when the first frequency has to be estimated.
func (m *MaskSifter) maskFrequencies(x []float64) (maskSchedule, error) {
	if len(m.config.Frequencies) > 0 {
		return maskSchedule{freqs: m.config.Frequencies, step: m.config.StepFactor}, nil
	}
	if m.config.FirstMode == MaskFixed {
		return maskSchedule{freqs: []float64{m.config.FirstFrequency}, step: m.config.StepFactor}, nil
	}

	first, err := m.sifter.nextIMF(x)
	if err != nil {
		return maskSchedule{}, err
	}
	z := 0.5
	if first.State.ProducedIMF() {
		z = FirstMaskFrequency(first.IMF, m.config.FirstMode)
	}
	m.logger.Debug("found first mask frequency", logging.Fields{"mode": m.config.FirstMode.String(), "freq": z})
	return maskSchedule{freqs: []float64{z}, step: m.config.StepFactor}, nil
}

// FirstMaskFrequency estimates a mask frequency in cycles per sample from an
// unmasked first IMF. The result is clamped to (0, 0.5].
func FirstMaskFrequency(imf []float64, mode MaskFreqMode) float64 {
	var z float64
	switch mode {
	case MaskInstFreq:
		inst, err := spectral.FrequencyTransform([][]float64{imf}, 1, spectral.MethodHilbert)
		if err == nil {
			z = weightedMean(inst.Frequency[0], inst.Amplitude[0])
		}
	default:
		z = float64(envelope.CountZeroCrossings(imf)) / float64(len(imf)) / 2
	}
	if !(z > 0) {
		z = 1 / float64(len(imf))
	}
	return common.Clamp(z, 1/float64(len(imf)), 0.5)
}

func weightedMean(values, weights []float64) float64 {
	total := floats.Sum(weights)
	if total == 0 {
		return 0
	}
	return floats.Dot(values, weights) / total
}

func hasEnvelope(x []float64) bool {
	maxLocs, minLocs := envelope.FindExtrema(x)
	return len(maxLocs) >= 2 && len(minLocs) >= 2
}

// MaskSift decomposes x with the mask sift.
func MaskSift(x []float64, config MaskConfig) (*Result, error) {
	sifter, err := NewMaskSifter(config)
	if err != nil {
		return nil, err
	}
	return sifter.Sift(x)
}

// SecondLayer mask sifts the instantaneous amplitude of each first layer IMF,
// indexed [imf][sample]. Amplitude k uses the mask schedule starting at
// masks[k], so its amplitude modulation is sought below the carrier. Every
// output row holds the same number of IMFs: config.Sift.MaxIMFs when set,
// otherwise the largest count found, with missing IMFs left as zeros.
func SecondLayer(amplitudes [][]float64, masks []float64, config MaskConfig) ([][][]float64, error) {
	sets := make([][][]float64, len(amplitudes))
	count := config.Sift.MaxIMFs
	for k, amp := range amplitudes {
		c := config
		if len(masks) > 0 {
			c.Frequencies = masks[min(k, len(masks)-1):]
		}

		sifter, err := NewMaskSifter(c)
		if err != nil {
			return nil, err
		}
		res, err := sifter.WithLogger(&logging.NoOpLogger{}).Sift(amp)
		if err != nil {
			return nil, fmt.Errorf("amplitude %d: %w", k, err)
		}
		sets[k] = res.IMFs
		if config.Sift.MaxIMFs == 0 {
			count = max(count, len(res.IMFs))
		}
	}

	for k, set := range sets {
		for len(set) < count {
			set = append(set, make([]float64, len(amplitudes[k])))
		}
		sets[k] = set
	}
	return sets, nil
}
