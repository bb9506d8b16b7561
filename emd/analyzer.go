// Package emd runs the whole analysis pipeline from one configuration: a
// sift variant, the instantaneous frequency transform and the Hilbert-Huang
// or Holospectrum energy maps.
package emd

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/cycles"
	"github.com/RyanBlaney/sonido-emd/algorithms/hht"
	"github.com/RyanBlaney/sonido-emd/algorithms/sift"
	"github.com/RyanBlaney/sonido-emd/algorithms/spectral"
	"github.com/RyanBlaney/sonido-emd/logging"
)

var (
	ErrInvalidConfiguration = sift.ErrInvalidConfiguration
	ErrInvalidInput         = common.ErrInvalidInput
)

// Analyzer runs decompositions with a fixed configuration. It holds no
// per-call state and can be shared between goroutines.
type Analyzer struct {
	config *Config
	logger logging.Logger
}

// NewAnalyzer validates cfg and builds an Analyzer. A nil cfg uses
// DefaultConfig.
func NewAnalyzer(cfg *Config) (*Analyzer, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	config := *cfg
	return &Analyzer{
		config: &config,
		logger: logging.WithFields(logging.Fields{
			"component": "analyzer",
		}),
	}, nil
}

// WithLogger returns a copy of the Analyzer that logs to logger. The sifters
// it runs log there too.
func (a *Analyzer) WithLogger(logger logging.Logger) *Analyzer {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	clone := *a
	clone.logger = logger
	return &clone
}

// Config returns a copy of the analyzer configuration.
func (a *Analyzer) Config() Config {
	return *a.config
}

// Decomposition is a sift result together with the instantaneous estimates
// of its IMFs.
type Decomposition struct {
	Result        *sift.Result
	Instantaneous *spectral.Instantaneous
	SampleRate    float64
	Method        Method
}

// Decompose sifts x with the configured method and estimates the
// instantaneous phase, frequency and amplitude of every IMF.
func (a *Analyzer) Decompose(x []float64, sampleRate float64) (*Decomposition, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidInput, sampleRate)
	}

	a.logger.Info("STARTED: decompose", logging.Fields{
		"method":      a.config.Method.String(),
		"samples":     len(x),
		"sample_rate": sampleRate,
	})

	result, err := a.sift(x, sampleRate)
	if err != nil {
		a.logger.Error(err, "decomposition failed")
		return nil, err
	}

	dec := &Decomposition{
		Result:     result,
		SampleRate: sampleRate,
		Method:     a.config.Method,
		Instantaneous: &spectral.Instantaneous{
			SampleRate: sampleRate,
		},
	}
	if result.NumIMFs() > 0 {
		inst, err := spectral.FrequencyTransform(result.IMFs, sampleRate, a.config.Spectrum.FrequencyMethod)
		if err != nil {
			return nil, fmt.Errorf("frequency transform: %w", err)
		}
		dec.Instantaneous = inst
	}

	for _, w := range result.Warnings() {
		a.logger.Verbose("decomposition warning", logging.Fields{"warning": w.Error()})
	}
	a.logger.Info("COMPLETED: decompose", logging.Fields{
		"imfs":     result.NumIMFs(),
		"warnings": len(result.Warnings()),
	})
	return dec, nil
}

func (a *Analyzer) sift(x []float64, sampleRate float64) (*sift.Result, error) {
	switch a.config.Method {
	case MethodEnsembleSift:
		sifter, err := sift.NewEnsembleSifter(a.config.ensembleConfig())
		if err != nil {
			return nil, err
		}
		return sifter.WithLogger(a.logger).Sift(x)
	case MethodMaskSift:
		sifter, err := sift.NewMaskSifter(a.config.maskConfig(sampleRate))
		if err != nil {
			return nil, err
		}
		return sifter.WithLogger(a.logger).Sift(x)
	default:
		sifter, err := sift.NewSifter(a.config.Sift)
		if err != nil {
			return nil, err
		}
		return sifter.WithLogger(a.logger).Sift(x)
	}
}

// HilbertHuang builds the time by frequency spectrum of dec. freqBins are in
// Hz and timeBins in seconds; a nil timeBins gives one bin per sample.
func (a *Analyzer) HilbertHuang(dec *Decomposition, freqBins, timeBins *hht.Bins) (*hht.Spectrum, error) {
	if err := checkDecomposition(dec); err != nil {
		return nil, err
	}

	spec, err := hht.HilbertHuang(dec.Instantaneous.Frequency, dec.Instantaneous.Amplitude, hht.HHTOptions{
		FreqBins:     freqBins,
		TimeBins:     timeBins,
		SampleRate:   dec.SampleRate,
		Mode:         a.config.Spectrum.Mode,
		ReturnSparse: a.config.Spectrum.ReturnSparse,
		PerIMF:       a.config.Spectrum.PerIMF,
		Workers:      a.config.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("hilbert-huang spectrum: %w", err)
	}
	a.logger.Debug("hilbert-huang spectrum built", logging.Fields{
		"freq_bins": freqBins.Len(),
		"sparse":    a.config.Spectrum.ReturnSparse,
	})
	return spec, nil
}

// Holospectrum mask sifts the instantaneous amplitude of every IMF in dec
// and builds the time by AM frequency by carrier frequency spectrum.
// carrierBins and amBins are in Hz.
func (a *Analyzer) Holospectrum(dec *Decomposition, carrierBins, amBins, timeBins *hht.Bins) (*hht.Spectrum, error) {
	if err := checkDecomposition(dec); err != nil {
		return nil, err
	}
	inst := dec.Instantaneous
	sr := dec.SampleRate

	masks := perSample(a.config.Mask.SecondLayerFrequencies, sr)
	if len(masks) == 0 {
		masks = secondLayerMasks(inst)
	}
	cfg := a.config.maskConfig(sr)
	cfg.Frequencies = masks
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a.logger.Info("STARTED: holospectrum", logging.Fields{
		"imfs":  len(inst.Amplitude),
		"masks": len(masks),
	})

	sets, err := sift.SecondLayer(inst.Amplitude, masks, cfg)
	if err != nil {
		a.logger.Error(err, "second layer sift failed")
		return nil, fmt.Errorf("second layer sift: %w", err)
	}

	amFreq := make([][][]float64, len(sets))
	amAmp := make([][][]float64, len(sets))
	for k, set := range sets {
		if len(set) == 0 {
			continue
		}
		am, err := spectral.FrequencyTransform(set, sr, a.config.Spectrum.FrequencyMethod)
		if err != nil {
			return nil, fmt.Errorf("amplitude %d frequency transform: %w", k, err)
		}
		amFreq[k], amAmp[k] = am.Frequency, am.Amplitude
	}

	spec, err := hht.Holospectrum(amFreq, amAmp, inst.Frequency, hht.HoloOptions{
		CarrierBins:  carrierBins,
		FreqBins:     amBins,
		TimeBins:     timeBins,
		SampleRate:   sr,
		Mode:         a.config.Spectrum.Mode,
		ReturnSparse: a.config.Spectrum.ReturnSparse,
		Workers:      a.config.Workers,
	})
	if err != nil {
		return nil, fmt.Errorf("holospectrum: %w", err)
	}

	a.logger.Info("COMPLETED: holospectrum", logging.Fields{"sparse": a.config.Spectrum.ReturnSparse})
	return spec, nil
}

// Cycles labels the cycles of every IMF in dec, indexed [imf][sample]. See
// cycles.CycleVector for the labelling and the quality checks.
func (a *Analyzer) Cycles(dec *Decomposition) ([][]int, error) {
	if err := checkDecomposition(dec); err != nil {
		return nil, err
	}
	labels, err := cycles.CycleVectors(dec.Instantaneous, dec.Result.IMFs, a.config.Cycles)
	if err != nil {
		return nil, fmt.Errorf("cycle detection: %w", err)
	}

	counts := make([]int, len(labels))
	for k, l := range labels {
		counts[k] = cycles.Count(l)
	}
	a.logger.Debug("cycles detected", logging.Fields{
		"counts":      counts,
		"return_good": a.config.Cycles.ReturnGood,
	})
	return labels, nil
}

func checkDecomposition(dec *Decomposition) error {
	if dec == nil || dec.Instantaneous == nil {
		return fmt.Errorf("%w: decomposition is required", ErrInvalidInput)
	}
	if len(dec.Instantaneous.Frequency) == 0 {
		return fmt.Errorf("%w: decomposition has no IMFs", ErrInvalidInput)
	}
	if !(dec.SampleRate > 0) {
		return fmt.Errorf("%w: sample rate must be positive, got %v", ErrInvalidInput, dec.SampleRate)
	}
	return nil
}

// secondLayerMasks places each IMF's amplitude mask at half its amplitude
// weighted mean carrier frequency, in cycles per sample.
func secondLayerMasks(inst *spectral.Instantaneous) []float64 {
	masks := make([]float64, len(inst.Frequency))
	for k, freq := range inst.Frequency {
		values := make([]float64, 0, len(freq))
		weights := make([]float64, 0, len(freq))
		for i, f := range freq {
			w := inst.Amplitude[k][i]
			if math.IsNaN(f) || math.IsNaN(w) || f < 0 {
				continue
			}
			values = append(values, f)
			weights = append(weights, w)
		}

		floor := 1 / float64(max(len(freq), 2))
		z := 0.0
		if len(values) > 0 && floats.Sum(weights) > 0 {
			z = stat.Mean(values, weights) / inst.SampleRate / 2
		}
		masks[k] = math.Min(math.Max(z, floor), 0.5)
	}
	return masks
}
