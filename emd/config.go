package emd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/RyanBlaney/sonido-emd/algorithms/cycles"
	"github.com/RyanBlaney/sonido-emd/algorithms/hht"
	"github.com/RyanBlaney/sonido-emd/algorithms/sift"
	"github.com/RyanBlaney/sonido-emd/algorithms/spectral"
)

// Method selects the decomposition.
type Method int

const (
	MethodSift Method = iota
	MethodEnsembleSift
	MethodMaskSift
)

func (m Method) String() string {
	switch m {
	case MethodSift:
		return "sift"
	case MethodEnsembleSift:
		return "ensemble_sift"
	case MethodMaskSift:
		return "mask_sift"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod converts "sift", "ensemble_sift" or "mask_sift" into a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sift":
		return MethodSift, nil
	case "ensemble_sift", "ensemble":
		return MethodEnsembleSift, nil
	case "mask_sift", "mask":
		return MethodMaskSift, nil
	default:
		return 0, fmt.Errorf("%w: unknown decomposition method %q", ErrInvalidConfiguration, name)
	}
}

func (m Method) MarshalText() ([]byte, error) {
	if m < MethodSift || m > MethodMaskSift {
		return nil, fmt.Errorf("%w: unknown decomposition method %d", ErrInvalidConfiguration, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// EnsembleOptions are the ensemble sift settings.
type EnsembleOptions struct {
	Ensembles int            `json:"nensembles"`
	NoiseStd  float64        `json:"ensemble_noise"`
	NoiseMode sift.NoiseMode `json:"noise_mode"`
	Seed      uint64         `json:"noise_seed"`
	Alignment sift.Alignment `json:"alignment"`
}

// MaskOptions are the mask sift settings. Frequencies are in Hz and are
// converted to cycles per sample with the sample rate passed to Decompose.
type MaskOptions struct {
	Phases         int               `json:"nphases"`
	Frequencies    []float64         `json:"mask_freqs,omitempty"`
	FirstMode      sift.MaskFreqMode `json:"first_mask_mode"`
	FirstFrequency float64           `json:"first_mask_freq,omitempty"`
	StepFactor     float64           `json:"mask_step_factor"`
	Amplitude      float64           `json:"mask_amp"`
	AmplitudeMode  sift.MaskAmpMode  `json:"mask_amp_mode"`

	// SecondLayerFrequencies are the masks used to sift the instantaneous
	// amplitudes for the Holospectrum, in Hz. Empty means half the mean
	// carrier frequency of each IMF.
	SecondLayerFrequencies []float64 `json:"second_layer_mask_freqs,omitempty"`
}

// SpectrumOptions control the frequency transform and the energy maps.
type SpectrumOptions struct {
	FrequencyMethod spectral.Method `json:"frequency_method"`
	Mode            hht.Mode        `json:"mode"`
	ReturnSparse    bool            `json:"return_sparse"`
	// PerIMF keeps IMFs on their own axis of the Hilbert-Huang spectrum.
	PerIMF bool `json:"per_imf"`
}

// Config is the full analysis configuration. All enumerated options are
// strings in JSON.
type Config struct {
	Method   Method          `json:"method"`
	Sift     sift.Config     `json:"sift"`
	Ensemble EnsembleOptions `json:"ensemble"`
	Mask     MaskOptions     `json:"mask"`
	Spectrum SpectrumOptions `json:"spectrum"`
	Cycles   cycles.Options  `json:"cycles"`

	// Workers is shared by the ensemble members, the mask phases and the
	// spectrum accumulation.
	Workers int `json:"n_workers"`
}

// DefaultConfig returns the classic sift followed by a Hilbert transform and
// dense power spectra, on one worker.
func DefaultConfig() *Config {
	ens := sift.DefaultEnsembleConfig()
	mask := sift.DefaultMaskConfig()
	return &Config{
		Method: MethodSift,
		Sift:   sift.DefaultConfig(),
		Ensemble: EnsembleOptions{
			Ensembles: ens.Ensembles,
			NoiseStd:  ens.NoiseStd,
			NoiseMode: ens.NoiseMode,
			Alignment: ens.Alignment,
		},
		Mask: MaskOptions{
			Phases:        mask.Phases,
			FirstMode:     mask.FirstMode,
			StepFactor:    mask.StepFactor,
			Amplitude:     mask.Amplitude,
			AmplitudeMode: mask.AmplitudeMode,
		},
		Spectrum: SpectrumOptions{
			FrequencyMethod: spectral.MethodHilbert,
			Mode:            hht.ModePower,
		},
		Cycles:  cycles.DefaultOptions(),
		Workers: 1,
	}
}

// LoadConfig reads a JSON configuration. Keys missing from the file keep
// their DefaultConfig values.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Validate checks the options of the selected method and the spectrum
// settings.
func (c *Config) Validate() error {
	if _, err := c.Method.MarshalText(); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("%w: n_workers must be at least 1, got %d", ErrInvalidConfiguration, c.Workers)
	}
	if _, err := c.Spectrum.FrequencyMethod.MarshalText(); err != nil {
		return err
	}
	if _, err := c.Spectrum.Mode.MarshalText(); err != nil {
		return err
	}
	if err := c.Cycles.Validate(); err != nil {
		return err
	}
	for _, masks := range [][]float64{c.Mask.Frequencies, c.Mask.SecondLayerFrequencies} {
		for i, f := range masks {
			if !(f > 0) {
				return fmt.Errorf("%w: mask frequency %d must be positive, got %v Hz", ErrInvalidConfiguration, i, f)
			}
		}
	}

	switch c.Method {
	case MethodEnsembleSift:
		return c.ensembleConfig().Validate()
	case MethodMaskSift:
		// Hz masks are checked against Nyquist once the sample rate is known
		cfg := c.maskConfig(0)
		cfg.Frequencies = nil
		return cfg.Validate()
	default:
		return c.Sift.Validate()
	}
}

func (c *Config) ensembleConfig() sift.EnsembleConfig {
	return sift.EnsembleConfig{
		Sift:      c.Sift,
		Ensembles: c.Ensemble.Ensembles,
		NoiseStd:  c.Ensemble.NoiseStd,
		NoiseMode: c.Ensemble.NoiseMode,
		Seed:      c.Ensemble.Seed,
		Workers:   c.Workers,
		Alignment: c.Ensemble.Alignment,
	}
}

// maskConfig converts the Hz options into a sift.MaskConfig. A sampleRate of
// zero leaves the frequencies unset.
func (c *Config) maskConfig(sampleRate float64) sift.MaskConfig {
	cfg := sift.MaskConfig{
		Sift:          c.Sift,
		Phases:        c.Mask.Phases,
		FirstMode:     c.Mask.FirstMode,
		StepFactor:    c.Mask.StepFactor,
		Amplitude:     c.Mask.Amplitude,
		AmplitudeMode: c.Mask.AmplitudeMode,
		Workers:       c.Workers,
	}
	if sampleRate > 0 {
		cfg.Frequencies = perSample(c.Mask.Frequencies, sampleRate)
		cfg.FirstFrequency = c.Mask.FirstFrequency / sampleRate
	} else if c.Mask.FirstFrequency > 0 {
		// Placeholder in range; the real value needs the sample rate
		cfg.FirstFrequency = 0.5
	}
	return cfg
}

func perSample(hz []float64, sampleRate float64) []float64 {
	if len(hz) == 0 {
		return nil
	}
	out := make([]float64, len(hz))
	for i, f := range hz {
		out[i] = f / sampleRate
	}
	return out
}
