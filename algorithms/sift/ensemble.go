package sift

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/internal/workpool"
	"github.com/RyanBlaney/sonido-emd/logging"
)

// NoiseMode selects how noise is applied to each ensemble member.
type NoiseMode int

const (
	// NoiseSingle sifts x + noise.
	NoiseSingle NoiseMode = iota
	// NoiseFlip sifts x + noise and x - noise and averages the two, which
	// cancels the added noise exactly in the sum.
	NoiseFlip
)

func (m NoiseMode) String() string {
	switch m {
	case NoiseSingle:
		return "single"
	case NoiseFlip:
		return "flip"
	default:
		return fmt.Sprintf("NoiseMode(%d)", int(m))
	}
}

func (m NoiseMode) MarshalText() ([]byte, error) {
	if m != NoiseSingle && m != NoiseFlip {
		return nil, configError("unknown noise mode %d", int(m))
	}
	return []byte(m.String()), nil
}

func (m *NoiseMode) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "single":
		*m = NoiseSingle
	case "flip":
		*m = NoiseFlip
	default:
		return configError("unknown noise mode %q", string(text))
	}
	return nil
}

// Alignment decides how IMFs are matched across members whose IMF counts
// differ.
type Alignment int

const (
	// AlignTruncate keeps the smallest IMF count found across members. The
	// extra IMFs of a member are left in that member's trend.
	AlignTruncate Alignment = iota
	// AlignPad keeps the largest IMF count. Members with fewer IMFs add zero
	// for the missing ones.
	AlignPad
)

func (a Alignment) String() string {
	switch a {
	case AlignTruncate:
		return "truncate"
	case AlignPad:
		return "pad"
	default:
		return fmt.Sprintf("Alignment(%d)", int(a))
	}
}

func (a Alignment) MarshalText() ([]byte, error) {
	if a != AlignTruncate && a != AlignPad {
		return nil, configError("unknown alignment %d", int(a))
	}
	return []byte(a.String()), nil
}

func (a *Alignment) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "truncate":
		*a = AlignTruncate
	case "pad":
		*a = AlignPad
	default:
		return configError("unknown alignment %q", string(text))
	}
	return nil
}

// EnsembleConfig configures EnsembleSift.
type EnsembleConfig struct {
	Sift Config `json:"sift"`

	Ensembles int `json:"nensembles"`

	// NoiseStd is the noise standard deviation as a fraction of the input
	// standard deviation.
	NoiseStd  float64   `json:"ensemble_noise"`
	NoiseMode NoiseMode `json:"noise_mode"`

	// Seed fixes the noise schedule. Member m draws from a PCG stream seeded
	// with (Seed, m), so results do not depend on Workers.
	Seed uint64 `json:"noise_seed"`

	Workers   int       `json:"n_workers"`
	Alignment Alignment `json:"alignment"`
}

// DefaultEnsembleConfig returns 4 members with noise at 0.2 of the signal
// standard deviation, run on one worker.
func DefaultEnsembleConfig() EnsembleConfig {
	return EnsembleConfig{
		Sift:      DefaultConfig(),
		Ensembles: 4,
		NoiseStd:  0.2,
		NoiseMode: NoiseSingle,
		Workers:   1,
		Alignment: AlignTruncate,
	}
}

// Validate checks every option.
func (c EnsembleConfig) Validate() error {
	if err := c.Sift.Validate(); err != nil {
		return err
	}
	if c.Ensembles < 1 {
		return configError("ensemble count must be at least 1, got %d", c.Ensembles)
	}
	if c.NoiseStd < 0 {
		return configError("noise std must be non-negative, got %v", c.NoiseStd)
	}
	if c.Workers < 1 {
		return configError("worker count must be at least 1, got %d", c.Workers)
	}
	if _, err := c.NoiseMode.MarshalText(); err != nil {
		return err
	}
	if _, err := c.Alignment.MarshalText(); err != nil {
		return err
	}
	return nil
}

// EnsembleSifter runs the ensemble sift.
type EnsembleSifter struct {
	config EnsembleConfig
	sifter *Sifter
	logger logging.Logger
}

// NewEnsembleSifter validates config and builds an EnsembleSifter.
func NewEnsembleSifter(config EnsembleConfig) (*EnsembleSifter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	sifter, err := NewSifter(config.Sift)
	if err != nil {
		return nil, err
	}
	return &EnsembleSifter{
		config: config,
		sifter: sifter,
		logger: logging.WithFields(logging.Fields{
			"component": "ensemble_sift",
		}),
	}, nil
}

// WithLogger returns a copy that logs to logger.
func (e *EnsembleSifter) WithLogger(logger logging.Logger) *EnsembleSifter {
	if logger == nil {
		logger = &logging.NoOpLogger{}
	}
	clone := *e
	clone.logger = logger
	return &clone
}

// Sift decomposes x. Each member sifts its own noisy copy; IMFs are then
// averaged by index in member order and the trend is x minus their sum.
func (e *EnsembleSifter) Sift(x []float64) (*Result, error) {
	if err := validateSignal(x); err != nil {
		return nil, err
	}

	e.logger.Info("STARTED: ensemble_sift", logging.Fields{
		"samples":   len(x),
		"ensembles": e.config.Ensembles,
		"workers":   e.config.Workers,
	})

	sigma := e.config.NoiseStd * common.PopulationStd(x)
	quiet := &logging.NoOpLogger{}

	members, err := workpool.Map(e.config.Ensembles, e.config.Workers, func(m int) ([][]float64, error) {
		return e.member(x, m, sigma, quiet)
	})
	if err != nil {
		e.logger.Error(err, "ensemble member failed")
		return nil, err
	}

	imfs, counts := alignAverage(members, len(x), e.config.Alignment)
	result := &Result{
		IMFs:            imfs,
		Trend:           residualOf(x, imfs),
		MemberIMFCounts: counts,
	}

	e.logger.Info("COMPLETED: ensemble_sift", logging.Fields{
		"imfs":          result.NumIMFs(),
		"member_counts": counts,
	})
	return result, nil
}

func (e *EnsembleSifter) member(x []float64, m int, sigma float64, logger logging.Logger) ([][]float64, error) {
	noise := Noise(len(x), sigma, e.config.Seed, uint64(m))

	plus := common.Copy(x)
	floats.Add(plus, noise)
	res, err := e.sifter.sift(plus, logger)
	if err != nil {
		return nil, fmt.Errorf("member %d: %w", m, err)
	}
	if e.config.NoiseMode == NoiseSingle {
		return res.IMFs, nil
	}

	minus := common.Sub(x, noise)
	flipped, err := e.sifter.sift(minus, logger)
	if err != nil {
		return nil, fmt.Errorf("member %d (flipped): %w", m, err)
	}
	imfs, _ := alignAverage([][][]float64{res.IMFs, flipped.IMFs}, len(x), e.config.Alignment)
	return imfs, nil
}

// Noise returns n Gaussian samples with standard deviation sigma drawn from
// the PCG stream (seed, stream).
func Noise(n int, sigma float64, seed, stream uint64) []float64 {
	out := make([]float64, n)
	if sigma == 0 {
		return out
	}
	dist := distuv.Normal{
		Mu:    0,
		Sigma: sigma,
		Src:   rand.NewPCG(seed, stream),
	}
	for i := range out {
		out[i] = dist.Rand()
	}
	return out
}

// alignAverage averages IMF sets by IMF index. The sum runs in member order
// so the result never depends on which member finished first.
func alignAverage(sets [][][]float64, n int, alignment Alignment) ([][]float64, []int) {
	counts := make([]int, len(sets))
	for i, set := range sets {
		counts[i] = len(set)
	}
	if len(sets) == 0 {
		return nil, counts
	}

	k := counts[0]
	for _, c := range counts[1:] {
		if alignment == AlignPad {
			k = max(k, c)
		} else {
			k = min(k, c)
		}
	}

	avg := make([][]float64, k)
	scale := 1 / float64(len(sets))
	for i := range avg {
		avg[i] = make([]float64, n)
		for _, set := range sets {
			if i < len(set) {
				floats.Add(avg[i], set[i])
			}
		}
		floats.Scale(scale, avg[i])
	}
	return avg, counts
}

func residualOf(x []float64, imfs [][]float64) []float64 {
	out := common.Copy(x)
	for _, imf := range imfs {
		floats.Sub(out, imf)
	}
	return out
}

// EnsembleSift decomposes x with the ensemble sift.
func EnsembleSift(x []float64, config EnsembleConfig) (*Result, error) {
	sifter, err := NewEnsembleSifter(config)
	if err != nil {
		return nil, err
	}
	return sifter.Sift(x)
}
