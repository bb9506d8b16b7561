// Package hht builds Hilbert-Huang and Holospectrum energy maps from
// instantaneous frequency and amplitude. Every transform scatters samples
// into a sparse Accumulator in one pass and only materialises a dense array
// when asked to.
package hht

import (
	"fmt"
	"math"
	"strings"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
	"github.com/RyanBlaney/sonido-emd/internal/workpool"
)

// Mode selects what each sample contributes to its cell.
type Mode int

const (
	// ModePower adds amplitude squared.
	ModePower Mode = iota
	// ModeAmplitude adds amplitude.
	ModeAmplitude
)

func (m Mode) String() string {
	switch m {
	case ModePower:
		return "power"
	case ModeAmplitude:
		return "amplitude"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode converts "power" or "amplitude" into a Mode.
func ParseMode(name string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "power", "":
		return ModePower, nil
	case "amplitude":
		return ModeAmplitude, nil
	default:
		return 0, fmt.Errorf("%w: unknown spectrum mode %q", envelope.ErrInvalidConfiguration, name)
	}
}

func (m Mode) MarshalText() ([]byte, error) {
	if m != ModePower && m != ModeAmplitude {
		return nil, fmt.Errorf("%w: unknown spectrum mode %d", envelope.ErrInvalidConfiguration, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	parsed, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

func (m Mode) weight(amp float64) float64 {
	if m == ModeAmplitude {
		return amp
	}
	return amp * amp
}

// HHTOptions configures HilbertHuang.
type HHTOptions struct {
	FreqBins *Bins
	// TimeBins groups samples by time in seconds. nil gives one bin per
	// sample.
	TimeBins *Bins
	// SampleRate converts sample indices to seconds for TimeBins. Zero
	// means 1.
	SampleRate float64

	Mode         Mode
	ReturnSparse bool

	// PerIMF keeps IMFs apart instead of summing them: Bin.Carrier holds
	// the IMF index and the dense axes become (imf, freq, time).
	PerIMF bool

	// Workers splits the samples into contiguous chunks, each accumulated
	// separately and merged in chunk order. Values below 1 mean one.
	Workers int
}

// Spectrum is the result of a transform. Exactly one of Sparse and Dense is
// set, depending on ReturnSparse.
type Spectrum struct {
	Sparse *Accumulator
	Dense  *Dense
}

// HilbertHuang returns the time by frequency spectrum of instantaneous
// frequency and amplitude, both indexed [imf][sample]. Samples whose
// frequency falls outside FreqBins, or whose time falls outside TimeBins,
// are dropped.
func HilbertHuang(freq, amp [][]float64, opts HHTOptions) (*Spectrum, error) {
	n, err := checkPair(freq, amp)
	if err != nil {
		return nil, err
	}
	if opts.FreqBins == nil || opts.FreqBins.Len() < 1 {
		return nil, fmt.Errorf("%w: frequency bins are required", envelope.ErrInvalidConfiguration)
	}
	if _, err := opts.Mode.MarshalText(); err != nil {
		return nil, err
	}

	timer, err := newTimeIndexer(opts.TimeBins, opts.SampleRate, n)
	if err != nil {
		return nil, err
	}
	shape := Shape{Time: timer.len(), Freq: opts.FreqBins.Len()}
	if opts.PerIMF {
		shape.Carrier = len(freq)
	}

	acc, err := scatter(n, shape, opts.Workers, func(acc *Accumulator, lo, hi int) error {
		for i := lo; i < hi; i++ {
			t, ok := timer.index(i)
			if !ok {
				continue
			}
			for k := range freq {
				f, ok := opts.FreqBins.Index(freq[k][i])
				if !ok || math.IsNaN(amp[k][i]) {
					continue
				}
				b := Bin{Time: t, Freq: f}
				if opts.PerIMF {
					b.Carrier = k
				}
				if err := acc.Add(b, opts.Mode.weight(amp[k][i])); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return finish(acc, opts.ReturnSparse), nil
}

// checkPair validates two [imf][sample] arrays of identical shape and
// returns the sample count.
func checkPair(freq, amp [][]float64) (int, error) {
	if len(freq) == 0 {
		return 0, fmt.Errorf("%w: no IMFs", common.ErrInvalidInput)
	}
	if len(amp) != len(freq) {
		return 0, fmt.Errorf("%w: %d frequency rows but %d amplitude rows", common.ErrInvalidInput, len(freq), len(amp))
	}
	n := len(freq[0])
	if n == 0 {
		return 0, fmt.Errorf("%w: no samples", common.ErrInvalidInput)
	}
	for k := range freq {
		if len(freq[k]) != n || len(amp[k]) != n {
			return 0, fmt.Errorf("%w: IMF %d length differs from %d samples", common.ErrInvalidInput, k, n)
		}
	}
	return n, nil
}

// timeIndexer maps sample indices onto time bins.
type timeIndexer struct {
	bins       *Bins
	sampleRate float64
	samples    int
}

func newTimeIndexer(bins *Bins, sampleRate float64, n int) (timeIndexer, error) {
	if sampleRate < 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return timeIndexer{}, fmt.Errorf("%w: sample rate must be positive, got %v", envelope.ErrInvalidConfiguration, sampleRate)
	}
	if sampleRate == 0 {
		sampleRate = 1
	}
	if bins != nil && bins.Len() < 1 {
		return timeIndexer{}, fmt.Errorf("%w: time bins are empty", envelope.ErrInvalidConfiguration)
	}
	return timeIndexer{bins: bins, sampleRate: sampleRate, samples: n}, nil
}

func (t timeIndexer) len() int {
	if t.bins == nil {
		return t.samples
	}
	return t.bins.Len()
}

func (t timeIndexer) index(i int) (int, bool) {
	if t.bins == nil {
		return i, true
	}
	return t.bins.Index(float64(i) / t.sampleRate)
}

// scatter runs fill over contiguous sample chunks, one accumulator per chunk,
// and merges the partial accumulators in chunk order.
func scatter(n int, shape Shape, workers int, fill func(acc *Accumulator, lo, hi int) error) (*Accumulator, error) {
	chunks := workpool.Workers(max(workers, 1), n)

	parts, err := workpool.Map(chunks, chunks, func(c int) (*Accumulator, error) {
		acc, err := NewAccumulator(shape)
		if err != nil {
			return nil, err
		}
		if err := fill(acc, c*n/chunks, (c+1)*n/chunks); err != nil {
			return nil, err
		}
		return acc, nil
	})
	if err != nil {
		return nil, err
	}

	total := parts[0]
	for _, part := range parts[1:] {
		if err := total.Merge(part); err != nil {
			return nil, err
		}
	}
	return total, nil
}

func finish(acc *Accumulator, sparse bool) *Spectrum {
	if sparse {
		return &Spectrum{Sparse: acc}
	}
	return &Spectrum{Dense: acc.Dense()}
}
