package hht

import (
	"fmt"
	"math"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
)

// HoloOptions configures Holospectrum. FreqBins applies to the amplitude
// modulation frequencies and CarrierBins to the carrier frequencies.
type HoloOptions struct {
	CarrierBins *Bins
	FreqBins    *Bins
	TimeBins    *Bins
	SampleRate  float64

	Mode         Mode
	ReturnSparse bool
	Workers      int
}

// Holospectrum returns the time by AM frequency by carrier frequency
// spectrum. carrier holds the instantaneous frequency of the first layer
// IMFs indexed [imf][sample]. amFreq and amAmp hold the second layer
// decomposition of each first layer amplitude, indexed
// [imf][am imf][sample].
func Holospectrum(amFreq, amAmp [][][]float64, carrier [][]float64, opts HoloOptions) (*Spectrum, error) {
	n, err := checkHolo(amFreq, amAmp, carrier)
	if err != nil {
		return nil, err
	}
	if opts.CarrierBins == nil || opts.CarrierBins.Len() < 1 {
		return nil, fmt.Errorf("%w: carrier bins are required", envelope.ErrInvalidConfiguration)
	}
	if opts.FreqBins == nil || opts.FreqBins.Len() < 1 {
		return nil, fmt.Errorf("%w: AM frequency bins are required", envelope.ErrInvalidConfiguration)
	}
	if _, err := opts.Mode.MarshalText(); err != nil {
		return nil, err
	}

	timer, err := newTimeIndexer(opts.TimeBins, opts.SampleRate, n)
	if err != nil {
		return nil, err
	}
	shape := Shape{
		Time:    timer.len(),
		Freq:    opts.FreqBins.Len(),
		Carrier: opts.CarrierBins.Len(),
	}

	acc, err := scatter(n, shape, opts.Workers, func(acc *Accumulator, lo, hi int) error {
		for i := lo; i < hi; i++ {
			t, ok := timer.index(i)
			if !ok {
				continue
			}
			for k := range carrier {
				c, ok := opts.CarrierBins.Index(carrier[k][i])
				if !ok {
					continue
				}
				for j := range amFreq[k] {
					f, ok := opts.FreqBins.Index(amFreq[k][j][i])
					a := amAmp[k][j][i]
					if !ok || math.IsNaN(a) {
						continue
					}
					if err := acc.Add(Bin{Time: t, Freq: f, Carrier: c}, opts.Mode.weight(a)); err != nil {
						return err
					}
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

func checkHolo(amFreq, amAmp [][][]float64, carrier [][]float64) (int, error) {
	if len(carrier) == 0 || len(carrier[0]) == 0 {
		return 0, fmt.Errorf("%w: no carrier samples", common.ErrInvalidInput)
	}
	if len(amFreq) != len(carrier) || len(amAmp) != len(carrier) {
		return 0, fmt.Errorf("%w: %d carrier IMFs but %d/%d AM sets", common.ErrInvalidInput, len(carrier), len(amFreq), len(amAmp))
	}

	n := len(carrier[0])
	for k := range carrier {
		if len(carrier[k]) != n {
			return 0, fmt.Errorf("%w: carrier IMF %d length differs from %d samples", common.ErrInvalidInput, k, n)
		}
		if len(amFreq[k]) != len(amAmp[k]) {
			return 0, fmt.Errorf("%w: IMF %d has %d AM frequency rows but %d amplitude rows", common.ErrInvalidInput, k, len(amFreq[k]), len(amAmp[k]))
		}
		for j := range amFreq[k] {
			if len(amFreq[k][j]) != n || len(amAmp[k][j]) != n {
				return 0, fmt.Errorf("%w: IMF %d AM IMF %d length differs from %d samples", common.ErrInvalidInput, k, j, n)
			}
		}
	}
	return n, nil
}
