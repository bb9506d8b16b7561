package cycles

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
	"github.com/RyanBlaney/sonido-emd/algorithms/hht"
)

// PhaseBins holds features averaged within phase bins. Mean and Variance
// are indexed [bin][feature]; a bin with no samples is NaN.
type PhaseBins struct {
	Mean     [][]float64
	Variance [][]float64
	Counts   []int
	Bins     *hht.Bins
}

// BinByPhase splits [0, 2*pi) into nbins equal phase bins and averages every
// feature within each bin. values is indexed [feature][sample], such as the
// rows of a frequency by time spectrum. weights may be nil for an unweighted
// mean. Samples with NaN phase or phase outside the range are skipped.
func BinByPhase(phase []float64, values [][]float64, nbins int, weights []float64) (*PhaseBins, error) {
	if nbins < 1 {
		return nil, fmt.Errorf("%w: phase bin count must be at least 1, got %d", envelope.ErrInvalidConfiguration, nbins)
	}
	if len(phase) == 0 || len(values) == 0 {
		return nil, fmt.Errorf("%w: nothing to bin", common.ErrInvalidInput)
	}
	for k, v := range values {
		if len(v) != len(phase) {
			return nil, fmt.Errorf("%w: feature %d has %d samples, phase has %d", common.ErrInvalidInput, k, len(v), len(phase))
		}
	}
	if weights != nil && len(weights) != len(phase) {
		return nil, fmt.Errorf("%w: %d weights for %d samples", common.ErrInvalidInput, len(weights), len(phase))
	}

	bins, err := hht.DefineBins(0, 2*math.Pi, nbins, hht.ScaleLinear)
	if err != nil {
		return nil, err
	}

	members := make([][]int, nbins)
	for i, p := range phase {
		if b, ok := bins.Index(p); ok {
			members[b] = append(members[b], i)
		}
	}

	out := &PhaseBins{
		Mean:     make([][]float64, nbins),
		Variance: make([][]float64, nbins),
		Counts:   make([]int, nbins),
		Bins:     bins,
	}
	for b, idx := range members {
		out.Counts[b] = len(idx)
		out.Mean[b] = make([]float64, len(values))
		out.Variance[b] = make([]float64, len(values))

		var w []float64
		if weights != nil {
			w = make([]float64, len(idx))
			for j, i := range idx {
				w[j] = weights[i]
			}
		}
		x := make([]float64, len(idx))
		for k, v := range values {
			if len(idx) == 0 {
				out.Mean[b][k], out.Variance[b][k] = math.NaN(), math.NaN()
				continue
			}
			for j, i := range idx {
				x[j] = v[i]
			}
			out.Mean[b][k], out.Variance[b][k] = stat.PopMeanVariance(x, w)
		}
	}
	return out, nil
}
