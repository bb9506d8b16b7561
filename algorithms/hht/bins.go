package hht

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
)

// Scale is the spacing of histogram edges.
type Scale int

const (
	ScaleLinear Scale = iota
	ScaleLog
	// ScaleCustom marks bins built from arbitrary edges. Lookups use a
	// binary search.
	ScaleCustom
)

func (s Scale) String() string {
	switch s {
	case ScaleLinear:
		return "linear"
	case ScaleLog:
		return "log"
	case ScaleCustom:
		return "custom"
	default:
		return fmt.Sprintf("Scale(%d)", int(s))
	}
}

// ParseScale converts "linear" or "log" into a Scale.
func ParseScale(name string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "linear", "":
		return ScaleLinear, nil
	case "log":
		return ScaleLog, nil
	default:
		return 0, fmt.Errorf("%w: unknown bin scale %q", envelope.ErrInvalidConfiguration, name)
	}
}

func (s Scale) MarshalText() ([]byte, error) {
	if s < ScaleLinear || s > ScaleCustom {
		return nil, fmt.Errorf("%w: unknown bin scale %d", envelope.ErrInvalidConfiguration, int(s))
	}
	return []byte(s.String()), nil
}

func (s *Scale) UnmarshalText(text []byte) error {
	parsed, err := ParseScale(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Bins is a set of histogram bins. Bin i covers [Edges[i], Edges[i+1]). A
// value equal to the last edge falls outside every bin.
type Bins struct {
	Edges   []float64
	Centres []float64
	Scale   Scale

	step float64 // edge spacing, log spacing for ScaleLog
}

// DefineBins returns n bins between lo and hi.
func DefineBins(lo, hi float64, n int, scale Scale) (*Bins, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: bin count must be at least 1, got %d", envelope.ErrInvalidConfiguration, n)
	}
	if !(hi > lo) || math.IsInf(lo, 0) || math.IsInf(hi, 0) {
		return nil, fmt.Errorf("%w: bin range [%v, %v] is empty", envelope.ErrInvalidConfiguration, lo, hi)
	}

	b := &Bins{Scale: scale}
	switch scale {
	case ScaleLinear:
		b.Edges = common.Linspace(lo, hi, n+1)
		b.step = (hi - lo) / float64(n)
		b.Centres = make([]float64, n)
		for i := range b.Centres {
			b.Centres[i] = (b.Edges[i] + b.Edges[i+1]) / 2
		}
	case ScaleLog:
		if lo <= 0 {
			return nil, fmt.Errorf("%w: log bins need a positive lower edge, got %v", envelope.ErrInvalidConfiguration, lo)
		}
		b.Edges = common.Logspace(lo, hi, n+1)
		b.step = math.Log(hi/lo) / float64(n)
		b.Centres = make([]float64, n)
		for i := range b.Centres {
			b.Centres[i] = math.Sqrt(b.Edges[i] * b.Edges[i+1])
		}
	default:
		return nil, fmt.Errorf("%w: DefineBins does not support scale %v", envelope.ErrInvalidConfiguration, scale)
	}
	// Pin the outer edges so the range is exactly [lo, hi).
	b.Edges[0], b.Edges[n] = lo, hi
	return b, nil
}

// BinsFromEdges wraps explicit, strictly increasing edges.
func BinsFromEdges(edges []float64) (*Bins, error) {
	if len(edges) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 bin edges, got %d", envelope.ErrInvalidConfiguration, len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if !(edges[i] > edges[i-1]) {
			return nil, fmt.Errorf("%w: bin edges must be strictly increasing", envelope.ErrInvalidConfiguration)
		}
	}

	b := &Bins{
		Edges:   common.Copy(edges),
		Centres: make([]float64, len(edges)-1),
		Scale:   ScaleCustom,
	}
	for i := range b.Centres {
		b.Centres[i] = (edges[i] + edges[i+1]) / 2
	}
	return b, nil
}

// BinsFromData returns linear bins spanning data widened by tol on both
// sides. The bin count is the square root of the number of samples.
func BinsFromData(data []float64, tol float64) (*Bins, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: no data to derive bins from", common.ErrInvalidInput)
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range data {
		if math.IsNaN(v) {
			continue
		}
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	n := int(math.Round(math.Sqrt(float64(len(data)))))
	return DefineBins(lo-tol, hi+tol, n, ScaleLinear)
}

// Len returns the number of bins.
func (b *Bins) Len() int {
	return len(b.Edges) - 1
}

// Index returns the bin that contains v. ok is false when v is outside the
// edges or NaN.
func (b *Bins) Index(v float64) (idx int, ok bool) {
	n := b.Len()
	if n < 1 || math.IsNaN(v) || v < b.Edges[0] || v >= b.Edges[n] {
		return -1, false
	}

	switch {
	case b.Scale == ScaleLinear && b.step > 0:
		idx = int((v - b.Edges[0]) / b.step)
	case b.Scale == ScaleLog && b.step > 0:
		idx = int(math.Log(v/b.Edges[0]) / b.step)
	default:
		return sort.Search(len(b.Edges), func(i int) bool { return b.Edges[i] > v }) - 1, true
	}

	// Rounding in the division can land one bin off near an edge.
	idx = min(max(idx, 0), n-1)
	if v < b.Edges[idx] {
		idx--
	} else if v >= b.Edges[idx+1] {
		idx++
	}
	return idx, true
}
