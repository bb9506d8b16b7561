package hht

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// ErrShapeMismatch is returned when accumulators or bins of different
// shapes are combined.
var ErrShapeMismatch = errors.New("shape mismatch")

// Axis names one dimension of a spectrum.
type Axis int

const (
	AxisTime Axis = iota
	AxisFreq
	AxisCarrier
)

func (a Axis) String() string {
	switch a {
	case AxisTime:
		return "time"
	case AxisFreq:
		return "freq"
	case AxisCarrier:
		return "carrier"
	default:
		return fmt.Sprintf("Axis(%d)", int(a))
	}
}

// Bin is the coordinate of one spectrum cell. Carrier is always 0 for a
// Hilbert-Huang spectrum.
type Bin struct {
	Time    int
	Freq    int
	Carrier int
}

// Shape is the extent of a spectrum. A Carrier of 0 means the spectrum has
// no carrier axis.
type Shape struct {
	Time    int
	Freq    int
	Carrier int
}

// Dims returns the dense dimensions, slowest axis first: (freq, time) or
// (carrier, freq, time).
func (s Shape) Dims() []int {
	if s.Carrier == 0 {
		return []int{s.Freq, s.Time}
	}
	return []int{s.Carrier, s.Freq, s.Time}
}

// Size returns the number of cells.
func (s Shape) Size() int {
	return s.Time * s.Freq * max(s.Carrier, 1)
}

func (s Shape) contains(b Bin) bool {
	return b.Time >= 0 && b.Time < s.Time &&
		b.Freq >= 0 && b.Freq < s.Freq &&
		b.Carrier >= 0 && b.Carrier < max(s.Carrier, 1)
}

func (s Shape) offset(b Bin) int {
	return (b.Carrier*s.Freq+b.Freq)*s.Time + b.Time
}

func (s Shape) extent(axis Axis) int {
	switch axis {
	case AxisTime:
		return s.Time
	case AxisFreq:
		return s.Freq
	case AxisCarrier:
		return max(s.Carrier, 1)
	default:
		return 0
	}
}

// Accumulator is a sparse spectrum keyed by Bin. Only cells that received a
// non-zero contribution are stored. It is not safe for concurrent use; give
// every goroutine its own Accumulator and Merge them afterwards.
type Accumulator struct {
	shape Shape
	cells map[Bin]float64
}

// NewAccumulator returns an empty accumulator of the given shape.
func NewAccumulator(shape Shape) (*Accumulator, error) {
	if shape.Time < 1 || shape.Freq < 1 || shape.Carrier < 0 {
		return nil, fmt.Errorf("%w: invalid spectrum shape %+v", ErrShapeMismatch, shape)
	}
	return &Accumulator{shape: shape, cells: make(map[Bin]float64)}, nil
}

// Shape returns the accumulator's shape.
func (a *Accumulator) Shape() Shape {
	return a.shape
}

// Add adds v to cell b. Zero contributions are ignored.
func (a *Accumulator) Add(b Bin, v float64) error {
	if !a.shape.contains(b) {
		return fmt.Errorf("%w: bin %+v outside shape %+v", ErrShapeMismatch, b, a.shape)
	}
	if v == 0 {
		return nil
	}
	a.cells[b] += v
	return nil
}

// At returns the value of cell b, zero when the cell is empty.
func (a *Accumulator) At(b Bin) float64 {
	return a.cells[b]
}

// Len returns the number of stored cells.
func (a *Accumulator) Len() int {
	return len(a.cells)
}

// Merge adds every cell of other into a.
func (a *Accumulator) Merge(other *Accumulator) error {
	if other.shape != a.shape {
		return fmt.Errorf("%w: cannot merge %+v into %+v", ErrShapeMismatch, other.shape, a.shape)
	}
	for b, v := range other.cells {
		a.cells[b] += v
	}
	return nil
}

// Bins returns the stored coordinates in dense order: carrier, then
// frequency, then time.
func (a *Accumulator) Bins() []Bin {
	out := make([]Bin, 0, len(a.cells))
	for b := range a.cells {
		out = append(out, b)
	}
	slices.SortFunc(out, func(x, y Bin) int {
		return cmp.Or(
			cmp.Compare(x.Carrier, y.Carrier),
			cmp.Compare(x.Freq, y.Freq),
			cmp.Compare(x.Time, y.Time),
		)
	})
	return out
}

// Total returns the sum over all cells.
func (a *Accumulator) Total() float64 {
	total := 0.0
	for _, b := range a.Bins() {
		total += a.cells[b]
	}
	return total
}

// Marginal sums the spectrum over every axis except axis. Summing over time
// gives the marginal spectrum, summing over frequency gives the energy time
// course.
func (a *Accumulator) Marginal(axis Axis) ([]float64, error) {
	n := a.shape.extent(axis)
	if n == 0 || (axis == AxisCarrier && a.shape.Carrier == 0) {
		return nil, fmt.Errorf("%w: spectrum has no %v axis", ErrShapeMismatch, axis)
	}

	out := make([]float64, n)
	for _, b := range a.Bins() {
		switch axis {
		case AxisTime:
			out[b.Time] += a.cells[b]
		case AxisFreq:
			out[b.Freq] += a.cells[b]
		case AxisCarrier:
			out[b.Carrier] += a.cells[b]
		}
	}
	return out, nil
}

// Dense materialises the spectrum.
func (a *Accumulator) Dense() *Dense {
	d := &Dense{
		Shape: a.shape.Dims(),
		Data:  make([]float64, a.shape.Size()),
		shape: a.shape,
	}
	for b, v := range a.cells {
		d.Data[a.shape.offset(b)] = v
	}
	return d
}

// Dense is a row-major spectrum. Shape lists the dimensions slowest first, as
// returned by Shape.Dims.
type Dense struct {
	Shape []int
	Data  []float64

	shape Shape
}

// At returns the value of cell b.
func (d *Dense) At(b Bin) float64 {
	if !d.shape.contains(b) {
		return 0
	}
	return d.Data[d.shape.offset(b)]
}

// Matrix returns a copy of a two dimensional spectrum as a frequency by time
// matrix.
func (d *Dense) Matrix() (*mat.Dense, error) {
	if len(d.Shape) != 2 {
		return nil, fmt.Errorf("%w: Matrix needs a 2-D spectrum, got %d dimensions", ErrShapeMismatch, len(d.Shape))
	}
	data := make([]float64, len(d.Data))
	copy(data, d.Data)
	return mat.NewDense(d.Shape[0], d.Shape[1], data), nil
}
