package envelope

import (
	"encoding/json"
	"errors"
	"math"
	"testing"
)

func sine(n int, period float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * float64(i) / period)
	}
	return out
}

func TestFindExtrema(t *testing.T) {
	x := []float64{0, 2, 1, 1, 3, -1, 0, 0, -2, 5}
	maxLocs, minLocs := FindExtrema(x)

	wantMax := []int{1, 4}
	wantMin := []int{5, 8}
	if !equalInts(maxLocs, wantMax) {
		t.Errorf("maxima = %v, want %v", maxLocs, wantMax)
	}
	if !equalInts(minLocs, wantMin) {
		t.Errorf("minima = %v, want %v", minLocs, wantMin)
	}
	if got := CountExtrema(x); got != 4 {
		t.Errorf("CountExtrema = %d, want 4", got)
	}
}

func TestCountZeroCrossings(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want int
	}{
		{"empty", nil, 0},
		{"alternating", []float64{1, -1, 1, -1}, 3},
		{"zero counts as positive", []float64{-1, 0, 1}, 1},
		{"constant", []float64{2, 2, 2}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CountZeroCrossings(tt.x); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPadExtrema(t *testing.T) {
	x := make([]float64, 40)
	locs := []int{5, 15, 25, 35}
	for i, l := range locs {
		x[l] = float64(i + 1)
	}

	xs, ys := padExtrema(locs, x, BoundaryReflect, 2)
	wantXs := []float64{-15, -5, 5, 15, 25, 35, 45, 55}
	wantYs := []float64{1, 1, 1, 2, 3, 4, 4, 4}
	if !equalFloats(xs, wantXs) || !equalFloats(ys, wantYs) {
		t.Errorf("reflect: got %v %v, want %v %v", xs, ys, wantXs, wantYs)
	}

	xs, ys = padExtrema(locs, x, BoundaryMirror, 2)
	wantYs = []float64{3, 2, 1, 2, 3, 4, 3, 2}
	if !equalFloats(xs, wantXs) || !equalFloats(ys, wantYs) {
		t.Errorf("mirror: got %v %v, want %v %v", xs, ys, wantXs, wantYs)
	}

	xs, _ = padExtrema(locs[:2], x, BoundaryReflect, 5)
	if len(xs) != 4 {
		t.Errorf("pad width should be limited by extrema count, got %v", xs)
	}

	xs, _ = padExtrema(locs, x, BoundaryNone, 2)
	if len(xs) != len(locs) {
		t.Errorf("no padding expected, got %v", xs)
	}
}

func TestEstimate_SineEnvelopeIsFlat(t *testing.T) {
	x := sine(1000, 100)

	for _, method := range []Interp{InterpSpline, InterpMonotonicCubic, InterpAkima} {
		t.Run(method.String(), func(t *testing.T) {
			est, err := NewEstimator(Options{Interp: method, Boundary: BoundaryReflect, PadWidth: 2})
			if err != nil {
				t.Fatalf("NewEstimator: %v", err)
			}
			env, err := est.Estimate(x)
			if err != nil {
				t.Fatalf("Estimate: %v", err)
			}
			if len(env.Upper) != len(x) || len(env.Lower) != len(x) {
				t.Fatalf("envelope lengths %d/%d, want %d", len(env.Upper), len(env.Lower), len(x))
			}
			for i := range x {
				if math.Abs(env.Upper[i]-1) > 1e-6 || math.Abs(env.Lower[i]+1) > 1e-6 {
					t.Fatalf("index %d: upper %v lower %v, want +-1", i, env.Upper[i], env.Lower[i])
				}
			}
			for i, m := range env.Mean() {
				if math.Abs(m) > 1e-6 {
					t.Fatalf("mean[%d] = %v, want ~0", i, m)
				}
			}
			for i, a := range env.Amplitude() {
				if math.Abs(a-1) > 1e-6 {
					t.Fatalf("amplitude[%d] = %v, want ~1", i, a)
				}
			}
		})
	}
}

func TestEstimate_InsufficientExtrema(t *testing.T) {
	est, err := NewEstimator(DefaultOptions())
	if err != nil {
		t.Fatalf("NewEstimator: %v", err)
	}

	ramp := make([]float64, 100)
	for i := range ramp {
		ramp[i] = float64(i)
	}

	if _, err := est.Estimate(ramp); !errors.Is(err, ErrInsufficientExtrema) {
		t.Errorf("ramp: got %v, want ErrInsufficientExtrema", err)
	}
	oneCycle := sine(100, 100)
	if _, err := est.Estimate(oneCycle); !errors.Is(err, ErrInsufficientExtrema) {
		t.Errorf("single cycle: got %v, want ErrInsufficientExtrema", err)
	}
	if _, err := est.Upper(ramp); !errors.Is(err, ErrInsufficientExtrema) {
		t.Errorf("Upper on ramp: got %v, want ErrInsufficientExtrema", err)
	}
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"defaults", DefaultOptions(), true},
		{"bad interp", Options{Interp: Interp(9)}, false},
		{"bad boundary", Options{Boundary: Boundary(-1)}, false},
		{"negative pad", Options{PadWidth: -1}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewEstimator(tt.opts)
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidConfiguration) {
				t.Fatalf("got %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestParseInterp(t *testing.T) {
	tests := map[string]Interp{
		"spline":          InterpSpline,
		"splrep":          InterpSpline,
		"monotonic-cubic": InterpMonotonicCubic,
		"mono_pchip":      InterpMonotonicCubic,
		"Akima":           InterpAkima,
	}
	for name, want := range tests {
		got, err := ParseInterp(name)
		if err != nil || got != want {
			t.Errorf("ParseInterp(%q) = %v, %v; want %v", name, got, err, want)
		}
	}
	if _, err := ParseInterp("nearest"); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("unknown method: got %v", err)
	}
}

func TestOptionsJSON(t *testing.T) {
	var opts Options
	if err := json.Unmarshal([]byte(`{"interp_method":"pchip","boundary":"mirror","pad_width":3}`), &opts); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if opts.Interp != InterpMonotonicCubic || opts.Boundary != BoundaryMirror || opts.PadWidth != 3 {
		t.Errorf("unexpected options %+v", opts)
	}

	data, err := json.Marshal(opts)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != `{"interp_method":"monotonic-cubic","boundary":"mirror","pad_width":3}` {
		t.Errorf("unexpected JSON %s", data)
	}

	err = json.Unmarshal([]byte(`{"interp_method":"quadratic"}`), &opts)
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("got %v, want ErrInvalidConfiguration", err)
	}
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func equalFloats(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
