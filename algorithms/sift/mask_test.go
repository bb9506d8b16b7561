package sift

import (
	"errors"
	"math"
	"testing"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/internal/testutil"
)

func sineWithNoise(n int) []float64 {
	return testutil.Sum(testutil.Sine(20, 1000, 1, n), testutil.GaussianNoise(5, 0.1, n))
}

func maskConfig(phases, workers int) MaskConfig {
	cfg := DefaultMaskConfig()
	cfg.Phases = phases
	cfg.Workers = workers
	cfg.Frequencies = []float64{0.2, 0.05}
	cfg.Sift.MaxIMFs = 3
	return cfg
}

func largestStd(imfs [][]float64) float64 {
	best := 0.0
	for _, imf := range imfs {
		best = math.Max(best, common.PopulationStd(imf))
	}
	return best
}

func TestMaskSift_PhaseCountIndependence(t *testing.T) {
	x := sineWithNoise(2000)

	four, err := MaskSift(x, maskConfig(4, 1))
	if err != nil {
		t.Fatalf("4 phases: %v", err)
	}
	eight, err := MaskSift(x, maskConfig(8, 1))
	if err != nil {
		t.Fatalf("8 phases: %v", err)
	}

	a, b := largestStd(four.IMFs), largestStd(eight.IMFs)
	if math.Abs(a-b)/b > 0.15 {
		t.Errorf("dominant IMF std differs: 4 phases %v, 8 phases %v", a, b)
	}
	if b < 0.3 {
		t.Errorf("dominant IMF std %v, the 20 Hz tone was lost", b)
	}
}

func TestMaskSift_Reconstruction(t *testing.T) {
	x := sineWithNoise(1500)

	for _, mode := range []MaskAmpMode{MaskAmpRatioIMF, MaskAmpRatioSignal, MaskAmpAbsolute} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := maskConfig(4, 1)
			cfg.AmplitudeMode = mode

			res, err := MaskSift(x, cfg)
			if err != nil {
				t.Fatalf("MaskSift: %v", err)
			}
			if res.NumIMFs() < 1 || res.NumIMFs() > 3 {
				t.Errorf("got %d IMFs, want 1 to 3", res.NumIMFs())
			}
			if len(res.MemberIMFCounts) != 0 {
				t.Errorf("MemberIMFCounts = %v, want empty for a mask sift", res.MemberIMFCounts)
			}
			testutil.RequireSliceNearlyEqual(t, res.Reconstruct(), x, 1e-10)
		})
	}
}

func TestMaskSift_FrequencyHeuristics(t *testing.T) {
	x := sineWithNoise(1500)

	for _, mode := range []MaskFreqMode{MaskZeroCrossing, MaskInstFreq, MaskFixed} {
		t.Run(mode.String(), func(t *testing.T) {
			cfg := DefaultMaskConfig()
			cfg.FirstMode = mode
			cfg.FirstFrequency = 0.25
			cfg.Sift.MaxIMFs = 4

			res, err := MaskSift(x, cfg)
			if err != nil {
				t.Fatalf("MaskSift: %v", err)
			}
			if res.NumIMFs() < 1 {
				t.Fatal("expected at least one IMF")
			}
			testutil.RequireSliceNearlyEqual(t, res.Reconstruct(), x, 1e-10)
		})
	}
}

func TestMaskSift_WorkerDeterminism(t *testing.T) {
	x := sineWithNoise(1000)

	serial, err := MaskSift(x, maskConfig(6, 1))
	if err != nil {
		t.Fatalf("serial: %v", err)
	}
	parallel, err := MaskSift(x, maskConfig(6, 3))
	if err != nil {
		t.Fatalf("parallel: %v", err)
	}
	testutil.RequireSetsNearlyEqual(t, parallel.IMFs, serial.IMFs, 0)
}

func TestMaskSift_NoExtrema(t *testing.T) {
	x := testutil.Ramp(0, 1, 300)
	res, err := MaskSift(x, maskConfig(4, 1))
	if err != nil {
		t.Fatalf("MaskSift: %v", err)
	}
	if res.NumIMFs() != 0 {
		t.Errorf("got %d IMFs, want 0", res.NumIMFs())
	}
	testutil.RequireSliceNearlyEqual(t, res.Trend, x, 0)
}

func TestMask(t *testing.T) {
	got := Mask(4, 0.25, 2, 0)
	testutil.RequireSliceNearlyEqual(t, got, []float64{2, 0, -2, 0}, 1e-12)

	shifted := Mask(4, 0.25, 1, math.Pi/2)
	testutil.RequireSliceNearlyEqual(t, shifted, []float64{0, -1, 0, 1}, 1e-12)
}

func TestMaskSchedule(t *testing.T) {
	tests := []struct {
		freqs []float64
		layer int
		want  float64
	}{
		{[]float64{0.2}, 0, 0.2},
		{[]float64{0.2}, 1, 0.1},
		{[]float64{0.2}, 3, 0.025},
		{[]float64{0.3, 0.1}, 1, 0.1},
		{[]float64{0.3, 0.1}, 2, 0.05},
	}
	for _, tt := range tests {
		s := maskSchedule{freqs: tt.freqs, step: 2}
		if got := s.at(tt.layer); math.Abs(got-tt.want) > 1e-15 {
			t.Errorf("%v layer %d: got %v, want %v", tt.freqs, tt.layer, got, tt.want)
		}
	}
}

func TestFirstMaskFrequency(t *testing.T) {
	// 50 cycles in 1000 samples is 0.05 cycles per sample
	imf := testutil.Sine(50, 1000, 1, 1000)

	for _, mode := range []MaskFreqMode{MaskZeroCrossing, MaskInstFreq} {
		if got := FirstMaskFrequency(imf, mode); math.Abs(got-0.05) > 0.002 {
			t.Errorf("%v: got %v, want ~0.05", mode, got)
		}
	}

	if got := FirstMaskFrequency(make([]float64, 100), MaskZeroCrossing); got != 0.01 {
		t.Errorf("flat input: got %v, want the 1/n floor", got)
	}
}

func TestSecondLayer(t *testing.T) {
	n := 1000
	slow := testutil.Sum(testutil.Sine(5, 1000, 0.5, n), testutil.Ramp(1, 0, n))
	flat := testutil.Ramp(2, 0, n)

	cfg := DefaultMaskConfig()
	cfg.Sift.MaxIMFs = 2

	sets, err := SecondLayer([][]float64{slow, flat}, []float64{0.02, 0.01}, cfg)
	if err != nil {
		t.Fatalf("SecondLayer: %v", err)
	}
	if len(sets) != 2 {
		t.Fatalf("got %d sets, want 2", len(sets))
	}
	for k, set := range sets {
		if len(set) != 2 {
			t.Errorf("set %d has %d IMFs, want 2", k, len(set))
		}
		for _, imf := range set {
			if len(imf) != n {
				t.Errorf("set %d IMF length %d, want %d", k, len(imf), n)
			}
		}
	}
	if common.MaxAbs(sets[1][0]) != 0 {
		t.Error("flat amplitude should give zero padded IMFs")
	}
	for _, imf := range sets[0] {
		testutil.RequireFinite(t, imf)
	}
}

func TestMaskConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*MaskConfig)
	}{
		{"no phases", func(c *MaskConfig) { c.Phases = 0 }},
		{"frequency above nyquist", func(c *MaskConfig) { c.Frequencies = []float64{0.7} }},
		{"zero frequency", func(c *MaskConfig) { c.Frequencies = []float64{0.1, 0} }},
		{"fixed without frequency", func(c *MaskConfig) { c.FirstMode = MaskFixed }},
		{"zero step", func(c *MaskConfig) { c.StepFactor = 0 }},
		{"no workers", func(c *MaskConfig) { c.Workers = 0 }},
		{"unknown amplitude mode", func(c *MaskConfig) { c.AmplitudeMode = MaskAmpMode(7) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultMaskConfig()
			tt.modify(&cfg)
			if _, err := NewMaskSifter(cfg); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("got %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}
