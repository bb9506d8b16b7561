package sift

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
	"github.com/RyanBlaney/sonido-emd/internal/testutil"
	"github.com/RyanBlaney/sonido-emd/logging"
)

func TestSift_GaussianNoise(t *testing.T) {
	x := testutil.GaussianNoise(42, 1, 5000)

	res, err := Sift(x, DefaultConfig())
	if err != nil {
		t.Fatalf("Sift: %v", err)
	}
	if res.NumIMFs() < 1 {
		t.Fatal("expected at least one IMF")
	}
	testutil.RequireSliceNearlyEqual(t, res.Reconstruct(), x, 1e-10)
	if len(res.Diagnostics) != res.NumIMFs() {
		t.Errorf("%d diagnostics for %d IMFs", len(res.Diagnostics), res.NumIMFs())
	}
}

func TestSift_PureSine(t *testing.T) {
	// 10 whole periods, so the reflected envelopes are flat
	x := testutil.Sine(10, 1000, 1, 1000)

	res, err := Sift(x, DefaultConfig())
	if err != nil {
		t.Fatalf("Sift: %v", err)
	}
	if res.NumIMFs() != 1 {
		t.Fatalf("got %d IMFs, want 1", res.NumIMFs())
	}
	testutil.RequireSliceNearlyEqual(t, res.IMFs[0], x, 1e-6)
	if common.MaxAbs(res.Trend) > 1e-6 {
		t.Errorf("trend not flat: max |trend| = %v", common.MaxAbs(res.Trend))
	}
	if res.Diagnostics[0].State != StateConverged {
		t.Errorf("state %v, want converged", res.Diagnostics[0].State)
	}
}

func TestSift_PureSineFractionalPeriods(t *testing.T) {
	// Frequencies that do not fit a whole number of periods in the window,
	// down to about 12 samples per period
	for _, freq := range []float64{42.8, 61.3, 80.2, 93.9} {
		t.Run(fmt.Sprintf("%.1fHz", freq), func(t *testing.T) {
			x := testutil.Sine(freq, 1000, 1, 1000)

			res, err := Sift(x, DefaultConfig())
			if err != nil {
				t.Fatalf("Sift: %v", err)
			}
			if res.NumIMFs() != 1 {
				t.Fatalf("got %d IMFs, want 1", res.NumIMFs())
			}
			testutil.RequireSliceNearlyEqual(t, res.Reconstruct(), x, 1e-10)

			if ratio := common.Energy(res.Trend) / common.Energy(x); ratio > 1e-2 {
				t.Errorf("trend holds %.3g of the signal energy", ratio)
			}
			if m := common.MaxAbs(res.Trend); m > 0.2 {
				t.Errorf("max |trend| = %v", m)
			}
		})
	}
}

func TestSifter_Negligible(t *testing.T) {
	tests := []struct {
		name      string
		threshold float64
		energy    float64
		prev      float64
		want      bool
	}{
		{"40 dB below", 30, 1e-4, 1, true},
		{"20 dB below", 30, 1e-2, 1, false},
		{"larger than previous", 30, 5, 1, false},
		{"zero energy", 30, 0, 1, true},
		{"no previous IMF", 30, 1e-9, 0, false},
		{"disabled", 0, 1e-9, 1, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.RelativeEnergyDB = tt.threshold
			s, err := NewSifter(cfg)
			if err != nil {
				t.Fatalf("NewSifter: %v", err)
			}
			if got := s.negligible(tt.energy, tt.prev); got != tt.want {
				t.Errorf("negligible(%v, %v) = %v, want %v", tt.energy, tt.prev, got, tt.want)
			}
		})
	}
}

func TestSift_Reconstruction(t *testing.T) {
	x := testutil.Sum(testutil.TwoTone(2000), testutil.GaussianNoise(3, 0.2, 2000))

	methods := []StopMethod{StopSD, StopRilling, StopFixed, StopEnergy}
	interps := []envelope.Interp{envelope.InterpSpline, envelope.InterpMonotonicCubic, envelope.InterpAkima}

	for _, method := range methods {
		for _, interp := range interps {
			t.Run(method.String()+"/"+interp.String(), func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.Stop.Method = method
				cfg.Envelope.Interp = interp
				cfg.MaxIterations = 100

				res, err := Sift(x, cfg)
				if err != nil {
					t.Fatalf("Sift: %v", err)
				}
				if res.NumIMFs() < 2 {
					t.Errorf("got %d IMFs, want at least 2", res.NumIMFs())
				}
				testutil.RequireSliceNearlyEqual(t, res.Reconstruct(), x, 1e-10)
			})
		}
	}
}

func TestSift_Idempotence(t *testing.T) {
	x := testutil.TwoTone(2000)
	cfg := DefaultConfig()

	sifter, err := NewSifter(cfg)
	if err != nil {
		t.Fatalf("NewSifter: %v", err)
	}
	res, err := sifter.Sift(x)
	if err != nil {
		t.Fatalf("Sift: %v", err)
	}
	if res.Diagnostics[0].State != StateConverged {
		t.Fatalf("first IMF did not converge: %v", res.Diagnostics[0].State)
	}

	again, err := sifter.NextIMF(res.IMFs[0])
	if err != nil {
		t.Fatalf("NextIMF: %v", err)
	}
	if again.State != StateConverged || again.Metric >= cfg.Stop.SDThreshold {
		t.Errorf("resifting a converged IMF: state %v metric %v", again.State, again.Metric)
	}
}

func TestSift_MonotonicSimplification(t *testing.T) {
	x := testutil.GaussianNoise(9, 1, 3000)

	res, err := Sift(x, DefaultConfig())
	if err != nil {
		t.Fatalf("Sift: %v", err)
	}
	if res.NumIMFs() < 3 {
		t.Fatalf("got %d IMFs, want at least 3", res.NumIMFs())
	}

	first := envelope.CountExtrema(res.IMFs[0])
	last := envelope.CountExtrema(res.IMFs[res.NumIMFs()-1])
	if last >= first {
		t.Errorf("last IMF has %d extrema, first has %d", last, first)
	}

	// Extrema of the running residual should fall as IMFs are removed
	residual := common.Copy(x)
	prev := envelope.CountExtrema(residual)
	increases := 0
	for _, imf := range res.IMFs {
		for i := range residual {
			residual[i] -= imf[i]
		}
		n := envelope.CountExtrema(residual)
		if n > prev {
			increases++
		}
		prev = n
	}
	if increases > res.NumIMFs()/2 {
		t.Errorf("residual extrema increased %d times over %d IMFs", increases, res.NumIMFs())
	}
	if envelope.CountExtrema(res.Trend) >= envelope.CountExtrema(x) {
		t.Error("trend is not simpler than the input")
	}
}

func TestSift_NoExtrema(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
	}{
		{"ramp", testutil.Ramp(1, 0.5, 200)},
		{"single sample", []float64{3}},
		{"one bump", []float64{0, 1, 0, 0.5, 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := Sift(tt.x, DefaultConfig())
			if err != nil {
				t.Fatalf("Sift: %v", err)
			}
			if res.NumIMFs() != 0 {
				t.Errorf("got %d IMFs, want 0", res.NumIMFs())
			}
			testutil.RequireSliceNearlyEqual(t, res.Trend, tt.x, 0)
		})
	}
}

func TestSift_DoesNotModifyInput(t *testing.T) {
	x := testutil.TwoTone(500)
	orig := common.Copy(x)
	if _, err := Sift(x, DefaultConfig()); err != nil {
		t.Fatalf("Sift: %v", err)
	}
	testutil.RequireSliceNearlyEqual(t, x, orig, 0)
}

func TestSift_MaxIMFs(t *testing.T) {
	x := testutil.GaussianNoise(1, 1, 2000)
	cfg := DefaultConfig()
	cfg.MaxIMFs = 2

	res, err := Sift(x, cfg)
	if err != nil {
		t.Fatalf("Sift: %v", err)
	}
	if res.NumIMFs() != 2 {
		t.Errorf("got %d IMFs, want 2", res.NumIMFs())
	}
	testutil.RequireSliceNearlyEqual(t, res.Reconstruct(), x, 1e-10)
}

func TestSift_MaxIterationWarning(t *testing.T) {
	x := testutil.GaussianNoise(5, 1, 1000)
	cfg := DefaultConfig()
	cfg.Stop.SDThreshold = 1e-12
	cfg.MaxIterations = 1
	cfg.MaxIMFs = 1

	var stdout, stderr bytes.Buffer
	sifter, err := NewSifter(cfg)
	if err != nil {
		t.Fatalf("NewSifter: %v", err)
	}
	sifter = sifter.WithLogger(logging.NewDefaultLoggerWithWriters(&stdout, &stderr, false))

	res, err := sifter.Sift(x)
	if err != nil {
		t.Fatalf("Sift returned the warning as an error: %v", err)
	}
	if res.NumIMFs() != 1 {
		t.Fatalf("got %d IMFs, want 1", res.NumIMFs())
	}

	d := res.Diagnostics[0]
	if d.State != StateMaxIterReached || d.Iterations != 1 {
		t.Errorf("diagnostic %+v", d)
	}

	warnings := res.Warnings()
	if len(warnings) != 1 {
		t.Fatalf("got %d warnings, want 1", len(warnings))
	}
	var w *MaxIterationWarning
	if !errors.As(warnings[0], &w) || w.IMF != 0 || w.Iterations != 1 {
		t.Errorf("warning %v", warnings[0])
	}

	if !strings.Contains(stdout.String(), "STARTED: sift") || !strings.Contains(stdout.String(), "COMPLETED: sift") {
		t.Errorf("missing progress logs: %q", stdout.String())
	}
	if !strings.Contains(stderr.String(), "iteration ceiling reached") {
		t.Errorf("missing warning log: %q", stderr.String())
	}
}

func TestSift_FixedIgnoresCeiling(t *testing.T) {
	x := testutil.TwoTone(1000)
	cfg := DefaultConfig()
	cfg.Stop.Method = StopFixed
	cfg.Stop.FixedIterations = 3
	cfg.MaxIterations = 1

	res, err := Sift(x, cfg)
	if err != nil {
		t.Fatalf("Sift: %v", err)
	}
	for _, d := range res.Diagnostics {
		if d.Iterations != 3 || d.State != StateConverged {
			t.Errorf("IMF %d: %d iterations, state %v", d.Index, d.Iterations, d.State)
		}
	}
}

func TestSift_InvalidConfiguration(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"unknown stop method", func(c *Config) { c.Stop.Method = StopMethod(9) }},
		{"unknown interpolation", func(c *Config) { c.Envelope.Interp = envelope.Interp(9) }},
		{"no iterations", func(c *Config) { c.MaxIterations = 0 }},
		{"negative max imfs", func(c *Config) { c.MaxIMFs = -1 }},
		{"zero sd threshold", func(c *Config) { c.Stop.SDThreshold = 0 }},
		{"rilling sigma order", func(c *Config) {
			c.Stop.Method = StopRilling
			c.Stop.RillingSigma2 = c.Stop.RillingSigma1
		}},
		{"negative energy threshold", func(c *Config) { c.EnergyThresholdDB = -1 }},
		{"negative relative energy", func(c *Config) { c.RelativeEnergyDB = -3 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if _, err := NewSifter(cfg); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("got %v, want ErrInvalidConfiguration", err)
			}
			if _, err := Sift([]float64{1, 2, 1}, cfg); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("Sift: got %v, want ErrInvalidConfiguration", err)
			}
		})
	}
}

func TestSift_InvalidInput(t *testing.T) {
	for name, x := range map[string][]float64{
		"empty": nil,
		"nan":   {1, math.NaN(), 1},
		"inf":   {1, math.Inf(1), 1},
	} {
		if _, err := Sift(x, DefaultConfig()); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("%s: got %v, want ErrInvalidInput", name, err)
		}
	}
}

func TestConfig_JSON(t *testing.T) {
	cfg := DefaultConfig()
	doc := `{"imf_opts":{"stop_method":"rilling","rilling_consecutive":2},"envelope_opts":{"interp_method":"pchip"},"max_imfs":4}`
	if err := json.Unmarshal([]byte(doc), &cfg); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if cfg.Stop.Method != StopRilling || cfg.Stop.RillingConsecutive != 2 {
		t.Errorf("stop %+v", cfg.Stop)
	}
	if cfg.Envelope.Interp != envelope.InterpMonotonicCubic || cfg.MaxIMFs != 4 {
		t.Errorf("config %+v", cfg)
	}
	if cfg.Stop.SDThreshold != 0.1 || cfg.MaxIterations != 1000 {
		t.Error("defaults not kept for absent keys")
	}

	bad := `{"imf_opts":{"stop_method":"cauchy"}}`
	if err := json.Unmarshal([]byte(bad), &cfg); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("got %v, want ErrInvalidConfiguration", err)
	}
}
