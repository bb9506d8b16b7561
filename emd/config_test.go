package emd

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
	"github.com/RyanBlaney/sonido-emd/algorithms/hht"
	"github.com/RyanBlaney/sonido-emd/algorithms/sift"
	"github.com/RyanBlaney/sonido-emd/algorithms/spectral"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Method != MethodSift || cfg.Workers != 1 {
		t.Errorf("got method %v workers %d", cfg.Method, cfg.Workers)
	}
	if cfg.Spectrum.Mode != hht.ModePower || cfg.Spectrum.ReturnSparse {
		t.Errorf("spectrum %+v", cfg.Spectrum)
	}
}

func TestConfig_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emd.json")

	cfg := DefaultConfig()
	cfg.Method = MethodMaskSift
	cfg.Workers = 3
	cfg.Sift.Stop.Method = sift.StopRilling
	cfg.Sift.Envelope.Interp = envelope.InterpAkima
	cfg.Mask.Frequencies = []float64{200, 50}
	cfg.Spectrum.FrequencyMethod = spectral.MethodNormalizedHilbert
	cfg.Spectrum.ReturnSparse = true

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if got.Method != MethodMaskSift || got.Workers != 3 {
		t.Errorf("method %v workers %d", got.Method, got.Workers)
	}
	if got.Sift.Stop.Method != sift.StopRilling || got.Sift.Envelope.Interp != envelope.InterpAkima {
		t.Errorf("sift %+v", got.Sift)
	}
	if len(got.Mask.Frequencies) != 2 || got.Mask.Frequencies[1] != 50 {
		t.Errorf("mask frequencies %v", got.Mask.Frequencies)
	}
	if got.Spectrum.FrequencyMethod != spectral.MethodNormalizedHilbert || !got.Spectrum.ReturnSparse {
		t.Errorf("spectrum %+v", got.Spectrum)
	}
}

func TestLoadConfig_PartialDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "emd.json")
	doc := `{"method":"ensemble","ensemble":{"nensembles":8},"sift":{"imf_opts":{"stop_method":"fixed"}}}`
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Method != MethodEnsembleSift || cfg.Ensemble.Ensembles != 8 {
		t.Errorf("got %v with %d members", cfg.Method, cfg.Ensemble.Ensembles)
	}
	if cfg.Sift.Stop.Method != sift.StopFixed {
		t.Errorf("stop method %v", cfg.Sift.Stop.Method)
	}
	def := DefaultConfig()
	if cfg.Ensemble.NoiseStd != def.Ensemble.NoiseStd || cfg.Sift.MaxIterations != def.Sift.MaxIterations {
		t.Error("defaults not kept for absent keys")
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"unknown method", `{"method":"wavelet"}`},
		{"unknown stop method", `{"sift":{"imf_opts":{"stop_method":"cauchy"}}}`},
		{"unknown interpolation", `{"sift":{"envelope_opts":{"interp_method":"nearest"}}}`},
		{"no workers", `{"n_workers":0}`},
		{"unknown mode", `{"spectrum":{"mode":"energy"}}`},
		{"negative second layer mask", `{"mask":{"second_layer_mask_freqs":[-1]}}`},
		{"no phases", `{"method":"mask","mask":{"nphases":0}}`},
		{"no members", `{"method":"ensemble_sift","ensemble":{"nensembles":0}}`},
		{"zero cycle phase step", `{"cycles":{"phase_step":0}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "emd.json")
			if err := os.WriteFile(path, []byte(tt.doc), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadConfig(path); !errors.Is(err, ErrInvalidConfiguration) {
				t.Errorf("got %v, want ErrInvalidConfiguration", err)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("missing file should fail")
	}
}

func TestParseMethod(t *testing.T) {
	for name, want := range map[string]Method{
		"sift":          MethodSift,
		"ensemble_sift": MethodEnsembleSift,
		"ensemble":      MethodEnsembleSift,
		"mask_sift":     MethodMaskSift,
		"Mask":          MethodMaskSift,
	} {
		got, err := ParseMethod(name)
		if err != nil || got != want {
			t.Errorf("ParseMethod(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseMethod("hht"); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("got %v, want ErrInvalidConfiguration", err)
	}
}

func TestMaskConfig_Conversion(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Mask.Frequencies = []float64{100, 25}
	cfg.Mask.FirstFrequency = 50

	mc := cfg.maskConfig(1000)
	if len(mc.Frequencies) != 2 || mc.Frequencies[0] != 0.1 || mc.Frequencies[1] != 0.025 {
		t.Errorf("frequencies %v", mc.Frequencies)
	}
	if mc.FirstFrequency != 0.05 {
		t.Errorf("first frequency %v", mc.FirstFrequency)
	}

	// 600 Hz at 1 kHz is above Nyquist
	cfg.Mask.Frequencies = []float64{600}
	if err := cfg.maskConfig(1000).Validate(); !errors.Is(err, ErrInvalidConfiguration) {
		t.Errorf("got %v, want ErrInvalidConfiguration", err)
	}
}
