package sift

import (
	"math"

	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
)

// Config configures the classic sift.
type Config struct {
	Envelope envelope.Options `json:"envelope_opts"`
	Stop     StopConfig       `json:"imf_opts"`

	// MaxIterations is the hard ceiling on iterations per IMF. Ignored by
	// the fixed stop method.
	MaxIterations int `json:"max_iters"`

	// MaxIMFs limits the number of IMFs. Zero means no limit.
	MaxIMFs int `json:"max_imfs"`

	// SiftThreshold ends the sift once an IMF's absolute sum is below it.
	// Zero disables the check.
	SiftThreshold float64 `json:"sift_thresh"`

	// EnergyThresholdDB ends the sift once the residual energy is this many
	// decibels below the input energy. Zero disables the check.
	EnergyThresholdDB float64 `json:"energy_thresh"`

	// RelativeEnergyDB drops an IMF whose energy is more than this many
	// decibels below the IMF before it. The dropped IMF stays in the trend
	// and the sift ends. Zero disables the check.
	RelativeEnergyDB float64 `json:"imf_energy_ratio"`
}

// DefaultConfig returns the sd criterion at 0.1, spline envelopes with
// reflected edges, 1000 iterations per IMF and no IMF limit.
func DefaultConfig() Config {
	return Config{
		Envelope:          envelope.DefaultOptions(),
		Stop:              DefaultStopConfig(),
		MaxIterations:     1000,
		MaxIMFs:           0,
		SiftThreshold:     1e-8,
		EnergyThresholdDB: 50,
		RelativeEnergyDB:  30,
	}
}

// Validate checks every option. Called by NewSifter before any work.
func (c Config) Validate() error {
	if err := c.Envelope.Validate(); err != nil {
		return err
	}
	if err := c.Stop.Validate(); err != nil {
		return err
	}
	if c.MaxIterations < 1 && c.Stop.Method != StopFixed {
		return configError("max iterations must be at least 1, got %d", c.MaxIterations)
	}
	if c.MaxIMFs < 0 {
		return configError("max IMFs must be non-negative, got %d", c.MaxIMFs)
	}
	if c.SiftThreshold < 0 || math.IsNaN(c.SiftThreshold) {
		return configError("sift threshold must be non-negative, got %v", c.SiftThreshold)
	}
	if c.EnergyThresholdDB < 0 || math.IsNaN(c.EnergyThresholdDB) {
		return configError("energy threshold must be non-negative, got %v", c.EnergyThresholdDB)
	}
	if c.RelativeEnergyDB < 0 || math.IsNaN(c.RelativeEnergyDB) {
		return configError("relative IMF energy threshold must be non-negative, got %v", c.RelativeEnergyDB)
	}
	return nil
}
