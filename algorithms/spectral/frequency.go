package spectral

import (
	"errors"
	"fmt"
	"math"
	"math/cmplx"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/RyanBlaney/sonido-emd/algorithms/common"
	"github.com/RyanBlaney/sonido-emd/algorithms/envelope"
)

const phaseEps = 1e-9

// Method selects how instantaneous phase is estimated.
type Method int

const (
	// MethodHilbert takes phase and amplitude from the analytic signal.
	MethodHilbert Method = iota
	// MethodNormalizedHilbert removes amplitude modulation with
	// AmplitudeNormalize before taking the phase. Amplitude still comes
	// from the raw analytic signal.
	MethodNormalizedHilbert
)

func (m Method) String() string {
	switch m {
	case MethodHilbert:
		return "hilbert"
	case MethodNormalizedHilbert:
		return "nht"
	default:
		return fmt.Sprintf("Method(%d)", int(m))
	}
}

// ParseMethod converts an option string into a Method.
func ParseMethod(name string) (Method, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hilbert":
		return MethodHilbert, nil
	case "nht":
		return MethodNormalizedHilbert, nil
	default:
		return 0, fmt.Errorf("%w: unknown frequency method %q", envelope.ErrInvalidConfiguration, name)
	}
}

func (m Method) MarshalText() ([]byte, error) {
	if m != MethodHilbert && m != MethodNormalizedHilbert {
		return nil, fmt.Errorf("%w: unknown frequency method %d", envelope.ErrInvalidConfiguration, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Method) UnmarshalText(text []byte) error {
	parsed, err := ParseMethod(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Instantaneous holds per-sample estimates for a set of IMFs, indexed
// [imf][sample]. Phase is wrapped to [0, 2*pi) with zero at the ascending
// zero crossing, pi/2 at the peak, pi at the descending zero crossing and
// 3*pi/2 at the trough. Frequency is in Hz.
type Instantaneous struct {
	Phase      [][]float64
	Frequency  [][]float64
	Amplitude  [][]float64
	SampleRate float64
}

// FrequencyTransform estimates instantaneous phase, frequency and amplitude
// of every IMF.
func FrequencyTransform(imfs [][]float64, sampleRate float64, method Method) (*Instantaneous, error) {
	if !(sampleRate > 0) {
		return nil, fmt.Errorf("sample rate must be positive, got %v", sampleRate)
	}
	if _, err := method.MarshalText(); err != nil {
		return nil, err
	}

	f := NewFFT()
	out := &Instantaneous{
		Phase:      make([][]float64, len(imfs)),
		Frequency:  make([][]float64, len(imfs)),
		Amplitude:  make([][]float64, len(imfs)),
		SampleRate: sampleRate,
	}

	for k, imf := range imfs {
		if len(imf) == 0 {
			return nil, fmt.Errorf("IMF %d is empty", k)
		}

		analytic := f.AnalyticSignal(imf)
		amp := make([]float64, len(imf))
		for i, z := range analytic {
			amp[i] = cmplx.Abs(z)
		}

		if method == MethodNormalizedHilbert {
			normed, err := AmplitudeNormalize(imf, 3)
			if err != nil {
				return nil, fmt.Errorf("IMF %d: %w", k, err)
			}
			analytic = f.AnalyticSignal(normed)
		}

		phase := make([]float64, len(imf))
		for i, z := range analytic {
			phase[i] = WrapPhase(cmplx.Phase(z) + math.Pi/2)
		}

		out.Phase[k] = phase
		out.Frequency[k] = FreqFromPhase(phase, sampleRate)
		out.Amplitude[k] = amp
	}
	return out, nil
}

// WrapPhase maps p into [0, 2*pi).
func WrapPhase(p float64) float64 {
	p = math.Mod(p, 2*math.Pi)
	if p < 0 {
		p += 2 * math.Pi
	}
	return p
}

// UnwrapPhase returns a new phase slice with +/-2*pi discontinuities removed.
func UnwrapPhase(phase []float64) []float64 {
	out := make([]float64, len(phase))
	if len(phase) == 0 {
		return out
	}
	out[0] = phase[0]
	offset := 0.0
	for i := 1; i < len(phase); i++ {
		d := phase[i] - phase[i-1]
		if d > math.Pi {
			offset -= 2 * math.Pi
		} else if d < -math.Pi {
			offset += 2 * math.Pi
		}
		out[i] = phase[i] + offset
	}
	return out
}

// FreqFromPhase converts wrapped phase in radians into frequency in Hz using
// the centred gradient of the unwrapped phase. The output has the input's
// length.
func FreqFromPhase(phase []float64, sampleRate float64) []float64 {
	n := len(phase)
	out := make([]float64, n)
	if n < 2 {
		return out
	}

	unwrapped := UnwrapPhase(phase)
	scale := sampleRate / (2 * math.Pi)

	out[0] = (unwrapped[1] - unwrapped[0]) * scale
	out[n-1] = (unwrapped[n-1] - unwrapped[n-2]) * scale
	for i := 1; i < n-1; i++ {
		out[i] = (unwrapped[i+1] - unwrapped[i-1]) / 2 * scale
	}
	return out
}

// PhaseFromFreq integrates frequency in Hz into phase wrapped to (-pi, pi],
// starting from phaseStart. Each sample is taken from the running sum of
// frequencies so rounding does not build up across samples.
func PhaseFromFreq(freq []float64, sampleRate, phaseStart float64) []float64 {
	cum := make([]float64, len(freq))
	floats.CumSum(cum, freq)

	out := make([]float64, len(freq))
	for i, c := range cum {
		p := math.Remainder(phaseStart+2*math.Pi*c/sampleRate, 2*math.Pi)
		// -pi and values a rounding step past it belong to the top of the range
		if p <= -math.Pi+phaseEps {
			p += 2 * math.Pi
		}
		out[i] = math.Min(p, math.Pi)
	}
	return out
}

// AmplitudeNormalize divides x by its upper envelope of |x| until the peak
// magnitude is at most one or maxIters passes have run. A monotonic cubic
// envelope is used so the divisor cannot overshoot below the data.
func AmplitudeNormalize(x []float64, maxIters int) ([]float64, error) {
	est, err := envelope.NewEstimator(envelope.Options{
		Interp:   envelope.InterpMonotonicCubic,
		Boundary: envelope.BoundaryReflect,
		PadWidth: 2,
	})
	if err != nil {
		return nil, err
	}

	out := common.Copy(x)
	abs := make([]float64, len(x))
	for iter := 0; iter < maxIters; iter++ {
		if common.MaxAbs(out) <= 1 {
			break
		}
		for i, v := range out {
			abs[i] = math.Abs(v)
		}
		env, err := est.Upper(abs)
		if errors.Is(err, envelope.ErrInsufficientExtrema) {
			break
		}
		if err != nil {
			return nil, err
		}
		for i := range out {
			if env[i] > 1e-10 {
				out[i] /= env[i]
			}
		}
	}
	return out, nil
}
