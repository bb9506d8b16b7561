package spectral

import (
	"github.com/mjibson/go-dsp/fft"
)

// FFT provides Fast Fourier Transform functionality
type FFT struct{}

// NewFFT creates a new FFT calculator
func NewFFT() *FFT {
	return &FFT{}
}

// Compute computes the FFT of a real signal using mjibson/go-dsp, which
// handles non-power-of-2 lengths.
func (f *FFT) Compute(x []float64) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.FFTReal(x)
}

// ComputeInverse computes inverse FFT
func (f *FFT) ComputeInverse(x []complex128) []complex128 {
	if len(x) == 0 {
		return []complex128{}
	}
	return fft.IFFT(x)
}

// AnalyticSignal returns x + i*H{x}, where H is the Hilbert transform. The
// negative frequencies are zeroed and the positive ones doubled.
func (f *FFT) AnalyticSignal(x []float64) []complex128 {
	n := len(x)
	if n == 0 {
		return []complex128{}
	}

	spectrum := f.Compute(x)

	half := n / 2
	if n%2 == 0 {
		for k := 1; k < half; k++ {
			spectrum[k] *= 2
		}
		for k := half + 1; k < n; k++ {
			spectrum[k] = 0
		}
	} else {
		for k := 1; k <= half; k++ {
			spectrum[k] *= 2
		}
		for k := half + 1; k < n; k++ {
			spectrum[k] = 0
		}
	}

	return f.ComputeInverse(spectrum)
}
