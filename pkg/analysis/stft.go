package analysis

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// STFTConfig describes parameters for STFT computation.
type STFTConfig struct {
	FFTSize int // FFT window size (e.g., 2048, 4096)
	HopSize int // Hop between frames in samples
}

// STFT computes the magnitude Short-Time Fourier Transform.
// Frames are centered on multiples of HopSize with zero padding, so there
// are 1+len(samples)/HopSize of them.
// Returns [frames][bins] magnitude spectrum with FFTSize/2+1 bins.
func STFT(samples []float64, cfg STFTConfig) [][]float64 {
	if len(samples) == 0 || cfg.FFTSize <= 0 || cfg.HopSize <= 0 {
		return nil
	}

	win := periodicHann(cfg.FFTSize)
	fft := fourier.NewFFT(cfg.FFTSize)

	numFrames := 1 + len(samples)/cfg.HopSize
	numBins := cfg.FFTSize/2 + 1
	half := cfg.FFTSize / 2

	result := make([][]float64, numFrames)
	frame := make([]float64, cfg.FFTSize)
	coeffs := make([]complex128, numBins)

	for i := 0; i < numFrames; i++ {
		start := i*cfg.HopSize - half

		for j := range frame {
			k := start + j
			if k < 0 || k >= len(samples) {
				frame[j] = 0
				continue
			}
			frame[j] = samples[k] * win[j]
		}

		coeffs = fft.Coefficients(coeffs, frame)

		result[i] = make([]float64, numBins)
		for j, c := range coeffs {
			result[i][j] = cmplx.Abs(c)
		}
	}

	return result
}

// periodicHann returns an n-point periodic Hann window, the usual choice for
// spectral analysis.
func periodicHann(n int) []float64 {
	return window.Hann(n + 1)[:n]
}

// binFrequency returns the center frequency in Hz of an FFT bin.
func binFrequency(bin, fftSize, sampleRate int) float64 {
	return float64(bin) * float64(sampleRate) / float64(fftSize)
}
