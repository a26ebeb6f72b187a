package analysis

import (
	"math"
)

// KeyConfig holds parameters for chroma extraction.
type KeyConfig struct {
	FFTSize   int     `mapstructure:"fft_size" yaml:"fft_size"`
	HopSize   int     `mapstructure:"hop_size" yaml:"hop_size"`
	MinFreq   float64 `mapstructure:"min_freq" yaml:"min_freq"`
	MaxFreq   float64 `mapstructure:"max_freq" yaml:"max_freq"`
	PeakFloor float64 `mapstructure:"peak_floor" yaml:"peak_floor"` // fraction of frame max a spectral peak must reach
}

// DefaultKeyConfig returns the defaults used for 44.1kHz input.
func DefaultKeyConfig() KeyConfig {
	return KeyConfig{
		FFTSize:   4096,
		HopSize:   2048,
		MinFreq:   65,
		MaxFreq:   5000,
		PeakFloor: 0.05,
	}
}

// Chroma returns the time-averaged pitch-class energy of samples.
//
// Each frame contributes the power of its spectral peaks, folded to the
// nearest equal-tempered pitch class and normalized so the strongest class
// is 1. Only peaks above PeakFloor of the frame maximum count, which keeps
// window sidelobes and broadband transients out of the profile.
func Chroma(samples []float64, sampleRate int, cfg KeyConfig) [12]float64 {
	var chroma [12]float64

	spec := STFT(samples, STFTConfig{FFTSize: cfg.FFTSize, HopSize: cfg.HopSize})
	if len(spec) == 0 {
		return chroma
	}

	lo := int(math.Ceil(cfg.MinFreq * float64(cfg.FFTSize) / float64(sampleRate)))
	hi := int(math.Floor(cfg.MaxFreq * float64(cfg.FFTSize) / float64(sampleRate)))
	lo = max(lo, 1)

	// Frames that overhang the signal edges are truncated by the zero
	// padding and leak energy into neighbouring pitch classes.
	frames := spec
	half := cfg.FFTSize / 2
	first := (half + cfg.HopSize - 1) / cfg.HopSize
	last := (len(samples) - half) / cfg.HopSize
	if first <= last && last < len(spec) {
		frames = spec[first : last+1]
	}

	for _, frame := range frames {
		hi := min(hi, len(frame)-2)
		if hi <= lo {
			continue
		}

		var peak float64
		for j := lo; j <= hi; j++ {
			peak = math.Max(peak, frame[j])
		}
		if peak <= 0 {
			continue
		}

		var fc [12]float64
		floor := cfg.PeakFloor * peak
		for j := lo; j <= hi; j++ {
			m := frame[j]
			if m < floor || m <= frame[j-1] || m < frame[j+1] {
				continue
			}
			freq := binFrequency(j, cfg.FFTSize, sampleRate) +
				interpolatePeak(frame[j-1], m, frame[j+1])*float64(sampleRate)/float64(cfg.FFTSize)
			pc, ok := pitchClassOf(freq)
			if !ok {
				continue
			}
			fc[pc] += m * m
		}

		var fmax float64
		for _, v := range fc {
			fmax = math.Max(fmax, v)
		}
		if fmax == 0 {
			continue
		}
		for i := range chroma {
			chroma[i] += fc[i] / fmax
		}
	}

	for i := range chroma {
		chroma[i] /= float64(len(frames))
	}
	return chroma
}

// interpolatePeak returns the fractional bin offset of a spectral peak by
// fitting a parabola through the log magnitudes of the peak and its
// neighbours.
func interpolatePeak(left, center, right float64) float64 {
	const tiny = 1e-20
	a := math.Log(math.Max(left, tiny))
	b := math.Log(math.Max(center, tiny))
	c := math.Log(math.Max(right, tiny))
	den := a - 2*b + c
	if den == 0 {
		return 0
	}
	p := 0.5 * (a - c) / den
	return math.Max(-0.5, math.Min(0.5, p))
}

// pitchClassOf maps a frequency to its nearest pitch class (C=0).
func pitchClassOf(freq float64) (int, bool) {
	if freq <= 0 || math.IsNaN(freq) {
		return 0, false
	}
	midi := 69 + 12*math.Log2(freq/440)
	pc := int(math.Round(midi)) % 12
	if pc < 0 {
		pc += 12
	}
	return pc, true
}
