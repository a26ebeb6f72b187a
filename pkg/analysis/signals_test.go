package analysis

import (
	"math"
	"math/rand"
)

const testRate = 44100

// clickTrack returns a sine tone with single-sample clicks on every beat.
func clickTrack(seconds, bpm, freq float64) *Waveform {
	n := int(seconds * testRate)
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*freq*float64(i)/testRate))
	}
	step := int(math.Round(60 / bpm * testRate))
	for i := 0; i < n; i += step {
		samples[i] += 1
	}
	return &Waveform{Samples: samples, SampleRate: testRate}
}

func sine(seconds, freq, amp float64) []float64 {
	n := int(seconds * testRate)
	out := make([]float64, n)
	for i := range out {
		out[i] = amp * math.Sin(2*math.Pi*freq*float64(i)/testRate)
	}
	return out
}

func silence(seconds float64) *Waveform {
	return &Waveform{Samples: make([]float32, int(seconds*testRate)), SampleRate: testRate}
}

// kickTrack returns decaying 60Hz kicks on every beat over a -46dB noise floor.
func kickTrack(seconds, bpm float64) *Waveform {
	n := int(seconds * testRate)
	rng := rand.New(rand.NewSource(7))
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(0.005 * (rng.Float64()*2 - 1))
	}
	step := int(math.Round(60 / bpm * testRate))
	kick := int(0.2 * testRate)
	for start := 0; start < n; start += step {
		for i := 0; i < kick && start+i < n; i++ {
			t := float64(i) / testRate
			samples[start+i] += float32(0.8 * math.Exp(-t/0.05) * math.Sin(2*math.Pi*60*t))
		}
	}
	return &Waveform{Samples: samples, SampleRate: testRate}
}
