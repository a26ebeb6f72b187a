package analysis

import (
	"errors"
	"fmt"
	"math"
)

var (
	ErrEmptyWaveform     = errors.New("empty waveform")
	ErrInvalidSampleRate = errors.New("invalid sample rate")
	ErrNonFiniteSample   = errors.New("non-finite sample")
)

// Waveform is decoded mono audio. Callers must not mutate Samples while an
// analysis is running.
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the length of the waveform in seconds.
func (w *Waveform) Duration() float64 {
	if w.SampleRate <= 0 {
		return 0
	}
	return float64(len(w.Samples)) / float64(w.SampleRate)
}

// Validate checks the preconditions every stage relies on.
func (w *Waveform) Validate() error {
	if w == nil || len(w.Samples) == 0 {
		return ErrEmptyWaveform
	}
	if w.SampleRate <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSampleRate, w.SampleRate)
	}
	for i, s := range w.Samples {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return fmt.Errorf("%w at index %d", ErrNonFiniteSample, i)
		}
	}
	return nil
}

// float64s widens the samples for the DSP stages.
func (w *Waveform) float64s() []float64 {
	out := make([]float64, len(w.Samples))
	for i, s := range w.Samples {
		out[i] = float64(s)
	}
	return out
}

// frameToSeconds converts an envelope frame index to seconds using the
// samples-per-frame ratio of the whole track.
func frameToSeconds(frame, envLen, numSamples, sampleRate int) float64 {
	if envLen == 0 || sampleRate == 0 {
		return 0
	}
	return float64(frame) * (float64(numSamples) / float64(envLen)) / float64(sampleRate)
}
