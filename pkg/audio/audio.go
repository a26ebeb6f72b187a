// Package audio decodes audio files into mono waveforms for analysis.
package audio

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/nzoschke/trackmeta/pkg/analysis"
)

// ErrUnsupportedFormat is returned for file extensions no decoder handles.
var ErrUnsupportedFormat = errors.New("unsupported audio format")

// SupportedExtensions lists the file extensions Load can decode.
var SupportedExtensions = []string{".mp3", ".wav"}

// DecodeError reports a file that could not be opened or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsSupported reports whether path has a decodable extension.
func IsSupported(path string) bool {
	return slices.Contains(SupportedExtensions, strings.ToLower(filepath.Ext(path)))
}

// Load decodes path into a mono waveform. Multi-channel audio is averaged.
// If targetRate is positive the waveform is resampled to it.
func Load(path string, targetRate int) (*analysis.Waveform, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !IsSupported(path) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	defer f.Close()

	var (
		samples    []float32
		sampleRate int
	)
	switch ext {
	case ".mp3":
		samples, sampleRate, err = decodeMP3(f)
	case ".wav":
		samples, sampleRate, err = decodeWAV(f)
	}
	if err != nil {
		return nil, &DecodeError{Path: path, Err: err}
	}
	if len(samples) == 0 {
		return nil, &DecodeError{Path: path, Err: analysis.ErrEmptyWaveform}
	}

	if targetRate > 0 && targetRate != sampleRate {
		samples = Resample(samples, sampleRate, targetRate)
		sampleRate = targetRate
	}

	return &analysis.Waveform{Samples: samples, SampleRate: sampleRate}, nil
}

// Resample converts samples from srcRate to dstRate with linear interpolation.
func Resample(samples []float32, srcRate, dstRate int) []float32 {
	if srcRate == dstRate || srcRate <= 0 || dstRate <= 0 {
		return samples
	}

	ratio := float64(srcRate) / float64(dstRate)
	out := make([]float32, int(float64(len(samples))/ratio))

	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))

		switch {
		case idx+1 < len(samples):
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		case idx < len(samples):
			out[i] = samples[idx]
		}
	}
	return out
}
