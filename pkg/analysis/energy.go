package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// EnergyConfig controls RMS framing.
type EnergyConfig struct {
	FrameLength int `mapstructure:"frame_length" yaml:"frame_length"`
	HopLength   int `mapstructure:"hop_length" yaml:"hop_length"`
}

// DefaultEnergyConfig returns 2048-sample frames with a 512-sample hop.
func DefaultEnergyConfig() EnergyConfig {
	return EnergyConfig{FrameLength: 2048, HopLength: 512}
}

// degenerateRange is the max-min spread below which an envelope is treated
// as constant.
const degenerateRange = 1e-10

// Energy computes the short-time RMS envelope of samples, min-max normalized
// to [0,1]. Frames are centered on multiples of the hop with zero padding at
// both ends, giving 1+len/hop frames. If the envelope is constant the raw RMS
// values are returned and degenerate is true.
func Energy(samples []float64, cfg EnergyConfig) (env []float64, degenerate bool) {
	env = rms(samples, cfg.FrameLength, cfg.HopLength)
	if len(env) == 0 {
		return env, true
	}

	lo, hi := floats.Min(env), floats.Max(env)
	if hi-lo <= degenerateRange {
		return env, true
	}

	scale := 1 / (hi - lo)
	for i, v := range env {
		env[i] = (v - lo) * scale
	}
	return env, false
}

func rms(samples []float64, frameLength, hop int) []float64 {
	if len(samples) == 0 || frameLength <= 0 || hop <= 0 {
		return nil
	}

	numFrames := 1 + len(samples)/hop
	half := frameLength / 2
	out := make([]float64, numFrames)

	for i := 0; i < numFrames; i++ {
		start := i*hop - half
		var sum float64
		for j := max(start, 0); j < min(start+frameLength, len(samples)); j++ {
			sum += samples[j] * samples[j]
		}
		out[i] = math.Sqrt(sum / float64(frameLength))
	}
	return out
}
