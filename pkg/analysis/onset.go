package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	onsetAmin     = 1e-10
	onsetTopDB    = 80.0
	onsetMelBands = 128
)

// OnsetStrength computes a spectral-flux onset envelope: the mean positive
// difference of the log mel power spectrum between consecutive frames. Frame
// 0 is always 0. The log power is clipped to topDB below its global peak so
// that near-silent bands cannot dominate the flux. Mel bands keep a kick
// drum's few low bins from being averaged away by the rest of the spectrum.
func OnsetStrength(samples []float64, sampleRate int, cfg STFTConfig) []float64 {
	spec := STFT(samples, cfg)
	if len(spec) == 0 || sampleRate <= 0 {
		return nil
	}
	mel := melPower(spec, melFilterbank(sampleRate, cfg.FFTSize, onsetMelBands))

	db := make([][]float64, len(mel))
	peak := math.Inf(-1)
	for i, frame := range mel {
		db[i] = make([]float64, len(frame))
		for j, p := range frame {
			v := 10 * math.Log10(math.Max(onsetAmin, p))
			db[i][j] = v
			peak = math.Max(peak, v)
		}
	}

	floor := peak - onsetTopDB
	for _, frame := range db {
		for j, v := range frame {
			frame[j] = math.Max(v, floor)
		}
	}

	onset := make([]float64, len(db))
	diff := make([]float64, len(db[0]))
	for i := 1; i < len(db); i++ {
		floats.SubTo(diff, db[i], db[i-1])
		var sum float64
		for _, d := range diff {
			if d > 0 {
				sum += d
			}
		}
		onset[i] = sum / float64(len(diff))
	}

	return onset
}
