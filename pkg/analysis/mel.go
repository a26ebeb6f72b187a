package analysis

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// Slaney mel scale: linear below 1kHz, logarithmic above.
const (
	melLinearStep = 200.0 / 3
	melBreakHz    = 1000.0
	melBreakMel   = melBreakHz / melLinearStep
)

var melLogStep = math.Log(6.4) / 27

func hzToMel(hz float64) float64 {
	if hz < melBreakHz {
		return hz / melLinearStep
	}
	return melBreakMel + math.Log(hz/melBreakHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melBreakMel {
		return mel * melLinearStep
	}
	return melBreakHz * math.Exp(melLogStep*(mel-melBreakMel))
}

// melFilterbank returns bands triangular filters spanning 0 Hz to Nyquist,
// each [fftSize/2+1] wide and area-normalized so that wide high bands do not
// outweigh narrow low ones.
func melFilterbank(sampleRate, fftSize, bands int) [][]float64 {
	numBins := fftSize/2 + 1

	edges := make([]float64, bands+2)
	floats.Span(edges, 0, hzToMel(float64(sampleRate)/2))
	for i, m := range edges {
		edges[i] = melToHz(m)
	}

	fb := make([][]float64, bands)
	for b := range fb {
		lo, center, hi := edges[b], edges[b+1], edges[b+2]
		enorm := 2 / (hi - lo)
		fb[b] = make([]float64, numBins)
		for j := range fb[b] {
			f := binFrequency(j, fftSize, sampleRate)
			w := math.Min((f-lo)/(center-lo), (hi-f)/(hi-center))
			if w > 0 {
				fb[b][j] = w * enorm
			}
		}
	}
	return fb
}

// melPower projects magnitude spectra onto the filterbank as power.
func melPower(spec [][]float64, fb [][]float64) [][]float64 {
	out := make([][]float64, len(spec))
	var power []float64
	for i, frame := range spec {
		power = append(power[:0], frame...)
		floats.Mul(power, frame)
		out[i] = make([]float64, len(fb))
		for b, filter := range fb {
			out[i][b] = floats.Dot(filter, power)
		}
	}
	return out
}
