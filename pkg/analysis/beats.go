package analysis

import (
	"math"

	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// trackBeats runs dynamic-programming beat tracking over an onset envelope
// and returns beat positions as onset frame indices.
//
// Each frame accumulates its smoothed onset score plus the best predecessor
// score, penalized by how far the gap strays from the tempo period on a log
// scale. Beats are recovered by backtracking from the last strong frame.
func trackBeats(onset []float64, bpm, fps, tightness float64) []int {
	if len(onset) < 2 || bpm <= 0 {
		return nil
	}

	period := int(math.Round(60 * fps / bpm))
	if period < 1 {
		return nil
	}

	local := localScore(onset, period)
	if len(local) == 0 || floats.Max(local) <= 0 {
		return nil
	}

	minGap := int(math.Round(float64(period) / 2))
	minGap = max(minGap, 1)
	maxGap := 2 * period

	txcost := make([]float64, maxGap+1)
	for gap := minGap; gap <= maxGap; gap++ {
		l := math.Log(float64(gap) / float64(period))
		txcost[gap] = -tightness * l * l
	}

	threshold := 0.01 * floats.Max(local)
	cumscore := make([]float64, len(local))
	backlink := make([]int, len(local))
	first := true

	for i, score := range local {
		best := math.Inf(-1)
		bestPrev := -1
		for gap := maxGap; gap >= minGap; gap-- {
			prev := i - gap
			cand := txcost[gap]
			if prev >= 0 {
				cand += cumscore[prev]
			}
			if cand > best {
				best, bestPrev = cand, prev
			}
		}

		cumscore[i] = score + best
		if first && score < threshold {
			backlink[i] = -1
			continue
		}
		backlink[i] = bestPrev
		first = false
	}

	last := lastBeat(cumscore)
	if last < 0 {
		return nil
	}

	var beats []int
	for b := last; b >= 0; b = backlink[b] {
		beats = append(beats, b)
	}
	for l, r := 0, len(beats)-1; l < r; l, r = l+1, r-1 {
		beats[l], beats[r] = beats[r], beats[l]
	}

	return trimBeats(local, beats)
}

// localScore normalizes onset by its standard deviation and smooths it with
// a Gaussian whose width scales with the beat period.
func localScore(onset []float64, period int) []float64 {
	std := stat.StdDev(onset, nil)
	if std <= 0 || math.IsNaN(std) {
		return nil
	}

	kernel := make([]float64, 2*period+1)
	for k := range kernel {
		x := float64(k-period) * 32 / float64(period)
		kernel[k] = math.Exp(-0.5 * x * x)
	}

	norm := make([]float64, len(onset))
	for i, v := range onset {
		norm[i] = v / std
	}
	return convolveSame(norm, kernel)
}

// lastBeat returns the last local maximum of cumscore that exceeds half the
// median local-maximum score.
func lastBeat(cumscore []float64) int {
	var peaks []float64
	isMax := make([]bool, len(cumscore))
	for i := 1; i < len(cumscore); i++ {
		if cumscore[i] > cumscore[i-1] && (i == len(cumscore)-1 || cumscore[i] >= cumscore[i+1]) {
			isMax[i] = true
			peaks = append(peaks, cumscore[i])
		}
	}
	if len(peaks) == 0 {
		return -1
	}

	cutoff := 0.5 * median(peaks)
	for i := len(cumscore) - 1; i >= 0; i-- {
		if isMax[i] && cumscore[i] > cutoff {
			return i
		}
	}
	return -1
}

// trimBeats drops weak leading and trailing beats. Beat scores are smoothed
// with a 5-point Hann window and the result keeps the beats from the first
// one above half the smoothed RMS up to, but excluding, the last one.
func trimBeats(local []float64, beats []int) []int {
	if len(beats) == 0 {
		return beats
	}

	scores := make([]float64, len(beats))
	for i, b := range beats {
		scores[i] = local[b]
	}
	smooth := convolveSame(scores, window.Hann(5))

	var sq float64
	for _, v := range smooth {
		sq += v * v
	}
	threshold := 0.5 * math.Sqrt(sq/float64(len(smooth)))

	lo, hi := -1, -1
	for i, v := range smooth {
		if v > threshold {
			if lo < 0 {
				lo = i
			}
			hi = i
		}
	}
	if lo < 0 {
		return nil
	}
	return beats[lo:hi]
}

// convolveSame returns the centered part of the full convolution of x and k,
// with the same length as x.
func convolveSame(x, k []float64) []float64 {
	out := make([]float64, len(x))
	offset := (len(k) - 1) / 2
	for i := range out {
		var sum float64
		for j, kv := range k {
			idx := i + offset - j
			if idx >= 0 && idx < len(x) {
				sum += x[idx] * kv
			}
		}
		out[i] = sum
	}
	return out
}
