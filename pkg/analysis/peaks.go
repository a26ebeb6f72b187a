package analysis

import (
	"cmp"
	"slices"
)

// PeakConfig controls peak picking on the energy envelope.
type PeakConfig struct {
	Prominence       float64 `mapstructure:"prominence" yaml:"prominence"`               // minimum prominence on the [0,1] scale
	DistanceFraction float64 `mapstructure:"distance_fraction" yaml:"distance_fraction"` // minimum spacing as a fraction of envelope length
}

// DefaultPeakConfig returns a 0.1 prominence and 1% spacing.
func DefaultPeakConfig() PeakConfig {
	return PeakConfig{Prominence: 0.1, DistanceFraction: 0.01}
}

// Peak is a prominent local maximum of the energy envelope.
type Peak struct {
	Time       float64 `json:"time" yaml:"time"`   // seconds
	Frame      int     `json:"frame" yaml:"frame"` // envelope index
	Height     float64 `json:"height" yaml:"height"`
	Prominence float64 `json:"prominence" yaml:"prominence"`
}

// FindPeaks returns the prominent peaks of env in increasing time order.
// numSamples and sampleRate convert envelope frames to seconds.
func FindPeaks(env []float64, numSamples, sampleRate int, cfg PeakConfig) []Peak {
	peaks := []Peak{}

	idx := localMaxima(env)
	if len(idx) == 0 {
		return peaks
	}

	distance := max(int(float64(len(env))*cfg.DistanceFraction), 1)
	idx = selectByDistance(env, idx, distance)

	for _, i := range idx {
		prom := prominence(env, i)
		if prom < cfg.Prominence {
			continue
		}
		peaks = append(peaks, Peak{
			Time:       frameToSeconds(i, len(env), numSamples, sampleRate),
			Frame:      i,
			Height:     env[i],
			Prominence: prom,
		})
	}
	return peaks
}

// localMaxima finds strict local maxima. For flat tops the middle sample
// (rounded down) is reported.
func localMaxima(x []float64) []int {
	var out []int
	last := len(x) - 1
	for i := 1; i < last; i++ {
		if x[i-1] >= x[i] {
			continue
		}
		ahead := i + 1
		for ahead < last && x[ahead] == x[i] {
			ahead++
		}
		if x[ahead] < x[i] {
			out = append(out, (i+ahead-1)/2)
			i = ahead
		}
	}
	return out
}

// selectByDistance keeps the highest peaks first and drops any peak closer
// than distance frames to one already kept.
func selectByDistance(x []float64, peaks []int, distance int) []int {
	if distance <= 1 {
		return peaks
	}

	order := make([]int, len(peaks))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(x[peaks[a]], x[peaks[b]])
	})

	keep := make([]bool, len(peaks))
	for i := range keep {
		keep[i] = true
	}

	for i := len(order) - 1; i >= 0; i-- {
		j := order[i]
		if !keep[j] {
			continue
		}
		for k := j - 1; k >= 0 && peaks[j]-peaks[k] < distance; k-- {
			keep[k] = false
		}
		for k := j + 1; k < len(peaks) && peaks[k]-peaks[j] < distance; k++ {
			keep[k] = false
		}
	}

	var out []int
	for i, p := range peaks {
		if keep[i] {
			out = append(out, p)
		}
	}
	return out
}

// prominence is the height of x[peak] above the higher of the lowest points
// reached on each side before meeting a taller sample or the signal edge.
func prominence(x []float64, peak int) float64 {
	h := x[peak]

	leftMin := h
	for i := peak; i >= 0 && x[i] <= h; i-- {
		leftMin = min(leftMin, x[i])
	}

	rightMin := h
	for i := peak; i < len(x) && x[i] <= h; i++ {
		rightMin = min(rightMin, x[i])
	}

	return h - max(leftMin, rightMin)
}
