package analysis

import (
	"cmp"
	"fmt"
	"slices"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Mode is the tonal mode of a key.
type Mode string

const (
	Major Mode = "major"
	Minor Mode = "minor"
)

// PitchClasses are the canonical pitch-class names, indexed from C.
var PitchClasses = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Krumhansl-Kessler tonal hierarchy profiles with the tonic at index 0.
var (
	majorProfile = [12]float64{6.35, 2.23, 3.48, 2.33, 4.38, 4.09, 2.52, 5.19, 2.39, 3.66, 2.29, 2.88}
	minorProfile = [12]float64{6.33, 2.68, 3.52, 5.38, 2.60, 3.53, 2.54, 4.75, 3.98, 2.69, 3.34, 3.17}
)

const chromaEpsilon = 1e-6

// KeyEstimate is the best matching key and its Camelot code.
type KeyEstimate struct {
	PitchClass  string  `json:"pitch_class" yaml:"pitch_class"`
	Mode        Mode    `json:"mode" yaml:"mode"`
	Confidence  float64 `json:"confidence" yaml:"confidence"`
	Camelot     string  `json:"camelot" yaml:"camelot"`
	Correlation float64 `json:"correlation" yaml:"correlation"`
}

// String returns the key as "C major".
func (k KeyEstimate) String() string {
	return fmt.Sprintf("%s %s", k.PitchClass, k.Mode)
}

// KeyCandidate is one of the 24 key hypotheses.
type KeyCandidate struct {
	PitchClass  string  `json:"pitch_class" yaml:"pitch_class"`
	Mode        Mode    `json:"mode" yaml:"mode"`
	Correlation float64 `json:"correlation" yaml:"correlation"`
}

// EstimateKey computes the chroma of samples and matches it against the key
// profiles. degenerate is true when the chroma carries no tonal information,
// in which case the estimate is C major with zero confidence.
func EstimateKey(samples []float64, sampleRate int, cfg KeyConfig) (est KeyEstimate, degenerate bool) {
	return KeyFromChroma(Chroma(samples, sampleRate, cfg))
}

// KeyFromChroma picks the key whose rotated profile correlates best with
// chroma.
func KeyFromChroma(chroma [12]float64) (KeyEstimate, bool) {
	ranked := RankKeys(chroma)
	if ranked == nil {
		return KeyEstimate{
			PitchClass: PitchClasses[0],
			Mode:       Major,
			Camelot:    CamelotCode(PitchClasses[0], Major),
		}, true
	}

	best := ranked[0]
	return KeyEstimate{
		PitchClass:  best.PitchClass,
		Mode:        best.Mode,
		Confidence:  KeyConfidence(best.Correlation),
		Camelot:     CamelotCode(best.PitchClass, best.Mode),
		Correlation: best.Correlation,
	}, false
}

// RankKeys returns all 24 key candidates ordered by descending Pearson
// correlation with chroma. Ties keep the order C major, C minor, C# major and
// so on. It returns nil if chroma has no variance.
func RankKeys(chroma [12]float64) []KeyCandidate {
	var sum float64
	for _, v := range chroma {
		sum += v
	}
	norm := make([]float64, 12)
	for i, v := range chroma {
		norm[i] = v / (sum + chromaEpsilon)
	}
	if floats.Max(norm) == floats.Min(norm) {
		return nil
	}

	candidates := make([]KeyCandidate, 0, 24)
	for pc, name := range PitchClasses {
		candidates = append(candidates,
			KeyCandidate{PitchClass: name, Mode: Major, Correlation: stat.Correlation(norm, rotate(majorProfile, pc), nil)},
			KeyCandidate{PitchClass: name, Mode: Minor, Correlation: stat.Correlation(norm, rotate(minorProfile, pc), nil)},
		)
	}

	slices.SortStableFunc(candidates, func(a, b KeyCandidate) int {
		return cmp.Compare(b.Correlation, a.Correlation)
	})
	return candidates
}

// KeyConfidence maps a correlation in [-1,1] to a confidence in [0,1].
func KeyConfidence(corr float64) float64 {
	return clamp01((corr + 1) / 2)
}

// rotate shifts profile so that its tonic lands on pitch class k.
func rotate(profile [12]float64, k int) []float64 {
	out := make([]float64, 12)
	for i := range out {
		out[i] = profile[(i-k+12)%12]
	}
	return out
}
