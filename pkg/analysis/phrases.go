package analysis

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/stat"
)

// PhraseLabel names a structural region of a track.
type PhraseLabel string

const (
	Intro  PhraseLabel = "intro"
	Verse  PhraseLabel = "verse"
	Chorus PhraseLabel = "chorus"
	Outro  PhraseLabel = "outro"
)

// PhraseConfig holds the segmentation heuristics.
type PhraseConfig struct {
	SmoothFraction     float64 `mapstructure:"smooth_fraction" yaml:"smooth_fraction"`         // moving-average window as a fraction of envelope length
	BoundaryMultiplier float64 `mapstructure:"boundary_multiplier" yaml:"boundary_multiplier"` // change threshold in standard deviations of the slope
	ChorusEnergy       float64 `mapstructure:"chorus_energy" yaml:"chorus_energy"`             // local energy above which a segment is a chorus
	IntroMinSeconds    float64 `mapstructure:"intro_min_seconds" yaml:"intro_min_seconds"`
	OutroMinSeconds    float64 `mapstructure:"outro_min_seconds" yaml:"outro_min_seconds"`
	ContextFrames      int     `mapstructure:"context_frames" yaml:"context_frames"` // half-width of the energy window around a segment midpoint
	SnapToBeats        bool    `mapstructure:"snap_to_beats" yaml:"snap_to_beats"`
}

// DefaultPhraseConfig returns the standard heuristics.
func DefaultPhraseConfig() PhraseConfig {
	return PhraseConfig{
		SmoothFraction:     0.05,
		BoundaryMultiplier: 1.5,
		ChorusEnergy:       0.6,
		IntroMinSeconds:    10,
		OutroMinSeconds:    10,
		ContextFrames:      50,
	}
}

// Interval is a half-open time range [Start, End) in seconds.
type Interval struct {
	Start float64 `json:"start" yaml:"start"`
	End   float64 `json:"end" yaml:"end"`
}

// Duration returns End-Start.
func (i Interval) Duration() float64 { return i.End - i.Start }

// Overlaps reports whether i and o share any time.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start < o.End && o.Start < i.End
}

// PhraseMap groups segment intervals by label. Within each label intervals
// are ordered by start time.
type PhraseMap struct {
	Intro  []Interval `json:"intro" yaml:"intro"`
	Verse  []Interval `json:"verse" yaml:"verse"`
	Chorus []Interval `json:"chorus" yaml:"chorus"`
	Outro  []Interval `json:"outro" yaml:"outro"`
}

// LabeledInterval is an interval with its phrase label.
type LabeledInterval struct {
	Label PhraseLabel `json:"label" yaml:"label"`
	Interval
}

func newPhraseMap() PhraseMap {
	return PhraseMap{
		Intro:  []Interval{},
		Verse:  []Interval{},
		Chorus: []Interval{},
		Outro:  []Interval{},
	}
}

// Empty reports whether no label has any interval.
func (m PhraseMap) Empty() bool {
	return len(m.Intro)+len(m.Verse)+len(m.Chorus)+len(m.Outro) == 0
}

// Get returns the intervals for a label.
func (m PhraseMap) Get(label PhraseLabel) []Interval {
	switch label {
	case Intro:
		return m.Intro
	case Verse:
		return m.Verse
	case Chorus:
		return m.Chorus
	case Outro:
		return m.Outro
	default:
		return nil
	}
}

func (m *PhraseMap) add(label PhraseLabel, iv Interval) {
	switch label {
	case Intro:
		m.Intro = append(m.Intro, iv)
	case Verse:
		m.Verse = append(m.Verse, iv)
	case Chorus:
		m.Chorus = append(m.Chorus, iv)
	case Outro:
		m.Outro = append(m.Outro, iv)
	}
}

// Timeline returns every interval across all labels ordered by start time.
func (m PhraseMap) Timeline() []LabeledInterval {
	var out []LabeledInterval
	for _, label := range []PhraseLabel{Intro, Verse, Chorus, Outro} {
		for _, iv := range m.Get(label) {
			out = append(out, LabeledInterval{Label: label, Interval: iv})
		}
	}
	slices.SortStableFunc(out, func(a, b LabeledInterval) int {
		switch {
		case a.Start < b.Start:
			return -1
		case a.Start > b.Start:
			return 1
		default:
			return 0
		}
	})
	return out
}

// SegmentPhrases labels structural regions from changes in the smoothed
// energy envelope. Boundaries are frames where the slope of the smoothed
// envelope exceeds BoundaryMultiplier standard deviations. The span before
// the first boundary is an intro and the span after the last is an outro,
// each only if long enough. Spans between boundaries are chorus or verse by
// their local energy. beats, in seconds, are used only with SnapToBeats.
func SegmentPhrases(env []float64, numSamples, sampleRate int, beats []float64, cfg PhraseConfig) PhraseMap {
	phrases := newPhraseMap()
	if len(env) == 0 || sampleRate <= 0 {
		return phrases
	}

	boundaries := phraseBoundaries(env, numSamples, sampleRate, cfg)
	if cfg.SnapToBeats && len(beats) > 0 {
		boundaries = snapToBeats(boundaries, beats)
	}
	if len(boundaries) == 0 {
		return phrases
	}

	duration := float64(numSamples) / float64(sampleRate)

	first := boundaries[0]
	if first > cfg.IntroMinSeconds {
		phrases.add(Intro, Interval{Start: 0, End: first})
	}

	for i := 0; i+1 < len(boundaries); i++ {
		iv := Interval{Start: boundaries[i], End: boundaries[i+1]}
		label := Verse
		if segmentEnergy(env, iv, duration, cfg.ContextFrames) > cfg.ChorusEnergy {
			label = Chorus
		}
		phrases.add(label, iv)
	}

	last := boundaries[len(boundaries)-1]
	if duration-last > cfg.OutroMinSeconds {
		phrases.add(Outro, Interval{Start: last, End: duration})
	}

	return phrases
}

// phraseBoundaries returns candidate boundary times in seconds.
func phraseBoundaries(env []float64, numSamples, sampleRate int, cfg PhraseConfig) []float64 {
	w := max(int(float64(len(env))*cfg.SmoothFraction), 1)
	if len(env)-w < 2 {
		return nil
	}

	// Trailing moving average; smooth[i] covers env[i:i+w].
	smooth := make([]float64, len(env)-w)
	var sum float64
	for j := 0; j < w; j++ {
		sum += env[j]
	}
	for i := range smooth {
		smooth[i] = sum / float64(w)
		sum += env[i+w] - env[i]
	}

	diff := make([]float64, len(smooth)-1)
	for i := range diff {
		diff[i] = smooth[i+1] - smooth[i]
	}

	_, std := stat.PopMeanStdDev(diff, nil)
	threshold := cfg.BoundaryMultiplier * std

	var times []float64
	for i, d := range diff {
		if math.Abs(d) > threshold {
			times = append(times, frameToSeconds(i, len(env), numSamples, sampleRate))
		}
	}
	return times
}

// segmentEnergy averages env over ContextFrames either side of the frame at
// the interval midpoint.
func segmentEnergy(env []float64, iv Interval, duration float64, context int) float64 {
	mid := (iv.Start + iv.End) / 2
	idx := int(mid * float64(len(env)) / duration)
	lo := max(0, idx-context)
	hi := min(len(env), idx+context)
	if hi <= lo {
		return 0
	}
	return stat.Mean(env[lo:hi], nil)
}

// snapToBeats moves each boundary to its nearest beat and drops duplicates.
func snapToBeats(boundaries, beats []float64) []float64 {
	var out []float64
	for _, b := range boundaries {
		i, _ := slices.BinarySearch(beats, b)
		best := beats[min(i, len(beats)-1)]
		if i > 0 && math.Abs(beats[i-1]-b) <= math.Abs(best-b) {
			best = beats[i-1]
		}
		if len(out) == 0 || best > out[len(out)-1] {
			out = append(out, best)
		}
	}
	return out
}
