package analysis

import (
	"fmt"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// CuePoint represents a navigation marker at the start of a phrase.
type CuePoint struct {
	Time       float64     `json:"time" yaml:"time"`             // Time in seconds
	Type       PhraseLabel `json:"type" yaml:"type"`             // Phrase label starting here
	Confidence float64     `json:"confidence" yaml:"confidence"` // Mean envelope energy around the phrase midpoint
	Name       string      `json:"name" yaml:"name"`             // Display name, e.g. "Chorus 2"
}

// Cues derives one cue point per phrase, numbered per label in time order.
// env and duration give each cue's energy score.
func (m PhraseMap) Cues(env []float64, duration float64, contextFrames int) []CuePoint {
	// Casers carry state, so each call gets its own.
	caser := cases.Title(language.English)
	counts := map[PhraseLabel]int{}
	cues := []CuePoint{}
	for _, li := range m.Timeline() {
		counts[li.Label]++

		name := caser.String(string(li.Label))
		if li.Label == Verse || li.Label == Chorus {
			name = fmt.Sprintf("%s %d", name, counts[li.Label])
		}

		var conf float64
		if duration > 0 && len(env) > 0 {
			conf = clamp01(segmentEnergy(env, li.Interval, duration, contextFrames))
		}

		cues = append(cues, CuePoint{
			Time:       li.Start,
			Type:       li.Label,
			Confidence: conf,
			Name:       name,
		})
	}
	return cues
}
