// Package analysis extracts tempo, key, energy, peaks and phrase structure
// from decoded mono audio.
package analysis

import (
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"
)

// Warnings attached to results computed from degenerate input.
const (
	WarnConstantEnergy = "constant energy envelope: normalization skipped"
	WarnNoOnsets       = "no onsets detected: tempo undefined"
	WarnNoTonalContent = "no tonal content: key undefined"
	WarnNoBeats        = "no beats tracked: beat tempo taken from tempogram"
)

// Config groups the parameters of every stage.
type Config struct {
	Energy  EnergyConfig `mapstructure:"energy" yaml:"energy"`
	Tempo   TempoConfig  `mapstructure:"tempo" yaml:"tempo"`
	Key     KeyConfig    `mapstructure:"key" yaml:"key"`
	Peaks   PeakConfig   `mapstructure:"peaks" yaml:"peaks"`
	Phrases PhraseConfig `mapstructure:"phrases" yaml:"phrases"`

	IncludeBeats         bool `mapstructure:"include_beats" yaml:"include_beats"`                     // expose tracked beats in results
	OverviewPixelsPerSec int  `mapstructure:"overview_pixels_per_sec" yaml:"overview_pixels_per_sec"` // 0 disables the overview
}

// DefaultConfig returns the default parameters for 44.1kHz input.
func DefaultConfig() Config {
	return Config{
		Energy:  DefaultEnergyConfig(),
		Tempo:   DefaultTempoConfig(),
		Key:     DefaultKeyConfig(),
		Peaks:   DefaultPeakConfig(),
		Phrases: DefaultPhraseConfig(),
	}
}

// Validate rejects parameters that would make a stage meaningless.
func (c Config) Validate() error {
	var errs []error
	if c.Energy.FrameLength <= 0 || c.Energy.HopLength <= 0 {
		errs = append(errs, errors.New("energy frame and hop length must be positive"))
	}
	if c.Tempo.FFTSize <= 0 || c.Tempo.HopSize <= 0 {
		errs = append(errs, errors.New("tempo fft and hop size must be positive"))
	}
	if c.Tempo.WindowSeconds <= 0 || c.Tempo.StartBPM <= 0 || c.Tempo.StdBPM <= 0 || c.Tempo.MaxTempo <= 0 {
		errs = append(errs, errors.New("tempo window, start bpm, std bpm and max tempo must be positive"))
	}
	if c.Key.FFTSize <= 0 || c.Key.HopSize <= 0 {
		errs = append(errs, errors.New("key fft and hop size must be positive"))
	}
	if c.Key.MinFreq <= 0 || c.Key.MaxFreq <= c.Key.MinFreq {
		errs = append(errs, errors.New("key frequency range is empty"))
	}
	if c.Peaks.Prominence < 0 || c.Peaks.DistanceFraction < 0 {
		errs = append(errs, errors.New("peak prominence and distance must not be negative"))
	}
	if c.Phrases.SmoothFraction <= 0 || c.Phrases.SmoothFraction >= 1 {
		errs = append(errs, errors.New("phrase smoothing fraction must be in (0,1)"))
	}
	if c.Phrases.BoundaryMultiplier < 0 || c.Phrases.ContextFrames < 0 {
		errs = append(errs, errors.New("phrase boundary multiplier and context must not be negative"))
	}
	if c.OverviewPixelsPerSec < 0 {
		errs = append(errs, errors.New("overview pixels per second must not be negative"))
	}
	return errors.Join(errs...)
}

// Result is the feature record for one track.
type Result struct {
	Title      string        `json:"title" yaml:"title"`
	Tempo      TempoEstimate `json:"tempo" yaml:"tempo"`
	Key        KeyEstimate   `json:"key" yaml:"key"`
	Energy     []float64     `json:"energy" yaml:"energy,flow"`
	Peaks      []Peak        `json:"peaks" yaml:"peaks"`
	Phrases    PhraseMap     `json:"phrases" yaml:"phrases"`
	Cues       []CuePoint    `json:"cues" yaml:"cues"`
	Duration   float64       `json:"duration" yaml:"duration"`
	SampleRate int           `json:"sample_rate" yaml:"sample_rate"`
	Beats      []float64     `json:"beats,omitempty" yaml:"beats,omitempty,flow"`
	Overview   *Overview     `json:"overview,omitempty" yaml:"overview,omitempty"`
	Warnings   []string      `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// Summary is the short form of a result.
type Summary struct {
	Title    string  `json:"title" yaml:"title"`
	BPM      float64 `json:"bpm" yaml:"bpm"`
	Key      string  `json:"key" yaml:"key"`
	Camelot  string  `json:"camelot" yaml:"camelot"`
	Duration float64 `json:"duration" yaml:"duration"`
}

// Summary returns title, tempo, key and duration.
func (r *Result) Summary() Summary {
	return Summary{
		Title:    r.Title,
		BPM:      r.Tempo.BPM,
		Key:      r.Key.String(),
		Camelot:  r.Key.Camelot,
		Duration: r.Duration,
	}
}

// ComputationError reports a numeric failure inside one pipeline stage.
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

// Analyzer runs the feature pipeline. It holds no per-track state and is
// safe for concurrent use.
type Analyzer struct {
	cfg Config
	log *zap.Logger
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger used for stage timings and warnings.
func WithLogger(log *zap.Logger) Option {
	return func(a *Analyzer) {
		if log != nil {
			a.log = log
		}
	}
}

// New creates an Analyzer after validating cfg.
func New(cfg Config, opts ...Option) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid analysis config: %w", err)
	}
	a := &Analyzer{cfg: cfg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Config returns the analyzer's parameters.
func (a *Analyzer) Config() Config { return a.cfg }

// Analyze runs energy, tempo, key, peak and phrase analysis over w. Either a
// complete result or an error is returned, never both.
func (a *Analyzer) Analyze(title string, w *Waveform) (*Result, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}

	log := a.log.With(zap.String("title", title))
	samples := w.float64s()
	n, sr := len(w.Samples), w.SampleRate

	result := &Result{
		Title:      title,
		Duration:   w.Duration(),
		SampleRate: sr,
	}
	warn := func(msg string) {
		log.Warn("degenerate signal", zap.String("warning", msg))
		result.Warnings = append(result.Warnings, msg)
	}

	var degenerate bool
	if err := a.stage(log, "energy", func() error {
		result.Energy, degenerate = Energy(samples, a.cfg.Energy)
		return checkFinite(result.Energy...)
	}); err != nil {
		return nil, err
	}
	if degenerate {
		warn(WarnConstantEnergy)
	}

	var tempo TempoAnalysis
	if err := a.stage(log, "tempo", func() error {
		tempo = EstimateTempo(samples, sr, a.cfg.Tempo)
		t := tempo.Estimate
		return checkFinite(t.BPM, t.Confidence, t.BeatTrack, t.Tempogram, t.Candidates)
	}); err != nil {
		return nil, err
	}
	result.Tempo = tempo.Estimate
	switch {
	case tempo.Degenerate:
		warn(WarnNoOnsets)
	case tempo.Untracked:
		warn(WarnNoBeats)
	}
	if a.cfg.IncludeBeats {
		result.Beats = tempo.Beats
	}

	if err := a.stage(log, "key", func() error {
		result.Key, degenerate = EstimateKey(samples, sr, a.cfg.Key)
		return checkFinite(result.Key.Confidence, result.Key.Correlation)
	}); err != nil {
		return nil, err
	}
	if degenerate {
		warn(WarnNoTonalContent)
	}

	if err := a.stage(log, "peaks", func() error {
		result.Peaks = FindPeaks(result.Energy, n, sr, a.cfg.Peaks)
		return nil
	}); err != nil {
		return nil, err
	}

	if err := a.stage(log, "phrases", func() error {
		result.Phrases = SegmentPhrases(result.Energy, n, sr, tempo.Beats, a.cfg.Phrases)
		result.Cues = result.Phrases.Cues(result.Energy, result.Duration, a.cfg.Phrases.ContextFrames)
		return nil
	}); err != nil {
		return nil, err
	}

	if a.cfg.OverviewPixelsPerSec > 0 {
		if ov, err := NewOverview(w, a.cfg.OverviewPixelsPerSec); err != nil {
			log.Debug("skipping overview", zap.Error(err))
		} else {
			result.Overview = ov
		}
	}

	log.Info("analyzed",
		zap.Float64("bpm", result.Tempo.BPM),
		zap.String("key", result.Key.String()),
		zap.Int("peaks", len(result.Peaks)),
		zap.Int("phrases", len(result.Cues)),
	)
	return result, nil
}

// stage runs fn, turning a panic or returned error into a ComputationError.
func (a *Analyzer) stage(log *zap.Logger, name string, fn func() error) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = &ComputationError{Stage: name, Err: fmt.Errorf("panic: %v", r)}
		}
		log.Debug("stage", zap.String("stage", name), zap.Duration("took", time.Since(start)), zap.Error(err))
	}()

	if err := fn(); err != nil {
		return &ComputationError{Stage: name, Err: err}
	}
	return nil
}

var errNonFinite = errors.New("non-finite value")

func checkFinite(vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return errNonFinite
		}
	}
	return nil
}
