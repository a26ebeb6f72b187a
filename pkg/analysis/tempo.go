package analysis

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// TempoConfig holds parameters for onset-based tempo estimation.
type TempoConfig struct {
	FFTSize       int     `mapstructure:"fft_size" yaml:"fft_size"`             // onset STFT window
	HopSize       int     `mapstructure:"hop_size" yaml:"hop_size"`             // onset frame step in samples
	WindowSeconds float64 `mapstructure:"window_seconds" yaml:"window_seconds"` // autocorrelation window
	StartBPM      float64 `mapstructure:"start_bpm" yaml:"start_bpm"`           // tempo prior center
	StdBPM        float64 `mapstructure:"std_bpm" yaml:"std_bpm"`               // tempo prior width in octaves
	MaxTempo      float64 `mapstructure:"max_tempo" yaml:"max_tempo"`
	Tightness     float64 `mapstructure:"tightness" yaml:"tightness"` // beat tracker tempo adherence
}

// DefaultTempoConfig returns the defaults used for 44.1kHz input.
func DefaultTempoConfig() TempoConfig {
	return TempoConfig{
		FFTSize:       2048,
		HopSize:       512,
		WindowSeconds: 8,
		StartBPM:      120,
		StdBPM:        1,
		MaxTempo:      320,
		Tightness:     100,
	}
}

// Fusion weights for the beat-tracker, tempogram and per-frame estimates.
const (
	weightBeatTrack  = 0.3
	weightTempogram  = 0.5
	weightCandidates = 0.2
)

// TempoEstimate is the fused tempo with its three sub-estimates.
type TempoEstimate struct {
	BPM        float64 `json:"bpm" yaml:"bpm"`
	Confidence float64 `json:"confidence" yaml:"confidence"`

	BeatTrack  float64 `json:"beat_track" yaml:"beat_track"` // from tracked beat intervals
	Tempogram  float64 `json:"tempogram" yaml:"tempogram"`   // median-aggregated tempogram
	Candidates float64 `json:"candidates" yaml:"candidates"` // median of per-frame tempi
}

// TempoAnalysis carries the estimate plus byproducts of the beat tracker.
type TempoAnalysis struct {
	Estimate   TempoEstimate
	Beats      []float64 // seconds
	Degenerate bool
	Untracked  bool // fewer than two beats tracked; BeatTrack holds the tempogram seed
}

// EstimateTempo runs the three tempo estimators over samples and fuses them.
func EstimateTempo(samples []float64, sampleRate int, cfg TempoConfig) TempoAnalysis {
	onset := OnsetStrength(samples, sampleRate, STFTConfig{FFTSize: cfg.FFTSize, HopSize: cfg.HopSize})
	if len(onset) == 0 || floats.Max(onset) <= 0 {
		return TempoAnalysis{Degenerate: true}
	}

	fps := float64(sampleRate) / float64(cfg.HopSize)
	tg := newTempogram(onset, fps, cfg)

	m2 := tg.medianTempo()
	m3 := tg.candidateTempo()
	seed := tg.meanTempo()

	frames := trackBeats(onset, seed, fps, cfg.Tightness)
	m1, tracked := beatTempo(frames, fps, seed)

	beats := make([]float64, len(frames))
	for i, f := range frames {
		beats[i] = float64(f) / fps
	}

	bpm, conf := FuseTempo(m1, m2, m3)
	return TempoAnalysis{
		Estimate: TempoEstimate{
			BPM:        bpm,
			Confidence: conf,
			BeatTrack:  m1,
			Tempogram:  m2,
			Candidates: m3,
		},
		Beats:     beats,
		Untracked: !tracked,
	}
}

// beatTempo converts the median inter-beat interval to BPM. With fewer than
// two beats it returns seed and false.
func beatTempo(frames []int, fps, seed float64) (float64, bool) {
	if len(frames) < 2 {
		return seed, false
	}
	ibi := make([]float64, len(frames)-1)
	for i := range ibi {
		ibi[i] = float64(frames[i+1] - frames[i])
	}
	return 60 * fps / median(ibi), true
}

// FuseTempo combines the three sub-estimates into a rounded BPM and an
// agreement score in [0,1]. Confidence is 1 when all three agree exactly and
// 0 when their mean is not positive.
func FuseTempo(m1, m2, m3 float64) (bpm, confidence float64) {
	bpm = math.Round(weightBeatTrack*m1 + weightTempogram*m2 + weightCandidates*m3)

	if m1 == m2 && m2 == m3 {
		if m1 > 0 {
			return bpm, 1
		}
		return bpm, 0
	}

	mean, std := stat.PopMeanStdDev([]float64{m1, m2, m3}, nil)
	if mean <= 0 {
		return bpm, 0
	}
	return bpm, clamp01(1 - std/mean)
}

// tempogram is an autocorrelation tempogram stored lag-major so that each
// lag can be aggregated over time.
type tempogram struct {
	lags     [][]float32 // [lag][frame], each frame normalized to max 1
	prior    []float64   // log prior per lag, -Inf where excluded
	bpms     []float64
	perFrame []float64 // best BPM per non-silent frame
}

func newTempogram(onset []float64, fps float64, cfg TempoConfig) *tempogram {
	win := int(math.Floor(cfg.WindowSeconds * fps))
	win = max(win, 2)

	tg := &tempogram{
		lags:  make([][]float32, win),
		prior: make([]float64, win),
		bpms:  make([]float64, win),
	}

	tg.prior[0] = math.Inf(-1)
	for lag := 1; lag < win; lag++ {
		bpm := 60 * fps / float64(lag)
		tg.bpms[lag] = bpm
		if bpm > cfg.MaxTempo {
			tg.prior[lag] = math.Inf(-1)
			continue
		}
		z := (math.Log2(bpm) - math.Log2(cfg.StartBPM)) / cfg.StdBPM
		tg.prior[lag] = -0.5 * z * z
	}

	for lag := range tg.lags {
		tg.lags[lag] = make([]float32, len(onset))
	}

	padded := linearRampPad(onset, win/2)
	hann := periodicHann(win)

	n := 1
	for n < 2*win-1 {
		n <<= 1
	}
	fft := fourier.NewFFT(n)
	seg := make([]float64, n)
	coeffs := make([]complex128, n/2+1)
	ac := make([]float64, n)
	scores := make([]float64, win)

	for t := range onset {
		for j := range seg {
			seg[j] = 0
		}
		for j := 0; j < win; j++ {
			seg[j] = padded[t+j] * hann[j]
		}

		coeffs = fft.Coefficients(coeffs, seg)
		for j, c := range coeffs {
			coeffs[j] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
		}
		ac = fft.Sequence(ac, coeffs)

		peak := floats.Max(ac[:win])
		if peak <= 0 {
			continue
		}
		for lag := 0; lag < win; lag++ {
			v := ac[lag] / peak
			tg.lags[lag][t] = float32(v)
			scores[lag] = math.Log1p(1e6*v) + tg.prior[lag]
		}
		tg.perFrame = append(tg.perFrame, tg.bpms[argmax(scores)])
	}

	return tg
}

// medianTempo picks the best lag of the time-median tempogram.
func (tg *tempogram) medianTempo() float64 {
	return tg.bestTempo(func(col []float32) float64 {
		return median(widen(col))
	})
}

// meanTempo picks the best lag of the time-mean tempogram.
func (tg *tempogram) meanTempo() float64 {
	return tg.bestTempo(func(col []float32) float64 {
		return stat.Mean(widen(col), nil)
	})
}

// candidateTempo is the median of per-frame best tempi.
func (tg *tempogram) candidateTempo() float64 {
	if len(tg.perFrame) == 0 {
		return 0
	}
	return median(tg.perFrame)
}

func (tg *tempogram) bestTempo(aggregate func([]float32) float64) float64 {
	scores := make([]float64, len(tg.lags))
	for lag, col := range tg.lags {
		scores[lag] = math.Log1p(1e6*aggregate(col)) + tg.prior[lag]
	}
	return tg.bpms[argmax(scores)]
}

// linearRampPad pads x by width on each side, ramping linearly from 0 to the
// edge values.
func linearRampPad(x []float64, width int) []float64 {
	out := make([]float64, len(x)+2*width)
	copy(out[width:], x)
	first, last := x[0], x[len(x)-1]
	for k := 0; k < width; k++ {
		out[k] = first * float64(k) / float64(width)
		out[width+len(x)+k] = last * (1 - float64(k+1)/float64(width))
	}
	return out
}

// argmax returns the index of the first maximum, ignoring -Inf and NaN.
func argmax(x []float64) int {
	best := 0
	bestVal := math.Inf(-1)
	for i, v := range x {
		if v > bestVal {
			best, bestVal = i, v
		}
	}
	return best
}

// median returns the middle value of x, averaging the two middle values for
// even lengths. x is not modified.
func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	s := slices.Clone(x)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func widen(x []float32) []float64 {
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = float64(v)
	}
	return out
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
