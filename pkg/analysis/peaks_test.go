package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalMaxima(t *testing.T) {
	tests := []struct {
		name string
		x    []float64
		want []int
	}{
		{name: "simple", x: []float64{0, 1, 0, 2, 0}, want: []int{1, 3}},
		{name: "plateau", x: []float64{0, 1, 1, 1, 0}, want: []int{2}},
		{name: "even plateau", x: []float64{0, 1, 1, 0}, want: []int{1}},
		{name: "edges ignored", x: []float64{3, 1, 2}, want: nil},
		{name: "open plateau", x: []float64{0, 1, 1}, want: nil},
		{name: "short", x: []float64{1}, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, localMaxima(tt.x))
		})
	}
}

func TestProminence(t *testing.T) {
	x := []float64{0, 0.5, 0.2, 1, 0.1, 0.3, 0}
	assert.InDelta(t, 0.3, prominence(x, 1), 1e-12) // bounded by the 0.2 valley before the taller peak
	assert.InDelta(t, 1.0, prominence(x, 3), 1e-12)
	assert.InDelta(t, 0.2, prominence(x, 5), 1e-12)
}

func TestSelectByDistance(t *testing.T) {
	x := []float64{0, 0.5, 0, 1, 0, 0.8, 0, 0, 0, 0.4, 0}
	got := selectByDistance(x, []int{1, 3, 5, 9}, 3)
	// 3 is highest and removes 1 and 5; 9 is far enough away
	assert.Equal(t, []int{3, 9}, got)
}

func TestFindPeaks(t *testing.T) {
	env := make([]float64, 200)
	for _, c := range []int{30, 90, 150} {
		for i := range env {
			d := float64(i - c)
			env[i] = math.Max(env[i], math.Exp(-d*d/50))
		}
	}
	// a small ripple that is not prominent enough
	env[120] += 0.05

	peaks := FindPeaks(env, 200*512, 44100, DefaultPeakConfig())
	require.Len(t, peaks, 3)
	for i, c := range []int{30, 90, 150} {
		assert.Equal(t, c, peaks[i].Frame)
		assert.InDelta(t, 1.0, peaks[i].Height, 1e-9)
		assert.InDelta(t, float64(c)*512/44100, peaks[i].Time, 1e-9)
	}
}

func TestFindPeaksFlat(t *testing.T) {
	assert.Empty(t, FindPeaks(make([]float64, 500), 500*512, 44100, DefaultPeakConfig()))
	assert.NotNil(t, FindPeaks(nil, 0, 44100, DefaultPeakConfig()))
}

func TestFindPeaksSpacing(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cfg := DefaultPeakConfig()

	for run := 0; run < 10; run++ {
		n := 500 + rng.Intn(3000)
		env := make([]float64, n)
		for i := range env {
			env[i] = rng.Float64()
		}
		numSamples := n * 512

		peaks := FindPeaks(env, numSamples, 44100, cfg)
		distance := max(n/100, 1)
		minGap := frameToSeconds(distance, n, numSamples, 44100)

		for i, p := range peaks {
			assert.GreaterOrEqual(t, p.Prominence, cfg.Prominence)
			if i == 0 {
				continue
			}
			prev := peaks[i-1]
			assert.Greater(t, p.Time, prev.Time)
			assert.GreaterOrEqual(t, p.Frame-prev.Frame, distance)
			assert.GreaterOrEqual(t, p.Time-prev.Time, minGap-1e-9)
		}
	}
}
