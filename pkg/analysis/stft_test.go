package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
)

func TestSTFT_Basic(t *testing.T) {
	// 1 second of random noise
	rng := rand.New(rand.NewSource(42))
	samples := make([]float64, testRate)
	for i := range samples {
		samples[i] = rng.Float64()*2 - 1
	}

	cfg := STFTConfig{FFTSize: 1024, HopSize: 441}
	result := STFT(samples, cfg)

	// Centered frames: 1 + 44100/441 = 101
	require.Len(t, result, 1+len(samples)/cfg.HopSize)
	// Bins: 1024/2 + 1 = 513
	require.Len(t, result[0], cfg.FFTSize/2+1)

	t.Logf("STFT result: %d frames x %d bins", len(result), len(result[0]))
}

func TestSTFT_SinePeak(t *testing.T) {
	cfg := STFTConfig{FFTSize: 2048, HopSize: 512}
	// 43 cycles per 2048 samples lands exactly on bin 43
	freq := 43 * float64(testRate) / float64(cfg.FFTSize)
	result := STFT(sine(1, freq, 1), cfg)

	frame := result[len(result)/2]
	peak := 0
	for j, m := range frame {
		if m > frame[peak] {
			peak = j
		}
	}
	assert.Equal(t, 43, peak)
	// Periodic Hann sums to N/2, so a unit sine peaks at N/4.
	assert.InDelta(t, float64(cfg.FFTSize)/4, frame[peak], 1)
	assert.InDelta(t, freq, binFrequency(peak, cfg.FFTSize, testRate), 1e-9)
}

func TestSTFT_Empty(t *testing.T) {
	assert.Nil(t, STFT(nil, STFTConfig{FFTSize: 1024, HopSize: 256}))
	assert.Nil(t, STFT([]float64{1, 2, 3}, STFTConfig{}))
}

func TestPeriodicHann(t *testing.T) {
	w := periodicHann(8)
	require.Len(t, w, 8)
	assert.InDelta(t, 0, w[0], 1e-12)
	assert.InDelta(t, 1, w[4], 1e-12)
	// symmetric about the center sample
	for i := 1; i < 4; i++ {
		assert.InDelta(t, w[4-i], w[4+i], 1e-12)
	}
	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 4, sum, 1e-12)
	assert.False(t, math.IsNaN(sum))
}

func TestOnsetStrength(t *testing.T) {
	// an impulse every half second on top of silence
	samples := make([]float64, 2*testRate)
	for i := 0; i < len(samples); i += testRate / 2 {
		samples[i] = 1
	}
	onset := OnsetStrength(samples, testRate, STFTConfig{FFTSize: 2048, HopSize: 512})

	require.Len(t, onset, 1+len(samples)/512)
	assert.Equal(t, 0.0, onset[0])

	// flux rises just before each click frame and is zero far from clicks
	for _, click := range []int{43, 86, 129} {
		var local float64
		for f := click - 2; f <= click+1; f++ {
			local = max(local, onset[f])
		}
		assert.Greater(t, local, 1.0, "click near frame %d", click)
	}
	assert.Equal(t, 0.0, onset[20])

	assert.Equal(t, make([]float64, 1+testRate/512), OnsetStrength(make([]float64, testRate), testRate, STFTConfig{FFTSize: 2048, HopSize: 512}))
}

func TestMelScale(t *testing.T) {
	assert.InDelta(t, 15, hzToMel(1000), 1e-12)
	assert.InDelta(t, 7.5, hzToMel(500), 1e-12)
	for _, hz := range []float64{0, 60, 999, 1000, 4000, 22050} {
		assert.InDelta(t, hz, melToHz(hzToMel(hz)), 1e-9)
	}
}

func TestMelFilterbank(t *testing.T) {
	fb := melFilterbank(testRate, 2048, onsetMelBands)
	require.Len(t, fb, onsetMelBands)

	for b, filter := range fb {
		require.Len(t, filter, 1025)
		assert.Greater(t, floats.Sum(filter), 0.0, "band %d is empty", b)
		assert.GreaterOrEqual(t, floats.Min(filter), 0.0)
	}

	// a 60Hz bin lands in the lowest few bands only
	bin := int(math.Round(60 * 2048.0 / testRate))
	var bands int
	for _, filter := range fb {
		if filter[bin] > 0 {
			bands++
		}
	}
	assert.LessOrEqual(t, bands, 2)
	assert.Greater(t, fb[0][bin]+fb[1][bin]+fb[2][bin], 0.0)
}

func TestOnsetStrengthKickOverNoise(t *testing.T) {
	w := kickTrack(4, 120)
	onset := OnsetStrength(w.float64s(), testRate, STFTConfig{FFTSize: 2048, HopSize: 512})

	// each kick stands well clear of the noise floor's flux
	var noise []float64
	for f := 10; f < 30; f++ {
		noise = append(noise, onset[f])
	}
	floor := floats.Max(noise)
	for _, kick := range []int{43, 86, 129} {
		assert.Greater(t, floats.Max(onset[kick-2:kick+2]), 2*floor, "kick near frame %d", kick)
	}
}
