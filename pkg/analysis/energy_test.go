package analysis

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnergyRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	cfg := DefaultEnergyConfig()

	for trial := 0; trial < 5; trial++ {
		samples := make([]float64, 3*testRate)
		gain := float64(trial + 1)
		for i := range samples {
			// amplitude swells over the clip so the envelope is not flat
			samples[i] = gain * (rng.Float64()*2 - 1) * float64(i) / float64(len(samples))
		}

		env, degenerate := Energy(samples, cfg)
		require.False(t, degenerate)
		require.Len(t, env, 1+len(samples)/cfg.HopLength)

		lo, hi := env[0], env[0]
		for _, v := range env {
			assert.GreaterOrEqual(t, v, 0.0)
			assert.LessOrEqual(t, v, 1.0)
			lo, hi = min(lo, v), max(hi, v)
		}
		assert.Equal(t, 0.0, lo)
		assert.InDelta(t, 1.0, hi, 1e-12)
	}
}

func TestEnergySilencePassesThrough(t *testing.T) {
	samples := make([]float64, testRate)

	env, degenerate := Energy(samples, DefaultEnergyConfig())
	assert.True(t, degenerate)
	assert.Equal(t, rms(samples, 2048, 512), env)
	for _, v := range env {
		assert.Equal(t, 0.0, v)
	}
}

func TestEnergyFollowsLoudness(t *testing.T) {
	quiet := sine(1, 440, 0.1)
	loud := sine(1, 440, 0.8)
	env, _ := Energy(append(quiet, loud...), DefaultEnergyConfig())

	mid := len(env) / 2
	assert.Less(t, env[mid/2], env[mid+mid/2])
	assert.InDelta(t, 1.0, env[mid+mid/2], 0.05)
}

func TestRMSFrameCentering(t *testing.T) {
	// a single impulse at sample 1024 falls in frames 1 through 4
	samples := make([]float64, 4096)
	samples[1024] = 1
	out := rms(samples, 2048, 512)

	require.Len(t, out, 9)
	for i, v := range out {
		if i >= 1 && i <= 4 {
			assert.Greater(t, v, 0.0, "frame %d", i)
		} else {
			assert.Equal(t, 0.0, v, "frame %d", i)
		}
	}
}
