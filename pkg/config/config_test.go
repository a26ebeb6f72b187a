package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nzoschke/trackmeta/pkg/analysis"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
	assert.Equal(t, "table", cfg.Output)
	assert.Equal(t, 44100, cfg.SampleRate)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Positive(t, cfg.Workers)
	assert.Equal(t, analysis.DefaultConfig(), cfg.Analysis)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trackmeta.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
output: json
workers: 3
timeout: 30s
analysis:
  include_beats: true
  phrases:
    chorus_energy: 0.7
    snap_to_beats: true
  tempo:
    start_bpm: 128
`), 0o644))

	cfg, err := Load(viper.New(), path)
	require.NoError(t, err)

	assert.Equal(t, "json", cfg.Output)
	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.True(t, cfg.Analysis.IncludeBeats)
	assert.Equal(t, 0.7, cfg.Analysis.Phrases.ChorusEnergy)
	assert.True(t, cfg.Analysis.Phrases.SnapToBeats)
	assert.Equal(t, 128.0, cfg.Analysis.Tempo.StartBPM)

	// untouched keys keep their defaults
	assert.Equal(t, 1.5, cfg.Analysis.Phrases.BoundaryMultiplier)
	assert.Equal(t, analysis.DefaultTempoConfig().Tightness, cfg.Analysis.Tempo.Tightness)
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("TRACKMETA_OUTPUT", "yaml")
	t.Setenv("TRACKMETA_ANALYSIS_PEAKS_PROMINENCE", "0.25")
	t.Setenv("TRACKMETA_LOG_LEVEL", "debug")

	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	assert.Equal(t, "yaml", cfg.Output)
	assert.Equal(t, 0.25, cfg.Analysis.Peaks.Prominence)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(viper.New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	t.Setenv("TRACKMETA_OUTPUT", "xml")
	t.Setenv("TRACKMETA_WORKERS", "0")
	_, err = Load(viper.New(), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output")
	assert.Contains(t, err.Error(), "workers")
}

func TestValidate(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)

	cfg.LogLevel = "loud"
	cfg.LogFormat = "xml"
	cfg.Analysis.Key.MaxFreq = 0
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log level")
	assert.Contains(t, err.Error(), "log format")
	assert.Contains(t, err.Error(), "frequency range")
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load(viper.New(), "")
	require.NoError(t, err)
	cfg.Output = "simple"
	cfg.Analysis.Phrases.ChorusEnergy = 0.55

	var buf bytes.Buffer
	require.NoError(t, cfg.WriteYAML(&buf))

	path := filepath.Join(t.TempDir(), "out.yaml")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	got, err := Load(viper.New(), path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
