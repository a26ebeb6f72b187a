// Package config loads application settings from defaults, an optional
// YAML file and TRACKMETA_ environment variables.
package config

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"

	"github.com/nzoschke/trackmeta/pkg/analysis"
)

// EnvPrefix is prepended to environment variable names, so analysis.tempo.start_bpm
// is read from TRACKMETA_ANALYSIS_TEMPO_START_BPM.
const EnvPrefix = "TRACKMETA"

// Output formats accepted by Validate.
var Outputs = []string{"table", "json", "yaml", "simple"}

// Config is the complete application configuration.
type Config struct {
	LogLevel   string          `mapstructure:"log_level" yaml:"log_level"`
	LogFormat  string          `mapstructure:"log_format" yaml:"log_format"`
	Output     string          `mapstructure:"output" yaml:"output"`
	Catalog    string          `mapstructure:"catalog" yaml:"catalog"` // empty disables the catalog
	Workers    int             `mapstructure:"workers" yaml:"workers"`
	Timeout    time.Duration   `mapstructure:"timeout" yaml:"timeout"` // per file, 0 disables
	SampleRate int             `mapstructure:"sample_rate" yaml:"sample_rate"`
	Force      bool            `mapstructure:"force" yaml:"force"`
	Analysis   analysis.Config `mapstructure:"analysis" yaml:"analysis"`
}

// Load reads configuration into v and decodes it. file may be empty.
func Load(v *viper.Viper, file string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unable to decode configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting.
func (c *Config) Validate() error {
	var errs []error
	if _, err := zapcore.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("log level: %w", err))
	}
	if c.LogFormat != "json" && c.LogFormat != "console" {
		errs = append(errs, fmt.Errorf("log format must be json or console, got %q", c.LogFormat))
	}
	if !slices.Contains(Outputs, c.Output) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(Outputs, ", "), c.Output))
	}
	if c.Workers <= 0 {
		errs = append(errs, errors.New("workers must be positive"))
	}
	if c.Timeout < 0 {
		errs = append(errs, errors.New("timeout cannot be negative"))
	}
	if c.SampleRate <= 0 {
		errs = append(errs, errors.New("sample rate must be positive"))
	}
	if err := c.Analysis.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// WriteYAML writes the configuration in the format Load reads.
func (c *Config) WriteYAML(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return enc.Close()
}
