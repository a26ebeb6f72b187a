package config

import (
	"runtime"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/nzoschke/trackmeta/pkg/analysis"
	"github.com/nzoschke/trackmeta/pkg/catalog"
)

// setDefaults registers a default for every key so environment variables can
// override any of them.
func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("output", "table")
	v.SetDefault("catalog", catalog.DefaultPath)
	v.SetDefault("workers", runtime.NumCPU())
	v.SetDefault("timeout", 5*time.Minute)
	v.SetDefault("sample_rate", 44100)
	v.SetDefault("force", false)

	// analysis keys mirror the yaml tags of analysis.Config
	b, err := yaml.Marshal(analysis.DefaultConfig())
	if err != nil {
		panic(err)
	}
	var m map[string]any
	if err := yaml.Unmarshal(b, &m); err != nil {
		panic(err)
	}
	setNested(v, "analysis", m)
}

func setNested(v *viper.Viper, prefix string, m map[string]any) {
	for k, val := range m {
		key := prefix + "." + k
		if sub, ok := val.(map[string]any); ok {
			setNested(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}
