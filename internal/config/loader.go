package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading from multiple sources.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "GRIDMIND",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance.
// This allows integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "GRIDMIND",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources.
// Precedence (highest to lowest):
// 1. CLI flags (set via viper.BindPFlag)
// 2. Environment variables (GRIDMIND_*)
// 3. Project config (.gridmind.yaml in current directory)
// 4. User config (~/.config/gridmind/config.yaml)
// 5. Defaults
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName(".gridmind")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			l.v.AddConfigPath(filepath.Join(home, ".config", "gridmind"))
		}
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// The conventional provider variables work without GRIDMIND_ prefixes.
	if cfg.Completion.APIKey == "" {
		cfg.Completion.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.Search.APIKey == "" {
		cfg.Search.APIKey = os.Getenv("SERPER_API_KEY")
	}

	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")

	l.v.SetDefault("server.addr", ":8080")

	l.v.SetDefault("completion.base_url", "https://api.openai.com/v1")
	l.v.SetDefault("completion.model", "gpt-4o")
	l.v.SetDefault("completion.max_tokens", 500)
	l.v.SetDefault("completion.temperature", 0.1)

	l.v.SetDefault("dispatch.concurrency", 6)
	l.v.SetDefault("dispatch.call_timeout", "60s")
	l.v.SetDefault("dispatch.max_retries", 2)
	l.v.SetDefault("dispatch.rate_limit", 0)

	l.v.SetDefault("search.enabled", true)
	l.v.SetDefault("search.base_url", "https://google.serper.dev")
	l.v.SetDefault("search.timeout", "10s")
	l.v.SetDefault("search.max_results", 5)

	l.v.SetDefault("store.path", "")

	l.v.SetDefault("templates.dir", "")
	l.v.SetDefault("templates.watch", false)

	l.v.SetDefault("events.buffer_size", 256)
}
