// Package config loads and validates application configuration from files,
// environment variables, and CLI flags.
package config

// Config holds all application configuration.
type Config struct {
	Log        LogConfig        `mapstructure:"log"`
	Server     ServerConfig     `mapstructure:"server"`
	Completion CompletionConfig `mapstructure:"completion"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Search     SearchConfig     `mapstructure:"search"`
	Store      StoreConfig      `mapstructure:"store"`
	Templates  TemplatesConfig  `mapstructure:"templates"`
	Events     EventsConfig     `mapstructure:"events"`
}

// LogConfig configures logging behavior.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// CompletionConfig configures the completion provider. APIKey may be left
// empty when clients supply per-request credentials.
type CompletionConfig struct {
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// DispatchConfig configures concurrency and retry behavior for completion
// calls.
type DispatchConfig struct {
	Concurrency int    `mapstructure:"concurrency"`
	CallTimeout string `mapstructure:"call_timeout"`
	MaxRetries  int    `mapstructure:"max_retries"`
	RateLimit   int    `mapstructure:"rate_limit"`
}

// SearchConfig configures the web search augmenter.
type SearchConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Timeout    string `mapstructure:"timeout"`
	MaxResults int    `mapstructure:"max_results"`
}

// StoreConfig configures sheet persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty selects the in-memory store.
	Path string `mapstructure:"path"`
}

// TemplatesConfig configures the user template pack directory.
type TemplatesConfig struct {
	Dir   string `mapstructure:"dir"`
	Watch bool   `mapstructure:"watch"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	BufferSize int `mapstructure:"buffer_size"`
}
