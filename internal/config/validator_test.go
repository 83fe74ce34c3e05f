package config

import (
	"strings"
	"testing"
)

func validConfig() *Config {
	return &Config{
		Log:    LogConfig{Level: "info", Format: "auto"},
		Server: ServerConfig{Addr: ":8080"},
		Completion: CompletionConfig{
			BaseURL:     "https://api.openai.com/v1",
			Model:       "gpt-4o",
			MaxTokens:   500,
			Temperature: 0.1,
		},
		Dispatch: DispatchConfig{
			Concurrency: 6,
			CallTimeout: "60s",
			MaxRetries:  2,
		},
		Search: SearchConfig{
			Enabled:    true,
			BaseURL:    "https://google.serper.dev",
			Timeout:    "10s",
			MaxResults: 5,
		},
		Events: EventsConfig{BufferSize: 256},
	}
}

func TestValidateAcceptsValidConfig(t *testing.T) {
	if err := ValidateConfig(validConfig()); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
		{"empty addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"empty model", func(c *Config) { c.Completion.Model = "" }, "completion.model"},
		{"zero max tokens", func(c *Config) { c.Completion.MaxTokens = 0 }, "completion.max_tokens"},
		{"temperature too high", func(c *Config) { c.Completion.Temperature = 3 }, "completion.temperature"},
		{"zero concurrency", func(c *Config) { c.Dispatch.Concurrency = 0 }, "dispatch.concurrency"},
		{"excessive concurrency", func(c *Config) { c.Dispatch.Concurrency = 100 }, "dispatch.concurrency"},
		{"negative retries", func(c *Config) { c.Dispatch.MaxRetries = -1 }, "dispatch.max_retries"},
		{"bad call timeout", func(c *Config) { c.Dispatch.CallTimeout = "soon" }, "dispatch.call_timeout"},
		{"bad search timeout", func(c *Config) { c.Search.Timeout = "whenever" }, "search.timeout"},
		{"zero search results", func(c *Config) { c.Search.MaxResults = 0 }, "search.max_results"},
		{"watch without dir", func(c *Config) { c.Templates.Watch = true }, "templates.watch"},
		{"zero event buffer", func(c *Config) { c.Events.BufferSize = 0 }, "events.buffer_size"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := ValidateConfig(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.field) {
				t.Errorf("expected error to mention %q, got %v", tt.field, err)
			}
		})
	}
}

func TestDisabledSearchSkipsSearchChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Search = SearchConfig{Enabled: false}
	if err := ValidateConfig(cfg); err != nil {
		t.Fatalf("disabled search should not be validated: %v", err)
	}
}

func TestValidationErrorsAggregates(t *testing.T) {
	cfg := validConfig()
	cfg.Log.Level = "verbose"
	cfg.Server.Addr = ""

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected errors")
	}
	verrs, ok := err.(ValidationErrors)
	if !ok {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}
	if len(verrs) != 2 {
		t.Errorf("expected 2 errors, got %d: %v", len(verrs), verrs)
	}
}
