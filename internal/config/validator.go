package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation: %s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors collects multiple validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{errors: make(ValidationErrors, 0)}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.validateLog(&cfg.Log)
	v.validateServer(&cfg.Server)
	v.validateCompletion(&cfg.Completion)
	v.validateDispatch(&cfg.Dispatch)
	v.validateSearch(&cfg.Search)
	v.validateStore(&cfg.Store)
	v.validateTemplates(&cfg.Templates)
	v.validateEvents(&cfg.Events)

	if len(v.errors) > 0 {
		return v.errors
	}
	return nil
}

func (v *Validator) addError(field string, value any, msg string) {
	v.errors = append(v.errors, ValidationError{Field: field, Value: value, Message: msg})
}

func (v *Validator) validateLog(cfg *LogConfig) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[cfg.Level] {
		v.addError("log.level", cfg.Level, "must be one of: debug, info, warn, error")
	}

	validFormats := map[string]bool{
		"auto": true, "text": true, "json": true,
	}
	if !validFormats[cfg.Format] {
		v.addError("log.format", cfg.Format, "must be one of: auto, text, json")
	}

	if cfg.File != "" && !isValidPath(cfg.File) {
		v.addError("log.file", cfg.File, "invalid file path")
	}
}

func (v *Validator) validateServer(cfg *ServerConfig) {
	if cfg.Addr == "" {
		v.addError("server.addr", cfg.Addr, "listen address required")
	}
}

func (v *Validator) validateCompletion(cfg *CompletionConfig) {
	if cfg.Model == "" {
		v.addError("completion.model", cfg.Model, "model required")
	}
	if cfg.BaseURL == "" {
		v.addError("completion.base_url", cfg.BaseURL, "base URL required")
	}
	if cfg.MaxTokens <= 0 {
		v.addError("completion.max_tokens", cfg.MaxTokens, "must be positive")
	}
	if cfg.Temperature < 0 || cfg.Temperature > 2 {
		v.addError("completion.temperature", cfg.Temperature, "must be between 0 and 2")
	}
}

func (v *Validator) validateDispatch(cfg *DispatchConfig) {
	if cfg.Concurrency <= 0 || cfg.Concurrency > 64 {
		v.addError("dispatch.concurrency", cfg.Concurrency, "must be between 1 and 64")
	}
	if cfg.MaxRetries < 0 || cfg.MaxRetries > 10 {
		v.addError("dispatch.max_retries", cfg.MaxRetries, "must be between 0 and 10")
	}
	if cfg.RateLimit < 0 {
		v.addError("dispatch.rate_limit", cfg.RateLimit, "must be non-negative")
	}
	if _, err := time.ParseDuration(cfg.CallTimeout); err != nil {
		v.addError("dispatch.call_timeout", cfg.CallTimeout, "must be a valid duration (e.g. 60s)")
	}
}

func (v *Validator) validateSearch(cfg *SearchConfig) {
	if !cfg.Enabled {
		return
	}
	if cfg.BaseURL == "" {
		v.addError("search.base_url", cfg.BaseURL, "base URL required when search is enabled")
	}
	if cfg.MaxResults <= 0 {
		v.addError("search.max_results", cfg.MaxResults, "must be positive")
	}
	if _, err := time.ParseDuration(cfg.Timeout); err != nil {
		v.addError("search.timeout", cfg.Timeout, "must be a valid duration (e.g. 10s)")
	}
}

func (v *Validator) validateStore(cfg *StoreConfig) {
	if cfg.Path != "" && !isValidPath(cfg.Path) {
		v.addError("store.path", cfg.Path, "invalid file path")
	}
}

func (v *Validator) validateTemplates(cfg *TemplatesConfig) {
	if cfg.Watch && cfg.Dir == "" {
		v.addError("templates.watch", cfg.Watch, "templates.dir required when watch is enabled")
	}
}

func (v *Validator) validateEvents(cfg *EventsConfig) {
	if cfg.BufferSize <= 0 {
		v.addError("events.buffer_size", cfg.BufferSize, "must be positive")
	}
}

func isValidPath(path string) bool {
	dir := filepath.Dir(path)
	_, err := os.Stat(dir)
	return err == nil || os.IsNotExist(err)
}

// ValidateConfig is a convenience function that creates a validator and
// validates config.
func ValidateConfig(cfg *Config) error {
	v := NewValidator()
	return v.Validate(cfg)
}
