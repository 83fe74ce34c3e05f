package logging

import "regexp"

// Sanitizer redacts credentials from log output. Completion and search API
// keys arrive both from config and per-request headers, so anything that
// logs request context passes through here.
type Sanitizer struct {
	patterns []*regexp.Regexp
	redacted string
}

// NewSanitizer creates a sanitizer with default patterns.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		patterns: defaultPatterns(),
		redacted: "[REDACTED]",
	}
}

func defaultPatterns() []*regexp.Regexp {
	patterns := []string{
		// OpenAI keys (sk-..., sk-proj-...)
		`sk-[A-Za-z0-9_-]{20,}`,
		// Bearer tokens in dumped headers
		`(?i)bearer\s+[a-zA-Z0-9._-]{20,}`,
		// Header-style API keys (X-Api-Key: ..., X-Serper-Key: ...)
		`(?i)x-(api|serper)-key["'\s:=]+[a-zA-Z0-9_-]{16,}`,
		// Generic API keys and secrets
		`(?i)api[_-]?key["'\s:=]+[a-zA-Z0-9_-]{16,}`,
		`(?i)secret["'\s:=]+[a-zA-Z0-9_-]{16,}`,
		`(?i)token["'\s:=]+[a-zA-Z0-9_-]{20,}`,
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		compiled = append(compiled, regexp.MustCompile(p))
	}
	return compiled
}

// Sanitize redacts credentials from a string.
func (s *Sanitizer) Sanitize(input string) string {
	result := input
	for _, pattern := range s.patterns {
		result = pattern.ReplaceAllString(result, s.redacted)
	}
	return result
}

// AddPattern adds a custom pattern.
func (s *Sanitizer) AddPattern(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	s.patterns = append(s.patterns, re)
	return nil
}
