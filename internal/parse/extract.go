// Package parse converts raw completion text into structured cell results.
// Parsing is pure: the same raw text and schema always produce the same
// result, so regeneration and replay are deterministic.
package parse

import (
	"encoding/json"
	"regexp"
	"strings"
)

// fencePattern matches markdown code fences with an optional language tag.
var fencePattern = regexp.MustCompile("(?s)```(\\w*)\\s*\\n(.+?)\\n```")

// extractJSON pulls a JSON object out of completion text. Models wrap
// objects in markdown fences or prose; fenced blocks win, then the first
// balanced object in the raw text.
func extractJSON(raw string) (map[string]any, bool) {
	if obj, ok := decodeObject(strings.TrimSpace(raw)); ok {
		return obj, true
	}
	if body, ok := extractFenced(raw); ok {
		if obj, ok := decodeObject(body); ok {
			return obj, true
		}
	}
	if body, ok := extractBalanced(raw); ok {
		if obj, ok := decodeObject(body); ok {
			return obj, true
		}
	}
	return nil, false
}

func decodeObject(s string) (map[string]any, bool) {
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, false
	}
	return obj, true
}

// extractFenced returns the first fenced block that is tagged json or left
// untagged. Blocks tagged as other languages are skipped.
func extractFenced(raw string) (string, bool) {
	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		lang := strings.ToLower(m[1])
		if lang != "" && lang != "json" {
			continue
		}
		body := strings.TrimSpace(m[2])
		if strings.HasPrefix(body, "{") {
			return body, true
		}
	}
	return "", false
}

// extractBalanced returns the first brace-balanced object, respecting
// string literals and escapes.
func extractBalanced(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	s := raw[start:]

	depth := 0
	inString := false
	escaped := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if escaped {
			escaped = false
			continue
		}
		switch {
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

// stripFences removes markdown fences for fallback text recovery.
func stripFences(raw string) string {
	out := fencePattern.ReplaceAllString(raw, "$2")
	return strings.TrimSpace(out)
}
