package parse

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/gridmind/gridmind/internal/core"
)

// Parse turns raw completion text into a structured result for the given
// schema. Strict JSON parsing is attempted first; when it fails, the lenient
// fallback still produces a usable answer from the text. Parse never returns
// an empty answer for non-empty raw text.
func Parse(raw string, schema []core.FieldSpec) core.StructuredResult {
	obj, ok := extractJSON(raw)
	if !ok {
		return Fallback(raw, schema)
	}

	result, err := validate(obj, schema)
	if err != nil {
		return Fallback(raw, schema)
	}
	result.Raw = raw
	return result
}

// validate checks a decoded object against the schema and shapes it into a
// structured result. The primary field becomes the answer; quality fields
// are clamped to their declared bounds.
func validate(obj map[string]any, schema []core.FieldSpec) (core.StructuredResult, error) {
	result := core.StructuredResult{Fields: make(map[string]any, len(obj))}

	for _, f := range schema {
		v, present := obj[f.Name]
		if !present || v == nil {
			if f.Required {
				return core.StructuredResult{}, fmt.Errorf("missing required field %q", f.Name)
			}
			continue
		}

		coerced, err := coerce(v, f)
		if err != nil {
			return core.StructuredResult{}, fmt.Errorf("field %q: %w", f.Name, err)
		}
		result.Fields[f.Name] = coerced

		if f.Primary {
			result.Answer = stringify(coerced)
		}
		switch f.Quality {
		case core.QualityConfidence:
			if n, ok := coerced.(float64); ok {
				result.Confidence = core.Float64Ptr(n)
			}
		case core.QualityEvidence:
			if n, ok := coerced.(float64); ok {
				result.Evidence = core.Float64Ptr(n)
			}
		}
	}

	// Keep fields the schema did not ask for; models volunteer extras and
	// callers may want them.
	for k, v := range obj {
		if _, ok := result.Fields[k]; !ok {
			result.Fields[k] = normalize(v)
		}
	}

	if strings.TrimSpace(result.Answer) == "" {
		return core.StructuredResult{}, fmt.Errorf("primary field is empty")
	}

	result.Clamp(qualityBounds(schema))
	return result, nil
}

// coerce converts a decoded JSON value to the field's declared kind.
func coerce(v any, f core.FieldSpec) (any, error) {
	switch f.Kind {
	case core.FieldKindString:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", v)
		}
		if len(f.Enum) > 0 {
			lowered := strings.ToLower(strings.TrimSpace(s))
			for _, allowed := range f.Enum {
				if lowered == allowed {
					return lowered, nil
				}
			}
			return nil, fmt.Errorf("%q not in enum %v", s, f.Enum)
		}
		return s, nil

	case core.FieldKindNumber:
		switch n := v.(type) {
		case json.Number:
			x, err := n.Float64()
			if err != nil {
				return nil, err
			}
			return x, nil
		case float64:
			return n, nil
		case string:
			// Models quote numbers often enough to tolerate it.
			x, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
			if err != nil {
				return nil, fmt.Errorf("expected number, got %q", n)
			}
			return x, nil
		default:
			return nil, fmt.Errorf("expected number, got %T", v)
		}

	case core.FieldKindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("expected bool, got %T", v)
		}
		return b, nil

	case core.FieldKindList:
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("expected list, got %T", v)
		}
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = normalize(item)
		}
		return out, nil

	default:
		return normalize(v), nil
	}
}

// normalize converts json.Number leaves to float64 so that stored fields
// round-trip through encoding/json cleanly.
func normalize(v any) any {
	switch t := v.(type) {
	case json.Number:
		if x, err := t.Float64(); err == nil {
			return x
		}
		return t.String()
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = normalize(item)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = normalize(item)
		}
		return out
	default:
		return v
	}
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, len(t))
		for i, item := range t {
			parts[i] = stringify(item)
		}
		return strings.Join(parts, ", ")
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}

// qualityBounds returns the clamp range for quality fields. Schemas declare
// per-field bounds; the widest declared range wins, defaulting to [0, 1].
func qualityBounds(schema []core.FieldSpec) (lo, hi float64) {
	lo, hi = 0, 1
	for _, f := range schema {
		if f.Quality == core.QualityNone {
			continue
		}
		if f.Min < lo {
			lo = f.Min
		}
		if f.Max > hi {
			hi = f.Max
		}
	}
	return lo, hi
}
