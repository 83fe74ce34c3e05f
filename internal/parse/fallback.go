package parse

import (
	"strings"

	"github.com/gridmind/gridmind/internal/core"
)

// fallbackConfidence is assigned to recovered answers. Low by intent: the
// model ignored the requested shape, so the text is a guess at the answer.
const fallbackConfidence = 0.2

// Fallback recovers an answer from text that failed schema-strict parsing.
// The raw text, minus markdown fences, becomes the answer; a non-empty raw
// string always yields a non-empty answer.
func Fallback(raw string, schema []core.FieldSpec) core.StructuredResult {
	answer := stripFences(raw)
	if answer == "" {
		answer = strings.TrimSpace(raw)
	}

	result := core.StructuredResult{
		Answer:       answer,
		UsedFallback: true,
		Raw:          raw,
	}
	if answer != "" {
		lo, hi := qualityBounds(schema)
		conf := fallbackConfidence
		if conf < lo {
			conf = lo
		}
		if conf > hi {
			conf = hi
		}
		result.Confidence = core.Float64Ptr(conf)
	}
	return result
}
