package template

import "github.com/gridmind/gridmind/internal/core"

// Builtin template identifiers.
const (
	IDFreeform  core.TemplateID = "freeform"
	IDTranslate core.TemplateID = "translate"
	IDSentiment core.TemplateID = "sentiment"
	IDCoding    core.TemplateID = "coding"
	IDLookup    core.TemplateID = "lookup"
)

// Builtins returns the built-in template contracts.
func Builtins() []core.TemplateContract {
	return []core.TemplateContract{
		MustCompile(freeformDef),
		MustCompile(translateDef),
		MustCompile(sentimentDef),
		MustCompile(codingDef),
		MustCompile(lookupDef),
	}
}

// freeformDef applies the instruction verbatim to the source text.
var freeformDef = Definition{
	ID:          string(IDFreeform),
	Description: "Apply a free-text instruction to each cell",
	User:        "{{.Instruction}}\n\nText to process: {{.Source}}",
	Temperature: 0.1,
	MaxTokens:   500,
	Schema: []core.FieldSpec{
		{Name: "answer", Kind: core.FieldKindString, Required: true, Primary: true},
		{Name: "confidence", Kind: core.FieldKindNumber, Quality: core.QualityConfidence, Min: 0, Max: 1},
	},
}

var translateDef = Definition{
	ID:          string(IDTranslate),
	Description: "Translate each cell into a target language",
	User: "Translate the following text into {{index .Params \"target_language\"}}." +
		" {{.Instruction}}\n\nText to process: {{.Source}}",
	Temperature: 0.1,
	MaxTokens:   500,
	Defaults:    map[string]string{"target_language": "English"},
	Schema: []core.FieldSpec{
		{Name: "translation", Kind: core.FieldKindString, Required: true, Primary: true},
		{Name: "detected_language", Kind: core.FieldKindString},
		{Name: "confidence", Kind: core.FieldKindNumber, Quality: core.QualityConfidence, Min: 0, Max: 1},
	},
}

var sentimentDef = Definition{
	ID:          string(IDSentiment),
	Description: "Classify each cell as positive, negative, or neutral",
	User: "Classify the sentiment of the following text as positive, negative, or neutral." +
		" {{.Instruction}}\n\nText to process: {{.Source}}",
	Temperature: 0.0,
	MaxTokens:   200,
	Schema: []core.FieldSpec{
		{Name: "sentiment", Kind: core.FieldKindString, Required: true, Primary: true,
			Enum: []string{"positive", "negative", "neutral"}},
		{Name: "confidence", Kind: core.FieldKindNumber, Required: true,
			Quality: core.QualityConfidence, Min: 0, Max: 1},
	},
}

// codingDef assigns hierarchical category codes, e.g. for survey responses.
var codingDef = Definition{
	ID:          string(IDCoding),
	Description: "Assign hierarchical category codes to each cell",
	User: "Code the following text into categories." +
		" Top-level category name: {{index .Params \"level1\"}}." +
		" Sub-category name: {{index .Params \"level2\"}}." +
		" {{.Instruction}}\n\nText to process: {{.Source}}",
	Temperature: 0.1,
	MaxTokens:   300,
	Defaults:    map[string]string{"level1": "category", "level2": "subcategory"},
	Schema: []core.FieldSpec{
		{Name: "category", Kind: core.FieldKindString, Required: true, Primary: true},
		{Name: "subcategory", Kind: core.FieldKindString},
		{Name: "confidence", Kind: core.FieldKindNumber, Quality: core.QualityConfidence, Min: 0, Max: 1},
		{Name: "evidence", Kind: core.FieldKindNumber, Quality: core.QualityEvidence, Min: 0, Max: 1},
	},
}

// lookupDef answers factual questions about the source value using web
// search context.
var lookupDef = Definition{
	ID:          string(IDLookup),
	Description: "Look up facts about each cell using web search",
	WantsSearch: true,
	User: "{{.Instruction}}\n\n{{if .Search}}{{.Search}}\n{{end}}" +
		"Subject: {{.Source}}\n\nAnswer using the search results above when available.",
	Temperature: 0.1,
	MaxTokens:   500,
	Schema: []core.FieldSpec{
		{Name: "answer", Kind: core.FieldKindString, Required: true, Primary: true},
		{Name: "confidence", Kind: core.FieldKindNumber, Quality: core.QualityConfidence, Min: 0, Max: 1},
		{Name: "evidence", Kind: core.FieldKindNumber, Quality: core.QualityEvidence, Min: 0, Max: 1},
	},
}
