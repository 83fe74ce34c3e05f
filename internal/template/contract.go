// Package template implements instruction template contracts: the pairing of
// a prompt-construction rule with an expected response schema. Contracts are
// data; registering a new one requires no engine change.
package template

import (
	"bytes"
	"fmt"
	"strings"
	texttemplate "text/template"

	"github.com/gridmind/gridmind/internal/core"
)

// defaultSystemPrompt matches the spreadsheet-assistant framing used for
// every instruction kind unless a definition overrides it.
const defaultSystemPrompt = "You are a helpful assistant that processes data in spreadsheets. " +
	"Provide concise, accurate responses. Follow the user's instructions exactly. " +
	"Respond with a single JSON object containing the requested fields and nothing else."

// Definition is the declarative form of a template contract. Definitions are
// loadable from YAML packs and compiled into contracts.
type Definition struct {
	ID          string            `yaml:"id"`
	Description string            `yaml:"description"`
	WantsSearch bool              `yaml:"wants_search"`
	System      string            `yaml:"system,omitempty"`
	// User is a text/template body. Available fields: .Source, .Instruction,
	// .Search (rendered search block), and .Params (map).
	User        string            `yaml:"user"`
	Temperature float64           `yaml:"temperature,omitempty"`
	MaxTokens   int               `yaml:"max_tokens,omitempty"`
	Schema      []core.FieldSpec  `yaml:"schema"`
	Defaults    map[string]string `yaml:"defaults,omitempty"`
}

// Validate checks a definition for structural problems.
func (d *Definition) Validate() error {
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("template definition missing id")
	}
	if strings.TrimSpace(d.User) == "" {
		return fmt.Errorf("template %s: missing user prompt body", d.ID)
	}
	var primary int
	for _, f := range d.Schema {
		if f.Name == "" {
			return fmt.Errorf("template %s: schema field with empty name", d.ID)
		}
		if f.Primary {
			primary++
		}
		if f.Quality != core.QualityNone && f.Min == f.Max {
			return fmt.Errorf("template %s: quality field %s needs min/max bounds", d.ID, f.Name)
		}
	}
	if primary != 1 {
		return fmt.Errorf("template %s: schema needs exactly one primary field, has %d", d.ID, primary)
	}
	return nil
}

// promptData is the rendering context for user prompt bodies.
type promptData struct {
	Source      string
	Instruction string
	Search      string
	Params      map[string]string
}

// contract is the compiled form of a Definition.
type contract struct {
	def  Definition
	user *texttemplate.Template
}

// Compile turns a definition into a usable contract.
func Compile(def Definition) (core.TemplateContract, error) {
	if err := def.Validate(); err != nil {
		return nil, err
	}
	tmpl, err := texttemplate.New(def.ID).Parse(def.User)
	if err != nil {
		return nil, fmt.Errorf("parsing template %s: %w", def.ID, err)
	}
	return &contract{def: def, user: tmpl}, nil
}

// MustCompile compiles a definition and panics on error. Reserved for the
// built-in definitions, which are covered by tests.
func MustCompile(def Definition) core.TemplateContract {
	c, err := Compile(def)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *contract) ID() core.TemplateID { return core.TemplateID(c.def.ID) }
func (c *contract) Describe() string    { return c.def.Description }
func (c *contract) WantsSearch() bool   { return c.def.WantsSearch }

func (c *contract) Schema() []core.FieldSpec {
	out := make([]core.FieldSpec, len(c.def.Schema))
	copy(out, c.def.Schema)
	return out
}

// BuildPrompt renders the prompt payload for one cell. It is pure: the same
// input always yields the same payload.
func (c *contract) BuildPrompt(input core.PromptInput) core.PromptPayload {
	params := make(map[string]string, len(c.def.Defaults)+len(input.Params))
	for k, v := range c.def.Defaults {
		params[k] = v
	}
	for k, v := range input.Params {
		params[k] = v
	}

	data := promptData{
		Source:      input.Source,
		Instruction: input.Instruction,
		Search:      renderSearchBlock(input.Search),
		Params:      params,
	}

	var buf bytes.Buffer
	if err := c.user.Execute(&buf, data); err != nil {
		// Template bodies are validated at compile time; an execution error
		// here means a missing param, so fall back to the raw pieces.
		buf.Reset()
		fmt.Fprintf(&buf, "%s\n\nText to process: %s", input.Instruction, input.Source)
	}

	system := c.def.System
	if strings.TrimSpace(system) == "" {
		system = defaultSystemPrompt
	}

	return core.PromptPayload{
		System:      system + "\n\n" + schemaInstruction(c.def.Schema),
		User:        buf.String(),
		Temperature: c.def.Temperature,
		MaxTokens:   c.def.MaxTokens,
	}
}

// renderSearchBlock folds search results into a prompt context block.
func renderSearchBlock(sc *core.SearchContext) string {
	if sc == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("Web search results:\n")
	if sc.Summary != "" {
		fmt.Fprintf(&b, "Summary: %s\n", sc.Summary)
	}
	for i, r := range sc.Results {
		fmt.Fprintf(&b, "%d. %s\n%s\n%s\n", i+1, r.Title, r.Snippet, r.URL)
	}
	return b.String()
}

// schemaInstruction describes the expected JSON shape to the model.
func schemaInstruction(schema []core.FieldSpec) string {
	var b strings.Builder
	b.WriteString("Return a JSON object with these fields:\n")
	for _, f := range schema {
		fmt.Fprintf(&b, "- %q (%s", f.Name, f.Kind)
		if f.Required {
			b.WriteString(", required")
		}
		if len(f.Enum) > 0 {
			fmt.Fprintf(&b, ", one of: %s", strings.Join(f.Enum, ", "))
		}
		if f.Quality != core.QualityNone {
			fmt.Fprintf(&b, ", %s between %g and %g", f.Quality, f.Min, f.Max)
		}
		b.WriteString(")\n")
	}
	return b.String()
}
