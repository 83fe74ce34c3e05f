package core

import (
	"context"
	"time"
)

// =============================================================================
// Template Contract Port
// =============================================================================

// FieldKind is the declared type of a schema field.
type FieldKind string

const (
	FieldKindString FieldKind = "string"
	FieldKindNumber FieldKind = "number"
	FieldKindBool   FieldKind = "bool"
	FieldKindList   FieldKind = "list"
)

// FieldSpec describes one expected field in a template's structured response.
type FieldSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Required bool      `json:"required" yaml:"required"`
	// Primary marks the field used as the cell's answer.
	Primary bool `json:"primary,omitempty" yaml:"primary,omitempty"`
	// Quality marks confidence/evidence fields that feed quality indicators.
	Quality QualityRole `json:"quality,omitempty" yaml:"quality,omitempty"`
	// Enum restricts string values when non-empty.
	Enum []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	// Min and Max bound numeric quality values.
	Min float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

// QualityRole names which quality indicator a field contributes to.
type QualityRole string

const (
	QualityNone       QualityRole = ""
	QualityConfidence QualityRole = "confidence"
	QualityEvidence   QualityRole = "evidence"
)

// PromptInput carries everything a template needs to build a prompt.
type PromptInput struct {
	Source      string
	Instruction string
	Params      map[string]string
	Search      *SearchContext
}

// PromptPayload is the prompt handed to the completion dispatcher.
type PromptPayload struct {
	System string
	User   string
	// Temperature and MaxTokens override dispatcher defaults when non-zero.
	Temperature float64
	MaxTokens   int
}

// TemplateContract declares prompt construction and the expected response
// schema for one instruction kind. Contracts are data: registering a new one
// requires no orchestrator change. Implementations must be stateless.
type TemplateContract interface {
	// ID returns the template identifier.
	ID() TemplateID

	// Describe returns a short human-readable summary.
	Describe() string

	// WantsSearch reports whether the template requests web augmentation.
	WantsSearch() bool

	// BuildPrompt maps source text, instruction parameters, and optional
	// search context to a prompt payload.
	BuildPrompt(input PromptInput) PromptPayload

	// Schema describes the expected structured fields in a response.
	Schema() []FieldSpec
}

// =============================================================================
// Completion Port
// =============================================================================

// CompletionRequest is one call to the external model service.
type CompletionRequest struct {
	Payload PromptPayload
	Model   string
	// APIKey overrides the configured credential when set (per-request keys
	// arrive via HTTP headers).
	APIKey string
}

// CompletionResponse is the raw model output plus usage accounting.
type CompletionResponse struct {
	Text         string
	Model        string
	TokensIn     int
	TokensOut    int
	FinishReason string
	Duration     time.Duration
}

// CompletionClient is the sole network-facing completion component. Failures
// surface as DomainError categories: timeout, rate_limit, auth, service,
// malformed_request.
type CompletionClient interface {
	// Name returns the provider name (e.g. "openai").
	Name() string

	// Complete sends one completion request and blocks for the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// =============================================================================
// Search Port
// =============================================================================

// SearchResult is one web search hit.
type SearchResult struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
	URL     string `json:"url"`
}

// SearchContext is the folded search output passed to templates.
type SearchContext struct {
	Query   string         `json:"query"`
	Summary string         `json:"summary,omitempty"`
	Results []SearchResult `json:"results,omitempty"`
}

// SearchClient issues a query to an external search service. Failure is
// surfaced as a search DomainError and never fails the cell.
type SearchClient interface {
	Search(ctx context.Context, query string, maxResults int, apiKey string) (*SearchContext, error)
}

// =============================================================================
// Sheet Store Port
// =============================================================================

// SheetSnapshot is a persisted grid: row-major raw values plus cell results.
type SheetSnapshot struct {
	ID           string                          `json:"id"`
	Rows         [][]string                      `json:"rows"`
	Columns      []ColumnID                      `json:"columns"`
	Cells        []*Cell                         `json:"cells,omitempty"`
	Instructions map[ColumnID]*ColumnInstruction `json:"instructions,omitempty"`
	UpdatedAt    time.Time                       `json:"updated_at"`
}

// SheetStore persists sheet snapshots between sessions. Processing state is
// transient and never stored.
type SheetStore interface {
	// Save persists a snapshot, replacing any previous one with the same ID.
	Save(ctx context.Context, snap *SheetSnapshot) error

	// Load retrieves a snapshot. Returns nil and no error when absent.
	Load(ctx context.Context, id string) (*SheetSnapshot, error)

	// List returns all stored sheet IDs.
	List(ctx context.Context) ([]string, error)

	// Delete removes a snapshot.
	Delete(ctx context.Context, id string) error

	// Close releases store resources.
	Close() error
}
