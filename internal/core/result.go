package core

// StructuredResult is the parsed output for one AI cell. When schema-strict
// parsing fails, the fallback path still fills Answer from the raw response
// and sets UsedFallback; a parse failure never wipes the cell.
type StructuredResult struct {
	Answer     string         `json:"answer"`
	Fields     map[string]any `json:"fields,omitempty"`
	Confidence *float64       `json:"confidence,omitempty"`
	Evidence   *float64       `json:"evidence,omitempty"`
	// UsedFallback marks results recovered via lenient extraction.
	UsedFallback bool `json:"used_fallback,omitempty"`
	// ManualOverride marks user-authored results; column applies skip these
	// unless explicitly forced.
	ManualOverride bool `json:"manual_override,omitempty"`
	// AugmentationNote records why web search context was unavailable.
	AugmentationNote string `json:"augmentation_note,omitempty"`
	// Raw preserves the unparsed model output for inspection.
	Raw string `json:"raw,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *StructuredResult) Clone() *StructuredResult {
	out := *r
	if r.Fields != nil {
		out.Fields = make(map[string]any, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	if r.Confidence != nil {
		out.Confidence = Float64Ptr(*r.Confidence)
	}
	if r.Evidence != nil {
		out.Evidence = Float64Ptr(*r.Evidence)
	}
	return &out
}

// Clamp bounds confidence and evidence to [lo, hi]. Committed results never
// carry out-of-range quality values.
func (r *StructuredResult) Clamp(lo, hi float64) {
	r.Confidence = clampPtr(r.Confidence, lo, hi)
	r.Evidence = clampPtr(r.Evidence, lo, hi)
}

func clampPtr(v *float64, lo, hi float64) *float64 {
	if v == nil {
		return nil
	}
	x := *v
	if x < lo {
		x = lo
	}
	if x > hi {
		x = hi
	}
	return &x
}

// Float64Ptr returns a pointer to v.
func Float64Ptr(v float64) *float64 { return &v }

// ExportCell is the read-only view of one cell for the export collaborator.
// The engine performs no file I/O itself.
type ExportCell struct {
	Row          int      `json:"row"`
	Col          ColumnID `json:"col"`
	Value        string   `json:"value"`
	Answer       string   `json:"answer,omitempty"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Evidence     *float64 `json:"evidence,omitempty"`
	UsedFallback bool     `json:"used_fallback,omitempty"`
	Manual       bool     `json:"manual,omitempty"`
	Stale        bool     `json:"stale,omitempty"`
	State        string   `json:"state"`
}

// ExportView renders a cell into its export form.
func ExportView(c *Cell) ExportCell {
	out := ExportCell{
		Row:   c.Ref.Row,
		Col:   c.Ref.Col,
		Value: c.Raw,
		Stale: c.Stale,
		State: string(c.State),
	}
	if c.Result != nil {
		out.Answer = c.Result.Answer
		out.Confidence = c.Result.Confidence
		out.Evidence = c.Result.Evidence
		out.UsedFallback = c.Result.UsedFallback
		out.Manual = c.Result.ManualOverride
	}
	return out
}
