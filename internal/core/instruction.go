package core

import "strings"

// TemplateID identifies a registered template contract.
type TemplateID string

// ColumnInstruction attaches a natural-language directive to a column. At
// most one instruction is active per column; replacing it bumps Revision and
// marks previously computed results in the column stale.
type ColumnInstruction struct {
	Column       ColumnID          `json:"column"`
	TemplateID   TemplateID        `json:"template_id"`
	Instruction  string            `json:"instruction"`
	SourceColumn ColumnID          `json:"source_column"`
	Params       map[string]string `json:"params,omitempty"`
	Revision     int               `json:"revision"`
}

// Validate checks the instruction for structural problems.
func (ci *ColumnInstruction) Validate() error {
	if strings.TrimSpace(ci.Instruction) == "" {
		return ErrValidation(CodeEmptyInstruction, "instruction body is empty")
	}
	if len(ci.Instruction) > MaxInstructionLength {
		return ErrValidation(CodeInstructionTooLong, "instruction body exceeds maximum length")
	}
	if ci.TemplateID == "" {
		return ErrValidation(CodeUnknownTemplate, "instruction has no template")
	}
	if ci.SourceColumn == "" {
		return ErrValidation(CodeEmptySource, "instruction has no source column")
	}
	return nil
}

// Param returns a template parameter, or the given default when unset.
func (ci *ColumnInstruction) Param(key, def string) string {
	if v, ok := ci.Params[key]; ok && v != "" {
		return v
	}
	return def
}

// Clone returns a deep copy. Jobs snapshot the instruction at dispatch time
// so a concurrent instruction change cannot race an in-flight row.
func (ci *ColumnInstruction) Clone() ColumnInstruction {
	out := *ci
	if ci.Params != nil {
		out.Params = make(map[string]string, len(ci.Params))
		for k, v := range ci.Params {
			out.Params[k] = v
		}
	}
	return out
}
