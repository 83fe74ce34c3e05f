package core

import (
	"fmt"
	"time"
)

// ColumnID identifies a column within a sheet.
type ColumnID string

// CellRef identifies a cell by row index and column.
type CellRef struct {
	Row int      `json:"row"`
	Col ColumnID `json:"col"`
}

// String returns a compact cell identifier, e.g. "B:12".
func (r CellRef) String() string {
	return fmt.Sprintf("%s:%d", r.Col, r.Row)
}

// CellState represents the processing state of an AI cell.
type CellState string

const (
	CellStateIdle      CellState = "idle"
	CellStateQueued    CellState = "queued"
	CellStateInFlight  CellState = "in_flight"
	CellStateSucceeded CellState = "succeeded"
	CellStateFailed    CellState = "failed"
)

// Terminal reports whether the state is a terminal processing state.
func (s CellState) Terminal() bool {
	return s == CellStateSucceeded || s == CellStateFailed
}

// legalTransitions is the transition table for cell states. Queued cells may
// revert to Idle on cancellation; terminal cells re-enter Queued only via
// explicit regeneration.
var legalTransitions = map[CellState][]CellState{
	CellStateIdle:      {CellStateQueued},
	CellStateQueued:    {CellStateInFlight, CellStateIdle},
	CellStateInFlight:  {CellStateSucceeded, CellStateFailed, CellStateIdle},
	CellStateSucceeded: {CellStateQueued},
	CellStateFailed:    {CellStateQueued},
}

// CanTransition reports whether moving from s to next is legal.
func (s CellState) CanTransition(next CellState) bool {
	for _, allowed := range legalTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Cell holds one grid cell: its raw value, an optional structured result,
// and its processing state. A cell in a column with an active instruction is
// an AI cell; others are plain data cells.
type Cell struct {
	Ref    CellRef           `json:"ref"`
	Raw    string            `json:"raw"`
	Result *StructuredResult `json:"result,omitempty"`
	State  CellState         `json:"state"`
	// Stale marks a retained result whose instruction changed since it was
	// computed. Stale cells are not auto-recomputed.
	Stale bool `json:"stale,omitempty"`
	// Error carries the failure reason for display when State is Failed.
	Error       string     `json:"error,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`
}

// NewCell creates an idle cell with a raw value.
func NewCell(ref CellRef, raw string) *Cell {
	return &Cell{
		Ref:   ref,
		Raw:   raw,
		State: CellStateIdle,
	}
}

// Clone returns a deep copy of the cell. Mutating the copy, including its
// result and timestamps, leaves the original untouched.
func (c *Cell) Clone() *Cell {
	out := *c
	if c.Result != nil {
		out.Result = c.Result.Clone()
	}
	if c.UpdatedAt != nil {
		ts := *c.UpdatedAt
		out.UpdatedAt = &ts
	}
	if c.ProcessedAt != nil {
		ts := *c.ProcessedAt
		out.ProcessedAt = &ts
	}
	return &out
}

// ManualOverride reports whether the cell carries a user-authored result.
func (c *Cell) ManualOverride() bool {
	return c.Result != nil && c.Result.ManualOverride
}

// Transition moves the cell to the next state, enforcing the state machine.
func (c *Cell) Transition(next CellState) error {
	if !c.State.CanTransition(next) {
		return ErrState(CodeInvalidTransition,
			fmt.Sprintf("cell %s: illegal transition %s -> %s", c.Ref, c.State, next))
	}
	c.State = next
	now := time.Now()
	c.UpdatedAt = &now
	return nil
}

// CommitResult stores a structured result and marks the cell Succeeded.
func (c *Cell) CommitResult(result *StructuredResult) error {
	if err := c.Transition(CellStateSucceeded); err != nil {
		return err
	}
	c.Result = result
	c.Error = ""
	c.Stale = false
	now := time.Now()
	c.ProcessedAt = &now
	return nil
}

// CommitFailure marks the cell Failed with a display reason. A raw response,
// if any, is preserved for user inspection and manual edit.
func (c *Cell) CommitFailure(reason string, raw string) error {
	if err := c.Transition(CellStateFailed); err != nil {
		return err
	}
	c.Error = reason
	if raw != "" {
		c.Result = &StructuredResult{Raw: raw, UsedFallback: true}
	}
	c.Stale = false
	return nil
}

// Override replaces the cell's result with a user-authored value and marks
// it Succeeded. No further processing touches the cell unless forced.
func (c *Cell) Override(value string) {
	c.Raw = value
	c.Result = &StructuredResult{
		Answer:         value,
		ManualOverride: true,
	}
	c.State = CellStateSucceeded
	c.Error = ""
	c.Stale = false
	now := time.Now()
	c.UpdatedAt = &now
}

// ClearResult reverts the cell to an editable plain cell.
func (c *Cell) ClearResult() {
	c.Result = nil
	c.State = CellStateIdle
	c.Error = ""
	c.Stale = false
	now := time.Now()
	c.UpdatedAt = &now
}

// MarkStale flags a terminal cell as outdated after its instruction changed.
// The result or failure reason stays visible until the column is re-applied.
func (c *Cell) MarkStale() {
	if c.State.Terminal() {
		c.Stale = true
	}
}
