package events

import "github.com/gridmind/gridmind/internal/core"

// Event type constants for cell events.
const (
	TypeCellStateChanged    = "cell_state_changed"
	TypeCellResultCommitted = "cell_result_committed"
	TypeColumnApplyStarted  = "column_apply_started"
	TypeColumnApplyFinished = "column_apply_finished"
	TypeColumnCancelled     = "column_cancelled"
	TypeColumnMarkedStale   = "column_marked_stale"
	TypeTemplatesReloaded   = "templates_reloaded"
)

// CellStateChangedEvent is emitted on every cell state transition.
type CellStateChangedEvent struct {
	BaseEvent
	Row   int    `json:"row"`
	Col   string `json:"col"`
	State string `json:"state"`
	Error string `json:"error,omitempty"`
}

// NewCellStateChangedEvent creates a cell state change event.
func NewCellStateChangedEvent(sheetID string, ref core.CellRef, state core.CellState, errMsg string) CellStateChangedEvent {
	return CellStateChangedEvent{
		BaseEvent: NewBaseEvent(TypeCellStateChanged, sheetID),
		Row:       ref.Row,
		Col:       string(ref.Col),
		State:     string(state),
		Error:     errMsg,
	}
}

// CellResultCommittedEvent is emitted when a structured result is written
// to a cell, whether computed, fallback-recovered, or user-authored.
type CellResultCommittedEvent struct {
	BaseEvent
	Row          int      `json:"row"`
	Col          string   `json:"col"`
	Answer       string   `json:"answer"`
	Confidence   *float64 `json:"confidence,omitempty"`
	Evidence     *float64 `json:"evidence,omitempty"`
	UsedFallback bool     `json:"used_fallback,omitempty"`
	Manual       bool     `json:"manual,omitempty"`
}

// NewCellResultCommittedEvent creates a result commit event.
func NewCellResultCommittedEvent(sheetID string, ref core.CellRef, result *core.StructuredResult) CellResultCommittedEvent {
	ev := CellResultCommittedEvent{
		BaseEvent: NewBaseEvent(TypeCellResultCommitted, sheetID),
		Row:       ref.Row,
		Col:       string(ref.Col),
	}
	if result != nil {
		ev.Answer = result.Answer
		ev.Confidence = result.Confidence
		ev.Evidence = result.Evidence
		ev.UsedFallback = result.UsedFallback
		ev.Manual = result.ManualOverride
	}
	return ev
}

// ColumnApplyStartedEvent is emitted when a column apply batch begins.
type ColumnApplyStartedEvent struct {
	BaseEvent
	Col      string `json:"col"`
	JobCount int    `json:"job_count"`
}

// NewColumnApplyStartedEvent creates a column apply start event.
func NewColumnApplyStartedEvent(sheetID string, col core.ColumnID, jobCount int) ColumnApplyStartedEvent {
	return ColumnApplyStartedEvent{
		BaseEvent: NewBaseEvent(TypeColumnApplyStarted, sheetID),
		Col:       string(col),
		JobCount:  jobCount,
	}
}

// ColumnApplyFinishedEvent is emitted when every job of a batch reached a
// terminal state or was cancelled.
type ColumnApplyFinishedEvent struct {
	BaseEvent
	Col       string `json:"col"`
	Succeeded int    `json:"succeeded"`
	Failed    int    `json:"failed"`
	Cancelled int    `json:"cancelled"`
}

// NewColumnApplyFinishedEvent creates a column apply finish event.
func NewColumnApplyFinishedEvent(sheetID string, col core.ColumnID, succeeded, failed, cancelled int) ColumnApplyFinishedEvent {
	return ColumnApplyFinishedEvent{
		BaseEvent: NewBaseEvent(TypeColumnApplyFinished, sheetID),
		Col:       string(col),
		Succeeded: succeeded,
		Failed:    failed,
		Cancelled: cancelled,
	}
}

// ColumnCancelledEvent is emitted when outstanding jobs for a column are
// cancelled.
type ColumnCancelledEvent struct {
	BaseEvent
	Col string `json:"col"`
}

// NewColumnCancelledEvent creates a column cancel event.
func NewColumnCancelledEvent(sheetID string, col core.ColumnID) ColumnCancelledEvent {
	return ColumnCancelledEvent{
		BaseEvent: NewBaseEvent(TypeColumnCancelled, sheetID),
		Col:       string(col),
	}
}

// ColumnMarkedStaleEvent is emitted when an instruction change marks a
// column's computed results stale.
type ColumnMarkedStaleEvent struct {
	BaseEvent
	Col       string `json:"col"`
	CellCount int    `json:"cell_count"`
}

// NewColumnMarkedStaleEvent creates a staleness event.
func NewColumnMarkedStaleEvent(sheetID string, col core.ColumnID, cellCount int) ColumnMarkedStaleEvent {
	return ColumnMarkedStaleEvent{
		BaseEvent: NewBaseEvent(TypeColumnMarkedStale, sheetID),
		Col:       string(col),
		CellCount: cellCount,
	}
}

// TemplatesReloadedEvent is emitted when the template pack directory is
// reloaded.
type TemplatesReloadedEvent struct {
	BaseEvent
	Count int `json:"count"`
}

// NewTemplatesReloadedEvent creates a templates reload event.
func NewTemplatesReloadedEvent(count int) TemplatesReloadedEvent {
	return TemplatesReloadedEvent{
		BaseEvent: NewBaseEvent(TypeTemplatesReloaded, ""),
		Count:     count,
	}
}
