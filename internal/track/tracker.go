// Package track owns the per-cell processing state and notifies subscribers
// on every transition. The presentation layer consumes its events to drive
// progress indicators; it never mutates state directly.
package track

import (
	"sort"
	"sync"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/events"
)

// Tracker holds the state machine for every AI cell in one sheet and
// publishes transition events. All state changes go through the orchestrator;
// the tracker enforces legality.
type Tracker struct {
	mu      sync.RWMutex
	sheetID string
	cells   map[core.CellRef]*core.Cell
	bus     *events.Bus
}

// New creates a tracker for a sheet. bus may be nil in tests.
func New(sheetID string, bus *events.Bus) *Tracker {
	return &Tracker{
		sheetID: sheetID,
		cells:   make(map[core.CellRef]*core.Cell),
		bus:     bus,
	}
}

// Ensure returns the tracked cell, creating an idle one with the raw value
// on first sight.
func (t *Tracker) Ensure(ref core.CellRef, raw string) *core.Cell {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.cells[ref]; ok {
		return c
	}
	c := core.NewCell(ref, raw)
	t.cells[ref] = c
	return c
}

// Get returns the tracked cell, or nil when the cell was never tracked.
func (t *Tracker) Get(ref core.CellRef) *core.Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.cells[ref]
}

// State reports the current state; untracked cells are Idle.
func (t *Tracker) State(ref core.CellRef) core.CellState {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if c, ok := t.cells[ref]; ok {
		return c.State
	}
	return core.CellStateIdle
}

// Transition moves a cell to the next state and notifies subscribers.
// Illegal transitions are caller contract violations and return a state
// error without publishing.
func (t *Tracker) Transition(ref core.CellRef, next core.CellState) error {
	t.mu.Lock()
	c, ok := t.cells[ref]
	if !ok {
		t.mu.Unlock()
		return core.ErrState(core.CodeInvalidTransition, "cell "+ref.String()+" is not tracked")
	}
	if err := c.Transition(next); err != nil {
		t.mu.Unlock()
		return err
	}
	errMsg := c.Error
	t.mu.Unlock()

	t.publish(events.NewCellStateChangedEvent(t.sheetID, ref, next, errMsg))
	return nil
}

// CommitResult stores a structured result, marks the cell Succeeded, and
// notifies subscribers of both the transition and the committed result.
func (t *Tracker) CommitResult(ref core.CellRef, result *core.StructuredResult) error {
	t.mu.Lock()
	c, ok := t.cells[ref]
	if !ok {
		t.mu.Unlock()
		return core.ErrState(core.CodeInvalidTransition, "cell "+ref.String()+" is not tracked")
	}
	if err := c.CommitResult(result); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.publish(events.NewCellStateChangedEvent(t.sheetID, ref, core.CellStateSucceeded, ""))
	t.publish(events.NewCellResultCommittedEvent(t.sheetID, ref, result))
	return nil
}

// CommitFailure marks the cell Failed with a display reason and notifies
// subscribers. A raw response, when present, is preserved on the cell.
func (t *Tracker) CommitFailure(ref core.CellRef, reason, raw string) error {
	t.mu.Lock()
	c, ok := t.cells[ref]
	if !ok {
		t.mu.Unlock()
		return core.ErrState(core.CodeInvalidTransition, "cell "+ref.String()+" is not tracked")
	}
	if err := c.CommitFailure(reason, raw); err != nil {
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.publish(events.NewCellStateChangedEvent(t.sheetID, ref, core.CellStateFailed, reason))
	return nil
}

// Override replaces a cell's value with a user-authored result and notifies
// subscribers. Override is always legal: users may edit any cell.
func (t *Tracker) Override(ref core.CellRef, value string) {
	t.mu.Lock()
	c, ok := t.cells[ref]
	if !ok {
		c = core.NewCell(ref, value)
		t.cells[ref] = c
	}
	c.Override(value)
	result := c.Result
	t.mu.Unlock()

	t.publish(events.NewCellStateChangedEvent(t.sheetID, ref, core.CellStateSucceeded, ""))
	t.publish(events.NewCellResultCommittedEvent(t.sheetID, ref, result))
}

// Revert returns a cell to Idle, discarding any result. Used when a queued
// or in-flight job is cancelled before commit.
func (t *Tracker) Revert(ref core.CellRef) {
	t.mu.Lock()
	c, ok := t.cells[ref]
	if !ok {
		t.mu.Unlock()
		return
	}
	c.ClearResult()
	t.mu.Unlock()

	t.publish(events.NewCellStateChangedEvent(t.sheetID, ref, core.CellStateIdle, ""))
}

// MarkColumnStale flags every terminal cell in the column and reports how
// many were marked.
func (t *Tracker) MarkColumnStale(col core.ColumnID) int {
	t.mu.Lock()
	var marked int
	for ref, c := range t.cells {
		if ref.Col != col {
			continue
		}
		wasStale := c.Stale
		c.MarkStale()
		if c.Stale && !wasStale {
			marked++
		}
	}
	t.mu.Unlock()

	if marked > 0 {
		t.publish(events.NewColumnMarkedStaleEvent(t.sheetID, col, marked))
	}
	return marked
}

// Column returns the tracked cells in one column, ordered by row.
func (t *Tracker) Column(col core.ColumnID) []*core.Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []*core.Cell
	for ref, c := range t.cells {
		if ref.Col == col {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ref.Row < out[j].Ref.Row })
	return out
}

// Snapshot returns deep copies of every tracked cell for persistence,
// ordered by column then row. Queued and InFlight describe live jobs and do
// not survive a save/restore cycle; they collapse to Idle in the snapshot.
func (t *Tracker) Snapshot() []*core.Cell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*core.Cell, 0, len(t.cells))
	for _, c := range t.cells {
		cp := c.Clone()
		if !cp.State.Terminal() {
			cp.State = core.CellStateIdle
		}
		out = append(out, cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Ref.Col != out[j].Ref.Col {
			return out[i].Ref.Col < out[j].Ref.Col
		}
		return out[i].Ref.Row < out[j].Ref.Row
	})
	return out
}

// ExportViews renders every tracked cell into its read-only export form.
func (t *Tracker) ExportViews() []core.ExportCell {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]core.ExportCell, 0, len(t.cells))
	for _, c := range t.cells {
		out = append(out, core.ExportView(c))
	}
	return out
}

func (t *Tracker) publish(event events.Event) {
	if t.bus != nil {
		t.bus.Publish(event)
	}
}
