package track

import (
	"testing"
	"time"

	"github.com/gridmind/gridmind/internal/core"
	"github.com/gridmind/gridmind/internal/events"
)

func ref(row int) core.CellRef {
	return core.CellRef{Row: row, Col: "B"}
}

func drain(t *testing.T, ch <-chan events.Event, want int) []events.Event {
	t.Helper()
	out := make([]events.Event, 0, want)
	timeout := time.After(time.Second)
	for len(out) < want {
		select {
		case e := <-ch:
			out = append(out, e)
		case <-timeout:
			t.Fatalf("timed out waiting for events: got %d of %d", len(out), want)
		}
	}
	return out
}

func TestTracker_TransitionNotifies(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Close()
	ch := bus.Subscribe(events.TypeCellStateChanged)

	tr := New("sheet-1", bus)
	tr.Ensure(ref(0), "hello")

	if err := tr.Transition(ref(0), core.CellStateQueued); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Transition(ref(0), core.CellStateInFlight); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	evs := drain(t, ch, 2)
	first, ok := evs[0].(events.CellStateChangedEvent)
	if !ok {
		t.Fatalf("unexpected event type %T", evs[0])
	}
	if first.State != string(core.CellStateQueued) || first.SheetID() != "sheet-1" {
		t.Fatalf("unexpected event %+v", first)
	}
}

func TestTracker_IllegalTransitionNoEvent(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Close()
	ch := bus.Subscribe()

	tr := New("sheet-1", bus)
	tr.Ensure(ref(0), "v")

	err := tr.Transition(ref(0), core.CellStateSucceeded)
	if !core.IsCategory(err, core.ErrCatState) {
		t.Fatalf("expected state error, got %v", err)
	}

	select {
	case e := <-ch:
		t.Fatalf("illegal transition must not publish, got %v", e.EventType())
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTracker_CommitResultPublishesBoth(t *testing.T) {
	bus := events.NewBus(10)
	defer bus.Close()
	ch := bus.Subscribe()

	tr := New("sheet-1", bus)
	tr.Ensure(ref(0), "v")
	if err := tr.Transition(ref(0), core.CellStateQueued); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := tr.Transition(ref(0), core.CellStateInFlight); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := tr.CommitResult(ref(0), &core.StructuredResult{Answer: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	evs := drain(t, ch, 4)
	last, ok := evs[3].(events.CellResultCommittedEvent)
	if !ok {
		t.Fatalf("expected result committed event, got %T", evs[3])
	}
	if last.Answer != "a" {
		t.Fatalf("unexpected result event %+v", last)
	}
	if tr.State(ref(0)) != core.CellStateSucceeded {
		t.Fatalf("expected succeeded state")
	}
}

func TestTracker_CommitFailurePreservesRaw(t *testing.T) {
	tr := New("sheet-1", nil)
	tr.Ensure(ref(0), "v")
	mustAdvance(t, tr, ref(0), core.CellStateQueued, core.CellStateInFlight)

	if err := tr.CommitFailure(ref(0), "retries exhausted", "partial output"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	c := tr.Get(ref(0))
	if c.State != core.CellStateFailed || c.Error != "retries exhausted" {
		t.Fatalf("unexpected cell %+v", c)
	}
	if c.Result == nil || c.Result.Raw != "partial output" {
		t.Fatalf("raw response must be preserved for inspection")
	}
}

func TestTracker_RevertToIdle(t *testing.T) {
	tr := New("sheet-1", nil)
	tr.Ensure(ref(0), "v")
	mustAdvance(t, tr, ref(0), core.CellStateQueued, core.CellStateInFlight)

	tr.Revert(ref(0))
	if tr.State(ref(0)) != core.CellStateIdle {
		t.Fatalf("expected idle after revert, got %s", tr.State(ref(0)))
	}
}

func TestTracker_MarkColumnStale(t *testing.T) {
	tr := New("sheet-1", nil)
	tr.Ensure(ref(0), "a")
	tr.Ensure(ref(1), "b")
	tr.Ensure(core.CellRef{Row: 0, Col: "C"}, "other")

	mustAdvance(t, tr, ref(0), core.CellStateQueued, core.CellStateInFlight)
	if err := tr.CommitResult(ref(0), &core.StructuredResult{Answer: "x"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	marked := tr.MarkColumnStale("B")
	if marked != 1 {
		t.Fatalf("expected 1 marked cell, got %d", marked)
	}
	if !tr.Get(ref(0)).Stale {
		t.Fatalf("terminal cell must be stale")
	}
	if tr.Get(ref(1)).Stale {
		t.Fatalf("idle cell must not be stale")
	}
	if tr.Get(core.CellRef{Row: 0, Col: "C"}).Stale {
		t.Fatalf("other column must be untouched")
	}
}

func TestTracker_OverrideAlwaysLegal(t *testing.T) {
	tr := New("sheet-1", nil)
	tr.Ensure(ref(0), "v")
	mustAdvance(t, tr, ref(0), core.CellStateQueued, core.CellStateInFlight)

	tr.Override(ref(0), "manual value")
	c := tr.Get(ref(0))
	if c.State != core.CellStateSucceeded {
		t.Fatalf("expected succeeded, got %s", c.State)
	}
	if !c.Result.ManualOverride || c.Result.UsedFallback {
		t.Fatalf("unexpected result flags %+v", c.Result)
	}
}

func TestTracker_ColumnSortedByRow(t *testing.T) {
	tr := New("sheet-1", nil)
	tr.Ensure(ref(3), "c")
	tr.Ensure(ref(1), "a")
	tr.Ensure(ref(2), "b")

	cells := tr.Column("B")
	if len(cells) != 3 {
		t.Fatalf("expected 3 cells, got %d", len(cells))
	}
	for i, c := range cells {
		if c.Ref.Row != i+1 {
			t.Fatalf("cells not sorted by row: %+v", cells)
		}
	}
}

func TestTracker_SnapshotNormalizesTransientStates(t *testing.T) {
	tr := New("sheet-1", nil)
	tr.Ensure(ref(0), "queued")
	mustAdvance(t, tr, ref(0), core.CellStateQueued)
	tr.Ensure(ref(1), "in flight")
	mustAdvance(t, tr, ref(1), core.CellStateQueued, core.CellStateInFlight)
	tr.Ensure(ref(2), "done")
	mustAdvance(t, tr, ref(2), core.CellStateQueued, core.CellStateInFlight)
	if err := tr.CommitResult(ref(2), &core.StructuredResult{Answer: "a"}); err != nil {
		t.Fatalf("CommitResult: %v", err)
	}

	snap := tr.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("expected 3 cells, got %d", len(snap))
	}
	for _, c := range snap[:2] {
		if c.State != core.CellStateIdle {
			t.Fatalf("cell %s: transient state must collapse to idle, got %s", c.Ref, c.State)
		}
	}
	if snap[2].State != core.CellStateSucceeded {
		t.Fatalf("terminal state must survive, got %s", snap[2].State)
	}

	// Live cells are untouched; a restored snapshot can re-enter the queue.
	if tr.State(ref(1)) != core.CellStateInFlight {
		t.Fatalf("live cell mutated by snapshot: %s", tr.State(ref(1)))
	}
	if !snap[0].State.CanTransition(core.CellStateQueued) {
		t.Fatal("snapshot cell cannot be regenerated")
	}
}

func TestTracker_SnapshotIsDeepCopy(t *testing.T) {
	tr := New("sheet-1", nil)
	tr.Ensure(ref(0), "v")
	mustAdvance(t, tr, ref(0), core.CellStateQueued, core.CellStateInFlight)
	if err := tr.CommitResult(ref(0), &core.StructuredResult{
		Answer:     "original",
		Fields:     map[string]any{"k": "v"},
		Confidence: core.Float64Ptr(0.9),
	}); err != nil {
		t.Fatalf("CommitResult: %v", err)
	}

	snap := tr.Snapshot()
	snap[0].Result.Answer = "mutated"
	snap[0].Result.Fields["k"] = "mutated"
	*snap[0].Result.Confidence = 0

	live := tr.Get(ref(0)).Result
	if live.Answer != "original" || live.Fields["k"] != "v" || *live.Confidence != 0.9 {
		t.Fatalf("snapshot shares memory with the live cell: %+v", live)
	}
}

func mustAdvance(t *testing.T, tr *Tracker, ref core.CellRef, states ...core.CellState) {
	t.Helper()
	for _, s := range states {
		if err := tr.Transition(ref, s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}
