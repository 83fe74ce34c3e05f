package core

import "testing"

func TestCell_StateTransitions(t *testing.T) {
	cell := NewCell(CellRef{Row: 0, Col: "B"}, "hello")

	if err := cell.Transition(CellStateInFlight); err == nil {
		t.Fatalf("expected error skipping queued state")
	}

	if err := cell.Transition(CellStateQueued); err != nil {
		t.Fatalf("unexpected error queueing cell: %v", err)
	}
	if cell.State != CellStateQueued {
		t.Fatalf("expected state queued, got %s", cell.State)
	}

	if err := cell.Transition(CellStateInFlight); err != nil {
		t.Fatalf("unexpected error dispatching cell: %v", err)
	}

	if err := cell.CommitResult(&StructuredResult{Answer: "HELLO"}); err != nil {
		t.Fatalf("unexpected error committing result: %v", err)
	}
	if cell.State != CellStateSucceeded {
		t.Fatalf("expected state succeeded, got %s", cell.State)
	}
	if cell.ProcessedAt == nil {
		t.Fatalf("expected ProcessedAt to be set")
	}
}

func TestCell_RegenerationFromTerminal(t *testing.T) {
	cell := NewCell(CellRef{Row: 3, Col: "C"}, "text")
	mustTransition(t, cell, CellStateQueued, CellStateInFlight)
	if err := cell.CommitFailure("timeout", ""); err != nil {
		t.Fatalf("unexpected error failing cell: %v", err)
	}

	// Failed -> Queued is regeneration, which is legal.
	if err := cell.Transition(CellStateQueued); err != nil {
		t.Fatalf("unexpected error regenerating failed cell: %v", err)
	}

	mustTransition(t, cell, CellStateInFlight)
	if err := cell.CommitResult(&StructuredResult{Answer: "ok"}); err != nil {
		t.Fatalf("unexpected error committing: %v", err)
	}

	// Succeeded -> Queued is also regeneration.
	if err := cell.Transition(CellStateQueued); err != nil {
		t.Fatalf("unexpected error regenerating succeeded cell: %v", err)
	}
}

func TestCell_CancellationRevertsToIdle(t *testing.T) {
	cell := NewCell(CellRef{Row: 1, Col: "A"}, "src")
	mustTransition(t, cell, CellStateQueued)

	if err := cell.Transition(CellStateIdle); err != nil {
		t.Fatalf("unexpected error reverting queued cell: %v", err)
	}
	if cell.State != CellStateIdle {
		t.Fatalf("expected idle after cancellation, got %s", cell.State)
	}
}

func TestCell_IllegalTransitions(t *testing.T) {
	cases := []struct {
		from CellState
		to   CellState
	}{
		{CellStateIdle, CellStateInFlight},
		{CellStateIdle, CellStateSucceeded},
		{CellStateQueued, CellStateSucceeded},
		{CellStateSucceeded, CellStateInFlight},
		{CellStateFailed, CellStateSucceeded},
		{CellStateSucceeded, CellStateFailed},
	}
	for _, tc := range cases {
		cell := NewCell(CellRef{Row: 0, Col: "A"}, "x")
		cell.State = tc.from
		if err := cell.Transition(tc.to); err == nil {
			t.Fatalf("expected error for %s -> %s", tc.from, tc.to)
		} else if !IsCategory(err, ErrCatState) {
			t.Fatalf("expected state error for %s -> %s, got %v", tc.from, tc.to, err)
		}
	}
}

func TestCell_Override(t *testing.T) {
	cell := NewCell(CellRef{Row: 2, Col: "D"}, "raw")
	mustTransition(t, cell, CellStateQueued, CellStateInFlight)
	if err := cell.CommitResult(&StructuredResult{Answer: "machine", UsedFallback: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cell.Override("human answer")
	if cell.State != CellStateSucceeded {
		t.Fatalf("expected succeeded after override, got %s", cell.State)
	}
	if !cell.ManualOverride() {
		t.Fatalf("expected manual override flag")
	}
	if cell.Result.UsedFallback {
		t.Fatalf("override must clear fallback flag")
	}
	if cell.Result.Answer != "human answer" {
		t.Fatalf("unexpected answer %q", cell.Result.Answer)
	}
}

func TestCell_MarkStale(t *testing.T) {
	cell := NewCell(CellRef{Row: 0, Col: "B"}, "v")
	cell.MarkStale()
	if cell.Stale {
		t.Fatalf("idle cell must not become stale")
	}

	mustTransition(t, cell, CellStateQueued, CellStateInFlight)
	if err := cell.CommitResult(&StructuredResult{Answer: "a"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cell.MarkStale()
	if !cell.Stale {
		t.Fatalf("expected stale after instruction change")
	}
	if cell.Result == nil {
		t.Fatalf("stale marking must retain the result")
	}

	// Regeneration clears staleness on the next commit.
	mustTransition(t, cell, CellStateQueued, CellStateInFlight)
	if err := cell.CommitResult(&StructuredResult{Answer: "b"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cell.Stale {
		t.Fatalf("commit must clear staleness")
	}
}

func TestCell_CommitFailurePreservesRaw(t *testing.T) {
	cell := NewCell(CellRef{Row: 5, Col: "E"}, "src")
	mustTransition(t, cell, CellStateQueued, CellStateInFlight)
	if err := cell.CommitFailure("parse failed", "garbled model output"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cell.Result == nil || cell.Result.Raw != "garbled model output" {
		t.Fatalf("expected raw response preserved on failure")
	}
	if cell.Error == "" {
		t.Fatalf("expected failure reason")
	}
}

func mustTransition(t *testing.T, c *Cell, states ...CellState) {
	t.Helper()
	for _, s := range states {
		if err := c.Transition(s); err != nil {
			t.Fatalf("transition to %s: %v", s, err)
		}
	}
}
