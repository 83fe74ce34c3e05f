package core

import "testing"

func TestStructuredResult_Clamp(t *testing.T) {
	r := &StructuredResult{
		Answer:     "positive",
		Confidence: Float64Ptr(1.7),
		Evidence:   Float64Ptr(-0.3),
	}
	r.Clamp(0, 1)

	if *r.Confidence != 1 {
		t.Fatalf("expected confidence clamped to 1, got %v", *r.Confidence)
	}
	if *r.Evidence != 0 {
		t.Fatalf("expected evidence clamped to 0, got %v", *r.Evidence)
	}

	// Nil quality values stay nil.
	r2 := &StructuredResult{Answer: "x"}
	r2.Clamp(0, 1)
	if r2.Confidence != nil || r2.Evidence != nil {
		t.Fatalf("expected nil quality values untouched")
	}
}

func TestExportView(t *testing.T) {
	cell := NewCell(CellRef{Row: 4, Col: "B"}, "I loved this product!")
	mustTransition(t, cell, CellStateQueued, CellStateInFlight)
	if err := cell.CommitResult(&StructuredResult{
		Answer:     "positive",
		Confidence: Float64Ptr(0.92),
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cell.MarkStale()

	view := ExportView(cell)
	if view.Row != 4 || view.Col != "B" {
		t.Fatalf("unexpected ref %d/%s", view.Row, view.Col)
	}
	if view.Value != "I loved this product!" {
		t.Fatalf("unexpected value %q", view.Value)
	}
	if view.Answer != "positive" || view.Confidence == nil || *view.Confidence != 0.92 {
		t.Fatalf("unexpected answer/confidence")
	}
	if !view.Stale {
		t.Fatalf("expected stale flag carried into export view")
	}

	// Plain cells export with empty answer.
	plain := NewCell(CellRef{Row: 0, Col: "A"}, "data")
	pv := ExportView(plain)
	if pv.Answer != "" || pv.State != string(CellStateIdle) {
		t.Fatalf("unexpected plain cell view %+v", pv)
	}
}
