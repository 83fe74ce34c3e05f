package sheet

import (
	"testing"

	"github.com/gridmind/gridmind/internal/core"
)

func TestNew_Defaults(t *testing.T) {
	g := New("s1", 0, 0)
	rows, cols := g.Dimensions()
	if rows != DefaultRows || cols != DefaultCols {
		t.Fatalf("expected %dx%d, got %dx%d", DefaultRows, DefaultCols, rows, cols)
	}

	columns := g.Columns()
	if columns[0] != "A" || columns[1] != "B" {
		t.Fatalf("unexpected column names %v", columns[:2])
	}

	v, err := g.Value(0, "A")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "" {
		t.Fatalf("new cells must be empty, got %q", v)
	}
}

func TestColumnLetter(t *testing.T) {
	cases := map[int]core.ColumnID{0: "A", 1: "B", 25: "Z", 26: "AA", 27: "AB", 51: "AZ", 52: "BA"}
	for i, want := range cases {
		if got := columnLetter(i); got != want {
			t.Fatalf("columnLetter(%d) = %s, want %s", i, got, want)
		}
	}
}

func TestSetValue_GrowsRows(t *testing.T) {
	g := New("s1", 2, 2)
	if err := g.SetValue(5, "A", "deep"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rows, _ := g.Dimensions()
	if rows != 6 {
		t.Fatalf("expected 6 rows after growth, got %d", rows)
	}
	v, _ := g.Value(5, "A")
	if v != "deep" {
		t.Fatalf("unexpected value %q", v)
	}
}

func TestSetValue_UnknownColumn(t *testing.T) {
	g := New("s1", 2, 2)
	err := g.SetValue(0, "Z", "x")
	if !core.IsCategory(err, core.ErrCatNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSetInstruction_RevisionBumps(t *testing.T) {
	g := New("s1", 3, 3)
	inst := &core.ColumnInstruction{
		Column:       "B",
		TemplateID:   "freeform",
		Instruction:  "summarize",
		SourceColumn: "A",
	}

	replaced, err := g.SetInstruction(inst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if replaced {
		t.Fatalf("first instruction must not report replacement")
	}
	if got := g.Instruction("B"); got.Revision != 1 {
		t.Fatalf("expected revision 1, got %d", got.Revision)
	}

	inst.Instruction = "summarize briefly"
	replaced, err = g.SetInstruction(inst)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !replaced {
		t.Fatalf("second instruction must report replacement")
	}
	if got := g.Instruction("B"); got.Revision != 2 {
		t.Fatalf("expected revision 2, got %d", got.Revision)
	}
}

func TestSetInstruction_ValidatesColumns(t *testing.T) {
	g := New("s1", 3, 3)
	inst := &core.ColumnInstruction{
		Column:       "Z",
		TemplateID:   "freeform",
		Instruction:  "x",
		SourceColumn: "A",
	}
	if _, err := g.SetInstruction(inst); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Fatalf("expected not found for unknown column, got %v", err)
	}

	inst.Column = "B"
	inst.SourceColumn = "Q"
	if _, err := g.SetInstruction(inst); !core.IsCategory(err, core.ErrCatNotFound) {
		t.Fatalf("expected not found for unknown source column, got %v", err)
	}
}

func TestSnapshot_RoundTrip(t *testing.T) {
	g := New("s1", 2, 2)
	if err := g.SetValue(0, "A", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := g.SetInstruction(&core.ColumnInstruction{
		Column: "B", TemplateID: "freeform", Instruction: "echo", SourceColumn: "A",
	}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := g.Snapshot(nil)
	restored := FromSnapshot(snap)

	v, err := restored.Value(0, "A")
	if err != nil || v != "hello" {
		t.Fatalf("restored value = %q, %v", v, err)
	}
	inst := restored.Instruction("B")
	if inst == nil || inst.Instruction != "echo" || inst.Revision != 1 {
		t.Fatalf("restored instruction %+v", inst)
	}

	// Snapshot must be a deep copy: mutating the grid afterwards does not
	// change the snapshot.
	if err := g.SetValue(0, "A", "changed"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snap.Rows[0][0] != "hello" {
		t.Fatalf("snapshot mutated by later edit")
	}
}
