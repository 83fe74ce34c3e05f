// Package sheet holds the in-memory grid model and its persistence. The grid
// is mutated only by the orchestrator on job commit or explicit user edit.
package sheet

import (
	"fmt"
	"sync"
	"time"

	"github.com/gridmind/gridmind/internal/core"
)

const (
	// DefaultRows and DefaultCols size a freshly created empty sheet.
	DefaultRows = 10
	DefaultCols = 10
)

// Grid is one spreadsheet: column identifiers, row-major raw values, and
// per-column instructions.
type Grid struct {
	mu           sync.RWMutex
	id           string
	columns      []core.ColumnID
	rows         [][]string
	instructions map[core.ColumnID]*core.ColumnInstruction
	updatedAt    time.Time
}

// New creates an empty grid with the given dimensions. Non-positive
// dimensions fall back to the defaults. Columns are lettered A, B, C...
func New(id string, rows, cols int) *Grid {
	if rows <= 0 {
		rows = DefaultRows
	}
	if cols <= 0 {
		cols = DefaultCols
	}

	columns := make([]core.ColumnID, cols)
	for i := range columns {
		columns[i] = columnLetter(i)
	}
	data := make([][]string, rows)
	for i := range data {
		data[i] = make([]string, cols)
	}

	return &Grid{
		id:           id,
		columns:      columns,
		rows:         data,
		instructions: make(map[core.ColumnID]*core.ColumnInstruction),
		updatedAt:    time.Now(),
	}
}

// FromSnapshot restores a grid from its persisted form.
func FromSnapshot(snap *core.SheetSnapshot) *Grid {
	g := &Grid{
		id:           snap.ID,
		columns:      append([]core.ColumnID(nil), snap.Columns...),
		instructions: make(map[core.ColumnID]*core.ColumnInstruction, len(snap.Instructions)),
		updatedAt:    snap.UpdatedAt,
	}
	g.rows = make([][]string, len(snap.Rows))
	for i, row := range snap.Rows {
		g.rows[i] = append([]string(nil), row...)
	}
	for col, inst := range snap.Instructions {
		c := inst.Clone()
		g.instructions[col] = &c
	}
	return g
}

// ID returns the sheet identifier.
func (g *Grid) ID() string {
	return g.id
}

// Dimensions returns (rows, cols).
func (g *Grid) Dimensions() (int, int) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.rows), len(g.columns)
}

// Columns returns the column identifiers in order.
func (g *Grid) Columns() []core.ColumnID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return append([]core.ColumnID(nil), g.columns...)
}

// HasColumn reports whether the column exists.
func (g *Grid) HasColumn(col core.ColumnID) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.colIndex(col) >= 0
}

// Value returns the raw value at (row, col).
func (g *Grid) Value(row int, col core.ColumnID) (string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ci := g.colIndex(col)
	if ci < 0 || row < 0 || row >= len(g.rows) {
		return "", core.ErrNotFound("cell", core.CellRef{Row: row, Col: col}.String())
	}
	return g.rows[row][ci], nil
}

// SetValue writes a raw value at (row, col), growing rows as needed.
func (g *Grid) SetValue(row int, col core.ColumnID, value string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	ci := g.colIndex(col)
	if ci < 0 || row < 0 {
		return core.ErrNotFound("cell", core.CellRef{Row: row, Col: col}.String())
	}
	for row >= len(g.rows) {
		g.rows = append(g.rows, make([]string, len(g.columns)))
	}
	g.rows[row][ci] = value
	g.updatedAt = time.Now()
	return nil
}

// Column returns the raw values of one column, ordered by row.
func (g *Grid) Column(col core.ColumnID) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ci := g.colIndex(col)
	if ci < 0 {
		return nil, core.ErrNotFound("column", string(col))
	}
	out := make([]string, len(g.rows))
	for i, row := range g.rows {
		out[i] = row[ci]
	}
	return out, nil
}

// Instruction returns the active instruction for a column, or nil.
func (g *Grid) Instruction(col core.ColumnID) *core.ColumnInstruction {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if inst, ok := g.instructions[col]; ok {
		c := inst.Clone()
		return &c
	}
	return nil
}

// SetInstruction attaches or replaces a column's instruction. Each column
// has at most one; replacement bumps the revision so previously computed
// results can be recognized as stale. Reports whether an instruction was
// replaced.
func (g *Grid) SetInstruction(inst *core.ColumnInstruction) (replaced bool, err error) {
	if err := inst.Validate(); err != nil {
		return false, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.colIndex(inst.Column) < 0 {
		return false, core.ErrNotFound("column", string(inst.Column))
	}
	if g.colIndex(inst.SourceColumn) < 0 {
		return false, core.ErrNotFound("column", string(inst.SourceColumn))
	}

	clone := inst.Clone()
	if prev, ok := g.instructions[inst.Column]; ok {
		clone.Revision = prev.Revision + 1
		replaced = true
	} else {
		clone.Revision = 1
	}
	g.instructions[inst.Column] = &clone
	g.updatedAt = time.Now()
	return replaced, nil
}

// ClearInstruction detaches a column's instruction.
func (g *Grid) ClearInstruction(col core.ColumnID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.instructions, col)
	g.updatedAt = time.Now()
}

// Instructions returns all active instructions keyed by column.
func (g *Grid) Instructions() map[core.ColumnID]*core.ColumnInstruction {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[core.ColumnID]*core.ColumnInstruction, len(g.instructions))
	for col, inst := range g.instructions {
		c := inst.Clone()
		out[col] = &c
	}
	return out
}

// Snapshot renders the grid into its persisted form. cells carries the
// processing results to store alongside the raw values.
func (g *Grid) Snapshot(cells []*core.Cell) *core.SheetSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()

	snap := &core.SheetSnapshot{
		ID:           g.id,
		Columns:      append([]core.ColumnID(nil), g.columns...),
		Rows:         make([][]string, len(g.rows)),
		Cells:        cells,
		Instructions: make(map[core.ColumnID]*core.ColumnInstruction, len(g.instructions)),
		UpdatedAt:    g.updatedAt,
	}
	for i, row := range g.rows {
		snap.Rows[i] = append([]string(nil), row...)
	}
	for col, inst := range g.instructions {
		c := inst.Clone()
		snap.Instructions[col] = &c
	}
	return snap
}

// colIndex returns the column position, or -1. Caller holds the lock.
func (g *Grid) colIndex(col core.ColumnID) int {
	for i, c := range g.columns {
		if c == col {
			return i
		}
	}
	return -1
}

// columnLetter converts a zero-based index to spreadsheet letters
// (0 -> A, 25 -> Z, 26 -> AA).
func columnLetter(i int) core.ColumnID {
	name := ""
	for i >= 0 {
		name = fmt.Sprintf("%c%s", 'A'+i%26, name)
		i = i/26 - 1
	}
	return core.ColumnID(name)
}
