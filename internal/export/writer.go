// Package export writes read-only sheet views to disk. Writes are atomic so
// a crash mid-export never leaves a truncated file behind.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gridmind/gridmind/internal/core"
)

// Document is the serialized form of one sheet export.
type Document struct {
	SheetID    string            `json:"sheet_id"`
	ExportedAt time.Time         `json:"exported_at"`
	Cells      []core.ExportCell `json:"cells"`
}

// WriteJSON writes the export document as indented JSON.
func WriteJSON(path, sheetID string, cells []core.ExportCell) error {
	doc := Document{
		SheetID:    sheetID,
		ExportedAt: time.Now().UTC(),
		Cells:      cells,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling export: %w", err)
	}
	data = append(data, '\n')
	if err := atomicWriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

// WriteCSV writes the export as a rectangular CSV. Cells carrying results
// render as their answer; plain cells render as their raw value. Rows and
// columns not present in the cell list are omitted.
func WriteCSV(path string, cells []core.ExportCell) error {
	cols, rows := dimensions(cells)

	byPos := make(map[string]core.ExportCell, len(cells))
	for _, c := range cells {
		byPos[string(c.Col)+":"+strconv.Itoa(c.Row)] = c
	}

	var buf strings.Builder
	w := csv.NewWriter(&buf)

	header := make([]string, 0, len(cols)+1)
	header = append(header, "row")
	for _, col := range cols {
		header = append(header, string(col))
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}

	for _, row := range rows {
		record := make([]string, 0, len(cols)+1)
		record = append(record, strconv.Itoa(row))
		for _, col := range cols {
			c, ok := byPos[string(col)+":"+strconv.Itoa(row)]
			if !ok {
				record = append(record, "")
				continue
			}
			record = append(record, renderCell(c))
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("writing export: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	if err := atomicWriteFile(path, []byte(buf.String()), 0o644); err != nil {
		return fmt.Errorf("writing export: %w", err)
	}
	return nil
}

func renderCell(c core.ExportCell) string {
	if c.Answer != "" {
		return c.Answer
	}
	return c.Value
}

func dimensions(cells []core.ExportCell) ([]core.ColumnID, []int) {
	colSet := make(map[core.ColumnID]bool)
	rowSet := make(map[int]bool)
	for _, c := range cells {
		colSet[c.Col] = true
		rowSet[c.Row] = true
	}

	cols := make([]core.ColumnID, 0, len(colSet))
	for col := range colSet {
		cols = append(cols, col)
	}
	sort.Slice(cols, func(i, j int) bool { return cols[i] < cols[j] })

	rows := make([]int, 0, len(rowSet))
	for row := range rowSet {
		rows = append(rows, row)
	}
	sort.Ints(rows)

	return cols, rows
}
