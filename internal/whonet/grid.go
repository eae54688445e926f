// Package whonet parses and normalizes WHONET-style laboratory export
// files: pipe-delimited text, one header line followed by one row per
// specimen/isolate. The format never quotes values, so parsing is a
// strict split on the delimiter.
package whonet

import "strings"

// FieldDelimiter separates fields within a record.
const FieldDelimiter = "|"

// Grid is an in-memory row/column view of one export file.
// Row 0 of the source becomes the header; the remaining non-empty lines
// become data rows in file order. Short rows are not padded eagerly;
// missing trailing cells read as the empty string.
type Grid struct {
	header []string
	index  map[string]int // lowercase column name -> position
	rows   [][]string
}

// Parse splits raw file text into a Grid. Empty input yields a Grid
// with an empty header and zero data rows, not an error.
func Parse(text string) *Grid {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	g := &Grid{index: make(map[string]int)}
	if len(lines) == 0 {
		return g
	}

	g.header = strings.Split(lines[0], FieldDelimiter)
	for i, name := range g.header {
		key := strings.ToLower(strings.TrimSpace(name))
		if _, exists := g.index[key]; !exists {
			g.index[key] = i
		}
	}

	for _, line := range lines[1:] {
		if line == "" {
			continue
		}
		g.rows = append(g.rows, strings.Split(line, FieldDelimiter))
	}

	return g
}

// Header returns the header row.
func (g *Grid) Header() []string { return g.header }

// Columns returns the number of header columns.
func (g *Grid) Columns() int { return len(g.header) }

// Rows returns the number of data rows.
func (g *Grid) Rows() int { return len(g.rows) }

// ColumnIndex returns the position of the named column, matched
// case-insensitively, or -1 when the column is absent.
func (g *Grid) ColumnIndex(name string) int {
	if i, ok := g.index[strings.ToLower(strings.TrimSpace(name))]; ok {
		return i
	}
	return -1
}

// ColumnName returns the header name at position col, or "" when out
// of range.
func (g *Grid) ColumnName(col int) string {
	if col < 0 || col >= len(g.header) {
		return ""
	}
	return g.header[col]
}

// Cell returns the value at (row, col). Out-of-range access returns ""
// rather than panicking; a short data row reads as empty in its
// missing trailing cells.
func (g *Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g.rows) || col < 0 {
		return ""
	}
	r := g.rows[row]
	if col >= len(r) {
		return ""
	}
	return r[col]
}

// SetCell writes a value at (row, col), extending a short row as
// needed. Writes outside the grid's row range are ignored.
func (g *Grid) SetCell(row, col int, value string) {
	if row < 0 || row >= len(g.rows) || col < 0 {
		return
	}
	r := g.rows[row]
	for col >= len(r) {
		r = append(r, "")
	}
	r[col] = value
	g.rows[row] = r
}

// RowEmpty reports whether every cell of a data row is blank. Trailing
// blank lines in an export show up as such rows and are skipped by
// normalization and assembly.
func (g *Grid) RowEmpty(row int) bool {
	if row < 0 || row >= len(g.rows) {
		return true
	}
	for _, v := range g.rows[row] {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
