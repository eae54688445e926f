// Package suscept extracts antimicrobial susceptibility test results
// from normalized WHONET grids and classifies each record's overall
// test type.
package suscept

import (
	"fmt"

	"github.com/intellisoft-ke/findams/internal/aware"
	"github.com/intellisoft-ke/findams/internal/whonet"
)

// Culture types assigned per record.
const (
	CultureWithAST    = "Culture with AST"
	CultureWithoutAST = "Culture without AST"
)

// Result is one antibiotic column that carried a valid test result.
type Result struct {
	AntibioticColumn string
	ResultCode       string
	AwareClass       string
	CultureType      string
}

// Range is the resolved half of the configured antibiotic column span.
// The boundary is explicit configuration, never inferred from header
// text matching.
type Range struct {
	Start, End int
}

// ResolveRange locates the configured start/end column names in the
// grid header. Resolution happens once per file; an export missing
// either boundary column cannot be scanned.
func ResolveRange(g *whonet.Grid, startColumn, endColumn string) (Range, error) {
	start := g.ColumnIndex(startColumn)
	end := g.ColumnIndex(endColumn)
	if start < 0 || end < 0 {
		return Range{}, fmt.Errorf("antibiotic columns %q..%q not found in header", startColumn, endColumn)
	}
	if end < start {
		return Range{}, fmt.Errorf("antibiotic column %q precedes %q in header", endColumn, startColumn)
	}
	return Range{Start: start, End: end}, nil
}

// validResult reports whether a cell carries a susceptibility code.
// Only the exact codes count; empty cells and anything else are
// ignored without error.
func validResult(v string) bool {
	return v == "R" || v == "S" || v == "I"
}

// Extract scans one row across the antibiotic range and returns one
// Result per column holding R, S or I. CultureType is record-level: it
// is CultureWithAST on every returned Result when at least one column
// hit, and the second return value reports it for rows with no
// results at all.
func Extract(g *whonet.Grid, row int, r Range, classify *aware.Lookup) ([]Result, string) {
	var results []Result

	for col := r.Start; col <= r.End; col++ {
		v := g.Cell(row, col)
		if !validResult(v) {
			continue
		}
		name := g.ColumnName(col)
		results = append(results, Result{
			AntibioticColumn: name,
			ResultCode:       v,
			AwareClass:       classify.Classify(name),
		})
	}

	cultureType := CultureWithoutAST
	if len(results) > 0 {
		cultureType = CultureWithAST
	}
	for i := range results {
		results[i].CultureType = cultureType
	}
	return results, cultureType
}
