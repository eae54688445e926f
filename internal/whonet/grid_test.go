package whonet

import "testing"

func TestParse_HeaderAndRows(t *testing.T) {
	text := "PATIENT_ID|SEX|SPEC_NUM\np1|m|A100\np2|f|A200\n"

	g := Parse(text)

	if g.Columns() != 3 {
		t.Fatalf("Columns() = %d, want 3", g.Columns())
	}
	if g.Rows() != 2 {
		t.Fatalf("Rows() = %d, want 2", g.Rows())
	}
	if got := g.Cell(0, 2); got != "A100" {
		t.Errorf("Cell(0,2) = %q, want %q", got, "A100")
	}
	if got := g.Cell(1, 1); got != "f" {
		t.Errorf("Cell(1,1) = %q, want %q", got, "f")
	}
}

func TestParse_EmptyInput(t *testing.T) {
	g := Parse("")

	if g.Rows() != 0 {
		t.Errorf("Rows() = %d, want 0", g.Rows())
	}
	// Access must be safe, not panic.
	if got := g.Cell(0, 0); got != "" {
		t.Errorf("Cell(0,0) = %q, want empty", got)
	}
}

func TestParse_TrailingBlankLines(t *testing.T) {
	g := Parse("A|B\n1|2\n\n\n")

	if g.Rows() != 1 {
		t.Errorf("Rows() = %d, want 1 (trailing blank lines skipped)", g.Rows())
	}
}

func TestParse_AllEmptyCellsRow(t *testing.T) {
	g := Parse("A|B|C\n||\n")

	if g.Rows() != 1 {
		t.Fatalf("Rows() = %d, want 1", g.Rows())
	}
	if !g.RowEmpty(0) {
		t.Error("RowEmpty(0) = false, want true for a row of empty cells")
	}
}

func TestGrid_ShortRowReadsEmpty(t *testing.T) {
	g := Parse("A|B|C|D\n1|2\n")

	if got := g.Cell(0, 3); got != "" {
		t.Errorf("Cell(0,3) = %q, want empty for missing trailing cell", got)
	}
	if got := g.Cell(0, 1); got != "2" {
		t.Errorf("Cell(0,1) = %q, want %q", got, "2")
	}
}

func TestGrid_ColumnIndexCaseInsensitive(t *testing.T) {
	g := Parse("Spec_Num|SEX\nA|m\n")

	tests := []struct {
		name string
		want int
	}{
		{"SPEC_NUM", 0},
		{"spec_num", 0},
		{"sex", 1},
		{"MISSING", -1},
	}
	for _, tt := range tests {
		if got := g.ColumnIndex(tt.name); got != tt.want {
			t.Errorf("ColumnIndex(%q) = %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestGrid_SetCellExtendsShortRow(t *testing.T) {
	g := Parse("A|B|C\n1\n")

	g.SetCell(0, 2, "x")

	if got := g.Cell(0, 2); got != "x" {
		t.Errorf("Cell(0,2) = %q, want %q after SetCell", got, "x")
	}
	if got := g.Cell(0, 1); got != "" {
		t.Errorf("Cell(0,1) = %q, want empty gap cell", got)
	}
}

func TestGrid_CRLFInput(t *testing.T) {
	g := Parse("A|B\r\n1|2\r\n")

	if g.Rows() != 1 {
		t.Fatalf("Rows() = %d, want 1", g.Rows())
	}
	if got := g.Cell(0, 1); got != "2" {
		t.Errorf("Cell(0,1) = %q, want %q", got, "2")
	}
}
