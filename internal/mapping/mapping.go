// Package mapping reconciles WHONET source columns against the
// runtime-fetched target schema. Column pairs are declared statically;
// attribute ids and coded values come from the per-run catalog
// snapshot, with fuzzy fallback when display names and option set
// names differ.
package mapping

import (
	"fmt"
	"sort"
	"strings"

	"github.com/intellisoft-ke/findams/internal/dhis"
)

// Entry pairs a target attribute display name with the source column
// that feeds it.
type Entry struct {
	DisplayName  string
	SourceColumn string
}

// ColumnMapping is the static table of attribute-to-column pairs,
// immutable for the life of a run. Order is the declaration order so
// assembled attribute lists are deterministic.
type ColumnMapping []Entry

// DefaultColumnMapping covers every attribute the pipeline can
// populate from a WHONET export.
func DefaultColumnMapping() ColumnMapping {
	return ColumnMapping{
		{"Organism", "ORGANISM"},
		{"Organism Type", "ORG_TYPE"},
		{"Patient ID", "PATIENT_ID"},
		{"First Name", "FIRST_NAME"},
		{"Last Name", "LAST_NAME"},
		{"Middle Name", "X_MIDDLE_N"},
		{"Sex", "SEX"},
		{"Age (Years)", "AGE"},
		{"County", "X_COUNTY"},
		{"Sub-county", "X_S_COUNTY"},
		{"Diagnosis", "X_DIAGN"},
		{"Patient Ward", "WARD"},
		{"Department", "DEPARTMENT"},
		{"Ward Type", "WARD_TYPE"},
		{"Date of admission", "DATE_ADMIS"},
		{"Specimen/sample Number", "SPEC_NUM"},
		{"Isolate Number/Test", "ISOL_NUM"},
		{"Spec collection date", "SPEC_DATE"},
		{"Specimen Type", "SPEC_TYPE"},
		{"Specimen source", "X_SOURCE"},
		{"Method", "X_METHOD"},

		// Not present in WHONET exports; the assembler synthesizes
		// their values. Listed so catalog validation still proves the
		// target attributes exist.
		{"Test Type", "TEST_TYPE"},
		{"AWaRe Classification", "AWARE"},
	}
}

// SourceColumn returns the source column for a display name.
func (m ColumnMapping) SourceColumn(displayName string) (string, bool) {
	for _, e := range m {
		if e.DisplayName == displayName {
			return e.SourceColumn, true
		}
	}
	return "", false
}

// Validate checks every configured display name against the catalog.
// A display name without a target attribute id is a configuration
// error: the run must fail loudly rather than silently drop the
// attribute.
func (m ColumnMapping) Validate(snap *dhis.Snapshot) error {
	var missing []string
	for _, e := range m {
		if _, ok := snap.AttributeID(e.DisplayName); !ok {
			missing = append(missing, e.DisplayName)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("column mapping: no target attribute id for %s", strings.Join(missing, ", "))
	}
	return nil
}
