package mapping

import (
	"testing"

	"github.com/intellisoft-ke/findams/internal/dhis"
)

func stubSnapshot() *dhis.Snapshot {
	return dhis.NewSnapshot(
		map[string]string{
			"Organism":               "attr-organism",
			"Sex":                    "attr-sex",
			"Specimen Type":          "attr-spec-type",
			"Department":             "attr-dept",
			"Patient Ward":           "attr-ward",
			"Patient ID":             "attr-pid",
			"Organism Type":          "attr-org-type",
			"First Name":             "attr-first",
			"Last Name":              "attr-last",
			"Middle Name":            "attr-middle",
			"Age (Years)":            "attr-age",
			"County":                 "attr-county",
			"Sub-county":             "attr-subcounty",
			"Diagnosis":              "attr-diag",
			"Ward Type":              "attr-ward-type",
			"Date of admission":      "attr-admis",
			"Specimen/sample Number": "attr-spec-num",
			"Isolate Number/Test":    "attr-isol",
			"Spec collection date":   "attr-spec-date",
			"Specimen source":        "attr-source",
			"Method":                 "attr-method",
			"Test Type":              "attr-test-type",
			"AWaRe Classification":   "attr-aware",
		},
		[]dhis.OptionSet{
			{DisplayName: "Sex", Options: []dhis.Option{
				{Code: "M", Name: "Male"}, {Code: "F", Name: "Female"},
			}},
			{DisplayName: "Specimens", Options: []dhis.Option{
				{Code: "BL", Name: "Blood"}, {Code: "UR", Name: "Urine"},
			}},
			{DisplayName: "Wards", Options: []dhis.Option{
				{Code: "ICU", Name: "Intensive Care"},
			}},
			{DisplayName: "Organisms", Options: []dhis.Option{
				{Code: "ECO", Name: "Escherichia coli"},
			}},
		},
	)
}

func TestResolve_ExactOptionSetMatch(t *testing.T) {
	m := NewMapper(stubSnapshot(), nil)

	attr, ok := m.Resolve("Sex", "Male")
	if !ok {
		t.Fatal("Resolve(Sex) ok = false")
	}
	if attr.Attribute != "attr-sex" || attr.Value != "M" {
		t.Errorf("Resolve(Sex, Male) = %+v, want attr-sex/M", attr)
	}

	// Label compare is case-insensitive.
	if attr, _ := m.Resolve("Sex", "female"); attr.Value != "F" {
		t.Errorf("Resolve(Sex, female) value = %q, want F", attr.Value)
	}
}

func TestResolve_ExactMatchUnknownLabelPassesThrough(t *testing.T) {
	m := NewMapper(stubSnapshot(), nil)

	attr, _ := m.Resolve("Sex", "Other")
	if attr.Value != "Other" {
		t.Errorf("Resolve(Sex, Other) value = %q, want raw passthrough", attr.Value)
	}
}

func TestResolve_SpecimenTypeSpecialCase(t *testing.T) {
	m := NewMapper(stubSnapshot(), nil)

	attr, _ := m.Resolve("Specimen Type", "Blood")
	if attr.Value != "BL" {
		t.Errorf("Resolve(Specimen Type, Blood) value = %q, want BL", attr.Value)
	}

	// No matching label in the Specimens set falls back to the unknown code.
	attr, _ = m.Resolve("Specimen Type", "Moon dust")
	if attr.Value != UnknownCode {
		t.Errorf("Resolve(Specimen Type, Moon dust) value = %q, want %q", attr.Value, UnknownCode)
	}
}

func TestResolve_DepartmentSpecialCase(t *testing.T) {
	m := NewMapper(stubSnapshot(), nil)

	attr, _ := m.Resolve("Department", "Intensive Care")
	if attr.Value != "ICU" {
		t.Errorf("Resolve(Department, Intensive Care) value = %q, want ICU", attr.Value)
	}
}

func TestResolve_FuzzyFallback(t *testing.T) {
	m := NewMapper(stubSnapshot(), nil)

	// "Organism" has no set of its own; "Organisms" is the closest.
	attr, _ := m.Resolve("Organism", "Escherichia coli")
	if attr.Value != "ECO" {
		t.Errorf("Resolve(Organism, Escherichia coli) value = %q, want ECO", attr.Value)
	}
}

func TestResolve_NoOptionSetUsesRawValue(t *testing.T) {
	m := NewMapper(stubSnapshot(), nil)

	attr, ok := m.Resolve("Patient ID", "P-001")
	if !ok || attr.Value != "P-001" {
		t.Errorf("Resolve(Patient ID, P-001) = %+v, %v; want raw value", attr, ok)
	}
}

func TestResolve_MissingAttributeID(t *testing.T) {
	m := NewMapper(stubSnapshot(), nil)

	if _, ok := m.Resolve("Nonexistent", "x"); ok {
		t.Error("Resolve() ok = true for display name absent from catalog")
	}
}

func TestResolve_Idempotent(t *testing.T) {
	m := NewMapper(stubSnapshot(), nil)

	first, _ := m.Resolve("Sex", "Male")
	second, _ := m.Resolve("Sex", "Male")
	if first != second {
		t.Errorf("Resolve not idempotent: %+v vs %+v", first, second)
	}
}

func TestClosestMatch(t *testing.T) {
	candidates := []string{"Wards", "Specimens", "Organisms"}

	got, ok := ClosestMatch("Organism", candidates, JaroWinkler)
	if !ok || got != "Organisms" {
		t.Errorf("ClosestMatch(Organism) = %q, %v; want Organisms", got, ok)
	}

	if _, ok := ClosestMatch("x", nil, JaroWinkler); ok {
		t.Error("ClosestMatch with no candidates should report ok=false")
	}
}

func TestClosestMatch_TieBreaksByOrder(t *testing.T) {
	// Identical candidates score identically; the first wins.
	constant := func(a, b string) float64 { return 1 }
	got, _ := ClosestMatch("anything", []string{"first", "second"}, constant)
	if got != "first" {
		t.Errorf("ClosestMatch tie = %q, want first-encountered candidate", got)
	}
}

func TestValidate_ReportsMissingAttributes(t *testing.T) {
	snap := dhis.NewSnapshot(map[string]string{"Organism": "a1"}, nil)

	err := DefaultColumnMapping().Validate(snap)
	if err == nil {
		t.Fatal("Validate() expected error for missing attribute ids")
	}
	if !containsStr(err.Error(), "Sex") {
		t.Errorf("error %v should name the missing display names", err)
	}
}

func TestValidate_AllPresent(t *testing.T) {
	if err := DefaultColumnMapping().Validate(stubSnapshot()); err != nil {
		t.Fatalf("Validate() error = %v, want nil", err)
	}
}

func containsStr(s, sub string) bool {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return true
		}
	}
	return false
}
