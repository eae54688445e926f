package amc

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Reference maps ATC codes to their defined daily dose in grams.
type Reference struct {
	byCode map[string]float64
}

type referenceEntry struct {
	AtcCode string  `json:"atc_code"`
	DDD     float64 `json:"ddd"`
}

// LoadReference reads the static ATC to DDD table.
func LoadReference(path string) (*Reference, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read atc ddd reference: %w", err)
	}
	var entries []referenceEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("parse atc ddd reference: %w", err)
	}

	ref := &Reference{byCode: make(map[string]float64, len(entries))}
	for _, e := range entries {
		ref.byCode[strings.ToUpper(e.AtcCode)] = e.DDD
	}
	return ref, nil
}

// DDD returns the defined daily dose for an ATC code.
func (r *Reference) DDD(atcCode string) (float64, bool) {
	v, ok := r.byCode[strings.ToUpper(atcCode)]
	return v, ok
}

// UtilizationResult is one computed prescription utilization.
type UtilizationResult struct {
	AtcCode string
	DDD     float64
	Value   float64
}

// Utilization divides the prescribed dose by the reference DDD.
func Utilization(p Prescription, ref *Reference) (UtilizationResult, error) {
	ddd, ok := ref.DDD(p.AtcCode)
	if !ok {
		return UtilizationResult{}, fmt.Errorf("no ddd value for atc code %q", p.AtcCode)
	}
	if ddd == 0 {
		return UtilizationResult{}, errors.New("ddd value is zero")
	}
	return UtilizationResult{
		AtcCode: p.AtcCode,
		DDD:     ddd,
		Value:   p.Dose / ddd,
	}, nil
}
