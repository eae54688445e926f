// Package aware loads the static WHO AWaRe (Access/Watch/Reserve)
// antibiotic classification reference and answers lookups by drug
// code. The reference is a local JSON array maintained alongside the
// deployment; lookups never fail the caller.
package aware

import (
	"encoding/json"
	"log/slog"
	"os"
	"strings"
)

// Sentinel classifications returned instead of an error.
const (
	Unknown       = "Unknown"
	ErrReadingRef = "ErrorReadingJsonFile"
)

type entry struct {
	DrugCode       string `json:"drug_code"`
	Classification string `json:"aware_classification"`
}

// Lookup answers AWaRe classification queries by antibiotic column
// code. The zero value answers ErrReadingRef for everything, which is
// what callers get when the reference file was unreadable.
type Lookup struct {
	byCode map[string]string
	loaded bool
}

// Load reads the reference file. A missing or malformed file does not
// return an error: the resulting Lookup answers ErrReadingRef and the
// problem is logged once here rather than once per row.
func Load(path string, log *slog.Logger) *Lookup {
	data, err := os.ReadFile(path)
	if err != nil {
		log.Error("aware reference unreadable", "path", path, "error", err)
		return &Lookup{}
	}

	var entries []entry
	if err := json.Unmarshal(data, &entries); err != nil {
		log.Error("aware reference malformed", "path", path, "error", err)
		return &Lookup{}
	}

	l := &Lookup{byCode: make(map[string]string, len(entries)), loaded: true}
	for _, e := range entries {
		l.byCode[strings.ToUpper(e.DrugCode)] = e.Classification
	}
	return l
}

// Classify returns the AWaRe classification for an antibiotic column
// code, Unknown when the code is absent from the reference, or
// ErrReadingRef when the reference itself could not be read.
func (l *Lookup) Classify(drugCode string) string {
	if !l.loaded {
		return ErrReadingRef
	}
	if c, ok := l.byCode[strings.ToUpper(drugCode)]; ok {
		return c
	}
	return Unknown
}
