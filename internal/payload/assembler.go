// Package payload assembles submission-ready tracked entity records
// from normalized WHONET grids: one record per data row, carrying its
// mapped attributes, an enrollment, and one event per antibiotic
// susceptibility result.
package payload

import (
	"fmt"
	"time"

	"github.com/intellisoft-ke/findams/internal/aware"
	"github.com/intellisoft-ke/findams/internal/config"
	"github.com/intellisoft-ke/findams/internal/dhis"
	"github.com/intellisoft-ke/findams/internal/mapping"
	"github.com/intellisoft-ke/findams/internal/suscept"
	"github.com/intellisoft-ke/findams/internal/whonet"
)

// TestTypeDisplayName is the synthesized attribute derived from the
// record's culture type; it has no source column of its own.
const TestTypeDisplayName = "Test Type"

// NAValue is the sentinel for data values that carry no applicable AST
// result; such values are dropped before emission.
const NAValue = "N/A"

const (
	enrollmentStatusActive = "ACTIVE"
	eventStatusCompleted   = "COMPLETED"
)

// Assembler builds SubmissionRecords against one catalog snapshot.
type Assembler struct {
	snap    *dhis.Snapshot
	mapper  *mapping.Mapper
	columns mapping.ColumnMapping
	cfg     config.DHISConfig
	classes *aware.Lookup

	// now is swappable in tests; the run date backfills records whose
	// specimen collection date did not normalize.
	now func() time.Time
}

// NewAssembler wires an Assembler for one import run.
func NewAssembler(snap *dhis.Snapshot, columns mapping.ColumnMapping, cfg config.DHISConfig, classes *aware.Lookup) *Assembler {
	return &Assembler{
		snap:    snap,
		mapper:  mapping.NewMapper(snap, nil),
		columns: columns,
		cfg:     cfg,
		classes: classes,
		now:     time.Now,
	}
}

// Build assembles one SubmissionRecord per non-empty data row. The
// error return covers configuration problems only (a display name the
// catalog cannot resolve); data-level oddities degrade the affected
// attribute or row, never the batch.
func (a *Assembler) Build(g *whonet.Grid, astRange suscept.Range) ([]dhis.SubmissionRecord, error) {
	testTypeID, ok := a.snap.AttributeID(TestTypeDisplayName)
	if !ok {
		return nil, fmt.Errorf("catalog has no attribute id for %q", TestTypeDisplayName)
	}

	runDate := a.now().Format(whonet.OutputDateLayout)
	specDateIdx := g.ColumnIndex("SPEC_DATE")

	var records []dhis.SubmissionRecord
	for row := 0; row < g.Rows(); row++ {
		if g.RowEmpty(row) {
			continue
		}

		record := dhis.SubmissionRecord{
			TrackedEntityType: a.cfg.TrackedEntityType,
			OrgUnit:           a.cfg.OrgUnit,
		}

		for _, entry := range a.columns {
			col := g.ColumnIndex(entry.SourceColumn)
			if col < 0 {
				continue
			}
			attr, ok := a.mapper.Resolve(entry.DisplayName, g.Cell(row, col))
			if !ok {
				return nil, fmt.Errorf("catalog has no attribute id for %q", entry.DisplayName)
			}
			record.Attributes = append(record.Attributes, attr)
		}

		results, cultureType := suscept.Extract(g, row, astRange, a.classes)
		record.Attributes = append(record.Attributes, dhis.Attribute{
			Attribute: testTypeID,
			Value:     cultureType,
		})

		recordDate := runDate
		if specDateIdx >= 0 {
			if d := g.Cell(row, specDateIdx); isNormalizedDate(d) {
				recordDate = d
			}
		}

		record.Enrollment = dhis.Enrollment{
			Program:        a.cfg.Program,
			Status:         enrollmentStatusActive,
			OrgUnit:        a.cfg.OrgUnit,
			EnrollmentDate: recordDate,
			IncidentDate:   recordDate,
			Events:         a.buildEvents(results, recordDate),
		}

		records = append(records, record)
	}
	return records, nil
}

// buildEvents emits one event per susceptibility result, each carrying
// exactly the antibiotic, its AWaRe class and the result code.
func (a *Assembler) buildEvents(results []suscept.Result, eventDate string) []dhis.Event {
	var events []dhis.Event
	for _, r := range results {
		dataValues := filterNA([]dhis.DataValue{
			{DataElement: a.cfg.AntibioticElement, Value: r.AntibioticColumn},
			{DataElement: a.cfg.AwareElement, Value: r.AwareClass},
			{DataElement: a.cfg.ResultElement, Value: r.ResultCode},
		})
		events = append(events, dhis.Event{
			Program:       a.cfg.Program,
			ProgramStage:  a.cfg.ProgramStage,
			OrgUnit:       a.cfg.OrgUnit,
			Status:        eventStatusCompleted,
			EventDate:     eventDate,
			CompletedDate: eventDate,
			DataValues:    dataValues,
		})
	}
	return events
}

// filterNA drops sentinel values that mark a not-applicable result.
func filterNA(values []dhis.DataValue) []dhis.DataValue {
	out := values[:0]
	for _, v := range values {
		if v.Value == NAValue {
			continue
		}
		out = append(out, v)
	}
	return out
}

// isNormalizedDate reports whether a cell already carries a
// YYYY-MM-DD value. Unnormalized dates fall back to the run date
// rather than shipping an unparsable string.
func isNormalizedDate(v string) bool {
	_, err := time.Parse(whonet.OutputDateLayout, v)
	return err == nil
}
