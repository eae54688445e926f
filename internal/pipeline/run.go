// Package pipeline orchestrates one import run: parse, normalize,
// map against a fresh schema snapshot, assemble and submit.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/intellisoft-ke/findams/internal/aware"
	"github.com/intellisoft-ke/findams/internal/config"
	"github.com/intellisoft-ke/findams/internal/dhis"
	"github.com/intellisoft-ke/findams/internal/mapping"
	"github.com/intellisoft-ke/findams/internal/payload"
	"github.com/intellisoft-ke/findams/internal/suscept"
	"github.com/intellisoft-ke/findams/internal/whonet"
)

// RecordState tracks one record through its submission chain.
type RecordState string

const (
	StatePending             RecordState = "PENDING"
	StateSubmitted           RecordState = "SUBMITTED"
	StateAccepted            RecordState = "ACCEPTED"
	StatePartiallyConflicted RecordState = "PARTIALLY_CONFLICTED"
	StateRejected            RecordState = "REJECTED"
)

// Gateway is the remote surface the pipeline submits through. The
// production implementation is dhis.Client.
type Gateway interface {
	FetchSnapshot(ctx context.Context) (*dhis.Snapshot, error)
	PostTrackedEntities(ctx context.Context, payload dhis.TrackedEntityPayload) (*dhis.ImportResponse, error)
	PostEnrollment(ctx context.Context, enrollment dhis.Enrollment) (*dhis.ImportResponse, error)
	PostEvent(ctx context.Context, event dhis.Event) (*dhis.ImportResponse, error)
	UpdateEvent(ctx context.Context, eventID string, event dhis.Event) error
}

// RunResult summarizes one processed file.
type RunResult struct {
	FileName string

	// Response is the tracked entity import envelope; its counts feed
	// the batch summary.
	Response *dhis.ImportResponse

	States    []RecordState
	Conflicts []dhis.Conflict
}

// Accepted counts records that finished their whole chain cleanly.
func (r *RunResult) Accepted() int { return r.count(StateAccepted) }

// Rejected counts records refused at the tracked entity stage.
func (r *RunResult) Rejected() int { return r.count(StateRejected) }

// PartiallyConflicted counts records whose enrollment or events hit
// conflicts after the tracked entity itself was accepted.
func (r *RunResult) PartiallyConflicted() int { return r.count(StatePartiallyConflicted) }

func (r *RunResult) count(s RecordState) int {
	n := 0
	for _, st := range r.States {
		if st == s {
			n++
		}
	}
	return n
}

// Pipeline runs WHONET file imports against one configured target.
type Pipeline struct {
	gateway Gateway
	dhisCfg config.DHISConfig
	impCfg  config.ImportConfig
	columns mapping.ColumnMapping
	classes *aware.Lookup
	log     *slog.Logger
}

// New wires a Pipeline. A nil column mapping falls back to the
// default WHONET layout.
func New(gateway Gateway, dhisCfg config.DHISConfig, impCfg config.ImportConfig, classes *aware.Lookup, log *slog.Logger) *Pipeline {
	return &Pipeline{
		gateway: gateway,
		dhisCfg: dhisCfg,
		impCfg:  impCfg,
		columns: mapping.DefaultColumnMapping(),
		classes: classes,
		log:     log,
	}
}

// Run processes one file's content end to end. Schema fetch or mapping
// validation failures abort the whole run; per-record submission
// failures degrade that record's state only.
func (p *Pipeline) Run(ctx context.Context, fileName, content string) (*RunResult, error) {
	grid := whonet.Parse(content)
	if grid.Rows() == 0 {
		return nil, fmt.Errorf("%s: no data rows", fileName)
	}
	whonet.NewNormalizer(p.log).Normalize(grid)

	snap, err := p.gateway.FetchSnapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	if err := p.columns.Validate(snap); err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	astRange, err := suscept.ResolveRange(grid, p.impCfg.ASTRangeStart, p.impCfg.ASTRangeEnd)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}

	records, err := payload.NewAssembler(snap, p.columns, p.dhisCfg, p.classes).Build(grid, astRange)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", fileName, err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: no usable records", fileName)
	}

	resp, err := p.gateway.PostTrackedEntities(ctx, dhis.TrackedEntityPayload{TrackedEntityInstances: records})
	if err != nil {
		return nil, fmt.Errorf("%s: submit tracked entities: %w", fileName, err)
	}

	result := &RunResult{
		FileName: fileName,
		Response: resp,
		States:   make([]RecordState, len(records)),
	}
	for i := range result.States {
		result.States[i] = StatePending
	}

	testTypeID, _ := snap.AttributeID(payload.TestTypeDisplayName)

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	limit := p.impCfg.MaxInFlight
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)

	summaries := resp.Response.ImportSummaries
	if len(summaries) < len(records) {
		// Surplus records have no summary to act on and stay PENDING.
		p.log.Warn("import response truncated",
			"file", fileName,
			"records", len(records),
			"summaries", len(summaries))
	}
	for i := range records {
		if i >= len(summaries) {
			break
		}
		i := i
		summary := summaries[i]

		if summary.Status == dhis.StatusError {
			result.States[i] = StateRejected
			mu.Lock()
			result.Conflicts = append(result.Conflicts, summary.Conflicts...)
			mu.Unlock()
			p.log.Warn("record rejected",
				"file", fileName,
				"record", i,
				"conflicts", len(summary.Conflicts))
			continue
		}

		result.States[i] = StateSubmitted
		g.Go(func() error {
			state, conflicts := p.submitChain(gctx, records[i], summary.Reference, testTypeID)
			mu.Lock()
			result.States[i] = state
			result.Conflicts = append(result.Conflicts, conflicts...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return result, err
	}

	p.log.Info("run finished",
		"file", fileName,
		"records", len(records),
		"accepted", result.Accepted(),
		"partial", result.PartiallyConflicted(),
		"rejected", result.Rejected())
	return result, nil
}

// submitChain drives one accepted record through enrollment, its
// events, and the per-event data value replacement. Any failure after
// the tracked entity was accepted downgrades the record to partially
// conflicted rather than rejected.
func (p *Pipeline) submitChain(ctx context.Context, record dhis.SubmissionRecord, teiRef, testTypeID string) (RecordState, []dhis.Conflict) {
	enrollment := record.Enrollment
	enrollment.TrackedEntityInstance = teiRef

	enrResp, err := p.gateway.PostEnrollment(ctx, enrollment)
	if err != nil {
		p.log.Warn("enrollment failed", "tei", teiRef, "error", err)
		return StatePartiallyConflicted, nil
	}
	conflicts := collectConflicts(enrResp)
	if len(conflicts) > 0 {
		return StatePartiallyConflicted, conflicts
	}

	cultureType := attributeValue(record.Attributes, testTypeID)
	state := StateAccepted
	for _, event := range enrollment.Events {
		event.TrackedEntityInstance = teiRef
		evResp, err := p.gateway.PostEvent(ctx, event)
		if err != nil {
			p.log.Warn("event failed", "tei", teiRef, "error", err)
			state = StatePartiallyConflicted
			continue
		}
		if c := collectConflicts(evResp); len(c) > 0 {
			conflicts = append(conflicts, c...)
			state = StatePartiallyConflicted
			continue
		}
		eventID := firstReference(evResp)
		if eventID == "" {
			continue
		}
		// Replace the stored data values so the record-level culture
		// type travels with each event as well.
		event.DataValues = append(event.DataValues, dhis.DataValue{
			DataElement: p.dhisCfg.TestTypeElement,
			Value:       cultureType,
		})
		if err := p.gateway.UpdateEvent(ctx, eventID, event); err != nil {
			p.log.Warn("event update failed", "event", eventID, "error", err)
			state = StatePartiallyConflicted
		}
	}
	return state, conflicts
}

func collectConflicts(resp *dhis.ImportResponse) []dhis.Conflict {
	if resp == nil {
		return nil
	}
	var out []dhis.Conflict
	for _, s := range resp.Response.ImportSummaries {
		if s.Status == dhis.StatusError {
			out = append(out, s.Conflicts...)
		}
	}
	return out
}

func firstReference(resp *dhis.ImportResponse) string {
	if resp == nil {
		return ""
	}
	for _, s := range resp.Response.ImportSummaries {
		if s.Reference != "" {
			return s.Reference
		}
	}
	return ""
}

func attributeValue(attrs []dhis.Attribute, id string) string {
	for _, a := range attrs {
		if a.Attribute == id {
			return a.Value
		}
	}
	return ""
}
