package core

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/intellisoft-ke/findams/internal/aware"
	"github.com/intellisoft-ke/findams/internal/batch"
	"github.com/intellisoft-ke/findams/internal/config"
	"github.com/intellisoft-ke/findams/internal/dhis"
	"github.com/intellisoft-ke/findams/internal/mapping"
	"github.com/intellisoft-ke/findams/internal/pipeline"
)

// acceptAllGateway accepts every submitted record.
type acceptAllGateway struct {
	snapshot *dhis.Snapshot
}

func (g *acceptAllGateway) FetchSnapshot(ctx context.Context) (*dhis.Snapshot, error) {
	return g.snapshot, nil
}

func (g *acceptAllGateway) PostTrackedEntities(ctx context.Context, payload dhis.TrackedEntityPayload) (*dhis.ImportResponse, error) {
	resp := &dhis.ImportResponse{}
	resp.Response.Status = "SUCCESS"
	for i := range payload.TrackedEntityInstances {
		resp.Response.Imported++
		resp.Response.ImportSummaries = append(resp.Response.ImportSummaries,
			dhis.ImportSummary{Status: "SUCCESS", Reference: "tei-" + string(rune('a'+i))})
	}
	return resp, nil
}

func (g *acceptAllGateway) PostEnrollment(ctx context.Context, enrollment dhis.Enrollment) (*dhis.ImportResponse, error) {
	return importOK("enr"), nil
}

func (g *acceptAllGateway) PostEvent(ctx context.Context, event dhis.Event) (*dhis.ImportResponse, error) {
	return importOK("ev"), nil
}

func (g *acceptAllGateway) UpdateEvent(ctx context.Context, eventID string, event dhis.Event) error {
	return nil
}

func importOK(ref string) *dhis.ImportResponse {
	resp := &dhis.ImportResponse{}
	resp.Response.Status = "SUCCESS"
	resp.Response.Imported = 1
	resp.Response.ImportSummaries = []dhis.ImportSummary{{Status: "SUCCESS", Reference: ref}}
	return resp
}

type memoryDocs struct {
	doc []byte
}

func (m *memoryDocs) GetDocument(ctx context.Context, out any) error {
	if m.doc == nil {
		return nil
	}
	return json.Unmarshal(m.doc, out)
}

func (m *memoryDocs) PutDocument(ctx context.Context, doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.doc = b
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testService(t *testing.T) (*Service, *memoryDocs, string, string) {
	t.Helper()

	ids := map[string]string{}
	for _, e := range mapping.DefaultColumnMapping() {
		ids[e.DisplayName] = "attr-" + e.SourceColumn
	}
	gw := &acceptAllGateway{snapshot: dhis.NewSnapshot(ids, nil)}

	awarePath := filepath.Join(t.TempDir(), "aware.json")
	if err := os.WriteFile(awarePath, []byte(`[]`), 0o644); err != nil {
		t.Fatal(err)
	}

	dc := config.DHISConfig{
		TrackedEntityType: "tet-1",
		OrgUnit:           "ou-1",
		Program:           "prog-1",
		ProgramStage:      "stage-1",
		TestTypeElement:   "de-test-type",
		AntibioticElement: "de-antibiotic",
		AwareElement:      "de-aware",
		ResultElement:     "de-result",
	}
	ic := config.ImportConfig{
		MaxInFlight:   2,
		ASTRangeStart: "AMK_ND30",
		ASTRangeEnd:   "CIP_ND5",
	}

	log := quietLogger()
	p := pipeline.New(gw, dc, ic, aware.Load(awarePath, log), log)

	docs := &memoryDocs{}
	inbound := filepath.Join(t.TempDir(), "whonet")
	processed := filepath.Join(t.TempDir(), "processed")
	tracker := batch.NewTracker(docs, nil, processed, log)

	svc, err := NewService(p, tracker, inbound, log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, docs, inbound, processed
}

const testExport = "SEX|ORGANISM|SPEC_DATE|AMK_ND30|CIP_ND5\n" +
	"m|eco|2024-03-15|R|\n"

func TestImportFile_EndToEnd(t *testing.T) {
	svc, _, inbound, processed := testService(t)

	path := filepath.Join(inbound, "export.txt")
	if err := os.WriteFile(path, []byte(testExport), 0o644); err != nil {
		t.Fatal(err)
	}

	summary, err := svc.ImportFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ImportFile: %v", err)
	}
	if summary.FileName != "export.txt" || summary.Status != batch.StatusCompleted {
		t.Errorf("summary = %+v", summary)
	}
	if _, err := os.Stat(filepath.Join(processed, "export.txt")); err != nil {
		t.Errorf("file not archived: %v", err)
	}

	batches, err := svc.Batches(context.Background())
	if err != nil {
		t.Fatalf("Batches: %v", err)
	}
	if len(batches) != 1 {
		t.Errorf("batches = %d, want 1", len(batches))
	}
}

func TestImportPending_FailingFileLeftInPlace(t *testing.T) {
	svc, _, inbound, _ := testService(t)

	good := filepath.Join(inbound, "a_good.txt")
	bad := filepath.Join(inbound, "b_bad.txt")
	if err := os.WriteFile(good, []byte(testExport), 0o644); err != nil {
		t.Fatal(err)
	}
	// Missing antibiotic columns aborts this file's run.
	if err := os.WriteFile(bad, []byte("SEX|ORGANISM\nm|eco\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	summaries, err := svc.ImportPending(context.Background())
	if err != nil {
		t.Fatalf("ImportPending: %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("summaries = %d, want 1", len(summaries))
	}
	if _, err := os.Stat(bad); err != nil {
		t.Errorf("failing file should remain for retry: %v", err)
	}
	if _, err := os.Stat(good); !os.IsNotExist(err) {
		t.Errorf("good file should be archived: %v", err)
	}
}

func TestSaveUpload(t *testing.T) {
	svc, _, inbound, _ := testService(t)

	path, err := svc.SaveUpload("../sneaky/export.txt", strings.NewReader(testExport))
	if err != nil {
		t.Fatalf("SaveUpload: %v", err)
	}
	if path != filepath.Join(inbound, "export.txt") {
		t.Errorf("path = %q, base name expected", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) != testExport {
		t.Errorf("stored content mismatch")
	}
}
