package web

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/intellisoft-ke/findams/internal/aware"
	"github.com/intellisoft-ke/findams/internal/batch"
	"github.com/intellisoft-ke/findams/internal/config"
	"github.com/intellisoft-ke/findams/internal/core"
	"github.com/intellisoft-ke/findams/internal/dhis"
	"github.com/intellisoft-ke/findams/internal/mapping"
	"github.com/intellisoft-ke/findams/internal/pipeline"
)

type stubGateway struct {
	snapshot *dhis.Snapshot
}

func (g *stubGateway) FetchSnapshot(ctx context.Context) (*dhis.Snapshot, error) {
	return g.snapshot, nil
}

func (g *stubGateway) PostTrackedEntities(ctx context.Context, payload dhis.TrackedEntityPayload) (*dhis.ImportResponse, error) {
	resp := &dhis.ImportResponse{}
	resp.Response.Status = "SUCCESS"
	for range payload.TrackedEntityInstances {
		resp.Response.Imported++
		resp.Response.ImportSummaries = append(resp.Response.ImportSummaries,
			dhis.ImportSummary{Status: "SUCCESS", Reference: "tei-1"})
	}
	return resp, nil
}

func (g *stubGateway) PostEnrollment(ctx context.Context, enrollment dhis.Enrollment) (*dhis.ImportResponse, error) {
	return stubOK(), nil
}

func (g *stubGateway) PostEvent(ctx context.Context, event dhis.Event) (*dhis.ImportResponse, error) {
	return stubOK(), nil
}

func (g *stubGateway) UpdateEvent(ctx context.Context, eventID string, event dhis.Event) error {
	return nil
}

func stubOK() *dhis.ImportResponse {
	resp := &dhis.ImportResponse{}
	resp.Response.Status = "SUCCESS"
	resp.Response.Imported = 1
	resp.Response.ImportSummaries = []dhis.ImportSummary{{Status: "SUCCESS", Reference: "ref-1"}}
	return resp
}

type stubDocs struct {
	doc []byte
}

func (m *stubDocs) GetDocument(ctx context.Context, out any) error {
	if m.doc == nil {
		return nil
	}
	return json.Unmarshal(m.doc, out)
}

func (m *stubDocs) PutDocument(ctx context.Context, doc any) error {
	b, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	m.doc = b
	return nil
}

func newTestServer(t *testing.T, security config.SecurityConfig) *Server {
	t.Helper()

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	ids := map[string]string{}
	for _, e := range mapping.DefaultColumnMapping() {
		ids[e.DisplayName] = "attr-" + e.SourceColumn
	}
	gw := &stubGateway{snapshot: dhis.NewSnapshot(ids, nil)}

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

	p := pipeline.New(gw, dc, ic, aware.Load(awarePath, log), log)
	tracker := batch.NewTracker(&stubDocs{}, nil, filepath.Join(t.TempDir(), "processed"), log)
	svc, err := core.NewService(p, tracker, filepath.Join(t.TempDir(), "whonet"), log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return NewServer(svc, security, log)
}

func uploadRequest(t *testing.T, target, field, fileName, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

const exportContent = "SEX|ORGANISM|SPEC_DATE|AMK_ND30|CIP_ND5\n" +
	"m|eco|2024-03-15|R|\n"

func TestHealth(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{})
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestParseFile(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{})

	req := uploadRequest(t, "/ams/file-import/parse-file", uploadField, "export.txt", exportContent)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var summary batch.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &summary); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if summary.FileName != "export.txt" || summary.Status != batch.StatusCompleted {
		t.Errorf("summary = %+v", summary)
	}
}

func TestParseFile_MissingField(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{})

	req := uploadRequest(t, "/ams/file-import/parse-file", "wrongField", "export.txt", exportContent)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestBatches(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{})

	req := uploadRequest(t, "/ams/file-import/parse-file", uploadField, "export.txt", exportContent)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("upload status = %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ams/batches", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var batches []batch.Summary
	if err := json.Unmarshal(rec.Body.Bytes(), &batches); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(batches) != 1 {
		t.Errorf("batches = %d, want 1", len(batches))
	}
}

func TestAPIKeyRequired(t *testing.T) {
	srv := newTestServer(t, config.SecurityConfig{
		RequireAPIKey: true,
		APIKeys:       []string{"secret"},
	})

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ams/batches", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/ams/batches", nil)
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	// Health stays open for probes.
	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("health status = %d", rec.Code)
	}
}
