// Package batch records the outcome of each processed file: an
// append-only summary list in the remote datastore, an optional local
// audit mirror, and the move of handled files out of the inbound
// directory.
package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/intellisoft-ke/findams/internal/dhis"
	"github.com/intellisoft-ke/findams/internal/pipeline"
)

// Batch statuses derived from per-record outcomes.
const (
	StatusCompleted          = "COMPLETED"
	StatusPartiallyCompleted = "PARTIALLY_COMPLETED"
	StatusFailed             = "FAILED"
)

// Summary is one batch entry in the datastore document.
type Summary struct {
	BatchNo        string          `json:"batchNo"`
	UploadDate     string          `json:"uploadDate"`
	FileName       string          `json:"fileName"`
	Status         string          `json:"status"`
	Imported       int             `json:"imported"`
	Updated        int             `json:"updated"`
	Deleted        int             `json:"deleted"`
	Ignored        int             `json:"ignored"`
	ConflictValues []dhis.Conflict `json:"conflictValues"`
}

// DocumentStore holds the shared batch summary document. The
// production implementation is dhis.Client against the datastore API.
type DocumentStore interface {
	GetDocument(ctx context.Context, out any) error
	PutDocument(ctx context.Context, doc any) error
}

// AuditStore is the optional local mirror of batch summaries.
type AuditStore interface {
	InsertSummary(ctx context.Context, s Summary) error
}

// Tracker persists batch summaries and archives processed files.
type Tracker struct {
	docs         DocumentStore
	audit        AuditStore // nil disables the local mirror
	processedDir string
	log          *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewTracker wires a Tracker. audit may be nil.
func NewTracker(docs DocumentStore, audit AuditStore, processedDir string, log *slog.Logger) *Tracker {
	return &Tracker{
		docs:         docs,
		audit:        audit,
		processedDir: processedDir,
		log:          log,
		now:          time.Now,
		newID:        uuid.NewString,
	}
}

// Record builds a Summary for a finished run and appends it to the
// datastore document. A corrupt or missing document is replaced with a
// fresh list rather than blocking the batch. The audit mirror is best
// effort; its failure is logged, never returned.
func (t *Tracker) Record(ctx context.Context, result *pipeline.RunResult) (Summary, error) {
	s := Summary{
		BatchNo:        t.newID(),
		UploadDate:     t.now().Format(time.RFC3339),
		FileName:       result.FileName,
		Status:         deriveStatus(result),
		ConflictValues: result.Conflicts,
	}
	if result.Response != nil {
		s.Imported = result.Response.Response.Imported
		s.Updated = result.Response.Response.Updated
		s.Deleted = result.Response.Response.Deleted
		s.Ignored = result.Response.Response.Ignored
	}

	var existing []Summary
	if err := t.docs.GetDocument(ctx, &existing); err != nil {
		t.log.Warn("batch summary document unreadable, starting fresh", "error", err)
		existing = nil
	}
	existing = append(existing, s)
	if err := t.docs.PutDocument(ctx, existing); err != nil {
		return s, fmt.Errorf("store batch summary: %w", err)
	}

	if t.audit != nil {
		if err := t.audit.InsertSummary(ctx, s); err != nil {
			t.log.Warn("audit mirror insert failed", "batch", s.BatchNo, "error", err)
		}
	}
	return s, nil
}

// List returns the full summary document.
func (t *Tracker) List(ctx context.Context) ([]Summary, error) {
	var out []Summary
	if err := t.docs.GetDocument(ctx, &out); err != nil {
		return nil, fmt.Errorf("load batch summaries: %w", err)
	}
	return out, nil
}

// Archive moves a handled file into the processed directory and
// returns its new path. It falls back to copy-and-remove when a
// rename crosses filesystems.
func (t *Tracker) Archive(path string) (string, error) {
	if err := os.MkdirAll(t.processedDir, 0o755); err != nil {
		return "", fmt.Errorf("create processed dir: %w", err)
	}
	dest := filepath.Join(t.processedDir, filepath.Base(path))
	if err := os.Rename(path, dest); err != nil {
		if err := copyFile(path, dest); err != nil {
			return "", fmt.Errorf("archive %s: %w", path, err)
		}
		if err := os.Remove(path); err != nil {
			return "", fmt.Errorf("remove archived original: %w", err)
		}
	}
	t.log.Info("file archived", "from", path, "to", dest)
	return dest, nil
}

func deriveStatus(result *pipeline.RunResult) string {
	total := len(result.States)
	switch {
	case total == 0 || result.Accepted() == 0:
		return StatusFailed
	case result.Accepted() == total:
		return StatusCompleted
	default:
		return StatusPartiallyCompleted
	}
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
