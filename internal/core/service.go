// Package core provides the business logic tying the import pipeline
// together: saving uploads, running files through submission, keeping
// batch history and archiving handled files.
package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/intellisoft-ke/findams/internal/amc"
	"github.com/intellisoft-ke/findams/internal/batch"
	"github.com/intellisoft-ke/findams/internal/pipeline"
)

// ImportTimeout is the maximum duration for one file's import run.
var ImportTimeout = 10 * time.Minute

// Service coordinates WHONET file imports. Scheduler ticks and manual
// HTTP triggers share one Service; the run mutex keeps a file from
// being processed twice concurrently.
type Service struct {
	pipeline   *pipeline.Pipeline
	tracker    *batch.Tracker
	trigger    amc.Trigger
	inboundDir string
	log        *slog.Logger

	mu sync.Mutex
}

// SetConsumptionTrigger installs the collaborator notified after each
// recorded batch. Without one the default no-op trigger stays.
func (s *Service) SetConsumptionTrigger(t amc.Trigger) {
	s.trigger = t
}

// NewService creates a Service over an inbound directory, creating the
// directory if needed.
func NewService(p *pipeline.Pipeline, tracker *batch.Tracker, inboundDir string, log *slog.Logger) (*Service, error) {
	if err := os.MkdirAll(inboundDir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbound dir: %w", err)
	}
	return &Service{
		pipeline:   p,
		tracker:    tracker,
		trigger:    amc.Disabled{},
		inboundDir: inboundDir,
		log:        log,
	}, nil
}

// SaveUpload stores an uploaded file into the inbound directory and
// returns its path. The stored name keeps the original base name so
// batch summaries stay recognizable.
func (s *Service) SaveUpload(fileName string, r io.Reader) (string, error) {
	base := filepath.Base(fileName)
	if base == "." || base == "/" || base == "" {
		return "", fmt.Errorf("invalid file name %q", fileName)
	}
	dest := filepath.Join(s.inboundDir, base)

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(dest)
		return "", fmt.Errorf("store upload: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("store upload: %w", err)
	}
	return dest, nil
}

// ImportFile runs one file end to end: pipeline, batch summary,
// archive. Contention with a scheduler tick serializes here.
func (s *Service) ImportFile(ctx context.Context, path string) (batch.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.importLocked(ctx, path)
}

func (s *Service) importLocked(ctx context.Context, path string) (batch.Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, ImportTimeout)
	defer cancel()

	content, err := os.ReadFile(path)
	if err != nil {
		return batch.Summary{}, fmt.Errorf("read %s: %w", path, err)
	}

	result, err := s.pipeline.Run(ctx, filepath.Base(path), string(content))
	if err != nil {
		return batch.Summary{}, err
	}

	summary, err := s.tracker.Record(ctx, result)
	if err != nil {
		return summary, err
	}
	if _, err := s.tracker.Archive(path); err != nil {
		return summary, err
	}
	s.trigger.RunCompleted(ctx, summary)
	return summary, nil
}

// ImportPending scans the inbound directory and imports every regular
// file in name order. A failing file is logged and left in place so
// the next scan retries it; the remaining files still run.
func (s *Service) ImportPending(ctx context.Context) ([]batch.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.inboundDir)
	if err != nil {
		return nil, fmt.Errorf("scan inbound dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var summaries []batch.Summary
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return summaries, err
		}
		summary, err := s.importLocked(ctx, filepath.Join(s.inboundDir, name))
		if err != nil {
			s.log.Error("file import failed", "file", name, "error", err)
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Batches returns the recorded batch summary history.
func (s *Service) Batches(ctx context.Context) ([]batch.Summary, error) {
	return s.tracker.List(ctx)
}
