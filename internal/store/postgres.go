// Package store is the optional local Postgres mirror of batch
// summaries. It exists for sites that want batch history queryable
// next to their other lab data even when the remote datastore is the
// source of truth.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/intellisoft-ke/findams/internal/batch"
	"github.com/intellisoft-ke/findams/internal/config"
)

const schema = `
CREATE TABLE IF NOT EXISTS batch_summaries (
	batch_no        TEXT PRIMARY KEY,
	upload_date     TIMESTAMPTZ NOT NULL,
	file_name       TEXT NOT NULL,
	status          TEXT NOT NULL,
	imported        INT NOT NULL DEFAULT 0,
	updated         INT NOT NULL DEFAULT 0,
	deleted         INT NOT NULL DEFAULT 0,
	ignored         INT NOT NULL DEFAULT 0,
	conflict_values JSONB NOT NULL DEFAULT '[]'
);
`

// Store mirrors batch summaries into Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects a pool and ensures the schema exists.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an existing pool; the schema must already exist.
// Tests use it against an embedded server.
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}

// InsertSummary mirrors one batch summary.
func (s *Store) InsertSummary(ctx context.Context, sum batch.Summary) error {
	conflicts, err := json.Marshal(sum.ConflictValues)
	if err != nil {
		return fmt.Errorf("encode conflicts: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO batch_summaries
			(batch_no, upload_date, file_name, status, imported, updated, deleted, ignored, conflict_values)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (batch_no) DO NOTHING`,
		sum.BatchNo, sum.UploadDate, sum.FileName, sum.Status,
		sum.Imported, sum.Updated, sum.Deleted, sum.Ignored, conflicts)
	if err != nil {
		return fmt.Errorf("insert batch summary: %w", err)
	}
	return nil
}

// ListSummaries returns mirrored summaries, newest first.
func (s *Store) ListSummaries(ctx context.Context) ([]batch.Summary, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT batch_no, upload_date, file_name, status,
		       imported, updated, deleted, ignored, conflict_values
		FROM batch_summaries
		ORDER BY upload_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query batch summaries: %w", err)
	}
	defer rows.Close()

	var out []batch.Summary
	for rows.Next() {
		var (
			sum       batch.Summary
			uploaded  time.Time
			conflicts []byte
		)
		if err := rows.Scan(&sum.BatchNo, &uploaded, &sum.FileName, &sum.Status,
			&sum.Imported, &sum.Updated, &sum.Deleted, &sum.Ignored, &conflicts); err != nil {
			return nil, fmt.Errorf("scan batch summary: %w", err)
		}
		sum.UploadDate = uploaded.Format(time.RFC3339)
		if err := json.Unmarshal(conflicts, &sum.ConflictValues); err != nil {
			return nil, fmt.Errorf("decode conflicts: %w", err)
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}
