package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"carstudio/internal/domain"
)

// BatchMirror writes finished batch job records into Postgres so history
// survives restarts. The in-memory registry stays authoritative while a job
// runs; the mirror is written once, at the terminal transition, on a
// best-effort basis.
type BatchMirror struct {
	pool *pgxpool.Pool
}

const batchMirrorSchema = `
CREATE TABLE IF NOT EXISTS batch_jobs (
	id           TEXT PRIMARY KEY,
	model        TEXT NOT NULL DEFAULT '',
	total        INT NOT NULL,
	done         INT NOT NULL,
	failed       INT NOT NULL,
	status       TEXT NOT NULL,
	errors       JSONB NOT NULL DEFAULT '[]',
	zip_url      TEXT NOT NULL DEFAULT '',
	created_at   TIMESTAMPTZ NOT NULL,
	completed_at TIMESTAMPTZ
)`

const batchMirrorUpsert = `
INSERT INTO batch_jobs (id, model, total, done, failed, status, errors, zip_url, created_at, completed_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
ON CONFLICT (id) DO UPDATE SET
	done = EXCLUDED.done,
	failed = EXCLUDED.failed,
	status = EXCLUDED.status,
	errors = EXCLUDED.errors,
	zip_url = EXCLUDED.zip_url,
	completed_at = EXCLUDED.completed_at`

// NewBatchMirror ensures the history table exists and returns the mirror.
func NewBatchMirror(ctx context.Context, pool *pgxpool.Pool) (*BatchMirror, error) {
	if pool == nil {
		return nil, fmt.Errorf("registry: pool is required")
	}
	if _, err := pool.Exec(ctx, batchMirrorSchema); err != nil {
		return nil, fmt.Errorf("registry: ensure batch_jobs table: %w", err)
	}
	return &BatchMirror{pool: pool}, nil
}

// Record upserts the job snapshot. Safe to call with a nil receiver so the
// processor does not have to branch on whether a database is configured.
func (m *BatchMirror) Record(ctx context.Context, job domain.BatchJob) error {
	if m == nil {
		return nil
	}
	errsJSON, err := json.Marshal(job.Errors)
	if err != nil {
		return fmt.Errorf("registry: encode errors: %w", err)
	}
	if len(job.Errors) == 0 {
		errsJSON = []byte("[]")
	}
	var completedAt any
	if !job.CompletedAt.IsZero() {
		completedAt = job.CompletedAt
	}
	_, err = m.pool.Exec(ctx, batchMirrorUpsert,
		job.ID, job.Model, job.Total, job.Done, job.Failed,
		string(job.Status), errsJSON, job.ZipURL, job.CreatedAt, completedAt,
	)
	if err != nil {
		return fmt.Errorf("registry: record batch job: %w", err)
	}
	return nil
}
