// Package postgres provides Postgres-backed persistence implementations.
//
// The job store expects an audit_jobs table:
//
//	CREATE TABLE audit_jobs (
//	    id            TEXT PRIMARY KEY,
//	    requester_id  TEXT NOT NULL,
//	    urls          JSONB NOT NULL,
//	    language      TEXT NOT NULL,
//	    status        TEXT NOT NULL,
//	    progress      JSONB NOT NULL DEFAULT '{}',
//	    results       JSONB NOT NULL DEFAULT '[]',
//	    summary       JSONB,
//	    report_path   TEXT NOT NULL DEFAULT '',
//	    error_text    TEXT NOT NULL DEFAULT '',
//	    submitted_at  TIMESTAMPTZ NOT NULL,
//	    started_at    TIMESTAMPTZ,
//	    completed_at  TIMESTAMPTZ
//	);
//	CREATE UNIQUE INDEX audit_jobs_requester_active
//	    ON audit_jobs (requester_id) WHERE status IN ('pending', 'running');
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// JobStoreConfig controls the Postgres connection pool used for audit jobs.
type JobStoreConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type dbPool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	QueryRow(context.Context, string, ...any) pgx.Row
	Close()
}

// JobStore persists audit jobs in Postgres.
type JobStore struct {
	pool dbPool
}

// NewJobStore creates a Postgres-backed JobStore using the provided config.
func NewJobStore(ctx context.Context, cfg JobStoreConfig) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &JobStore{pool: pool}, nil
}

// NewJobStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewJobStoreWithPool(pool dbPool) (*JobStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &JobStore{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *JobStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a pending job, claiming the requester's single active
// slot. The conditional insert rejects the common case without an error;
// two statements racing under READ COMMITTED can both pass the NOT EXISTS
// check against their own snapshots, so the unique partial index on
// requester_id is what actually serializes them, surfacing as a 23505
// on the loser.
func (s *JobStore) CreateJob(ctx context.Context, job audit.Job) error {
	urlsJSON, err := json.Marshal(job.URLs)
	if err != nil {
		return fmt.Errorf("marshal urls: %w", err)
	}
	progressJSON, err := json.Marshal(job.Progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	query := `
INSERT INTO audit_jobs (id, requester_id, urls, language, status, progress, submitted_at)
SELECT $1, $2, $3, $4, $5, $6, $7
WHERE NOT EXISTS (
	SELECT 1 FROM audit_jobs
	WHERE requester_id = $2 AND status IN ('pending', 'running')
)`
	tag, err := s.pool.Exec(ctx, query,
		job.ID, job.RequesterID, urlsJSON, job.Language, string(job.Status), progressJSON, job.Submitted)
	if err != nil {
		var pgErr *pgconn.PgError
		// 23505 unique_violation on audit_jobs_requester_active
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return audit.ErrConflict
		}
		return fmt.Errorf("insert job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrConflict
	}
	return nil
}

// GetJob fetches a job by ID.
func (s *JobStore) GetJob(ctx context.Context, jobID string) (audit.Job, error) {
	query := `
SELECT id, requester_id, urls, language, status, progress, results, summary,
       report_path, error_text, submitted_at, started_at, completed_at
FROM audit_jobs
WHERE id = $1`

	var (
		job          audit.Job
		status       string
		urlsJSON     []byte
		progressJSON []byte
		resultsJSON  []byte
		summaryJSON  []byte
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.ID,
		&job.RequesterID,
		&urlsJSON,
		&job.Language,
		&status,
		&progressJSON,
		&resultsJSON,
		&summaryJSON,
		&job.ReportPath,
		&job.ErrorText,
		&job.Submitted,
		&job.Started,
		&job.Completed,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return audit.Job{}, audit.ErrNotFound
		}
		return audit.Job{}, fmt.Errorf("get job: %w", err)
	}
	job.Status = audit.JobStatus(status)
	if err := json.Unmarshal(urlsJSON, &job.URLs); err != nil {
		return audit.Job{}, fmt.Errorf("unmarshal urls: %w", err)
	}
	if err := json.Unmarshal(progressJSON, &job.Progress); err != nil {
		return audit.Job{}, fmt.Errorf("unmarshal progress: %w", err)
	}
	if err := json.Unmarshal(resultsJSON, &job.Results); err != nil {
		return audit.Job{}, fmt.Errorf("unmarshal results: %w", err)
	}
	if len(summaryJSON) > 0 {
		var summary audit.Summary
		if err := json.Unmarshal(summaryJSON, &summary); err != nil {
			return audit.Job{}, fmt.Errorf("unmarshal summary: %w", err)
		}
		job.Summary = &summary
	}
	return job, nil
}

// UpdateStatus transitions the job and stamps started/completed times.
func (s *JobStore) UpdateStatus(ctx context.Context, jobID string, status audit.JobStatus, errText string) error {
	query := `
UPDATE audit_jobs SET
	status = $2,
	error_text = $3,
	started_at = CASE WHEN $2 = 'running' THEN COALESCE(started_at, now()) ELSE started_at END,
	completed_at = CASE WHEN $2 IN ('completed', 'failed') THEN now() ELSE completed_at END
WHERE id = $1`
	tag, err := s.pool.Exec(ctx, query, jobID, string(status), errText)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// UpdateProgress overwrites the progress snapshot.
func (s *JobStore) UpdateProgress(ctx context.Context, jobID string, progress audit.Progress) error {
	progressJSON, err := json.Marshal(progress)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_jobs SET progress = $2 WHERE id = $1`, jobID, progressJSON)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// AppendResult adds one per-URL result to the job's results array.
func (s *JobStore) AppendResult(ctx context.Context, jobID string, result audit.Result) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_jobs SET results = results || $2::jsonb WHERE id = $1`, jobID, resultJSON)
	if err != nil {
		return fmt.Errorf("append job result: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// SetSummary records the cross-URL aggregate.
func (s *JobStore) SetSummary(ctx context.Context, jobID string, summary audit.Summary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_jobs SET summary = $2 WHERE id = $1`, jobID, summaryJSON)
	if err != nil {
		return fmt.Errorf("set job summary: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// SetReportPath records where the rendered report was stored.
func (s *JobStore) SetReportPath(ctx context.Context, jobID string, path string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_jobs SET report_path = $2 WHERE id = $1`, jobID, path)
	if err != nil {
		return fmt.Errorf("set job report path: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return audit.ErrNotFound
	}
	return nil
}

// DeleteJob removes a job unless it is still running. The status guard is
// part of the DELETE itself so the check and the removal are one statement.
func (s *JobStore) DeleteJob(ctx context.Context, jobID string) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM audit_jobs WHERE id = $1 AND status <> 'running'`, jobID)
	if err != nil {
		return fmt.Errorf("delete job: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}
	var status string
	err = s.pool.QueryRow(ctx,
		`SELECT status FROM audit_jobs WHERE id = $1`, jobID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return audit.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check job status: %w", err)
	}
	return audit.ErrRunning
}
