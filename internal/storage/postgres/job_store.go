// Package postgres persists export jobs in PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/iconshelf/internal/exportjob"
)

const defaultTable = "export_jobs"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// JobStore implements exportjob.Store on a single table.
type JobStore struct {
	pool  pool
	table string
	now   func() time.Time
}

// NewJobStore connects to Postgres using cfg.
func NewJobStore(ctx context.Context, cfg Config, now func() time.Time) (*JobStore, error) {
	if cfg.DSN == "" {
		return nil, errors.New("jobs.dsn is required")
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewJobStoreWithPool(p, cfg.Table, now)
	if err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewJobStoreWithPool constructs a store from an existing pool.
func NewJobStoreWithPool(p pool, table string, now func() time.Time) (*JobStore, error) {
	if p == nil {
		return nil, errors.New("pool is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &JobStore{pool: p, table: table, now: now}, nil
}

// Close releases the underlying pool.
func (s *JobStore) Close() error {
	s.pool.Close()
	return nil
}

// EnsureSchema creates the jobs table when it does not exist.
func (s *JobStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	id            UUID PRIMARY KEY,
	status        TEXT NOT NULL,
	query         TEXT NOT NULL DEFAULT '',
	category      TEXT NOT NULL DEFAULT '',
	total         INTEGER NOT NULL DEFAULT 0,
	processed     INTEGER NOT NULL DEFAULT 0,
	icon_count    INTEGER NOT NULL DEFAULT 0,
	failed        INTEGER NOT NULL DEFAULT 0,
	message       TEXT NOT NULL DEFAULT '',
	error_text    TEXT NOT NULL DEFAULT '',
	artifact_path TEXT NOT NULL DEFAULT '',
	artifact_uri  TEXT NOT NULL DEFAULT '',
	file_name     TEXT NOT NULL DEFAULT '',
	created_at    TIMESTAMPTZ NOT NULL,
	started_at    TIMESTAMPTZ,
	finished_at   TIMESTAMPTZ
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create %s: %w", s.table, err)
	}
	return nil
}

// CreateJob inserts job; an empty status means queued.
func (s *JobStore) CreateJob(ctx context.Context, job exportjob.Job) error {
	if job.ID == uuid.Nil {
		return errors.New("job id is required")
	}
	if job.Status == "" {
		job.Status = exportjob.StatusQueued
	}
	if job.Created.IsZero() {
		job.Created = s.now()
	}
	query := fmt.Sprintf(`
INSERT INTO %s (id, status, query, category, total, processed, icon_count, failed, message, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`, s.table)
	_, err := s.pool.Exec(ctx, query,
		job.ID,
		string(job.Status),
		job.Query,
		job.Category,
		job.Counters.Total,
		job.Counters.Processed,
		job.Counters.IconCount,
		job.Counters.Failed,
		job.Message,
		job.Created,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateJobStatus stores status, message and counters. started_at and
// finished_at are set once, on the first running and terminal update.
func (s *JobStore) UpdateJobStatus(
	ctx context.Context,
	id uuid.UUID,
	status exportjob.Status,
	message string,
	counters exportjob.Counters,
) error {
	started, finished := s.stamps(status)
	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, message = $3, total = $4, processed = $5, icon_count = $6, failed = $7,
	started_at = COALESCE(started_at, $8), finished_at = COALESCE(finished_at, $9)
WHERE id = $1`, s.table)
	return s.update(ctx, id, "update job status", query,
		id,
		string(status),
		message,
		counters.Total,
		counters.Processed,
		counters.IconCount,
		counters.Failed,
		started,
		finished,
	)
}

// SetArtifact records where the finished library was stored.
func (s *JobStore) SetArtifact(ctx context.Context, id uuid.UUID, path, uri, fileName string) error {
	query := fmt.Sprintf(`
UPDATE %s SET artifact_path = $2, artifact_uri = $3, file_name = $4 WHERE id = $1`, s.table)
	return s.update(ctx, id, "set artifact", query, id, path, uri, fileName)
}

// FailJob moves a job to failed.
func (s *JobStore) FailJob(ctx context.Context, id uuid.UUID, message, errText string) error {
	_, finished := s.stamps(exportjob.StatusFailed)
	query := fmt.Sprintf(`
UPDATE %s
SET status = $2, message = $3, error_text = $4, finished_at = COALESCE(finished_at, $5)
WHERE id = $1`, s.table)
	return s.update(ctx, id, "fail job", query, id, string(exportjob.StatusFailed), message, errText, finished)
}

// GetJob loads a job or returns exportjob.ErrJobNotFound.
func (s *JobStore) GetJob(ctx context.Context, id uuid.UUID) (exportjob.Job, error) {
	query := fmt.Sprintf(`
SELECT status, query, category, total, processed, icon_count, failed, message, error_text,
	artifact_path, artifact_uri, file_name, created_at, started_at, finished_at
FROM %s WHERE id = $1`, s.table)

	var (
		job    exportjob.Job
		status string
	)
	err := s.pool.QueryRow(ctx, query, id).Scan(
		&status,
		&job.Query,
		&job.Category,
		&job.Counters.Total,
		&job.Counters.Processed,
		&job.Counters.IconCount,
		&job.Counters.Failed,
		&job.Message,
		&job.ErrorText,
		&job.ArtifactPath,
		&job.ArtifactURI,
		&job.FileName,
		&job.Created,
		&job.Started,
		&job.Finished,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return exportjob.Job{}, fmt.Errorf("job %s: %w", id, exportjob.ErrJobNotFound)
	}
	if err != nil {
		return exportjob.Job{}, fmt.Errorf("get job: %w", err)
	}
	job.ID = id
	job.Status = exportjob.Status(status)
	return job, nil
}

func (s *JobStore) update(ctx context.Context, id uuid.UUID, op, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("job %s: %w", id, exportjob.ErrJobNotFound)
	}
	return nil
}

// stamps returns the candidate started/finished timestamps for status.
func (s *JobStore) stamps(status exportjob.Status) (started, finished *time.Time) {
	now := s.now()
	if status == exportjob.StatusRunning {
		started = &now
	}
	if status.Terminal() {
		finished = &now
	}
	return started, finished
}

var _ exportjob.Store = (*JobStore)(nil)
