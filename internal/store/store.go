// File: internal/store/store.go

// Package store persists analysis jobs in PostgreSQL. It implements the same
// repository contract as the in-memory registry so the service can swap
// between them based on configuration.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	json "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
)

// DBPool abstracts pgxpool.Pool so the store can be tested against a mock.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Store provides a PostgreSQL implementation of the analysis repository.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ schemas.AnalysisRepository = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

// NewPool opens a pgx connection pool for connString and verifies it. The
// returned cleanup closes the pool.
func NewPool(ctx context.Context, connString string, logger *zap.Logger) (*pgxpool.Pool, func(), error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to parse PGX pool config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("unable to create PGX connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	cleanup := func() {
		logger.Info("Closing PostgreSQL connection pool.")
		pool.Close()
	}
	return pool, cleanup, nil
}

// InitSchema creates the analyses table and its indexes if they do not exist.
func (s *Store) InitSchema(ctx context.Context) error {
	statements := []string{
		`
        CREATE TABLE IF NOT EXISTS analyses (
            id          TEXT PRIMARY KEY,
            target_url  TEXT NOT NULL,
            status      TEXT NOT NULL,
            started_at  TIMESTAMPTZ NOT NULL,
            finished_at TIMESTAMPTZ,
            error       TEXT NOT NULL DEFAULT '',
            record      JSONB
        );
        `,
		`
        CREATE INDEX IF NOT EXISTS analyses_started_at_idx ON analyses (started_at DESC);
        `,
	}

	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize analyses schema: %w", err)
		}
	}
	return nil
}

// Add inserts a new analysis job. The id must be unique.
func (s *Store) Add(ctx context.Context, job *schemas.AnalysisJob) error {
	if job == nil || job.ID == "" {
		return errors.New("analysis job requires an id")
	}

	record, err := marshalRecord(job.Record)
	if err != nil {
		return err
	}

	sqlInsert := `
        INSERT INTO analyses (id, target_url, status, started_at, finished_at, error, record)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	_, err = s.pool.Exec(ctx, sqlInsert,
		job.ID, job.TargetURL, string(job.Status),
		job.StartedAt.UTC(), utcOrNil(job.FinishedAt), job.Error, record,
	)
	if err != nil {
		return fmt.Errorf("failed to insert analysis %s: %w", job.ID, err)
	}
	return nil
}

// Update stores the job's current state. Once a job has reached a terminal
// status, later writes may refresh its record but never move it back to a
// non-terminal status.
func (s *Store) Update(ctx context.Context, job *schemas.AnalysisJob) error {
	if job == nil || job.ID == "" {
		return errors.New("analysis job requires an id")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	var currentStr string
	row := tx.QueryRow(ctx, `SELECT status FROM analyses WHERE id = $1 FOR UPDATE;`, job.ID)
	if err := row.Scan(&currentStr); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return schemas.ErrAnalysisNotFound
		}
		return fmt.Errorf("failed to load analysis %s: %w", job.ID, err)
	}

	status := job.Status
	if current := schemas.AnalysisStatus(currentStr); current.Terminal() && !status.Terminal() {
		s.log.Debug("Ignoring status regression for finished analysis.",
			zap.String("analysis_id", job.ID),
			zap.String("current", string(current)),
			zap.String("requested", string(status)))
		status = current
	}

	record, err := marshalRecord(job.Record)
	if err != nil {
		return err
	}

	sqlUpdate := `
        UPDATE analyses
        SET status = $2, finished_at = COALESCE($3, finished_at), error = $4, record = $5
        WHERE id = $1;
    `
	if _, err := tx.Exec(ctx, sqlUpdate,
		job.ID, string(status), utcOrNil(job.FinishedAt), job.Error, record,
	); err != nil {
		return fmt.Errorf("failed to update analysis %s: %w", job.ID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Get returns the job with the given id.
func (s *Store) Get(ctx context.Context, id string) (*schemas.AnalysisJob, error) {
	sqlGet := `
        SELECT id, target_url, status, started_at, finished_at, error, record
        FROM analyses
        WHERE id = $1;
    `
	rows, err := s.pool.Query(ctx, sqlGet, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query analysis %s: %w", id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("error during row iteration: %w", err)
		}
		return nil, schemas.ErrAnalysisNotFound
	}
	return scanAnalysis(rows)
}

// List returns all jobs, newest first.
func (s *Store) List(ctx context.Context) ([]*schemas.AnalysisJob, error) {
	sqlList := `
        SELECT id, target_url, status, started_at, finished_at, error, record
        FROM analyses
        ORDER BY started_at DESC, id ASC;
    `
	rows, err := s.pool.Query(ctx, sqlList)
	if err != nil {
		return nil, fmt.Errorf("failed to query analyses: %w", err)
	}
	defer rows.Close()

	var jobs []*schemas.AnalysisJob
	for rows.Next() {
		job, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return jobs, nil
}

func scanAnalysis(rows pgx.Rows) (*schemas.AnalysisJob, error) {
	var (
		job       schemas.AnalysisJob
		statusStr string
		recordRaw []byte
	)
	if err := rows.Scan(
		&job.ID, &job.TargetURL, &statusStr,
		&job.StartedAt, &job.FinishedAt, &job.Error, &recordRaw,
	); err != nil {
		return nil, fmt.Errorf("failed to scan analysis row: %w", err)
	}
	job.Status = schemas.AnalysisStatus(statusStr)

	if len(recordRaw) > 0 {
		var record schemas.ExtractionRecord
		if err := json.Unmarshal(recordRaw, &record); err != nil {
			return nil, fmt.Errorf("failed to decode analysis record: %w", err)
		}
		job.Record = &record
	}
	return &job, nil
}

func marshalRecord(record *schemas.ExtractionRecord) ([]byte, error) {
	if record == nil {
		return nil, nil
	}
	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analysis record: %w", err)
	}
	return data, nil
}

func utcOrNil(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	utc := t.UTC()
	return &utc
}
