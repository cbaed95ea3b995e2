// File: internal/store/store_test.go
package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/api/schemas"
)

// flexibleSQLMatcher creates a regex that is insensitive to whitespace for more robust SQL mock testing.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

// ArgumentMatcherFunc is a helper to create inline mock matchers.
type ArgumentMatcherFunc func(interface{}) bool

func (f ArgumentMatcherFunc) Match(v interface{}) bool {
	return f(v)
}

// anyArg accepts any value (used for timestamps and serialized records).
var anyArg = ArgumentMatcherFunc(func(v interface{}) bool {
	return true
})

const (
	sqlSelectForUpdate = `SELECT status FROM analyses WHERE id = $1 FOR UPDATE;`
	sqlUpdateAnalysis  = `
        UPDATE analyses
        SET status = $2, finished_at = COALESCE($3, finished_at), error = $4, record = $5
        WHERE id = $1;
    `
	sqlInsertAnalysis = `
        INSERT INTO analyses (id, target_url, status, started_at, finished_at, error, record)
        VALUES ($1, $2, $3, $4, $5, $6, $7);
    `
	sqlGetAnalysis = `
        SELECT id, target_url, status, started_at, finished_at, error, record
        FROM analyses
        WHERE id = $1;
    `
	sqlListAnalyses = `
        SELECT id, target_url, status, started_at, finished_at, error, record
        FROM analyses
        ORDER BY started_at DESC, id ASC;
    `
)

var analysisColumns = []string{"id", "target_url", "status", "started_at", "finished_at", "error", "record"}

func newMockStore(t *testing.T) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	store, err := New(context.Background(), mockPool, zap.NewNop())
	require.NoError(t, err)
	return store, mockPool
}

func TestNewStore(t *testing.T) {
	t.Run("should return error if ping fails", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()

		pingErr := errors.New("database unavailable")
		mockPool.ExpectPing().WillReturnError(pingErr)

		_, err = New(context.Background(), mockPool, zap.NewNop())
		require.Error(t, err)
		assert.ErrorIs(t, err, pingErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestInitSchema(t *testing.T) {
	store, mockPool := newMockStore(t)

	mockPool.ExpectExec(`CREATE TABLE IF NOT EXISTS analyses`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mockPool.ExpectExec(`CREATE INDEX IF NOT EXISTS analyses_started_at_idx`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, store.InitSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestStoreAdd(t *testing.T) {
	ctx := context.Background()

	t.Run("should insert a pending job", func(t *testing.T) {
		store, mockPool := newMockStore(t)

		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertAnalysis)).
			WithArgs("job-1", "https://shop.example.dk", "PENDING", anyArg, anyArg, "", anyArg).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		job := &schemas.AnalysisJob{
			ID:        "job-1",
			TargetURL: "https://shop.example.dk",
			Status:    schemas.StatusPending,
			StartedAt: time.Now(),
		}
		require.NoError(t, store.Add(ctx, job))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should reject job without id", func(t *testing.T) {
		store, _ := newMockStore(t)
		assert.Error(t, store.Add(ctx, &schemas.AnalysisJob{}))
	})

	t.Run("should propagate insert failure", func(t *testing.T) {
		store, mockPool := newMockStore(t)

		insertErr := errors.New("duplicate key value violates unique constraint")
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertAnalysis)).
			WithArgs("job-1", "https://shop.example.dk", "PENDING", anyArg, anyArg, "", anyArg).
			WillReturnError(insertErr)

		job := &schemas.AnalysisJob{
			ID:        "job-1",
			TargetURL: "https://shop.example.dk",
			Status:    schemas.StatusPending,
			StartedAt: time.Now(),
		}
		err := store.Add(ctx, job)
		require.Error(t, err)
		assert.ErrorIs(t, err, insertErr)
	})
}

func TestStoreGet(t *testing.T) {
	ctx := context.Background()

	t.Run("should decode a completed job with record", func(t *testing.T) {
		store, mockPool := newMockStore(t)

		started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		finished := started.Add(90 * time.Second)
		recordJSON := []byte(`{"payment_url":"https://pay.altapaysecure.com/abc123","payment_providers":["Visa","Dankort"],"raw_response":"PAYMENT_URL: https://pay.altapaysecure.com/abc123"}`)

		rows := pgxmock.NewRows(analysisColumns).
			AddRow("job-1", "https://shop.example.dk/checkout", "COMPLETED", started, &finished, "", recordJSON)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetAnalysis)).
			WithArgs("job-1").
			WillReturnRows(rows)

		job, err := store.Get(ctx, "job-1")
		require.NoError(t, err)
		assert.Equal(t, schemas.StatusCompleted, job.Status)
		require.NotNil(t, job.FinishedAt)
		assert.True(t, job.FinishedAt.Equal(finished))
		require.NotNil(t, job.Record)
		assert.Equal(t, "https://pay.altapaysecure.com/abc123", job.Record.PaymentURL)
		assert.Equal(t, []string{"Visa", "Dankort"}, job.Record.PaymentProviders)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should return not found for unknown id", func(t *testing.T) {
		store, mockPool := newMockStore(t)

		mockPool.ExpectQuery(flexibleSQLMatcher(sqlGetAnalysis)).
			WithArgs("missing").
			WillReturnRows(pgxmock.NewRows(analysisColumns))

		_, err := store.Get(ctx, "missing")
		assert.ErrorIs(t, err, schemas.ErrAnalysisNotFound)
	})
}

func TestStoreUpdate(t *testing.T) {
	ctx := context.Background()

	runningJob := func() *schemas.AnalysisJob {
		return &schemas.AnalysisJob{
			ID:        "job-1",
			TargetURL: "https://shop.example.dk",
			Status:    schemas.StatusRunning,
			StartedAt: time.Now(),
		}
	}

	t.Run("should store new state", func(t *testing.T) {
		store, mockPool := newMockStore(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectForUpdate)).
			WithArgs("job-1").
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("PENDING"))
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpdateAnalysis)).
			WithArgs("job-1", "RUNNING", anyArg, "", anyArg).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.Update(ctx, runningJob()))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should keep terminal status on regression", func(t *testing.T) {
		store, mockPool := newMockStore(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectForUpdate)).
			WithArgs("job-1").
			WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("COMPLETED"))
		// A stale RUNNING write must persist the existing COMPLETED status.
		mockPool.ExpectExec(flexibleSQLMatcher(sqlUpdateAnalysis)).
			WithArgs("job-1", "COMPLETED", anyArg, "", anyArg).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, store.Update(ctx, runningJob()))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should return not found for unknown id", func(t *testing.T) {
		store, mockPool := newMockStore(t)

		mockPool.ExpectBegin()
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectForUpdate)).
			WithArgs("job-1").
			WillReturnError(pgx.ErrNoRows)
		mockPool.ExpectRollback()

		err := store.Update(ctx, runningJob())
		assert.ErrorIs(t, err, schemas.ErrAnalysisNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("should handle transaction begin failure", func(t *testing.T) {
		store, mockPool := newMockStore(t)

		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		err := store.Update(ctx, runningJob())
		require.Error(t, err)
		assert.ErrorIs(t, err, beginErr)
	})
}

func TestStoreList(t *testing.T) {
	store, mockPool := newMockStore(t)

	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := pgxmock.NewRows(analysisColumns).
		AddRow("job-2", "https://boutique.example.fr", "RUNNING", started.Add(time.Minute), nil, "", nil).
		AddRow("job-1", "https://shop.example.dk", "FAILED", started, nil, "browser crashed", nil)
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlListAnalyses)).
		WillReturnRows(rows)

	jobs, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "job-2", jobs[0].ID)
	assert.Equal(t, schemas.StatusRunning, jobs[0].Status)
	assert.Nil(t, jobs[0].FinishedAt)
	assert.Nil(t, jobs[0].Record)
	assert.Equal(t, "job-1", jobs[1].ID)
	assert.Equal(t, "browser crashed", jobs[1].Error)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
