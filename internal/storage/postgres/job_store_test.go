package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/apexsuite/siteaudit/internal/audit"
)

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *JobStore) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	store, err := NewJobStoreWithPool(mock)
	require.NoError(t, err)
	return mock, store
}

func TestCreateJobInsertsRow(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	now := time.Unix(1700000000, 0).UTC()
	job := audit.Job{
		ID:          "job-1",
		RequesterID: "user-1",
		URLs:        []string{"https://example.com"},
		Language:    "en",
		Status:      audit.JobStatusPending,
		Progress:    audit.Progress{TotalURLs: 1},
		Submitted:   now,
	}

	mock.ExpectExec("INSERT INTO audit_jobs").
		WithArgs(
			job.ID,
			job.RequesterID,
			[]byte(`["https://example.com"]`),
			job.Language,
			"pending",
			[]byte(`{"current_url":"","current_step":"","completed_urls":0,"total_urls":1}`),
			now,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.CreateJob(context.Background(), job))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateJobConflictWhenRequesterBusy(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("INSERT INTO audit_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := store.CreateJob(context.Background(), audit.Job{
		ID: "job-2", RequesterID: "user-1", Status: audit.JobStatusPending,
	})
	require.ErrorIs(t, err, audit.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobNotFound(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectQuery("SELECT id, requester_id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	_, err := store.GetJob(context.Background(), "missing")
	require.ErrorIs(t, err, audit.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatusUnknownJob(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("UPDATE audit_jobs SET").
		WithArgs("missing", "running", "").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := store.UpdateStatus(context.Background(), "missing", audit.JobStatusRunning, "")
	require.ErrorIs(t, err, audit.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendResultMergesIntoArray(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("UPDATE audit_jobs SET results").
		WithArgs("job-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	err := store.AppendResult(context.Background(), "job-1", audit.Result{
		URL: "https://example.com", Status: audit.ResultSuccess,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteJobRunningGuard(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("DELETE FROM audit_jobs").
		WithArgs("job-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectQuery("SELECT status FROM audit_jobs").
		WithArgs("job-1").
		WillReturnRows(pgxmock.NewRows([]string{"status"}).AddRow("running"))

	err := store.DeleteJob(context.Background(), "job-1")
	require.ErrorIs(t, err, audit.ErrRunning)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteJobRemovesTerminalJob(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("DELETE FROM audit_jobs").
		WithArgs("job-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, store.DeleteJob(context.Background(), "job-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

// Two submissions racing past the NOT EXISTS check settle at the unique
// partial index on requester_id; the losing insert maps to ErrConflict.
func TestCreateJobUniqueViolationMapsToConflict(t *testing.T) {
	t.Parallel()

	mock, store := newMockStore(t)
	mock.ExpectExec("INSERT INTO audit_jobs").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "audit_jobs_requester_active"})

	err := store.CreateJob(context.Background(), audit.Job{
		ID: "job-3", RequesterID: "user-1", Status: audit.JobStatusPending,
	})
	require.ErrorIs(t, err, audit.ErrConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}
