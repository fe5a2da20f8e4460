package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apexsuite/siteaudit/internal/audit"
)

func TestJobStoreLifecycle(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	job := audit.Job{ID: "job-1", RequesterID: "user-1", Status: audit.JobStatusPending}

	require.NoError(t, store.CreateJob(ctx, job))
	require.Error(t, store.CreateJob(ctx, job), "duplicate ID must be rejected")

	require.NoError(t, store.UpdateStatus(ctx, job.ID, audit.JobStatusRunning, ""))
	require.NoError(t, store.UpdateProgress(ctx, job.ID, audit.Progress{
		CurrentURL: "https://example.com", CurrentStep: "crawling", TotalURLs: 2,
	}))
	require.NoError(t, store.AppendResult(ctx, job.ID, audit.Result{
		URL: "https://example.com", Status: audit.ResultSuccess,
	}))
	require.NoError(t, store.SetSummary(ctx, job.ID, audit.Summary{OverallScore: 88}))
	require.NoError(t, store.SetReportPath(ctx, job.ID, "audits/job-1/report.pdf"))
	require.NoError(t, store.UpdateStatus(ctx, job.ID, audit.JobStatusCompleted, ""))

	final, err := store.GetJob(ctx, job.ID)
	require.NoError(t, err)
	require.Equal(t, audit.JobStatusCompleted, final.Status)
	require.NotNil(t, final.Started)
	require.NotNil(t, final.Completed)
	require.Len(t, final.Results, 1)
	require.Equal(t, 88.0, final.Summary.OverallScore)
	require.Equal(t, "audits/job-1/report.pdf", final.ReportPath)
	require.Equal(t, "crawling", final.Progress.CurrentStep)
}

func TestJobStoreGetReturnsCopy(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	require.NoError(t, store.CreateJob(ctx, audit.Job{
		ID: "job-1", RequesterID: "user-1",
		URLs:   []string{"https://example.com"},
		Status: audit.JobStatusPending,
	}))
	require.NoError(t, store.AppendResult(ctx, "job-1", audit.Result{URL: "https://example.com"}))

	got, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	got.URLs[0] = "modified"
	got.Results[0].URL = "modified"

	again, err := store.GetJob(ctx, "job-1")
	require.NoError(t, err)
	require.Equal(t, "https://example.com", again.URLs[0])
	require.Equal(t, "https://example.com", again.Results[0].URL)
}

func TestJobStoreOneActiveJobPerRequester(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()

	require.NoError(t, store.CreateJob(ctx, audit.Job{
		ID: "job-1", RequesterID: "user-1", Status: audit.JobStatusPending,
	}))

	err := store.CreateJob(ctx, audit.Job{
		ID: "job-2", RequesterID: "user-1", Status: audit.JobStatusPending,
	})
	require.ErrorIs(t, err, audit.ErrConflict)

	// other requesters are unaffected
	require.NoError(t, store.CreateJob(ctx, audit.Job{
		ID: "job-3", RequesterID: "user-2", Status: audit.JobStatusPending,
	}))

	// once the first job terminates the slot frees up
	require.NoError(t, store.UpdateStatus(ctx, "job-1", audit.JobStatusFailed, "boom"))
	require.NoError(t, store.CreateJob(ctx, audit.Job{
		ID: "job-4", RequesterID: "user-1", Status: audit.JobStatusPending,
	}))
}

func TestJobStoreConcurrentSubmissionsAdmitExactlyOne(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()

	const attempts = 32
	var wg sync.WaitGroup
	errs := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.CreateJob(ctx, audit.Job{
				ID:          fmt.Sprintf("job-%d", i),
				RequesterID: "user-1",
				Status:      audit.JobStatusPending,
			})
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			require.ErrorIs(t, err, audit.ErrConflict)
		}
	}
	require.Equal(t, 1, admitted)
}

func TestJobStoreDeleteJob(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()

	require.ErrorIs(t, store.DeleteJob(ctx, "missing"), audit.ErrNotFound)

	require.NoError(t, store.CreateJob(ctx, audit.Job{
		ID: "job-1", RequesterID: "user-1", Status: audit.JobStatusPending,
	}))
	require.NoError(t, store.UpdateStatus(ctx, "job-1", audit.JobStatusRunning, ""))
	require.ErrorIs(t, store.DeleteJob(ctx, "job-1"), audit.ErrRunning)

	require.NoError(t, store.UpdateStatus(ctx, "job-1", audit.JobStatusCompleted, ""))
	require.NoError(t, store.DeleteJob(ctx, "job-1"))

	_, err := store.GetJob(ctx, "job-1")
	require.ErrorIs(t, err, audit.ErrNotFound)
}
