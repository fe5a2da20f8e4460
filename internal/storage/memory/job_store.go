// Package memory provides in-memory store implementations for development
// and testing.
package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// JobStore keeps audit jobs in process memory. A single mutex makes the
// per-requester admission check and the insert one atomic step.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]audit.Job
}

// NewJobStore constructs a JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]audit.Job)}
}

// CreateJob inserts a pending job, claiming the requester's active slot.
// It fails with ErrConflict while the requester has a non-terminal job.
func (s *JobStore) CreateJob(_ context.Context, job audit.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errors.New("job already exists")
	}
	for _, existing := range s.jobs {
		if existing.RequesterID == job.RequesterID && !existing.Status.IsTerminal() {
			return audit.ErrConflict
		}
	}
	s.jobs[job.ID] = cloneJob(job)
	return nil
}

// GetJob fetches a job snapshot by ID.
func (s *JobStore) GetJob(_ context.Context, jobID string) (audit.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.Job{}, audit.ErrNotFound
	}
	return cloneJob(job), nil
}

// UpdateStatus transitions the job and stamps started/completed times.
func (s *JobStore) UpdateStatus(_ context.Context, jobID string, status audit.JobStatus, errText string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrNotFound
	}
	job.Status = status
	job.ErrorText = errText
	now := time.Now().UTC()
	if status == audit.JobStatusRunning && job.Started == nil {
		job.Started = pointerTime(now)
	}
	if status.IsTerminal() {
		job.Completed = pointerTime(now)
	}
	s.jobs[jobID] = job
	return nil
}

// UpdateProgress overwrites the progress snapshot.
func (s *JobStore) UpdateProgress(_ context.Context, jobID string, progress audit.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrNotFound
	}
	job.Progress = progress
	s.jobs[jobID] = job
	return nil
}

// AppendResult adds one per-URL result to the job.
func (s *JobStore) AppendResult(_ context.Context, jobID string, result audit.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrNotFound
	}
	job.Results = append(job.Results, result)
	s.jobs[jobID] = job
	return nil
}

// SetSummary records the cross-URL aggregate.
func (s *JobStore) SetSummary(_ context.Context, jobID string, summary audit.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrNotFound
	}
	job.Summary = &summary
	s.jobs[jobID] = job
	return nil
}

// SetReportPath records where the rendered report was stored.
func (s *JobStore) SetReportPath(_ context.Context, jobID string, path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrNotFound
	}
	job.ReportPath = path
	s.jobs[jobID] = job
	return nil
}

// DeleteJob removes a job unless it is still running.
func (s *JobStore) DeleteJob(_ context.Context, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[jobID]
	if !ok {
		return audit.ErrNotFound
	}
	if job.Status == audit.JobStatusRunning {
		return audit.ErrRunning
	}
	delete(s.jobs, jobID)
	return nil
}

func cloneJob(job audit.Job) audit.Job {
	cp := job
	cp.URLs = append([]string(nil), job.URLs...)
	cp.Results = append([]audit.Result(nil), job.Results...)
	if job.Summary != nil {
		summary := *job.Summary
		cp.Summary = &summary
	}
	return cp
}

func pointerTime(t time.Time) *time.Time {
	ts := t
	return &ts
}
