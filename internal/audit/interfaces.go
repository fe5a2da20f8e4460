package audit

import (
	"context"
	"time"
)

// JobStore persists audit jobs with partial field updates, so concurrent
// progress writes never race a whole-record rewrite.
type JobStore interface {
	// CreateJob inserts a pending job and atomically claims the requester's
	// single-active-job slot. It returns ErrConflict when the requester
	// already has a pending or running job. The check and the insert are one
	// operation; there is no window for two concurrent submissions to both
	// pass.
	CreateJob(ctx context.Context, job Job) error
	GetJob(ctx context.Context, jobID string) (Job, error)
	UpdateStatus(ctx context.Context, jobID string, status JobStatus, errText string) error
	UpdateProgress(ctx context.Context, jobID string, progress Progress) error
	AppendResult(ctx context.Context, jobID string, result Result) error
	SetSummary(ctx context.Context, jobID string, summary Summary) error
	SetReportPath(ctx context.Context, jobID string, path string) error
	// DeleteJob removes a job record. It returns ErrRunning while the job is
	// running and ErrNotFound for unknown ids.
	DeleteJob(ctx context.Context, jobID string) error
}

// BlobStore reads and writes artifacts (screenshots, reports) by relative path.
type BlobStore interface {
	Put(ctx context.Context, path string, contentType string, data []byte) (string, error)
	// Get returns nil bytes (and nil error) when the object does not exist.
	Get(ctx context.Context, path string) ([]byte, error)
	// DeleteDirectory removes every object under the prefix.
	DeleteDirectory(ctx context.Context, prefix string) error
}

// Screenshotter captures a rendered page. Implementations bound the capture
// with a timeout; a nil byte slice with nil error means capture was skipped.
type Screenshotter interface {
	Capture(ctx context.Context, url string, viewport Viewport) ([]byte, error)
}

// Crawler fetches and parses a single URL.
type Crawler interface {
	Crawl(ctx context.Context, jobID string, url string) (*CrawlData, SiteFlags, error)
}

// SiteFlags carries the best-effort robots/sitemap probes alongside a crawl.
type SiteFlags struct {
	HasSitemap   *bool
	HasRobotsTxt *bool
}

// ContentAnalyzer produces the AI-assisted assessment for one page.
// A nil analysis with nil error means the analyzer gave up gracefully.
type ContentAnalyzer interface {
	Analyze(ctx context.Context, crawl *CrawlData, language string) (*AIAnalysis, error)
}

// PermissionChecker gates every public operation. It fails closed: any
// unknown identity, module, or action yields an error.
type PermissionChecker interface {
	Require(ctx context.Context, identity, module, action string) error
}

// AuditLogger records actor activity. Implementations are fire-and-forget;
// Record never blocks the caller on sink latency and never returns an error.
type AuditLogger interface {
	Record(actorID, module, entityID, entityType string, payload map[string]any)
}

// Clock returns the current time (swapped for a fake in tests).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job IDs.
type IDGenerator interface {
	NewID() (string, error)
}
