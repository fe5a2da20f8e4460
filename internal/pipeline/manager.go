// Package pipeline runs the audit job lifecycle from submission to report.
package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/audit"
	"github.com/apexsuite/siteaudit/internal/auth"
	"github.com/apexsuite/siteaudit/internal/issues"
	"github.com/apexsuite/siteaudit/internal/metrics"
	"github.com/apexsuite/siteaudit/internal/perf"
	"github.com/apexsuite/siteaudit/internal/validate"
)

// Progress step labels shown to pollers.
const (
	StepStarting           = "Starting"
	StepCrawling           = "Crawling"
	StepAnalyzePerformance = "Analyzing performance"
	StepAnalyzeContent     = "Analyzing content"
	StepAggregating        = "Generating summary"
	StepRendering          = "Rendering report"
)

// BatchValidator screens raw URL input before any job is persisted.
type BatchValidator interface {
	ValidateBatch(ctx context.Context, raw string) validate.Report
}

// ReportRenderer turns a finished job into a stored PDF, returning its path.
type ReportRenderer interface {
	Render(ctx context.Context, job audit.Job) (string, error)
}

// Config controls Manager behavior.
type Config struct {
	BlobPrefix      string
	DefaultLanguage string
}

// Manager owns the public audit operations and the background execution of
// submitted jobs.
type Manager struct {
	jobs      audit.JobStore
	blobs     audit.BlobStore
	validator BatchValidator
	crawler   audit.Crawler
	content   audit.ContentAnalyzer
	renderer  ReportRenderer
	perms     audit.PermissionChecker
	auditLog  audit.AuditLogger
	clock     audit.Clock
	ids       audit.IDGenerator
	cfg       Config
	logger    *zap.Logger

	// baseCtx detaches job execution from the submitting request.
	baseCtx context.Context
}

// New constructs a Manager.
func New(
	jobs audit.JobStore,
	blobs audit.BlobStore,
	validator BatchValidator,
	crawler audit.Crawler,
	content audit.ContentAnalyzer,
	renderer ReportRenderer,
	perms audit.PermissionChecker,
	auditLog audit.AuditLogger,
	clock audit.Clock,
	ids audit.IDGenerator,
	cfg Config,
	logger *zap.Logger,
) *Manager {
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "audits"
	}
	if cfg.DefaultLanguage == "" {
		cfg.DefaultLanguage = "en"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		jobs:      jobs,
		blobs:     blobs,
		validator: validator,
		crawler:   crawler,
		content:   content,
		renderer:  renderer,
		perms:     perms,
		auditLog:  auditLog,
		clock:     clock,
		ids:       ids,
		cfg:       cfg,
		logger:    logger,
		baseCtx:   context.Background(),
	}
}

// Submit validates the batch, claims the requester's active slot, and starts
// execution on a detached goroutine. No job is persisted when validation
// fails; ErrConflict surfaces when a pending or running job already exists.
func (m *Manager) Submit(ctx context.Context, requesterID, rawURLs, language string) (string, error) {
	if err := m.perms.Require(ctx, requesterID, auth.ModuleAudit, auth.ActionSubmit); err != nil {
		return "", err
	}

	report := m.validator.ValidateBatch(ctx, rawURLs)
	if !report.Valid {
		return "", &audit.ValidationError{Problems: report.Errors}
	}
	for _, warning := range report.Warnings {
		m.logger.Info("batch warning", zap.String("warning", warning))
	}

	jobID, err := m.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("generate job id: %w", err)
	}

	job := audit.Job{
		ID:          jobID,
		RequesterID: requesterID,
		URLs:        report.URLs,
		Language:    m.normalizeLanguage(language),
		Status:      audit.JobStatusPending,
		Progress:    audit.Progress{TotalURLs: len(report.URLs)},
		Submitted:   m.clock.Now(),
	}
	if err := m.jobs.CreateJob(ctx, job); err != nil {
		return "", err
	}

	m.auditLog.Record(requesterID, auth.ModuleAudit, jobID, "job", map[string]any{
		"action":    auth.ActionSubmit,
		"url_count": len(report.URLs),
	})
	m.logger.Info("audit job submitted",
		zap.String("job_id", jobID),
		zap.String("requester_id", requesterID),
		zap.Int("url_count", len(report.URLs)),
	)

	go m.execute(jobID)

	return jobID, nil
}

// Status returns the job snapshot for polling.
func (m *Manager) Status(ctx context.Context, requesterID, jobID string) (audit.Job, error) {
	if err := m.perms.Require(ctx, requesterID, auth.ModuleAudit, auth.ActionView); err != nil {
		return audit.Job{}, err
	}
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return audit.Job{}, err
	}
	m.auditLog.Record(requesterID, auth.ModuleAudit, jobID, "job", map[string]any{
		"action": auth.ActionView,
	})
	return job, nil
}

// Report returns the rendered PDF bytes. It is only available once the job
// completed and a report was stored.
func (m *Manager) Report(ctx context.Context, requesterID, jobID string) ([]byte, error) {
	if err := m.perms.Require(ctx, requesterID, auth.ModuleAudit, auth.ActionReport); err != nil {
		return nil, err
	}
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != audit.JobStatusCompleted || job.ReportPath == "" {
		return nil, audit.ErrReportUnavailable
	}
	data, err := m.blobs.Get(ctx, job.ReportPath)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}
	if data == nil {
		return nil, audit.ErrReportUnavailable
	}
	m.auditLog.Record(requesterID, auth.ModuleAudit, jobID, "job", map[string]any{
		"action": auth.ActionReport,
	})
	return data, nil
}

// Delete removes a job and purges its artifacts. Running jobs cannot be
// deleted.
func (m *Manager) Delete(ctx context.Context, requesterID, jobID string) error {
	if err := m.perms.Require(ctx, requesterID, auth.ModuleAudit, auth.ActionDelete); err != nil {
		return err
	}
	if err := m.jobs.DeleteJob(ctx, jobID); err != nil {
		return err
	}
	prefix := fmt.Sprintf("%s/%s", m.cfg.BlobPrefix, jobID)
	if err := m.blobs.DeleteDirectory(ctx, prefix); err != nil {
		m.logger.Warn("purge job artifacts failed",
			zap.String("job_id", jobID),
			zap.Error(err),
		)
	}
	m.auditLog.Record(requesterID, auth.ModuleAudit, jobID, "job", map[string]any{
		"action": auth.ActionDelete,
	})
	return nil
}

// execute runs the whole pipeline for one job on the manager's base context.
// The error boundary converts panics into a failed job instead of taking the
// process down.
func (m *Manager) execute(jobID string) {
	ctx := m.baseCtx

	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("audit job panicked",
				zap.String("job_id", jobID),
				zap.Any("panic", r),
			)
			m.failJob(ctx, jobID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if err := m.jobs.UpdateStatus(ctx, jobID, audit.JobStatusRunning, ""); err != nil {
		m.logger.Error("mark job running failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	metrics.ObserveJobStarted()

	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		m.logger.Error("load running job failed", zap.String("job_id", jobID), zap.Error(err))
		m.failJob(ctx, jobID, "job record disappeared during execution")
		return
	}

	// Pollers see a progress snapshot as soon as the job is running, before
	// the first URL's crawl step overwrites it.
	m.updateProgress(ctx, jobID, audit.Progress{
		CurrentStep: StepStarting,
		TotalURLs:   len(job.URLs),
	})

	results := make([]audit.Result, 0, len(job.URLs))
	for i, pageURL := range job.URLs {
		result := m.processURL(ctx, job, i, pageURL)
		results = append(results, result)
		if err := m.jobs.AppendResult(ctx, jobID, result); err != nil {
			m.logger.Error("append result failed",
				zap.String("job_id", jobID),
				zap.String("url", pageURL),
				zap.Error(err),
			)
		}
		metrics.ObserveURLProcessed(string(result.Status))
	}

	m.updateProgress(ctx, jobID, audit.Progress{
		CurrentStep:   StepAggregating,
		CompletedURLs: len(job.URLs),
		TotalURLs:     len(job.URLs),
	})

	summary, err := m.aggregate(results, job.Language)
	if err != nil {
		m.logger.Error("aggregation failed", zap.String("job_id", jobID), zap.Error(err))
		m.failJob(ctx, jobID, fmt.Sprintf("summary generation failed: %v", err))
		return
	}
	if err := m.jobs.SetSummary(ctx, jobID, summary); err != nil {
		m.logger.Error("store summary failed", zap.String("job_id", jobID), zap.Error(err))
		m.failJob(ctx, jobID, "failed to store summary")
		return
	}

	m.renderReport(ctx, jobID)

	if err := m.jobs.UpdateStatus(ctx, jobID, audit.JobStatusCompleted, ""); err != nil {
		m.logger.Error("mark job completed failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	metrics.ObserveJobFinished(string(audit.JobStatusCompleted))
	m.logger.Info("audit job completed",
		zap.String("job_id", jobID),
		zap.Int("url_count", len(job.URLs)),
		zap.Float64("overall_score", summary.OverallScore),
	)
}

// processURL runs the crawl, performance, and content stages for one URL.
// Stage failures are contained: a failed crawl yields an error-variant
// result, and analyzer failures degrade to missing signals.
func (m *Manager) processURL(ctx context.Context, job audit.Job, index int, pageURL string) audit.Result {
	m.updateProgress(ctx, job.ID, audit.Progress{
		CurrentURL:    pageURL,
		CurrentStep:   StepCrawling,
		CompletedURLs: index,
		TotalURLs:     len(job.URLs),
	})

	crawlStart := time.Now()
	crawlData, flags, err := m.crawler.Crawl(ctx, job.ID, pageURL)
	metrics.ObserveStage("crawl", time.Since(crawlStart))
	if err != nil {
		m.logger.Warn("crawl failed",
			zap.String("job_id", job.ID),
			zap.String("url", pageURL),
			zap.Error(err),
		)
		result := audit.Result{
			URL:       pageURL,
			Status:    audit.ResultError,
			ErrorText: err.Error(),
		}
		result.Issues = issues.ForURL(result)
		return result
	}

	m.updateProgress(ctx, job.ID, audit.Progress{
		CurrentURL:    pageURL,
		CurrentStep:   StepAnalyzePerformance,
		CompletedURLs: index,
		TotalURLs:     len(job.URLs),
	})
	perfStart := time.Now()
	lighthouse, webVitals := perf.Analyze(crawlData)
	metrics.ObserveStage("performance", time.Since(perfStart))

	m.updateProgress(ctx, job.ID, audit.Progress{
		CurrentURL:    pageURL,
		CurrentStep:   StepAnalyzeContent,
		CompletedURLs: index,
		TotalURLs:     len(job.URLs),
	})
	var analysis *audit.AIAnalysis
	if m.content != nil {
		contentStart := time.Now()
		analysis, err = m.content.Analyze(ctx, crawlData, job.Language)
		metrics.ObserveStage("content", time.Since(contentStart))
		if err != nil {
			m.logger.Warn("content analysis failed",
				zap.String("job_id", job.ID),
				zap.String("url", pageURL),
				zap.Error(err),
			)
			analysis = nil
		}
	}

	result := audit.Result{
		URL:              pageURL,
		Status:           audit.ResultSuccess,
		Crawl:            crawlData,
		LighthouseScores: lighthouse,
		CoreWebVitals:    webVitals,
		AIAnalysis:       analysis,
		HasSitemap:       flags.HasSitemap,
		HasRobotsTxt:     flags.HasRobotsTxt,
	}
	result.Issues = issues.ForURL(result)
	return result
}

// aggregate wraps the summary computation in its own panic boundary: a bug
// here must fail the job, not the process.
func (m *Manager) aggregate(results []audit.Result, language string) (summary audit.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("aggregate panicked: %v", r)
		}
	}()
	summary = issues.Aggregate(results, language)
	return summary, nil
}

// renderReport is best effort: a missing Chrome or a flaky print never fails
// the job.
func (m *Manager) renderReport(ctx context.Context, jobID string) {
	if m.renderer == nil {
		return
	}
	job, err := m.jobs.GetJob(ctx, jobID)
	if err != nil {
		m.logger.Warn("load job for report failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	m.updateProgress(ctx, jobID, audit.Progress{
		CurrentStep:   StepRendering,
		CompletedURLs: len(job.URLs),
		TotalURLs:     len(job.URLs),
	})
	renderStart := time.Now()
	path, err := m.renderer.Render(ctx, job)
	metrics.ObserveStage("report", time.Since(renderStart))
	if err != nil {
		m.logger.Warn("report render failed", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	if err := m.jobs.SetReportPath(ctx, jobID, path); err != nil {
		m.logger.Warn("store report path failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (m *Manager) updateProgress(ctx context.Context, jobID string, progress audit.Progress) {
	if err := m.jobs.UpdateProgress(ctx, jobID, progress); err != nil {
		m.logger.Warn("update progress failed", zap.String("job_id", jobID), zap.Error(err))
	}
}

func (m *Manager) failJob(ctx context.Context, jobID, errText string) {
	if err := m.jobs.UpdateStatus(ctx, jobID, audit.JobStatusFailed, errText); err != nil {
		m.logger.Error("mark job failed errored", zap.String("job_id", jobID), zap.Error(err))
		return
	}
	metrics.ObserveJobFinished(string(audit.JobStatusFailed))
}

func (m *Manager) normalizeLanguage(language string) string {
	language = strings.ToLower(strings.TrimSpace(language))
	switch language {
	case "en", "de":
		return language
	case "":
		return m.cfg.DefaultLanguage
	default:
		m.logger.Info("unsupported language, falling back",
			zap.String("language", language),
			zap.String("fallback", m.cfg.DefaultLanguage),
		)
		return m.cfg.DefaultLanguage
	}
}
