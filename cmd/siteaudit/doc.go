// Package main hosts the site audit service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, and audit endpoints. Requests carry the requester
//     identity in X-User-ID; submissions are validated and handed to the pipeline, which answers with a job ID
//     for polling.
//   - Validation: internal/validate screens every raw URL batch before any job exists. Scheme, parseability,
//     batch size, and resolved-address checks (loopback, private ranges, link-local, cloud metadata hosts) all
//     fail closed, so nothing is persisted for a bad batch.
//   - Audit pipeline: internal/pipeline runs each admitted job on a detached goroutine. Per URL it crawls via
//     the Colly-based fetcher, captures desktop/mobile screenshots through the Chromedp pool when enabled,
//     computes performance findings, and optionally calls the content analyzer. A failing URL is recorded as an
//     error result without failing the job; summary aggregation failure fails the whole job.
//   - Reporting & persistence: job state lives in the configured JobStore (memory or Postgres, with a single
//     active job per requester enforced in the store). Screenshots and the rendered PDF report go to the
//     BlobStore (memory/GCS). Report rendering is best effort: a job completes even when the PDF does not.
//   - Configuration & plumbing: Viper populates config from env/files (SITEAUDIT_ prefix); zap provides
//     structured logging; Prometheus metrics are exported via the metrics middleware and /metrics handler;
//     audit events fan out to Pub/Sub when a topic is configured.
//
// Operational notes:
//   - Concurrency model: one job per requester, URLs processed sequentially within a job; headless captures have
//     their own semaphore inside the screenshot service. Shutdown is coordinated via context cancellation from
//     main through the HTTP server.
//   - Observability: zap logs carry job IDs and URLs at stage transitions; Prometheus counters/histograms track
//     API and pipeline activity. Tracing is not yet wired in.
//   - Cloud Run: the HTTP server listens on the configured port, health endpoints (/healthz, /readyz) remain
//     lightweight, and the process reacts to SIGTERM for graceful drain.
//
// Quick checklist:
//   - Configure env vars: SITEAUDIT_SERVER_PORT, SITEAUDIT_AUDIT_MAX_URLS, SITEAUDIT_SCREENSHOT_ENABLED,
//     SITEAUDIT_CONTENT_ENABLED plus SITEAUDIT_CONTENT_API_KEY, storage (SITEAUDIT_STORAGE_*), database DSN
//     when the postgres backend is selected, and pubsub project/topic for audit event fanout.
//   - Run locally: go run ./cmd/siteaudit -config config.yaml (or rely solely on env overrides).
package main
