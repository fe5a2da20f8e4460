// Package api hosts the HTTP server, middleware, and REST handlers for the
// audit service. Notable routes:
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/audits for audit submission.
//   - GET /v1/audits/{audit_id} and .../report for polling and download.
//   - DELETE /v1/audits/{audit_id} for removal.
package api
