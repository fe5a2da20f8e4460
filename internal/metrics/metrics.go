// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditJobsStartedTotal      prometheus.Counter
	auditJobsTotal             *prometheus.CounterVec
	auditStageDurationSeconds  *prometheus.HistogramVec
	auditActiveJobs            prometheus.Gauge
	auditURLsProcessedTotal    *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditJobsStartedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "audit_jobs_started_total",
				Help: "Total number of audit jobs that began executing.",
			},
		)

		auditJobsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_jobs_total",
				Help: "Total number of finished audit jobs, labeled by terminal status.",
			},
			[]string{"status"},
		)

		auditStageDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audit_stage_duration_seconds",
				Help:    "Histogram of per-URL stage latencies, labeled by stage.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"stage"},
		)

		auditActiveJobs = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_active_jobs",
				Help: "Number of audit jobs currently executing.",
			},
		)

		auditURLsProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_urls_processed_total",
				Help: "Total number of URLs processed, labeled by result status.",
			},
			[]string{"status"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveJobStarted increments the started counter and the active gauge.
func ObserveJobStarted() {
	auditJobsStartedTotal.Inc()
	auditActiveJobs.Inc()
}

// ObserveJobFinished records the terminal status and releases the active slot.
func ObserveJobFinished(status string) {
	auditJobsTotal.WithLabelValues(status).Inc()
	auditActiveJobs.Dec()
}

// ObserveStage records the duration of one pipeline stage for one URL.
func ObserveStage(stage string, duration time.Duration) {
	auditStageDurationSeconds.WithLabelValues(stage).Observe(duration.Seconds())
}

// ObserveURLProcessed counts one per-URL result by status.
func ObserveURLProcessed(status string) {
	auditURLsProcessedTotal.WithLabelValues(status).Inc()
}
