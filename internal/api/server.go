package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/audit"
	"github.com/apexsuite/siteaudit/internal/config"
	"github.com/apexsuite/siteaudit/internal/metrics"
)

// userIDHeader carries the requester identity set by the upstream gateway.
const userIDHeader = "X-User-ID"

// AuditService is the pipeline surface the handlers call.
type AuditService interface {
	Submit(ctx context.Context, requesterID, rawURLs, language string) (string, error)
	Status(ctx context.Context, requesterID, jobID string) (audit.Job, error)
	Report(ctx context.Context, requesterID, jobID string) ([]byte, error)
	Delete(ctx context.Context, requesterID, jobID string) error
}

// Server wires HTTP handlers to the audit pipeline.
type Server struct {
	router  chi.Router
	service AuditService
	logger  *zap.Logger
	cfg     config.Config
}

// NewServer constructs a Server with middleware and routes.
func NewServer(service AuditService, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		service: service,
		logger:  logger,
		cfg:     cfg,
	}
	metrics.Init()
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/audits", func(r chi.Router) {
			r.Post("/", s.submitAudit)
			r.Route("/{audit_id}", func(r chi.Router) {
				r.Get("/", s.getAudit)
				r.Get("/report", s.getAuditReport)
				r.Delete("/", s.deleteAudit)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type submitAuditRequest struct {
	URLs     string `json:"urls"`
	Language string `json:"language"`
}

func (s *Server) submitAudit(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := s.requester(w, r)
	if !ok {
		return
	}
	var req submitAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	jobID, err := s.service.Submit(r.Context(), requesterID, req.URLs, req.Language)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"audit_id": jobID})
}

func (s *Server) getAudit(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := s.requester(w, r)
	if !ok {
		return
	}
	job, err := s.service.Status(r.Context(), requesterID, chi.URLParam(r, "audit_id"))
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) getAuditReport(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := s.requester(w, r)
	if !ok {
		return
	}
	jobID := chi.URLParam(r, "audit_id")
	data, err := s.service.Report(r.Context(), requesterID, jobID)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="audit-`+jobID+`.pdf"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		s.logger.Error("write report response failed", zap.Error(err))
	}
}

func (s *Server) deleteAudit(w http.ResponseWriter, r *http.Request) {
	requesterID, ok := s.requester(w, r)
	if !ok {
		return
	}
	if err := s.service.Delete(r.Context(), requesterID, chi.URLParam(r, "audit_id")); err != nil {
		s.writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// requester extracts the gateway-provided identity; requests without one are
// rejected before they reach the service.
func (s *Server) requester(w http.ResponseWriter, r *http.Request) (string, bool) {
	requesterID := r.Header.Get(userIDHeader)
	if requesterID == "" {
		writeError(w, http.StatusBadRequest, "missing "+userIDHeader+" header")
		return "", false
	}
	return requesterID, true
}

// writeServiceError maps pipeline errors to the HTTP taxonomy.
func (s *Server) writeServiceError(w http.ResponseWriter, err error) {
	var verr *audit.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":    "invalid URL batch",
			"problems": verr.Problems,
		})
	case errors.Is(err, audit.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, audit.ErrConflict):
		writeError(w, http.StatusConflict, "an audit is already in progress for this user")
	case errors.Is(err, audit.ErrRunning):
		writeError(w, http.StatusConflict, "audit is still running")
	case errors.Is(err, audit.ErrNotFound):
		writeError(w, http.StatusNotFound, "audit not found")
	case errors.Is(err, audit.ErrReportUnavailable):
		writeError(w, http.StatusNotFound, "report not available")
	default:
		s.logger.Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
