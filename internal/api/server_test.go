package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/audit"
	"github.com/apexsuite/siteaudit/internal/config"
)

type fakeService struct {
	submitID  string
	submitErr error
	job       audit.Job
	statusErr error
	report    []byte
	reportErr error
	deleteErr error

	lastRequester string
	lastRaw       string
	lastLanguage  string
}

func (s *fakeService) Submit(_ context.Context, requesterID, rawURLs, language string) (string, error) {
	s.lastRequester = requesterID
	s.lastRaw = rawURLs
	s.lastLanguage = language
	return s.submitID, s.submitErr
}

func (s *fakeService) Status(_ context.Context, requesterID, _ string) (audit.Job, error) {
	s.lastRequester = requesterID
	return s.job, s.statusErr
}

func (s *fakeService) Report(_ context.Context, requesterID, _ string) ([]byte, error) {
	s.lastRequester = requesterID
	return s.report, s.reportErr
}

func (s *fakeService) Delete(_ context.Context, requesterID, _ string) error {
	s.lastRequester = requesterID
	return s.deleteErr
}

func newTestServer(service *fakeService, cfg config.Config) *Server {
	return NewServer(service, cfg, zap.NewNop())
}

func doRequest(server *Server, method, path, body, userID string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req := httptest.NewRequest(method, path, reader)
	if userID != "" {
		req.Header.Set(userIDHeader, userID)
	}
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	return rec
}

func TestServer_SubmitAudit_Accepted(t *testing.T) {
	t.Parallel()

	service := &fakeService{submitID: "audit-1"}
	server := newTestServer(service, config.Config{})

	rec := doRequest(server, http.MethodPost, "/v1/audits",
		`{"urls":"https://example.com","language":"de"}`, "user-1")

	require.Equal(t, http.StatusAccepted, rec.Code)
	require.Contains(t, rec.Body.String(), "audit-1")
	require.Equal(t, "user-1", service.lastRequester)
	require.Equal(t, "https://example.com", service.lastRaw)
	require.Equal(t, "de", service.lastLanguage)
}

func TestServer_SubmitAudit_MissingIdentity(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{}, config.Config{})
	rec := doRequest(server, http.MethodPost, "/v1/audits", `{"urls":"https://example.com"}`, "")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), userIDHeader)
}

func TestServer_SubmitAudit_InvalidJSON(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{}, config.Config{})
	rec := doRequest(server, http.MethodPost, "/v1/audits", "{invalid", "user-1")

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_SubmitAudit_ErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "validation failure",
			err:        &audit.ValidationError{Problems: []string{"url 1: unsupported scheme"}},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "conflict",
			err:        audit.ErrConflict,
			wantStatus: http.StatusConflict,
		},
		{
			name:       "forbidden",
			err:        audit.ErrForbidden,
			wantStatus: http.StatusForbidden,
		},
		{
			name:       "unexpected",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			server := newTestServer(&fakeService{submitErr: tt.err}, config.Config{})
			rec := doRequest(server, http.MethodPost, "/v1/audits",
				`{"urls":"https://example.com"}`, "user-1")
			require.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestServer_GetAudit_ReturnsJob(t *testing.T) {
	t.Parallel()

	service := &fakeService{job: audit.Job{
		ID:     "audit-1",
		Status: audit.JobStatusCompleted,
		Progress: audit.Progress{
			CompletedURLs: 2,
			TotalURLs:     2,
		},
	}}
	server := newTestServer(service, config.Config{})

	rec := doRequest(server, http.MethodGet, "/v1/audits/audit-1", "", "user-1")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"completed"`)
	require.Contains(t, rec.Body.String(), `"completed_urls":2`)
}

func TestServer_GetAudit_NotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{statusErr: audit.ErrNotFound}, config.Config{})
	rec := doRequest(server, http.MethodGet, "/v1/audits/missing", "", "user-1")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_GetAuditReport_ServesPDF(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{report: []byte("%PDF-1.7")}, config.Config{})
	rec := doRequest(server, http.MethodGet, "/v1/audits/audit-1/report", "", "user-1")

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	require.Equal(t, "%PDF-1.7", rec.Body.String())
}

func TestServer_GetAuditReport_Unavailable(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{reportErr: audit.ErrReportUnavailable}, config.Config{})
	rec := doRequest(server, http.MethodGet, "/v1/audits/audit-1/report", "", "user-1")

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_DeleteAudit(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{}, config.Config{})
	rec := doRequest(server, http.MethodDelete, "/v1/audits/audit-1", "", "user-1")
	require.Equal(t, http.StatusNoContent, rec.Code)

	server = newTestServer(&fakeService{deleteErr: audit.ErrRunning}, config.Config{})
	rec = doRequest(server, http.MethodDelete, "/v1/audits/audit-1", "", "user-1")
	require.Equal(t, http.StatusConflict, rec.Code)

	server = newTestServer(&fakeService{deleteErr: audit.ErrNotFound}, config.Config{})
	rec = doRequest(server, http.MethodDelete, "/v1/audits/audit-1", "", "user-1")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_HealthEndpoints(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{}, config.Config{})

	rec := doRequest(server, http.MethodGet, "/healthz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(server, http.MethodGet, "/readyz", "", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(server, http.MethodGet, "/metrics", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_APIKeyMiddleware(t *testing.T) {
	t.Parallel()

	cfg := config.Config{Auth: config.AuthConfig{Enabled: true, APIKey: "secret"}}
	server := newTestServer(&fakeService{submitID: "audit-1"}, cfg)

	rec := doRequest(server, http.MethodPost, "/v1/audits", `{"urls":"https://example.com"}`, "user-1")
	require.Equal(t, http.StatusForbidden, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/v1/audits",
		bytes.NewBufferString(`{"urls":"https://example.com"}`))
	req.Header.Set(userIDHeader, "user-1")
	req.Header.Set("X-API-Key", "secret")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)
}

func TestServer_RequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	server := newTestServer(&fakeService{}, config.Config{})
	rec := doRequest(server, http.MethodGet, "/healthz", "", "")
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
