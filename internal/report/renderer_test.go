package report

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/audit"
)

type fakeEngine struct {
	pdf []byte
	err error
}

func (e *fakeEngine) Print(context.Context, string) ([]byte, error) {
	return e.pdf, e.err
}

type fakeBlobs struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBlobs() *fakeBlobs {
	return &fakeBlobs{objects: make(map[string][]byte)}
}

func (b *fakeBlobs) Put(_ context.Context, path, _ string, data []byte) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = append([]byte(nil), data...)
	return path, nil
}

func (b *fakeBlobs) Get(_ context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.objects[path], nil
}

func (b *fakeBlobs) DeleteDirectory(context.Context, string) error { return nil }

func completedJob() audit.Job {
	now := time.Now().UTC()
	return audit.Job{
		ID:       "job-42",
		URLs:     []string{"https://a.example", "https://b.example"},
		Status:   audit.JobStatusCompleted,
		Language: "en",
		Results: []audit.Result{
			{
				URL:    "https://a.example",
				Status: audit.ResultSuccess,
				Issues: []audit.Issue{{
					Severity: audit.SeverityWarning, Category: audit.CategorySEO,
					Title: "Missing meta description", Recommendation: "Add one.",
				}},
			},
			{
				URL: "https://b.example", Status: audit.ResultError, ErrorText: "timeout",
				Issues: []audit.Issue{{
					Severity: audit.SeverityCritical, Category: audit.CategoryTechnical,
					Title: "Page unreachable", Recommendation: "Check the server.",
				}},
			},
		},
		Summary: &audit.Summary{
			OverallScore: 71.5,
			CategoryScores: audit.CategoryScores{
				Technical: 80, Content: 65, Performance: 70, Accessibility: 72,
			},
			TopIssues: []audit.Issue{{
				Severity: audit.SeverityCritical, Category: audit.CategoryTechnical,
				Title: "Page unreachable", Recommendation: "Check the server.",
			}},
			ExecutiveSummary: "1 of 2 pages were audited successfully.",
			TotalIssues:      audit.IssueCounts{Critical: 1, Warning: 1},
		},
		Submitted: now,
	}
}

func TestBuildHTML_IncludesSummaryAndResults(t *testing.T) {
	t.Parallel()

	html, err := BuildHTML(completedJob())
	require.NoError(t, err)

	require.True(t, strings.Contains(html, "72/100") || strings.Contains(html, "71/100"))
	require.Contains(t, html, "Page unreachable")
	require.Contains(t, html, "https://a.example")
	require.Contains(t, html, "https://b.example")
	require.Contains(t, html, "timeout")
	require.Contains(t, html, "1 of 2 pages")
}

func TestRender_StoresPDFUnderJobNamespace(t *testing.T) {
	t.Parallel()

	blobs := newFakeBlobs()
	r := New(&fakeEngine{pdf: []byte("%PDF-1.7")}, blobs, "audits", zap.NewNop())

	path, err := r.Render(context.Background(), completedJob())
	require.NoError(t, err)
	require.Equal(t, "audits/job-42/report.pdf", path)
	require.Equal(t, []byte("%PDF-1.7"), blobs.objects[path])
}

func TestRender_EngineFailurePropagates(t *testing.T) {
	t.Parallel()

	r := New(&fakeEngine{err: errors.New("no chrome")}, newFakeBlobs(), "", zap.NewNop())
	_, err := r.Render(context.Background(), completedJob())
	require.Error(t, err)
}
