// Package report renders a completed audit into a PDF artifact.
package report

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// PDFEngine converts rendered HTML into PDF bytes.
type PDFEngine interface {
	Print(ctx context.Context, html string) ([]byte, error)
}

// Renderer builds the report document and stores it in the blob store.
type Renderer struct {
	engine PDFEngine
	blobs  audit.BlobStore
	prefix string
	logger *zap.Logger
}

// New constructs a Renderer.
func New(engine PDFEngine, blobs audit.BlobStore, prefix string, logger *zap.Logger) *Renderer {
	if prefix == "" {
		prefix = "audits"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Renderer{engine: engine, blobs: blobs, prefix: prefix, logger: logger}
}

// Render serializes the job into a PDF and stores it under the job's
// namespace, returning the blob path.
func (r *Renderer) Render(ctx context.Context, job audit.Job) (string, error) {
	html, err := BuildHTML(job)
	if err != nil {
		return "", fmt.Errorf("build report html: %w", err)
	}
	pdf, err := r.engine.Print(ctx, html)
	if err != nil {
		return "", fmt.Errorf("print report pdf: %w", err)
	}
	path := fmt.Sprintf("%s/%s/report.pdf", r.prefix, job.ID)
	if _, err := r.blobs.Put(ctx, path, "application/pdf", pdf); err != nil {
		return "", fmt.Errorf("store report: %w", err)
	}
	return path, nil
}

type reportView struct {
	Job         audit.Job
	GeneratedAt string
}

// BuildHTML renders the self-contained report document.
func BuildHTML(job audit.Job) (string, error) {
	var buf bytes.Buffer
	view := reportView{
		Job:         job,
		GeneratedAt: time.Now().UTC().Format(time.RFC1123),
	}
	if err := reportTemplate.Execute(&buf, view); err != nil {
		return "", fmt.Errorf("execute template: %w", err)
	}
	return buf.String(), nil
}

var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Site Audit Report</title>
<style>
body { font-family: Helvetica, Arial, sans-serif; margin: 40px; color: #1a1a2e; }
h1 { border-bottom: 2px solid #1a1a2e; padding-bottom: 8px; }
h2 { margin-top: 32px; }
table { border-collapse: collapse; width: 100%; margin-top: 12px; }
th, td { border: 1px solid #ccc; padding: 6px 10px; text-align: left; font-size: 13px; }
.critical { color: #c0392b; font-weight: bold; }
.warning { color: #d68910; }
.info { color: #2471a3; }
.score { font-size: 40px; font-weight: bold; }
</style>
</head>
<body>
<h1>Site Audit Report</h1>
<p>Generated {{.GeneratedAt}} &middot; {{len .Job.URLs}} URLs audited</p>

{{with .Job.Summary}}
<h2>Overall Score</h2>
<p class="score">{{printf "%.0f" .OverallScore}}/100</p>
<p>{{.ExecutiveSummary}}</p>

<h2>Category Scores</h2>
<table>
<tr><th>Technical</th><th>Content</th><th>Performance</th><th>Accessibility</th></tr>
<tr>
<td>{{printf "%.0f" .CategoryScores.Technical}}</td>
<td>{{printf "%.0f" .CategoryScores.Content}}</td>
<td>{{printf "%.0f" .CategoryScores.Performance}}</td>
<td>{{printf "%.0f" .CategoryScores.Accessibility}}</td>
</tr>
</table>

{{if .TopIssues}}
<h2>Top Issues</h2>
<table>
<tr><th>Severity</th><th>Category</th><th>Issue</th><th>Recommendation</th></tr>
{{range .TopIssues}}
<tr>
<td class="{{.Severity}}">{{.Severity}}</td>
<td>{{.Category}}</td>
<td>{{.Title}}</td>
<td>{{.Recommendation}}</td>
</tr>
{{end}}
</table>
{{end}}
{{end}}

<h2>Per-URL Results</h2>
<table>
<tr><th>URL</th><th>Status</th><th>Issues</th></tr>
{{range .Job.Results}}
<tr>
<td>{{.URL}}</td>
<td>{{.Status}}{{if .ErrorText}} &mdash; {{.ErrorText}}{{end}}</td>
<td>{{len .Issues}}</td>
</tr>
{{end}}
</table>
</body>
</html>`))
