// Package audit defines core types shared across the site-audit subsystems.
package audit

import "time"

// JobStatus represents the lifecycle state of an audit job.
type JobStatus string

// Job status values persisted in the job store. Transitions are monotonic:
// pending -> running -> completed|failed.
const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status admits no further transitions.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// StaleRunningCutoff is the age after which a running job with no terminal
// transition may be considered orphaned by an operator reaper. The service
// itself never reaps; the constant documents the store contract.
const StaleRunningCutoff = 30 * time.Minute

// Progress is the externally observable pipeline position. It is overwritten
// on every stage transition, never appended to. CompletedURLs only increases
// within a job's lifetime.
type Progress struct {
	CurrentURL    string `json:"current_url"`
	CurrentStep   string `json:"current_step"`
	CompletedURLs int    `json:"completed_urls"`
	TotalURLs     int    `json:"total_urls"`
}

// Job represents the metadata persisted for each submitted audit request.
type Job struct {
	ID          string     `json:"id"`
	RequesterID string     `json:"requester_id"`
	URLs        []string   `json:"urls"`
	Language    string     `json:"language"`
	Status      JobStatus  `json:"status"`
	Progress    Progress   `json:"progress"`
	Results     []Result   `json:"results"`
	Summary     *Summary   `json:"summary,omitempty"`
	ReportPath  string     `json:"report_path,omitempty"`
	ErrorText   string     `json:"error_text,omitempty"`
	Submitted   time.Time  `json:"submitted_at"`
	Started     *time.Time `json:"started_at,omitempty"`
	Completed   *time.Time `json:"completed_at,omitempty"`
}

// ResultStatus tags a Result as the success or error variant.
type ResultStatus string

// Result variant tags.
const (
	ResultSuccess ResultStatus = "success"
	ResultError   ResultStatus = "error"
)

// Result is the per-URL outcome. The error variant carries only ErrorText
// and any issues raised for the failure; all analysis payloads are nil.
// A Result is recorded for every input URL, success or not.
type Result struct {
	URL              string            `json:"url"`
	Status           ResultStatus      `json:"status"`
	ErrorText        string            `json:"error,omitempty"`
	Crawl            *CrawlData        `json:"crawl,omitempty"`
	Issues           []Issue           `json:"issues"`
	LighthouseScores *LighthouseScores `json:"lighthouse_scores,omitempty"`
	CoreWebVitals    *CoreWebVitals    `json:"core_web_vitals,omitempty"`
	AIAnalysis       *AIAnalysis       `json:"ai_analysis,omitempty"`
	HasSitemap       *bool             `json:"has_sitemap,omitempty"`
	HasRobotsTxt     *bool             `json:"has_robots_txt,omitempty"`
}

// CrawlData captures everything extracted from a single fetched page.
type CrawlData struct {
	StatusCode        int               `json:"status_code"`
	LoadTimeMs        int64             `json:"load_time_ms"`
	Title             string            `json:"title"`
	MetaDescription   string            `json:"meta_description"`
	CanonicalURL      string            `json:"canonical_url"`
	OpenGraph         map[string]string `json:"open_graph"`
	Headings          []Heading         `json:"headings"`
	Images            []Image           `json:"images"`
	Links             []Link            `json:"links"`
	WordCount         int               `json:"word_count"`
	HasViewportMeta   bool              `json:"has_viewport_meta"`
	StructuredData    []string          `json:"structured_data"`
	DesktopScreenshot string            `json:"desktop_screenshot,omitempty"`
	MobileScreenshot  string            `json:"mobile_screenshot,omitempty"`
}

// Heading is a document heading with its level (1-3).
type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

// Image records an img element and whether alt text is present.
type Image struct {
	Src    string `json:"src"`
	HasAlt bool   `json:"has_alt"`
}

// Link records an anchor and whether it leaves the page's host.
type Link struct {
	Href     string `json:"href"`
	External bool   `json:"external"`
}

// LighthouseScores are 0-100 category scores; nil means not computable.
type LighthouseScores struct {
	Performance   *float64 `json:"performance"`
	Accessibility *float64 `json:"accessibility"`
	BestPractices *float64 `json:"best_practices"`
	SEO           *float64 `json:"seo"`
}

// CoreWebVitals are lab estimates of the standard field metrics.
// Each is nil when the underlying signal was unavailable.
type CoreWebVitals struct {
	LCP  *float64 `json:"lcp"`
	FID  *float64 `json:"fid"`
	CLS  *float64 `json:"cls"`
	FCP  *float64 `json:"fcp"`
	TTFB *float64 `json:"ttfb"`
}

// AIAnalysis is the model-assisted content assessment for one URL.
// Quality scores are on a fixed 0-100 scale.
type AIAnalysis struct {
	ContentQuality   float64  `json:"content_quality"`
	Readability      float64  `json:"readability"`
	KeywordRelevance float64  `json:"keyword_relevance"`
	Recommendations  []string `json:"recommendations"`
	Summary          string   `json:"summary"`
}

// Severity classifies an Issue.
type Severity string

// Issue severities, ordered critical > warning > info.
const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank returns a sortable weight, higher is more severe.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 3
	case SeverityWarning:
		return 2
	case SeverityInfo:
		return 1
	default:
		return 0
	}
}

// Issue categories used by the synthesizer and summary.
const (
	CategoryTechnical     = "technical"
	CategoryContent       = "content"
	CategoryPerformance   = "performance"
	CategoryAccessibility = "accessibility"
	CategorySEO           = "seo"
)

// Issue is an immutable finding derived from per-URL signals.
type Issue struct {
	Severity       Severity `json:"severity"`
	Category       string   `json:"category"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Recommendation string   `json:"recommendation"`
}

// CategoryScores aggregates per-URL signals into 0-100 category means.
type CategoryScores struct {
	Technical     float64 `json:"technical"`
	Content       float64 `json:"content"`
	Performance   float64 `json:"performance"`
	Accessibility float64 `json:"accessibility"`
}

// IssueCounts tallies issues by severity across all URLs.
type IssueCounts struct {
	Critical int `json:"critical"`
	Warning  int `json:"warning"`
	Info     int `json:"info"`
}

// Summary is the cross-URL aggregate, set exactly once on a non-failed
// terminal transition. It is a pure function of the Results sequence.
type Summary struct {
	OverallScore     float64        `json:"overall_score"`
	CategoryScores   CategoryScores `json:"category_scores"`
	TopIssues        []Issue        `json:"top_issues"`
	ExecutiveSummary string         `json:"executive_summary"`
	TotalIssues      IssueCounts    `json:"total_issues"`
}

// Viewport selects the emulated device for a screenshot capture.
type Viewport struct {
	Width  int
	Height int
	Mobile bool
}

// Standard viewports captured for every crawled page.
var (
	ViewportDesktop = Viewport{Width: 1366, Height: 768}
	ViewportMobile  = Viewport{Width: 390, Height: 844, Mobile: true}
)
