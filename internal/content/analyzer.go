// Package content produces the AI-assisted content assessment for one page.
package content

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"
	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/audit"
)

const (
	// DefaultModel is used when no model is configured.
	DefaultModel = "gpt-4o-mini"

	// DefaultTimeout bounds a single completion call.
	DefaultTimeout = 60 * time.Second

	// retryBackoff is the wait before the single transient retry.
	retryBackoff = 2 * time.Second

	// maxBodyChars caps how much page text is sent to the model.
	maxBodyChars = 6000
)

// completionAPI is the slice of the OpenAI client the analyzer needs.
type completionAPI interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Analyzer implements audit.ContentAnalyzer with an OpenAI chat completion
// in JSON mode. A transient failure is retried once with backoff; persistent
// failure yields a nil analysis rather than an error, so a flaky model call
// never fails the URL.
type Analyzer struct {
	completions completionAPI
	model       string
	timeout     time.Duration
	backoff     time.Duration
	logger      *zap.Logger
}

// Config selects the model and call budget.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// New creates an Analyzer from config.
func New(cfg Config, logger *zap.Logger) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("content analyzer: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := openai.NewClient(option.WithAPIKey(cfg.APIKey))
	return &Analyzer{
		completions: &client.Chat.Completions,
		model:       cfg.Model,
		timeout:     cfg.Timeout,
		backoff:     retryBackoff,
		logger:      logger,
	}, nil
}

// analysisPayload is the JSON shape requested from the model.
type analysisPayload struct {
	ContentQuality   float64  `json:"content_quality"`
	Readability      float64  `json:"readability"`
	KeywordRelevance float64  `json:"keyword_relevance"`
	Recommendations  []string `json:"recommendations"`
	Summary          string   `json:"summary"`
}

// Analyze assesses the page content. It returns (nil, nil) when the model
// call fails persistently.
func (a *Analyzer) Analyze(ctx context.Context, crawl *audit.CrawlData, language string) (*audit.AIAnalysis, error) {
	if crawl == nil {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	prompt := buildPrompt(crawl, language)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				a.logger.Warn("content analysis abandoned", zap.Error(ctx.Err()))
				return nil, nil
			case <-time.After(a.backoff):
			}
		}
		analysis, err := a.call(ctx, prompt)
		if err == nil {
			return analysis, nil
		}
		lastErr = err
	}

	a.logger.Warn("content analysis failed after retry", zap.Error(lastErr))
	return nil, nil
}

func (a *Analyzer) call(ctx context.Context, prompt string) (*audit.AIAnalysis, error) {
	params := openai.ChatCompletionNewParams{
		Model: shared.ChatModel(a.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(prompt),
		},
		Temperature: openai.Float(0.2),
		ResponseFormat: openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{
				Type: "json_object",
			},
		},
	}

	completion, err := a.completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("completion call: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("no completion choices returned")
	}

	var payload analysisPayload
	if err := json.Unmarshal([]byte(completion.Choices[0].Message.Content), &payload); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}

	return &audit.AIAnalysis{
		ContentQuality:   clampScore(payload.ContentQuality),
		Readability:      clampScore(payload.Readability),
		KeywordRelevance: clampScore(payload.KeywordRelevance),
		Recommendations:  payload.Recommendations,
		Summary:          payload.Summary,
	}, nil
}

func buildPrompt(crawl *audit.CrawlData, language string) string {
	var b strings.Builder
	b.WriteString("You are a content-quality auditor. Assess the page below and respond with a JSON object ")
	b.WriteString(`{"content_quality": 0-100, "readability": 0-100, "keyword_relevance": 0-100, `)
	b.WriteString(`"recommendations": [strings], "summary": string}.`)
	if language != "" {
		fmt.Fprintf(&b, " Write the summary and recommendations in language %q.", language)
	}
	fmt.Fprintf(&b, "\n\nTitle: %s\nMeta description: %s\nWord count: %d\n", crawl.Title, crawl.MetaDescription, crawl.WordCount)
	if len(crawl.Headings) > 0 {
		b.WriteString("Headings:\n")
		for _, h := range crawl.Headings {
			fmt.Fprintf(&b, "  h%d: %s\n", h.Level, h.Text)
		}
	}
	return truncate(b.String(), maxBodyChars)
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// truncate cuts s to at most limit bytes, backing up so the cut never
// splits a UTF-8 sequence.
func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
