package perf

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/apexsuite/siteaudit/internal/audit"
)

func healthyCrawl() *audit.CrawlData {
	return &audit.CrawlData{
		StatusCode:      200,
		LoadTimeMs:      800,
		Title:           "Acme Widgets",
		MetaDescription: "Widgets for every occasion",
		CanonicalURL:    "https://acme.example/",
		OpenGraph:       map[string]string{"og:title": "Acme"},
		Headings:        []audit.Heading{{Level: 1, Text: "Widgets"}},
		Images:          []audit.Image{{Src: "/a.png", HasAlt: true}},
		WordCount:       500,
		HasViewportMeta: true,
		StructuredData:  []string{`{"@type":"Organization"}`},
	}
}

func TestAnalyze_HealthyPageScoresHigh(t *testing.T) {
	t.Parallel()

	scores, cwv := Analyze(healthyCrawl())
	require.NotNil(t, scores)

	for name, s := range map[string]*float64{
		"performance":    scores.Performance,
		"accessibility":  scores.Accessibility,
		"best_practices": scores.BestPractices,
		"seo":            scores.SEO,
	} {
		require.NotNil(t, s, name)
		require.GreaterOrEqual(t, *s, 80.0, name)
		require.LessOrEqual(t, *s, 100.0, name)
	}

	require.NotNil(t, cwv.TTFB)
	require.NotNil(t, cwv.FCP)
	require.NotNil(t, cwv.LCP)
	require.Less(t, *cwv.TTFB, *cwv.FCP)
	require.Less(t, *cwv.FCP, *cwv.LCP)
}

func TestAnalyze_DegradesGracefully(t *testing.T) {
	t.Parallel()

	crawl := &audit.CrawlData{StatusCode: 500}
	scores, cwv := Analyze(crawl)

	require.Nil(t, scores.Performance) // no load time signal
	require.NotNil(t, scores.Accessibility)
	require.NotNil(t, scores.SEO)
	require.Nil(t, cwv.TTFB)
	require.Nil(t, cwv.LCP)
}

func TestAnalyze_NilCrawl(t *testing.T) {
	t.Parallel()

	scores, cwv := Analyze(nil)
	require.Nil(t, scores)
	require.Nil(t, cwv)
}

func TestAnalyze_SlowPagePenalized(t *testing.T) {
	t.Parallel()

	crawl := healthyCrawl()
	crawl.LoadTimeMs = 12000
	scores, _ := Analyze(crawl)
	require.NotNil(t, scores.Performance)
	require.LessOrEqual(t, *scores.Performance, 10.0)
}

func TestAnalyze_MissingAltAndViewport(t *testing.T) {
	t.Parallel()

	crawl := healthyCrawl()
	crawl.Images = []audit.Image{{Src: "/a.png"}, {Src: "/b.png"}}
	crawl.HasViewportMeta = false
	scores, _ := Analyze(crawl)
	require.NotNil(t, scores.Accessibility)
	require.LessOrEqual(t, *scores.Accessibility, 40.0)
}

func TestAnalyze_Deterministic(t *testing.T) {
	t.Parallel()

	a1, c1 := Analyze(healthyCrawl())
	a2, c2 := Analyze(healthyCrawl())
	require.Equal(t, *a1.Performance, *a2.Performance)
	require.Equal(t, *a1.SEO, *a2.SEO)
	require.Equal(t, *c1.LCP, *c2.LCP)
}
