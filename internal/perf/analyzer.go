// Package perf derives Lighthouse-style scores and Core Web Vitals estimates
// from crawl signals. Everything here is a pure function of the crawl result;
// a missing signal yields a nil metric, never an error.
package perf

import (
	"net/http"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// Analyze scores one crawled page. A nil crawl yields nil outputs.
func Analyze(crawl *audit.CrawlData) (*audit.LighthouseScores, *audit.CoreWebVitals) {
	if crawl == nil {
		return nil, nil
	}
	return scores(crawl), vitals(crawl)
}

func scores(crawl *audit.CrawlData) *audit.LighthouseScores {
	return &audit.LighthouseScores{
		Performance:   performanceScore(crawl),
		Accessibility: accessibilityScore(crawl),
		BestPractices: bestPracticesScore(crawl),
		SEO:           seoScore(crawl),
	}
}

// performanceScore maps load time onto 0-100. The bands follow the classic
// Lighthouse TTI buckets: under 1s is excellent, over 10s is unusable.
func performanceScore(crawl *audit.CrawlData) *float64 {
	if crawl.LoadTimeMs <= 0 {
		return nil
	}
	ms := float64(crawl.LoadTimeMs)
	switch {
	case ms <= 1000:
		return ptr(100 - ms/100)
	case ms <= 3000:
		return ptr(90 - (ms-1000)/2000*30)
	case ms <= 10000:
		return ptr(60 - (ms-3000)/7000*50)
	default:
		return ptr(10.0)
	}
}

func accessibilityScore(crawl *audit.CrawlData) *float64 {
	score := 100.0
	if total := len(crawl.Images); total > 0 {
		missing := 0
		for _, img := range crawl.Images {
			if !img.HasAlt {
				missing++
			}
		}
		score -= 40 * float64(missing) / float64(total)
	}
	if !crawl.HasViewportMeta {
		score -= 20
	}
	if !hasH1(crawl) {
		score -= 10
	}
	return ptr(clamp(score))
}

func bestPracticesScore(crawl *audit.CrawlData) *float64 {
	score := 100.0
	if crawl.StatusCode != http.StatusOK {
		score -= 40
	}
	if len(crawl.StructuredData) == 0 {
		score -= 15
	}
	if crawl.CanonicalURL == "" {
		score -= 15
	}
	return ptr(clamp(score))
}

func seoScore(crawl *audit.CrawlData) *float64 {
	score := 100.0
	if crawl.Title == "" {
		score -= 25
	} else if len(crawl.Title) > 60 {
		score -= 10
	}
	if crawl.MetaDescription == "" {
		score -= 25
	} else if len(crawl.MetaDescription) > 160 {
		score -= 10
	}
	if !hasH1(crawl) {
		score -= 15
	}
	if len(crawl.OpenGraph) == 0 {
		score -= 10
	}
	if crawl.WordCount < 200 {
		score -= 15
	}
	return ptr(clamp(score))
}

// vitals produces lab estimates from the single signal available to a
// plain fetch: total load time. Layout and input metrics have no lab
// signal here and stay nil-free only where derivable.
func vitals(crawl *audit.CrawlData) *audit.CoreWebVitals {
	if crawl.LoadTimeMs <= 0 {
		return &audit.CoreWebVitals{}
	}
	ms := float64(crawl.LoadTimeMs)
	cwv := &audit.CoreWebVitals{
		TTFB: ptr(ms * 0.2),
		FCP:  ptr(ms * 0.6),
		LCP:  ptr(ms * 0.9),
	}
	if crawl.WordCount > 0 {
		// Dense pages shift more layout before settling.
		cls := 0.02 + float64(len(crawl.Images))*0.01
		if cls > 0.5 {
			cls = 0.5
		}
		cwv.CLS = ptr(cls)
	}
	return cwv
}

func hasH1(crawl *audit.CrawlData) bool {
	for _, h := range crawl.Headings {
		if h.Level == 1 {
			return true
		}
	}
	return false
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func ptr(v float64) *float64 {
	return &v
}
