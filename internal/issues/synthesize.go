// Package issues turns per-URL audit signals into severity-tagged findings
// and rolls them up into the cross-URL summary. Both passes are pure
// functions: the same inputs always produce the same output.
package issues

import (
	"fmt"
	"net/http"
	"unicode/utf8"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// Thresholds below which a signal raises an issue.
const (
	slowLoadMs       = 3000
	verySlowLoadMs   = 8000
	thinContentWords = 200
	longTitleChars   = 60
	longMetaChars    = 160
)

// ForURL derives issues from one URL's crawl, performance, and content
// signals. An error-variant result yields the single unreachable finding.
func ForURL(result audit.Result) []audit.Issue {
	if result.Status == audit.ResultError || result.Crawl == nil {
		return []audit.Issue{{
			Severity:       audit.SeverityCritical,
			Category:       audit.CategoryTechnical,
			Title:          "Page unreachable",
			Description:    fmt.Sprintf("%s could not be fetched: %s", result.URL, result.ErrorText),
			Recommendation: "Verify the URL is correct and the server is reachable from the public internet.",
		}}
	}

	var found []audit.Issue
	found = append(found, technicalIssues(result.Crawl)...)
	found = append(found, seoIssues(result.Crawl)...)
	found = append(found, accessibilityIssues(result.Crawl)...)
	found = append(found, performanceIssues(result.Crawl)...)
	found = append(found, contentIssues(result)...)
	found = append(found, siteFileIssues(result)...)
	return found
}

func technicalIssues(crawl *audit.CrawlData) []audit.Issue {
	var found []audit.Issue
	if crawl.StatusCode != http.StatusOK {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityCritical,
			Category:       audit.CategoryTechnical,
			Title:          fmt.Sprintf("Non-200 status code (%d)", crawl.StatusCode),
			Description:    fmt.Sprintf("The page responded with HTTP %d instead of 200.", crawl.StatusCode),
			Recommendation: "Fix the server response or update the audited URL to the canonical location.",
		})
	}
	if len(crawl.StructuredData) == 0 {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityInfo,
			Category:       audit.CategorySEO,
			Title:          "No structured data",
			Description:    "The page carries no JSON-LD structured data blocks.",
			Recommendation: "Add schema.org markup so search engines can build rich results.",
		})
	}
	return found
}

func seoIssues(crawl *audit.CrawlData) []audit.Issue {
	var found []audit.Issue
	switch {
	case crawl.Title == "":
		found = append(found, audit.Issue{
			Severity:       audit.SeverityWarning,
			Category:       audit.CategorySEO,
			Title:          "Missing page title",
			Description:    "The page has no <title> element.",
			Recommendation: "Add a unique, descriptive title of at most 60 characters.",
		})
	case utf8.RuneCountInString(crawl.Title) > longTitleChars:
		found = append(found, audit.Issue{
			Severity:       audit.SeverityInfo,
			Category:       audit.CategorySEO,
			Title:          "Title too long",
			Description:    fmt.Sprintf("The title is %d characters; search results truncate around %d.", utf8.RuneCountInString(crawl.Title), longTitleChars),
			Recommendation: "Shorten the title so the full text shows in search results.",
		})
	}
	switch {
	case crawl.MetaDescription == "":
		found = append(found, audit.Issue{
			Severity:       audit.SeverityWarning,
			Category:       audit.CategorySEO,
			Title:          "Missing meta description",
			Description:    "The page has no meta description.",
			Recommendation: "Add a meta description of 50-160 characters summarizing the page.",
		})
	case utf8.RuneCountInString(crawl.MetaDescription) > longMetaChars:
		found = append(found, audit.Issue{
			Severity:       audit.SeverityInfo,
			Category:       audit.CategorySEO,
			Title:          "Meta description too long",
			Description:    fmt.Sprintf("The meta description is %d characters.", utf8.RuneCountInString(crawl.MetaDescription)),
			Recommendation: "Keep the meta description under 160 characters.",
		})
	}
	if crawl.CanonicalURL == "" {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityInfo,
			Category:       audit.CategorySEO,
			Title:          "Missing canonical URL",
			Description:    "The page declares no canonical link.",
			Recommendation: "Add a rel=canonical link to consolidate duplicate-content signals.",
		})
	}
	if !hasHeadingLevel(crawl, 1) {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityWarning,
			Category:       audit.CategorySEO,
			Title:          "Missing H1 heading",
			Description:    "The page has no top-level heading.",
			Recommendation: "Add exactly one H1 that states the page topic.",
		})
	}
	return found
}

func accessibilityIssues(crawl *audit.CrawlData) []audit.Issue {
	var found []audit.Issue
	missing := 0
	for _, img := range crawl.Images {
		if !img.HasAlt {
			missing++
		}
	}
	if missing > 0 {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityWarning,
			Category:       audit.CategoryAccessibility,
			Title:          "Images missing alt text",
			Description:    fmt.Sprintf("%d of %d images have no alt text.", missing, len(crawl.Images)),
			Recommendation: "Add descriptive alt attributes to every content image.",
		})
	}
	if !crawl.HasViewportMeta {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityWarning,
			Category:       audit.CategoryAccessibility,
			Title:          "Missing viewport meta tag",
			Description:    "The page does not declare a responsive viewport.",
			Recommendation: "Add <meta name=\"viewport\" content=\"width=device-width, initial-scale=1\">.",
		})
	}
	return found
}

func performanceIssues(crawl *audit.CrawlData) []audit.Issue {
	var found []audit.Issue
	switch {
	case crawl.LoadTimeMs > verySlowLoadMs:
		found = append(found, audit.Issue{
			Severity:       audit.SeverityCritical,
			Category:       audit.CategoryPerformance,
			Title:          "Very slow page load",
			Description:    fmt.Sprintf("The page took %dms to load.", crawl.LoadTimeMs),
			Recommendation: "Profile the backend and defer non-critical assets; aim for under 3 seconds.",
		})
	case crawl.LoadTimeMs > slowLoadMs:
		found = append(found, audit.Issue{
			Severity:       audit.SeverityWarning,
			Category:       audit.CategoryPerformance,
			Title:          "Slow page load",
			Description:    fmt.Sprintf("The page took %dms to load.", crawl.LoadTimeMs),
			Recommendation: "Compress assets and enable caching to bring load time under 3 seconds.",
		})
	}
	return found
}

func contentIssues(result audit.Result) []audit.Issue {
	crawl := result.Crawl
	var found []audit.Issue
	if crawl.WordCount < thinContentWords {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityInfo,
			Category:       audit.CategoryContent,
			Title:          "Thin content",
			Description:    fmt.Sprintf("The page has only %d words of visible text.", crawl.WordCount),
			Recommendation: "Expand the page with substantive content relevant to its topic.",
		})
	}
	if result.AIAnalysis != nil && result.AIAnalysis.ContentQuality < 50 {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityWarning,
			Category:       audit.CategoryContent,
			Title:          "Low content quality",
			Description:    fmt.Sprintf("Content quality was assessed at %.0f/100.", result.AIAnalysis.ContentQuality),
			Recommendation: "Rework the copy for clarity, depth, and relevance to the page topic.",
		})
	}
	return found
}

func siteFileIssues(result audit.Result) []audit.Issue {
	var found []audit.Issue
	if result.HasRobotsTxt != nil && !*result.HasRobotsTxt {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityInfo,
			Category:       audit.CategoryTechnical,
			Title:          "No robots.txt",
			Description:    "The site does not serve a robots.txt file.",
			Recommendation: "Publish a robots.txt to control crawler access explicitly.",
		})
	}
	if result.HasSitemap != nil && !*result.HasSitemap {
		found = append(found, audit.Issue{
			Severity:       audit.SeverityInfo,
			Category:       audit.CategoryTechnical,
			Title:          "No sitemap.xml",
			Description:    "The site does not serve a sitemap.xml file.",
			Recommendation: "Publish a sitemap so search engines discover all pages.",
		})
	}
	return found
}

func hasHeadingLevel(crawl *audit.CrawlData, level int) bool {
	for _, h := range crawl.Headings {
		if h.Level == level {
			return true
		}
	}
	return false
}
