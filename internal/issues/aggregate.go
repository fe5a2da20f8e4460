package issues

import (
	"fmt"
	"sort"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// Aggregation constants. Weights sum to 1; topIssuesLimit caps the summary's
// issue list.
const (
	topIssuesLimit = 10

	weightTechnical     = 0.25
	weightContent       = 0.20
	weightPerformance   = 0.30
	weightAccessibility = 0.25
)

// Aggregate rolls per-URL results into the cross-URL summary. It is a pure
// function of the results sequence: error-variant URLs are excluded from
// numeric averaging but their issues still count toward the totals.
func Aggregate(results []audit.Result, language string) audit.Summary {
	counts := countIssues(results)
	scores := categoryScores(results)
	overall := weightTechnical*scores.Technical +
		weightContent*scores.Content +
		weightPerformance*scores.Performance +
		weightAccessibility*scores.Accessibility

	return audit.Summary{
		OverallScore:     round1(overall),
		CategoryScores:   scores,
		TopIssues:        topIssues(results),
		ExecutiveSummary: narrative(results, counts, overall, language),
		TotalIssues:      counts,
	}
}

func countIssues(results []audit.Result) audit.IssueCounts {
	var counts audit.IssueCounts
	for _, r := range results {
		for _, issue := range r.Issues {
			switch issue.Severity {
			case audit.SeverityCritical:
				counts.Critical++
			case audit.SeverityWarning:
				counts.Warning++
			case audit.SeverityInfo:
				counts.Info++
			}
		}
	}
	return counts
}

// categoryScores averages per-URL numeric signals over the URLs that
// produced them. URLs without a given signal simply do not contribute.
func categoryScores(results []audit.Result) audit.CategoryScores {
	var (
		perf, access, tech, content mean
	)
	for _, r := range results {
		if r.Status != audit.ResultSuccess || r.Crawl == nil {
			continue
		}
		if s := r.LighthouseScores; s != nil {
			perf.add(s.Performance)
			access.add(s.Accessibility)
			tech.add(s.BestPractices)
			// SEO folds into the technical category alongside best practices.
			tech.add(s.SEO)
		}
		if a := r.AIAnalysis; a != nil {
			content.addValue(a.ContentQuality)
			content.addValue(a.Readability)
		} else {
			content.addValue(contentFallback(r.Crawl))
		}
	}
	return audit.CategoryScores{
		Technical:     round1(tech.value()),
		Content:       round1(content.value()),
		Performance:   round1(perf.value()),
		Accessibility: round1(access.value()),
	}
}

// contentFallback scores content from crawl signals alone when the AI
// assessment is unavailable.
func contentFallback(crawl *audit.CrawlData) float64 {
	score := 50.0
	if crawl.WordCount >= thinContentWords {
		score += 25
	}
	if len(crawl.Headings) > 0 {
		score += 15
	}
	if crawl.MetaDescription != "" {
		score += 10
	}
	return score
}

// topIssues selects the N highest-severity issues across all URLs.
// Ties break on category weight, then on title for a stable order.
func topIssues(results []audit.Result) []audit.Issue {
	var all []audit.Issue
	for _, r := range results {
		all = append(all, r.Issues...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Severity.Rank() != all[j].Severity.Rank() {
			return all[i].Severity.Rank() > all[j].Severity.Rank()
		}
		if cw, dw := categoryWeight(all[i].Category), categoryWeight(all[j].Category); cw != dw {
			return cw > dw
		}
		return all[i].Title < all[j].Title
	})
	if len(all) > topIssuesLimit {
		all = all[:topIssuesLimit]
	}
	return all
}

func categoryWeight(category string) float64 {
	switch category {
	case audit.CategoryPerformance:
		return weightPerformance
	case audit.CategoryTechnical, audit.CategorySEO:
		return weightTechnical
	case audit.CategoryAccessibility:
		return weightAccessibility
	case audit.CategoryContent:
		return weightContent
	default:
		return 0
	}
}

// narrative renders the executive summary from fixed templates so the same
// results always produce the same text.
func narrative(results []audit.Result, counts audit.IssueCounts, overall float64, language string) string {
	total := len(results)
	failed := 0
	for _, r := range results {
		if r.Status == audit.ResultError {
			failed++
		}
	}
	audited := total - failed

	if language == "de" {
		s := fmt.Sprintf("Es wurden %d von %d Seiten erfolgreich geprüft. Gesamtbewertung: %.0f/100.", audited, total, overall)
		if counts.Critical > 0 {
			s += fmt.Sprintf(" %d kritische Probleme erfordern sofortige Aufmerksamkeit.", counts.Critical)
		} else if counts.Warning > 0 {
			s += fmt.Sprintf(" %d Warnungen sollten behoben werden.", counts.Warning)
		} else {
			s += " Es wurden keine schwerwiegenden Probleme gefunden."
		}
		return s
	}

	s := fmt.Sprintf("%d of %d pages were audited successfully. Overall score: %.0f/100.", audited, total, overall)
	switch {
	case counts.Critical > 0:
		s += fmt.Sprintf(" %d critical issues require immediate attention.", counts.Critical)
	case counts.Warning > 0:
		s += fmt.Sprintf(" %d warnings should be addressed.", counts.Warning)
	default:
		s += " No significant problems were found."
	}
	return s
}

type mean struct {
	sum float64
	n   int
}

func (m *mean) add(v *float64) {
	if v != nil {
		m.addValue(*v)
	}
}

func (m *mean) addValue(v float64) {
	m.sum += v
	m.n++
}

func (m *mean) value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

func round1(v float64) float64 {
	return float64(int(v*10+0.5)) / 10
}
