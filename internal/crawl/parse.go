package crawl

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// parsePage extracts audit signals from a fetched HTML body.
func parsePage(pageURL string, body []byte) (*audit.CrawlData, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}

	data := &audit.CrawlData{
		Title:           strings.TrimSpace(doc.Find("title").First().Text()),
		MetaDescription: metaContent(doc, "description"),
		OpenGraph:       map[string]string{},
	}

	if href, ok := doc.Find(`link[rel="canonical"]`).First().Attr("href"); ok {
		data.CanonicalURL = strings.TrimSpace(href)
	}

	doc.Find(`meta[property^="og:"]`).Each(func(_ int, s *goquery.Selection) {
		prop, _ := s.Attr("property")
		content, _ := s.Attr("content")
		if prop != "" && content != "" {
			data.OpenGraph[prop] = content
		}
	})

	for level := 1; level <= 3; level++ {
		selector := fmt.Sprintf("h%d", level)
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if text != "" {
				data.Headings = append(data.Headings, audit.Heading{Level: level, Text: text})
			}
		})
	}

	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		src, _ := s.Attr("src")
		alt, hasAlt := s.Attr("alt")
		data.Images = append(data.Images, audit.Image{
			Src:    src,
			HasAlt: hasAlt && strings.TrimSpace(alt) != "",
		})
	})

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
			return
		}
		data.Links = append(data.Links, audit.Link{
			Href:     href,
			External: isExternal(base, href),
		})
	})

	data.WordCount = countWords(doc)
	data.HasViewportMeta = metaContent(doc, "viewport") != ""

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		block := strings.TrimSpace(s.Text())
		if block != "" {
			data.StructuredData = append(data.StructuredData, block)
		}
	})

	return data, nil
}

func metaContent(doc *goquery.Document, name string) string {
	content, _ := doc.Find(fmt.Sprintf(`meta[name=%q]`, name)).First().Attr("content")
	return strings.TrimSpace(content)
}

func isExternal(base *url.URL, href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	if u.Host == "" {
		return false
	}
	return !strings.EqualFold(u.Hostname(), base.Hostname())
}

// countWords tallies visible text, ignoring script and style content.
func countWords(doc *goquery.Document) int {
	body := doc.Find("body").Clone()
	body.Find("script, style, noscript").Remove()
	return len(strings.Fields(body.Text()))
}
