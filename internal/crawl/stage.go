package crawl

import (
	"context"
	"crypto/sha256"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// StageConfig controls screenshot persistence and probe behavior.
type StageConfig struct {
	BlobPrefix     string
	ProbeTimeout   time.Duration
	ScreenshotType string
}

// Stage runs the full crawl for one URL: fetch, parse, screenshot pair,
// and best-effort robots/sitemap probes. It implements audit.Crawler.
type Stage struct {
	fetcher *Fetcher
	shots   audit.Screenshotter
	blobs   audit.BlobStore
	cfg     StageConfig
	logger  *zap.Logger
}

// NewStage constructs a Stage.
func NewStage(
	fetcher *Fetcher,
	shots audit.Screenshotter,
	blobs audit.BlobStore,
	cfg StageConfig,
	logger *zap.Logger,
) *Stage {
	if cfg.BlobPrefix == "" {
		cfg.BlobPrefix = "audits"
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = 5 * time.Second
	}
	if cfg.ScreenshotType == "" {
		cfg.ScreenshotType = "image/png"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stage{
		fetcher: fetcher,
		shots:   shots,
		blobs:   blobs,
		cfg:     cfg,
		logger:  logger,
	}
}

// Crawl fetches and parses the URL. Fetch or parse failures are returned as
// errors; screenshot and probe failures degrade to absent fields.
func (s *Stage) Crawl(ctx context.Context, jobID string, pageURL string) (*audit.CrawlData, audit.SiteFlags, error) {
	resp, err := s.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, audit.SiteFlags{}, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	data, err := parsePage(resp.URL, resp.Body)
	if err != nil {
		return nil, audit.SiteFlags{}, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	data.StatusCode = resp.StatusCode
	data.LoadTimeMs = resp.Duration.Milliseconds()

	data.DesktopScreenshot = s.captureAndStore(ctx, jobID, pageURL, audit.ViewportDesktop, "desktop")
	data.MobileScreenshot = s.captureAndStore(ctx, jobID, pageURL, audit.ViewportMobile, "mobile")

	flags := s.probeSiteFiles(ctx, pageURL)
	return data, flags, nil
}

// captureAndStore persists one screenshot. Failures never fail the crawl;
// the result is an empty path.
func (s *Stage) captureAndStore(
	ctx context.Context,
	jobID string,
	pageURL string,
	viewport audit.Viewport,
	label string,
) string {
	if s.shots == nil || s.blobs == nil {
		return ""
	}
	png, err := s.shots.Capture(ctx, pageURL, viewport)
	if err != nil || len(png) == 0 {
		s.logger.Warn("screenshot capture failed",
			zap.String("job_id", jobID),
			zap.String("url", pageURL),
			zap.String("viewport", label),
			zap.Error(err),
		)
		return ""
	}
	path := fmt.Sprintf("%s/%s/%s-%s.png", s.cfg.BlobPrefix, jobID, urlKey(pageURL), label)
	if _, err := s.blobs.Put(ctx, path, s.cfg.ScreenshotType, png); err != nil {
		s.logger.Warn("screenshot store failed",
			zap.String("job_id", jobID),
			zap.String("path", path),
			zap.Error(err),
		)
		return ""
	}
	return path
}

// probeSiteFiles checks /robots.txt and /sitemap.xml at the URL's origin.
// Probe errors leave the corresponding flag nil.
func (s *Stage) probeSiteFiles(ctx context.Context, pageURL string) audit.SiteFlags {
	u, err := url.Parse(pageURL)
	if err != nil {
		return audit.SiteFlags{}
	}
	origin := fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	return audit.SiteFlags{
		HasRobotsTxt: s.probe(ctx, origin+"/robots.txt"),
		HasSitemap:   s.probe(ctx, origin+"/sitemap.xml"),
	}
}

func (s *Stage) probe(ctx context.Context, target string) *bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	resp, err := s.fetcher.Fetch(probeCtx, target)
	if err != nil {
		return nil
	}
	exists := resp.StatusCode == http.StatusOK
	return &exists
}

func urlKey(pageURL string) string {
	sum := sha256.Sum256([]byte(pageURL))
	return fmt.Sprintf("%x", sum[:8])
}
