// Package crawl fetches and parses a single URL into audit signals.
package crawl

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/gocolly/colly/v2"
)

// FetchConfig controls collector behavior. Guard, when set, screens every
// dial target (network, host:port) before the connection opens; it runs
// after DNS resolution, so redirect hops and re-resolved hosts face it too.
type FetchConfig struct {
	UserAgent string
	Timeout   time.Duration
	Guard     func(network, address string) error
}

// fetchResponse is the raw outcome of a single GET.
type fetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Fetcher executes single-page HTTP GETs using a Colly collector with a
// pooled transport. Error status codes are parsed, not treated as fetch
// failures; the issue synthesizer decides what a 500 means.
type Fetcher struct {
	cfg       FetchConfig
	transport http.RoundTripper
	base      *colly.Collector
}

// NewFetcher builds a Fetcher.
func NewFetcher(cfg FetchConfig) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	transport := newHTTPTransport(cfg.Guard)
	c.WithTransport(transport)

	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		base:      c,
	}
}

// Fetch executes a single HTTP GET.
func (f *Fetcher) Fetch(ctx context.Context, url string) (fetchResponse, error) {
	var (
		result   fetchResponse
		fetchErr error
	)
	start := time.Now()
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	collector.WithTransport(f.transport)

	collector.OnResponse(func(r *colly.Response) {
		result = fetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fetchResponse{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fetchResponse{}, fmt.Errorf("visit failed: %w", err)
		}
		if fetchErr != nil {
			return fetchResponse{}, fmt.Errorf("response failed: %w", fetchErr)
		}
		if result.StatusCode == 0 {
			return fetchResponse{}, fmt.Errorf("no response received")
		}
		return result, nil
	}
}

func newHTTPTransport(guard func(network, address string) error) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   10 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	if guard != nil {
		// Control sees the concrete address after resolution, which covers
		// redirect targets and hosts whose records changed since screening.
		dialer.Control = func(network, address string, _ syscall.RawConn) error {
			return guard(network, address)
		}
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
