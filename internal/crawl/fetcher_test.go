package crawl

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// A validated entry URL must not smuggle the fetch to an unscreened address
// via a redirect: the guard runs on every dial, including redirect hops.
func TestFetcher_GuardScreensRedirectTarget(t *testing.T) {
	t.Parallel()

	var hits int32
	target := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&hits, 1)
		fmt.Fprint(w, "internal-only")
	}))
	defer target.Close()

	entry := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, target.URL, http.StatusFound)
	}))
	defer entry.Close()

	blockedAddr := strings.TrimPrefix(target.URL, "http://")
	guard := func(_ string, address string) error {
		if address == blockedAddr {
			return fmt.Errorf("loopback address is blocked")
		}
		return nil
	}

	fetcher := NewFetcher(FetchConfig{Timeout: 5 * time.Second, Guard: guard})
	_, err := fetcher.Fetch(context.Background(), entry.URL)
	require.Error(t, err)
	require.Contains(t, err.Error(), "blocked")
	require.Zero(t, atomic.LoadInt32(&hits), "guarded target must never be reached")
}

func TestFetcher_GuardAllowsPermittedTarget(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "<html><head><title>ok</title></head></html>")
	}))
	defer srv.Close()

	fetcher := NewFetcher(FetchConfig{
		Timeout: 5 * time.Second,
		Guard:   func(string, string) error { return nil },
	})
	resp, err := fetcher.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
