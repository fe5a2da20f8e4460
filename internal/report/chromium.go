package report

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromiumEngine prints HTML to PDF through headless Chrome's print pipeline.
type ChromiumEngine struct {
	allocator   context.Context
	allocCancel context.CancelFunc
	timeout     time.Duration
}

// NewChromiumEngine creates the engine with its own exec allocator.
func NewChromiumEngine(timeout time.Duration) *ChromiumEngine {
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)
	return &ChromiumEngine{
		allocator:   allocCtx,
		allocCancel: allocCancel,
		timeout:     timeout,
	}
}

// Close cancels the allocator context.
func (e *ChromiumEngine) Close() {
	e.allocCancel()
}

// Print loads the HTML via a data URL and runs page.PrintToPDF.
func (e *ChromiumEngine) Print(ctx context.Context, html string) ([]byte, error) {
	taskCtx, taskCancel := chromedp.NewContext(e.allocator)
	defer taskCancel()

	taskCtx, cancel := context.WithTimeout(taskCtx, e.timeout)
	defer cancel()

	dataURL := "data:text/html;charset=utf-8," + url.PathEscape(html)

	var pdf []byte
	actions := []chromedp.Action{
		chromedp.Navigate(dataURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			buf, _, err := page.PrintToPDF().WithPrintBackground(true).Do(ctx)
			if err != nil {
				return fmt.Errorf("print to pdf: %w", err)
			}
			pdf = buf
			return nil
		}),
	}
	if err := chromedp.Run(taskCtx, actions...); err != nil {
		return nil, fmt.Errorf("chromedp print: %w", err)
	}

	// Respect caller cancellation even though chromedp owns the task context.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("print canceled: %w", ctx.Err())
	}
	return pdf, nil
}
