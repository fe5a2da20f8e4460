package screenshot

import (
	"context"
	"errors"

	"github.com/apexsuite/siteaudit/internal/audit"
)

// Noop implements audit.Screenshotter but always reports that capture is
// unavailable, for builds and tests without a browser.
type Noop struct{}

// NewNoop creates a new Noop service.
func NewNoop() *Noop {
	return &Noop{}
}

// Capture returns an error since this is a stub implementation.
func (Noop) Capture(_ context.Context, _ string, _ audit.Viewport) ([]byte, error) {
	return nil, errors.New("screenshot service not configured")
}
