package audit

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors surfaced by the public job API.
var (
	// ErrConflict is returned when the requester already has a pending or
	// running job.
	ErrConflict = errors.New("requester already has an active audit")

	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("audit job not found")

	// ErrRunning is returned when deleting a job that is still running.
	ErrRunning = errors.New("audit job is running")

	// ErrForbidden is returned by permission checks that fail closed.
	ErrForbidden = errors.New("forbidden")

	// ErrReportUnavailable is returned when the report artifact is absent.
	ErrReportUnavailable = errors.New("report not available")
)

// ValidationError rejects a batch before any job is created. It aggregates
// every problem found so the client can fix the batch in one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "invalid audit request"
	}
	return fmt.Sprintf("invalid audit request: %s", strings.Join(e.Problems, "; "))
}

// IsValidation reports whether err is a batch validation failure.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
