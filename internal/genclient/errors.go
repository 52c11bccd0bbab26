package genclient

import (
	"errors"
	"fmt"
	"net/http"

	"genstudio/internal/domain"
)

// ErrTimedOut is returned when polling gives up before the job resolves.
var ErrTimedOut = errors.New("generation timed out")

// ErrJobNotFound is returned when the status endpoint no longer knows the job.
var ErrJobNotFound = fmt.Errorf("job not found: %w", domain.ErrNotFound)

// StatusError is a non-success HTTP answer from the proxy.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("proxy status %d", e.Status)
	}
	return fmt.Sprintf("proxy status %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses onto domain sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusTooManyRequests:
		return domain.ErrRateLimited
	case http.StatusServiceUnavailable:
		return domain.ErrUnavailable
	case http.StatusBadRequest:
		return domain.ErrInvalidRequest
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.ErrUnauthorized
	case http.StatusNotFound:
		return domain.ErrNotFound
	default:
		return nil
	}
}

// Retryable reports whether the whole call may be attempted again.
func (e *StatusError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status == http.StatusServiceUnavailable
}

func newStatusError(status int, body []byte) *StatusError {
	return &StatusError{Status: status, Message: errorMessage(body)}
}

// JobError carries the failure reported by the worker for an async job.
type JobError struct {
	JobID   string
	Message string
}

func (e *JobError) Error() string {
	if e.Message == "" {
		return "generation failed"
	}
	return e.Message
}

func (e *JobError) Unwrap() error { return domain.ErrProviderFailure }

// IsRetryable reports whether err is a transient proxy rejection.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Retryable()
}
