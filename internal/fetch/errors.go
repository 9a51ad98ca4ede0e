package fetch

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// TransientError wraps an upstream failure that is worth retrying: network
// errors, 5xx responses, rate limiting and timeouts.
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("%v (retry after %v)", e.Err, e.RetryAfter)
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PermanentError wraps an upstream failure that retrying cannot fix: 4xx
// responses other than 429, or a response shape the parser does not
// recognize. The strategy chain advances immediately on these.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewTransientError marks an error as retryable.
func NewTransientError(err error) error {
	return &TransientError{Err: err}
}

// NewTransientErrorWithDelay marks an error as retryable with an upstream
// retry-after hint.
func NewTransientErrorWithDelay(err error, delay time.Duration) error {
	return &TransientError{Err: err, RetryAfter: delay}
}

// NewPermanentError marks an error as not retryable.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsTransient checks if an error should trigger a retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var transient *TransientError
	return errors.As(err, &transient)
}

// ClassifyStatus converts an HTTP status into a classified error, or nil for
// 2xx responses.
func ClassifyStatus(status int) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusTooManyRequests,
		status == http.StatusRequestTimeout,
		status == http.StatusGatewayTimeout,
		status >= 500:
		return NewTransientError(fmt.Errorf("upstream returned status %d", status))
	default:
		return NewPermanentError(fmt.Errorf("upstream returned status %d", status))
	}
}
