package cachedhttp

import (
	"errors"
	"fmt"
	"time"
)

// Failure kinds. Match them with errors.Is.
var (
	ErrNetworkFailure   = errors.New("network failure")
	ErrTimeout          = errors.New("request timed out")
	ErrRateLimited      = errors.New("rate limited")
	ErrInvalidResponse  = errors.New("invalid response")
	ErrUnauthorized     = errors.New("unauthorized")
	ErrUnexpectedStatus = errors.New("unexpected status")
)

// StatusError carries the upstream status for a classified failure.
type StatusError struct {
	StatusCode int
	URL        string
	Body       string // truncated
	Kind       error
	RetryAfter time.Duration // from the Retry-After header, zero when absent
	// Heuristic is set when the rate limit was inferred from the response
	// message rather than an HTTP 429. It is a weak signal.
	Heuristic bool
}

func (e *StatusError) Error() string {
	if e.Heuristic {
		return fmt.Sprintf("%v (inferred from message, status %d) for %s", e.Kind, e.StatusCode, e.URL)
	}
	return fmt.Sprintf("%v: status %d for %s", e.Kind, e.StatusCode, e.URL)
}

func (e *StatusError) Unwrap() error {
	return e.Kind
}

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimited)
}

// IsTimeout reports whether err is a request timeout.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout)
}
