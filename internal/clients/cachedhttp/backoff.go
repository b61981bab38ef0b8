package cachedhttp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Retry suggestion policy for rate-limited calls
const (
	BackoffBase = 3 * time.Second
	BackoffMax  = 30 * time.Second
)

// BackoffSuggestion returns how long a caller should wait before retry
// number attempt (0-based): 3s, 6s, 12s, 24s, then 30s.
func BackoffSuggestion(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := BackoffBase
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= BackoffMax {
			return BackoffMax
		}
	}
	return d
}

// RetryAfter prefers the server's Retry-After hint and falls back to the
// backoff suggestion for the given attempt.
func RetryAfter(err error, attempt int) time.Duration {
	var se *StatusError
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter
	}
	return BackoffSuggestion(attempt)
}

// parseRetryAfter understands both delta-seconds and HTTP-date forms.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(value); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
