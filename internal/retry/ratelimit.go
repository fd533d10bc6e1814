package retry

import (
	"fmt"
	"time"
)

// RateLimitError signals that an operation failed because an upstream agent
// provider reported a rate limit. Execute recognizes it via errors.As and,
// when RetryAfter is positive, waits that long instead of the usual
// exponential backoff — using the provider's own reported reset time rather
// than guessing.
type RateLimitError struct {
	Provider   string
	RetryAfter time.Duration
	Message    string
}

func (e *RateLimitError) Error() string {
	if e.Provider == "" {
		return fmt.Sprintf("retry: rate limited: %s", e.Message)
	}
	return fmt.Sprintf("retry: %s rate limited: %s", e.Provider, e.Message)
}
