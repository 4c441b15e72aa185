package queue

import "time"

// DefaultMaxAttempts is applied when an enqueue does not set one
const DefaultMaxAttempts = 3

// DefaultBackoffBase is the base delay for exponential re-scheduling
const DefaultBackoffBase = time.Second

// maxBackoff caps a single retry delay
const maxBackoff = 5 * time.Minute

// Backoff returns the delay before retry number attempt (1-based):
// base * 2^(attempt-1), capped.
func Backoff(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = DefaultBackoffBase
	}
	if attempt < 1 {
		attempt = 1
	}
	d := base << uint(attempt-1)
	if d > maxBackoff || d <= 0 {
		return maxBackoff
	}
	return d
}
