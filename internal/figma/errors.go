package figma

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for the fetch taxonomy. All are terminal for the cycle
// that hits them except rate limiting, which is a skip.
var (
	// ErrNotFound means the remote file or node does not exist.
	ErrNotFound = errors.New("figma: not found")

	// ErrUnauthorized means the stored credential is invalid or expired and
	// needs human remediation.
	ErrUnauthorized = errors.New("figma: unauthorized")

	// ErrUpstream covers network failures and 5xx responses.
	ErrUpstream = errors.New("figma: upstream failure")
)

// RateLimitedError is returned when the shared limiter (or the remote API)
// denies a call. The caller must not retry before ResetAt.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("figma: rate limited until %s", e.ResetAt.Format(time.RFC3339))
}

// IsRateLimited reports whether err is a rate limit denial.
func IsRateLimited(err error) bool {
	var rl *RateLimitedError
	return errors.As(err, &rl)
}
