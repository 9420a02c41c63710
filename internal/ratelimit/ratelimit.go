// Package ratelimit guards calls to external integrations with a fixed
// window, cost based credit budget per (integration, organization).
//
// Windows are fixed, not sliding: windowStart = floor(now/window)*window.
// A burst exactly at a window boundary can reach up to twice the nominal
// rate across the boundary, which is an accepted approximation.
package ratelimit

import (
	"context"
	"time"
)

// Result is the outcome of a limiter check.
type Result struct {
	Allowed   bool
	Remaining int64
	ResetAt   time.Time
}

// Limiter is the shared guard in front of every external integration call.
//
// Check reads current usage for the active window; if used+cost would exceed
// the budget it denies without consuming, otherwise it atomically increments
// usage by cost. The compare and increment are atomic across concurrent
// callers, including callers on other scheduler instances when backed by a
// shared store.
//
// Implementations fail open: if the backing store is unreachable, Check
// returns Allowed=true with a large Remaining. Availability of the
// reconciliation loop is worth more than strict quota enforcement, since the
// remote API throttles on its own while a silently stalled drift check does
// not recover.
type Limiter interface {
	Check(ctx context.Context, integration, orgID string, cost int64) Result
}

// failOpenRemaining is the Remaining reported when the backing store is
// unreachable and the limiter fails open.
const failOpenRemaining = int64(1 << 30)

// windowStart truncates now to the beginning of the active window.
func windowStart(now time.Time, window time.Duration) time.Time {
	secs := int64(window / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return time.Unix(now.Unix()/secs*secs, 0).UTC()
}
