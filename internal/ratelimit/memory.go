package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter enforces budgets with in-process counters. Semantics match
// RedisLimiter exactly; it backs tests and single-node deployments where no
// shared store is configured. Counters for past windows are pruned lazily.
type MemoryLimiter struct {
	mu      sync.Mutex
	budgets *Budgets
	windows map[string]*memoryWindow
}

type memoryWindow struct {
	start  time.Time
	length time.Duration
	used   int64
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(budgets *Budgets) *MemoryLimiter {
	return &MemoryLimiter{
		budgets: budgets,
		windows: make(map[string]*memoryWindow),
	}
}

// Check implements Limiter.
func (l *MemoryLimiter) Check(ctx context.Context, integration, orgID string, cost int64) Result {
	return l.CheckAt(ctx, integration, orgID, cost, time.Now())
}

// CheckAt is Check with an injected clock, for tests.
func (l *MemoryLimiter) CheckAt(_ context.Context, integration, orgID string, cost int64, now time.Time) Result {
	budget := l.budgets.For(integration)
	start := windowStart(now, budget.Window)
	resetAt := start.Add(budget.Window)
	key := windowKey(integration, orgID, start)

	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(now)

	w, ok := l.windows[key]
	if !ok {
		w = &memoryWindow{start: start, length: budget.Window}
		l.windows[key] = w
	}

	if w.used+cost > budget.MaxCredits {
		remaining := budget.MaxCredits - w.used
		if remaining < 0 {
			remaining = 0
		}
		return Result{Allowed: false, Remaining: remaining, ResetAt: resetAt}
	}

	w.used += cost
	return Result{
		Allowed:   true,
		Remaining: budget.MaxCredits - w.used,
		ResetAt:   resetAt,
	}
}

// prune drops counters past twice their window length, mirroring the 2x
// window expiry the Redis limiter sets. Must be called with the mutex held.
func (l *MemoryLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if now.Sub(w.start) > 2*w.length {
			delete(l.windows, key)
		}
	}
}
