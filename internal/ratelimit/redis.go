package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driftwatchhq/driftwatch/internal/logger"
)

// checkScript performs the window read, compare and increment as one atomic
// operation on the Redis side. Returns {allowed, remaining}. The first
// writer to a window sets an expiry of twice the window length so tracking
// state self-expires.
//
// KEYS[1] window counter key
// ARGV[1] cost, ARGV[2] max credits, ARGV[3] expiry in milliseconds
var checkScript = redis.NewScript(`
local used = tonumber(redis.call('GET', KEYS[1]) or '0')
local cost = tonumber(ARGV[1])
local max = tonumber(ARGV[2])
if used + cost > max then
	local remaining = max - used
	if remaining < 0 then remaining = 0 end
	return {0, remaining}
end
local new = redis.call('INCRBY', KEYS[1], cost)
if new == cost then
	redis.call('PEXPIRE', KEYS[1], ARGV[3])
end
return {1, max - new}
`)

// RedisLimiter enforces budgets against counters in a shared Redis store,
// so multiple scheduler instances charge the same quota.
type RedisLimiter struct {
	rdb     *redis.Client
	budgets *Budgets
	log     *logger.Logger
}

// NewRedisLimiter creates a limiter backed by the given Redis client.
func NewRedisLimiter(rdb *redis.Client, budgets *Budgets, log *logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		rdb:     rdb,
		budgets: budgets,
		log:     log.With("component", "ratelimit"),
	}
}

// Check implements Limiter.
func (l *RedisLimiter) Check(ctx context.Context, integration, orgID string, cost int64) Result {
	return l.CheckAt(ctx, integration, orgID, cost, time.Now())
}

// CheckAt is Check with an injected clock, for tests.
func (l *RedisLimiter) CheckAt(ctx context.Context, integration, orgID string, cost int64, now time.Time) Result {
	budget := l.budgets.For(integration)
	start := windowStart(now, budget.Window)
	resetAt := start.Add(budget.Window)
	key := windowKey(integration, orgID, start)

	vals, err := checkScript.Run(ctx, l.rdb, []string{key},
		cost, budget.MaxCredits, (2 * budget.Window).Milliseconds()).Int64Slice()
	if err != nil || len(vals) != 2 {
		// Fail open: never let a limiter outage stall the reconcile loop.
		l.log.Warn("rate limit check failed, allowing", "integration", integration, "org_id", orgID, "error", err)
		return Result{Allowed: true, Remaining: failOpenRemaining, ResetAt: resetAt}
	}

	return Result{
		Allowed:   vals[0] == 1,
		Remaining: vals[1],
		ResetAt:   resetAt,
	}
}

// windowKey builds the counter key for one (integration, org, window).
func windowKey(integration, orgID string, start time.Time) string {
	return fmt.Sprintf("ratelimit:%s:%s:%d", integration, orgID, start.Unix())
}
