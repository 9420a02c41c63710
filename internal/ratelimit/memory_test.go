package ratelimit

import (
	"context"
	"testing"
	"time"
)

func testBudgets() *Budgets {
	return NewBudgets(map[string]Budget{
		"figma": {MaxCredits: 5, Window: time.Minute},
	})
}

func TestMemoryLimiterAllowsWithinBudget(t *testing.T) {
	limiter := NewMemoryLimiter(testBudgets())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		res := limiter.CheckAt(ctx, "figma", "org-1", 1, now)
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
		if want := int64(5 - i - 1); res.Remaining != want {
			t.Errorf("call %d: expected remaining %d, got %d", i+1, want, res.Remaining)
		}
	}
}

func TestMemoryLimiterDeniesOverBudget(t *testing.T) {
	limiter := NewMemoryLimiter(testBudgets())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 30, 0, time.UTC)

	for i := 0; i < 5; i++ {
		limiter.CheckAt(ctx, "figma", "org-1", 1, now)
	}

	res := limiter.CheckAt(ctx, "figma", "org-1", 1, now)
	if res.Allowed {
		t.Fatal("expected denial after budget exhausted")
	}
	if res.Remaining != 0 {
		t.Errorf("expected remaining 0, got %d", res.Remaining)
	}

	wantReset := time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	if !res.ResetAt.Equal(wantReset) {
		t.Errorf("expected reset at %s, got %s", wantReset, res.ResetAt)
	}
}

func TestMemoryLimiterDeniedCallDoesNotConsume(t *testing.T) {
	limiter := NewMemoryLimiter(testBudgets())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// A cost larger than what's left is denied without touching the count.
	limiter.CheckAt(ctx, "figma", "org-1", 4, now)
	if res := limiter.CheckAt(ctx, "figma", "org-1", 2, now); res.Allowed {
		t.Fatal("expected denial for cost over remaining")
	}
	if res := limiter.CheckAt(ctx, "figma", "org-1", 1, now); !res.Allowed {
		t.Error("expected the remaining credit to still be available")
	}
}

func TestMemoryLimiterWindowRollover(t *testing.T) {
	limiter := NewMemoryLimiter(testBudgets())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 59, 0, time.UTC)

	for i := 0; i < 5; i++ {
		limiter.CheckAt(ctx, "figma", "org-1", 1, now)
	}
	if res := limiter.CheckAt(ctx, "figma", "org-1", 1, now); res.Allowed {
		t.Fatal("expected denial in exhausted window")
	}

	// One second later a new window opens with the full budget.
	later := now.Add(time.Second)
	res := limiter.CheckAt(ctx, "figma", "org-1", 1, later)
	if !res.Allowed {
		t.Fatal("expected new window to allow")
	}
	if res.Remaining != 4 {
		t.Errorf("expected remaining 4 in fresh window, got %d", res.Remaining)
	}
}

func TestMemoryLimiterIsolatesOrgs(t *testing.T) {
	limiter := NewMemoryLimiter(testBudgets())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		limiter.CheckAt(ctx, "figma", "org-1", 1, now)
	}
	if res := limiter.CheckAt(ctx, "figma", "org-1", 1, now); res.Allowed {
		t.Fatal("expected org-1 to be exhausted")
	}
	if res := limiter.CheckAt(ctx, "figma", "org-2", 1, now); !res.Allowed {
		t.Error("expected org-2 to have its own budget")
	}
}

func TestMemoryLimiterFallbackBudget(t *testing.T) {
	limiter := NewMemoryLimiter(testBudgets())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	// Unknown integrations fall back to the conservative default.
	res := limiter.CheckAt(ctx, "jira", "org-1", 1, now)
	if !res.Allowed {
		t.Fatal("expected fallback budget to allow")
	}
	if res.Remaining != DefaultBudget.MaxCredits-1 {
		t.Errorf("expected remaining %d, got %d", DefaultBudget.MaxCredits-1, res.Remaining)
	}
}

func TestMemoryLimiterPrunesOldWindows(t *testing.T) {
	limiter := NewMemoryLimiter(testBudgets())
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	limiter.CheckAt(ctx, "figma", "org-1", 1, now)
	if len(limiter.windows) != 1 {
		t.Fatalf("expected 1 tracked window, got %d", len(limiter.windows))
	}

	limiter.CheckAt(ctx, "figma", "org-1", 1, now.Add(3*time.Minute))
	if len(limiter.windows) != 1 {
		t.Errorf("expected stale window to be pruned, got %d windows", len(limiter.windows))
	}
}
