package figma

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/driftwatchhq/driftwatch/internal/ratelimit"
)

type stubLimiter struct {
	result  ratelimit.Result
	calls   int
	lastOrg string
}

func (s *stubLimiter) Check(ctx context.Context, integration, orgID string, cost int64) ratelimit.Result {
	s.calls++
	s.lastOrg = orgID
	return s.result
}

func TestAdapterFetch(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		w.Write([]byte(nodeDocument))
	}))
	defer srv.Close()

	limiter := &stubLimiter{result: ratelimit.Result{Allowed: true, Remaining: 10}}
	adapter := NewAdapter(NewClient(srv.URL), limiter)

	props, err := adapter.Fetch(context.Background(), "tok", "org-1", "fileKey123", "1:23")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}

	if limiter.calls != 1 {
		t.Errorf("expected 1 limiter check, got %d", limiter.calls)
	}
	if limiter.lastOrg != "org-1" {
		t.Errorf("expected limiter keyed by org-1, got %q", limiter.lastOrg)
	}
	if requests != 1 {
		t.Errorf("expected 1 upstream request, got %d", requests)
	}
	if len(props.Fills) != 1 || props.Fills[0].Color != "#3366FF" {
		t.Errorf("unexpected normalized fills: %+v", props.Fills)
	}
}

func TestAdapterFetchDeniedSkipsNetwork(t *testing.T) {
	requests := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))
	defer srv.Close()

	resetAt := time.Now().Add(45 * time.Second)
	limiter := &stubLimiter{result: ratelimit.Result{Allowed: false, ResetAt: resetAt}}
	adapter := NewAdapter(NewClient(srv.URL), limiter)

	_, err := adapter.Fetch(context.Background(), "tok", "org-1", "key", "1:1")
	if !IsRateLimited(err) {
		t.Fatalf("expected rate limited error, got %v", err)
	}

	var rl *RateLimitedError
	errors.As(err, &rl)
	if !rl.ResetAt.Equal(resetAt) {
		t.Errorf("expected reset time from limiter, got %s", rl.ResetAt)
	}
	if requests != 0 {
		t.Errorf("expected no upstream request on denial, got %d", requests)
	}
}

func TestAdapterFetchPropagatesClientErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	limiter := &stubLimiter{result: ratelimit.Result{Allowed: true}}
	adapter := NewAdapter(NewClient(srv.URL), limiter)

	_, err := adapter.Fetch(context.Background(), "bad-tok", "org-1", "key", "1:1")
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("expected unauthorized, got %v", err)
	}
}
