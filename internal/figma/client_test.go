package figma

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

const nodeDocument = `{
	"nodes": {
		"1:23": {
			"document": {
				"id": "1:23",
				"name": "Button/Primary",
				"type": "COMPONENT",
				"fills": [{"type": "SOLID", "color": {"r": 0.2, "g": 0.4, "b": 1, "a": 1}, "opacity": 1}],
				"cornerRadius": 4,
				"layoutMode": "HORIZONTAL",
				"paddingLeft": 16,
				"paddingRight": 16,
				"itemSpacing": 4,
				"absoluteBoundingBox": {"width": 120, "height": 36}
			}
		}
	}
}`

func TestGetNode(t *testing.T) {
	var gotToken, gotPath, gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotToken = r.Header.Get("X-Figma-Token")
		gotPath = r.URL.Path
		gotQuery = r.URL.Query().Get("ids")
		w.Write([]byte(nodeDocument))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	node, err := client.GetNode(context.Background(), "figd_tok", "fileKey123", "1:23")
	if err != nil {
		t.Fatalf("get node: %v", err)
	}

	if gotToken != "figd_tok" {
		t.Errorf("expected token header, got %q", gotToken)
	}
	if gotPath != "/v1/files/fileKey123/nodes" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotQuery != "1:23" {
		t.Errorf("unexpected ids query %q", gotQuery)
	}

	if node.Name != "Button/Primary" {
		t.Errorf("expected node name, got %q", node.Name)
	}
	if node.CornerRadius == nil || *node.CornerRadius != 4 {
		t.Error("expected cornerRadius 4")
	}
	if len(node.Fills) != 1 {
		t.Fatalf("expected 1 fill, got %d", len(node.Fills))
	}
}

func TestGetNodeStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"not found", http.StatusNotFound, ErrNotFound},
		{"unauthorized", http.StatusUnauthorized, ErrUnauthorized},
		{"forbidden", http.StatusForbidden, ErrUnauthorized},
		{"server error", http.StatusInternalServerError, ErrUpstream},
		{"bad gateway", http.StatusBadGateway, ErrUpstream},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			client := NewClient(srv.URL)
			_, err := client.GetNode(context.Background(), "tok", "key", "1:1")
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestGetNodeRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "30")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	before := time.Now()
	_, err := client.GetNode(context.Background(), "tok", "key", "1:1")

	if !IsRateLimited(err) {
		t.Fatalf("expected rate limited error, got %v", err)
	}

	var rl *RateLimitedError
	errors.As(err, &rl)
	wait := rl.ResetAt.Sub(before)
	if wait < 29*time.Second || wait > 31*time.Second {
		t.Errorf("expected reset ~30s out, got %s", wait)
	}
}

func TestGetNodeRateLimitedDefaultRetry(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	before := time.Now()
	_, err := client.GetNode(context.Background(), "tok", "key", "1:1")

	var rl *RateLimitedError
	if !errors.As(err, &rl) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	wait := rl.ResetAt.Sub(before)
	if wait < 59*time.Second || wait > 61*time.Second {
		t.Errorf("expected default 1m reset, got %s", wait)
	}
}

func TestGetNodeMissingFromResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"nodes": {}}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetNode(context.Background(), "tok", "key", "9:99")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected not found for missing node, got %v", err)
	}
}

func TestGetNodeMalformedBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetNode(context.Background(), "tok", "key", "1:1")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected upstream error for malformed body, got %v", err)
	}
}

func TestGetNodeConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	client := NewClient(srv.URL)
	_, err := client.GetNode(context.Background(), "tok", "key", "1:1")
	if !errors.Is(err, ErrUpstream) {
		t.Errorf("expected upstream error for refused connection, got %v", err)
	}
}
