package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/driftwatchhq/driftwatch/internal/models"
)

func testNotification(webhookURL string) *Notification {
	old := 4.0
	newVal := 8.0
	return &Notification{
		AlertID:      "alert-1",
		WatchID:      "w-1",
		WatchName:    "Button",
		FigmaFileKey: "fileKey123",
		FigmaNodeID:  "1:23",
		CodePath:     "src/Button.tsx",
		WebhookURL:   webhookURL,
		Severity:     models.SeverityMedium,
		Changes: []models.PropertyChange{
			{Property: "corner_radius", OldValue: old, NewValue: newVal, Severity: models.SeverityLow},
		},
		DetectedAt:   time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		DashboardURL: "https://app.driftwatch.dev/watches/w-1/alerts/alert-1",
	}
}

func TestSlackSend(t *testing.T) {
	var body []byte
	var contentType string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	notifier := NewSlackNotifier()
	if err := notifier.Send(context.Background(), testNotification(server.URL)); err != nil {
		t.Fatalf("send: %v", err)
	}

	if contentType != "application/json" {
		t.Errorf("expected json content type, got %q", contentType)
	}

	var msg slackMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if len(msg.Blocks) == 0 {
		t.Fatal("expected blocks in the payload")
	}

	rendered := string(body)
	for _, want := range []string{"Button", "MEDIUM", "corner_radius", "src/Button.tsx", "Review in driftwatch"} {
		if !strings.Contains(rendered, want) {
			t.Errorf("payload missing %q", want)
		}
	}
}

func TestSlackSendWebhookError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
		fmt.Fprint(w, "no_service")
	}))
	defer server.Close()

	notifier := NewSlackNotifier()
	err := notifier.Send(context.Background(), testNotification(server.URL))
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
	if !strings.Contains(err.Error(), "410") || !strings.Contains(err.Error(), "no_service") {
		t.Errorf("expected status and body in error, got %v", err)
	}
}

func TestSlackSendRejectsBadURL(t *testing.T) {
	notifier := NewSlackNotifier()
	if err := notifier.Send(context.Background(), testNotification("ftp://example.com/hook")); err == nil {
		t.Fatal("expected error for non-http webhook URL")
	}
}

func TestBuildPayloadFallsBackToNodeID(t *testing.T) {
	n := testNotification("https://example.com")
	n.WatchName = ""

	msg := buildPayload(n)
	header := msg.Blocks[0].Text.Text
	if !strings.Contains(header, "1:23") {
		t.Errorf("expected node id in header, got %q", header)
	}
}

func TestFormatChangesCapped(t *testing.T) {
	var changes []models.PropertyChange
	for i := 0; i < maxChangeLines+2; i++ {
		changes = append(changes, models.PropertyChange{
			Property: fmt.Sprintf("prop_%d", i),
			OldValue: "a",
			NewValue: "b",
			Severity: models.SeverityLow,
		})
	}

	out := formatChanges(changes)
	if got := strings.Count(out, "\n") + 1; got != maxChangeLines+1 {
		t.Errorf("expected %d lines, got %d", maxChangeLines+1, got)
	}
	if !strings.Contains(out, "and 2 more") {
		t.Errorf("expected overflow marker, got:\n%s", out)
	}
}

func TestFormatValue(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, "unset"},
		{"string", "#FFFFFF", "#FFFFFF"},
		{"whole float", 8.0, "8"},
		{"fractional float", 1.25, "1.25"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := formatValue(tt.in); got != tt.want {
				t.Errorf("formatValue(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
