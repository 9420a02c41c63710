package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/driftwatchhq/driftwatch/internal/models"
)

// maxChangeLines caps the per-property lines rendered in one message.
const maxChangeLines = 10

// SlackNotifier posts drift summaries to Slack incoming webhooks. The
// webhook URL comes from the notification, not from config, since each
// watch carries its own target.
type SlackNotifier struct {
	httpClient *http.Client
}

// NewSlackNotifier creates a new Slack notifier.
func NewSlackNotifier() *SlackNotifier {
	return &SlackNotifier{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns "slack".
func (s *SlackNotifier) Name() string {
	return "slack"
}

// Send posts the drift summary to the notification's webhook URL. Any
// non-200 response is a delivery failure.
func (s *SlackNotifier) Send(ctx context.Context, n *Notification) error {
	if !strings.HasPrefix(n.WebhookURL, "https://") && !strings.HasPrefix(n.WebhookURL, "http://") {
		return fmt.Errorf("invalid webhook URL")
	}

	payload := buildPayload(n)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.WebhookURL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// slackMessage represents the Slack webhook payload.
type slackMessage struct {
	Blocks []slackBlock `json:"blocks"`
}

// slackBlock represents a Slack Block Kit block.
type slackBlock struct {
	Type     string      `json:"type"`
	Text     *slackText  `json:"text,omitempty"`
	Fields   []slackText `json:"fields,omitempty"`
	Elements []slackText `json:"elements,omitempty"`
}

// slackText represents text in Slack Block Kit.
type slackText struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	Emoji bool   `json:"emoji,omitempty"`
}

// buildPayload builds the Slack Block Kit message payload.
func buildPayload(n *Notification) slackMessage {
	emoji := severityEmoji(n.Severity)
	timestamp := n.DetectedAt.Format("2006-01-02 15:04:05 MST")

	title := n.WatchName
	if title == "" {
		title = n.FigmaNodeID
	}

	blocks := []slackBlock{
		// Header
		{
			Type: "header",
			Text: &slackText{
				Type:  "plain_text",
				Text:  fmt.Sprintf("%s Design drift detected: %s", emoji, title),
				Emoji: true,
			},
		},
		// Severity and Time fields
		{
			Type: "section",
			Fields: []slackText{
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Severity:*\n%s %s", emoji, strings.ToUpper(string(n.Severity))),
				},
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("*Detected:*\n%s", timestamp),
				},
			},
		},
		// Changed properties
		{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("*Changed properties:*\n%s", formatChanges(n.Changes)),
			},
		},
	}

	// Code location context
	if n.CodePath != "" {
		blocks = append(blocks, slackBlock{
			Type: "context",
			Elements: []slackText{
				{
					Type: "mrkdwn",
					Text: fmt.Sprintf("Code: `%s` | Figma: `%s/%s`", n.CodePath, n.FigmaFileKey, n.FigmaNodeID),
				},
			},
		})
	}

	// Deep link back into the product
	if n.DashboardURL != "" {
		blocks = append(blocks, slackBlock{
			Type: "section",
			Text: &slackText{
				Type: "mrkdwn",
				Text: fmt.Sprintf("<%s|Review in driftwatch>", n.DashboardURL),
			},
		})
	}

	return slackMessage{Blocks: blocks}
}

// formatChanges renders one line per changed property, capped.
func formatChanges(changes []models.PropertyChange) string {
	var lines []string
	for i, c := range changes {
		if i >= maxChangeLines {
			lines = append(lines, fmt.Sprintf("_...and %d more_", len(changes)-maxChangeLines))
			break
		}
		lines = append(lines, fmt.Sprintf("• *%s* (%s): `%s` → `%s`",
			c.Property, c.Severity, formatValue(c.OldValue), formatValue(c.NewValue)))
	}
	return strings.Join(lines, "\n")
}

// formatValue renders a change value compactly.
func formatValue(v any) string {
	if v == nil {
		return "unset"
	}
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return trimFloat(val)
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return truncate(string(data), 120)
	}
}

// trimFloat formats a float without trailing zeros.
func trimFloat(v float64) string {
	s := fmt.Sprintf("%.2f", v)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}

// severityEmoji returns an emoji for the severity level.
func severityEmoji(severity models.Severity) string {
	switch severity {
	case models.SeverityHigh:
		return "\U0001F534" // red circle
	case models.SeverityMedium:
		return "\U0001F7E1" // yellow circle
	case models.SeverityLow:
		return "\U0001F7E2" // green circle
	default:
		return "⚪" // white circle
	}
}

// truncate truncates a string to max length with ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
