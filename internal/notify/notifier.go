// Package notify provides best-effort notification delivery for drift
// alerts. Persistence of the detection is the primary guarantee and happens
// before dispatch; nothing in this package can roll it back.
package notify

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/driftwatchhq/driftwatch/internal/logger"
	"github.com/driftwatchhq/driftwatch/internal/metrics"
	"github.com/driftwatchhq/driftwatch/internal/models"
	"github.com/driftwatchhq/driftwatch/internal/storage"
)

// Notification carries everything a channel needs to render a drift summary.
type Notification struct {
	AlertID   string
	WatchID   string
	WatchName string

	FigmaFileKey string
	FigmaNodeID  string
	CodePath     string

	// WebhookURL is the per-watch delivery target.
	WebhookURL string

	Severity   models.Severity
	Changes    []models.PropertyChange
	DetectedAt time.Time

	// DashboardURL is the deep link back into the product.
	DashboardURL string
}

// Notifier is the interface for all notification channels.
type Notifier interface {
	// Name returns the notifier name (e.g., "slack").
	Name() string
	// Send delivers one notification.
	Send(ctx context.Context, n *Notification) error
}

// ThrottleConfig bounds outbound notification volume for this process.
type ThrottleConfig struct {
	// PerMinute is the sustained delivery rate (default: 10).
	PerMinute int
	// Burst is the burst allowance (default: 5).
	Burst int
}

// setDefaults applies default throttle values.
func (c *ThrottleConfig) setDefaults() {
	if c.PerMinute <= 0 {
		c.PerMinute = 10
	}
	if c.Burst <= 0 {
		c.Burst = 5
	}
}

// Dispatcher routes drift alerts to their notification channel and records
// the delivery outcome on the alert.
type Dispatcher struct {
	notifier Notifier
	alerts   storage.AlertRepository
	throttle *rate.Limiter
	log      *logger.Logger
}

// NewDispatcher creates a dispatcher delivering through the given notifier.
func NewDispatcher(notifier Notifier, alerts storage.AlertRepository, cfg ThrottleConfig, log *logger.Logger) *Dispatcher {
	cfg.setDefaults()
	return &Dispatcher{
		notifier: notifier,
		alerts:   alerts,
		throttle: rate.NewLimiter(rate.Limit(float64(cfg.PerMinute)/60.0), cfg.Burst),
		log:      log.With("component", "notify"),
	}
}

// Dispatch delivers one notification and records the outcome on the alert.
// Failures are contained here: they are logged and bookkept, never returned
// as a reconciliation failure. The returned error exists for tests and
// callers that want visibility, not for control flow.
func (d *Dispatcher) Dispatch(ctx context.Context, n *Notification) error {
	if n.WebhookURL == "" {
		return nil
	}

	now := time.Now().UTC()

	if !d.throttle.Allow() {
		metrics.NotificationsTotal.WithLabelValues(d.notifier.Name(), "throttled").Inc()
		d.log.Warn("notification throttled", "alert_id", n.AlertID, "watch_id", n.WatchID)
		d.markDelivery(ctx, n.AlertID, false, now, "throttled")
		return fmt.Errorf("notification throttled")
	}

	if err := d.notifier.Send(ctx, n); err != nil {
		metrics.NotificationsTotal.WithLabelValues(d.notifier.Name(), "error").Inc()
		d.log.Warn("notification delivery failed",
			"alert_id", n.AlertID, "watch_id", n.WatchID, "error", err)
		d.markDelivery(ctx, n.AlertID, false, now, err.Error())
		return fmt.Errorf("send notification: %w", err)
	}

	metrics.NotificationsTotal.WithLabelValues(d.notifier.Name(), "ok").Inc()
	d.markDelivery(ctx, n.AlertID, true, now, "")
	return nil
}

// markDelivery records the delivery outcome; bookkeeping failures are only
// logged since the alert itself is already persisted.
func (d *Dispatcher) markDelivery(ctx context.Context, alertID string, delivered bool, at time.Time, deliveryErr string) {
	if err := d.alerts.MarkDelivery(ctx, alertID, delivered, at, deliveryErr); err != nil {
		metrics.StorageErrors.WithLabelValues("mark_delivery").Inc()
		d.log.Error("record delivery outcome failed", "alert_id", alertID, "error", err)
	}
}
