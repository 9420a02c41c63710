// Package reconcile runs drift checks over registered watches: fetch the
// current remote state, diff it against the baseline snapshot, persist the
// outcome and raise alerts.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/driftwatchhq/driftwatch/internal/diff"
	"github.com/driftwatchhq/driftwatch/internal/figma"
	"github.com/driftwatchhq/driftwatch/internal/logger"
	"github.com/driftwatchhq/driftwatch/internal/metrics"
	"github.com/driftwatchhq/driftwatch/internal/models"
	"github.com/driftwatchhq/driftwatch/internal/notify"
	"github.com/driftwatchhq/driftwatch/internal/storage"
)

// Sentinel errors for callers that map outcomes to HTTP responses.
var (
	ErrWatchNotFound = errors.New("watch not found")
	ErrNotConnected  = errors.New("figma integration not connected")
)

// Source fetches the current normalized properties for a design node.
// Implemented by the figma adapter; tests substitute their own.
type Source interface {
	Fetch(ctx context.Context, token, orgID, fileKey, nodeID string) (*models.PropertySet, error)
}

// AlertDispatcher delivers drift notifications. Implemented by
// notify.Dispatcher; delivery failures never surface here.
type AlertDispatcher interface {
	Dispatch(ctx context.Context, n *notify.Notification) error
}

// Outcome classifies one watch's reconciliation cycle.
type Outcome string

const (
	OutcomeHealthy Outcome = "healthy"
	OutcomeDrift   Outcome = "drift"
	OutcomeError   Outcome = "error"
	// OutcomeSkipped means the cycle did not run, e.g. the rate limiter
	// denied the fetch. Nothing is recorded on the watch; it is retried on
	// the next tick.
	OutcomeSkipped Outcome = "skipped"
)

// Reconciler owns the watch state machine. It is the only writer of watch
// status and check timestamps.
type Reconciler struct {
	watches      storage.WatchRepository
	alerts       storage.AlertRepository
	integrations storage.IntegrationRepository
	source       Source
	dispatcher   AlertDispatcher

	// dashboardBase is the product URL alerts deep-link back to.
	dashboardBase string

	log *logger.Logger
}

// New creates a reconciler.
func New(
	watches storage.WatchRepository,
	alerts storage.AlertRepository,
	integrations storage.IntegrationRepository,
	source Source,
	dispatcher AlertDispatcher,
	dashboardBase string,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{
		watches:       watches,
		alerts:        alerts,
		integrations:  integrations,
		source:        source,
		dispatcher:    dispatcher,
		dashboardBase: dashboardBase,
		log:           log.With("component", "reconcile"),
	}
}

// CheckWatch runs one reconciliation cycle for a watch. All failures are
// contained: the outcome says what happened, nothing propagates. The watch
// row is written at most once, as the last step of the cycle.
func (r *Reconciler) CheckWatch(ctx context.Context, watch *models.DriftWatch) Outcome {
	start := time.Now()
	defer func() {
		metrics.ReconcileDuration.Observe(time.Since(start).Seconds())
	}()

	outcome := r.check(ctx, watch)
	metrics.WatchesChecked.WithLabelValues(string(outcome)).Inc()
	return outcome
}

func (r *Reconciler) check(ctx context.Context, watch *models.DriftWatch) Outcome {
	// Inactive watches never reach the source adapter.
	if !watch.IsActive {
		return OutcomeSkipped
	}

	conn, err := r.integrations.GetByOrg(ctx, watch.OrgID, models.IntegrationFigma)
	if err != nil {
		return r.recordError(ctx, watch, fmt.Sprintf("load integration: %v", err))
	}
	if conn == nil {
		return r.recordError(ctx, watch, "figma integration not connected")
	}

	current, err := r.source.Fetch(ctx, conn.AccessToken, watch.OrgID, watch.FigmaFileKey, watch.FigmaNodeID)
	if err != nil {
		if figma.IsRateLimited(err) {
			// Skip this tick; the watch is untouched and retried next run.
			r.log.Debug("fetch rate limited, skipping cycle", "watch_id", watch.ID)
			return OutcomeSkipped
		}
		return r.recordError(ctx, watch, err.Error())
	}

	// A watch that has never captured a baseline adopts the current state.
	if watch.Snapshot == nil {
		return r.recordHealthy(ctx, watch, current)
	}

	changes := diff.Compare(watch.Snapshot, current)
	if len(changes) == 0 {
		return r.recordHealthy(ctx, watch, current)
	}

	return r.recordDrift(ctx, watch, changes)
}

// recordHealthy writes a change-free outcome. The snapshot is refreshed to
// the just-observed state, which for tracked categories is equivalent to
// the old baseline.
func (r *Reconciler) recordHealthy(ctx context.Context, watch *models.DriftWatch, current *models.PropertySet) Outcome {
	now := time.Now().UTC()
	result := storage.CheckResult{
		Status:    models.WatchStatusHealthy,
		Snapshot:  current,
		CheckedAt: now,
		HealthyAt: &now,
	}
	if err := r.watches.UpdateCheckResult(ctx, watch.ID, result); err != nil {
		metrics.StorageErrors.WithLabelValues("update_check_result").Inc()
		r.log.Error("record healthy outcome failed", "watch_id", watch.ID, "error", err)
		return OutcomeError
	}
	return OutcomeHealthy
}

// recordDrift persists the alert, marks the watch drifted, and triggers the
// dispatcher. The baseline snapshot is deliberately left untouched so
// repeated unacknowledged drift does not compound.
func (r *Reconciler) recordDrift(ctx context.Context, watch *models.DriftWatch, changes []models.PropertyChange) Outcome {
	now := time.Now().UTC()

	alert := models.NewDriftAlert(watch.ID, watch.OrgID, changes)
	if err := r.alerts.Create(ctx, alert); err != nil {
		metrics.StorageErrors.WithLabelValues("create_alert").Inc()
		return r.recordError(ctx, watch, fmt.Sprintf("persist alert: %v", err))
	}
	metrics.DriftAlertsTotal.WithLabelValues(string(alert.Severity)).Inc()

	result := storage.CheckResult{
		Status:       models.WatchStatusDrift,
		StatusReason: fmt.Sprintf("%d properties drifted", len(changes)),
		CheckedAt:    now,
	}
	if err := r.watches.UpdateCheckResult(ctx, watch.ID, result); err != nil {
		metrics.StorageErrors.WithLabelValues("update_check_result").Inc()
		r.log.Error("record drift outcome failed", "watch_id", watch.ID, "error", err)
		return OutcomeError
	}

	r.log.Info("drift detected",
		"watch_id", watch.ID, "alert_id", alert.ID,
		"severity", alert.Severity, "changes", len(changes))

	if watch.AlertOnDrift && watch.WebhookURL != "" {
		// Best effort; the dispatcher bookkeeps its own failures.
		_ = r.dispatcher.Dispatch(ctx, &notify.Notification{
			AlertID:      alert.ID,
			WatchID:      watch.ID,
			WatchName:    watch.Name,
			FigmaFileKey: watch.FigmaFileKey,
			FigmaNodeID:  watch.FigmaNodeID,
			CodePath:     watch.CodePath,
			WebhookURL:   watch.WebhookURL,
			Severity:     alert.Severity,
			Changes:      changes,
			DetectedAt:   alert.CreatedAt,
			DashboardURL: r.alertURL(watch.ID, alert.ID),
		})
	}

	return OutcomeDrift
}

// recordError marks the watch errored with a descriptive reason. The
// baseline snapshot and timestamps are preserved.
func (r *Reconciler) recordError(ctx context.Context, watch *models.DriftWatch, reason string) Outcome {
	result := storage.CheckResult{
		Status:       models.WatchStatusError,
		StatusReason: reason,
		CheckedAt:    time.Now().UTC(),
	}
	if err := r.watches.UpdateCheckResult(ctx, watch.ID, result); err != nil {
		metrics.StorageErrors.WithLabelValues("update_check_result").Inc()
		r.log.Error("record error outcome failed", "watch_id", watch.ID, "error", err)
	}
	r.log.Warn("watch check failed", "watch_id", watch.ID, "reason", reason)
	return OutcomeError
}

// CheckWatchByID runs one on-demand cycle. Returns an error only when the
// watch cannot be loaded.
func (r *Reconciler) CheckWatchByID(ctx context.Context, id string) (Outcome, error) {
	watch, err := r.watches.GetByID(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load watch: %w", err)
	}
	if watch == nil {
		return "", fmt.Errorf("%w: %s", ErrWatchNotFound, id)
	}
	return r.CheckWatch(ctx, watch), nil
}

// Rebaseline fetches the current remote state and stores it as the new
// accepted baseline. This is the explicit operation; the automatic loop
// never does this on drift.
func (r *Reconciler) Rebaseline(ctx context.Context, id string) (*models.PropertySet, error) {
	watch, err := r.watches.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load watch: %w", err)
	}
	if watch == nil {
		return nil, fmt.Errorf("%w: %s", ErrWatchNotFound, id)
	}

	conn, err := r.integrations.GetByOrg(ctx, watch.OrgID, models.IntegrationFigma)
	if err != nil {
		return nil, fmt.Errorf("load integration: %w", err)
	}
	if conn == nil {
		return nil, fmt.Errorf("%w: org %s", ErrNotConnected, watch.OrgID)
	}

	current, err := r.source.Fetch(ctx, conn.AccessToken, watch.OrgID, watch.FigmaFileKey, watch.FigmaNodeID)
	if err != nil {
		return nil, fmt.Errorf("fetch current state: %w", err)
	}

	if err := r.watches.Rebaseline(ctx, id, current, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("store baseline: %w", err)
	}

	r.log.Info("watch rebaselined", "watch_id", id)
	return current, nil
}

func (r *Reconciler) alertURL(watchID, alertID string) string {
	if r.dashboardBase == "" {
		return ""
	}
	return fmt.Sprintf("%s/watches/%s/alerts/%s", r.dashboardBase, watchID, alertID)
}
