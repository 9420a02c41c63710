package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/driftwatchhq/driftwatch/internal/models"
)

func newTestStorage(t *testing.T) *SQLiteStorage {
	t.Helper()
	store := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err := store.Open(); err != nil {
		t.Fatalf("open storage: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

func floatPtr(v float64) *float64 { return &v }

func seedWatch(t *testing.T, store *SQLiteStorage, orgID string) *models.DriftWatch {
	t.Helper()
	watch := models.NewDriftWatch(orgID, "fileKey123", "1:23", "src/Button.tsx")
	watch.Name = "Button"
	watch.WebhookURL = "https://hooks.example.com/x"
	watch.Snapshot = &models.PropertySet{
		BackgroundColor: "#FFFFFF",
		CornerRadius:    floatPtr(4),
	}
	if err := store.Watches().Create(context.Background(), watch); err != nil {
		t.Fatalf("create watch: %v", err)
	}
	return watch
}

func seedAlert(t *testing.T, store *SQLiteStorage, watch *models.DriftWatch, createdAt time.Time) *models.DriftAlert {
	t.Helper()
	alert := models.NewDriftAlert(watch.ID, watch.OrgID, []models.PropertyChange{
		{Property: "corner_radius", OldValue: 4.0, NewValue: 8.0, Severity: models.SeverityLow},
	})
	alert.CreatedAt = createdAt
	if err := store.Alerts().Create(context.Background(), alert); err != nil {
		t.Fatalf("create alert: %v", err)
	}
	return alert
}

func TestWatchCreateGetRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	watch := seedWatch(t, store, "org-1")
	if watch.ID == "" {
		t.Fatal("expected generated watch id")
	}

	got, err := store.Watches().GetByID(ctx, watch.ID)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if got == nil {
		t.Fatal("expected watch, got nil")
	}

	if got.OrgID != "org-1" || got.Name != "Button" || got.FigmaNodeID != "1:23" {
		t.Errorf("unexpected fields: %+v", got)
	}
	if !got.IsActive || !got.AlertOnDrift {
		t.Error("expected default flags preserved")
	}
	if got.Status != models.WatchStatusHealthy {
		t.Errorf("expected healthy status, got %s", got.Status)
	}
	if !reflect.DeepEqual(got.Snapshot, watch.Snapshot) {
		t.Errorf("snapshot round trip mismatch: %+v", got.Snapshot)
	}
	if got.LastCheckedAt != nil || got.LastHealthyAt != nil {
		t.Error("expected no check timestamps on a fresh watch")
	}
}

func TestWatchGetMissingReturnsNil(t *testing.T) {
	store := newTestStorage(t)

	got, err := store.Watches().GetByID(context.Background(), "missing")
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if got != nil {
		t.Errorf("expected nil for missing watch, got %+v", got)
	}
}

func TestWatchListActive(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	active := seedWatch(t, store, "org-1")
	inactive := seedWatch(t, store, "org-1")
	if err := store.Watches().SetActive(ctx, inactive.ID, false); err != nil {
		t.Fatalf("set active: %v", err)
	}

	watches, err := store.Watches().ListActive(ctx)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(watches) != 1 || watches[0].ID != active.ID {
		t.Errorf("expected only the active watch, got %d", len(watches))
	}
}

func TestWatchListByOrg(t *testing.T) {
	store := newTestStorage(t)

	seedWatch(t, store, "org-1")
	seedWatch(t, store, "org-1")
	seedWatch(t, store, "org-2")

	watches, err := store.Watches().ListByOrg(context.Background(), "org-1")
	if err != nil {
		t.Fatalf("list by org: %v", err)
	}
	if len(watches) != 2 {
		t.Errorf("expected 2 watches for org-1, got %d", len(watches))
	}
}

func TestUpdateCheckResultHealthyRefreshesSnapshot(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	watch := seedWatch(t, store, "org-1")

	now := time.Now().UTC()
	refreshed := &models.PropertySet{BackgroundColor: "#FAFAFA"}
	result := CheckResult{
		Status:    models.WatchStatusHealthy,
		Snapshot:  refreshed,
		CheckedAt: now,
		HealthyAt: &now,
	}
	if err := store.Watches().UpdateCheckResult(ctx, watch.ID, result); err != nil {
		t.Fatalf("update check result: %v", err)
	}

	got, err := store.Watches().GetByID(ctx, watch.ID)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if !reflect.DeepEqual(got.Snapshot, refreshed) {
		t.Errorf("expected refreshed snapshot, got %+v", got.Snapshot)
	}
	if got.LastCheckedAt == nil || got.LastCheckedAt.Unix() != now.Unix() {
		t.Errorf("unexpected last checked at %v", got.LastCheckedAt)
	}
	if got.LastHealthyAt == nil || got.LastHealthyAt.Unix() != now.Unix() {
		t.Errorf("unexpected last healthy at %v", got.LastHealthyAt)
	}
}

func TestUpdateCheckResultDriftKeepsBaseline(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	watch := seedWatch(t, store, "org-1")

	healthyAt := time.Now().UTC().Add(-time.Hour)
	healthy := CheckResult{
		Status:    models.WatchStatusHealthy,
		Snapshot:  watch.Snapshot,
		CheckedAt: healthyAt,
		HealthyAt: &healthyAt,
	}
	if err := store.Watches().UpdateCheckResult(ctx, watch.ID, healthy); err != nil {
		t.Fatalf("record healthy: %v", err)
	}

	drift := CheckResult{
		Status:       models.WatchStatusDrift,
		StatusReason: "1 properties drifted",
		CheckedAt:    time.Now().UTC(),
	}
	if err := store.Watches().UpdateCheckResult(ctx, watch.ID, drift); err != nil {
		t.Fatalf("record drift: %v", err)
	}

	got, err := store.Watches().GetByID(ctx, watch.ID)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if got.Status != models.WatchStatusDrift || got.StatusReason != "1 properties drifted" {
		t.Errorf("unexpected status %s (%s)", got.Status, got.StatusReason)
	}
	if !reflect.DeepEqual(got.Snapshot, watch.Snapshot) {
		t.Error("drift write must not touch the baseline snapshot")
	}
	if got.LastHealthyAt == nil || got.LastHealthyAt.Unix() != healthyAt.Unix() {
		t.Errorf("expected healthy timestamp preserved, got %v", got.LastHealthyAt)
	}
}

func TestUpdateCheckResultMissingWatch(t *testing.T) {
	store := newTestStorage(t)

	result := CheckResult{Status: models.WatchStatusError, StatusReason: "x", CheckedAt: time.Now().UTC()}
	if err := store.Watches().UpdateCheckResult(context.Background(), "missing", result); err == nil {
		t.Fatal("expected error for missing watch")
	}
}

func TestRebaselineReplacesSnapshot(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	watch := seedWatch(t, store, "org-1")

	drift := CheckResult{
		Status:       models.WatchStatusDrift,
		StatusReason: "2 properties drifted",
		CheckedAt:    time.Now().UTC(),
	}
	if err := store.Watches().UpdateCheckResult(ctx, watch.ID, drift); err != nil {
		t.Fatalf("record drift: %v", err)
	}

	at := time.Now().UTC()
	snapshot := &models.PropertySet{BackgroundColor: "#000000", CornerRadius: floatPtr(8)}
	if err := store.Watches().Rebaseline(ctx, watch.ID, snapshot, at); err != nil {
		t.Fatalf("rebaseline: %v", err)
	}

	got, err := store.Watches().GetByID(ctx, watch.ID)
	if err != nil {
		t.Fatalf("get watch: %v", err)
	}
	if !reflect.DeepEqual(got.Snapshot, snapshot) {
		t.Errorf("expected new baseline, got %+v", got.Snapshot)
	}
	if got.Status != models.WatchStatusHealthy || got.StatusReason != "" {
		t.Errorf("expected status reset, got %s (%s)", got.Status, got.StatusReason)
	}
	if got.LastHealthyAt == nil || got.LastHealthyAt.Unix() != at.Unix() {
		t.Errorf("unexpected healthy timestamp %v", got.LastHealthyAt)
	}
}

func TestWatchDeleteCascadesAlerts(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	watch := seedWatch(t, store, "org-1")
	alert := seedAlert(t, store, watch, time.Now().UTC())

	if err := store.Watches().Delete(ctx, watch.ID); err != nil {
		t.Fatalf("delete watch: %v", err)
	}

	got, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if got != nil {
		t.Error("expected alerts deleted with their watch")
	}
}

func TestAlertListPagination(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	watch := seedWatch(t, store, "org-1")

	base := time.Now().UTC().Add(-time.Hour)
	var ids []string
	for i := 0; i < 5; i++ {
		alert := seedAlert(t, store, watch, base.Add(time.Duration(i)*time.Minute))
		ids = append(ids, alert.ID)
	}

	alerts, total, err := store.Alerts().List(ctx, 2, 0)
	if err != nil {
		t.Fatalf("list alerts: %v", err)
	}
	if total != 5 {
		t.Errorf("expected total 5, got %d", total)
	}
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	// Newest first.
	if alerts[0].ID != ids[4] || alerts[1].ID != ids[3] {
		t.Errorf("unexpected order: %s, %s", alerts[0].ID, alerts[1].ID)
	}

	alerts, _, err = store.Alerts().List(ctx, 2, 4)
	if err != nil {
		t.Fatalf("list alerts offset: %v", err)
	}
	if len(alerts) != 1 || alerts[0].ID != ids[0] {
		t.Errorf("unexpected last page: %+v", alerts)
	}
}

func TestAlertListByWatch(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first := seedWatch(t, store, "org-1")
	second := seedWatch(t, store, "org-1")
	seedAlert(t, store, first, time.Now().UTC())
	seedAlert(t, store, first, time.Now().UTC().Add(time.Minute))
	seedAlert(t, store, second, time.Now().UTC())

	alerts, total, err := store.Alerts().ListByWatch(ctx, first.ID, 50, 0)
	if err != nil {
		t.Fatalf("list by watch: %v", err)
	}
	if total != 2 || len(alerts) != 2 {
		t.Errorf("expected 2 alerts for watch, got %d (total %d)", len(alerts), total)
	}
	for _, alert := range alerts {
		if alert.WatchID != first.ID {
			t.Errorf("alert %s belongs to %s", alert.ID, alert.WatchID)
		}
	}
}

func TestAlertChangesRoundTrip(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	watch := seedWatch(t, store, "org-1")
	alert := seedAlert(t, store, watch, time.Now().UTC())

	got, err := store.Alerts().GetByID(ctx, alert.ID)
	if err != nil {
		t.Fatalf("get alert: %v", err)
	}
	if got == nil {
		t.Fatal("expected alert, got nil")
	}
	if got.Severity != models.SeverityLow {
		t.Errorf("expected low severity, got %s", got.Severity)
	}
	if len(got.Changes) != 1 || got.Changes[0].Property != "corner_radius" {
		t.Errorf("unexpected changes: %+v", got.Changes)
	}
	if got.Changes[0].OldValue != 4.0 || got.Changes[0].NewValue != 8.0 {
		t.Errorf("unexpected change values: %+v", got.Changes[0])
	}
}

func TestAlertAcknowledge(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	watch := seedWatch(t, store, "org-1")
	alert := seedAlert(t, store, watch, time.Now().UTC())

	at := time.Now().UTC()
	if err := store.Alerts().Acknowledge(ctx, alert.ID, at); err != nil {
		t.Fatalf("acknowledge: %v", err)
	}

	got, _ := store.Alerts().GetByID(ctx, alert.ID)
	if !got.Acknowledged || got.AcknowledgedAt == nil {
		t.Errorf("expected acknowledged alert, got %+v", got)
	}

	if err := store.Alerts().Acknowledge(ctx, "missing", at); err == nil {
		t.Error("expected error for missing alert")
	}
}

func TestAlertMarkDelivery(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()
	watch := seedWatch(t, store, "org-1")
	alert := seedAlert(t, store, watch, time.Now().UTC())

	at := time.Now().UTC()
	if err := store.Alerts().MarkDelivery(ctx, alert.ID, false, at, "webhook error: status 410"); err != nil {
		t.Fatalf("mark delivery: %v", err)
	}

	got, _ := store.Alerts().GetByID(ctx, alert.ID)
	if got.Delivered || got.DeliveryError != "webhook error: status 410" {
		t.Errorf("unexpected delivery state: %+v", got)
	}

	if err := store.Alerts().MarkDelivery(ctx, alert.ID, true, at, ""); err != nil {
		t.Fatalf("mark delivery: %v", err)
	}
	got, _ = store.Alerts().GetByID(ctx, alert.ID)
	if !got.Delivered || got.DeliveryError != "" || got.DeliveredAt == nil {
		t.Errorf("unexpected delivery state: %+v", got)
	}
}

func TestIntegrationUpsertReplacesToken(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	first := models.NewIntegrationConnection("org-1", models.IntegrationFigma, "figd_first")
	if err := store.Integrations().Upsert(ctx, first); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second := models.NewIntegrationConnection("org-1", models.IntegrationFigma, "figd_second")
	if err := store.Integrations().Upsert(ctx, second); err != nil {
		t.Fatalf("upsert again: %v", err)
	}

	got, err := store.Integrations().GetByOrg(ctx, "org-1", models.IntegrationFigma)
	if err != nil {
		t.Fatalf("get integration: %v", err)
	}
	if got == nil {
		t.Fatal("expected connection, got nil")
	}
	if got.AccessToken != "figd_second" {
		t.Errorf("expected replaced token, got %q", got.AccessToken)
	}
	// The original row survives the conflict; only the token rotates.
	if got.ID != first.ID {
		t.Errorf("expected original row id %s, got %s", first.ID, got.ID)
	}
}

func TestIntegrationDelete(t *testing.T) {
	store := newTestStorage(t)
	ctx := context.Background()

	conn := models.NewIntegrationConnection("org-1", models.IntegrationFigma, "figd_token")
	if err := store.Integrations().Upsert(ctx, conn); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	if err := store.Integrations().Delete(ctx, "org-1", models.IntegrationFigma); err != nil {
		t.Fatalf("delete: %v", err)
	}

	got, err := store.Integrations().GetByOrg(ctx, "org-1", models.IntegrationFigma)
	if err != nil {
		t.Fatalf("get integration: %v", err)
	}
	if got != nil {
		t.Error("expected nil after delete")
	}

	if err := store.Integrations().Delete(ctx, "org-1", models.IntegrationFigma); err == nil {
		t.Error("expected error deleting absent connection")
	}
}
