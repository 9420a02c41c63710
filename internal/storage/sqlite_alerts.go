package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatchhq/driftwatch/internal/models"
)

// sqliteAlertRepo implements AlertRepository using SQLite.
type sqliteAlertRepo struct {
	db *sql.DB
}

const alertColumns = `id, watch_id, org_id, changes_json, severity,
	acknowledged, acknowledged_at, delivered, delivered_at, delivery_error, created_at`

func (r *sqliteAlertRepo) Create(ctx context.Context, alert *models.DriftAlert) error {
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}

	changesJSON, err := json.Marshal(alert.Changes)
	if err != nil {
		return fmt.Errorf("marshal changes: %w", err)
	}

	query := `
		INSERT INTO drift_alerts (` + alertColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		alert.ID, alert.WatchID, alert.OrgID, string(changesJSON), alert.Severity,
		boolToInt(alert.Acknowledged), alert.AcknowledgedAt,
		boolToInt(alert.Delivered), alert.DeliveredAt, nullString(alert.DeliveryError),
		alert.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

func (r *sqliteAlertRepo) GetByID(ctx context.Context, id string) (*models.DriftAlert, error) {
	query := `SELECT ` + alertColumns + ` FROM drift_alerts WHERE id = ?`
	alert, err := scanAlertRow(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return alert, err
}

func (r *sqliteAlertRepo) List(ctx context.Context, limit, offset int) ([]*models.DriftAlert, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM drift_alerts").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	query := `SELECT ` + alertColumns + ` FROM drift_alerts ORDER BY created_at DESC LIMIT ? OFFSET ?`
	alerts, err := r.queryAlerts(ctx, query, limit, offset)
	return alerts, total, err
}

func (r *sqliteAlertRepo) ListByWatch(ctx context.Context, watchID string, limit, offset int) ([]*models.DriftAlert, int64, error) {
	var total int64
	if err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM drift_alerts WHERE watch_id = ?", watchID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count alerts: %w", err)
	}

	query := `SELECT ` + alertColumns + ` FROM drift_alerts WHERE watch_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	alerts, err := r.queryAlerts(ctx, query, watchID, limit, offset)
	return alerts, total, err
}

func (r *sqliteAlertRepo) Acknowledge(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE drift_alerts SET acknowledged = 1, acknowledged_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, at, id)
	if err != nil {
		return fmt.Errorf("acknowledge alert: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

func (r *sqliteAlertRepo) MarkDelivery(ctx context.Context, id string, delivered bool, at time.Time, deliveryErr string) error {
	query := `UPDATE drift_alerts SET delivered = ?, delivered_at = ?, delivery_error = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query,
		boolToInt(delivered), at, nullString(deliveryErr), id)
	if err != nil {
		return fmt.Errorf("mark alert delivery: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert not found: %s", id)
	}
	return nil
}

func (r *sqliteAlertRepo) queryAlerts(ctx context.Context, query string, args ...any) ([]*models.DriftAlert, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*models.DriftAlert
	for rows.Next() {
		alert, err := scanAlertRow(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, alert)
	}
	return alerts, rows.Err()
}

func scanAlertRow(s rowScanner) (*models.DriftAlert, error) {
	var alert models.DriftAlert
	var changesJSON, severity string
	var deliveryError sql.NullString
	var acknowledged, delivered int
	var acknowledgedAt, deliveredAt sql.NullTime

	err := s.Scan(
		&alert.ID, &alert.WatchID, &alert.OrgID, &changesJSON, &severity,
		&acknowledged, &acknowledgedAt, &delivered, &deliveredAt, &deliveryError,
		&alert.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan alert: %w", err)
	}

	alert.Severity = models.ParseSeverity(severity)
	alert.Acknowledged = acknowledged != 0
	alert.Delivered = delivered != 0
	alert.DeliveryError = deliveryError.String
	if acknowledgedAt.Valid {
		alert.AcknowledgedAt = &acknowledgedAt.Time
	}
	if deliveredAt.Valid {
		alert.DeliveredAt = &deliveredAt.Time
	}

	if err := json.Unmarshal([]byte(changesJSON), &alert.Changes); err != nil {
		return nil, fmt.Errorf("unmarshal changes: %w", err)
	}

	return &alert, nil
}
