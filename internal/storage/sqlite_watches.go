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

// sqliteWatchRepo implements WatchRepository using SQLite.
type sqliteWatchRepo struct {
	db *sql.DB
}

const watchColumns = `id, org_id, name, figma_file_key, figma_node_id, code_path,
	snapshot_json, status, status_reason, is_active, alert_on_drift, webhook_url,
	last_checked_at, last_healthy_at, created_at, updated_at`

func (r *sqliteWatchRepo) Create(ctx context.Context, watch *models.DriftWatch) error {
	if watch.ID == "" {
		watch.ID = uuid.New().String()
	}

	snapshotJSON, err := marshalSnapshot(watch.Snapshot)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO watches (` + watchColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		watch.ID, watch.OrgID, nullString(watch.Name),
		watch.FigmaFileKey, watch.FigmaNodeID, watch.CodePath,
		snapshotJSON, watch.Status, nullString(watch.StatusReason),
		boolToInt(watch.IsActive), boolToInt(watch.AlertOnDrift), nullString(watch.WebhookURL),
		watch.LastCheckedAt, watch.LastHealthyAt, watch.CreatedAt, watch.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert watch: %w", err)
	}
	return nil
}

func (r *sqliteWatchRepo) GetByID(ctx context.Context, id string) (*models.DriftWatch, error) {
	query := `SELECT ` + watchColumns + ` FROM watches WHERE id = ?`
	return scanWatch(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteWatchRepo) Update(ctx context.Context, watch *models.DriftWatch) error {
	snapshotJSON, err := marshalSnapshot(watch.Snapshot)
	if err != nil {
		return err
	}

	watch.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE watches SET org_id = ?, name = ?, figma_file_key = ?, figma_node_id = ?,
			code_path = ?, snapshot_json = ?, status = ?, status_reason = ?,
			is_active = ?, alert_on_drift = ?, webhook_url = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		watch.OrgID, nullString(watch.Name), watch.FigmaFileKey, watch.FigmaNodeID,
		watch.CodePath, snapshotJSON, watch.Status, nullString(watch.StatusReason),
		boolToInt(watch.IsActive), boolToInt(watch.AlertOnDrift), nullString(watch.WebhookURL),
		watch.UpdatedAt, watch.ID,
	)
	if err != nil {
		return fmt.Errorf("update watch: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("watch not found: %s", watch.ID)
	}
	return nil
}

func (r *sqliteWatchRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM watches WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete watch: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("watch not found: %s", id)
	}
	return nil
}

func (r *sqliteWatchRepo) List(ctx context.Context) ([]*models.DriftWatch, error) {
	query := `SELECT ` + watchColumns + ` FROM watches ORDER BY created_at`
	return r.queryWatches(ctx, query)
}

func (r *sqliteWatchRepo) ListByOrg(ctx context.Context, orgID string) ([]*models.DriftWatch, error) {
	query := `SELECT ` + watchColumns + ` FROM watches WHERE org_id = ? ORDER BY created_at`
	return r.queryWatches(ctx, query, orgID)
}

func (r *sqliteWatchRepo) ListActive(ctx context.Context) ([]*models.DriftWatch, error) {
	query := `SELECT ` + watchColumns + ` FROM watches WHERE is_active = 1 ORDER BY created_at`
	return r.queryWatches(ctx, query)
}

func (r *sqliteWatchRepo) SetActive(ctx context.Context, id string, active bool) error {
	query := `UPDATE watches SET is_active = ?, updated_at = ? WHERE id = ?`
	result, err := r.db.ExecContext(ctx, query, boolToInt(active), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set watch active: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("watch not found: %s", id)
	}
	return nil
}

// UpdateCheckResult writes a reconciliation outcome in one statement. The
// snapshot column is only touched when the result carries a new baseline.
func (r *sqliteWatchRepo) UpdateCheckResult(ctx context.Context, id string, result CheckResult) error {
	now := time.Now().UTC()

	var res sql.Result
	var err error
	if result.Snapshot != nil {
		snapshotJSON, merr := marshalSnapshot(result.Snapshot)
		if merr != nil {
			return merr
		}
		query := `
			UPDATE watches SET status = ?, status_reason = ?, snapshot_json = ?,
				last_checked_at = ?, last_healthy_at = COALESCE(?, last_healthy_at),
				updated_at = ?
			WHERE id = ?
		`
		res, err = r.db.ExecContext(ctx, query,
			result.Status, nullString(result.StatusReason), snapshotJSON,
			result.CheckedAt, result.HealthyAt, now, id,
		)
	} else {
		query := `
			UPDATE watches SET status = ?, status_reason = ?,
				last_checked_at = ?, last_healthy_at = COALESCE(?, last_healthy_at),
				updated_at = ?
			WHERE id = ?
		`
		res, err = r.db.ExecContext(ctx, query,
			result.Status, nullString(result.StatusReason),
			result.CheckedAt, result.HealthyAt, now, id,
		)
	}
	if err != nil {
		return fmt.Errorf("update check result: %w", err)
	}
	rows, _ := res.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("watch not found: %s", id)
	}
	return nil
}

func (r *sqliteWatchRepo) Rebaseline(ctx context.Context, id string, snapshot *models.PropertySet, at time.Time) error {
	snapshotJSON, err := marshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	query := `
		UPDATE watches SET snapshot_json = ?, status = ?, status_reason = NULL,
			last_healthy_at = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		snapshotJSON, models.WatchStatusHealthy, at, at, id,
	)
	if err != nil {
		return fmt.Errorf("rebaseline watch: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("watch not found: %s", id)
	}
	return nil
}

func (r *sqliteWatchRepo) queryWatches(ctx context.Context, query string, args ...any) ([]*models.DriftWatch, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query watches: %w", err)
	}
	defer rows.Close()

	var watches []*models.DriftWatch
	for rows.Next() {
		watch, err := scanWatchRow(rows)
		if err != nil {
			return nil, err
		}
		watches = append(watches, watch)
	}
	return watches, rows.Err()
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanWatch(row *sql.Row) (*models.DriftWatch, error) {
	watch, err := scanWatchRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return watch, err
}

func scanWatchRow(s rowScanner) (*models.DriftWatch, error) {
	var watch models.DriftWatch
	var name, snapshotJSON, statusReason, webhookURL sql.NullString
	var status string
	var isActive, alertOnDrift int
	var lastCheckedAt, lastHealthyAt sql.NullTime

	err := s.Scan(
		&watch.ID, &watch.OrgID, &name, &watch.FigmaFileKey, &watch.FigmaNodeID,
		&watch.CodePath, &snapshotJSON, &status, &statusReason,
		&isActive, &alertOnDrift, &webhookURL,
		&lastCheckedAt, &lastHealthyAt, &watch.CreatedAt, &watch.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("scan watch: %w", err)
	}

	watch.Name = name.String
	watch.Status = models.ParseWatchStatus(status)
	watch.StatusReason = statusReason.String
	watch.IsActive = isActive != 0
	watch.AlertOnDrift = alertOnDrift != 0
	watch.WebhookURL = webhookURL.String
	if lastCheckedAt.Valid {
		watch.LastCheckedAt = &lastCheckedAt.Time
	}
	if lastHealthyAt.Valid {
		watch.LastHealthyAt = &lastHealthyAt.Time
	}

	if snapshotJSON.Valid && snapshotJSON.String != "" {
		var snapshot models.PropertySet
		if err := json.Unmarshal([]byte(snapshotJSON.String), &snapshot); err != nil {
			return nil, fmt.Errorf("unmarshal snapshot: %w", err)
		}
		watch.Snapshot = &snapshot
	}

	return &watch, nil
}

// marshalSnapshot encodes a snapshot for storage. A nil snapshot stores NULL.
func marshalSnapshot(snapshot *models.PropertySet) (sql.NullString, error) {
	if snapshot == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(snapshot)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("marshal snapshot: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
