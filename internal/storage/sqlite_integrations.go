package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/driftwatchhq/driftwatch/internal/models"
)

// sqliteIntegrationRepo implements IntegrationRepository using SQLite.
type sqliteIntegrationRepo struct {
	db *sql.DB
}

func (r *sqliteIntegrationRepo) Upsert(ctx context.Context, conn *models.IntegrationConnection) error {
	if conn.ID == "" {
		conn.ID = uuid.New().String()
	}
	conn.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO integrations (id, org_id, provider, access_token, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (org_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			updated_at = excluded.updated_at
	`
	_, err := r.db.ExecContext(ctx, query,
		conn.ID, conn.OrgID, conn.Provider, conn.AccessToken,
		conn.CreatedAt, conn.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert integration: %w", err)
	}
	return nil
}

func (r *sqliteIntegrationRepo) GetByOrg(ctx context.Context, orgID string, provider models.IntegrationProvider) (*models.IntegrationConnection, error) {
	query := `
		SELECT id, org_id, provider, access_token, created_at, updated_at
		FROM integrations WHERE org_id = ? AND provider = ?
	`

	var conn models.IntegrationConnection
	var prov string
	err := r.db.QueryRowContext(ctx, query, orgID, provider).Scan(
		&conn.ID, &conn.OrgID, &prov, &conn.AccessToken,
		&conn.CreatedAt, &conn.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query integration: %w", err)
	}

	conn.Provider = models.IntegrationProvider(prov)
	return &conn, nil
}

func (r *sqliteIntegrationRepo) Delete(ctx context.Context, orgID string, provider models.IntegrationProvider) error {
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM integrations WHERE org_id = ? AND provider = ?", orgID, provider)
	if err != nil {
		return fmt.Errorf("delete integration: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("integration not found: %s/%s", orgID, provider)
	}
	return nil
}
