package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Drift watches table
			CREATE TABLE IF NOT EXISTS watches (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				name TEXT,
				figma_file_key TEXT NOT NULL,
				figma_node_id TEXT NOT NULL,
				code_path TEXT NOT NULL,
				snapshot_json TEXT,
				status TEXT NOT NULL DEFAULT 'healthy',
				status_reason TEXT,
				is_active INTEGER NOT NULL DEFAULT 1,
				alert_on_drift INTEGER NOT NULL DEFAULT 1,
				webhook_url TEXT,
				last_checked_at DATETIME,
				last_healthy_at DATETIME,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Drift alerts table
			CREATE TABLE IF NOT EXISTS drift_alerts (
				id TEXT PRIMARY KEY,
				watch_id TEXT NOT NULL,
				org_id TEXT NOT NULL,
				changes_json TEXT NOT NULL,
				severity TEXT NOT NULL,
				acknowledged INTEGER NOT NULL DEFAULT 0,
				acknowledged_at DATETIME,
				delivered INTEGER NOT NULL DEFAULT 0,
				delivered_at DATETIME,
				delivery_error TEXT,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (watch_id) REFERENCES watches(id) ON DELETE CASCADE
			);

			-- Integration credentials table
			CREATE TABLE IF NOT EXISTS integrations (
				id TEXT PRIMARY KEY,
				org_id TEXT NOT NULL,
				provider TEXT NOT NULL,
				access_token TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL,
				UNIQUE (org_id, provider)
			);

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_watches_org ON watches(org_id);
			CREATE INDEX IF NOT EXISTS idx_watches_active ON watches(is_active);
			CREATE INDEX IF NOT EXISTS idx_alerts_watch ON drift_alerts(watch_id);
			CREATE INDEX IF NOT EXISTS idx_alerts_org ON drift_alerts(org_id);
			CREATE INDEX IF NOT EXISTS idx_alerts_created ON drift_alerts(created_at);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		// Run migration in transaction
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction for migration %d: %w", m.Version, err)
		}

		_, err = tx.Exec(m.Up)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("execute migration %d (%s): %w", m.Version, m.Name, err)
		}

		_, err = tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now(),
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}
