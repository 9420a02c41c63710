// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"time"

	"github.com/driftwatchhq/driftwatch/internal/models"
)

// Storage is the main interface for database operations.
type Storage interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Watches() WatchRepository
	Alerts() AlertRepository
	Integrations() IntegrationRepository
}

// CheckResult is the outcome of one reconciliation cycle for a watch,
// written in a single all-or-nothing row update.
type CheckResult struct {
	Status       models.WatchStatus
	StatusReason string

	// Snapshot, when non-nil, replaces the stored baseline. The reconciler
	// only sets it on a healthy outcome; a drift or error cycle leaves the
	// baseline untouched.
	Snapshot *models.PropertySet

	CheckedAt time.Time
	// HealthyAt is set only when the cycle found no changes.
	HealthyAt *time.Time
}

// WatchRepository defines operations for drift watch management.
type WatchRepository interface {
	Create(ctx context.Context, watch *models.DriftWatch) error
	GetByID(ctx context.Context, id string) (*models.DriftWatch, error)
	Update(ctx context.Context, watch *models.DriftWatch) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.DriftWatch, error)
	ListByOrg(ctx context.Context, orgID string) ([]*models.DriftWatch, error)
	// ListActive returns watches the scheduler should consider.
	ListActive(ctx context.Context) ([]*models.DriftWatch, error)
	SetActive(ctx context.Context, id string, active bool) error
	// UpdateCheckResult records a reconciliation outcome.
	UpdateCheckResult(ctx context.Context, id string, result CheckResult) error
	// Rebaseline replaces the stored snapshot and resets status to healthy.
	Rebaseline(ctx context.Context, id string, snapshot *models.PropertySet, at time.Time) error
}

// AlertRepository defines operations for drift alert management.
type AlertRepository interface {
	Create(ctx context.Context, alert *models.DriftAlert) error
	GetByID(ctx context.Context, id string) (*models.DriftAlert, error)
	List(ctx context.Context, limit, offset int) ([]*models.DriftAlert, int64, error)
	ListByWatch(ctx context.Context, watchID string, limit, offset int) ([]*models.DriftAlert, int64, error)
	Acknowledge(ctx context.Context, id string, at time.Time) error
	// MarkDelivery records the notification outcome for an alert. It never
	// touches any other field.
	MarkDelivery(ctx context.Context, id string, delivered bool, at time.Time, deliveryErr string) error
}

// IntegrationRepository defines operations for per-organization integration
// credentials.
type IntegrationRepository interface {
	Upsert(ctx context.Context, conn *models.IntegrationConnection) error
	GetByOrg(ctx context.Context, orgID string, provider models.IntegrationProvider) (*models.IntegrationConnection, error)
	Delete(ctx context.Context, orgID string, provider models.IntegrationProvider) error
}
