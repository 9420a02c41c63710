package models

import (
	"time"
)

// WatchStatus represents the reconciliation status of a drift watch.
type WatchStatus string

const (
	WatchStatusHealthy  WatchStatus = "healthy"
	WatchStatusDrift    WatchStatus = "drift_detected"
	WatchStatusError    WatchStatus = "error"
	WatchStatusInactive WatchStatus = "inactive"
)

// DriftWatch pairs a design component with a code location and tracks
// divergence between the two.
type DriftWatch struct {
	ID    string `json:"id"`
	OrgID string `json:"org_id"`
	Name  string `json:"name,omitempty"`

	// Reference fields. Opaque identifiers, not validated against the
	// remote system at read time.
	FigmaFileKey string `json:"figma_file_key"`
	FigmaNodeID  string `json:"figma_node_id"`
	CodePath     string `json:"code_path"`

	// Snapshot is the last property set recorded as healthy. It is only
	// rewritten by a change-free reconciliation or an explicit rebaseline,
	// never by a cycle that detected drift.
	Snapshot *PropertySet `json:"snapshot,omitempty"`

	Status       WatchStatus `json:"status"`
	StatusReason string      `json:"status_reason,omitempty"`

	// IsActive controls whether the scheduler considers this watch at all.
	// Independent of Status.
	IsActive bool `json:"is_active"`

	AlertOnDrift bool   `json:"alert_on_drift"`
	WebhookURL   string `json:"webhook_url,omitempty"`

	LastCheckedAt *time.Time `json:"last_checked_at,omitempty"`
	LastHealthyAt *time.Time `json:"last_healthy_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NewDriftWatch creates a new active watch with initialized timestamps.
func NewDriftWatch(orgID, fileKey, nodeID, codePath string) *DriftWatch {
	now := time.Now().UTC()
	return &DriftWatch{
		OrgID:        orgID,
		FigmaFileKey: fileKey,
		FigmaNodeID:  nodeID,
		CodePath:     codePath,
		Status:       WatchStatusHealthy,
		IsActive:     true,
		AlertOnDrift: true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// ParseWatchStatus converts a string to WatchStatus.
func ParseWatchStatus(s string) WatchStatus {
	switch s {
	case "healthy":
		return WatchStatusHealthy
	case "drift_detected":
		return WatchStatusDrift
	case "error":
		return WatchStatusError
	case "inactive":
		return WatchStatusInactive
	default:
		return WatchStatusHealthy
	}
}
