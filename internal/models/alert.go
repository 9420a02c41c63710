package models

import (
	"time"
)

// Severity represents how disruptive a detected property change is.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// severityRank orders severities for max comparisons.
var severityRank = map[Severity]int{
	SeverityLow:    1,
	SeverityMedium: 2,
	SeverityHigh:   3,
}

// Rank returns the numeric rank of a severity. Unknown severities rank lowest.
func (s Severity) Rank() int {
	return severityRank[s]
}

// MaxSeverity returns the higher of two severities.
func MaxSeverity(a, b Severity) Severity {
	if b.Rank() > a.Rank() {
		return b
	}
	return a
}

// ParseSeverity converts a string to Severity.
func ParseSeverity(s string) Severity {
	switch s {
	case "low":
		return SeverityLow
	case "medium":
		return SeverityMedium
	case "high":
		return SeverityHigh
	default:
		return SeverityLow
	}
}

// PropertyChange is one detected difference between the baseline snapshot
// and the current remote state.
type PropertyChange struct {
	Property string   `json:"property"`
	OldValue any      `json:"old_value"`
	NewValue any      `json:"new_value"`
	Severity Severity `json:"severity"`
}

// DriftAlert records one detected divergence event for a watch. Created once
// per reconciliation cycle that finds at least one change; never updated
// except to record acknowledgement and delivery outcome.
type DriftAlert struct {
	ID      string `json:"id"`
	WatchID string `json:"watch_id"`
	OrgID   string `json:"org_id"`

	Changes []PropertyChange `json:"changes"`

	// Severity is the maximum severity across Changes.
	Severity Severity `json:"severity"`

	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`

	// Delivery bookkeeping for the best-effort notification.
	Delivered     bool       `json:"delivered"`
	DeliveredAt   *time.Time `json:"delivered_at,omitempty"`
	DeliveryError string     `json:"delivery_error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewDriftAlert creates an alert for the given changes. Severity is derived
// as the maximum across the change list.
func NewDriftAlert(watchID, orgID string, changes []PropertyChange) *DriftAlert {
	severity := SeverityLow
	for _, c := range changes {
		severity = MaxSeverity(severity, c.Severity)
	}
	return &DriftAlert{
		WatchID:   watchID,
		OrgID:     orgID,
		Changes:   changes,
		Severity:  severity,
		CreatedAt: time.Now().UTC(),
	}
}
