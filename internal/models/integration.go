package models

import (
	"time"
)

// IntegrationProvider identifies an external system an organization is
// connected to.
type IntegrationProvider string

const (
	IntegrationFigma IntegrationProvider = "figma"
	IntegrationSlack IntegrationProvider = "slack"
)

// IntegrationConnection stores per-organization credential material for an
// external provider. One row per (org, provider).
type IntegrationConnection struct {
	ID       string              `json:"id"`
	OrgID    string              `json:"org_id"`
	Provider IntegrationProvider `json:"provider"`

	// AccessToken is never exposed in JSON.
	AccessToken string `json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewIntegrationConnection creates a connection with initialized timestamps.
func NewIntegrationConnection(orgID string, provider IntegrationProvider, token string) *IntegrationConnection {
	now := time.Now().UTC()
	return &IntegrationConnection{
		OrgID:       orgID,
		Provider:    provider,
		AccessToken: token,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
