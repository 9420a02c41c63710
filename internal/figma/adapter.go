package figma

import (
	"context"

	"github.com/driftwatchhq/driftwatch/internal/metrics"
	"github.com/driftwatchhq/driftwatch/internal/models"
	"github.com/driftwatchhq/driftwatch/internal/ratelimit"
)

// Integration is the rate limiter bucket class for Figma API calls.
const Integration = "figma"

// fetchCost is the credit cost of one node fetch.
const fetchCost = 1

// Adapter fetches the current normalized state of a design node. Every
// fetch passes through the shared rate limiter for the organization before
// the network call is issued.
type Adapter struct {
	client  *Client
	limiter ratelimit.Limiter
}

// NewAdapter creates a source adapter.
func NewAdapter(client *Client, limiter ratelimit.Limiter) *Adapter {
	return &Adapter{client: client, limiter: limiter}
}

// Fetch returns the normalized properties for a node, or one of the figma
// error conditions. If the limiter denies, no network call is made and the
// returned RateLimitedError carries the window reset time; the caller must
// not retry within that window.
func (a *Adapter) Fetch(ctx context.Context, token, orgID, fileKey, nodeID string) (*models.PropertySet, error) {
	res := a.limiter.Check(ctx, Integration, orgID, fetchCost)
	if !res.Allowed {
		metrics.RateLimitDenials.WithLabelValues(Integration).Inc()
		return nil, &RateLimitedError{ResetAt: res.ResetAt}
	}

	node, err := a.client.GetNode(ctx, token, fileKey, nodeID)
	if err != nil {
		return nil, err
	}
	return Normalize(node), nil
}
