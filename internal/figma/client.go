// Package figma fetches design node state from the Figma REST API and
// normalizes it into the fixed property set the diff engine compares.
package figma

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// DefaultBaseURL is the production Figma API endpoint.
const DefaultBaseURL = "https://api.figma.com"

// Client is a minimal Figma REST API client. Credentials are supplied per
// call since they differ per organization.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client. An empty baseURL selects the production API;
// tests pass an httptest server URL.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// nodesResponse is the wire shape of GET /v1/files/{key}/nodes.
type nodesResponse struct {
	Nodes map[string]struct {
		Document *Node `json:"document"`
	} `json:"nodes"`
}

// Node is the subset of the Figma node document the normalizer reads.
// Everything else the API returns is dropped.
type Node struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`

	Fills           []rawPaint `json:"fills,omitempty"`
	BackgroundColor *rawColor  `json:"backgroundColor,omitempty"`
	CornerRadius    *float64   `json:"cornerRadius,omitempty"`

	LayoutMode    string  `json:"layoutMode,omitempty"`
	PaddingLeft   float64 `json:"paddingLeft,omitempty"`
	PaddingRight  float64 `json:"paddingRight,omitempty"`
	PaddingTop    float64 `json:"paddingTop,omitempty"`
	PaddingBottom float64 `json:"paddingBottom,omitempty"`
	ItemSpacing   float64 `json:"itemSpacing,omitempty"`

	Style *rawTypeStyle `json:"style,omitempty"`

	AbsoluteBoundingBox *rawRect `json:"absoluteBoundingBox,omitempty"`
}

type rawColor struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

type rawPaint struct {
	Type    string    `json:"type"`
	Visible *bool     `json:"visible,omitempty"`
	Opacity *float64  `json:"opacity,omitempty"`
	Color   *rawColor `json:"color,omitempty"`
}

type rawTypeStyle struct {
	FontFamily    string  `json:"fontFamily"`
	FontSize      float64 `json:"fontSize"`
	FontWeight    float64 `json:"fontWeight"`
	LineHeightPx  float64 `json:"lineHeightPx"`
	LetterSpacing float64 `json:"letterSpacing"`
}

type rawRect struct {
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// GetNode fetches a single node document from a file.
func (c *Client) GetNode(ctx context.Context, token, fileKey, nodeID string) (*Node, error) {
	endpoint := fmt.Sprintf("%s/v1/files/%s/nodes?ids=%s",
		c.baseURL, url.PathEscape(fileKey), url.QueryEscape(nodeID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-Figma-Token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstream, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: file %s", ErrNotFound, fileKey)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, &RateLimitedError{ResetAt: time.Now().Add(retryAfter(resp))}
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: status %d, body: %s", ErrUpstream, resp.StatusCode, string(body))
	}

	var decoded nodesResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUpstream, err)
	}

	entry, ok := decoded.Nodes[nodeID]
	if !ok || entry.Document == nil {
		return nil, fmt.Errorf("%w: node %s in file %s", ErrNotFound, nodeID, fileKey)
	}
	return entry.Document, nil
}

// retryAfter reads the Retry-After header, defaulting to one minute.
func retryAfter(resp *http.Response) time.Duration {
	if v := resp.Header.Get("Retry-After"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return time.Minute
}
