package enrichment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"LandScout/internal/domain"
	"LandScout/internal/ports"
)

// Client asks an external geo/places service to fill a listing's attribute groups.
type Client struct {
	endpoint string
	apiKey   string
	http     *http.Client
}

var _ ports.Enricher = (*Client)(nil)

// NewClient creates a reusable HTTP client.
func NewClient(endpoint, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		http:     &http.Client{Timeout: timeout},
	}
}

type enrichRequest struct {
	SourceID     string   `json:"source_id"`
	Title        string   `json:"title"`
	URL          string   `json:"url,omitempty"`
	Municipality string   `json:"municipality,omitempty"`
	Description  string   `json:"description,omitempty"`
	LandType     string   `json:"land_type,omitempty"`
	Area         *float64 `json:"area,omitempty"`
}

// Enrich sends the listing and returns the attribute groups the service resolved.
// Groups the service omits stay nil.
func (c *Client) Enrich(ctx context.Context, land domain.Land) (domain.Attributes, error) {
	payload := enrichRequest{
		SourceID:     land.SourceID,
		Title:        land.Title,
		URL:          land.URL,
		Municipality: land.Municipality,
		Description:  land.Description,
		LandType:     land.LandType,
		Area:         land.Area,
	}

	var attrs domain.Attributes
	if err := c.post(ctx, "/enrich", payload, &attrs); err != nil {
		return domain.Attributes{}, fmt.Errorf("enrich %s: %w", land.SourceID, err)
	}
	return attrs, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
