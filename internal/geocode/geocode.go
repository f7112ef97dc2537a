// Package geocode resolves coordinates to display names through a
// Nominatim-compatible endpoint. Failures are soft: markers fall back to a
// coordinate string for their title.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mapmarks/engine/internal/cache"
	"github.com/mapmarks/engine/internal/model"
)

// Client queries a reverse-geocoding service. Resolved names are cached per
// coordinate bucket so repeated adds at the same spot stay off the network.
type Client struct {
	baseURL    string
	httpClient *http.Client
	titles     *cache.TitleCache
}

// New creates a new geocoding client.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		titles:     cache.NewTitleCache(),
	}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
}

// ReverseGeocode returns a human-readable name for the position.
func (c *Client) ReverseGeocode(ctx context.Context, pos model.Position) (string, error) {
	if name, ok := c.titles.Get(pos); ok {
		return name, nil
	}

	url := fmt.Sprintf("%s/reverse?format=jsonv2&lat=%f&lon=%f", c.baseURL, pos.Lat, pos.Lon)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("reverse geocode returned status %d", resp.StatusCode)
	}

	var rr reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return "", fmt.Errorf("failed to decode reverse geocode response: %w", err)
	}
	if rr.DisplayName == "" {
		return "", fmt.Errorf("no display name for %.4f,%.4f", pos.Lat, pos.Lon)
	}

	c.titles.Add(pos, rr.DisplayName)
	return rr.DisplayName, nil
}

// TitleFor returns a marker title for the position: the geocoded display name
// when available, a coordinate string otherwise.
func (c *Client) TitleFor(ctx context.Context, pos model.Position) string {
	name, err := c.ReverseGeocode(ctx, pos)
	if err != nil {
		return fmt.Sprintf("%.5f, %.5f", pos.Lat, pos.Lon)
	}
	return name
}
