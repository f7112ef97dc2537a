// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mapmarks/engine/internal/model"
	"github.com/mapmarks/engine/internal/similarity"
)

// Client handles communication with the hosted marker service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a new API client.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Healthcheck checks if the marker service is reachable.
func (c *Client) Healthcheck() error {
	resp, err := c.httpClient.Get(c.baseURL + "/healthcheck")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}

// LoadForUser fetches the marker list stored for an account, in saved order.
func (c *Client) LoadForUser(ctx context.Context, userID string) ([]model.Marker, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/markers?userId="+userID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("marker fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("marker fetch returned status %d", resp.StatusCode)
	}

	var markers []model.Marker
	if err := json.NewDecoder(resp.Body).Decode(&markers); err != nil {
		return nil, fmt.Errorf("failed to decode marker list: %w", err)
	}
	return markers, nil
}

// PushAll replaces the account's marker list on the service with the given
// snapshot.
func (c *Client) PushAll(ctx context.Context, userID string, markers []model.Marker) error {
	body, err := json.Marshal(markers)
	if err != nil {
		return fmt.Errorf("failed to encode marker list: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut,
		c.baseURL+"/api/v1/markers?userId="+userID, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("marker push failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("marker push returned status %d", resp.StatusCode)
	}
	return nil
}

// similarRequest is the payload of the hosted similarity search endpoint.
type similarRequest struct {
	Vector []float32 `json:"vector"`
	UserID string    `json:"userId"`
	Limit  int       `json:"limit"`
}

// FindSimilar runs vector similarity search on the hosted service. It
// implements the similarity.Searcher interface for setups without a local
// Postgres.
func (c *Client) FindSimilar(ctx context.Context, vector []float32, userScope string, limit int) ([]similarity.Match, error) {
	body, err := json.Marshal(similarRequest{Vector: vector, UserID: userScope, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to encode search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/markers/similar", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("similarity search failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("similarity search returned status %d", resp.StatusCode)
	}

	var matches []similarity.Match
	if err := json.NewDecoder(resp.Body).Decode(&matches); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}
	return matches, nil
}
