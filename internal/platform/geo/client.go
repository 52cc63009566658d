// Package geo implements the place lookup collaborator over the Nominatim
// HTTP search API.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/wanderplan/wanderplan-api/internal/config"
	"github.com/wanderplan/wanderplan-api/internal/generation"
)

// Client implements generation.LocationLookup.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a place lookup client from configuration.
func NewClient(cfg config.LocationConfig, logger *slog.Logger) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger.With("component", "location_lookup"),
	}
}

// searchResult mirrors the fields we consume from the Nominatim response.
type searchResult struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

// Search returns up to limit candidates matching the name.
func (c *Client) Search(ctx context.Context, name string, limit int) ([]generation.PlaceCandidate, error) {
	if name == "" {
		return nil, fmt.Errorf("%w: place name cannot be empty", generation.ErrLookupFailed)
	}
	if limit <= 0 {
		limit = 1
	}

	endpoint := fmt.Sprintf("%s/search?q=%s&format=json&limit=%d",
		c.baseURL, url.QueryEscape(name), limit)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrLookupFailed, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", generation.ErrLookupFailed, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: place search returned status %d",
			generation.ErrLookupFailed, resp.StatusCode)
	}

	var results []searchResult
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, fmt.Errorf("%w: failed to decode place search response: %v",
			generation.ErrLookupFailed, err)
	}

	candidates := make([]generation.PlaceCandidate, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			c.logger.WarnContext(ctx, "skipping candidate with unparseable coordinates",
				"name", r.DisplayName)
			continue
		}

		candidateName := r.Name
		if candidateName == "" {
			candidateName = name
		}

		candidates = append(candidates, generation.PlaceCandidate{
			Name:        candidateName,
			DisplayName: r.DisplayName,
			Latitude:    lat,
			Longitude:   lon,
		})
	}

	return candidates, nil
}
