package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"agrimonitor/internal/models"
	"go.uber.org/zap"
)

// NominatimClient wraps the OpenStreetMap Nominatim search endpoint. The
// service requires an identifying User-Agent, which the base client sets on
// every request.
type NominatimClient struct {
	*BaseClient
	baseURL string
}

// Nominatim returns coordinates as numeric strings.
type nominatimResult struct {
	DisplayName string `json:"display_name"`
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
}

func NewNominatimClient(baseURL string, config ClientConfig, logger *zap.Logger) *NominatimClient {
	if baseURL == "" {
		baseURL = "https://nominatim.openstreetmap.org/search"
	}
	return &NominatimClient{
		BaseClient: NewBaseClient("nominatim", config, logger),
		baseURL:    baseURL,
	}
}

// Suggest returns ranked candidates for a partial address. Queries shorter
// than two characters return nothing without touching the network. Every
// failure collapses to an empty result: the autocomplete list cannot tell a
// lookup error apart from "nothing found" and should degrade quietly.
func (c *NominatimClient) Suggest(ctx context.Context, query string, limit int) []models.LocationCandidate {
	if len(query) < 2 {
		return nil
	}

	candidates, err := c.search(ctx, query, limit)
	if err != nil {
		c.logger.Debug("Address suggestion lookup failed",
			zap.String("query", query),
			zap.Error(err))
		return nil
	}
	return candidates
}

// Resolve geocodes a full address to its single best match. Unlike Suggest it
// keeps the error classification (timeout, network, malformed, HTTP status)
// so the caller can show a precise diagnostic. A nil candidate with a nil
// error means the address was not found.
func (c *NominatimClient) Resolve(ctx context.Context, address string) (*models.LocationCandidate, error) {
	candidates, err := c.search(ctx, address, 1)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	return &candidates[0], nil
}

func (c *NominatimClient) search(ctx context.Context, query string, limit int) ([]models.LocationCandidate, error) {
	values := url.Values{}
	values.Set("q", query)
	values.Set("format", "json")
	values.Set("limit", strconv.Itoa(limit))
	values.Set("addressdetails", "1")

	body, err := c.Get(ctx, fmt.Sprintf("%s?%s", c.baseURL, values.Encode()))
	if err != nil {
		return nil, err
	}

	var results []nominatimResult
	if err := json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	candidates := make([]models.LocationCandidate, 0, len(results))
	for _, r := range results {
		lat, latErr := strconv.ParseFloat(r.Lat, 64)
		lon, lonErr := strconv.ParseFloat(r.Lon, 64)
		if latErr != nil || lonErr != nil {
			if limit == 1 {
				return nil, fmt.Errorf("%w: non-numeric coordinates %q/%q", ErrMalformedResponse, r.Lat, r.Lon)
			}
			// Ranked list: skip the broken entry, keep the rest.
			continue
		}
		candidates = append(candidates, models.LocationCandidate{
			DisplayName: r.DisplayName,
			Latitude:    lat,
			Longitude:   lon,
		})
	}

	return candidates, nil
}
