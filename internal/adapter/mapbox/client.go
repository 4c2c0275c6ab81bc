// Package mapbox implements forward and reverse geocoding against the Mapbox
// Geocoding API. Failures are classified into the domain taxonomy so the
// enrichment layer can apply the right fallback: 401/403 map to
// ErrAccessDenied, 429 to ErrRateLimited, empty forward results to
// ErrNotFound, anything else to ErrUpstreamUnavailable.
package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

// Client calls the Mapbox Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client.
func NewClient(token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: "https://api.mapbox.com/geocoding/v5/mapbox.places",
		logger:  logger,
	}
}

// ForwardGeocode converts a place name to coordinates. Returns
// domain.ErrNotFound when the API matches nothing.
func (c *Client) ForwardGeocode(ctx context.Context, name string) (domain.Geo, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(name))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"place,locality"},
	}

	f, err := c.doRequest(ctx, u+"?"+params.Encode(), "forward")
	if err != nil {
		return domain.Geo{}, err
	}
	if f == nil || len(f.Center) != 2 {
		return domain.Geo{}, fmt.Errorf("forward geocode %q: %w", name, domain.ErrNotFound)
	}
	// Mapbox centers are [lon, lat].
	return domain.Geo{Lat: f.Center[1], Lon: f.Center[0]}, nil
}

// ReverseGeocode converts coordinates to a formatted place name.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lon float64) (string, error) {
	coord := fmt.Sprintf("%.6f,%.6f", lon, lat)
	u := fmt.Sprintf("%s/%s.json", c.baseURL, coord)
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
	}

	f, err := c.doRequest(ctx, u+"?"+params.Encode(), "reverse")
	if err != nil {
		return "", err
	}
	if f == nil || f.PlaceName == "" {
		return "", fmt.Errorf("reverse geocode %s: %w", coord, domain.ErrNotFound)
	}
	return f.PlaceName, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL, source string) (*feature, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s geocode request: %v: %w", source, err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// fall through to decode
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%s geocode: status %d: %w", source, resp.StatusCode, domain.ErrAccessDenied)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("%s geocode: %w", source, domain.ErrRateLimited)
	default:
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s geocode: status %d: %s: %w", source, resp.StatusCode, body, domain.ErrUpstreamUnavailable)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return nil, fmt.Errorf("decode %s geocode response: %v: %w", source, err, domain.ErrUpstreamUnavailable)
	}

	if len(mapboxResp.Features) == 0 {
		return nil, nil
	}
	return &mapboxResp.Features[0], nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
	Text      string    `json:"text"`
	Relevance float64   `json:"relevance"`
}
