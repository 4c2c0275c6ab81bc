// Package socialfeed searches a social-content endpoint for posts matching a
// disaster. A 429 from upstream is surfaced as domain.ErrRateLimited so the
// enrichment layer can hand callers a distinguishable rate-limited result
// instead of an empty feed.
package socialfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

// Client calls the social feed search API.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a social feed client for the given endpoint. An empty
// baseURL produces a client whose calls fail with ErrUpstreamUnavailable.
func NewClient(baseURL, token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		token:   token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

// Search returns recent posts matching the query, newest first.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]domain.SocialPost, error) {
	if c.baseURL == "" {
		return nil, fmt.Errorf("social feed: no endpoint configured: %w", domain.ErrUpstreamUnavailable)
	}

	params := url.Values{
		"q":     {query},
		"limit": {strconv.Itoa(limit)},
	}
	u := c.baseURL + "/posts/search?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("social feed request: %v: %w", err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("social feed: %w", domain.ErrRateLimited)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("social feed: status %d: %w", resp.StatusCode, domain.ErrAccessDenied)
	default:
		return nil, fmt.Errorf("social feed: status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}

	var out searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode social feed response: %v: %w", err, domain.ErrUpstreamUnavailable)
	}
	return out.Posts, nil
}

type searchResponse struct {
	Posts []domain.SocialPost `json:"posts"`
}
