// Package gemini calls a Gemini-style generative analysis endpoint for the
// two text/vision capabilities: extracting a place name from free text and
// scoring the authenticity of a reported image.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Client calls the Gemini generateContent API.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Gemini analysis client. An empty apiKey produces a
// client whose calls fail with ErrUpstreamUnavailable, which the enrichment
// layer degrades from.
func NewClient(apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey: apiKey,
		model:  "gemini-2.0-flash",
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// ExtractPlaceName asks the model for the single most relevant place name in
// the given free text. Returns an empty string when the model finds none.
func (c *Client) ExtractPlaceName(ctx context.Context, text string) (string, error) {
	prompt := "Extract the single most specific place name (city, district, or landmark) " +
		"mentioned in the following disaster report. Reply with the place name only, " +
		"or NONE if there is none.\n\n" + text

	reply, err := c.generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	reply = strings.TrimSpace(reply)
	if reply == "" || strings.EqualFold(reply, "NONE") {
		return "", nil
	}
	return reply, nil
}

// ScoreImage asks the model to judge whether the image at the given URL looks
// authentic for a disaster report.
func (c *Client) ScoreImage(ctx context.Context, imageURL string) (domain.ImageScore, error) {
	prompt := "Assess whether the image at " + imageURL + " is an authentic, unmanipulated " +
		"photo of a disaster scene. Reply as JSON: " +
		`{"score": <0.0-1.0>, "likely_authentic": <bool>, "analysis": "<one sentence>"}`

	reply, err := c.generate(ctx, prompt)
	if err != nil {
		return domain.ImageScore{}, err
	}

	var score domain.ImageScore
	if err := json.Unmarshal([]byte(extractJSON(reply)), &score); err != nil {
		return domain.ImageScore{}, fmt.Errorf("parse image score reply: %v: %w", err, domain.ErrUpstreamUnavailable)
	}
	return score, nil
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini: missing api key: %w", domain.ErrUpstreamUnavailable)
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("encode gemini request: %w", err)
	}

	u := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini request: %v: %w", err, domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("gemini: status %d: %w", resp.StatusCode, domain.ErrAccessDenied)
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("gemini: %w", domain.ErrRateLimited)
	default:
		return "", fmt.Errorf("gemini: status %d: %w", resp.StatusCode, domain.ErrUpstreamUnavailable)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decode gemini response: %v: %w", err, domain.ErrUpstreamUnavailable)
	}
	if len(out.Candidates) == 0 || len(out.Candidates[0].Content.Parts) == 0 {
		return "", nil
	}
	return out.Candidates[0].Content.Parts[0].Text, nil
}

// extractJSON strips the markdown code fences models like to wrap JSON in.
func extractJSON(reply string) string {
	reply = strings.TrimSpace(reply)
	reply = strings.TrimPrefix(reply, "```json")
	reply = strings.TrimPrefix(reply, "```")
	reply = strings.TrimSuffix(reply, "```")
	return strings.TrimSpace(reply)
}

// Gemini API request/response types.

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}
