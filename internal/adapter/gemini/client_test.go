package gemini

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
)

func testGeminiClient(baseURL string) *Client {
	return &Client{
		apiKey:     "test-key",
		model:      "gemini-2.0-flash",
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func replyWith(t *testing.T, w http.ResponseWriter, text string) {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	require.NoError(t, err)
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

func TestClient_ExtractPlaceName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		replyWith(t, w, "Mumbai\n")
	}))
	defer srv.Close()

	c := testGeminiClient(srv.URL)
	name, err := c.ExtractPlaceName(context.Background(), "Flooding in Mumbai after heavy rain")
	require.NoError(t, err)
	assert.Equal(t, "Mumbai", name)
}

func TestClient_ExtractPlaceName_None(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		replyWith(t, w, "NONE")
	}))
	defer srv.Close()

	c := testGeminiClient(srv.URL)
	name, err := c.ExtractPlaceName(context.Background(), "something vague")
	require.NoError(t, err)
	assert.Empty(t, name)
}

func TestClient_ScoreImage_ParsesFencedJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		replyWith(t, w, "```json\n{\"score\": 0.82, \"likely_authentic\": true, \"analysis\": \"consistent shadows\"}\n```")
	}))
	defer srv.Close()

	c := testGeminiClient(srv.URL)
	score, err := c.ScoreImage(context.Background(), "https://img.example.com/flood.jpg")
	require.NoError(t, err)
	require.NotNil(t, score.Score)
	assert.InDelta(t, 0.82, *score.Score, 0.001)
	assert.True(t, score.LikelyAuthentic)
	assert.Equal(t, "consistent shadows", score.Analysis)
}

func TestClient_MissingAPIKeyIsUnavailable(t *testing.T) {
	c := testGeminiClient("http://unused.invalid")
	c.apiKey = ""

	_, err := c.ExtractPlaceName(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestClient_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testGeminiClient(srv.URL)
	_, err := c.ExtractPlaceName(context.Background(), "text")
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}
