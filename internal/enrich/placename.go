package enrich

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-coordination-service/internal/cache"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
)

// UnknownLocation is returned when neither the remote extractor nor the
// locative-preposition scan finds a place name.
const UnknownLocation = "Unknown Location"

// locativePrepositions seed the degraded-mode scan: the two tokens following
// one of these are taken as the location.
var locativePrepositions = map[string]bool{
	"in":     true,
	"at":     true,
	"near":   true,
	"around": true,
}

// PlaceNameRemote extracts a place name from free text.
type PlaceNameRemote interface {
	ExtractPlaceName(ctx context.Context, text string) (string, error)
}

// PlaceNameExtractor resolves a place name from free text with cache-aside
// semantics. It never fails: remote errors degrade to a lexical scan, and a
// scan with no hit returns UnknownLocation.
type PlaceNameExtractor struct {
	cache   cache.Store
	remote  PlaceNameRemote
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPlaceNameExtractor creates the extraction adapter.
func NewPlaceNameExtractor(store cache.Store, remote PlaceNameRemote, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *PlaceNameExtractor {
	return &PlaceNameExtractor{cache: store, remote: remote, ttl: ttl, logger: logger, metrics: metrics}
}

type placeNamePayload struct {
	PlaceName string `json:"place_name"`
}

// Extract returns the most relevant place name in the text.
func (e *PlaceNameExtractor) Extract(ctx context.Context, text string) string {
	key := capPlaceName + ":" + hashInput(strings.TrimSpace(text))

	var cached placeNamePayload
	if cacheGet(ctx, e.cache, e.metrics, capPlaceName, key, &cached) {
		return cached.PlaceName
	}

	start := time.Now()
	name, err := e.remote.ExtractPlaceName(ctx, text)
	observe(e.metrics, capPlaceName, start)

	if err == nil {
		if name == "" {
			name = UnknownLocation
		}
		cachePut(ctx, e.cache, e.logger, key, placeNamePayload{PlaceName: name}, e.ttl)
		e.metrics.EnrichRequests.WithLabelValues(capPlaceName, outcomeSuccess).Inc()
		return name
	}

	e.logger.Warn("place-name extraction degraded to lexical scan", "error", err)
	e.metrics.EnrichRequests.WithLabelValues(capPlaceName, outcomeFallback).Inc()

	if loc := scanLocative(text); loc != "" {
		return loc
	}
	return UnknownLocation
}

// scanLocative finds the first locative preposition and returns the following
// two tokens, stripped of trailing punctuation.
func scanLocative(text string) string {
	fields := strings.Fields(text)
	for i, f := range fields {
		if !locativePrepositions[strings.ToLower(trimPunct(f))] {
			continue
		}
		end := i + 3
		if end > len(fields) {
			end = len(fields)
		}
		var tokens []string
		for _, tok := range fields[i+1 : end] {
			if t := trimPunct(tok); t != "" {
				tokens = append(tokens, t)
			}
		}
		if len(tokens) > 0 {
			return strings.Join(tokens, " ")
		}
	}
	return ""
}

func trimPunct(s string) string {
	return strings.Trim(s, ".,!?;:\"'()")
}
