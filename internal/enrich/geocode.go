package enrich

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/couchcryptid/disaster-coordination-service/internal/cache"
	"github.com/couchcryptid/disaster-coordination-service/internal/domain"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
)

// ForwardGeocodeRemote converts a place name to coordinates.
type ForwardGeocodeRemote interface {
	ForwardGeocode(ctx context.Context, name string) (domain.Geo, error)
}

// ReverseGeocodeRemote converts coordinates to a formatted place name.
type ReverseGeocodeRemote interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) (string, error)
}

// FallbackTable maps known place-name substrings (lowercase) to canonical
// coordinates, consulted when the upstream geocoder denies access. It is
// static configuration data, injected so tests can substitute their own.
type FallbackTable struct {
	Entries map[string]domain.Geo
	Default domain.Geo
}

// Lookup returns the coordinate for the first (alphabetical) substring match
// against name, or the table default when nothing matches. Matching is
// case-insensitive.
func (t FallbackTable) Lookup(name string) domain.Geo {
	lower := strings.ToLower(name)

	keys := make([]string, 0, len(t.Entries))
	for k := range t.Entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if strings.Contains(lower, k) {
			return t.Entries[k]
		}
	}
	return t.Default
}

// DefaultFallbackTable covers the metros the service is deployed for, with
// New Delhi as the default coordinate.
func DefaultFallbackTable() FallbackTable {
	return FallbackTable{
		Entries: map[string]domain.Geo{
			"mumbai":    {Lat: 19.0760, Lon: 72.8777},
			"delhi":     {Lat: 28.6139, Lon: 77.2090},
			"chennai":   {Lat: 13.0827, Lon: 80.2707},
			"kolkata":   {Lat: 22.5726, Lon: 88.3639},
			"bengaluru": {Lat: 12.9716, Lon: 77.5946},
			"hyderabad": {Lat: 17.3850, Lon: 78.4867},
		},
		Default: domain.Geo{Lat: 28.6139, Lon: 77.2090},
	}
}

// ForwardGeocoder resolves a place name to coordinates with cache-aside
// semantics. Remote "not found" fails with domain.ErrNotFound; remote access
// denial degrades to the fallback table; any other remote error propagates.
type ForwardGeocoder struct {
	cache   cache.Store
	remote  ForwardGeocodeRemote
	table   FallbackTable
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewForwardGeocoder creates the forward geocoding adapter.
func NewForwardGeocoder(store cache.Store, remote ForwardGeocodeRemote, table FallbackTable, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *ForwardGeocoder {
	return &ForwardGeocoder{cache: store, remote: remote, table: table, ttl: ttl, logger: logger, metrics: metrics}
}

// Resolve returns the coordinate for the given place name.
func (g *ForwardGeocoder) Resolve(ctx context.Context, name string) (domain.Geo, error) {
	norm := strings.ToLower(strings.TrimSpace(name))
	key := capForwardGeo + ":" + norm

	var cached domain.Geo
	if cacheGet(ctx, g.cache, g.metrics, capForwardGeo, key, &cached) {
		return cached, nil
	}

	start := time.Now()
	geo, err := g.remote.ForwardGeocode(ctx, name)
	observe(g.metrics, capForwardGeo, start)

	switch {
	case err == nil:
		cachePut(ctx, g.cache, g.logger, key, geo, g.ttl)
		g.metrics.EnrichRequests.WithLabelValues(capForwardGeo, outcomeSuccess).Inc()
		return geo, nil

	case errors.Is(err, domain.ErrAccessDenied):
		// Upstream is blocking us; answer from the static table rather than
		// failing the caller.
		geo := g.table.Lookup(norm)
		g.logger.Info("forward geocode answered from fallback table", "place", name, "error", err)
		g.metrics.EnrichRequests.WithLabelValues(capForwardGeo, outcomeFallback).Inc()
		return geo, nil

	default:
		g.metrics.EnrichRequests.WithLabelValues(capForwardGeo, outcomeError).Inc()
		return domain.Geo{}, fmt.Errorf("forward geocode %q: %w", name, err)
	}
}

// ReverseGeocoder resolves coordinates to a place name with cache-aside
// semantics. Remote failures are hard failures: no textual fallback exists.
type ReverseGeocoder struct {
	cache   cache.Store
	remote  ReverseGeocodeRemote
	ttl     time.Duration
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewReverseGeocoder creates the reverse geocoding adapter.
func NewReverseGeocoder(store cache.Store, remote ReverseGeocodeRemote, ttl time.Duration, logger *slog.Logger, metrics *observability.Metrics) *ReverseGeocoder {
	return &ReverseGeocoder{cache: store, remote: remote, ttl: ttl, logger: logger, metrics: metrics}
}

type reverseGeoPayload struct {
	PlaceName string `json:"place_name"`
}

// Resolve returns the formatted place name for the coordinate.
func (g *ReverseGeocoder) Resolve(ctx context.Context, geo domain.Geo) (string, error) {
	key := fmt.Sprintf("%s:%.6f,%.6f", capReverseGeo, geo.Lat, geo.Lon)

	var cached reverseGeoPayload
	if cacheGet(ctx, g.cache, g.metrics, capReverseGeo, key, &cached) {
		return cached.PlaceName, nil
	}

	start := time.Now()
	name, err := g.remote.ReverseGeocode(ctx, geo.Lat, geo.Lon)
	observe(g.metrics, capReverseGeo, start)

	if err != nil {
		g.metrics.EnrichRequests.WithLabelValues(capReverseGeo, outcomeError).Inc()
		return "", fmt.Errorf("reverse geocode %.6f,%.6f: %w", geo.Lat, geo.Lon, err)
	}

	cachePut(ctx, g.cache, g.logger, key, reverseGeoPayload{PlaceName: name}, g.ttl)
	g.metrics.EnrichRequests.WithLabelValues(capReverseGeo, outcomeSuccess).Inc()
	return name, nil
}
