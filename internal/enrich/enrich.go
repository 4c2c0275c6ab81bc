// Package enrich implements the cache-aside adapters fronting the unreliable
// external capabilities: place-name extraction, forward and reverse
// geocoding, image-authenticity scoring, and social-content search.
//
// Every adapter follows the same algorithm: compute a deterministic cache key
// from (capability, normalized input); return a cache hit immediately with no
// side effects; on a miss call the remote; on success write the cache and
// return; on remote failure apply the capability's fallback policy. Apart
// from geocoding, adapters never leave the caller without an answer.
package enrich

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/couchcryptid/disaster-coordination-service/internal/cache"
	"github.com/couchcryptid/disaster-coordination-service/internal/observability"
)

// Capability tags, used as cache-key namespaces and metric labels.
const (
	capPlaceName  = "placename"
	capForwardGeo = "geocode"
	capReverseGeo = "revgeo"
	capImageScore = "imgscore"
	capSocial     = "social"
)

// Metric outcome labels.
const (
	outcomeSuccess     = "success"
	outcomeFallback    = "fallback"
	outcomeDegraded    = "degraded"
	outcomeError       = "error"
	outcomeRateLimited = "rate_limited"
)

// hashInput digests free-form input into a short stable key segment so cache
// keys stay bounded regardless of input length.
func hashInput(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

// cacheGet unmarshals a cached JSON payload into out, counting the lookup.
// Corrupt payloads count as a miss.
func cacheGet(ctx context.Context, store cache.Store, metrics *observability.Metrics, capability, key string, out any) bool {
	raw, ok := store.Get(ctx, key)
	if ok {
		if err := json.Unmarshal(raw, out); err == nil {
			metrics.CacheLookups.WithLabelValues(capability, "hit").Inc()
			return true
		}
	}
	metrics.CacheLookups.WithLabelValues(capability, "miss").Inc()
	return false
}

// cachePut marshals v and writes it under key. Marshal failures are logged
// and dropped; losing a cache write never fails the call that produced it.
func cachePut(ctx context.Context, store cache.Store, logger *slog.Logger, key string, v any, ttl time.Duration) {
	raw, err := json.Marshal(v)
	if err != nil {
		logger.Warn("cache payload marshal failed", "key", key, "error", err)
		return
	}
	store.Put(ctx, key, raw, ttl)
}

// observe records the remote call duration for a capability.
func observe(metrics *observability.Metrics, capability string, start time.Time) {
	metrics.RemoteDuration.WithLabelValues(capability).Observe(time.Since(start).Seconds())
}
