// Package cache defines the key/value store fronting every external lookup.
//
// The store is an oracle cache for idempotent remote calls, not a working-set
// cache: entries expire by TTL, there is no size bound and no eviction beyond
// expiry. Backing-store failures are absorbed here and never surface to
// callers — a Get error counts as a miss (the caller always has a fallback
// path) and a Put error is logged and swallowed (losing a cache write must
// never fail the enrichment call that produced the value).
package cache

import (
	"context"
	"time"
)

// DefaultTTL applies when a caller passes a zero or negative ttl.
const DefaultTTL = time.Hour

// Store is the cache contract. Keys are namespaced by capability
// (e.g. "geocode:<normalized input>"); values are opaque serialized payloads
// whose shape is owned by the enrichment adapter that wrote them.
type Store interface {
	// Get returns the value for key, or ok=false on a miss. An expired entry
	// behaves identically to an absent one.
	Get(ctx context.Context, key string) (value []byte, ok bool)

	// Put upserts the entry with the given ttl (DefaultTTL when ttl <= 0).
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)
}

// EffectiveTTL normalizes a caller-supplied ttl.
func EffectiveTTL(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return DefaultTTL
	}
	return ttl
}
