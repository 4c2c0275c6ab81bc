package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/disaster-coordination-service/internal/cache"
)

// CacheStore implements cache.Store on top of the cache_entries table.
// Backing-store failures never surface: a failed read is a miss and a failed
// write is logged and dropped.
type CacheStore struct {
	db     *sql.DB
	clock  clockwork.Clock
	logger *slog.Logger
}

// NewCacheStore creates a cache store over the shared database.
func NewCacheStore(db *DB, clock clockwork.Clock, logger *slog.Logger) *CacheStore {
	return &CacheStore{db: db.db, clock: clock, logger: logger}
}

// Get returns the value for key, treating expired rows and read errors as
// misses.
func (s *CacheStore) Get(ctx context.Context, key string) ([]byte, bool) {
	now := s.clock.Now().UnixNano()

	var value []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM cache_entries WHERE key = ? AND expires_at > ?`,
		key, now,
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, false
	case err != nil:
		s.logger.Warn("cache read failed, treating as miss", "key", key, "error", err)
		return nil, false
	}
	return value, true
}

// Put upserts the entry. Write failures are logged and swallowed so a lost
// cache write never fails the lookup that produced the value.
func (s *CacheStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	expiresAt := s.clock.Now().Add(cache.EffectiveTTL(ttl)).UnixNano()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, value, expires_at) VALUES (?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET value = excluded.value, expires_at = excluded.expires_at`,
		key, value, expiresAt,
	)
	if err != nil {
		s.logger.Warn("cache write failed, dropping entry", "key", key, "error", err)
	}
}

// PurgeExpired deletes rows past their expiry. Expired rows are already
// invisible to Get; this just reclaims space.
func (s *CacheStore) PurgeExpired(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE expires_at <= ?`, s.clock.Now().UnixNano())
	return err
}
