package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Memory is a mutex-guarded in-memory Store. It backs tests and runs with
// the database disabled; expired entries are dropped lazily on read.
type Memory struct {
	clock clockwork.Clock

	mu      sync.Mutex
	entries map[string]memoryEntry
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemory creates an empty in-memory store using the given time source.
func NewMemory(clock clockwork.Clock) *Memory {
	return &Memory{
		clock:   clock,
		entries: make(map[string]memoryEntry),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !m.clock.Now().Before(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Put(_ context.Context, key string, value []byte, ttl time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[key] = memoryEntry{
		value:     value,
		expiresAt: m.clock.Now().Add(EffectiveTTL(ttl)),
	}
}
