package ttlstore

import (
	"context"
	"sync"
	"time"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// Memory is the process-local Store driver. All map access is mutex-guarded;
// two requests racing on the same key never observe a torn write.
type Memory[V any] struct {
	mu      sync.RWMutex
	entries map[string]entry[V]

	// now is swappable for tests.
	now func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory[V any]() *Memory[V] {
	return &Memory[V]{
		entries: make(map[string]entry[V]),
		now:     time.Now,
	}
}

func (m *Memory[V]) Get(_ context.Context, key string) (V, error) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()

	var zero V
	if !ok {
		return zero, ErrNotFound
	}
	if !e.expiresAt.After(m.now()) {
		// Lazily drop the corpse; Sweep would get it eventually anyway.
		m.mu.Lock()
		if cur, ok := m.entries[key]; ok && cur.expiresAt.Equal(e.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return zero, ErrNotFound
	}
	return e.value, nil
}

func (m *Memory[V]) Set(_ context.Context, key string, value V, ttl time.Duration) error {
	m.mu.Lock()
	m.entries[key] = entry[V]{value: value, expiresAt: m.now().Add(ttl)}
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.entries, key)
	m.mu.Unlock()
	return nil
}

func (m *Memory[V]) Sweep(_ context.Context) (int, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for k, e := range m.entries {
		if !e.expiresAt.After(now) {
			delete(m.entries, k)
			removed++
		}
	}
	return removed, nil
}

// Len reports the current entry count, live and expired-but-unswept alike.
func (m *Memory[V]) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// SetNow overrides the store's clock. Test hook.
func (m *Memory[V]) SetNow(now func() time.Time) { m.now = now }
