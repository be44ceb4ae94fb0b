package cache

import (
	"context"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
)

// MemoryBackend keeps entries in a bounded LRU; the least recently used entry
// is dropped when capacity is reached.
type MemoryBackend struct {
	mu  sync.Mutex
	lru *lru.Cache
}

// NewMemoryBackend creates a backend holding at most capacity entries
// (0 means unbounded).
func NewMemoryBackend(capacity int) *MemoryBackend {
	return &MemoryBackend{lru: lru.New(capacity)}
}

func (m *MemoryBackend) Get(_ context.Context, key string, now time.Time, evictAfter time.Duration) (Entry, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	raw, ok := m.lru.Get(key)
	if !ok {
		return Entry{}, false, nil
	}
	entry := raw.(Entry)
	if entry.Expired(now) {
		m.lru.Remove(key)
		return Entry{}, false, nil
	}
	entry.AccessedAt = now
	if evictAfter > 0 {
		entry.EvictAfter = evictAfter
	}
	m.lru.Add(key, entry)
	return entry, true, nil
}

func (m *MemoryBackend) Put(_ context.Context, key string, entry Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Add(key, entry)
	return nil
}

func (m *MemoryBackend) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
	return nil
}

func (m *MemoryBackend) Ping(context.Context) error { return nil }

// Len returns the number of stored entries, expired ones included.
func (m *MemoryBackend) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lru.Len()
}
