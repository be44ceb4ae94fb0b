package cache

import (
	"context"
	"time"
)

// Policy controls when an entry is refreshed and when it is dropped.
// StaleAfter is measured from creation, EvictAfter from the last access.
// Both belong to the lookup, so callers with different policies can share an
// entry.
type Policy struct {
	StaleAfter time.Duration
	EvictAfter time.Duration
}

// Entry is a stored value with its lifecycle timestamps.
type Entry struct {
	Value      string        `json:"value"`
	CreatedAt  time.Time     `json:"createdAt"`
	AccessedAt time.Time     `json:"accessedAt"`
	EvictAfter time.Duration `json:"evictAfter"`
}

// Stale reports whether an entry created at CreatedAt is older than after.
func (e Entry) Stale(now time.Time, after time.Duration) bool {
	return now.Sub(e.CreatedAt) >= after
}

// Expired reports whether the entry has outlived its eviction window.
func (e Entry) Expired(now time.Time) bool {
	return now.Sub(e.AccessedAt) >= e.EvictAfter
}

// Backend stores entries. Get must treat expired entries as absent and record
// the access so the eviction window restarts. A positive evictAfter replaces
// the entry's window from this access on; zero keeps the stored one.
type Backend interface {
	Get(ctx context.Context, key string, now time.Time, evictAfter time.Duration) (Entry, bool, error)
	Put(ctx context.Context, key string, entry Entry) error
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
}
