package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

// Loader produces a fresh value for a key.
type Loader func(ctx context.Context) (string, error)

// Cache serves stored values and funnels concurrent regenerations of the same
// key into a single upstream load. A failed load leaves any previous entry
// untouched and is never stored.
type Cache struct {
	name        string
	backend     Backend
	defaults    Policy
	group       singleflight.Group
	now         func() time.Time
	loadTimeout time.Duration
	log         zerolog.Logger
}

type Option func(*Cache)

// WithClock replaces time.Now; tests use it to move entries through their windows.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithLoadTimeout bounds a shared load once it is detached from its callers.
func WithLoadTimeout(d time.Duration) Option {
	return func(c *Cache) { c.loadTimeout = d }
}

func WithLogger(log zerolog.Logger) Option {
	return func(c *Cache) { c.log = log }
}

// New creates a cache named for its metrics label. Zero fields in a per-call
// Policy fall back to defaults.
func New(name string, backend Backend, defaults Policy, opts ...Option) *Cache {
	c := &Cache{
		name:        name,
		backend:     backend,
		defaults:    defaults,
		now:         time.Now,
		loadTimeout: 2 * time.Minute,
		log:         zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) resolve(p Policy) Policy {
	if p.StaleAfter <= 0 {
		p.StaleAfter = c.defaults.StaleAfter
	}
	if p.EvictAfter <= 0 {
		p.EvictAfter = c.defaults.EvictAfter
	}
	return p
}

// GetOrLoad returns the stored value for key when it is fresh. Otherwise it
// joins (or starts) the single in-flight load for key. If ctx ends first the
// caller gets ctx.Err() while the load runs to completion for everyone else.
func (c *Cache) GetOrLoad(ctx context.Context, key string, policy Policy, load Loader) (string, error) {
	policy = c.resolve(policy)

	entry, ok, err := c.backend.Get(ctx, key, c.now(), policy.EvictAfter)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, loading")
	}
	if ok && !entry.Stale(c.now(), policy.StaleAfter) {
		lookupsTotal.WithLabelValues(c.name, "hit").Inc()
		return entry.Value, nil
	}
	if ok {
		lookupsTotal.WithLabelValues(c.name, "stale").Inc()
	} else {
		lookupsTotal.WithLabelValues(c.name, "miss").Inc()
	}

	ch := c.group.DoChan(key, func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		// A load that finished between the read above and joining the
		// group has already stored a fresh value.
		if entry, ok, err := c.backend.Get(loadCtx, key, c.now(), policy.EvictAfter); err == nil && ok && !entry.Stale(c.now(), policy.StaleAfter) {
			return entry.Value, nil
		}

		value, err := load(loadCtx)
		if err != nil {
			loadErrorsTotal.WithLabelValues(c.name).Inc()
			return "", err
		}
		now := c.now()
		stored := Entry{
			Value:      value,
			CreatedAt:  now,
			AccessedAt: now,
			EvictAfter: policy.EvictAfter,
		}
		if err := c.backend.Put(loadCtx, key, stored); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
		}
		return value, nil
	})

	select {
	case res := <-ch:
		if res.Shared {
			lookupsTotal.WithLabelValues(c.name, "coalesced").Inc()
		}
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Peek returns the stored entry without loading, stale or not. The entry
// keeps its eviction window.
func (c *Cache) Peek(ctx context.Context, key string) (Entry, bool, error) {
	return c.backend.Get(ctx, key, c.now(), 0)
}

// Invalidate drops a key so the next lookup loads.
func (c *Cache) Invalidate(ctx context.Context, key string) error {
	c.group.Forget(key)
	return c.backend.Delete(ctx, key)
}

// Ping checks that the backend is reachable.
func (c *Cache) Ping(ctx context.Context) error {
	return c.backend.Ping(ctx)
}

// GetOrLoadJSON caches a structured value as JSON under key.
func GetOrLoadJSON[T any](ctx context.Context, c *Cache, key string, policy Policy, load func(ctx context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.GetOrLoad(ctx, key, policy, func(ctx context.Context) (string, error) {
		v, err := load(ctx)
		if err != nil {
			return "", err
		}
		payload, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", key, err)
		}
		return string(payload), nil
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return out, fmt.Errorf("decode %s: %w", key, err)
	}
	return out, nil
}
