package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend stores entries as JSON with a TTL equal to the eviction window.
// Reads refresh the TTL so eviction counts from the last access.
type RedisBackend struct {
	client *redis.Client
	prefix string
}

// NewRedisBackend wraps an existing client. prefix namespaces the keys ("cache:").
func NewRedisBackend(client *redis.Client, prefix string) *RedisBackend {
	if prefix == "" {
		prefix = "cache:"
	}
	return &RedisBackend{client: client, prefix: prefix}
}

func (r *RedisBackend) key(key string) string {
	return r.prefix + key
}

func (r *RedisBackend) Get(ctx context.Context, key string, now time.Time, evictAfter time.Duration) (Entry, bool, error) {
	raw, err := r.client.Get(ctx, r.key(key)).Result()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("get cache entry: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry: %w", err)
	}
	if evictAfter > 0 {
		entry.EvictAfter = evictAfter
	}
	if entry.EvictAfter > 0 {
		if err := r.client.Expire(ctx, r.key(key), entry.EvictAfter).Err(); err != nil {
			return Entry{}, false, fmt.Errorf("refresh cache ttl: %w", err)
		}
	}
	entry.AccessedAt = now
	return entry, true, nil
}

func (r *RedisBackend) Put(ctx context.Context, key string, entry Entry) error {
	payload, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), payload, entry.EvictAfter).Err(); err != nil {
		return fmt.Errorf("put cache entry: %w", err)
	}
	return nil
}

func (r *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("delete cache entry: %w", err)
	}
	return nil
}

func (r *RedisBackend) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
