package ttlstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store driver backed by a shared Redis instance. Values are JSON
// blobs under a namespaced key; Redis handles expiry natively, so Sweep has
// nothing to do.
type Redis[V any] struct {
	client redis.UniversalClient
	prefix string
}

// NewRedis returns a Redis-backed store. prefix namespaces this store's keys
// so several stores can share one Redis database.
func NewRedis[V any](client redis.UniversalClient, prefix string) *Redis[V] {
	return &Redis[V]{client: client, prefix: prefix}
}

func (r *Redis[V]) key(k string) string { return r.prefix + ":" + k }

func (r *Redis[V]) Get(ctx context.Context, key string) (V, error) {
	var zero V

	raw, err := r.client.Get(ctx, r.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, ErrNotFound
		}
		return zero, fmt.Errorf("ttlstore: redis get: %w", err)
	}

	var v V
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, fmt.Errorf("ttlstore: decode value: %w", err)
	}
	return v, nil
}

func (r *Redis[V]) Set(ctx context.Context, key string, value V, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("ttlstore: encode value: %w", err)
	}
	if err := r.client.Set(ctx, r.key(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("ttlstore: redis set: %w", err)
	}
	return nil
}

func (r *Redis[V]) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("ttlstore: redis del: %w", err)
	}
	return nil
}

// Sweep is a no-op for Redis; keys carry their own TTL server-side.
func (r *Redis[V]) Sweep(context.Context) (int, error) { return 0, nil }
