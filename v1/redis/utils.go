package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Ping checks that the server is reachable.
func (r *RedisClient) Ping(ctx context.Context) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.client.Ping(ctx).Err()
}

// PoolStats returns connection pool statistics.
func (r *RedisClient) PoolStats() *redis.PoolStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.client.PoolStats()
}

// Seen reports whether key was marked as handled and has not expired yet.
func (r *RedisClient) Seen(ctx context.Context, key string) (bool, error) {
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, err := r.client.Exists(ctx, r.key(key)).Result()
	r.observeOperation("exists", key, "", time.Since(start), err, 0, nil)
	if err != nil {
		return false, translateError(err)
	}
	return n > 0, nil
}

// Mark records key as handled for the configured HandledTTL. Marking a key
// that is already present keeps its original expiry.
func (r *RedisClient) Mark(ctx context.Context, key string) error {
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, err := r.client.SetNX(ctx, r.key(key), time.Now().UTC().Format(time.RFC3339), r.cfg.HandledTTL).Result()
	r.observeOperation("setnx", key, "", time.Since(start), err, 0, map[string]interface{}{
		"was_set": set,
		"ttl":     r.cfg.HandledTTL.String(),
	})
	return translateError(err)
}

// Forget removes the handled marker for key, so the next delivery of that
// message runs the handler again.
func (r *RedisClient) Forget(ctx context.Context, key string) error {
	start := time.Now()
	r.mu.RLock()
	defer r.mu.RUnlock()

	n, err := r.client.Del(ctx, r.key(key)).Result()
	r.observeOperation("delete", key, "", time.Since(start), err, n, nil)
	return translateError(err)
}

// TTL returns the remaining lifetime of the marker for key. It returns Nil
// when the key is not marked.
func (r *RedisClient) TTL(ctx context.Context, key string) (time.Duration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ttl, err := r.client.TTL(ctx, r.key(key)).Result()
	if err != nil {
		return 0, translateError(err)
	}
	// -2: key does not exist
	if ttl == -2 {
		return 0, Nil
	}
	return ttl, nil
}

func (r *RedisClient) key(key string) string {
	return r.cfg.KeyPrefix + key
}
