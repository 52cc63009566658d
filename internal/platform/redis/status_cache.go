// Package redis provides a short-TTL snapshot cache for job status
// responses, absorbing poll storms without touching the job store.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StatusCache caches serialized job status snapshots. All operations are
// best-effort: callers fall back to the job store on any miss or error.
type StatusCache interface {
	GetStatus(ctx context.Context, requestID string) ([]byte, bool, error)
	SetStatus(ctx context.Context, requestID string, snapshot []byte, ttl time.Duration) error
	DeleteStatus(ctx context.Context, requestID string) error
	Ping(ctx context.Context) error
}

// statusKey namespaces job status entries in the shared Redis keyspace.
func statusKey(requestID string) string {
	return fmt.Sprintf("job:status:%s", requestID)
}

// RedisStatusCache implements StatusCache using go-redis/v9.
type RedisStatusCache struct {
	client *redis.Client
}

// NewRedisStatusCache creates a RedisStatusCache from a Redis URL.
func NewRedisStatusCache(redisURL string) (*RedisStatusCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	return &RedisStatusCache{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity to the Redis server.
func (c *RedisStatusCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// GetStatus returns the cached snapshot for a request ID, if present.
func (c *RedisStatusCache) GetStatus(ctx context.Context, requestID string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, statusKey(requestID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

// SetStatus stores a snapshot under the request ID with the given TTL.
func (c *RedisStatusCache) SetStatus(
	ctx context.Context,
	requestID string,
	snapshot []byte,
	ttl time.Duration,
) error {
	return c.client.Set(ctx, statusKey(requestID), snapshot, ttl).Err()
}

// DeleteStatus drops the cached snapshot, forcing the next poll through to
// the job store. Used after state transitions so clients see them promptly.
func (c *RedisStatusCache) DeleteStatus(ctx context.Context, requestID string) error {
	return c.client.Del(ctx, statusKey(requestID)).Err()
}
