package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCounter implements Counter on Redis INCR with a TTL refresh, so
// counters for stale windows expire on their own.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter creates a new RedisCounter instance.
func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client}
}

// IncrementAndGet atomically increments the counter and returns the new
// count.
func (c *RedisCounter) IncrementAndGet(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis incr failed: %w", err)
	}
	return incr.Val(), nil
}

var _ Counter = (*RedisCounter)(nil)
