package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jllopis/actionhub/pkg/registry"
)

// RedisLimiter shares counters between gateway replicas through Redis.
type RedisLimiter struct {
	client redis.Cmdable
	now    func() time.Time
}

// NewRedisLimiter wraps an existing client.
func NewRedisLimiter(client redis.Cmdable) *RedisLimiter {
	return &RedisLimiter{client: client, now: time.Now}
}

// Allow implements Limiter. Each window is an INCR on a bucket key that
// expires when the window closes.
func (l *RedisLimiter) Allow(ctx context.Context, key string, policy registry.RateLimit) (Decision, error) {
	now := l.now()
	for _, w := range windows(policy) {
		k, reset := bucketKey(key, w, now)
		pipe := l.client.TxPipeline()
		incr := pipe.Incr(ctx, k)
		pipe.ExpireAt(ctx, k, reset.Add(time.Second))
		if _, err := pipe.Exec(ctx); err != nil {
			return Decision{}, fmt.Errorf("rate limit counter %s: %w", k, err)
		}
		if count := int(incr.Val()); count > w.limit {
			return Decision{Window: w.name, Limit: w.limit, Count: count, RetryAfter: reset.Sub(now)}, nil
		}
	}
	return Decision{Allowed: true}, nil
}

// Ping checks connectivity.
func (l *RedisLimiter) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}
