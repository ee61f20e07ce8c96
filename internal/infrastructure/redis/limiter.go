// Package redisinfra holds Redis-backed infrastructure.
package redisinfra

import (
	"context"
	"fmt"
	"time"

	"github.com/go-auth-nosql/internal/config"
	"github.com/redis/go-redis/v9"
)

// Counter is the subset of the Redis client the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
	TTL(ctx context.Context, key string) *redis.DurationCmd
}

// AttemptLimiter counts attempts per key in fixed windows shared by every
// instance of the service.
type AttemptLimiter struct {
	redis  Counter
	prefix string
	limit  int
	window time.Duration
}

func NewClient(cfg *config.Config) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
}

func NewAttemptLimiter(client Counter, prefix string, limit int, window time.Duration) *AttemptLimiter {
	return &AttemptLimiter{redis: client, prefix: prefix, limit: limit, window: window}
}

// Allow records one attempt for key and reports whether it is within budget.
// The window starts at the first attempt and is not extended by later ones.
// A key over budget without a TTL (its first EXPIRE failed) gets the window
// applied again, so it cannot stay blocked forever.
func (l *AttemptLimiter) Allow(ctx context.Context, key string) (bool, error) {
	k := l.prefix + ":" + key
	count, err := l.redis.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", k, err)
	}
	allowed := count <= int64(l.limit)
	switch {
	case count == 1:
		if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", k, err)
		}
	case !allowed:
		if err := l.repairTTL(ctx, k); err != nil {
			return false, err
		}
	}
	return allowed, nil
}

// repairTTL sets the window on k when Redis reports it has no expiry.
func (l *AttemptLimiter) repairTTL(ctx context.Context, k string) error {
	ttl, err := l.redis.TTL(ctx, k).Result()
	if err != nil {
		return fmt.Errorf("ttl %s: %w", k, err)
	}
	if ttl != -1 {
		return nil
	}
	if err := l.redis.Expire(ctx, k, l.window).Err(); err != nil {
		return fmt.Errorf("expire %s: %w", k, err)
	}
	return nil
}
