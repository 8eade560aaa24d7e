package ratelimit

import (
	"context"
	"fmt"
	"time"

	"budgetly/internal/log"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter shares counters across API replicas. Redis errors fail open.
type RedisLimiter struct {
	client  *redis.Client
	logger  *log.Logger
	prefix  string
	timeout time.Duration
}

var _ Limiter = (*RedisLimiter)(nil)

// NewRedisLimiter connects to url (redis://...) and pings it.
func NewRedisLimiter(ctx context.Context, url string, logger *log.Logger) (*RedisLimiter, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return newRedisLimiter(client, logger), nil
}

func newRedisLimiter(client *redis.Client, logger *log.Logger) *RedisLimiter {
	if logger == nil {
		logger = log.Discard()
	}
	return &RedisLimiter{
		client:  client,
		logger:  logger.WithComponent(log.ComponentRateLimit),
		prefix:  "budgetly:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	pipe := rl.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	ttlCmd := pipe.TTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		rl.logger.ErrorContext(ctx, "Redis rate limiter error", log.FieldOperation, "incr", log.FieldError, err)
		return Decision{Allowed: true}
	}
	counter := incr.Val()

	// A counter without expiry would throttle the key forever, so any
	// request that finds one sets the window again.
	ttl, repair := windowTTL(ttlCmd.Val(), window)
	if repair {
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			rl.logger.ErrorContext(ctx, "Redis rate limiter error", log.FieldOperation, "expire", log.FieldError, err)
		}
	}
	return Decision{
		Allowed:   int(counter) <= limit,
		Count:     int(counter),
		WindowEnd: time.Now().Add(ttl),
	}
}

// windowTTL returns the remaining window and whether the key lacks an expiry.
func windowTTL(ttl, window time.Duration) (time.Duration, bool) {
	if ttl > 0 {
		return ttl, false
	}
	return window, true
}

func (rl *RedisLimiter) Close() {
	if rl.client != nil {
		_ = rl.client.Close()
	}
}
