package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const startKeyspace = "rs:"

// Config holds throttle tuning for inbound roll-in requests.
type Config struct {
	Enabled   bool
	MaxStarts int
	Window    time.Duration
	Prefix    string
}

// Limiter throttles start_auth per user with a Redis fixed-window counter.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckStart counts one roll-in request for userID and returns
// ErrRateLimited once the window budget is spent. A disabled limiter
// always admits.
func (l *Limiter) CheckStart(ctx context.Context, userID string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	count, err := l.incrementWithTTL(ctx, l.startKey(userID), l.config.Window)
	if err != nil {
		return err
	}
	if count > int64(l.config.MaxStarts) {
		return ErrRateLimited
	}

	return nil
}

// Remaining reports how many starts userID may still make in the current window.
func (l *Limiter) Remaining(ctx context.Context, userID string) (int, error) {
	if l == nil || !l.config.Enabled {
		return l.maxOrZero(), nil
	}
	count, err := l.redis.Get(ctx, l.startKey(userID)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return l.config.MaxStarts, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	left := int64(l.config.MaxStarts) - count
	if left < 0 {
		return 0, nil
	}
	return int(left), nil
}

// Reset clears the window for userID.
func (l *Limiter) Reset(ctx context.Context, userID string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}
	if err := l.redis.Del(ctx, l.startKey(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (l *Limiter) maxOrZero() int {
	if l == nil {
		return 0
	}
	return l.config.MaxStarts
}

func (l *Limiter) startKey(userID string) string {
	return l.config.Prefix + startKeyspace + userID
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
