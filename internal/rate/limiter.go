// Package rate implements a Redis-backed fixed-window request limiter. It
// throttles credential-guessing traffic before it reaches the store; the
// durable per-account lockout lives in the user record, not here.
package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrLimited indicates the window budget is exhausted.
	ErrLimited = errors.New("rate limited")
	// ErrUnavailable indicates the limiter backend is unreachable.
	ErrUnavailable = errors.New("rate limiter unavailable")
)

type Config struct {
	Enabled  bool
	Attempts int
	Window   time.Duration
}

type Limiter struct {
	redis  redis.UniversalClient
	prefix string
	config Config
}

func NewLimiter(redisClient redis.UniversalClient, prefix string, cfg Config) *Limiter {
	return &Limiter{redis: redisClient, prefix: prefix, config: cfg}
}

func (l *Limiter) key(id string) string {
	return l.prefix + ":" + id
}

// Allow consumes one attempt for the given key. The first attempt of a window
// sets its TTL, so the counter resets on its own.
func (l *Limiter) Allow(ctx context.Context, id string) error {
	if !l.config.Enabled || id == "" {
		return nil
	}

	count, err := l.redis.Incr(ctx, l.key(id)).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	if count == 1 {
		if err := l.redis.Expire(ctx, l.key(id), l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	if count > int64(l.config.Attempts) {
		return ErrLimited
	}
	return nil
}

// Reset clears the counter, e.g. after a successful login.
func (l *Limiter) Reset(ctx context.Context, id string) error {
	if !l.config.Enabled || id == "" {
		return nil
	}
	if err := l.redis.Del(ctx, l.key(id)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}
