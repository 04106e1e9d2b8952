package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Window is a fixed-window counter namespaced by Prefix. The first hit in a
// window sets the key TTL; the window ends when the key expires.
type Window struct {
	redis  redis.UniversalClient
	prefix string
	max    int64
	period time.Duration
}

// NewWindow returns a Window allowing max hits per period under prefix.
func NewWindow(redisClient redis.UniversalClient, prefix string, max int, period time.Duration) *Window {
	return &Window{
		redis:  redisClient,
		prefix: prefix,
		max:    int64(max),
		period: period,
	}
}

// Hit records one event for key and returns ErrRateLimited once the count
// exceeds the budget.
func (w *Window) Hit(ctx context.Context, key string) error {
	count, err := w.increment(ctx, key)
	if err != nil {
		return err
	}
	if count > w.max {
		return ErrRateLimited
	}
	return nil
}

// Check reports ErrRateLimited when key has already reached the budget,
// without counting.
func (w *Window) Check(ctx context.Context, key string) error {
	count, err := w.redis.Get(ctx, w.prefix+key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count >= w.max {
		return ErrRateLimited
	}
	return nil
}

// Reset drops the counter for key.
func (w *Window) Reset(ctx context.Context, key string) error {
	if err := w.redis.Del(ctx, w.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

func (w *Window) increment(ctx context.Context, key string) (int64, error) {
	full := w.prefix + key
	count, err := w.redis.Incr(ctx, full).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	if count == 1 {
		if err := w.redis.Expire(ctx, full, w.period).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}
	return count, nil
}
