package limiters

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore/internal/rate"
	"github.com/redis/go-redis/v9"
)

var (
	ErrResetRateLimited      = errors.New("reset rate limited")
	ErrResetRedisUnavailable = errors.New("reset redis unavailable")
)

type PasswordResetConfig struct {
	EnableIPThrottle bool
	Window           time.Duration
	MaxRequests      int
}

type PasswordResetLimiter struct {
	email  *rate.Window
	ip     *rate.Window
	config PasswordResetConfig
}

func NewPasswordResetLimiter(redisClient redis.UniversalClient, cfg PasswordResetConfig) *PasswordResetLimiter {
	return &PasswordResetLimiter{
		email:  rate.NewWindow(redisClient, "acpr:e:", cfg.MaxRequests, cfg.Window),
		ip:     rate.NewWindow(redisClient, "acpr:ip:", cfg.MaxRequests, cfg.Window),
		config: cfg,
	}
}

// CheckRequest counts one reset request for email, and for ip when IP
// throttling is enabled.
func (l *PasswordResetLimiter) CheckRequest(ctx context.Context, email, ip string) error {
	if l == nil {
		return nil
	}
	if err := mapReset(l.email.Hit(ctx, normalizeEmail(email))); err != nil {
		return err
	}
	if l.config.EnableIPThrottle && ip != "" {
		if err := mapReset(l.ip.Hit(ctx, ip)); err != nil {
			return err
		}
	}
	return nil
}

func mapReset(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrResetRateLimited
	default:
		return errors.Join(ErrResetRedisUnavailable, err)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
