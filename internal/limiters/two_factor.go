package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/accountcore/internal/rate"
	"github.com/redis/go-redis/v9"
)

const (
	defaultTwoFactorMaxAttempts = 5
	defaultTwoFactorCooldown    = 5 * time.Minute
)

var (
	ErrTwoFactorRateLimited = errors.New("two-factor rate limited")
	ErrTwoFactorUnavailable = errors.New("two-factor limiter unavailable")
)

// TwoFactorConfig holds configurable thresholds for the 2FA limiter.
type TwoFactorConfig struct {
	MaxAttempts int
	Cooldown    time.Duration
}

// TwoFactorLimiter bounds wrong-code submissions per email. A six-digit code
// alive for five minutes is otherwise open to enumeration.
type TwoFactorLimiter struct {
	window *rate.Window
}

// NewTwoFactorLimiter creates a 2FA limiter. Zero-value fields in cfg fall
// back to defaults (5 attempts / 5 minutes).
func NewTwoFactorLimiter(redisClient redis.UniversalClient, cfg TwoFactorConfig) *TwoFactorLimiter {
	max := cfg.MaxAttempts
	if max <= 0 {
		max = defaultTwoFactorMaxAttempts
	}
	cd := cfg.Cooldown
	if cd <= 0 {
		cd = defaultTwoFactorCooldown
	}
	return &TwoFactorLimiter{window: rate.NewWindow(redisClient, "ac2fa:", max, cd)}
}

func (l *TwoFactorLimiter) Check(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	return mapTwoFactor(l.window.Check(ctx, normalizeEmail(email)))
}

func (l *TwoFactorLimiter) RecordFailure(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	err := l.window.Hit(ctx, normalizeEmail(email))
	if errors.Is(err, rate.ErrRateLimited) {
		// the failure itself was counted; the next Check rejects
		return nil
	}
	return mapTwoFactor(err)
}

func (l *TwoFactorLimiter) Reset(ctx context.Context, email string) error {
	if l == nil {
		return nil
	}
	return mapTwoFactor(l.window.Reset(ctx, normalizeEmail(email)))
}

func mapTwoFactor(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, rate.ErrRateLimited):
		return ErrTwoFactorRateLimited
	default:
		return errors.Join(ErrTwoFactorUnavailable, err)
	}
}
