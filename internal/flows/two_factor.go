package flows

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore/account"
)

// TwoFactorDeps defines dependencies for 2FA code verification.
type TwoFactorDeps struct {
	Hooks

	Store      account.Store
	Sessions   Sessions
	SessionTTL time.Duration

	ParseCode func(raw string) (int, error)

	// Limiter hooks are optional; nil disables attempt throttling.
	CheckRate     func(ctx context.Context, email string) error
	RecordFailure func(ctx context.Context, email string) error
	ResetRate     func(ctx context.Context, email string) error
	// RateLimited reports whether a limiter error means "over the limit"
	// rather than a backend failure.
	RateLimited func(error) bool
}

// RunVerifyTwoFactor consumes the pending 2FA code of the account behind
// email and issues a session token.
func RunVerifyTwoFactor(ctx context.Context, email, rawCode string, deps TwoFactorDeps) (*LoginResult, error) {
	deps.defaults()
	if deps.Store == nil || deps.Sessions.Issue == nil || deps.ParseCode == nil {
		return nil, deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return nil, deps.Errors.TwoFactorNotEnabled
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, email); err != nil {
			return nil, rateError(err, deps.Hooks, deps.RateLimited)
		}
	}

	acc, err := deps.Store.FindByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		return nil, deps.Errors.TwoFactorNotEnabled
	}
	if err != nil {
		return nil, deps.unavailable("two-factor lookup failed", err)
	}
	if !acc.TwoFactorEnabled {
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		return nil, deps.Errors.TwoFactorNotEnabled
	}

	code, err := deps.ParseCode(rawCode)
	if err != nil {
		return nil, twoFactorFailure(ctx, acc.ID, email, deps)
	}

	now := deps.Now()
	updated, err := deps.Store.Update(ctx, acc.ID, func(fresh *account.Account) ([]account.Revocation, error) {
		if !fresh.TwoFactorEnabled {
			return nil, deps.Errors.TwoFactorNotEnabled
		}
		if !codeMatches(fresh, code, now) {
			return nil, deps.Errors.TwoFactorInvalid
		}
		fresh.ClearTwoFactorChallenge()
		return nil, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, deps.Errors.TwoFactorInvalid):
		return nil, twoFactorFailure(ctx, acc.ID, email, deps)
	case errors.Is(err, deps.Errors.TwoFactorNotEnabled), errors.Is(err, account.ErrNotFound):
		deps.MetricInc(deps.Metrics.TwoFactorFailure)
		return nil, deps.Errors.TwoFactorNotEnabled
	default:
		return nil, deps.unavailable("two-factor state write failed", err)
	}

	if deps.ResetRate != nil {
		if err := deps.ResetRate(ctx, email); err != nil {
			deps.Warn("two-factor limiter reset failed", err)
		}
	}

	token, claims, err := deps.Sessions.Issue(updated, deps.SessionTTL)
	if err != nil {
		return nil, deps.unavailable("session token issue failed", err)
	}

	deps.MetricInc(deps.Metrics.TwoFactorSuccess)
	deps.MetricInc(deps.Metrics.SessionIssued)
	deps.EmitAudit(ctx, deps.Events.TwoFactorSuccess, true, updated.ID, nil, nil)
	return &LoginResult{AccountID: updated.ID, Token: token, Claims: claims}, nil
}

// codeMatches reports whether code is the live challenge of acc at now.
func codeMatches(acc *account.Account, code int, now time.Time) bool {
	if acc.TwoFactorCode == 0 || acc.TwoFactorExpires.IsZero() {
		return false
	}
	if !now.Before(acc.TwoFactorExpires) {
		return false
	}
	return subtle.ConstantTimeEq(int32(acc.TwoFactorCode), int32(code)) == 1
}

func twoFactorFailure(ctx context.Context, id, email string, deps TwoFactorDeps) error {
	if deps.RecordFailure != nil {
		if err := deps.RecordFailure(ctx, email); err != nil {
			deps.Warn("two-factor limiter record failed", err)
		}
	}
	deps.MetricInc(deps.Metrics.TwoFactorFailure)
	deps.EmitAudit(ctx, deps.Events.TwoFactorFailure, false, id, deps.Errors.TwoFactorInvalid, nil)
	return deps.Errors.TwoFactorInvalid
}

// rateError maps a limiter error to RateLimited or Unavailable.
func rateError(err error, hooks Hooks, limited func(error) bool) error {
	if limited != nil && limited(err) {
		hooks.MetricInc(hooks.Metrics.RateLimitHit)
		return hooks.Errors.RateLimited
	}
	return hooks.unavailable("rate limiter unavailable", err)
}
