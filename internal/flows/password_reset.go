package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/jwt"
)

// PasswordResetDeps defines dependencies for reset request and confirmation.
type PasswordResetDeps struct {
	Hooks

	Store     account.Store
	Passwords Passwords

	IssueReset func(accountID string) (string, *jwt.ResetClaims, error)
	ParseReset func(token string) (*jwt.ResetClaims, error)
	SendLink   func(ctx context.Context, email, token string)

	// CheckRate is optional; nil disables request throttling.
	CheckRate   func(ctx context.Context, email string) error
	RateLimited func(error) bool
}

// RunRequestPasswordReset issues a reset token for the account behind email,
// arms the single-use flag and hands the token to the notifier.
func RunRequestPasswordReset(ctx context.Context, email string, deps PasswordResetDeps) (string, error) {
	deps.defaults()
	if deps.Store == nil || deps.IssueReset == nil {
		return "", deps.Errors.EngineNotReady
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return "", deps.Errors.Validation
	}

	if deps.CheckRate != nil {
		if err := deps.CheckRate(ctx, email); err != nil {
			return "", rateError(err, deps.Hooks, deps.RateLimited)
		}
	}

	acc, err := deps.Store.FindByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, false, "", deps.Errors.NotFound, nil)
		return "", deps.Errors.NotFound
	}
	if err != nil {
		return "", deps.unavailable("reset lookup failed", err)
	}

	token, _, err := deps.IssueReset(acc.ID)
	if err != nil {
		return "", deps.unavailable("reset token issue failed", err)
	}

	updated, err := deps.Store.Update(ctx, acc.ID, func(fresh *account.Account) ([]account.Revocation, error) {
		fresh.ResetTokenUsed = false
		return nil, nil
	})
	if errors.Is(err, account.ErrNotFound) {
		return "", deps.Errors.NotFound
	}
	if err != nil {
		return "", deps.unavailable("reset state write failed", err)
	}

	if deps.SendLink != nil {
		deps.SendLink(ctx, updated.Email, token)
	}

	deps.MetricInc(deps.Metrics.PasswordResetRequest)
	deps.EmitAudit(ctx, deps.Events.PasswordResetRequest, true, updated.ID, nil, nil)
	return token, nil
}

// RunConfirmPasswordReset consumes a reset token and stores newPassword.
func RunConfirmPasswordReset(ctx context.Context, token, newPassword string, deps PasswordResetDeps) error {
	deps.defaults()
	if deps.Store == nil || deps.ParseReset == nil || !deps.Passwords.ready() {
		return deps.Errors.EngineNotReady
	}

	claims, err := deps.ParseReset(strings.TrimSpace(token))
	if err != nil {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		return deps.Errors.TokenInvalid
	}

	acc, err := deps.Store.FindByID(ctx, claims.ID)
	if errors.Is(err, account.ErrNotFound) {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		return deps.Errors.TokenInvalid
	}
	if err != nil {
		return deps.unavailable("reset lookup failed", err)
	}

	issuedAt := time.Time{}
	if claims.IssuedAt != nil {
		issuedAt = claims.IssuedAt.Time
	}
	if resetConsumed(&acc, issuedAt) {
		return resetReplay(ctx, acc.ID, deps)
	}

	digest, err := deps.Passwords.Hash(newPassword)
	if errors.Is(err, deps.Errors.PasswordPolicy) {
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		return deps.Errors.PasswordPolicy
	}
	if err != nil {
		return deps.unavailable("password hash failed", err)
	}

	now := deps.Now()
	_, err = deps.Store.Update(ctx, acc.ID, func(fresh *account.Account) ([]account.Revocation, error) {
		if resetConsumed(fresh, issuedAt) {
			return nil, deps.Errors.TokenReplayed
		}
		fresh.PasswordHash = digest
		fresh.ResetTokenUsed = true
		fresh.PasswordChangedAt = now
		fresh.FailedAttempts = 0
		return nil, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, deps.Errors.TokenReplayed):
		return resetReplay(ctx, acc.ID, deps)
	case errors.Is(err, account.ErrNotFound):
		deps.MetricInc(deps.Metrics.PasswordResetConfirmFailure)
		return deps.Errors.TokenInvalid
	default:
		return deps.unavailable("reset state write failed", err)
	}

	deps.MetricInc(deps.Metrics.PasswordResetConfirmSuccess)
	deps.EmitAudit(ctx, deps.Events.PasswordResetConfirm, true, acc.ID, nil, nil)
	return nil
}

// resetConsumed reports whether a reset token issued at issuedAt can no
// longer be used against acc. Token iat has second precision, so a token
// issued in the same second as the last password change counts as
// consumed; a fresh request in that second must wait for the next one.
func resetConsumed(acc *account.Account, issuedAt time.Time) bool {
	if acc.ResetTokenUsed {
		return true
	}
	if acc.PasswordChangedAt.IsZero() {
		return false
	}
	return !issuedAt.After(acc.PasswordChangedAt.Truncate(time.Second))
}

func resetReplay(ctx context.Context, id string, deps PasswordResetDeps) error {
	deps.MetricInc(deps.Metrics.PasswordResetReplay)
	deps.EmitAudit(ctx, deps.Events.PasswordResetReplay, false, id, deps.Errors.TokenReplayed, nil)
	return deps.Errors.TokenReplayed
}
