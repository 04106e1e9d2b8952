package flows

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/internal/lockout"
	"github.com/MrEthical07/accountcore/jwt"
)

// LoginResult is the outcome of a successful credential check.
type LoginResult struct {
	AccountID         string
	TwoFactorRequired bool
	Token             string
	Claims            *jwt.SessionClaims
}

// LoginDeps defines dependencies for the login state machine.
type LoginDeps struct {
	Hooks

	Store     account.Store
	Passwords Passwords
	Sessions  Sessions
	Lockout   lockout.Policy

	UpgradeHashes    bool
	TwoFactorCodeTTL time.Duration
	NewTwoFactorCode func() (int, error)
	SendTwoFactor    func(ctx context.Context, email string, code int)

	// BearerToken returns the session token attached to ctx, if any. It is
	// revoked when this attempt escalates the lockout.
	BearerToken func(context.Context) string
}

// RunLogin checks email and password and either issues a session token or
// starts a 2FA challenge.
func RunLogin(ctx context.Context, email, password string, deps LoginDeps) (*LoginResult, error) {
	deps.defaults()
	if deps.Store == nil || !deps.Passwords.ready() || deps.Sessions.Issue == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.BearerToken == nil {
		deps.BearerToken = func(context.Context) string { return "" }
	}

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		deps.Passwords.Verify(password, "")
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	}

	acc, err := deps.Store.FindByEmail(ctx, email)
	if errors.Is(err, account.ErrNotFound) {
		// Unknown emails still pay for one verification.
		deps.Passwords.Verify(password, "")
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, "", deps.Errors.InvalidCredentials, nil)
		return nil, deps.Errors.InvalidCredentials
	}
	if err != nil {
		return nil, deps.unavailable("login lookup failed", err)
	}

	if deps.Lockout.Locked(lockState(&acc), deps.Now()) {
		deps.MetricInc(deps.Metrics.LoginLocked)
		deps.EmitAudit(ctx, deps.Events.LoginLocked, false, acc.ID, deps.Errors.AccountLocked, nil)
		return nil, deps.Errors.AccountLocked
	}

	if !deps.Passwords.Verify(password, acc.PasswordHash) {
		return nil, recordLoginFailure(ctx, acc.ID, deps)
	}

	upgraded := ""
	if deps.UpgradeHashes && deps.Passwords.NeedsUpgrade != nil && deps.Passwords.NeedsUpgrade(acc.PasswordHash) {
		upgraded, err = deps.Passwords.Hash(password)
		if err != nil {
			deps.Warn("password hash upgrade skipped", err)
			upgraded = ""
		}
	}

	// The challenge follows the fresh record so that 2FA toggled after the
	// lookup is honoured and only a code issued by this attempt is sent.
	var (
		code    int
		codeErr error
	)
	verifiedHash := acc.PasswordHash
	now := deps.Now()
	updated, err := deps.Store.Update(ctx, acc.ID, func(fresh *account.Account) ([]account.Revocation, error) {
		code = 0
		if deps.Lockout.Locked(lockState(fresh), now) {
			return nil, deps.Errors.AccountLocked
		}
		if fresh.PasswordHash != verifiedHash {
			return nil, deps.Errors.InvalidCredentials
		}

		applyLockState(fresh, deps.Lockout.OnSuccess(lockState(fresh)))
		if upgraded != "" {
			fresh.PasswordHash = upgraded
		}
		if fresh.TwoFactorEnabled {
			if deps.NewTwoFactorCode == nil {
				return nil, deps.Errors.EngineNotReady
			}
			issued, err := deps.NewTwoFactorCode()
			if err != nil {
				codeErr = err
				return nil, err
			}
			code = issued
			fresh.TwoFactorCode = code
			fresh.TwoFactorExpires = now.Add(deps.TwoFactorCodeTTL)
		}
		return nil, nil
	})
	switch {
	case err == nil:
	case codeErr != nil:
		return nil, deps.unavailable("two-factor code generation failed", codeErr)
	case errors.Is(err, deps.Errors.EngineNotReady):
		return nil, err
	case errors.Is(err, deps.Errors.AccountLocked):
		deps.MetricInc(deps.Metrics.LoginLocked)
		return nil, err
	case errors.Is(err, deps.Errors.InvalidCredentials), errors.Is(err, account.ErrNotFound):
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.InvalidCredentials
	default:
		return nil, deps.unavailable("login state write failed", err)
	}

	if upgraded != "" && updated.PasswordHash == upgraded {
		deps.MetricInc(deps.Metrics.PasswordUpgraded)
	}

	if code != 0 {
		if deps.SendTwoFactor != nil {
			deps.SendTwoFactor(ctx, updated.Email, code)
		}
		deps.MetricInc(deps.Metrics.TwoFactorRequired)
		deps.EmitAudit(ctx, deps.Events.TwoFactorChallenge, true, updated.ID, nil, nil)
		return &LoginResult{AccountID: updated.ID, TwoFactorRequired: true}, nil
	}

	token, claims, err := deps.Sessions.Issue(updated, 0)
	if err != nil {
		return nil, deps.unavailable("session token issue failed", err)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.MetricInc(deps.Metrics.SessionIssued)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, updated.ID, nil, nil)
	return &LoginResult{AccountID: updated.ID, Token: token, Claims: claims}, nil
}

// recordLoginFailure persists one failed attempt for id and, when the
// failure escalates, revokes the bearer token attached to ctx in the same
// write.
func recordLoginFailure(ctx context.Context, id string, deps LoginDeps) error {
	bearer := strings.TrimSpace(deps.BearerToken(ctx))
	_, err := persistFailure(ctx, id, bearer, deps.Hooks, deps.Store, deps.Lockout, deps.Sessions)
	switch {
	case err == nil:
	case errors.Is(err, deps.Errors.AccountLocked):
		deps.MetricInc(deps.Metrics.LoginLocked)
		return err
	case errors.Is(err, account.ErrNotFound):
		deps.MetricInc(deps.Metrics.LoginFailure)
		return deps.Errors.InvalidCredentials
	default:
		return deps.unavailable("login state write failed", err)
	}

	deps.MetricInc(deps.Metrics.LoginFailure)
	deps.EmitAudit(ctx, deps.Events.LoginFailure, false, id, deps.Errors.InvalidCredentials, nil)
	return deps.Errors.InvalidCredentials
}

// persistFailure applies one lockout failure transition to the fresh record
// of id. bearer, when non-empty, is revoked atomically on escalation.
func persistFailure(
	ctx context.Context,
	id string,
	bearer string,
	hooks Hooks,
	store account.Store,
	policy lockout.Policy,
	sessions Sessions,
) (lockout.Outcome, error) {
	now := hooks.Now()
	var outcome lockout.Outcome

	_, err := store.Update(ctx, id, func(fresh *account.Account) ([]account.Revocation, error) {
		if policy.Locked(lockState(fresh), now) {
			return nil, hooks.Errors.AccountLocked
		}

		var next lockout.State
		next, outcome = policy.OnFailure(lockState(fresh), now)
		applyLockState(fresh, next)

		if outcome.Escalated && bearer != "" && sessions.Revocation != nil {
			return []account.Revocation{sessions.Revocation(bearer)}, nil
		}
		return nil, nil
	})
	if err != nil {
		return lockout.Outcome{}, err
	}

	switch {
	case outcome.Escalated:
		hooks.MetricInc(hooks.Metrics.LockoutEscalated)
		if bearer != "" {
			hooks.MetricInc(hooks.Metrics.SessionRevoked)
		}
		hooks.EmitAudit(ctx, hooks.Events.LockoutEscalated, false, id, hooks.Errors.AccountLocked, nil)
	case outcome.Locked:
		hooks.MetricInc(hooks.Metrics.LockoutSoft)
	}
	return outcome, nil
}
