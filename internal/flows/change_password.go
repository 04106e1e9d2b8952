package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/internal/lockout"
)

// ChangePasswordRequest carries the three plaintexts of a password change.
type ChangePasswordRequest struct {
	Current string
	New     string
	Confirm string
}

// ChangePasswordDeps defines dependencies for the authenticated password change.
type ChangePasswordDeps struct {
	Hooks

	Validate  ValidateDeps
	Store     account.Store
	Passwords Passwords
	Sessions  Sessions
	Lockout   lockout.Policy
}

// RunChangePassword replaces the password of the account behind
// sessionToken. On success the presented token is revoked in the same write.
func RunChangePassword(ctx context.Context, sessionToken string, req ChangePasswordRequest, deps ChangePasswordDeps) error {
	deps.defaults()
	if deps.Store == nil || !deps.Passwords.ready() || deps.Sessions.Revocation == nil {
		return deps.Errors.EngineNotReady
	}

	claims, err := RunValidate(ctx, sessionToken, deps.Validate)
	if err != nil {
		return err
	}
	sessionToken = strings.TrimSpace(sessionToken)

	acc, err := deps.Store.FindByID(ctx, claims.ID)
	if errors.Is(err, account.ErrNotFound) {
		return deps.Errors.TokenInvalid
	}
	if err != nil {
		return deps.unavailable("change password lookup failed", err)
	}

	if deps.Lockout.Locked(lockState(&acc), deps.Now()) {
		deps.MetricInc(deps.Metrics.LoginLocked)
		return deps.Errors.AccountLocked
	}

	if !deps.Passwords.Verify(req.Current, acc.PasswordHash) {
		_, err := persistFailure(ctx, acc.ID, sessionToken, deps.Hooks, deps.Store, deps.Lockout, deps.Sessions)
		switch {
		case err == nil:
		case errors.Is(err, deps.Errors.AccountLocked):
			return err
		case errors.Is(err, account.ErrNotFound):
			return deps.Errors.TokenInvalid
		default:
			return deps.unavailable("change password state write failed", err)
		}
		deps.MetricInc(deps.Metrics.PasswordChangeInvalidOld)
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, acc.ID, deps.Errors.InvalidCredentials, nil)
		return deps.Errors.InvalidCredentials
	}

	// The current password checked out, so the counter resets even when the
	// new password is then rejected.
	var rejection error
	switch {
	case deps.Passwords.Verify(req.New, acc.PasswordHash):
		rejection = deps.Errors.PasswordReuse
	case req.New != req.Confirm:
		rejection = deps.Errors.PasswordMismatch
	}

	digest := ""
	if rejection == nil {
		digest, err = deps.Passwords.Hash(req.New)
		if errors.Is(err, deps.Errors.PasswordPolicy) {
			rejection = deps.Errors.PasswordPolicy
		} else if err != nil {
			return deps.unavailable("password hash failed", err)
		}
	}

	verifiedHash := acc.PasswordHash
	now := deps.Now()
	_, err = deps.Store.Update(ctx, acc.ID, func(fresh *account.Account) ([]account.Revocation, error) {
		if deps.Lockout.Locked(lockState(fresh), now) {
			return nil, deps.Errors.AccountLocked
		}
		if fresh.PasswordHash != verifiedHash {
			return nil, deps.Errors.InvalidCredentials
		}

		applyLockState(fresh, deps.Lockout.OnSuccess(lockState(fresh)))
		if digest == "" {
			return nil, nil
		}
		fresh.PasswordHash = digest
		fresh.PasswordChangedAt = now
		return []account.Revocation{deps.Sessions.Revocation(sessionToken)}, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, deps.Errors.AccountLocked), errors.Is(err, deps.Errors.InvalidCredentials):
		return err
	case errors.Is(err, account.ErrNotFound):
		return deps.Errors.TokenInvalid
	default:
		return deps.unavailable("change password state write failed", err)
	}

	if rejection != nil {
		switch {
		case errors.Is(rejection, deps.Errors.PasswordReuse):
			deps.MetricInc(deps.Metrics.PasswordChangeReuseRejected)
		case errors.Is(rejection, deps.Errors.PasswordMismatch):
			deps.MetricInc(deps.Metrics.PasswordChangeMismatch)
		}
		deps.EmitAudit(ctx, deps.Events.PasswordChange, false, acc.ID, rejection, nil)
		return rejection
	}

	deps.MetricInc(deps.Metrics.PasswordChangeSuccess)
	deps.MetricInc(deps.Metrics.SessionRevoked)
	deps.EmitAudit(ctx, deps.Events.PasswordChange, true, acc.ID, nil, nil)
	return nil
}
