package flows

import (
	"context"
	"errors"
	"strings"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/internal/lockout"
	"github.com/MrEthical07/accountcore/jwt"
)

// AccountInput carries provisioning fields for a new account.
type AccountInput struct {
	Email     string
	Password  string
	DNI       int64
	FirstName string
	LastName  string
	Role      account.Role
}

// AccountPatch carries optional provisioning changes. Nil fields are left as is.
type AccountPatch struct {
	Email     *string
	DNI       *int64
	FirstName *string
	LastName  *string
	Role      *account.Role
}

// AccountPatchResult reports an applied patch.
type AccountPatchResult struct {
	Account account.Account
	// RequiresReauth is set when the caller changed its own role and its
	// session token was revoked.
	RequiresReauth bool
}

// AccountDeps defines dependencies for account provisioning and administration.
type AccountDeps struct {
	Hooks

	Validate    ValidateDeps
	Store       account.Store
	Passwords   Passwords
	Sessions    Sessions
	Lockout     lockout.Policy
	SuperuserID string
}

// RunBootstrap creates the superuser when the store is empty.
func RunBootstrap(ctx context.Context, in AccountInput, deps AccountDeps) (account.Account, error) {
	deps.defaults()
	if deps.Store == nil || !deps.Passwords.ready() || deps.SuperuserID == "" {
		return account.Account{}, deps.Errors.EngineNotReady
	}

	n, err := deps.Store.Count(ctx)
	if err != nil {
		return account.Account{}, deps.unavailable("account count failed", err)
	}
	if n > 0 {
		return account.Account{}, deps.Errors.Forbidden
	}

	in.Role = account.RoleAdmin
	acc, err := createAccount(ctx, deps.SuperuserID, in, deps)
	if err != nil {
		return account.Account{}, err
	}

	deps.EmitAudit(ctx, deps.Events.Bootstrap, true, acc.ID, nil, nil)
	return acc, nil
}

// RunCreateAccount provisions an account on behalf of an administrator.
func RunCreateAccount(ctx context.Context, sessionToken string, in AccountInput, deps AccountDeps) (account.Account, error) {
	deps.defaults()
	if deps.Store == nil || !deps.Passwords.ready() {
		return account.Account{}, deps.Errors.EngineNotReady
	}

	caller, err := requireAdmin(ctx, sessionToken, deps)
	if err != nil {
		return account.Account{}, err
	}

	if in.Role == "" {
		in.Role = account.RoleGuest
	}
	acc, err := createAccount(ctx, "", in, deps)
	if err != nil {
		return account.Account{}, err
	}

	deps.MetricInc(deps.Metrics.AccountCreated)
	deps.EmitAudit(ctx, deps.Events.AccountCreate, true, acc.ID, nil, actorMeta(caller))
	return acc, nil
}

// RunGetAccount returns the account with id to an administrator.
func RunGetAccount(ctx context.Context, sessionToken, id string, deps AccountDeps) (account.Account, error) {
	deps.defaults()
	if deps.Store == nil {
		return account.Account{}, deps.Errors.EngineNotReady
	}

	if _, err := requireAdmin(ctx, sessionToken, deps); err != nil {
		return account.Account{}, err
	}

	acc, err := deps.Store.FindByID(ctx, id)
	if errors.Is(err, account.ErrNotFound) {
		return account.Account{}, deps.Errors.NotFound
	}
	if err != nil {
		return account.Account{}, deps.unavailable("account lookup failed", err)
	}
	return acc, nil
}

// RunUpdateAccount applies patch to the account with id. The superuser is
// immutable. A role change on the caller's own account revokes the caller's
// token in the same write.
func RunUpdateAccount(ctx context.Context, sessionToken, id string, patch AccountPatch, deps AccountDeps) (*AccountPatchResult, error) {
	deps.defaults()
	if deps.Store == nil || deps.Sessions.Revocation == nil {
		return nil, deps.Errors.EngineNotReady
	}

	caller, err := requireAdmin(ctx, sessionToken, deps)
	if err != nil {
		return nil, err
	}
	if id == deps.SuperuserID {
		return nil, deps.Errors.Forbidden
	}
	if err := validatePatch(patch, deps.Errors); err != nil {
		return nil, err
	}

	token := strings.TrimSpace(sessionToken)
	reauth := false
	updated, err := deps.Store.Update(ctx, id, func(fresh *account.Account) ([]account.Revocation, error) {
		reauth = false
		var revocations []account.Revocation
		if patch.Role != nil && *patch.Role != fresh.Role && fresh.ID == caller.ID {
			revocations = append(revocations, deps.Sessions.Revocation(token))
			reauth = true
		}
		applyPatch(fresh, patch)
		return revocations, nil
	})
	if err != nil {
		return nil, mapStoreWrite(err, deps.Hooks, "account update failed")
	}

	if reauth {
		deps.MetricInc(deps.Metrics.SessionRevoked)
	}
	deps.MetricInc(deps.Metrics.AccountUpdated)
	deps.EmitAudit(ctx, deps.Events.AccountUpdate, true, updated.ID, nil, actorMeta(caller))
	return &AccountPatchResult{Account: updated, RequiresReauth: reauth}, nil
}

// RunDeleteAccount removes the account with id. Deleting the caller's own
// account revokes the caller's token in the same write.
func RunDeleteAccount(ctx context.Context, sessionToken, id string, deps AccountDeps) error {
	deps.defaults()
	if deps.Store == nil || deps.Sessions.Revocation == nil {
		return deps.Errors.EngineNotReady
	}

	caller, err := requireAdmin(ctx, sessionToken, deps)
	if err != nil {
		return err
	}
	if id == deps.SuperuserID {
		return deps.Errors.Forbidden
	}

	var revocations []account.Revocation
	if id == caller.ID {
		revocations = append(revocations, deps.Sessions.Revocation(strings.TrimSpace(sessionToken)))
	}
	if err := deps.Store.Destroy(ctx, id, revocations...); err != nil {
		return mapStoreWrite(err, deps.Hooks, "account delete failed")
	}

	deps.MetricInc(deps.Metrics.AccountDeleted)
	deps.EmitAudit(ctx, deps.Events.AccountDelete, true, id, nil, actorMeta(caller))
	return nil
}

// RunUnlockAccount clears the lockout state of the account with id. It is an
// operator action and is not token-authenticated.
func RunUnlockAccount(ctx context.Context, id string, deps AccountDeps) error {
	deps.defaults()
	if deps.Store == nil {
		return deps.Errors.EngineNotReady
	}

	_, err := deps.Store.Update(ctx, id, func(fresh *account.Account) ([]account.Revocation, error) {
		applyLockState(fresh, deps.Lockout.OnSuccess(lockState(fresh)))
		return nil, nil
	})
	if err != nil {
		return mapStoreWrite(err, deps.Hooks, "account unlock failed")
	}

	deps.MetricInc(deps.Metrics.AccountUnlocked)
	deps.EmitAudit(ctx, deps.Events.AccountUnlock, true, id, nil, nil)
	return nil
}

// RunSetTwoFactor enables or disables 2FA for the account behind
// sessionToken. Disabling drops any pending challenge.
func RunSetTwoFactor(ctx context.Context, sessionToken string, enabled bool, deps AccountDeps) error {
	deps.defaults()
	if deps.Store == nil {
		return deps.Errors.EngineNotReady
	}

	claims, err := RunValidate(ctx, sessionToken, deps.Validate)
	if err != nil {
		return err
	}

	_, err = deps.Store.Update(ctx, claims.ID, func(fresh *account.Account) ([]account.Revocation, error) {
		fresh.TwoFactorEnabled = enabled
		if !enabled {
			fresh.ClearTwoFactorChallenge()
		}
		return nil, nil
	})
	if errors.Is(err, account.ErrNotFound) {
		return deps.Errors.TokenInvalid
	}
	if err != nil {
		return deps.unavailable("two-factor toggle failed", err)
	}

	deps.EmitAudit(ctx, deps.Events.TwoFactorToggle, true, claims.ID, nil, func() map[string]string {
		if enabled {
			return map[string]string{"enabled": "true"}
		}
		return map[string]string{"enabled": "false"}
	})
	return nil
}

// requireAdmin authenticates sessionToken and checks the caller's stored
// role, so a demoted administrator loses access before its token expires.
func requireAdmin(ctx context.Context, sessionToken string, deps AccountDeps) (*jwt.SessionClaims, error) {
	claims, err := RunValidate(ctx, sessionToken, deps.Validate)
	if err != nil {
		return nil, err
	}

	caller, err := deps.Store.FindByID(ctx, claims.ID)
	if errors.Is(err, account.ErrNotFound) {
		return nil, deps.Errors.TokenInvalid
	}
	if err != nil {
		return nil, deps.unavailable("caller lookup failed", err)
	}
	if caller.Role != account.RoleAdmin {
		return nil, deps.Errors.Forbidden
	}
	return claims, nil
}

func createAccount(ctx context.Context, id string, in AccountInput, deps AccountDeps) (account.Account, error) {
	in.Email = strings.TrimSpace(in.Email)
	if in.Email == "" || !strings.Contains(in.Email, "@") || !in.Role.Valid() || in.DNI < 0 {
		return account.Account{}, deps.Errors.Validation
	}

	digest, err := deps.Passwords.Hash(in.Password)
	if errors.Is(err, deps.Errors.PasswordPolicy) {
		return account.Account{}, deps.Errors.PasswordPolicy
	}
	if err != nil {
		return account.Account{}, deps.unavailable("password hash failed", err)
	}

	acc, err := deps.Store.Create(ctx, account.Account{
		ID:           id,
		Email:        in.Email,
		DNI:          in.DNI,
		FirstName:    strings.TrimSpace(in.FirstName),
		LastName:     strings.TrimSpace(in.LastName),
		PasswordHash: digest,
		Role:         in.Role,
	})
	if err != nil {
		return account.Account{}, mapStoreWrite(err, deps.Hooks, "account create failed")
	}
	return acc, nil
}

func validatePatch(patch AccountPatch, errs Errors) error {
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email == "" || !strings.Contains(email, "@") {
			return errs.Validation
		}
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return errs.Validation
	}
	if patch.DNI != nil && *patch.DNI < 0 {
		return errs.Validation
	}
	return nil
}

func applyPatch(acc *account.Account, patch AccountPatch) {
	if patch.Email != nil {
		acc.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.DNI != nil {
		acc.DNI = *patch.DNI
	}
	if patch.FirstName != nil {
		acc.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		acc.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Role != nil {
		acc.Role = *patch.Role
	}
}

func mapStoreWrite(err error, hooks Hooks, msg string) error {
	switch {
	case errors.Is(err, account.ErrNotFound):
		return hooks.Errors.NotFound
	case errors.Is(err, account.ErrConflict):
		return hooks.Errors.Conflict
	default:
		return hooks.unavailable(msg, err)
	}
}

func actorMeta(caller *jwt.SessionClaims) func() map[string]string {
	return func() map[string]string {
		return map[string]string{"actor_id": caller.ID}
	}
}
