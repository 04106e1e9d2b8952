package accountcore

import (
	"context"

	"github.com/MrEthical07/accountcore/internal/flows"
)

// Bootstrap creates the superuser with Account.SuperuserID and the admin
// role. It only succeeds on an empty store; afterwards it returns [ErrForbidden].
func (e *Engine) Bootstrap(ctx context.Context, req NewAccount) (Account, error) {
	if e == nil {
		return Account{}, ErrEngineNotReady
	}
	return flows.RunBootstrap(ctx, toAccountInput(req), e.flows.Account)
}

// CreateAccount provisions an account. The caller must be an admin.
func (e *Engine) CreateAccount(ctx context.Context, sessionToken string, req NewAccount) (Account, error) {
	if e == nil {
		return Account{}, ErrEngineNotReady
	}
	return flows.RunCreateAccount(ctx, sessionToken, toAccountInput(req), e.flows.Account)
}

// GetAccount returns one account. The caller must be an admin.
func (e *Engine) GetAccount(ctx context.Context, sessionToken, id string) (Account, error) {
	if e == nil {
		return Account{}, ErrEngineNotReady
	}
	return flows.RunGetAccount(ctx, sessionToken, id, e.flows.Account)
}

// UpdateAccount applies upd. The caller must be an admin and the superuser
// cannot be updated. Changing one's own role revokes sessionToken.
func (e *Engine) UpdateAccount(ctx context.Context, sessionToken, id string, upd AccountUpdate) (*UpdateResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	res, err := flows.RunUpdateAccount(ctx, sessionToken, id, flows.AccountPatch{
		Email:     upd.Email,
		DNI:       upd.DNI,
		FirstName: upd.FirstName,
		LastName:  upd.LastName,
		Role:      upd.Role,
	}, e.flows.Account)
	if err != nil {
		return nil, err
	}
	return &UpdateResult{Account: res.Account, RequiresReauth: res.RequiresReauth}, nil
}

// DeleteAccount removes an account. The caller must be an admin and the
// superuser cannot be deleted. Deleting oneself revokes sessionToken.
func (e *Engine) DeleteAccount(ctx context.Context, sessionToken, id string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunDeleteAccount(ctx, sessionToken, id, e.flows.Account)
}

// UnlockAccount clears the lockout state of an account. It is an operator
// action and is not token-authenticated.
func (e *Engine) UnlockAccount(ctx context.Context, id string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunUnlockAccount(ctx, id, e.flows.Account)
}

// SetTwoFactor enables or disables 2FA for the caller's own account.
func (e *Engine) SetTwoFactor(ctx context.Context, sessionToken string, enabled bool) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunSetTwoFactor(ctx, sessionToken, enabled, e.flows.Account)
}

func toAccountInput(req NewAccount) flows.AccountInput {
	return flows.AccountInput{
		Email:     req.Email,
		Password:  req.Password,
		DNI:       req.DNI,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Role:      req.Role,
	}
}
