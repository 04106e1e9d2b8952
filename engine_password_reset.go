package accountcore

import (
	"context"

	"github.com/MrEthical07/accountcore/internal/flows"
)

// RequestPasswordReset issues a reset token for the account behind email and
// hands it to the Notifier. Only the latest token of an account can be
// consumed, and only once.
//
// Unknown emails return [ErrNotFound]. The token is returned so callers
// without a Notifier can deliver it themselves.
func (e *Engine) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	if e == nil {
		return "", ErrEngineNotReady
	}
	return flows.RunRequestPasswordReset(ctx, email, e.flows.PasswordReset)
}

// ConfirmPasswordReset consumes token and sets newPassword.
//
// Bad, expired or foreign tokens return [ErrTokenInvalid]; a consumed token
// returns [ErrTokenReplayed].
func (e *Engine) ConfirmPasswordReset(ctx context.Context, token, newPassword string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunConfirmPasswordReset(ctx, token, newPassword, e.flows.PasswordReset)
}
