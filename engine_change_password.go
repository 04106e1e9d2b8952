package accountcore

import (
	"context"

	"github.com/MrEthical07/accountcore/internal/flows"
)

// ChangePassword replaces the password of the account behind sessionToken.
//
// A wrong Current counts as a failed credential check and may lock the
// account. A correct Current resets the failure counter even when the change
// is then rejected with [ErrPasswordReuse] or [ErrPasswordMismatch]. On
// success sessionToken is revoked in the same write; the caller must log in
// again.
func (e *Engine) ChangePassword(ctx context.Context, sessionToken string, req ChangePasswordRequest) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunChangePassword(ctx, sessionToken, flows.ChangePasswordRequest{
		Current: req.Current,
		New:     req.New,
		Confirm: req.Confirm,
	}, e.flows.ChangePassword)
}
