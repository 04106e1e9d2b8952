package accountcore

import (
	"context"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/jwt"
)

// Account is the persisted user record returned by admin operations.
type Account = account.Account

// Role is the authorization level of an account.
type Role = account.Role

const (
	RoleAdmin = account.RoleAdmin
	RoleGuest = account.RoleGuest
)

// SessionClaims are the verified claims of a session token.
type SessionClaims = jwt.SessionClaims

// Notifier delivers secrets out of band. Delivery is fire-and-forget: the
// Engine logs failures and never aborts a committed flow because of them.
type Notifier interface {
	SendTwoFactorCode(ctx context.Context, email, code string) error
	SendPasswordResetLink(ctx context.Context, email, token string) error
}

// LoginResult is returned by Login and VerifyTwoFactor. When
// TwoFactorRequired is true, Token and Claims are empty and a code was sent.
type LoginResult struct {
	AccountID         string
	TwoFactorRequired bool
	Token             string
	Claims            *SessionClaims
}

// NewAccount carries provisioning fields for Bootstrap and CreateAccount.
// Role defaults to guest for CreateAccount and is forced to admin by Bootstrap.
type NewAccount struct {
	Email     string
	Password  string
	DNI       int64
	FirstName string
	LastName  string
	Role      Role
}

// AccountUpdate carries optional changes. Nil fields are left unchanged.
// Security fields (password, lockout, 2FA) are not editable here.
type AccountUpdate struct {
	Email     *string
	DNI       *int64
	FirstName *string
	LastName  *string
	Role      *Role
}

// UpdateResult reports an applied AccountUpdate.
type UpdateResult struct {
	Account Account
	// RequiresReauth is set when the caller changed its own role. The
	// presented session token has been revoked.
	RequiresReauth bool
}

// ChangePasswordRequest carries the three plaintexts of a password change.
type ChangePasswordRequest struct {
	Current string
	New     string
	Confirm string
}
