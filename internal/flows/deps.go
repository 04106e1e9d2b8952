package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/internal/lockout"
	"github.com/MrEthical07/accountcore/jwt"
)

// Deps groups flow dependency sets. Root engine builds this once and delegates
// request methods to the matching flow implementation.
type Deps struct {
	Validate       ValidateDeps
	Login          LoginDeps
	TwoFactor      TwoFactorDeps
	PasswordReset  PasswordResetDeps
	ChangePassword ChangePasswordDeps
	Account        AccountDeps
}

// Errors carries the host sentinel errors flows return.
type Errors struct {
	EngineNotReady      error
	Validation          error
	InvalidCredentials  error
	AccountLocked       error
	TokenInvalid        error
	TokenReplayed       error
	Conflict            error
	NotFound            error
	Forbidden           error
	Unavailable         error
	PasswordReuse       error
	PasswordMismatch    error
	PasswordPolicy      error
	TwoFactorNotEnabled error
	TwoFactorInvalid    error
	RateLimited         error
}

// Metrics carries the host metric IDs flows increment.
type Metrics struct {
	LoginSuccess                int
	LoginFailure                int
	LoginLocked                 int
	LockoutSoft                 int
	LockoutEscalated            int
	PasswordUpgraded            int
	TwoFactorRequired           int
	TwoFactorSuccess            int
	TwoFactorFailure            int
	SessionIssued               int
	SessionRevoked              int
	ValidateSuccess             int
	ValidateFailure             int
	PasswordResetRequest        int
	PasswordResetConfirmSuccess int
	PasswordResetConfirmFailure int
	PasswordResetReplay         int
	PasswordChangeSuccess       int
	PasswordChangeInvalidOld    int
	PasswordChangeReuseRejected int
	PasswordChangeMismatch      int
	RateLimitHit                int
	AccountCreated              int
	AccountUpdated              int
	AccountDeleted              int
	AccountUnlocked             int
}

// Events carries the audit event names flows emit.
type Events struct {
	LoginSuccess         string
	LoginFailure         string
	LoginLocked          string
	LockoutEscalated     string
	TwoFactorChallenge   string
	TwoFactorSuccess     string
	TwoFactorFailure     string
	Logout               string
	PasswordResetRequest string
	PasswordResetConfirm string
	PasswordResetReplay  string
	PasswordChange       string
	Bootstrap            string
	AccountCreate        string
	AccountUpdate        string
	AccountDelete        string
	AccountUnlock        string
	TwoFactorToggle      string
}

// Hooks are the clock and observability collaborators shared by every flow.
type Hooks struct {
	Now       func() time.Time
	MetricInc func(int)
	EmitAudit func(ctx context.Context, event string, success bool, accountID string, err error, metadata func() map[string]string)
	LogError  func(msg string, err error)
	Warn      func(msg string, err error)

	Metrics Metrics
	Events  Events
	Errors  Errors
}

func (h *Hooks) defaults() {
	if h.Now == nil {
		h.Now = time.Now
	}
	if h.MetricInc == nil {
		h.MetricInc = func(int) {}
	}
	if h.EmitAudit == nil {
		h.EmitAudit = func(context.Context, string, bool, string, error, func() map[string]string) {}
	}
	if h.LogError == nil {
		h.LogError = func(string, error) {}
	}
	if h.Warn == nil {
		h.Warn = func(string, error) {}
	}
}

// unavailable logs an infrastructure failure and hides it behind Errors.Unavailable.
func (h Hooks) unavailable(msg string, err error) error {
	h.LogError(msg, err)
	return h.Errors.Unavailable
}

// Passwords wraps the password hasher.
type Passwords struct {
	// Hash must return an error matching Errors.PasswordPolicy for
	// plaintexts outside the configured bounds.
	Hash         func(plaintext string) (string, error)
	Verify       func(plaintext, digest string) bool
	NeedsUpgrade func(digest string) bool
}

func (p Passwords) ready() bool {
	return p.Hash != nil && p.Verify != nil
}

// Sessions wraps the session token codec.
type Sessions struct {
	Issue func(acc account.Account, ttl time.Duration) (string, *jwt.SessionClaims, error)
	Parse func(token string) (*jwt.SessionClaims, error)
	// Revocation builds the registry entry for token, carrying its expiry.
	Revocation func(token string) account.Revocation
}

func lockState(acc *account.Account) lockout.State {
	return lockout.State{FailedAttempts: acc.FailedAttempts, LockUntil: acc.LockUntil}
}

func applyLockState(acc *account.Account, s lockout.State) {
	acc.FailedAttempts = s.FailedAttempts
	acc.LockUntil = s.LockUntil
}
