package accountcore

import "errors"

var (
	// ErrValidation is returned when request fields are missing or malformed.
	ErrValidation = errors.New("invalid request")
	// ErrInvalidCredentials is the single message for unknown emails and wrong passwords.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned while a lockout is active. It carries no remaining-time detail.
	ErrAccountLocked = errors.New("account locked")
	// ErrTokenInvalid is returned for bad signatures, wrong algorithms, expired or revoked tokens.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTokenReplayed is returned when a consumed reset token is presented again.
	ErrTokenReplayed = errors.New("token already used")
	// ErrConflict is returned when a unique field (email, dni) is already taken.
	ErrConflict = errors.New("account already exists")
	// ErrNotFound is returned when the addressed account does not exist.
	ErrNotFound = errors.New("account not found")
	// ErrForbidden is returned for non-admin callers and for operations on the superuser.
	ErrForbidden = errors.New("forbidden")
	// ErrUnavailable hides store, limiter and crypto failures. Details are logged.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrPasswordReuse is returned when the new password equals the current one.
	ErrPasswordReuse = errors.New("new password must be different from current password")
	// ErrPasswordMismatch is returned when the new password and its confirmation differ.
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	// ErrPasswordPolicy is returned when a new password is outside the configured length bounds.
	ErrPasswordPolicy = errors.New("password policy violation")
	// ErrTwoFactorNotEnabled is returned for unknown emails and for accounts without 2FA.
	ErrTwoFactorNotEnabled = errors.New("two-factor authentication not enabled")
	// ErrTwoFactorInvalid is returned for wrong, expired or already used codes.
	ErrTwoFactorInvalid = errors.New("invalid two-factor code")
	// ErrRateLimited is returned when a reset or 2FA limiter rejects the request.
	ErrRateLimited = errors.New("rate limited")
	// ErrEngineNotReady is returned when a nil or partially built Engine is used.
	ErrEngineNotReady = errors.New("engine not initialized")
)
