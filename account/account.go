package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// Role is the authorization level of an account.
type Role string

const (
	// RoleAdmin may manage other accounts.
	RoleAdmin Role = "admin"
	// RoleGuest is the default role for provisioned accounts.
	RoleGuest Role = "guest"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleGuest
}

var (
	// ErrNotFound is returned by stores when no account matches the lookup.
	ErrNotFound = errors.New("account not found")
	// ErrConflict is returned by stores when a unique field (id, email, dni) is already taken.
	ErrConflict = errors.New("account already in use")
)

// Account is the persisted user record. Only the security fields are
// mutated by the credential flows; the rest is provisioning data.
//
// Zero values mean "unset": LockUntil, TwoFactorExpires and
// PasswordChangedAt are null when zero, and TwoFactorCode is null when 0.
type Account struct {
	ID        string
	Email     string
	DNI       int64
	FirstName string
	LastName  string

	PasswordHash string
	Role         Role

	FailedAttempts int
	LockUntil      time.Time

	TwoFactorEnabled bool
	TwoFactorCode    int
	TwoFactorExpires time.Time

	ResetTokenUsed    bool
	PasswordChangedAt time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ClearTwoFactorChallenge drops the pending code and its expiry together.
func (a *Account) ClearTwoFactorChallenge() {
	a.TwoFactorCode = 0
	a.TwoFactorExpires = time.Time{}
}

// Revocation is one entry for the revoked-token registry. ExpiresAt is the
// token's own expiry; stores may drop the entry after it passes.
type Revocation struct {
	Token     string
	ExpiresAt time.Time
}

// Mutation edits acc in place inside a store transaction. Revocations it
// returns are written in the same transaction as the account fields. A
// non-nil error aborts the transaction and is returned unchanged by Update.
type Mutation func(acc *Account) ([]Revocation, error)

// Registry is the append-only set of revoked bearer tokens.
type Registry interface {
	Revoke(ctx context.Context, revocations ...Revocation) error
	IsRevoked(ctx context.Context, token string) (bool, error)
}

// Store is the identity store collaborator. Implementations enforce email,
// dni and id uniqueness and return [ErrConflict] when violated.
type Store interface {
	Registry

	FindByEmail(ctx context.Context, email string) (Account, error)
	FindByID(ctx context.Context, id string) (Account, error)
	Create(ctx context.Context, acc Account) (Account, error)
	Update(ctx context.Context, id string, mutate Mutation) (Account, error)
	Count(ctx context.Context) (int64, error)
	Destroy(ctx context.Context, id string, revocations ...Revocation) error
}

// TokenDigest returns the key stores use to index a revoked token.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
