package flows

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/internal/lockout"
	"github.com/MrEthical07/accountcore/jwt"
)

var (
	errValidation          = errors.New("validation")
	errInvalidCredentials  = errors.New("invalid credentials")
	errAccountLocked       = errors.New("locked")
	errTokenInvalid        = errors.New("token invalid")
	errTokenReplayed       = errors.New("token replayed")
	errConflict            = errors.New("conflict")
	errNotFound            = errors.New("not found")
	errForbidden           = errors.New("forbidden")
	errUnavailable         = errors.New("unavailable")
	errPasswordReuse       = errors.New("reuse")
	errPasswordMismatch    = errors.New("mismatch")
	errPasswordPolicy      = errors.New("policy")
	errTwoFactorNotEnabled = errors.New("2fa not enabled")
	errTwoFactorInvalid    = errors.New("2fa invalid")
	errRateLimited         = errors.New("rate limited")
	errNotReady            = errors.New("not ready")
)

func testErrors() Errors {
	return Errors{
		EngineNotReady:      errNotReady,
		Validation:          errValidation,
		InvalidCredentials:  errInvalidCredentials,
		AccountLocked:       errAccountLocked,
		TokenInvalid:        errTokenInvalid,
		TokenReplayed:       errTokenReplayed,
		Conflict:            errConflict,
		NotFound:            errNotFound,
		Forbidden:           errForbidden,
		Unavailable:         errUnavailable,
		PasswordReuse:       errPasswordReuse,
		PasswordMismatch:    errPasswordMismatch,
		PasswordPolicy:      errPasswordPolicy,
		TwoFactorNotEnabled: errTwoFactorNotEnabled,
		TwoFactorInvalid:    errTwoFactorInvalid,
		RateLimited:         errRateLimited,
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// memStore is an in-memory account.Store with the same atomicity contract
// as the real stores.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]account.Account
	revoked  map[string]time.Time
	seq      int
	failNext error
	updates  int
}

func newMemStore() *memStore {
	return &memStore{accounts: map[string]account.Account{}, revoked: map[string]time.Time{}}
}

func (s *memStore) fail() error {
	err := s.failNext
	s.failNext = nil
	return err
}

func (s *memStore) FindByEmail(_ context.Context, email string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return account.Account{}, err
	}
	for _, acc := range s.accounts {
		if strings.EqualFold(acc.Email, email) {
			return acc, nil
		}
	}
	return account.Account{}, account.ErrNotFound
}

func (s *memStore) FindByID(_ context.Context, id string) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return account.Account{}, err
	}
	acc, ok := s.accounts[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	return acc, nil
}

func (s *memStore) Create(_ context.Context, acc account.Account) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.ID == "" {
		s.seq++
		acc.ID = "acc-" + strconv.Itoa(s.seq)
	}
	if _, ok := s.accounts[acc.ID]; ok {
		return account.Account{}, account.ErrConflict
	}
	for _, other := range s.accounts {
		if strings.EqualFold(other.Email, acc.Email) || (acc.DNI != 0 && other.DNI == acc.DNI) {
			return account.Account{}, account.ErrConflict
		}
	}
	acc.Email = strings.ToLower(acc.Email)
	s.accounts[acc.ID] = acc
	return acc, nil
}

func (s *memStore) Update(_ context.Context, id string, mutate account.Mutation) (account.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return account.Account{}, err
	}
	acc, ok := s.accounts[id]
	if !ok {
		return account.Account{}, account.ErrNotFound
	}
	revocations, err := mutate(&acc)
	if err != nil {
		return account.Account{}, err
	}
	for _, other := range s.accounts {
		if other.ID != id && (strings.EqualFold(other.Email, acc.Email) || (acc.DNI != 0 && other.DNI == acc.DNI)) {
			return account.Account{}, account.ErrConflict
		}
	}
	s.accounts[id] = acc
	for _, r := range revocations {
		s.revoked[r.Token] = r.ExpiresAt
	}
	s.updates++
	return acc, nil
}

func (s *memStore) Count(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return 0, err
	}
	return int64(len(s.accounts)), nil
}

func (s *memStore) Destroy(_ context.Context, id string, revocations ...account.Revocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return account.ErrNotFound
	}
	delete(s.accounts, id)
	for _, r := range revocations {
		s.revoked[r.Token] = r.ExpiresAt
	}
	return nil
}

func (s *memStore) Revoke(_ context.Context, revocations ...account.Revocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return err
	}
	for _, r := range revocations {
		s.revoked[r.Token] = r.ExpiresAt
	}
	return nil
}

func (s *memStore) IsRevoked(_ context.Context, token string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.fail(); err != nil {
		return false, err
	}
	_, ok := s.revoked[token]
	return ok, nil
}

func (s *memStore) get(id string) account.Account {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accounts[id]
}

func (s *memStore) put(acc account.Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.ID] = acc
}

func (s *memStore) isRevoked(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[token]
	return ok
}

// fakePasswords stores "h:" + plaintext and counts verifications.
type fakePasswords struct {
	mu       sync.Mutex
	verifies int
}

func (p *fakePasswords) passwords() Passwords {
	return Passwords{
		Hash: func(plaintext string) (string, error) {
			if len(plaintext) < 4 {
				return "", errPasswordPolicy
			}
			return "h:" + plaintext, nil
		},
		Verify: func(plaintext, digest string) bool {
			p.mu.Lock()
			p.verifies++
			p.mu.Unlock()
			return digest != "" && digest == "h:"+plaintext
		},
		NeedsUpgrade: func(digest string) bool {
			return strings.HasPrefix(digest, "legacy:")
		},
	}
}

func (p *fakePasswords) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.verifies
}

type testEnv struct {
	clock     *fakeClock
	store     *memStore
	passwords *fakePasswords
	sessions  *jwt.Manager
	resets    *jwt.Manager
	sent      []string
	hooks     Hooks
	metrics   map[int]int
}

const (
	mLoginSuccess = iota + 1
	mLoginFailure
	mLoginLocked
	mLockoutSoft
	mLockoutEscalated
	mPasswordUpgraded
	mSessionRevoked
	mResetReplay
)

func newTestEnv() *testEnv {
	env := &testEnv{
		clock:     newFakeClock(),
		store:     newMemStore(),
		passwords: &fakePasswords{},
		metrics:   map[int]int{},
	}

	var err error
	env.sessions, err = jwt.NewManager(jwt.Config{
		Secret:   []byte(strings.Repeat("s", 32)),
		TTL:      24 * time.Hour,
		Audience: jwt.AudienceSession,
		Now:      env.clock.Now,
	})
	if err != nil {
		panic(err)
	}
	env.resets, err = jwt.NewManager(jwt.Config{
		Secret:   []byte(strings.Repeat("r", 32)),
		TTL:      30 * time.Minute,
		Audience: jwt.AudienceReset,
		Now:      env.clock.Now,
	})
	if err != nil {
		panic(err)
	}

	env.hooks = Hooks{
		Now:       env.clock.Now,
		MetricInc: func(id int) { env.metrics[id]++ },
		Errors:    testErrors(),
		Metrics: Metrics{
			LoginSuccess:        mLoginSuccess,
			LoginFailure:        mLoginFailure,
			LoginLocked:         mLoginLocked,
			LockoutSoft:         mLockoutSoft,
			LockoutEscalated:    mLockoutEscalated,
			PasswordUpgraded:    mPasswordUpgraded,
			SessionRevoked:      mSessionRevoked,
			PasswordResetReplay: mResetReplay,
		},
	}
	return env
}

func (e *testEnv) sessionDeps() Sessions {
	return Sessions{
		Issue: func(acc account.Account, ttl time.Duration) (string, *jwt.SessionClaims, error) {
			return e.sessions.CreateSession(jwt.SessionClaims{
				ID:        acc.ID,
				FirstName: acc.FirstName,
				LastName:  acc.LastName,
				Email:     acc.Email,
				Role:      string(acc.Role),
			}, ttl)
		},
		Parse: e.sessions.ParseSession,
		Revocation: func(token string) account.Revocation {
			exp, ok := e.sessions.ExpiresAt(token)
			if !ok {
				exp = e.clock.Now().Add(e.sessions.TTL())
			}
			return account.Revocation{Token: token, ExpiresAt: exp}
		},
	}
}

func (e *testEnv) validateDeps() ValidateDeps {
	return ValidateDeps{Hooks: e.hooks, Registry: e.store, Sessions: e.sessionDeps()}
}

func (e *testEnv) loginDeps() LoginDeps {
	return LoginDeps{
		Hooks:            e.hooks,
		Store:            e.store,
		Passwords:        e.passwords.passwords(),
		Sessions:         e.sessionDeps(),
		Lockout:          lockout.New(lockout.DefaultConfig()),
		UpgradeHashes:    true,
		TwoFactorCodeTTL: 5 * time.Minute,
		NewTwoFactorCode: func() (int, error) { return 654321, nil },
		SendTwoFactor: func(_ context.Context, email string, code int) {
			e.sent = append(e.sent, email+":"+strconv.Itoa(code))
		},
		BearerToken: bearerFromContext,
	}
}

func (e *testEnv) twoFactorDeps() TwoFactorDeps {
	return TwoFactorDeps{
		Hooks:      e.hooks,
		Store:      e.store,
		Sessions:   e.sessionDeps(),
		SessionTTL: time.Hour,
		ParseCode: func(raw string) (int, error) {
			return strconv.Atoi(strings.TrimSpace(raw))
		},
	}
}

func (e *testEnv) resetDeps() PasswordResetDeps {
	return PasswordResetDeps{
		Hooks:      e.hooks,
		Store:      e.store,
		Passwords:  e.passwords.passwords(),
		IssueReset: e.resets.CreateReset,
		ParseReset: e.resets.ParseReset,
		SendLink: func(_ context.Context, email, token string) {
			e.sent = append(e.sent, email+":"+token)
		},
	}
}

func (e *testEnv) changeDeps() ChangePasswordDeps {
	return ChangePasswordDeps{
		Hooks:     e.hooks,
		Validate:  e.validateDeps(),
		Store:     e.store,
		Passwords: e.passwords.passwords(),
		Sessions:  e.sessionDeps(),
		Lockout:   lockout.New(lockout.DefaultConfig()),
	}
}

func (e *testEnv) accountDeps() AccountDeps {
	return AccountDeps{
		Hooks:       e.hooks,
		Validate:    e.validateDeps(),
		Store:       e.store,
		Passwords:   e.passwords.passwords(),
		Sessions:    e.sessionDeps(),
		Lockout:     lockout.New(lockout.DefaultConfig()),
		SuperuserID: "1",
	}
}

func (e *testEnv) seed(id, email, password string, role account.Role) account.Account {
	acc := account.Account{
		ID:           id,
		Email:        email,
		PasswordHash: "h:" + password,
		Role:         role,
	}
	e.store.put(acc)
	return acc
}

func (e *testEnv) tokenFor(acc account.Account) string {
	token, _, err := e.sessionDeps().Issue(acc, 0)
	if err != nil {
		panic(err)
	}
	return token
}

type bearerKey struct{}

func withBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFromContext(ctx context.Context) string {
	v, _ := ctx.Value(bearerKey{}).(string)
	return v
}
