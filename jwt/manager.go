package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Audiences used to keep session and reset tokens from being accepted in
// place of each other even if the same secret were configured for both.
const (
	AudienceSession = "session"
	AudienceReset   = "password-reset"
)

// MinSecretBytes is the shortest HMAC secret NewManager accepts.
const MinSecretBytes = 32

// Config holds one secret/TTL pair. Session and reset tokens each get their
// own Manager built from their own Config.
type Config struct {
	Secret   []byte
	TTL      time.Duration
	Issuer   string
	Audience string
	Leeway   time.Duration

	// KeyID is stamped into the "kid" header of issued tokens. When
	// VerifyKeys is set, parsing selects the secret by kid, which allows
	// rotating Secret without invalidating outstanding tokens.
	KeyID      string
	VerifyKeys map[string][]byte

	Now func() time.Time
}

// Manager issues and verifies HS512 compact JWS tokens. It is safe for
// concurrent use once built.
type Manager struct {
	config Config
}

// SessionClaims is the minimal account projection carried by session tokens.
// It never includes the password hash.
type SessionClaims struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	jwt.RegisteredClaims
}

// ResetClaims carries only the account id of a password-reset token.
type ResetClaims struct {
	ID string `json:"id"`
	jwt.RegisteredClaims
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) < MinSecretBytes {
		return nil, fmt.Errorf("hs512 secret must be at least %d bytes", MinSecretBytes)
	}
	if cfg.TTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	cfg.KeyID = strings.TrimSpace(cfg.KeyID)
	for kid, key := range cfg.VerifyKeys {
		if strings.TrimSpace(kid) == "" {
			return nil, errors.New("verify key map contains empty kid")
		}
		if len(key) < MinSecretBytes {
			return nil, fmt.Errorf("verify key for kid %q is shorter than %d bytes", kid, MinSecretBytes)
		}
	}
	if cfg.KeyID != "" && len(cfg.VerifyKeys) > 0 {
		if _, ok := cfg.VerifyKeys[cfg.KeyID]; !ok {
			return nil, errors.New("KeyID is not present in VerifyKeys")
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	return &Manager{config: cfg}, nil
}

// TTL returns the configured token lifetime.
func (j *Manager) TTL() time.Duration {
	return j.config.TTL
}

// CreateSession signs claims with the configured secret. A ttl <= 0 uses
// the configured TTL. Registered claims on the input are overwritten.
func (j *Manager) CreateSession(claims SessionClaims, ttl time.Duration) (string, *SessionClaims, error) {
	claims.RegisteredClaims = j.registered(claims.ID, ttl)
	token, err := j.sign(&claims)
	if err != nil {
		return "", nil, err
	}
	return token, &claims, nil
}

// ParseSession verifies tokenStr and returns its claims.
func (j *Manager) ParseSession(tokenStr string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// CreateReset signs a reset token for uid with the configured TTL.
func (j *Manager) CreateReset(uid string) (string, *ResetClaims, error) {
	claims := ResetClaims{ID: uid, RegisteredClaims: j.registered(uid, 0)}
	token, err := j.sign(&claims)
	if err != nil {
		return "", nil, err
	}
	return token, &claims, nil
}

// ParseReset verifies tokenStr and returns its claims.
func (j *Manager) ParseReset(tokenStr string) (*ResetClaims, error) {
	claims := &ResetClaims{}
	if err := j.parse(tokenStr, claims); err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, jwt.ErrTokenInvalidClaims
	}
	return claims, nil
}

// ExpiresAt reads the exp claim of tokenStr without verifying it. It is used
// to size revocation entries for tokens that may already be untrusted; the
// boolean is false when no expiry can be read.
func (j *Manager) ExpiresAt(tokenStr string) (time.Time, bool) {
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(tokenStr, claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

func (j *Manager) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	if ttl <= 0 {
		ttl = j.config.TTL
	}
	now := j.config.Now()
	rc := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		IssuedAt:  jwt.NewNumericDate(now),
		Issuer:    j.config.Issuer,
	}
	if j.config.Audience != "" {
		rc.Audience = jwt.ClaimStrings{j.config.Audience}
	}
	return rc
}

func (j *Manager) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	if j.config.KeyID != "" {
		token.Header["kid"] = j.config.KeyID
	}
	return token.SignedString(j.config.Secret)
}

func (j *Manager) parse(tokenStr string, claims jwt.Claims) error {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
		jwt.WithTimeFunc(j.config.Now),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	}
	if j.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(j.config.Leeway))
	}
	if j.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(j.config.Issuer))
	}
	if j.config.Audience != "" {
		options = append(options, jwt.WithAudience(j.config.Audience))
	}

	parser := jwt.NewParser(options...)
	token, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS512.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}

		if len(j.config.VerifyKeys) > 0 {
			kid, _ := t.Header["kid"].(string)
			if kid == "" {
				return nil, errors.New("missing kid")
			}
			key, ok := j.config.VerifyKeys[kid]
			if !ok {
				return nil, errors.New("unknown kid")
			}
			return key, nil
		}

		if j.config.KeyID != "" {
			kid, _ := t.Header["kid"].(string)
			if kid != j.config.KeyID {
				return nil, errors.New("unknown kid")
			}
		}

		return j.config.Secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return jwt.ErrTokenInvalidClaims
	}
	return nil
}

// Algorithm reports the only signing algorithm the Manager issues and accepts.
func Algorithm() string {
	return jwt.SigningMethodHS512.Alg()
}
