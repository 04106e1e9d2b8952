package accountcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/accountcore/internal/lockout"
	"github.com/MrEthical07/accountcore/internal/security"
	"github.com/MrEthical07/accountcore/jwt"
	"github.com/MrEthical07/accountcore/password"
)

// Config is the full Engine configuration. Start from [DefaultConfig] and
// set at least Tokens.SessionSecret and Tokens.ResetSecret.
//
// Config instances are intended to be configured during initialization and then treated as immutable.
type Config struct {
	Tokens        TokensConfig
	Password      PasswordConfig
	Lockout       LockoutConfig
	TwoFactor     TwoFactorConfig
	PasswordReset PasswordResetConfig
	Account       AccountConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Notifications NotificationsConfig
}

/*
====================================
TOKENS CONFIG
====================================
*/

// TokensConfig holds the two HS512 signing secrets and token lifetimes.
// Session and reset secrets must differ.
type TokensConfig struct {
	SessionSecret       []byte
	SessionTTL          time.Duration
	TwoFactorSessionTTL time.Duration

	ResetSecret []byte
	ResetTTL    time.Duration

	Issuer string
	Leeway time.Duration

	// SessionKeyID is written to the kid header of new session tokens.
	// SessionVerifyKeys lists additional kid -> secret pairs still accepted
	// during a rotation.
	SessionKeyID      string
	SessionVerifyKeys map[string][]byte
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig holds Argon2id parameters and plaintext bounds.
type PasswordConfig struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32

	MinLength int
	MaxLength int

	// UpgradeOnLogin rehashes legacy or weaker digests after a successful login.
	UpgradeOnLogin bool
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig holds the progressive lockout tiers.
type LockoutConfig struct {
	SoftThreshold int
	SoftDuration  time.Duration
	HardThreshold int
	HardDuration  time.Duration
}

/*
====================================
TWO-FACTOR CONFIG
====================================
*/

// TwoFactorConfig controls emailed 2FA codes. MaxAttempts and Cooldown only
// apply when a Redis client is configured.
type TwoFactorConfig struct {
	CodeTTL     time.Duration
	MaxAttempts int
	Cooldown    time.Duration
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig controls reset request throttling. It only applies
// when a Redis client is configured.
type PasswordResetConfig struct {
	EnableIPThrottle bool
	Window           time.Duration
	MaxRequests      int
}

/*
====================================
ACCOUNT / AUDIT / METRICS CONFIG
====================================
*/

// AccountConfig holds account provisioning settings.
type AccountConfig struct {
	// SuperuserID is the id Bootstrap assigns. That account can never be
	// updated or deleted through the Engine.
	SuperuserID string
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls in-process counters and latency histograms.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// NotificationsConfig controls delivery to the Notifier.
type NotificationsConfig struct {
	Async      bool
	BufferSize int
	Timeout    time.Duration
}

/*
====================================
DEFAULT CONFIG
====================================
*/

// DefaultConfig returns the reference configuration without secrets.
func DefaultConfig() Config {
	pw := password.DefaultConfig()
	lo := lockout.DefaultConfig()

	return Config{
		Tokens: TokensConfig{
			SessionTTL:          24 * time.Hour,
			TwoFactorSessionTTL: time.Hour,
			ResetTTL:            30 * time.Minute,
			Issuer:              "accountcore",
		},
		Password: PasswordConfig{
			Memory:         pw.Memory,
			Time:           pw.Time,
			Parallelism:    pw.Parallelism,
			SaltLength:     pw.SaltLength,
			KeyLength:      pw.KeyLength,
			MinLength:      pw.MinPasswordBytes,
			MaxLength:      pw.MaxPasswordBytes,
			UpgradeOnLogin: true,
		},
		Lockout: LockoutConfig{
			SoftThreshold: lo.SoftThreshold,
			SoftDuration:  lo.SoftDuration,
			HardThreshold: lo.HardThreshold,
			HardDuration:  lo.HardDuration,
		},
		TwoFactor: TwoFactorConfig{
			CodeTTL:     5 * time.Minute,
			MaxAttempts: 5,
			Cooldown:    5 * time.Minute,
		},
		PasswordReset: PasswordResetConfig{
			EnableIPThrottle: true,
			Window:           15 * time.Minute,
			MaxRequests:      5,
		},
		Account: AccountConfig{
			SuperuserID: "1",
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 false,
			EnableLatencyHistograms: false,
		},
		Notifications: NotificationsConfig{
			Async:      true,
			BufferSize: 256,
			Timeout:    10 * time.Second,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.Tokens.SessionSecret = cloneBytes(cfg.Tokens.SessionSecret)
	out.Tokens.ResetSecret = cloneBytes(cfg.Tokens.ResetSecret)
	if cfg.Tokens.SessionVerifyKeys != nil {
		out.Tokens.SessionVerifyKeys = make(map[string][]byte, len(cfg.Tokens.SessionVerifyKeys))
		for kid, key := range cfg.Tokens.SessionVerifyKeys {
			out.Tokens.SessionVerifyKeys[kid] = cloneBytes(key)
		}
	}
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c Config) passwordConfig() password.Config {
	return password.Config{
		Memory:           c.Password.Memory,
		Time:             c.Password.Time,
		Parallelism:      c.Password.Parallelism,
		SaltLength:       c.Password.SaltLength,
		KeyLength:        c.Password.KeyLength,
		MinPasswordBytes: c.Password.MinLength,
		MaxPasswordBytes: c.Password.MaxLength,
	}
}

func (c Config) lockoutConfig() lockout.Config {
	return lockout.Config{
		SoftThreshold: c.Lockout.SoftThreshold,
		SoftDuration:  c.Lockout.SoftDuration,
		HardThreshold: c.Lockout.HardThreshold,
		HardDuration:  c.Lockout.HardDuration,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate checks the configuration. Build calls it; callers loading config
// from files may call it early to fail fast.
func (c *Config) Validate() error {
	// Tokens
	if len(c.Tokens.SessionSecret) < jwt.MinSecretBytes {
		return errors.New("Tokens SessionSecret must be at least 32 bytes")
	}
	if len(c.Tokens.ResetSecret) < jwt.MinSecretBytes {
		return errors.New("Tokens ResetSecret must be at least 32 bytes")
	}
	if string(c.Tokens.SessionSecret) == string(c.Tokens.ResetSecret) {
		return errors.New("Tokens SessionSecret and ResetSecret must differ")
	}
	if c.Tokens.SessionTTL <= 0 {
		return errors.New("Tokens SessionTTL must be > 0")
	}
	if c.Tokens.TwoFactorSessionTTL <= 0 {
		return errors.New("Tokens TwoFactorSessionTTL must be > 0")
	}
	if c.Tokens.ResetTTL <= 0 {
		return errors.New("Tokens ResetTTL must be > 0")
	}
	if len(c.Tokens.SessionVerifyKeys) > 0 && c.Tokens.SessionKeyID == "" {
		return errors.New("Tokens SessionVerifyKeys requires SessionKeyID")
	}
	if c.Tokens.Leeway < 0 || c.Tokens.Leeway > 2*time.Minute {
		return errors.New("Tokens Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.MinLength < 0 || c.Password.MaxLength < 0 {
		return errors.New("Password length bounds must be >= 0")
	}
	if c.Password.MaxLength > 0 && c.Password.MinLength > c.Password.MaxLength {
		return errors.New("Password MinLength must be <= MaxLength")
	}

	// Lockout
	if err := c.lockoutConfig().Validate(); err != nil {
		return err
	}

	// Two-factor
	if c.TwoFactor.CodeTTL <= 0 {
		return errors.New("TwoFactor CodeTTL must be > 0")
	}
	if c.TwoFactor.MaxAttempts < 0 || c.TwoFactor.Cooldown < 0 {
		return errors.New("TwoFactor MaxAttempts and Cooldown must be >= 0")
	}

	// Password reset
	if c.PasswordReset.Window <= 0 {
		return errors.New("PasswordReset Window must be > 0")
	}
	if c.PasswordReset.MaxRequests <= 0 {
		return errors.New("PasswordReset MaxRequests must be > 0")
	}

	// Account
	if c.Account.SuperuserID == "" {
		return errors.New("Account SuperuserID must be set")
	}

	// Audit / notifications
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when enabled")
	}
	if c.Notifications.Async && c.Notifications.BufferSize <= 0 {
		return errors.New("Notifications BufferSize must be > 0 when async")
	}
	if c.Notifications.Timeout < 0 {
		return errors.New("Notifications Timeout must be >= 0")
	}

	return nil
}

func (c Config) securityReportInput(hasRedis bool) security.ReportInput {
	return security.ReportInput{
		SigningAlgorithm:    jwt.Algorithm(),
		SessionTTL:          c.Tokens.SessionTTL,
		TwoFactorSessionTTL: c.Tokens.TwoFactorSessionTTL,
		ResetTTL:            c.Tokens.ResetTTL,
		VerifyKeyCount:      len(c.Tokens.SessionVerifyKeys),
		Password: security.PasswordReport{
			Memory:      c.Password.Memory,
			Time:        c.Password.Time,
			Parallelism: c.Password.Parallelism,
			SaltLength:  c.Password.SaltLength,
			KeyLength:   c.Password.KeyLength,
			MinLength:   c.Password.MinLength,
			MaxLength:   c.Password.MaxLength,
		},
		UpgradeOnLogin:       c.Password.UpgradeOnLogin,
		SoftThreshold:        c.Lockout.SoftThreshold,
		SoftDuration:         c.Lockout.SoftDuration,
		HardThreshold:        c.Lockout.HardThreshold,
		HardDuration:         c.Lockout.HardDuration,
		TwoFactorCodeTTL:     c.TwoFactor.CodeTTL,
		TwoFactorMaxAttempts: c.TwoFactor.MaxAttempts,
		HasRedis:             hasRedis,
		ResetIPThrottle:      c.PasswordReset.EnableIPThrottle,
		AuditEnabled:         c.Audit.Enabled,
	}
}
