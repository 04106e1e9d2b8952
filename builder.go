package accountcore

import (
	"errors"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/internal/audit"
	"github.com/MrEthical07/accountcore/internal/limiters"
	"github.com/MrEthical07/accountcore/internal/lockout"
	"github.com/MrEthical07/accountcore/internal/notify"
	"github.com/MrEthical07/accountcore/jwt"
	"github.com/MrEthical07/accountcore/password"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Builder assembles an Engine.
//
// Builder instances are intended to be configured during initialization and
// used for exactly one Build call.
type Builder struct {
	config Config
	store  account.Store
	redis  redis.UniversalClient

	notifier  Notifier
	logger    *zap.Logger
	auditSink AuditSink
	now       func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithStore sets the account store. Required.
func (b *Builder) WithStore(store account.Store) *Builder {
	b.store = store
	return b
}

// WithRedis enables the reset-request and 2FA attempt limiters.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithNotifier sets where 2FA codes and reset links are delivered.
func (b *Builder) WithNotifier(n Notifier) *Builder {
	b.notifier = n
	return b
}

// WithLogger sets the zap logger for infrastructure failures. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination and enables the audit dispatcher.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	b.config.Audit.Enabled = sink != nil
	return b
}

// WithClock replaces time.Now for token timestamps, lockout and 2FA expiry.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// WithMetricsEnabled toggles in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles the Login and Validate latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and returns a ready Engine. A Builder
// can be built once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("account store required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	hasher, err := password.NewArgon2(cfg.passwordConfig())
	if err != nil {
		return nil, err
	}

	// -------- TOKEN MANAGERS --------
	var verifyKeys map[string][]byte
	if len(cfg.Tokens.SessionVerifyKeys) > 0 {
		verifyKeys = make(map[string][]byte, len(cfg.Tokens.SessionVerifyKeys)+1)
		for kid, key := range cfg.Tokens.SessionVerifyKeys {
			verifyKeys[kid] = key
		}
		if _, ok := verifyKeys[cfg.Tokens.SessionKeyID]; !ok {
			verifyKeys[cfg.Tokens.SessionKeyID] = cfg.Tokens.SessionSecret
		}
	}

	sessions, err := jwt.NewManager(jwt.Config{
		Secret:     cfg.Tokens.SessionSecret,
		TTL:        cfg.Tokens.SessionTTL,
		Issuer:     cfg.Tokens.Issuer,
		Audience:   jwt.AudienceSession,
		Leeway:     cfg.Tokens.Leeway,
		KeyID:      cfg.Tokens.SessionKeyID,
		VerifyKeys: verifyKeys,
		Now:        now,
	})
	if err != nil {
		return nil, err
	}

	resets, err := jwt.NewManager(jwt.Config{
		Secret:   cfg.Tokens.ResetSecret,
		TTL:      cfg.Tokens.ResetTTL,
		Issuer:   cfg.Tokens.Issuer,
		Audience: jwt.AudienceReset,
		Leeway:   cfg.Tokens.Leeway,
		Now:      now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		hasher:   hasher,
		sessions: sessions,
		resets:   resets,
		policy:   lockout.New(cfg.lockoutConfig()),
		metrics:  NewMetrics(cfg.Metrics),
		logger:   logger,
		now:      now,
	}

	// -------- LIMITERS --------
	if b.redis != nil {
		engine.resetLimiter = limiters.NewPasswordResetLimiter(b.redis, limiters.PasswordResetConfig{
			EnableIPThrottle: cfg.PasswordReset.EnableIPThrottle,
			Window:           cfg.PasswordReset.Window,
			MaxRequests:      cfg.PasswordReset.MaxRequests,
		})
		if cfg.TwoFactor.MaxAttempts > 0 {
			engine.twoFactorLimiter = limiters.NewTwoFactorLimiter(b.redis, limiters.TwoFactorConfig{
				MaxAttempts: cfg.TwoFactor.MaxAttempts,
				Cooldown:    cfg.TwoFactor.Cooldown,
			})
		}
	}

	// -------- DISPATCHERS --------
	sink := b.auditSink
	if sink == nil && cfg.Audit.Enabled {
		sink = NewLoggerSink(logger)
	}
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
		Now:        now,
		ClientIP:   clientIPFromContext,
	}, sink, logger)

	engine.notify = notify.NewDispatcher(notify.Config{
		Async:      cfg.Notifications.Async,
		BufferSize: cfg.Notifications.BufferSize,
		Timeout:    cfg.Notifications.Timeout,
	}, b.notifier, logger)

	engine.flows = engine.buildFlowDeps()

	b.built = true

	return engine, nil
}
