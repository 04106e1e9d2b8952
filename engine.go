package accountcore

import (
	"context"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/internal/audit"
	"github.com/MrEthical07/accountcore/internal/flows"
	"github.com/MrEthical07/accountcore/internal/limiters"
	"github.com/MrEthical07/accountcore/internal/lockout"
	"github.com/MrEthical07/accountcore/internal/notify"
	"github.com/MrEthical07/accountcore/jwt"
	"github.com/MrEthical07/accountcore/password"
	"go.uber.org/zap"
)

// Engine runs the credential and session flows against an account.Store.
//
// Engine instances are safe for concurrent use. Build one with [New].
type Engine struct {
	config           Config
	store            account.Store
	hasher           *password.Argon2
	sessions         *jwt.Manager
	resets           *jwt.Manager
	policy           lockout.Policy
	resetLimiter     *limiters.PasswordResetLimiter
	twoFactorLimiter *limiters.TwoFactorLimiter
	audit            *audit.Dispatcher
	notify           *notify.Dispatcher
	metrics          *Metrics
	logger           *zap.Logger
	now              func() time.Time
	flows            flows.Deps
}

// Close drains the audit and notification dispatchers. Engine methods must
// not be called after Close.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.notify != nil {
		e.notify.Close()
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped returns audit events dropped under backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// AuditFailed returns audit events lost to a panicking sink.
func (e *Engine) AuditFailed() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Failed()
}

// NotificationsDropped returns notifications dropped because the buffer was full.
func (e *Engine) NotificationsDropped() uint64 {
	if e == nil || e.notify == nil {
		return 0
	}
	return e.notify.Dropped()
}

// NotificationsFailed returns notifications the Notifier rejected.
func (e *Engine) NotificationsFailed() uint64 {
	if e == nil || e.notify == nil {
		return 0
	}
	return e.notify.Failed()
}

// MetricsSnapshot returns a copy of the Engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Login checks email and password.
//
// Unknown emails and wrong passwords both return [ErrInvalidCredentials]. A
// locked account returns [ErrAccountLocked] without comparing the password.
// When 2FA is enabled a code is sent and the result has TwoFactorRequired
// set; otherwise the result carries a session token.
//
// A session token attached with [WithBearerToken] is revoked when the
// attempt escalates the lockout.
func (e *Engine) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	started := time.Now()
	defer e.observeLatency(MetricLoginLatency, started)

	res, err := flows.RunLogin(ctx, email, password, e.flows.Login)
	if err != nil {
		return nil, err
	}
	return toLoginResult(res), nil
}

// VerifyTwoFactor consumes the pending 2FA code of the account behind email
// and returns a session token valid for Tokens.TwoFactorSessionTTL.
func (e *Engine) VerifyTwoFactor(ctx context.Context, email, code string) (*LoginResult, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	res, err := flows.RunVerifyTwoFactor(ctx, email, code, e.flows.TwoFactor)
	if err != nil {
		return nil, err
	}
	return toLoginResult(res), nil
}

// Validate authenticates a session token. Revoked tokens return [ErrTokenInvalid].
func (e *Engine) Validate(ctx context.Context, token string) (*SessionClaims, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}
	started := time.Now()
	defer e.observeLatency(MetricValidateLatency, started)

	return flows.RunValidate(ctx, token, e.flows.Validate)
}

// Logout revokes a valid session token.
func (e *Engine) Logout(ctx context.Context, token string) error {
	if e == nil {
		return ErrEngineNotReady
	}
	return flows.RunLogout(ctx, token, e.flows.Validate)
}

func toLoginResult(res *flows.LoginResult) *LoginResult {
	return &LoginResult{
		AccountID:         res.AccountID,
		TwoFactorRequired: res.TwoFactorRequired,
		Token:             res.Token,
		Claims:            res.Claims,
	}
}
