package accountcore

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/internal"
	"github.com/MrEthical07/accountcore/internal/flows"
	"github.com/MrEthical07/accountcore/internal/limiters"
	"github.com/MrEthical07/accountcore/internal/notify"
	"github.com/MrEthical07/accountcore/jwt"
	"github.com/MrEthical07/accountcore/password"
	"go.uber.org/zap"
)

func (e *Engine) buildFlowDeps() flows.Deps {
	hooks := e.flowHooks()
	passwords := e.flowPasswords()
	sessions := e.flowSessions()

	validate := flows.ValidateDeps{
		Hooks:    hooks,
		Registry: e.store,
		Sessions: sessions,
	}

	deps := flows.Deps{
		Validate: validate,
		Login: flows.LoginDeps{
			Hooks:            hooks,
			Store:            e.store,
			Passwords:        passwords,
			Sessions:         sessions,
			Lockout:          e.policy,
			UpgradeHashes:    e.config.Password.UpgradeOnLogin,
			TwoFactorCodeTTL: e.config.TwoFactor.CodeTTL,
			NewTwoFactorCode: internal.NewTwoFactorCode,
			SendTwoFactor: func(ctx context.Context, email string, code int) {
				e.notify.Send(ctx, notify.Message{
					Kind:   notify.KindTwoFactorCode,
					Email:  email,
					Secret: strconv.Itoa(code),
				})
			},
			BearerToken: bearerTokenFromContext,
		},
		TwoFactor: flows.TwoFactorDeps{
			Hooks:       hooks,
			Store:       e.store,
			Sessions:    sessions,
			SessionTTL:  e.config.Tokens.TwoFactorSessionTTL,
			ParseCode:   internal.ParseTwoFactorCode,
			RateLimited: isRateLimited,
		},
		PasswordReset: flows.PasswordResetDeps{
			Hooks:      hooks,
			Store:      e.store,
			Passwords:  passwords,
			IssueReset: e.resets.CreateReset,
			ParseReset: e.resets.ParseReset,
			SendLink: func(ctx context.Context, email, token string) {
				e.notify.Send(ctx, notify.Message{
					Kind:   notify.KindPasswordReset,
					Email:  email,
					Secret: token,
				})
			},
			RateLimited: isRateLimited,
		},
		ChangePassword: flows.ChangePasswordDeps{
			Hooks:     hooks,
			Validate:  validate,
			Store:     e.store,
			Passwords: passwords,
			Sessions:  sessions,
			Lockout:   e.policy,
		},
		Account: flows.AccountDeps{
			Hooks:       hooks,
			Validate:    validate,
			Store:       e.store,
			Passwords:   passwords,
			Sessions:    sessions,
			Lockout:     e.policy,
			SuperuserID: e.config.Account.SuperuserID,
		},
	}

	if l := e.twoFactorLimiter; l != nil {
		deps.TwoFactor.CheckRate = l.Check
		deps.TwoFactor.RecordFailure = l.RecordFailure
		deps.TwoFactor.ResetRate = l.Reset
	}
	if l := e.resetLimiter; l != nil {
		deps.PasswordReset.CheckRate = func(ctx context.Context, email string) error {
			return l.CheckRequest(ctx, email, clientIPFromContext(ctx))
		}
	}

	return deps
}

func (e *Engine) flowHooks() flows.Hooks {
	return flows.Hooks{
		Now:       e.now,
		MetricInc: func(id int) { e.metricInc(MetricID(id)) },
		EmitAudit: e.emitAudit,
		LogError: func(msg string, err error) {
			e.logger.Error(msg, zap.Error(err))
		},
		Warn: func(msg string, err error) {
			e.logger.Warn(msg, zap.Error(err))
		},
		Metrics: flows.Metrics{
			LoginSuccess:                int(MetricLoginSuccess),
			LoginFailure:                int(MetricLoginFailure),
			LoginLocked:                 int(MetricLoginLocked),
			LockoutSoft:                 int(MetricLockoutSoft),
			LockoutEscalated:            int(MetricLockoutEscalated),
			PasswordUpgraded:            int(MetricPasswordUpgraded),
			TwoFactorRequired:           int(MetricTwoFactorRequired),
			TwoFactorSuccess:            int(MetricTwoFactorSuccess),
			TwoFactorFailure:            int(MetricTwoFactorFailure),
			SessionIssued:               int(MetricSessionIssued),
			SessionRevoked:              int(MetricSessionRevoked),
			ValidateSuccess:             int(MetricValidateSuccess),
			ValidateFailure:             int(MetricValidateFailure),
			PasswordResetRequest:        int(MetricPasswordResetRequest),
			PasswordResetConfirmSuccess: int(MetricPasswordResetConfirmSuccess),
			PasswordResetConfirmFailure: int(MetricPasswordResetConfirmFailure),
			PasswordResetReplay:         int(MetricPasswordResetReplay),
			PasswordChangeSuccess:       int(MetricPasswordChangeSuccess),
			PasswordChangeInvalidOld:    int(MetricPasswordChangeInvalidOld),
			PasswordChangeReuseRejected: int(MetricPasswordChangeReuseRejected),
			PasswordChangeMismatch:      int(MetricPasswordChangeMismatch),
			RateLimitHit:                int(MetricRateLimitHit),
			AccountCreated:              int(MetricAccountCreated),
			AccountUpdated:              int(MetricAccountUpdated),
			AccountDeleted:              int(MetricAccountDeleted),
			AccountUnlocked:             int(MetricAccountUnlocked),
		},
		Events: flows.Events{
			LoginSuccess:         auditEventLoginSuccess,
			LoginFailure:         auditEventLoginFailure,
			LoginLocked:          auditEventLoginLocked,
			LockoutEscalated:     auditEventLockoutEscalated,
			TwoFactorChallenge:   auditEventTwoFactorChallenge,
			TwoFactorSuccess:     auditEventTwoFactorSuccess,
			TwoFactorFailure:     auditEventTwoFactorFailure,
			Logout:               auditEventLogout,
			PasswordResetRequest: auditEventPasswordResetRequest,
			PasswordResetConfirm: auditEventPasswordResetConfirm,
			PasswordResetReplay:  auditEventPasswordResetReplay,
			PasswordChange:       auditEventPasswordChange,
			Bootstrap:            auditEventBootstrap,
			AccountCreate:        auditEventAccountCreate,
			AccountUpdate:        auditEventAccountUpdate,
			AccountDelete:        auditEventAccountDelete,
			AccountUnlock:        auditEventAccountUnlock,
			TwoFactorToggle:      auditEventTwoFactorToggle,
		},
		Errors: flows.Errors{
			EngineNotReady:      ErrEngineNotReady,
			Validation:          ErrValidation,
			InvalidCredentials:  ErrInvalidCredentials,
			AccountLocked:       ErrAccountLocked,
			TokenInvalid:        ErrTokenInvalid,
			TokenReplayed:       ErrTokenReplayed,
			Conflict:            ErrConflict,
			NotFound:            ErrNotFound,
			Forbidden:           ErrForbidden,
			Unavailable:         ErrUnavailable,
			PasswordReuse:       ErrPasswordReuse,
			PasswordMismatch:    ErrPasswordMismatch,
			PasswordPolicy:      ErrPasswordPolicy,
			TwoFactorNotEnabled: ErrTwoFactorNotEnabled,
			TwoFactorInvalid:    ErrTwoFactorInvalid,
			RateLimited:         ErrRateLimited,
		},
	}
}

func (e *Engine) flowPasswords() flows.Passwords {
	return flows.Passwords{
		Hash: func(plaintext string) (string, error) {
			digest, err := e.hasher.Hash(plaintext)
			if errors.Is(err, password.ErrPasswordLength) {
				return "", ErrPasswordPolicy
			}
			return digest, err
		},
		Verify:       e.hasher.Verify,
		NeedsUpgrade: e.hasher.NeedsUpgrade,
	}
}

func (e *Engine) flowSessions() flows.Sessions {
	return flows.Sessions{
		Issue: func(acc account.Account, ttl time.Duration) (string, *jwt.SessionClaims, error) {
			return e.sessions.CreateSession(jwt.SessionClaims{
				ID:        acc.ID,
				FirstName: acc.FirstName,
				LastName:  acc.LastName,
				Email:     acc.Email,
				Role:      string(acc.Role),
			}, ttl)
		},
		Parse:      e.sessions.ParseSession,
		Revocation: e.revocation,
	}
}

// revocation sizes the registry entry by the token's own expiry so stores
// can purge it once the token could no longer validate anyway.
func (e *Engine) revocation(token string) account.Revocation {
	expires, ok := e.sessions.ExpiresAt(token)
	if !ok {
		expires = e.now().Add(e.config.Tokens.SessionTTL)
	}
	return account.Revocation{Token: token, ExpiresAt: expires}
}

func isRateLimited(err error) bool {
	return errors.Is(err, limiters.ErrResetRateLimited) || errors.Is(err, limiters.ErrTwoFactorRateLimited)
}
