package accountcore

import (
	"context"
	"errors"
)

const (
	auditEventLoginSuccess         = "login_success"
	auditEventLoginFailure         = "login_failure"
	auditEventLoginLocked          = "login_locked"
	auditEventLockoutEscalated     = "lockout_escalated"
	auditEventTwoFactorChallenge   = "two_factor_challenge"
	auditEventTwoFactorSuccess     = "two_factor_success"
	auditEventTwoFactorFailure     = "two_factor_failure"
	auditEventTwoFactorToggle      = "two_factor_toggle"
	auditEventLogout               = "logout"
	auditEventPasswordResetRequest = "password_reset_request"
	auditEventPasswordResetConfirm = "password_reset_confirm"
	auditEventPasswordResetReplay  = "password_reset_replay"
	auditEventPasswordChange       = "password_change"
	auditEventBootstrap            = "bootstrap"
	auditEventAccountCreate        = "account_create"
	auditEventAccountUpdate        = "account_update"
	auditEventAccountDelete        = "account_delete"
	auditEventAccountUnlock        = "account_unlock"
)

// AuditErrorCode is the stable error label carried by failed audit events.
type AuditErrorCode string

const (
	auditErrInvalidCredentials  AuditErrorCode = "invalid_credentials"
	auditErrAccountLocked       AuditErrorCode = "account_locked"
	auditErrInvalidToken        AuditErrorCode = "invalid_token"
	auditErrTokenReplayed       AuditErrorCode = "token_replayed"
	auditErrNotFound            AuditErrorCode = "not_found"
	auditErrForbidden           AuditErrorCode = "forbidden"
	auditErrDuplicate           AuditErrorCode = "duplicate"
	auditErrPasswordPolicy      AuditErrorCode = "password_policy"
	auditErrPasswordReuse       AuditErrorCode = "password_reuse"
	auditErrPasswordMismatch    AuditErrorCode = "password_mismatch"
	auditErrTwoFactorNotEnabled AuditErrorCode = "two_factor_not_enabled"
	auditErrTwoFactorInvalid    AuditErrorCode = "two_factor_invalid"
	auditErrRateLimited         AuditErrorCode = "rate_limited"
	auditErrUnavailable         AuditErrorCode = "backend_unavailable"
	auditErrInternal            AuditErrorCode = "internal_error"
)

func (e *Engine) emitAudit(
	ctx context.Context,
	eventType string,
	success bool,
	accountID string,
	err error,
	metadataBuilder func() map[string]string,
) {
	if e == nil || e.audit == nil {
		return
	}

	var metadata map[string]string
	if metadataBuilder != nil {
		metadata = metadataBuilder()
	}

	event := AuditEvent{
		EventType: eventType,
		AccountID: accountID,
		Success:   success,
	}
	if actor, ok := metadata["actor_id"]; ok {
		event.ActorID = actor
		delete(metadata, "actor_id")
	}
	if len(metadata) > 0 {
		event.Metadata = metadata
	}
	if code := auditErrorCode(err); code != "" {
		event.Error = string(code)
	}

	e.audit.Emit(ctx, event)
}

func auditErrorCode(err error) AuditErrorCode {
	if err == nil {
		return ""
	}

	switch {
	case errors.Is(err, ErrInvalidCredentials):
		return auditErrInvalidCredentials
	case errors.Is(err, ErrAccountLocked):
		return auditErrAccountLocked
	case errors.Is(err, ErrTokenInvalid):
		return auditErrInvalidToken
	case errors.Is(err, ErrTokenReplayed):
		return auditErrTokenReplayed
	case errors.Is(err, ErrNotFound):
		return auditErrNotFound
	case errors.Is(err, ErrForbidden):
		return auditErrForbidden
	case errors.Is(err, ErrConflict):
		return auditErrDuplicate
	case errors.Is(err, ErrPasswordPolicy):
		return auditErrPasswordPolicy
	case errors.Is(err, ErrPasswordReuse):
		return auditErrPasswordReuse
	case errors.Is(err, ErrPasswordMismatch):
		return auditErrPasswordMismatch
	case errors.Is(err, ErrTwoFactorNotEnabled):
		return auditErrTwoFactorNotEnabled
	case errors.Is(err, ErrTwoFactorInvalid):
		return auditErrTwoFactorInvalid
	case errors.Is(err, ErrRateLimited):
		return auditErrRateLimited
	case errors.Is(err, ErrUnavailable):
		return auditErrUnavailable
	default:
		return auditErrInternal
	}
}
