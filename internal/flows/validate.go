package flows

import (
	"context"
	"strings"

	"github.com/MrEthical07/accountcore/account"
	"github.com/MrEthical07/accountcore/jwt"
)

// ValidateDeps defines dependencies for session validation and logout.
type ValidateDeps struct {
	Hooks

	Registry account.Registry
	Sessions Sessions
}

// RunValidate authenticates a bearer session token. The token must verify
// under the session key and must not be in the revocation registry.
func RunValidate(ctx context.Context, token string, deps ValidateDeps) (*jwt.SessionClaims, error) {
	deps.defaults()
	if deps.Registry == nil || deps.Sessions.Parse == nil {
		return nil, deps.Errors.EngineNotReady
	}

	token = strings.TrimSpace(token)
	if token == "" {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return nil, deps.Errors.TokenInvalid
	}

	claims, err := deps.Sessions.Parse(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return nil, deps.Errors.TokenInvalid
	}

	revoked, err := deps.Registry.IsRevoked(ctx, token)
	if err != nil {
		return nil, deps.unavailable("revocation lookup failed", err)
	}
	if revoked {
		deps.MetricInc(deps.Metrics.ValidateFailure)
		return nil, deps.Errors.TokenInvalid
	}

	deps.MetricInc(deps.Metrics.ValidateSuccess)
	return claims, nil
}

// RunLogout revokes a valid session token. Revoking an already revoked or
// otherwise invalid token returns Errors.TokenInvalid.
func RunLogout(ctx context.Context, token string, deps ValidateDeps) error {
	deps.defaults()
	if deps.Sessions.Revocation == nil {
		return deps.Errors.EngineNotReady
	}

	claims, err := RunValidate(ctx, token, deps)
	if err != nil {
		return err
	}

	if err := deps.Registry.Revoke(ctx, deps.Sessions.Revocation(strings.TrimSpace(token))); err != nil {
		return deps.unavailable("revoke session token failed", err)
	}

	deps.MetricInc(deps.Metrics.SessionRevoked)
	deps.EmitAudit(ctx, deps.Events.Logout, true, claims.ID, nil, nil)
	return nil
}
