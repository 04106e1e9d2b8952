package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/MrEthical07/accountcore"
)

type claimsContextKey struct{}

// ClaimsFromContext returns the claims stored by Authenticate.
func ClaimsFromContext(ctx context.Context) (*accountcore.SessionClaims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*accountcore.SessionClaims)
	return claims, ok
}

// Authenticate requires a valid, unrevoked bearer session token.
// Missing or rejected tokens get 401. Other Engine failures are mapped
// with accountcore.HTTPStatus.
func Authenticate(engine *accountcore.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := BearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := engine.Validate(r.Context(), token)
			if err != nil {
				status := accountcore.HTTPStatus(err)
				if status == http.StatusBadRequest {
					status = http.StatusUnauthorized
				}
				http.Error(w, http.StatusText(status), status)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			ctx = accountcore.WithBearerToken(ctx, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}
