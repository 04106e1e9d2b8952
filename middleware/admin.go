package middleware

import (
	"net/http"

	"github.com/MrEthical07/accountcore"
)

// RequireAdmin must run after Authenticate. It answers 403 when the
// session role is not admin. The Engine still rechecks the stored role
// on every administrative call.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := ClaimsFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		if claims.Role != string(accountcore.RoleAdmin) {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
