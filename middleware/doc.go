// Package middleware adapts accountcore.Engine to net/http handlers.
//
//   - [ClientIP] records the caller address for throttling and audit.
//   - [Authenticate] validates the bearer session token.
//   - [RequireAdmin] rejects callers whose session role is not admin.
//
// Validated claims are available through [ClaimsFromContext]. The
// presented token is also attached with accountcore.WithBearerToken so
// Engine calls made by the handler can revoke it.
//
// This package does not parse tokens itself; all decisions are delegated
// to Engine.Validate.
package middleware
