// Package jwt issues and verifies the HS512 bearer tokens used for sessions
// and password resets.
//
// Each [Manager] is bound to one secret, TTL and audience. Verification pins
// HS512 twice, once through the parser's valid-methods list and once in the
// key function, so a token declaring "none", HS256 or an asymmetric algorithm
// is rejected before any signature check.
//
// Revocation is not handled here. Callers consult their revocation registry
// before trusting [SessionClaims].
package jwt
