// Package accountcore is the credential and session-security core of a
// user-account backend: password verification with progressive lockout,
// HS512 session tokens with a revocation registry, single-use password-reset
// tokens, and an emailed 2FA challenge.
//
// The package is designed for concurrent server workloads: Engine methods are
// safe to call from multiple goroutines after initialization through
// [Builder.Build].
//
// # Architecture boundaries
//
// accountcore is the public surface. It exposes [Engine], [Builder],
// [Config], the error sentinels and value types. Flow orchestration, lockout
// transitions, rate limiting, audit and notification dispatch live under
// internal/. Persistence is an [account.Store] supplied by the caller;
// store/redisstore and store/pgstore are the bundled implementations.
//
// # Atomicity
//
// Every read-modify-write of security fields (failed attempts, lock expiry,
// 2FA code, reset flag, password hash) is one Store.Update mutation.
// Revocations demanded by a transition (lockout escalation, password change,
// self role change) are written in the same transaction.
//
// # What this package must NOT do
//
//   - Log or audit passwords, tokens or 2FA codes.
//   - Reveal whether an email exists through Login or VerifyTwoFactor.
//   - Import any sub-package that re-imports accountcore (no import cycles).
package accountcore
