// Package limiters provides domain-specific rate limiters built on top of the
// internal/rate fixed-window counter.
//
// # Limiters
//
//   - [PasswordResetLimiter]: per-email and per-IP throttle for reset requests.
//   - [TwoFactorLimiter]: per-email failure budget for 2FA code verification.
//
// All limiters are nil-safe: calling any method on a nil receiver returns nil,
// so an Engine built without Redis simply skips throttling.
//
// # What this package must NOT do
//
//   - Import accountcore or any sibling internal package except internal/rate.
//   - Make policy decisions beyond counting. Flow functions decide consequences.
package limiters
