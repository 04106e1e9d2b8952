// Package flows contains pure-function orchestrators for every Engine operation.
//
// Each flow function (RunLogin, RunValidate, RunConfirmPasswordReset, etc.)
// accepts a typed dependency struct and returns results without side-effects
// beyond those dependencies. The Engine builds the dependency structs once and
// stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate calls to the account store, the JWT managers, the
// password hasher, the lockout policy, rate limiters, notifications, audit and
// metrics. They do NOT own any of these resources; ownership stays with the
// Engine.
//
// Every read-modify-write of security fields goes through one
// account.Store.Update mutation. Password hashing and verification run
// outside the mutation, and the mutation re-checks the fresh record before
// writing.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import accountcore (to avoid import cycles).
//   - Log secrets: passwords, tokens and 2FA codes never reach LogError or Warn.
package flows
