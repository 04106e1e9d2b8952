// Package rate provides the Redis fixed-window counter that the domain
// limiters in internal/limiters are built on.
//
// # What this package must NOT do
//
//   - Decide consequences of a limit hit. Callers map ErrRateLimited.
//   - Import accountcore or any sibling internal package.
package rate
