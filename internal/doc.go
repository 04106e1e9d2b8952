// Package internal contains helpers that are private to accountcore, such as
// two-factor code generation and parsing.
//
// # Sub-packages
//
//   - audit: async event dispatch (Dispatcher + Sink implementations)
//   - flows: flow orchestrators behind every Engine operation
//   - limiters: Redis-backed throttles for reset requests and 2FA attempts
//   - lockout: pure progressive-lockout state machine
//   - notify: async notification delivery
//   - rate: fixed-window counter primitive shared by limiters
//   - security: effective configuration report
//
// # What this package must NOT do
//
//   - Export types that appear in the public accountcore API.
//   - Be imported by any package outside the accountcore module.
package internal
