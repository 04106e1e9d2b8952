// Package security summarizes the effective security posture of an engine
// configuration for operators.
//
// # What this package must NOT do
//
//   - Read secrets into the report. Only parameters and toggles are exposed.
package security
