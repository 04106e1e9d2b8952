// Package password implements password hashing and verification with Argon2id defaults.
//
// # Output format
//
// Hashes are encoded in PHC string format:
//
//	$argon2id$v=19$m=<memory>,t=<time>,p=<threads>$<salt>$<hash>
//
// Digests imported from earlier deployments in bcrypt form ($2a$, $2b$, $2y$)
// still verify. [Argon2.NeedsUpgrade] reports true for them, and for Argon2id
// digests produced with weaker parameters, so the caller can re-hash on the
// next successful login.
//
// # Failure behavior
//
// [Argon2.Verify] returns a bool and never errors. A digest that cannot be
// parsed still costs one Argon2id computation before false is returned.
//
// # What this package must NOT do
//
//   - Store or retrieve passwords. Callers supply plaintext and receive hashes.
//   - Import any other package of this module.
//   - Log plaintext passwords or hash parameters at runtime.
package password
