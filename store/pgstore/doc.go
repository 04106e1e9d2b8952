// Package pgstore implements account.Store on PostgreSQL through the pgx
// database/sql driver.
//
// Update serializes concurrent flows on one account with SELECT ... FOR
// UPDATE inside a transaction, and inserts revocations before COMMIT so a
// lockout escalation and its token revocation land together. Revoked tokens
// are stored by SHA-256 digest with the token's own expiry; PurgeRevoked
// removes entries whose token can no longer verify anyway.
//
// Schema changes ship as embedded goose migrations applied by [Migrate].
package pgstore
