// Package account defines the user record and the storage contract shared by
// the engine, the internal flows and the store implementations.
//
// # Architecture boundaries
//
// account is a leaf package: it imports nothing from this module. Stores
// (store/redisstore, store/pgstore) and the root package both depend on it,
// which keeps store tests and engine tests free of import cycles.
//
// # Atomicity contract
//
// Store.Update runs a read-modify-write of one account. The [Mutation] may
// return revocations; the store must persist the account fields and the
// revocations together or not at all, so a lockout escalation can never be
// recorded without the triggering token also being revoked.
package account
