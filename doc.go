// Package authstate provides a client-side session and permission
// reconciliation engine over three independently-updating sources: a remote
// identity provider (asynchronous, transiently failing), a persisted local
// cache (synchronous, possibly stale), and a remote permission set
// (asynchronous, optional, allowed to fail without invalidating
// authentication).
//
// The engine bootstraps once against the provider with bounded retry and a
// hard timeout, then reconciles ordered provider events into a single
// observable [AuthState] snapshot, enriching it in the background with
// deduplicated permission fetches.
//
// # Architecture boundaries
//
// authstate is the public surface. It exposes [Engine], [Builder], [Config],
// the [SessionProvider] and [PermissionSource] contracts, and value types.
// Storage, state holding, claim reading, and fetch deduplication live in the
// cache, state, claims, and permcache packages; audit dispatch lives under
// internal/.
//
// # What this package must NOT do
//
//   - Verify credentials or issue tokens (the remote provider owns both).
//   - Treat cached data as proof of authentication: the cache informs who,
//     never whether-logged-in.
//   - Let a background failure freeze or corrupt the observed [AuthState];
//     background paths log and degrade, only caller-invoked operations
//     return errors.
//
// # Consistency contract
//
// AuthState is replaced wholesale on every write; readers always see a
// complete snapshot. Provider events are reconciled strictly in emission
// order, and in-flight permission fetches are tagged with the identity and
// generation they were issued for so a stale completion can never overwrite
// a newer sign-out or sign-in.
package authstate
