// Package permcache implements the deduplicating fetch layer in front of the
// remote permission source.
//
// # Guarantees
//
//   - At most one remote call is in flight per identity id; concurrent
//     callers for the same id share that call's outcome.
//   - A failed fetch rejects to every waiter and leaves nothing cached, so
//     the next call retries instead of replaying the failure.
//   - Successful results are cached with a TTL; callers receive independent
//     copies.
//
// # Architecture boundaries
//
// This package owns deduplication and result caching. It does NOT apply
// fallback policy on failure — callers decide whether to degrade to the
// last-known permission set.
package permcache
