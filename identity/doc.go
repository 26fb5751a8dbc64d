// Package identity holds the shared identity, session, and provider-event models
// consumed by the reconciliation engine and its storage layers.
//
// # Architecture boundaries
//
// This package owns plain value types only. It does NOT talk to the remote
// provider, read or write the persistent cache, or make authentication
// decisions — those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authstate or any sibling package (no upward imports).
//   - Carry mutable shared state.
//   - Interpret token contents (claim extraction lives in the claims package).
package identity
