// Package state owns the engine's single shared mutable resource: the current
// [AuthState] snapshot and its subscriber registry.
//
// # Snapshot discipline
//
// AuthState is replaced wholesale on every write and handed to readers as an
// independent copy. Readers never observe a partially-applied update, and a
// snapshot obtained from [Store.Snapshot] stays valid after later writes.
//
// # Architecture boundaries
//
// This package owns state storage and change notification. It does NOT decide
// what the next state should be — reconciliation policy belongs to the Engine.
//
// # What this package must NOT do
//
//   - Import authstate or any sibling package (no upward imports).
//   - Perform I/O of any kind.
//   - Block a writer on a slow subscriber.
package state
