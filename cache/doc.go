// Package cache provides the Redis-backed persistent key-value surface used to
// carry the last-known identity and permission set across process restarts.
//
// # Trust model
//
// The cache is an optimization, never a source of truth: a failed read is
// treated identically to an absent value, records past the staleness window
// are reported as absent, and a cached identity can inform who the user is
// but never whether they are logged in.
//
// # Key layout
//
//	<prefix>:identity        serialized identity record
//	<prefix>:permissions     serialized permission record
//	<prefix>:t:<key>         transient session-scoped entries
//
// # Architecture boundaries
//
// This package owns Redis operations and record (de)serialization. It does
// NOT decide staleness policy inputs, role fallbacks, or when records are
// invalidated — those responsibilities belong to the Engine.
//
// # What this package must NOT do
//
//   - Import authstate (no upward imports).
//   - Treat its contents as authoritative authentication state.
//   - Surface read failures as anything other than absence to callers that
//     asked for a record.
package cache
