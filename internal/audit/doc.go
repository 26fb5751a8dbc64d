// Package audit implements async event dispatching for identity-state
// transitions and their background outcomes.
//
// # Components
//
//   - [Sink] — interface for event consumers (channel, JSON writer, no-op).
//   - [Event] — structured record with a uuid event id, transition type,
//     identity id, phase, and metadata.
//
// # Architecture boundaries
//
// This package owns event modeling and sink delivery. It does NOT decide
// which transitions to record — that responsibility belongs to the Engine.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Import authstate or any sibling package.
//   - Perform network I/O beyond what a caller-supplied Sink does.
package audit
