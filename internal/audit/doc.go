// Package audit dispatches roll-in lifecycle events asynchronously.
//
// # Components
//
//   - [Sink]: event consumer (channel, JSON lines, slog, fan-out, no-op).
//   - [Dispatcher]: buffered relay with drop-if-full / block-if-full semantics.
//   - [Event]: record with id, timestamp, type, user, attempts and metadata.
//
// # Architecture boundaries
//
// This package owns buffering and sink delivery. Which events exist and when
// they fire is decided by the engine.
//
// # What this package must NOT do
//
//   - Filter events based on business logic.
//   - Import rollAuth or any sibling internal package.
//   - Record session or handshake tokens.
package audit
