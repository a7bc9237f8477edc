// Package stores provides the Redis-backed persistence for the roll-in
// lifecycle: the pending handshake keyspace, the session token keyspace,
// and two ancillary caches (profile blobs and the last QR prompt reference).
//
// # Design
//
// Pending handshakes persist as a versioned binary record. Session tokens
// persist as plain strings under an independent key. Promote and
// ClearPending use WATCH/MULTI optimistic transactions keyed on the pending
// record so a superseded roll-in can neither promote nor erase the newer
// one. Absent keys surface as not-found sentinels; only transport failures
// surface as ErrStoreUnavailable.
//
// # Architecture boundaries
//
// This package owns key layout and concurrency control for persisted
// state. It does NOT call the auth provider, notify users, or run polling
// loops; those responsibilities belong to internal/provider, internal/flows
// and internal/poll.
//
// # What this package must NOT do
//
//   - Import rollAuth or any sibling internal package.
//   - Log or expose session tokens.
//   - Hold an in-process copy of persisted state.
package stores
