// Package provider is the HTTP client for the remote auth provider.
//
// # Design
//
// The provider speaks a small JSON protocol:
//
//	GET  /roll-in         -> handshake token, claim URL, QR payload
//	POST /exchange-token  -> session token once the user has claimed the handshake
//	GET  /client-info     -> account holder profile (X-Token header)
//	GET  /check-proto     -> protocol descriptor
//
// Each call is bounded by Config.Timeout and surfaces exactly one sentinel
// error per operation so callers can branch with errors.Is.
//
// # Architecture boundaries
//
// The client is stateless. It never touches Redis and never retries; the
// polling supervisor owns retry cadence and the flows own persistence.
//
// # What this package must NOT do
//
//   - Log tokens or profile data.
//   - Distinguish "declined" from "still pending" on exchange.
package provider
