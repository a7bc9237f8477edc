// Package rate throttles inbound roll-in requests per user.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefix:
//   - rs: start_auth per-user
//
// # What this package must NOT do
//
//   - Decide what a throttled user is told (the roll-in flow owns that).
//   - Be imported outside the rollAuth module.
package rate
