// Package poll supervises the per-user loop that waits for a roll-in
// handshake to complete.
//
// # Single-flight
//
// The [Supervisor] keeps one task per user in a mutex-guarded map. Start
// cancels and replaces any live task; the replacement blocks until the old
// task has returned, so two tasks for the same user never exchange at the
// same time. Cancellation is cooperative and checked around every exchange.
//
// # Terminal outcomes
//
// Every task ends in exactly one [Outcome]. Succeeded, Exhausted and Failed
// fire the matching callback once; Cancelled fires none. Promotion goes
// through the store's guarded Promote, so a task whose handshake is no
// longer pending finishes as Cancelled even if the provider returned a token.
package poll
