// Package rollAuth manages the chat-bot side of a QR roll-in handshake with a banking
// auth provider: it takes a user from "no session" through "pending roll-in" to
// "authenticated" or "expired", and keeps the resulting session token in Redis.
//
// The package is designed for concurrent bot workloads: Engine methods are safe to call
// from multiple goroutines after initialization through [Builder.Build].
//
// # Architecture boundaries
//
// rollAuth is the public surface. It exposes [Engine], [Builder], [Config], and value types
// (RollInResult, AuthStatus, MetricsSnapshot, etc.). Internal coordination (flow
// orchestration, the poll supervisor, the provider client, Redis stores, throttling and audit
// dispatch) lives under internal/ and is never exported.
//
// # What this package must NOT do
//
//   - Expose Redis clients, internal stores, or session tokens in its public API.
//   - Show a QR prompt for a handshake it could not persist as pending.
//   - Run two poll tasks for the same user at the same time.
//   - Perform I/O outside of Engine methods (construction via Builder is allocation-only
//     until Build).
//
// # Polling contract
//
// StartAuth returns as soon as the QR prompt is sent. The poll task it starts makes at
// most Config.Polling.MaxAttempts exchange calls, Config.Polling.Interval apart, and ends
// in exactly one of succeeded, cancelled, exhausted or failed. A cancelled task never
// notifies the user.
package rollAuth
