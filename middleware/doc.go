// Package middleware exposes the HTTP middleware that sits in front of the rollAuth
// event handlers.
//
// # Guards
//
//   - [Guard] verifies the gateway bearer token and injects its claims.
//   - [RequireOwner] admits only users listed as bot owners.
//   - [RequestContext] tags the request with a request id and client IP for audit.
//
// # What this package must NOT do
//
//   - Call the Engine or touch Redis.
//   - Decide anything beyond pass or reject for a request.
package middleware
