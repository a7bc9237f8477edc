// Package jwt verifies the bearer tokens a chat gateway attaches to the events it
// forwards, so the HTTP transport knows which chat user an event belongs to.
package jwt
