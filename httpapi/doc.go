// Package httpapi is the inbound transport for chat events. A chat gateway forwards
// start_auth, new_token, logout, profile and check_proto events as HTTP requests carrying
// a bearer token that names the chat user; the handler verifies it and drives the Engine.
//
// Responses report how the synchronous part of each event ended. All user-facing output
// goes through the Engine's Notifier, never through these responses.
package httpapi
