// Package ipc exposes the broker to the unprivileged caller process over a
// named-route request/response channel.
//
// The wire format is newline-delimited JSON over a unix-domain socket. Each
// request carries a correlation id, a route name, and an opaque JSON
// payload; each response echoes the id with either a result or an error
// payload of the form {error, error_description}. Calls on one connection
// may overlap; responses are matched by id, not by order.
//
// Every dispatch runs under a per-call timeout. A call that exceeds it fails
// with the channel-level {"error": "timeout"} payload, which is distinct
// from any application error so callers can tell a stuck flow from a
// rejected one.
//
// Routes:
//
//	auth-init            ClientConfig -> empty
//	auth-login           {scopes, extraScopes?, promptHint?, loginHint?} -> TokenSet (public fields)
//	auth-acquire-silent  {scopes} -> TokenSet (public fields)
//	auth-get-account     empty -> identity claims or empty
//	auth-logout          empty -> empty
//
// Refresh tokens never cross this boundary: the TokenSet serialization
// excludes them.
package ipc
