// Package login drives the user-facing browser surface through the
// authorization redirect and captures the callback.
//
// The controller runs a small state machine per login attempt:
//
//	StateIdle -> StateOpened -> StateRedirected -> StateCompleted
//
// with two terminal failure paths: StateCancelled when the surface is closed
// (or the attempt cancelled) before a matching redirect arrives, and
// StateFailed when the captured redirect carries an error parameter or the
// state parameter does not match the one generated for the attempt.
//
// Interactive attempts open the system browser and capture the redirect with
// a loopback HTTP listener bound to the configured redirect URI. Silent
// attempts (prompt=none) never show a surface: the authorization URL is
// navigated by an HTTP client that stops at the first redirect matching the
// redirect URI prefix, and a bounded timeout surfaces as
// interaction_required instead of hanging.
//
// Exactly one attempt may be in flight at a time; a concurrent Run fails
// fast with login_in_progress rather than racing on shared attempt state.
package login
