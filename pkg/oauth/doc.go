// Package oauth implements the OAuth 2.0 / OIDC protocol layer of authgate.
//
// This package provides the pieces of the authorization code + PKCE flow that
// do not depend on any user-facing surface:
//   - PKCE verifier/challenge generation and state/nonce generation
//   - OIDC discovery document resolution with per-authority caching
//   - Token endpoint requests (authorization code and refresh token grants)
//   - The shared TokenSet type with scope matching and expiry checks
//   - The closed error taxonomy used across the broker
//
// # Discovery
//
// The Resolver fetches /.well-known/openid-configuration once per authority
// and caches the result for the process lifetime. Concurrent resolutions for
// the same authority are deduplicated with singleflight.
//
// # Token exchange
//
// The Exchanger POSTs form-encoded grants to the token endpoint and never
// retries: an authorization code is one-time-use and the server does not
// guarantee idempotency. Error bodies are surfaced as typed errors;
// interaction_required-class codes are mapped to KindInteractionRequired so
// callers know to fall back to an interactive login.
//
// # Security
//
// PKCE verifiers, state, nonce, and raw token material never appear in error
// messages or log output.
package oauth
