// Package broker implements the authentication orchestrator: the façade that
// coordinates OIDC discovery, PKCE generation, the interactive login
// surface, token exchange, and the token cache behind four operations:
//
//	Init                validate config, warm discovery, load the persisted credential
//	Login               interactive PKCE flow, short-circuited by a satisfying cached token
//	AcquireTokenSilent  refresh-token renewal without any visible surface
//	GetAccount          identity claims from the current ID token, no network I/O
//
// The broker owns the only mutable shared state (the token cache) and
// serializes the flows around it: at most one interactive login may be in
// progress, and concurrent silent refreshes for the same client identity
// collapse into a single token endpoint call via singleflight, because some
// authorization servers revoke the refresh-token family when a token is
// used twice.
//
// A cached token satisfies a request only if every requested scope is in the
// granted set (superset match); a partial match is a cache miss, not a
// partial success.
package broker
