package oauth

import (
	"errors"
	"fmt"
)

// Kind classifies an authentication error into the closed set of outcomes
// the broker can surface to callers.
type Kind int

const (
	// KindUnknown is the zero value and never constructed deliberately.
	KindUnknown Kind = iota

	// KindConfiguration indicates invalid client configuration. Fatal until
	// the caller fixes its setup.
	KindConfiguration

	// KindDiscovery indicates the OIDC discovery document was unreachable or
	// malformed. Safe to retry with backoff; never retried internally.
	KindDiscovery

	// KindTransport indicates a network-layer failure talking to the
	// authorization server. Safe to retry with backoff.
	KindTransport

	// KindUserCancelled indicates the user closed the login surface before
	// completing authentication. An expected outcome, not a bug.
	KindUserCancelled

	// KindStateMismatch indicates the state returned in the redirect did not
	// match the one sent. Security-relevant; never silently swallowed.
	KindStateMismatch

	// KindAuthorization indicates the authorization server returned an error
	// in the redirect (e.g. access_denied).
	KindAuthorization

	// KindTokenEndpoint indicates the token endpoint rejected the grant.
	KindTokenEndpoint

	// KindInteractionRequired indicates a silent flow cannot proceed without
	// user interaction. Callers should fall back to an interactive login.
	KindInteractionRequired

	// KindPersistence indicates the durable credential store failed. The
	// in-memory token set is unaffected; only future silent renewal degrades.
	KindPersistence

	// KindLoginInProgress indicates an interactive login is already pending
	// for this client identity.
	KindLoginInProgress

	// KindTimeout indicates a channel-level timeout, distinct from any
	// application error.
	KindTimeout
)

// String returns the wire error code used for the kind when no more specific
// OAuth code is available.
func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "invalid_configuration"
	case KindDiscovery:
		return "discovery_failed"
	case KindTransport:
		return "transport_error"
	case KindUserCancelled:
		return "user_cancelled"
	case KindStateMismatch:
		return "invalid_state"
	case KindAuthorization:
		return "authorization_error"
	case KindTokenEndpoint:
		return "token_endpoint_error"
	case KindInteractionRequired:
		return "interaction_required"
	case KindPersistence:
		return "persistence_error"
	case KindLoginInProgress:
		return "login_in_progress"
	case KindTimeout:
		return "timeout"
	default:
		return "unknown_error"
	}
}

// Error is the typed authentication error used throughout authgate.
// Code and Description carry the OAuth wire fields when the error originated
// from the authorization server; the remaining fields are optional
// diagnostics passed through from the token endpoint response body.
type Error struct {
	Kind        Kind
	Code        string
	Description string

	// Diagnostic passthrough from the token endpoint, if present.
	ErrorCodes    []int
	Timestamp     string
	TraceID       string
	CorrelationID string

	err error
}

// NewError creates an error of the given kind with an OAuth wire code and
// human-readable description. An empty code defaults to the kind's code.
func NewError(kind Kind, code, description string) *Error {
	if code == "" {
		code = kind.String()
	}
	return &Error{Kind: kind, Code: code, Description: description}
}

// WrapError creates an error of the given kind wrapping an underlying cause.
func WrapError(kind Kind, description string, err error) *Error {
	return &Error{Kind: kind, Code: kind.String(), Description: description, err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Code
	if e.Description != "" {
		msg += ": " + e.Description
	}
	if e.err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.err)
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.err
}

// Is reports whether target matches this error. Two *Errors match when their
// kinds are equal and the target's code is empty or equal. This makes
// errors.Is(err, &Error{Kind: KindUserCancelled}) work as a kind check.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Kind != e.Kind {
		return false
	}
	return t.Code == "" || t.Code == e.Code
}

// KindOf extracts the Kind from an error chain. Returns KindUnknown when the
// chain contains no *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsKind reports whether the error chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// RedirectError converts an error carried in an authorization redirect into
// a typed error. prompt=none refusals (login_required and friends) map to
// KindInteractionRequired so silent flows fall back cleanly; everything else
// is a KindAuthorization error surfaced verbatim.
func RedirectError(code, description string) *Error {
	kind := KindAuthorization
	switch code {
	case "interaction_required", "login_required", "consent_required", "account_selection_required":
		kind = KindInteractionRequired
	}
	return &Error{Kind: kind, Code: code, Description: description}
}

// kindForWireCode maps an OAuth error code from the token endpoint to a Kind.
// The interaction-required family is distinguished so callers can fall back
// to an interactive login instead of retrying silently.
func kindForWireCode(code string) Kind {
	switch code {
	case "interaction_required", "login_required", "consent_required":
		return KindInteractionRequired
	default:
		return KindTokenEndpoint
	}
}
