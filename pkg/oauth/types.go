package oauth

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultExpiryMargin is the default margin when checking token expiry.
// This accounts for clock skew and network latency so a token never expires
// mid-flight.
const DefaultExpiryMargin = 2 * time.Minute

// Clock supplies the current time. Injected so tests can simulate expiry
// deterministically instead of relying on the wall clock.
type Clock func() time.Time

// TokenSet is the result of a successful code exchange or refresh.
// A TokenSet is immutable once created; the broker replaces it wholesale and
// hands copies to callers.
type TokenSet struct {
	// AccessToken is the bearer token used for authorization.
	AccessToken string `json:"access_token"`

	// TokenType is typically "Bearer".
	TokenType string `json:"token_type,omitempty"`

	// RefreshToken is used to obtain new access tokens without interaction.
	// Never exposed across the IPC boundary.
	RefreshToken string `json:"-"`

	// IDToken is the OIDC identity token (if granted).
	IDToken string `json:"id_token,omitempty"`

	// Scope is the granted scope set, space-separated.
	Scope string `json:"scope,omitempty"`

	// ExpiresAt is when the access token expires.
	ExpiresAt time.Time `json:"expires_at,omitempty"`

	// ClientInfo is an opaque passthrough field some authorization servers
	// return alongside the token response. Optional, never parsed.
	ClientInfo string `json:"client_info,omitempty"`
}

// Scopes returns the granted scope set as a slice.
func (t *TokenSet) Scopes() []string {
	return strings.Fields(t.Scope)
}

// HasScopes reports whether every requested scope is present in the granted
// scope set (superset match). A partial match is a cache miss, not a partial
// success. Matching is case-sensitive per RFC 6749.
func (t *TokenSet) HasScopes(requested []string) bool {
	granted := make(map[string]struct{})
	for _, s := range t.Scopes() {
		granted[s] = struct{}{}
	}
	for _, s := range requested {
		if s == "" {
			continue
		}
		if _, ok := granted[s]; !ok {
			return false
		}
	}
	return true
}

// ExpiredAt reports whether the token is expired at the given instant,
// honoring a positive safety margin: true when at+margin >= ExpiresAt.
// Tokens without an expiry never expire.
func (t *TokenSet) ExpiredAt(at time.Time, margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !at.Add(margin).Before(t.ExpiresAt)
}

// Clone returns a copy of the token set. Callers receive clones so that the
// cache's authoritative value can never be mutated from outside.
func (t *TokenSet) Clone() *TokenSet {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ToOAuth2Token converts the TokenSet to an oauth2.Token for use with
// golang.org/x/oauth2 consumers.
func (t *TokenSet) ToOAuth2Token() *oauth2.Token {
	token := &oauth2.Token{
		AccessToken:  t.AccessToken,
		TokenType:    t.TokenType,
		RefreshToken: t.RefreshToken,
		Expiry:       t.ExpiresAt,
	}
	if t.IDToken != "" {
		token = token.WithExtra(map[string]interface{}{
			"id_token": t.IDToken,
		})
	}
	return token
}

// JoinScopes joins a scope set into the space-separated wire form, dropping
// empty entries and duplicates while preserving order.
func JoinScopes(scopes []string) string {
	seen := make(map[string]struct{}, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return strings.Join(out, " ")
}

// MergeScopes combines scope sets into one deduplicated slice.
func MergeScopes(sets ...[]string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, set := range sets {
		for _, s := range set {
			s = strings.TrimSpace(s)
			if s == "" {
				continue
			}
			if _, ok := seen[s]; ok {
				continue
			}
			seen[s] = struct{}{}
			out = append(out, s)
		}
	}
	return out
}

// Metadata represents the subset of the OIDC discovery document authgate
// needs, resolved once per authority.
type Metadata struct {
	// Issuer is the authorization server's issuer identifier.
	Issuer string `json:"issuer"`

	// AuthorizationEndpoint is the URL of the authorization endpoint.
	AuthorizationEndpoint string `json:"authorization_endpoint"`

	// TokenEndpoint is the URL of the token endpoint.
	TokenEndpoint string `json:"token_endpoint"`

	// JwksURI is the URL of the JSON Web Key Set.
	JwksURI string `json:"jwks_uri,omitempty"`

	// EndSessionEndpoint is the URL of the RP-initiated logout endpoint.
	EndSessionEndpoint string `json:"end_session_endpoint,omitempty"`

	// ScopesSupported lists the OAuth 2.0 scope values supported.
	ScopesSupported []string `json:"scopes_supported,omitempty"`

	// CodeChallengeMethodsSupported lists the PKCE code challenge methods.
	CodeChallengeMethodsSupported []string `json:"code_challenge_methods_supported,omitempty"`
}

// Validate checks that the document carries the endpoints the broker needs.
func (m *Metadata) Validate() error {
	if m.AuthorizationEndpoint == "" {
		return NewError(KindDiscovery, "", "discovery document is missing authorization_endpoint")
	}
	if m.TokenEndpoint == "" {
		return NewError(KindDiscovery, "", "discovery document is missing token_endpoint")
	}
	return nil
}

// SupportsPKCE returns true if the server advertises S256 PKCE support.
// If the document does not list challenge methods, S256 is assumed.
func (m *Metadata) SupportsPKCE() bool {
	for _, method := range m.CodeChallengeMethodsSupported {
		if method == "S256" {
			return true
		}
	}
	return len(m.CodeChallengeMethodsSupported) == 0
}
