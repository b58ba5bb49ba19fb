package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authgate/pkg/logging"
)

// Exchanger converts authorization codes and refresh tokens into token sets
// via the token endpoint.
//
// The exchanger never retries: an authorization code is one-time-use and the
// server does not guarantee idempotency of the grant.
type Exchanger struct {
	clientID   string
	httpClient *http.Client
	now        Clock
}

// NewExchanger creates a token exchanger for the given public client.
// A nil httpClient uses a default client with DefaultHTTPTimeout; a nil clock
// uses time.Now.
func NewExchanger(clientID string, httpClient *http.Client, now Clock) *Exchanger {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if now == nil {
		now = time.Now
	}
	return &Exchanger{clientID: clientID, httpClient: httpClient, now: now}
}

// ExchangeCode exchanges an authorization code for a token set using the
// PKCE verifier generated for the attempt.
func (e *Exchanger) ExchangeCode(ctx context.Context, tokenEndpoint, code, codeVerifier, redirectURI string, scopes []string) (*TokenSet, error) {
	form := url.Values{
		"client_id":     {e.clientID},
		"grant_type":    {"authorization_code"},
		"scope":         {JoinScopes(scopes)},
		"code":          {code},
		"redirect_uri":  {redirectURI},
		"code_verifier": {codeVerifier},
	}
	return e.doTokenRequest(ctx, tokenEndpoint, form, scopes)
}

// ExchangeRefreshToken obtains a fresh token set using a refresh token.
func (e *Exchanger) ExchangeRefreshToken(ctx context.Context, tokenEndpoint, refreshToken string, scopes []string) (*TokenSet, error) {
	form := url.Values{
		"client_id":     {e.clientID},
		"grant_type":    {"refresh_token"},
		"scope":         {JoinScopes(scopes)},
		"refresh_token": {refreshToken},
	}
	return e.doTokenRequest(ctx, tokenEndpoint, form, scopes)
}

// tokenResponse is the token endpoint response body: either a token grant or
// an OAuth error, distinguished by the error field.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	Scope        string `json:"scope"`
	RefreshToken string `json:"refresh_token"`
	IDToken      string `json:"id_token"`
	ClientInfo   string `json:"client_info"`

	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCodes       []int  `json:"error_codes"`
	Timestamp        string `json:"timestamp"`
	TraceID          string `json:"trace_id"`
	CorrelationID    string `json:"correlation_id"`
}

// doTokenRequest performs one POST to the token endpoint and interprets the
// response.
func (e *Exchanger) doTokenRequest(ctx context.Context, tokenEndpoint string, form url.Values, requestedScopes []string) (*TokenSet, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, WrapError(KindTransport, "failed to create token request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, WrapError(KindTransport, "token request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, WrapError(KindTransport, "failed to read token response", err)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, WrapError(KindTokenEndpoint, "malformed token response", err)
	}

	if tr.Error != "" {
		logging.Debug("Exchange", "Token endpoint rejected %s grant: %s",
			form.Get("grant_type"), tr.Error)
		return nil, &Error{
			Kind:          kindForWireCode(tr.Error),
			Code:          tr.Error,
			Description:   tr.ErrorDescription,
			ErrorCodes:    tr.ErrorCodes,
			Timestamp:     tr.Timestamp,
			TraceID:       tr.TraceID,
			CorrelationID: tr.CorrelationID,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(KindTokenEndpoint, "",
			"token request failed with status "+resp.Status)
	}
	if tr.AccessToken == "" {
		return nil, NewError(KindTokenEndpoint, "", "token response carries no access token")
	}

	ts := &TokenSet{
		AccessToken:  tr.AccessToken,
		TokenType:    tr.TokenType,
		RefreshToken: tr.RefreshToken,
		IDToken:      tr.IDToken,
		Scope:        tr.Scope,
		ClientInfo:   tr.ClientInfo,
	}
	// Servers are not required to echo the granted scope; assume the request
	// was honored as asked so superset matching keeps working.
	if ts.Scope == "" {
		ts.Scope = JoinScopes(requestedScopes)
	}
	if tr.ExpiresIn > 0 {
		ts.ExpiresAt = e.now().Add(time.Duration(tr.ExpiresIn) * time.Second)
	}

	return ts, nil
}
