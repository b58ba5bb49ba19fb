package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock(at time.Time) Clock {
	return func() time.Time { return at }
}

func TestExchangeCode(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"access_token": "AT1",
			"token_type": "Bearer",
			"expires_in": 3600,
			"scope": "openid profile",
			"refresh_token": "RT1",
			"id_token": "IDT1"
		}`))
	}))
	defer server.Close()

	exchanger := NewExchanger("client-1", server.Client(), fixedClock(now))
	ts, err := exchanger.ExchangeCode(context.Background(), server.URL,
		"code-xyz", "verifier-abc", "http://localhost:9100/callback", []string{"openid", "profile"})
	require.NoError(t, err)

	assert.Equal(t, "client-1", form.Get("client_id"))
	assert.Equal(t, "authorization_code", form.Get("grant_type"))
	assert.Equal(t, "code-xyz", form.Get("code"))
	assert.Equal(t, "verifier-abc", form.Get("code_verifier"))
	assert.Equal(t, "http://localhost:9100/callback", form.Get("redirect_uri"))
	assert.Equal(t, "openid profile", form.Get("scope"))

	assert.Equal(t, "AT1", ts.AccessToken)
	assert.Equal(t, "Bearer", ts.TokenType)
	assert.Equal(t, "RT1", ts.RefreshToken)
	assert.Equal(t, "IDT1", ts.IDToken)
	assert.Equal(t, "openid profile", ts.Scope)
	assert.Equal(t, now.Add(time.Hour), ts.ExpiresAt)
}

func TestExchangeRefreshToken(t *testing.T) {
	var form url.Values
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Write([]byte(`{"access_token": "AT2", "expires_in": 1800}`))
	}))
	defer server.Close()

	exchanger := NewExchanger("client-1", server.Client(), nil)
	ts, err := exchanger.ExchangeRefreshToken(context.Background(), server.URL,
		"RT1", []string{"openid"})
	require.NoError(t, err)

	assert.Equal(t, "refresh_token", form.Get("grant_type"))
	assert.Equal(t, "RT1", form.Get("refresh_token"))
	assert.Empty(t, form.Get("code"))

	assert.Equal(t, "AT2", ts.AccessToken)
	// The server did not echo a scope, so the requested set stands in.
	assert.Equal(t, "openid", ts.Scope)
	// Nor a refresh token: the caller decides whether to keep the old one.
	assert.Empty(t, ts.RefreshToken)
}

func TestExchangeErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{
			"error": "invalid_grant",
			"error_description": "the code has expired",
			"error_codes": [70008],
			"trace_id": "trace-1",
			"correlation_id": "corr-1"
		}`))
	}))
	defer server.Close()

	exchanger := NewExchanger("client-1", server.Client(), nil)
	_, err := exchanger.ExchangeCode(context.Background(), server.URL,
		"code", "verifier", "http://localhost/cb", nil)
	require.Error(t, err)

	var oe *Error
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, KindTokenEndpoint, oe.Kind)
	assert.Equal(t, "invalid_grant", oe.Code)
	assert.Equal(t, "the code has expired", oe.Description)
	assert.Equal(t, []int{70008}, oe.ErrorCodes)
	assert.Equal(t, "trace-1", oe.TraceID)
	assert.Equal(t, "corr-1", oe.CorrelationID)
}

func TestExchangeInteractionRequired(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "interaction_required", "error_description": "sign in again"}`))
	}))
	defer server.Close()

	exchanger := NewExchanger("client-1", server.Client(), nil)
	_, err := exchanger.ExchangeRefreshToken(context.Background(), server.URL, "RT1", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindInteractionRequired))
}

func TestExchangeNoAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token_type": "Bearer"}`))
	}))
	defer server.Close()

	exchanger := NewExchanger("client-1", server.Client(), nil)
	_, err := exchanger.ExchangeCode(context.Background(), server.URL,
		"code", "verifier", "http://localhost/cb", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTokenEndpoint))
}

func TestExchangeMalformedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json"))
	}))
	defer server.Close()

	exchanger := NewExchanger("client-1", server.Client(), nil)
	_, err := exchanger.ExchangeCode(context.Background(), server.URL,
		"code", "verifier", "http://localhost/cb", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTokenEndpoint))
}

func TestExchangeTransportFailure(t *testing.T) {
	exchanger := NewExchanger("client-1", &http.Client{}, nil)
	_, err := exchanger.ExchangeCode(context.Background(), "http://127.0.0.1:1/token",
		"code", "verifier", "http://localhost/cb", nil)
	require.Error(t, err)
	assert.True(t, IsKind(err, KindTransport))
}

func TestExchangeErrorNeverCarriesSecrets(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": "invalid_grant", "error_description": "rejected"}`))
	}))
	defer server.Close()

	exchanger := NewExchanger("client-1", server.Client(), nil)
	_, err := exchanger.ExchangeCode(context.Background(), server.URL,
		"code-secret", "verifier-secret", "http://localhost/cb", nil)
	require.Error(t, err)

	assert.NotContains(t, err.Error(), "verifier-secret")
	assert.NotContains(t, err.Error(), "code-secret")
}
