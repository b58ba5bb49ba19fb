package oauth

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorIsMatchesByKind(t *testing.T) {
	err := NewError(KindUserCancelled, "", "login surface closed")

	assert.True(t, errors.Is(err, &Error{Kind: KindUserCancelled}))
	assert.False(t, errors.Is(err, &Error{Kind: KindAuthorization}))

	// A target with a code only matches the same code.
	denied := RedirectError("access_denied", "the user declined")
	assert.True(t, errors.Is(denied, &Error{Kind: KindAuthorization, Code: "access_denied"}))
	assert.False(t, errors.Is(denied, &Error{Kind: KindAuthorization, Code: "server_error"}))
}

func TestKindOfThroughWrapping(t *testing.T) {
	inner := NewError(KindPersistence, "", "keychain write failed")
	wrapped := fmt.Errorf("storing credential: %w", inner)

	assert.Equal(t, KindPersistence, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindPersistence))
	assert.Equal(t, KindUnknown, KindOf(errors.New("plain")))
}

func TestNewErrorDefaultsCode(t *testing.T) {
	err := NewError(KindStateMismatch, "", "response did not match the pending request")
	assert.Equal(t, "invalid_state", err.Code)

	err = NewError(KindTokenEndpoint, "invalid_grant", "")
	assert.Equal(t, "invalid_grant", err.Code)
}

func TestWrapErrorUnwraps(t *testing.T) {
	cause := errors.New("connection refused")
	err := WrapError(KindTransport, "token request failed", cause)

	require.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "transport_error")
	assert.Contains(t, err.Error(), "connection refused")
}

func TestRedirectError(t *testing.T) {
	tests := []struct {
		code string
		kind Kind
	}{
		{"access_denied", KindAuthorization},
		{"server_error", KindAuthorization},
		{"interaction_required", KindInteractionRequired},
		{"login_required", KindInteractionRequired},
		{"consent_required", KindInteractionRequired},
		{"account_selection_required", KindInteractionRequired},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := RedirectError(tt.code, "desc")
			assert.Equal(t, tt.kind, err.Kind)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, "desc", err.Description)
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "user_cancelled", KindUserCancelled.String())
	assert.Equal(t, "invalid_state", KindStateMismatch.String())
	assert.Equal(t, "interaction_required", KindInteractionRequired.String())
	assert.Equal(t, "login_in_progress", KindLoginInProgress.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "unknown_error", KindUnknown.String())
}
