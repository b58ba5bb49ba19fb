package oauth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenSetHasScopes(t *testing.T) {
	tests := []struct {
		name      string
		granted   string
		requested []string
		want      bool
	}{
		{
			name:      "exact match",
			granted:   "openid profile",
			requested: []string{"openid", "profile"},
			want:      true,
		},
		{
			name:      "superset match",
			granted:   "openid profile offline_access",
			requested: []string{"profile"},
			want:      true,
		},
		{
			name:      "partial match is a miss",
			granted:   "openid",
			requested: []string{"openid", "user.read"},
			want:      false,
		},
		{
			name:      "empty request always matches",
			granted:   "openid",
			requested: nil,
			want:      true,
		},
		{
			name:      "case sensitive",
			granted:   "User.Read",
			requested: []string{"user.read"},
			want:      false,
		},
		{
			name:      "empty requested entries are ignored",
			granted:   "openid",
			requested: []string{"", "openid"},
			want:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := &TokenSet{Scope: tt.granted}
			assert.Equal(t, tt.want, ts.HasScopes(tt.requested))
		})
	}
}

func TestTokenSetExpiredAt(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		expiresAt time.Time
		margin    time.Duration
		want      bool
	}{
		{
			name:      "well before expiry",
			expiresAt: now.Add(time.Hour),
			margin:    2 * time.Minute,
			want:      false,
		},
		{
			name:      "inside the margin counts as expired",
			expiresAt: now.Add(time.Minute),
			margin:    2 * time.Minute,
			want:      true,
		},
		{
			name:      "already past expiry",
			expiresAt: now.Add(-time.Minute),
			margin:    0,
			want:      true,
		},
		{
			name:      "exactly at expiry",
			expiresAt: now,
			margin:    0,
			want:      true,
		},
		{
			name:      "no expiry never expires",
			expiresAt: time.Time{},
			margin:    2 * time.Minute,
			want:      false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := &TokenSet{ExpiresAt: tt.expiresAt}
			assert.Equal(t, tt.want, ts.ExpiredAt(now, tt.margin))
		})
	}
}

func TestTokenSetClone(t *testing.T) {
	original := &TokenSet{
		AccessToken:  "at",
		RefreshToken: "rt",
		Scope:        "openid",
		ExpiresAt:    time.Now().Add(time.Hour),
	}

	clone := original.Clone()
	require.NotSame(t, original, clone)
	assert.Equal(t, original, clone)

	clone.AccessToken = "changed"
	assert.Equal(t, "at", original.AccessToken)

	var nilSet *TokenSet
	assert.Nil(t, nilSet.Clone())
}

func TestTokenSetToOAuth2Token(t *testing.T) {
	expiry := time.Now().Add(time.Hour)
	ts := &TokenSet{
		AccessToken:  "at",
		TokenType:    "Bearer",
		RefreshToken: "rt",
		IDToken:      "idt",
		ExpiresAt:    expiry,
	}

	token := ts.ToOAuth2Token()
	assert.Equal(t, "at", token.AccessToken)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.Equal(t, "rt", token.RefreshToken)
	assert.Equal(t, expiry, token.Expiry)
	assert.Equal(t, "idt", token.Extra("id_token"))
}

func TestJoinScopes(t *testing.T) {
	assert.Equal(t, "openid profile", JoinScopes([]string{"openid", "profile"}))
	assert.Equal(t, "openid", JoinScopes([]string{"openid", "openid", ""}))
	assert.Equal(t, "", JoinScopes(nil))
	assert.Equal(t, "a b", JoinScopes([]string{" a ", "b"}))
}

func TestMergeScopes(t *testing.T) {
	merged := MergeScopes([]string{"openid", "profile"}, []string{"profile", "user.read"})
	assert.Equal(t, []string{"openid", "profile", "user.read"}, merged)

	assert.Nil(t, MergeScopes(nil, nil))
}

func TestMetadataValidate(t *testing.T) {
	valid := &Metadata{
		AuthorizationEndpoint: "https://issuer/authorize",
		TokenEndpoint:         "https://issuer/token",
	}
	assert.NoError(t, valid.Validate())

	missingAuthz := &Metadata{TokenEndpoint: "https://issuer/token"}
	err := missingAuthz.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDiscovery))

	missingToken := &Metadata{AuthorizationEndpoint: "https://issuer/authorize"}
	err = missingToken.Validate()
	require.Error(t, err)
	assert.True(t, IsKind(err, KindDiscovery))
}

func TestMetadataSupportsPKCE(t *testing.T) {
	assert.True(t, (&Metadata{}).SupportsPKCE())
	assert.True(t, (&Metadata{CodeChallengeMethodsSupported: []string{"plain", "S256"}}).SupportsPKCE())
	assert.False(t, (&Metadata{CodeChallengeMethodsSupported: []string{"plain"}}).SupportsPKCE())
}
