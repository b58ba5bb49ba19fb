package oauth

import (
	"crypto/sha256"
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeneratePKCE(t *testing.T) {
	challenge, err := GeneratePKCE()
	require.NoError(t, err)

	assert.Equal(t, "S256", challenge.CodeChallengeMethod)
	assert.NotEmpty(t, challenge.CodeVerifier)
	assert.NotEmpty(t, challenge.CodeChallenge)

	// 32 random bytes encode to 43 base64url characters.
	assert.Len(t, challenge.CodeVerifier, 43)

	// The challenge must be the S256 hash of the verifier.
	hash := sha256.Sum256([]byte(challenge.CodeVerifier))
	expected := base64.RawURLEncoding.EncodeToString(hash[:])
	assert.Equal(t, expected, challenge.CodeChallenge)
}

func TestGeneratePKCEUnique(t *testing.T) {
	first, err := GeneratePKCE()
	require.NoError(t, err)
	second, err := GeneratePKCE()
	require.NoError(t, err)

	assert.NotEqual(t, first.CodeVerifier, second.CodeVerifier)
	assert.NotEqual(t, first.CodeChallenge, second.CodeChallenge)
}

func TestGenerateStateAndNonce(t *testing.T) {
	state, err := GenerateState()
	require.NoError(t, err)
	nonce, err := GenerateNonce()
	require.NoError(t, err)

	assert.Len(t, state, 43)
	assert.Len(t, nonce, 43)
	assert.NotEqual(t, state, nonce)

	// Values must not repeat across attempts.
	state2, err := GenerateState()
	require.NoError(t, err)
	assert.NotEqual(t, state, state2)
}

func TestGeneratedValuesAreURLSafe(t *testing.T) {
	state, err := GenerateState()
	require.NoError(t, err)

	_, err = base64.RawURLEncoding.DecodeString(state)
	assert.NoError(t, err)
}
