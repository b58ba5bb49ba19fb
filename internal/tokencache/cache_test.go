package tokencache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"authgate/pkg/oauth"
)

func fixedClock(at time.Time) oauth.Clock {
	return func() time.Time { return at }
}

func TestCacheCurrentReturnsCopy(t *testing.T) {
	cache := New("client-1", NewMemoryStore(), nil)
	require.Nil(t, cache.Current())

	require.NoError(t, cache.Store(&oauth.TokenSet{AccessToken: "at"}))

	got := cache.Current()
	require.NotNil(t, got)
	got.AccessToken = "mutated"

	assert.Equal(t, "at", cache.Current().AccessToken)
}

func TestCacheIsExpired(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	cache := New("client-1", NewMemoryStore(), fixedClock(now))

	// Empty cache counts as expired.
	assert.True(t, cache.IsExpired(0))

	require.NoError(t, cache.Store(&oauth.TokenSet{
		AccessToken: "at",
		ExpiresAt:   now.Add(time.Hour),
	}))
	assert.False(t, cache.IsExpired(2*time.Minute))
	assert.True(t, cache.IsExpired(2*time.Hour))
}

func TestCacheStorePersistsRefreshToken(t *testing.T) {
	store := NewMemoryStore()
	cache := New("client-1", store, nil)

	require.NoError(t, cache.Store(&oauth.TokenSet{
		AccessToken:  "at",
		RefreshToken: "rt",
	}))

	persisted, err := store.Load("client-1")
	require.NoError(t, err)
	assert.Equal(t, "rt", persisted)
}

func TestCacheStoreWithoutRefreshTokenSkipsPersistence(t *testing.T) {
	store := NewMemoryStore()
	store.FailWrites = true
	cache := New("client-1", store, nil)

	// No refresh token means nothing to persist, so a broken store does
	// not matter.
	require.NoError(t, cache.Store(&oauth.TokenSet{AccessToken: "at"}))
	assert.Equal(t, "at", cache.Current().AccessToken)
}

func TestCacheStorePersistenceFailureKeepsMemory(t *testing.T) {
	store := NewMemoryStore()
	store.FailWrites = true
	cache := New("client-1", store, nil)

	err := cache.Store(&oauth.TokenSet{AccessToken: "at", RefreshToken: "rt"})
	require.Error(t, err)
	assert.True(t, oauth.IsKind(err, oauth.KindPersistence))

	// The session is usable despite the failed write.
	require.NotNil(t, cache.Current())
	assert.Equal(t, "at", cache.Current().AccessToken)
}

func TestCacheRefreshTokenFallsBackToPersisted(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Save("client-1", "persisted-rt"))

	cache := New("client-1", store, nil)

	// Cold start: nothing in memory, credential comes from the store.
	rt, err := cache.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "persisted-rt", rt)

	// The in-memory token wins once present.
	require.NoError(t, cache.Store(&oauth.TokenSet{AccessToken: "at", RefreshToken: "memory-rt"}))
	rt, err = cache.RefreshToken()
	require.NoError(t, err)
	assert.Equal(t, "memory-rt", rt)
}

func TestCacheClear(t *testing.T) {
	store := NewMemoryStore()
	cache := New("client-1", store, nil)

	require.NoError(t, cache.Store(&oauth.TokenSet{AccessToken: "at", RefreshToken: "rt"}))
	require.NoError(t, cache.Clear())

	assert.Nil(t, cache.Current())
	persisted, err := store.Load("client-1")
	require.NoError(t, err)
	assert.Empty(t, persisted)
}

func TestCacheClientIsolation(t *testing.T) {
	store := NewMemoryStore()
	first := New("client-1", store, nil)
	second := New("client-2", store, nil)

	require.NoError(t, first.Store(&oauth.TokenSet{AccessToken: "at", RefreshToken: "rt-1"}))

	rt, err := second.LoadPersisted()
	require.NoError(t, err)
	assert.Empty(t, rt)
}

func TestMemoryStoreDeleteMissingIsNotAnError(t *testing.T) {
	store := NewMemoryStore()
	assert.NoError(t, store.Delete("absent"))
}
