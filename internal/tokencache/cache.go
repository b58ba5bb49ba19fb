package tokencache

import (
	"sync"
	"time"

	"authgate/pkg/logging"
	"authgate/pkg/oauth"
)

// Cache holds the current token set in memory and persists the refresh
// credential through a SecureStore, keyed by client identity.
type Cache struct {
	mu       sync.RWMutex
	clientID string
	current  *oauth.TokenSet
	store    SecureStore
	now      oauth.Clock
}

// New creates a token cache for the given client identity. A nil clock uses
// time.Now.
func New(clientID string, store SecureStore, now oauth.Clock) *Cache {
	if now == nil {
		now = time.Now
	}
	return &Cache{clientID: clientID, store: store, now: now}
}

// Current returns a copy of the current token set, or nil when no session
// exists. O(1), no I/O.
func (c *Cache) Current() *oauth.TokenSet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.Clone()
}

// IsExpired reports whether the current token set is expired by the given
// margin. An empty cache counts as expired.
func (c *Cache) IsExpired(margin time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.current == nil {
		return true
	}
	return c.current.ExpiredAt(c.now(), margin)
}

// Store replaces the in-memory token set. If the set carries a refresh
// token, the credential is persisted durably before Store returns; a
// persistence failure is returned as a KindPersistence error with the
// in-memory set already replaced, so the caller can decide to proceed with
// the session anyway (losing only future silent renewal).
func (c *Cache) Store(ts *oauth.TokenSet) error {
	c.mu.Lock()
	c.current = ts.Clone()
	c.mu.Unlock()

	if ts.RefreshToken == "" {
		return nil
	}
	if err := c.store.Save(c.clientID, ts.RefreshToken); err != nil {
		logging.Warn("Cache", "Failed to persist refresh credential for client %s; silent renewal will not survive restart", c.clientID)
		return err
	}
	return nil
}

// LoadPersisted reads the durable refresh credential for the client
// identity, or "" when none exists. Used at cold start and whenever no
// in-memory token set exists.
func (c *Cache) LoadPersisted() (string, error) {
	return c.store.Load(c.clientID)
}

// RefreshToken returns the refresh token of the in-memory set, falling back
// to the persisted credential. Returns "" when neither exists.
func (c *Cache) RefreshToken() (string, error) {
	c.mu.RLock()
	if c.current != nil && c.current.RefreshToken != "" {
		rt := c.current.RefreshToken
		c.mu.RUnlock()
		return rt, nil
	}
	c.mu.RUnlock()
	return c.LoadPersisted()
}

// Clear drops the in-memory token set and deletes the persisted credential.
func (c *Cache) Clear() error {
	c.mu.Lock()
	c.current = nil
	c.mu.Unlock()
	return c.store.Delete(c.clientID)
}
