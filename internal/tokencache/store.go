package tokencache

import (
	"errors"
	"os/user"
	"sync"

	"github.com/zalando/go-keyring"

	"authgate/pkg/logging"
	"authgate/pkg/oauth"
)

// serviceNamePrefix namespaces authgate's keychain entries per client.
const serviceNamePrefix = "authgate:"

// SecureStore persists exactly one refresh credential per client identity.
// Writing a new credential supersedes the old one; callers never observe a
// torn write.
type SecureStore interface {
	// Save stores the refresh token for the client identity, replacing any
	// previous credential.
	Save(clientID, refreshToken string) error

	// Load returns the stored refresh token, or "" when none exists.
	Load(clientID string) (string, error)

	// Delete removes the stored credential. Deleting a missing credential is
	// not an error.
	Delete(clientID string) error
}

// KeyringStore stores the refresh credential in the OS keychain.
// The service name is derived from the client id; the account name from the
// OS user, so different desktop users keep separate credentials.
type KeyringStore struct{}

// NewKeyringStore creates a keychain-backed secure store.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func (s *KeyringStore) account() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "default"
}

// Save implements SecureStore.
func (s *KeyringStore) Save(clientID, refreshToken string) error {
	if err := keyring.Set(serviceNamePrefix+clientID, s.account(), refreshToken); err != nil {
		return oauth.WrapError(oauth.KindPersistence, "failed to write credential to keychain", err)
	}
	logging.Debug("Cache", "Persisted refresh credential for client %s", clientID)
	return nil
}

// Load implements SecureStore.
func (s *KeyringStore) Load(clientID string) (string, error) {
	secret, err := keyring.Get(serviceNamePrefix+clientID, s.account())
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return "", nil
		}
		return "", oauth.WrapError(oauth.KindPersistence, "failed to read credential from keychain", err)
	}
	return secret, nil
}

// Delete implements SecureStore.
func (s *KeyringStore) Delete(clientID string) error {
	if err := keyring.Delete(serviceNamePrefix+clientID, s.account()); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return oauth.WrapError(oauth.KindPersistence, "failed to delete credential from keychain", err)
	}
	return nil
}

// MemoryStore is an in-memory SecureStore for tests and environments without
// a keychain.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string]string

	// FailWrites makes Save/Delete return a persistence error, simulating a
	// locked or unavailable keychain.
	FailWrites bool
}

// NewMemoryStore creates an empty in-memory secure store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string]string)}
}

// Save implements SecureStore.
func (s *MemoryStore) Save(clientID, refreshToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return oauth.NewError(oauth.KindPersistence, "", "secure storage unavailable")
	}
	s.secrets[clientID] = refreshToken
	return nil
}

// Load implements SecureStore.
func (s *MemoryStore) Load(clientID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.secrets[clientID], nil
}

// Delete implements SecureStore.
func (s *MemoryStore) Delete(clientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailWrites {
		return oauth.NewError(oauth.KindPersistence, "", "secure storage unavailable")
	}
	delete(s.secrets, clientID)
	return nil
}
