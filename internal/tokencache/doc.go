// Package tokencache holds the current token set in memory and persists the
// refresh credential in OS-backed secure storage.
//
// The cache owns exactly one authoritative TokenSet at a time; Store replaces
// it wholesale and readers receive copies, so a half-written set is never
// observable. When a token set carries a refresh token it is written to the
// OS keychain (keyed by client identity) before Store returns, so silent
// renewal survives process restarts.
//
// Two SecureStore implementations exist: the keyring-backed store used in
// production (macOS Keychain, Windows Credential Manager, Secret Service on
// Linux) and an in-memory store for tests and keychain-less environments.
package tokencache
