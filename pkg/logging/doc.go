// Package logging provides a structured logging system for authgate with
// unified log handling and level filtering.
//
// This package wraps Go's standard slog package, tagging every entry with a
// subsystem identifier so the privileged broker's log output can be filtered
// by component.
//
// # Log Levels
//   - Debug: detailed information for debugging and development
//   - Info: general informational messages about application operation
//   - Warn: warning messages that indicate potential issues
//   - Error: error messages for failures and exceptional conditions
//
// # Usage
//
//	import "authgate/pkg/logging"
//
//	logging.Init(logging.LevelInfo, os.Stderr)
//
//	logging.Info("Broker", "Client initialized")
//	logging.Debug("Discovery", "Resolved authority %s", authority)
//	logging.Warn("Cache", "Persistence unavailable, continuing in memory")
//	logging.Error("IPC", err, "Failed to accept connection")
//
// # Subsystem Organization
//
// Logs are organized by subsystem to enable filtering and categorization:
//
//   - Broker: orchestrator operations (init, login, silent acquisition)
//   - Discovery: OIDC metadata resolution
//   - Exchange: token endpoint requests
//   - Login: interactive login surface lifecycle
//   - Cache: in-memory token cache and keychain persistence
//   - IPC: the request/response channel to the caller process
//
// # Security
//
// Callers never pass token material, PKCE verifiers, state, or nonce values
// into log messages; only identifiers, authorities, and error summaries.
package logging
