package login

// State represents the lifecycle of one interactive login attempt.
type State int

const (
	// StateIdle means no attempt is in flight.
	StateIdle State = iota

	// StateOpened means the surface is shown and the authorization URL loaded.
	StateOpened

	// StateRedirected means a navigation matching the redirect URI was captured.
	StateRedirected

	// StateCompleted is terminal: the attempt produced an authorization code.
	StateCompleted

	// StateCancelled is terminal: the surface was closed before a matching
	// redirect occurred.
	StateCancelled

	// StateFailed is terminal: the redirect carried an error parameter or the
	// state check failed.
	StateFailed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpened:
		return "opened"
	case StateRedirected:
		return "redirected"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}
