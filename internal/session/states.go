// ABOUTME: Session lifecycle states
// ABOUTME: Names the positions of the authentication state machine

package session

// State identifies where the session lifecycle currently stands.
type State int

const (
	// StateLoggedOut is the initial state and the terminal state after an
	// explicit logout or a failed restoration.
	StateLoggedOut State = iota

	// StateRestoring covers the async startup restoration flight.
	StateRestoring

	// StateAuthenticating covers an in-flight login request.
	StateAuthenticating

	// StateAuthenticated means the in-memory session holds a token the
	// server has accepted.
	StateAuthenticated

	// StateExpiredPending means a 401 was detected but its handling is
	// deferred until a safe point (e.g. the end of playback).
	StateExpiredPending

	// StateExpired is the transient state between raising the expiry
	// notification and completing the internal logout.
	StateExpired
)

func (s State) String() string {
	switch s {
	case StateLoggedOut:
		return "logged_out"
	case StateRestoring:
		return "restoring"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthenticated:
		return "authenticated"
	case StateExpiredPending:
		return "expiry_pending"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}
