// ABOUTME: Event types published by the session and device managers
// ABOUTME: Each notification the outer layer can observe is a discrete typed event

package events

import "time"

// Event is the base interface for all notifications delivered to listeners.
type Event interface {
	// Type returns the stable event type identifier (e.g. "session.restored").
	Type() string
	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type identifiers.
const (
	TypeSessionRestored = "session.restored"
	TypeAuthenticated   = "session.authenticated"
	TypeLoginFailed     = "session.login_failed"
	TypeLoggedOut       = "session.logged_out"
	TypeSessionExpired  = "session.expired"
	TypeDeviceRotated   = "device.rotated"
	TypeRotationFailed  = "device.rotation_failed"
)

// BaseEvent provides the timestamp for concrete event types.
type BaseEvent struct {
	OccurredAt time.Time
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func newBase() BaseEvent {
	return BaseEvent{OccurredAt: time.Now()}
}

// SessionRestored is published when a persisted session was successfully
// restored and validated against the server at startup.
type SessionRestored struct {
	BaseEvent
	ServerURL   string
	UserID      string
	Username    string // May be empty until lazily fetched
	AccessToken string // Needed by API consumers; never log this
}

func (SessionRestored) Type() string { return TypeSessionRestored }

// NewSessionRestored creates a SessionRestored event.
func NewSessionRestored(serverURL, userID, username, accessToken string) SessionRestored {
	return SessionRestored{
		BaseEvent:   newBase(),
		ServerURL:   serverURL,
		UserID:      userID,
		Username:    username,
		AccessToken: accessToken,
	}
}

// Authenticated is published after a successful interactive login.
type Authenticated struct {
	BaseEvent
	ServerURL   string
	UserID      string
	Username    string
	AccessToken string // Needed by API consumers; never log this
}

func (Authenticated) Type() string { return TypeAuthenticated }

// NewAuthenticated creates an Authenticated event.
func NewAuthenticated(serverURL, userID, username, accessToken string) Authenticated {
	return Authenticated{
		BaseEvent:   newBase(),
		ServerURL:   serverURL,
		UserID:      userID,
		Username:    username,
		AccessToken: accessToken,
	}
}

// LoginFailed is published when a login attempt fails. Message is the
// classified user-facing message, not the raw transport error.
type LoginFailed struct {
	BaseEvent
	Message string
}

func (LoginFailed) Type() string { return TypeLoginFailed }

// NewLoginFailed creates a LoginFailed event.
func NewLoginFailed(message string) LoginFailed {
	return LoginFailed{BaseEvent: newBase(), Message: message}
}

// LoggedOut is published after the session has been cleared, whether by an
// explicit logout or by session expiry handling.
type LoggedOut struct {
	BaseEvent
}

func (LoggedOut) Type() string { return TypeLoggedOut }

// NewLoggedOut creates a LoggedOut event.
func NewLoggedOut() LoggedOut {
	return LoggedOut{BaseEvent: newBase()}
}

// SessionExpired is published exactly once per session when the server
// rejects the token. Deferred reports that the notification was held back
// (e.g. during playback) and flushed later.
type SessionExpired struct {
	BaseEvent
	Deferred bool
}

func (SessionExpired) Type() string { return TypeSessionExpired }

// NewSessionExpired creates a SessionExpired event.
func NewSessionExpired(deferred bool) SessionExpired {
	return SessionExpired{BaseEvent: newBase(), Deferred: deferred}
}

// DeviceRotated is published after the device ID has been replaced.
type DeviceRotated struct {
	BaseEvent
	OldID string
	NewID string
}

func (DeviceRotated) Type() string { return TypeDeviceRotated }

// NewDeviceRotated creates a DeviceRotated event.
func NewDeviceRotated(oldID, newID string) DeviceRotated {
	return DeviceRotated{BaseEvent: newBase(), OldID: oldID, NewID: newID}
}

// RotationFailed is published when the token migration step of a rotation
// fails. The rotation itself still completes; a cached token may be lost.
type RotationFailed struct {
	BaseEvent
	OldID  string
	NewID  string
	Reason string
}

func (RotationFailed) Type() string { return TypeRotationFailed }

// NewRotationFailed creates a RotationFailed event.
func NewRotationFailed(oldID, newID, reason string) RotationFailed {
	return RotationFailed{BaseEvent: newBase(), OldID: oldID, NewID: newID, Reason: reason}
}
