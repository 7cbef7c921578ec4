// ABOUTME: Session and session-metadata models for the client auth lifecycle
// ABOUTME: Defines the in-memory session and the persisted metadata shapes

package models

// Session holds the in-memory authentication state for the running process.
// The access token is never persisted here; durable storage goes through the
// platform secret store.
type Session struct {
	ServerURL   string `json:"server_url"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	AccessToken string `json:"-"` // Never serialized
}

// IsValid reports whether the session identifies a server and user.
// A valid session may still be unauthenticated (empty access token).
func (s *Session) IsValid() bool {
	return s.ServerURL != "" && s.UserID != ""
}

// IsAuthenticated reports whether the session is valid and carries a token.
func (s *Session) IsAuthenticated() bool {
	return s.IsValid() && s.AccessToken != ""
}

// SessionMeta is the non-secret session metadata held by the config store:
// everything needed to restore a session except the token itself. LegacyToken
// is the pre-secure-storage plaintext token slot; it is read once at startup
// and cleared after a successful migration into the secret store.
type SessionMeta struct {
	ServerURL   string `json:"server_url"`
	UserID      string `json:"user_id"`
	Username    string `json:"username"`
	LegacyToken string `json:"access_token,omitempty"`
}

// HasIdentity reports whether the metadata names a server, user and username,
// which is the minimum needed to derive a secret-store account key.
func (m *SessionMeta) HasIdentity() bool {
	return m.ServerURL != "" && m.UserID != "" && m.Username != ""
}
