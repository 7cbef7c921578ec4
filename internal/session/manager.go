// ABOUTME: Authenticated-session lifecycle manager
// ABOUTME: Drives login, async restoration, expiry detection and credential persistence

package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/bloomapp/bloom/internal/events"
	"github.com/bloomapp/bloom/internal/models"
	"github.com/bloomapp/bloom/internal/remote"
	"github.com/bloomapp/bloom/internal/secrets"
)

// ConfigStore is the slice of the config store the session manager needs.
type ConfigStore interface {
	Session() models.SessionMeta
	SetSession(meta models.SessionMeta) error
}

// DeviceSource provides the current device id for account-key derivation.
type DeviceSource interface {
	DeviceID() string
}

// Manager owns the in-memory session and the authentication state machine.
// Session fields are mutated only under the manager's lock; secret-store
// traffic goes through the serialized queue so per-account ordering holds;
// events are published outside the lock.
type Manager struct {
	cfg    ConfigStore
	queue  *secrets.Queue
	client remote.AuthClient
	device DeviceSource
	bus    *events.Bus

	mu      sync.Mutex
	state   State
	session models.Session

	pendingExpiry bool
	expiryEmitted bool

	// restoreGen detaches stale restoration completions: Initialize and
	// Logout bump it, and a completion whose generation no longer matches
	// is dropped.
	restoreGen  int
	restoreDone chan struct{}

	sfGroup singleflight.Group
}

func NewManager(cfg ConfigStore, queue *secrets.Queue, client remote.AuthClient, device DeviceSource, bus *events.Bus) *Manager {
	done := make(chan struct{})
	close(done)
	return &Manager{
		cfg:         cfg,
		queue:       queue,
		client:      client,
		device:      device,
		bus:         bus,
		state:       StateLoggedOut,
		restoreDone: done,
	}
}

// State returns the current lifecycle state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Session returns a copy of the in-memory session.
func (m *Manager) Session() models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session
}

// IsRestoring reports whether a restoration flight is outstanding.
func (m *Manager) IsRestoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	select {
	case <-m.restoreDone:
		return false
	default:
		return true
	}
}

// AwaitRestoration blocks until the current restoration flight settles.
func (m *Manager) AwaitRestoration(ctx context.Context) error {
	m.mu.Lock()
	done := m.restoreDone
	m.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AccountIdentity exposes the fields the device rotation manager needs to
// derive account keys for token migration.
func (m *Manager) AccountIdentity() (serverURL, username string, hasToken bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.session.ServerURL, m.session.Username, m.session.AccessToken != ""
}

// NormalizeServerURL trims whitespace and strips every trailing slash.
func NormalizeServerURL(raw string) string {
	s := strings.TrimSpace(raw)
	for strings.HasSuffix(s, "/") {
		s = strings.TrimSuffix(s, "/")
	}
	return s
}

// Authenticate logs in with the given credentials. On success the in-memory
// session becomes authoritative immediately; the token write to the secret
// store is fire-and-forget. On failure nothing is mutated and the returned
// error carries the user-facing classification.
func (m *Manager) Authenticate(ctx context.Context, serverURL, username, password string) error {
	server := NormalizeServerURL(serverURL)
	if server == "" {
		return errors.New("server URL is required")
	}

	m.mu.Lock()
	prev := m.state
	m.state = StateAuthenticating
	m.mu.Unlock()

	result, err := m.client.Login(ctx, server, username, password)
	if err != nil {
		message := classifyLoginError(err)
		slog.Warn("Login failed", "server", server, "username", username, "error", err)
		m.mu.Lock()
		if m.state == StateAuthenticating {
			m.state = prev
		}
		m.mu.Unlock()
		m.emit(events.NewLoginFailed(message))
		return errors.New(message)
	}

	deviceID := m.deviceID()

	m.mu.Lock()
	m.session = models.Session{
		ServerURL:   server,
		UserID:      result.UserID,
		Username:    result.Username,
		AccessToken: result.AccessToken,
	}
	m.pendingExpiry = false
	m.expiryEmitted = false
	m.state = StateAuthenticated
	session := m.session
	m.mu.Unlock()

	if err := m.cfg.SetSession(models.SessionMeta{
		ServerURL: session.ServerURL,
		UserID:    session.UserID,
		Username:  session.Username,
	}); err != nil {
		slog.Error("Failed to persist session metadata", "error", err)
	}

	// A failed async persist must not undo the login; the worker just logs.
	key := secrets.AccountKey(session.ServerURL, session.Username, deviceID)
	token := session.AccessToken
	m.queue.Submit("store-token", func(s secrets.Store) error {
		return s.Set(secrets.ServiceName, key, token)
	})

	slog.Info("Authenticated", "server", session.ServerURL, "user_id", session.UserID, "username", session.Username)
	m.emit(events.NewAuthenticated(session.ServerURL, session.UserID, session.Username, session.AccessToken))
	return nil
}

func classifyLoginError(err error) string {
	switch {
	case remote.IsStatus(err, http.StatusUnauthorized):
		return "Invalid username or password"
	case errors.Is(err, remote.ErrConnection):
		return "Could not connect to server"
	default:
		return fmt.Sprintf("Login failed: %v", err)
	}
}

// Logout deletes the stored credential for the current account, clears the
// in-memory session and persisted metadata, and detaches any in-flight
// restoration so its completion cannot resurrect the session.
func (m *Manager) Logout(ctx context.Context) {
	deviceID := m.deviceID()

	m.mu.Lock()
	// The account key derives from the fields being cleared, so capture
	// it first.
	session := m.session
	m.session = models.Session{}
	m.pendingExpiry = false
	m.expiryEmitted = false
	m.restoreGen++
	m.state = StateLoggedOut
	m.mu.Unlock()

	serverURL, username := session.ServerURL, session.Username
	if username == "" && m.cfg != nil {
		// A logout before restoration validated (or without one at all)
		// still must delete the stored credential; the persisted identity
		// names the account.
		if meta := m.cfg.Session(); meta.HasIdentity() {
			serverURL, username = meta.ServerURL, meta.Username
		}
	}
	if username != "" && m.queue.Available() {
		key := secrets.AccountKey(serverURL, username, deviceID)
		m.queue.Submit("delete-token", func(s secrets.Store) error {
			return s.Delete(secrets.ServiceName, key)
		})
	}

	if err := m.cfg.SetSession(models.SessionMeta{}); err != nil {
		slog.Error("Failed to clear session metadata", "error", err)
	}

	slog.Info("Logged out")
	m.emit(events.NewLoggedOut())
}

// CheckSessionExpiry is called by API-facing code after every server
// response. A 401 drives the expiry machine: deferred when the caller cannot
// tolerate an abrupt logout right now, immediate otherwise. Returns whether
// expiry was detected so callers can short-circuit response handling.
func (m *Manager) CheckSessionExpiry(ctx context.Context, statusCode int, deferLogout bool) bool {
	if statusCode != http.StatusUnauthorized {
		return false
	}

	m.mu.Lock()
	if !m.session.IsAuthenticated() {
		m.mu.Unlock()
		return false
	}

	if deferLogout {
		m.pendingExpiry = true
		m.state = StateExpiredPending
		m.mu.Unlock()
		slog.Info("Session expiry detected, deferring logout")
		return true
	}

	if m.expiryEmitted {
		m.mu.Unlock()
		return true
	}
	m.expiryEmitted = true
	m.pendingExpiry = false
	m.state = StateExpired
	m.mu.Unlock()

	slog.Info("Session expired")
	m.emit(events.NewSessionExpired(false))
	m.Logout(ctx)
	return true
}

// FlushPendingExpiry turns a deferred expiry into the actual notification
// and logout, exactly once. Safe to call at any quiet point.
func (m *Manager) FlushPendingExpiry(ctx context.Context) {
	m.mu.Lock()
	if !m.pendingExpiry || m.expiryEmitted {
		m.mu.Unlock()
		return
	}
	m.pendingExpiry = false
	m.expiryEmitted = true
	m.state = StateExpired
	m.mu.Unlock()

	slog.Info("Handling deferred session expiry")
	m.emit(events.NewSessionExpired(true))
	m.Logout(ctx)
}

// ValidateAccessToken reports whether the server still accepts the current
// token. False immediately when no token or user id is held. Concurrent
// validations of the same session collapse into one request.
func (m *Manager) ValidateAccessToken(ctx context.Context) bool {
	_, ok := m.validateToken(ctx)
	return ok
}

// validateToken runs the fetch-current-user probe and also returns the user
// record so restoration can backfill a missing username.
func (m *Manager) validateToken(ctx context.Context) (*remote.User, bool) {
	m.mu.Lock()
	serverURL := m.session.ServerURL
	userID := m.session.UserID
	token := m.session.AccessToken
	m.mu.Unlock()

	if token == "" || userID == "" {
		return nil, false
	}

	key := serverURL + "|" + userID + "|" + token
	v, err, _ := m.sfGroup.Do(key, func() (interface{}, error) {
		user, status, err := m.client.FetchUser(ctx, serverURL, token, userID)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, &remote.StatusError{Code: status}
		}
		return user, nil
	})
	if err != nil {
		slog.Debug("Token validation failed", "server", serverURL, "user_id", userID, "error", err)
		return nil, false
	}
	user, _ := v.(*remote.User)
	return user, true
}

func (m *Manager) deviceID() string {
	if m.device == nil {
		return ""
	}
	return m.device.DeviceID()
}

func (m *Manager) emit(event events.Event) {
	if m.bus != nil {
		m.bus.Publish(event)
	}
}
