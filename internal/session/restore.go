// ABOUTME: Async session restoration and legacy-token migration
// ABOUTME: Snapshot on the caller, store work on the queue, guarded completion

package session

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bloomapp/bloom/internal/events"
	"github.com/bloomapp/bloom/internal/models"
	"github.com/bloomapp/bloom/internal/secrets"
)

// restoreSnapshot is taken synchronously in Initialize, before dispatching to
// the worker, so the job never touches live manager state.
type restoreSnapshot struct {
	meta           models.SessionMeta
	deviceID       string
	storeAvailable bool
}

// restorationResult is produced by the worker and consumed exactly once by
// the completion handler.
type restorationResult struct {
	success     bool
	migrated    bool
	serverURL   string
	userID      string
	username    string
	accessToken string
	err         error
}

// Initialize starts the async restoration of a persisted session. At most
// one restoration is ever live: re-initializing bumps the generation, which
// detaches the prior flight's completion before arming the new one. A no-op
// when a session is already authenticated or no config store is wired.
func (m *Manager) Initialize(ctx context.Context) {
	if m.cfg == nil {
		slog.Warn("Session restore skipped, no config store")
		return
	}

	snap := restoreSnapshot{
		meta:           m.cfg.Session(),
		deviceID:       m.deviceID(),
		storeAvailable: m.queue.Available(),
	}

	m.mu.Lock()
	if m.state == StateAuthenticated {
		m.mu.Unlock()
		slog.Debug("Session restore skipped, already authenticated")
		return
	}
	m.restoreGen++
	gen := m.restoreGen
	m.state = StateRestoring
	done := make(chan struct{})
	m.restoreDone = done
	m.mu.Unlock()

	// The flight outlives the caller. A canceled probe would read as an
	// invalid token and log the user out, so restoration is never canceled,
	// only superseded by a newer generation.
	ctx = context.WithoutCancel(ctx)

	slog.Debug("Restoring session",
		"server", snap.meta.ServerURL,
		"user_id", snap.meta.UserID,
		"store_available", snap.storeAvailable,
	)

	m.queue.Submit("restore-session", func(s secrets.Store) error {
		result := runRestore(snap, s)
		// Completion validates against the network; run it off the queue
		// worker so queued writes are not stalled behind it.
		go m.completeRestore(ctx, gen, snap, result, done)
		return nil
	})
}

// runRestore executes the three-branch restoration decision against the
// store. Pure with respect to manager state.
func runRestore(snap restoreSnapshot, store secrets.Store) restorationResult {
	meta := snap.meta
	result := restorationResult{
		serverURL: meta.ServerURL,
		userID:    meta.UserID,
		username:  meta.Username,
	}

	// A legacy plaintext token in config means this is the first run since
	// the upgrade to secure storage: move it, then report it as the session
	// token. When the store is unavailable or the identity is incomplete
	// the token stays in config for a later attempt.
	if meta.LegacyToken != "" {
		if !snap.storeAvailable || !meta.HasIdentity() {
			return result
		}
		key := secrets.AccountKey(meta.ServerURL, meta.Username, snap.deviceID)
		if err := store.Set(secrets.ServiceName, key, meta.LegacyToken); err != nil {
			result.err = fmt.Errorf("migrating legacy token: %w", err)
			return result
		}
		result.success = true
		result.migrated = true
		result.accessToken = meta.LegacyToken
		return result
	}

	if meta.HasIdentity() && snap.storeAvailable {
		key := secrets.AccountKey(meta.ServerURL, meta.Username, snap.deviceID)
		token, found, err := store.Get(secrets.ServiceName, key)
		if err != nil {
			result.err = fmt.Errorf("reading stored token: %w", err)
			return result
		}
		// Absence is expected for a device that never authenticated.
		if found && token != "" {
			result.success = true
			result.accessToken = token
		}
		return result
	}

	return result
}

// completeRestore applies a restoration result, unless it has gone stale: a
// newer Initialize or a Logout bumps the generation, and a login that won
// the race leaves an authenticated session that must not be clobbered.
func (m *Manager) completeRestore(ctx context.Context, gen int, snap restoreSnapshot, result restorationResult, done chan struct{}) {
	defer close(done)
	defer func() {
		m.mu.Lock()
		if gen == m.restoreGen && m.state == StateRestoring {
			m.state = StateLoggedOut
		}
		m.mu.Unlock()
	}()

	m.mu.Lock()
	if gen != m.restoreGen {
		m.mu.Unlock()
		slog.Debug("Dropping stale restoration result")
		return
	}
	if m.state == StateAuthenticated {
		m.mu.Unlock()
		slog.Debug("Dropping restoration result, login already completed")
		return
	}
	m.mu.Unlock()

	if result.migrated {
		meta := snap.meta
		meta.LegacyToken = ""
		if err := m.cfg.SetSession(meta); err != nil {
			slog.Error("Failed to clear migrated legacy token from config", "error", err)
		} else {
			slog.Info("Migrated legacy token to secret store", "server", meta.ServerURL, "username", meta.Username)
		}
	}

	if !result.success {
		if result.err != nil {
			slog.Warn("Session restoration failed", "error", result.err)
		} else {
			slog.Debug("No stored session to restore")
		}
		return
	}

	m.restoreSession(ctx, gen, result.serverURL, result.userID, result.accessToken)
}

// RestoreSession installs the triple as the in-memory session and validates
// it against the server. Valid tokens settle into the authenticated state
// (backfilling the username from the fetched user when needed); invalid
// tokens trigger a logout. Reports whether the session was restored.
func (m *Manager) RestoreSession(ctx context.Context, serverURL, userID, accessToken string) bool {
	m.mu.Lock()
	gen := m.restoreGen
	m.mu.Unlock()
	return m.restoreSession(ctx, gen, serverURL, userID, accessToken)
}

// restoreSession carries the generation of the restoration attempt so that a
// logout or a newer initialize occurring at any point, including while the
// validation request is in flight, detaches this attempt.
func (m *Manager) restoreSession(ctx context.Context, gen int, serverURL, userID, accessToken string) bool {
	m.mu.Lock()
	if gen != m.restoreGen || m.state == StateAuthenticated {
		m.mu.Unlock()
		slog.Debug("Dropping restoration, session changed before validation")
		return false
	}
	m.session = models.Session{
		ServerURL:   serverURL,
		UserID:      userID,
		AccessToken: accessToken,
	}
	m.pendingExpiry = false
	m.expiryEmitted = false
	m.mu.Unlock()

	user, ok := m.validateToken(ctx)

	m.mu.Lock()
	installed := gen == m.restoreGen &&
		m.state != StateAuthenticated &&
		m.session.ServerURL == serverURL &&
		m.session.UserID == userID &&
		m.session.AccessToken == accessToken
	if !installed {
		// A login or logout raced the validation; its outcome wins.
		m.mu.Unlock()
		slog.Debug("Session changed during validation, dropping restoration result")
		return false
	}

	if !ok {
		m.mu.Unlock()
		slog.Info("Stored session token is no longer valid, logging out")
		m.Logout(ctx)
		return false
	}

	if user != nil && m.session.Username == "" {
		m.session.Username = user.Name
	}
	m.state = StateAuthenticated
	session := m.session
	m.mu.Unlock()

	slog.Info("Session restored", "server", session.ServerURL, "user_id", session.UserID, "username", session.Username)
	m.emit(events.NewSessionRestored(session.ServerURL, session.UserID, session.Username, session.AccessToken))
	return true
}
