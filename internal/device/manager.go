// ABOUTME: Device identity lifecycle and rotation policy
// ABOUTME: Generates the device id, schedules rotation and migrates the stored token across ids

package device

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bloomapp/bloom/internal/events"
	"github.com/bloomapp/bloom/internal/models"
	"github.com/bloomapp/bloom/internal/secrets"
)

// Config is the slice of the config store the rotation manager needs.
type Config interface {
	DeviceID() string
	SetDeviceID(id string) error
	Rotation() models.RotationSettings
	SetRotation(settings models.RotationSettings) error
}

// SessionInfo exposes the current session's account identity so rotation can
// migrate the stored token. Implemented by the session manager; wired after
// construction because the session manager also needs the device id.
type SessionInfo interface {
	AccountIdentity() (serverURL, username string, hasToken bool)
}

// Manager owns the device identifier and its rotation schedule. The id is
// immutable except through Rotate, which replaces it together with the
// rotation timestamp and moves the stored token to the new account key.
type Manager struct {
	cfg   Config
	queue *secrets.Queue
	bus   *events.Bus

	mu       sync.Mutex
	id       string
	rotation models.RotationSettings
	session  SessionInfo

	// rotateMu serializes whole rotations so the periodic check and an
	// explicit rotate cannot interleave.
	rotateMu sync.Mutex

	checkInterval time.Duration
	recheck       chan struct{}
	done          chan struct{}
	stopOnce      sync.Once
}

func NewManager(cfg Config, queue *secrets.Queue, bus *events.Bus) *Manager {
	return &Manager{
		cfg:           cfg,
		queue:         queue,
		bus:           bus,
		checkInterval: time.Hour,
		recheck:       make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
}

// SetSessionInfo wires the session identity source. Must be called before
// Initialize.
func (m *Manager) SetSessionInfo(info SessionInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = info
}

// Initialize loads or generates the device identity, evaluates the rotation
// policy once, then starts the periodic re-check loop.
func (m *Manager) Initialize() error {
	m.mu.Lock()
	m.id = m.cfg.DeviceID()
	m.rotation = m.cfg.Rotation()
	generated := ""
	if m.id == "" {
		m.id = GenerateID()
		generated = m.id
		if err := m.cfg.SetDeviceID(m.id); err != nil {
			m.mu.Unlock()
			return fmt.Errorf("persisting device id: %w", err)
		}
	}
	m.mu.Unlock()

	if generated != "" {
		slog.Info("Generated device identity", "device_id", generated)
	}

	m.evaluateRotation()
	go m.rotationLoop()
	return nil
}

// Close stops the periodic rotation check.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.done) })
}

func (m *Manager) rotationLoop() {
	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.evaluateRotation()
		case <-m.recheck:
			ticker.Reset(m.checkInterval)
			m.evaluateRotation()
		case <-m.done:
			return
		}
	}
}

func (m *Manager) evaluateRotation() {
	if !m.ShouldRotate() {
		return
	}
	if err := m.Rotate(); err != nil {
		slog.Error("Device rotation failed", "error", err)
	}
}

// DeviceID returns the current device identifier.
func (m *Manager) DeviceID() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.id
}

// Identity returns the full identity presented to the server.
func (m *Manager) Identity() models.DeviceIdentity {
	return Identity(m.DeviceID())
}

// Rotation returns the current rotation settings.
func (m *Manager) Rotation() models.RotationSettings {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rotation
}

// ShouldRotate reports whether the rotation policy is due now.
func (m *Manager) ShouldRotate() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return rotationDue(m.rotation, time.Now())
}

func rotationDue(r models.RotationSettings, now time.Time) bool {
	if !r.AutoRotation || r.IntervalDays <= 0 {
		return false
	}
	if r.LastRotation.IsZero() {
		return true
	}
	return !now.Before(r.LastRotation.AddDate(0, 0, r.IntervalDays))
}

// Rotate replaces the device id. The stored token is migrated to the new
// account key first; migration failure is reported but does not stop the
// rotation, since a lost cached token is recoverable by re-login while a
// stale device id defeats the point of rotating.
func (m *Manager) Rotate() error {
	m.rotateMu.Lock()
	defer m.rotateMu.Unlock()

	m.mu.Lock()
	oldID := m.id
	m.mu.Unlock()

	newID := GenerateID()

	if err := m.migrateToken(oldID, newID); err != nil {
		slog.Warn("Token migration during rotation failed", "error", err)
		m.emit(events.NewRotationFailed(oldID, newID, err.Error()))
	}

	m.mu.Lock()
	m.id = newID
	m.rotation.LastRotation = time.Now()
	rotation := m.rotation
	m.mu.Unlock()

	if err := m.cfg.SetDeviceID(newID); err != nil {
		return fmt.Errorf("persisting rotated device id: %w", err)
	}
	if err := m.cfg.SetRotation(rotation); err != nil {
		return fmt.Errorf("persisting rotation timestamp: %w", err)
	}

	slog.Info("Rotated device identity", "old_id", oldID, "new_id", newID)
	m.emit(events.NewDeviceRotated(oldID, newID))
	return nil
}

// migrateToken moves the stored token from the old account key to the new
// one as a single queued job, so the read-write-delete sequence cannot
// interleave with login or logout traffic. No-op success when there is no
// store or no active session token.
func (m *Manager) migrateToken(oldID, newID string) error {
	if m.queue == nil || !m.queue.Available() {
		return nil
	}

	m.mu.Lock()
	session := m.session
	m.mu.Unlock()
	if session == nil {
		return nil
	}
	serverURL, username, hasToken := session.AccountIdentity()
	if !hasToken || serverURL == "" || username == "" {
		return nil
	}

	oldKey := secrets.AccountKey(serverURL, username, oldID)
	newKey := secrets.AccountKey(serverURL, username, newID)

	return m.queue.Do(func(s secrets.Store) error {
		token, found, err := s.Get(secrets.ServiceName, oldKey)
		if err != nil {
			return fmt.Errorf("reading token under old device id: %w", err)
		}
		if !found || token == "" {
			return fmt.Errorf("no stored token under old device id")
		}
		// Write before delete: a write failure leaves the old entry
		// intact, so the token is never lost.
		if err := s.Set(secrets.ServiceName, newKey, token); err != nil {
			return fmt.Errorf("writing token under new device id: %w", err)
		}
		if err := s.Delete(secrets.ServiceName, oldKey); err != nil {
			slog.Warn("Could not remove token under old device id", "account", oldKey, "error", err)
		}
		return nil
	})
}

// SetRotationInterval updates the rotation interval in days, clamped to the
// supported range. No-op when unchanged.
func (m *Manager) SetRotationInterval(days int) error {
	days = models.ClampRotationInterval(days)

	m.mu.Lock()
	if days == m.rotation.IntervalDays {
		m.mu.Unlock()
		return nil
	}
	m.rotation.IntervalDays = days
	rotation := m.rotation
	m.mu.Unlock()

	if err := m.cfg.SetRotation(rotation); err != nil {
		return fmt.Errorf("persisting rotation interval: %w", err)
	}
	m.requestRecheck()
	return nil
}

// SetAutoRotation toggles time-based rotation. Freshly enabling it
// re-evaluates the policy immediately. No-op when unchanged.
func (m *Manager) SetAutoRotation(enabled bool) error {
	m.mu.Lock()
	if enabled == m.rotation.AutoRotation {
		m.mu.Unlock()
		return nil
	}
	m.rotation.AutoRotation = enabled
	rotation := m.rotation
	m.mu.Unlock()

	if err := m.cfg.SetRotation(rotation); err != nil {
		return fmt.Errorf("persisting auto-rotation setting: %w", err)
	}
	if enabled {
		m.evaluateRotation()
	}
	m.requestRecheck()
	return nil
}

func (m *Manager) requestRecheck() {
	select {
	case m.recheck <- struct{}{}:
	default:
	}
}

func (m *Manager) emit(event events.Event) {
	if m.bus != nil {
		m.bus.Publish(event)
	}
}
