// ABOUTME: Durable non-secret client state in the XDG config directory
// ABOUTME: Persists device identity, rotation settings and session metadata as JSON

package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/bloomapp/bloom/internal/models"
)

const fileName = "config.json"

// fileData is the on-disk shape. Tokens never land here except in the
// legacy session slot consumed by migration.
type fileData struct {
	DeviceID string                  `json:"device_id,omitempty"`
	Rotation models.RotationSettings `json:"rotation"`
	Session  models.SessionMeta      `json:"session"`
}

// File stores client state as a single JSON file. Safe for concurrent use;
// every setter rewrites the whole file.
type File struct {
	mu   sync.Mutex
	dir  string
	data fileData
}

// DefaultDir returns the config directory following the XDG spec.
func DefaultDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bloom")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "bloom")
}

// Load reads client state from dir, starting fresh when the file is missing
// or unreadable as JSON.
func Load(dir string) (*File, error) {
	f := &File{dir: dir}

	raw, err := os.ReadFile(f.path())
	if os.IsNotExist(err) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := json.Unmarshal(raw, &f.data); err != nil {
		// Invalid JSON, start fresh
		slog.Warn("Config file is not valid JSON, starting fresh", "path", f.path())
		f.data = fileData{}
	}
	return f, nil
}

func (f *File) path() string {
	return filepath.Join(f.dir, fileName)
}

// Path returns the location of the config file, for diagnostics.
func (f *File) Path() string { return f.path() }

// save writes the whole state back to disk. Session metadata may include a
// legacy token, so the file is owner-only.
func (f *File) save() error {
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	raw, err := json.MarshalIndent(f.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(f.path(), raw, 0600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}

func (f *File) DeviceID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.DeviceID
}

func (f *File) SetDeviceID(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.DeviceID = id
	return f.save()
}

func (f *File) Rotation() models.RotationSettings {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.Rotation
}

func (f *File) SetRotation(settings models.RotationSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.Rotation = settings
	return f.save()
}

func (f *File) Session() models.SessionMeta {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.data.Session
}

func (f *File) SetSession(meta models.SessionMeta) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data.Session = meta
	return f.save()
}
