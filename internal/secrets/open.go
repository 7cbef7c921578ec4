// ABOUTME: Backend selection for the secret store
// ABOUTME: Picks the platform backend, honoring the BLOOM_SECRETS_BACKEND override

package secrets

import (
	"log/slog"
	"os"
)

// Open selects the secret store for this process. The platform backend is
// the default; BLOOM_SECRETS_BACKEND=memory or =none overrides it. Open
// never fails: when no backend works it returns the unavailable store and
// the application runs without session persistence.
func Open() Store {
	switch os.Getenv("BLOOM_SECRETS_BACKEND") {
	case "memory":
		slog.Info("Using in-memory secret store, sessions will not persist")
		return NewMemory()
	case "none":
		slog.Info("Secret store disabled, sessions will not persist")
		return NewUnavailable()
	}

	store, err := openPlatform()
	if err != nil {
		slog.Warn("Secret store unavailable, sessions will not persist", "error", err)
		return NewUnavailable()
	}
	slog.Debug("Secret store opened", "backend", store.Backend())
	return store
}
