// ABOUTME: Device identity generation for the media-server handshake
// ABOUTME: Builds Bloom-<sanitized-hostname>-<uuid> identifiers and display names

package device

import (
	"os"
	"strings"

	"github.com/google/uuid"

	"github.com/bloomapp/bloom/internal/models"
)

const idPrefix = "Bloom"

// GenerateID returns a fresh device identifier. The hostname part is
// sanitized so the identifier stays safe inside HTTP headers and account
// keys.
func GenerateID() string {
	return idPrefix + "-" + sanitizeHostname(hostname()) + "-" + uuid.NewString()
}

// Identity returns the identity presented to the server for the given
// device id.
func Identity(id string) models.DeviceIdentity {
	return models.DeviceIdentity{
		ID:   id,
		Name: hostname(),
		Type: models.DefaultDeviceType,
	}
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil || name == "" {
		return "unknown"
	}
	return name
}

// sanitizeHostname replaces every character outside [A-Za-z0-9-] with "-".
func sanitizeHostname(name string) string {
	if name == "" {
		return "unknown"
	}
	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	return b.String()
}
