// ABOUTME: Capability contract for platform secure-credential storage
// ABOUTME: Defines the Store interface, the account-key scheme, and shared errors

package secrets

import (
	"errors"
	"strings"
)

// ServiceName is the fixed namespace under which this application stores
// credentials in the platform backend.
const ServiceName = "org.bloomapp.bloom"

// ErrUnavailable is returned by every operation of the unavailable store and
// by backends whose platform facility cannot be reached.
var ErrUnavailable = errors.New("secret store unavailable")

// Store is the capability abstraction over a platform secure-credential
// backend. Pure key/value semantics namespaced by (service, account); no
// business logic. Operations may block on OS-level IPC, so callers that must
// stay responsive go through a Queue instead of calling directly.
type Store interface {
	// Set stores or overwrites the secret for (service, account).
	Set(service, account, secret string) error

	// Get retrieves the secret for (service, account). Absence is the
	// common, non-exceptional case: it returns ("", false, nil). A non-nil
	// error means the backend itself failed.
	Get(service, account string) (secret string, found bool, err error)

	// Delete removes the secret for (service, account). Deleting an absent
	// entry is not an error.
	Delete(service, account string) error

	// ListAccounts enumerates all account keys stored for the service.
	// Diagnostics and multi-account support only, not a hot path.
	ListAccounts(service string) ([]string, error)

	// Available reports whether the backend can be used at all.
	Available() bool

	// Backend names the implementation, for logs and diagnostics.
	Backend() string
}

// AccountKey builds the composite account identifier for one stored
// credential: server URL, username and device ID joined by "|". Components
// containing "|" corrupt parsing; the delimiter is not escaped.
func AccountKey(serverURL, username, deviceID string) string {
	return serverURL + "|" + username + "|" + deviceID
}

// ParseAccountKey splits an account key into its three components. A key
// with fewer than three components is malformed and yields empty components;
// parsing never fails.
func ParseAccountKey(key string) (serverURL, username, deviceID string) {
	parts := strings.SplitN(key, "|", 3)
	if len(parts) < 3 {
		return "", "", ""
	}
	return parts[0], parts[1], parts[2]
}
