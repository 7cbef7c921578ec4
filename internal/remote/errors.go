// ABOUTME: Error types for the media-server client
// ABOUTME: Distinguishes HTTP status failures from connection-level failures

package remote

import (
	"errors"
	"fmt"
)

// ErrConnection marks failures where the server could not be reached at all,
// as opposed to the server answering with an error status.
var ErrConnection = errors.New("connection failed")

// StatusError reports a non-success HTTP status from the server.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned status %d", e.Code)
}

// IsStatus reports whether err is a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.Code == code
}
