// ABOUTME: Platform backend selection fallback for unsupported systems
// ABOUTME: Reports no backend so Open degrades to the unavailable store

//go:build !linux && !windows

package secrets

import "fmt"

func openPlatform() (Store, error) {
	return nil, fmt.Errorf("no secret store backend for this platform")
}
