// ABOUTME: Platform backend selection on Windows
// ABOUTME: Uses the Credential Manager via wincred

package secrets

func openPlatform() (Store, error) {
	return newCredManager(), nil
}
