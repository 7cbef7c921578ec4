// ABOUTME: Platform backend selection on Linux
// ABOUTME: Uses the freedesktop Secret Service over the session D-Bus

package secrets

func openPlatform() (Store, error) {
	return newSecretService()
}
