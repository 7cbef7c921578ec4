// ABOUTME: Noop secret store used when no platform backend can be reached
// ABOUTME: Reads report absence, writes and deletes fail with ErrUnavailable

package secrets

// Unavailable is the degraded store installed when no platform backend
// works. The rest of the application keeps functioning: sessions simply are
// not persisted across restarts.
type Unavailable struct{}

func NewUnavailable() *Unavailable { return &Unavailable{} }

func (u *Unavailable) Set(service, account, secret string) error { return ErrUnavailable }

func (u *Unavailable) Get(service, account string) (string, bool, error) {
	return "", false, ErrUnavailable
}

func (u *Unavailable) Delete(service, account string) error { return ErrUnavailable }

func (u *Unavailable) ListAccounts(service string) ([]string, error) {
	return nil, ErrUnavailable
}

func (u *Unavailable) Available() bool { return false }

func (u *Unavailable) Backend() string { return "unavailable" }
