// ABOUTME: Windows Credential Manager backend built on wincred
// ABOUTME: Maps (service, account) to generic credentials named service/account

package secrets

import (
	"errors"
	"fmt"
	"strings"

	"github.com/danieljoos/wincred"
	"golang.org/x/sys/windows"
)

// credManager stores secrets as generic credentials in the Windows
// Credential Manager. Target names are "<service>/<account>" so ListAccounts
// can enumerate by prefix.
type credManager struct{}

func newCredManager() *credManager { return &credManager{} }

func targetName(service, account string) string {
	return service + "/" + account
}

func (c *credManager) Set(service, account, secret string) error {
	cred := wincred.NewGenericCredential(targetName(service, account))
	cred.UserName = account
	cred.CredentialBlob = []byte(secret)
	cred.Persist = wincred.PersistLocalMachine
	if err := cred.Write(); err != nil {
		return fmt.Errorf("writing credential: %w", err)
	}
	return nil
}

func (c *credManager) Get(service, account string) (string, bool, error) {
	cred, err := wincred.GetGenericCredential(targetName(service, account))
	if err != nil {
		if errors.Is(err, windows.ERROR_NOT_FOUND) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading credential: %w", err)
	}
	return string(cred.CredentialBlob), true, nil
}

func (c *credManager) Delete(service, account string) error {
	cred, err := wincred.GetGenericCredential(targetName(service, account))
	if err != nil {
		if errors.Is(err, windows.ERROR_NOT_FOUND) {
			return nil
		}
		return fmt.Errorf("reading credential: %w", err)
	}
	if err := cred.Delete(); err != nil {
		return fmt.Errorf("deleting credential: %w", err)
	}
	return nil
}

func (c *credManager) ListAccounts(service string) ([]string, error) {
	creds, err := wincred.List()
	if err != nil {
		return nil, fmt.Errorf("listing credentials: %w", err)
	}

	prefix := service + "/"
	accounts := make([]string, 0, len(creds))
	for _, cred := range creds {
		if strings.HasPrefix(cred.TargetName, prefix) {
			accounts = append(accounts, strings.TrimPrefix(cred.TargetName, prefix))
		}
	}
	return accounts, nil
}

func (c *credManager) Available() bool { return true }

func (c *credManager) Backend() string { return "wincred" }
