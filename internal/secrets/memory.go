// ABOUTME: In-memory secret store keyed by (service, account)
// ABOUTME: Backs tests and the BLOOM_SECRETS_BACKEND=memory escape hatch

package secrets

import (
	"sort"
	"sync"
)

// Memory is a process-local Store. Secrets do not survive a restart, which
// makes it useful for tests and for environments where the platform backend
// is misbehaving but persistence does not matter.
type Memory struct {
	mu       sync.RWMutex
	services map[string]map[string]string
}

func NewMemory() *Memory {
	return &Memory{services: make(map[string]map[string]string)}
}

func (m *Memory) Set(service, account, secret string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	accounts, ok := m.services[service]
	if !ok {
		accounts = make(map[string]string)
		m.services[service] = accounts
	}
	accounts[account] = secret
	return nil
}

func (m *Memory) Get(service, account string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	secret, ok := m.services[service][account]
	return secret, ok, nil
}

func (m *Memory) Delete(service, account string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.services[service], account)
	return nil
}

func (m *Memory) ListAccounts(service string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	accounts := make([]string, 0, len(m.services[service]))
	for account := range m.services[service] {
		accounts = append(accounts, account)
	}
	sort.Strings(accounts)
	return accounts, nil
}

func (m *Memory) Available() bool { return true }

func (m *Memory) Backend() string { return "memory" }
