// ABOUTME: Secret Service (org.freedesktop.secrets) backend for Linux desktops
// ABOUTME: Stores items in the default collection with service/account lookup attributes

package secrets

import (
	"fmt"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	busName        = "org.freedesktop.secrets"
	servicePath    = dbus.ObjectPath("/org/freedesktop/secrets")
	collectionPath = dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")

	serviceIface    = "org.freedesktop.Secret.Service"
	collectionIface = "org.freedesktop.Secret.Collection"
	itemIface       = "org.freedesktop.Secret.Item"
	promptIface     = "org.freedesktop.Secret.Prompt"

	noPrompt      = dbus.ObjectPath("/")
	promptTimeout = 2 * time.Minute
)

// dbusSecret matches the Secret Service wire struct (oayays).
type dbusSecret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

// secretService talks to the freedesktop Secret Service over the session bus
// using a plain (unencrypted) session, which is standard for local keyring
// daemons. All items live in the default collection.
type secretService struct {
	conn    *dbus.Conn
	session dbus.ObjectPath
}

func newSecretService() (*secretService, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connecting to session bus: %w", err)
	}

	svc := conn.Object(busName, servicePath)
	var output dbus.Variant
	var session dbus.ObjectPath
	err = svc.Call(serviceIface+".OpenSession", 0, "plain", dbus.MakeVariant("")).Store(&output, &session)
	if err != nil {
		return nil, fmt.Errorf("opening secret service session: %w", err)
	}

	return &secretService{conn: conn, session: session}, nil
}

func (s *secretService) attributes(service, account string) map[string]string {
	return map[string]string{
		"service": service,
		"account": account,
	}
}

// searchItems finds item paths in the default collection matching the given
// lookup attributes.
func (s *secretService) searchItems(attrs map[string]string) ([]dbus.ObjectPath, error) {
	collection := s.conn.Object(busName, collectionPath)
	var items []dbus.ObjectPath
	err := collection.Call(collectionIface+".SearchItems", 0, attrs).Store(&items)
	if err != nil {
		return nil, fmt.Errorf("searching items: %w", err)
	}
	return items, nil
}

// ensureUnlocked unlocks the default collection, completing a keyring prompt
// if the daemon requires one.
func (s *secretService) ensureUnlocked() error {
	svc := s.conn.Object(busName, servicePath)
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	err := svc.Call(serviceIface+".Unlock", 0, []dbus.ObjectPath{collectionPath}).Store(&unlocked, &prompt)
	if err != nil {
		return fmt.Errorf("unlocking collection: %w", err)
	}
	return s.completePrompt(prompt)
}

// completePrompt drives a Secret Service prompt to completion. The daemon
// returns "/" when no prompt is needed.
func (s *secretService) completePrompt(path dbus.ObjectPath) error {
	if path == noPrompt {
		return nil
	}

	if err := s.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(promptIface),
	); err != nil {
		return fmt.Errorf("subscribing to prompt signal: %w", err)
	}
	defer s.conn.RemoveMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(promptIface),
	)

	signals := make(chan *dbus.Signal, 4)
	s.conn.Signal(signals)
	defer s.conn.RemoveSignal(signals)

	prompt := s.conn.Object(busName, path)
	if err := prompt.Call(promptIface+".Prompt", 0, "").Err; err != nil {
		return fmt.Errorf("starting prompt: %w", err)
	}

	timeout := time.After(promptTimeout)
	for {
		select {
		case sig := <-signals:
			if sig == nil || sig.Path != path || sig.Name != promptIface+".Completed" {
				continue
			}
			if dismissed, ok := sig.Body[0].(bool); ok && dismissed {
				return fmt.Errorf("keyring prompt dismissed")
			}
			return nil
		case <-timeout:
			return fmt.Errorf("keyring prompt timed out")
		}
	}
}

func (s *secretService) Set(service, account, secret string) error {
	if err := s.ensureUnlocked(); err != nil {
		return err
	}

	props := map[string]dbus.Variant{
		"org.freedesktop.Secret.Item.Label":      dbus.MakeVariant(service + ":" + account),
		"org.freedesktop.Secret.Item.Attributes": dbus.MakeVariant(s.attributes(service, account)),
	}
	item := dbusSecret{
		Session:     s.session,
		Value:       []byte(secret),
		ContentType: "text/plain; charset=utf8",
	}

	collection := s.conn.Object(busName, collectionPath)
	var itemPath, prompt dbus.ObjectPath
	err := collection.Call(collectionIface+".CreateItem", 0, props, item, true).Store(&itemPath, &prompt)
	if err != nil {
		return fmt.Errorf("creating item: %w", err)
	}
	return s.completePrompt(prompt)
}

func (s *secretService) Get(service, account string) (string, bool, error) {
	if err := s.ensureUnlocked(); err != nil {
		return "", false, err
	}

	items, err := s.searchItems(s.attributes(service, account))
	if err != nil {
		return "", false, err
	}
	if len(items) == 0 {
		return "", false, nil
	}

	item := s.conn.Object(busName, items[0])
	var secret dbusSecret
	if err := item.Call(itemIface+".GetSecret", 0, s.session).Store(&secret); err != nil {
		return "", false, fmt.Errorf("reading secret: %w", err)
	}
	return string(secret.Value), true, nil
}

func (s *secretService) Delete(service, account string) error {
	items, err := s.searchItems(s.attributes(service, account))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	for _, path := range items {
		item := s.conn.Object(busName, path)
		var prompt dbus.ObjectPath
		if err := item.Call(itemIface+".Delete", 0).Store(&prompt); err != nil {
			return fmt.Errorf("deleting item: %w", err)
		}
		if err := s.completePrompt(prompt); err != nil {
			return err
		}
	}
	return nil
}

func (s *secretService) ListAccounts(service string) ([]string, error) {
	items, err := s.searchItems(map[string]string{"service": service})
	if err != nil {
		return nil, err
	}

	accounts := make([]string, 0, len(items))
	for _, path := range items {
		item := s.conn.Object(busName, path)
		variant, err := item.GetProperty(itemIface + ".Attributes")
		if err != nil {
			return nil, fmt.Errorf("reading item attributes: %w", err)
		}
		var attrs map[string]string
		if err := variant.Store(&attrs); err != nil {
			return nil, fmt.Errorf("decoding item attributes: %w", err)
		}
		if account, ok := attrs["account"]; ok {
			accounts = append(accounts, account)
		}
	}
	return accounts, nil
}

func (s *secretService) Available() bool { return true }

func (s *secretService) Backend() string { return "secret-service" }
