//go:build (dragonfly && cgo) || (freebsd && cgo) || linux || netbsd || openbsd

package keyring

// Minimal client for the freedesktop.org Secret Service D-Bus API
// (https://specifications.freedesktop.org/secret-service-spec/latest/),
// using the "plain" algorithm (no session encryption) since this module's
// credentials travel over an already-trusted session bus.

import (
	"fmt"

	dbus "github.com/godbus/dbus/v5"
)

const (
	dbusServiceName     = "org.freedesktop.secrets"
	dbusServicePath     = "/org/freedesktop/secrets"
	dbusServiceIface    = "org.freedesktop.Secret.Service"
	dbusCollectionIface = "org.freedesktop.Secret.Collection"
	dbusItemIface       = "org.freedesktop.Secret.Item"
	dbusPropsIface      = "org.freedesktop.DBus.Properties"
	loginCollectionPath = dbus.ObjectPath("/org/freedesktop/secrets/aliases/default")
)

type secretServiceSecret struct {
	Session     dbus.ObjectPath
	Parameters  []byte
	Value       []byte
	ContentType string
}

type secretService struct {
	conn *dbus.Conn
}

type secretServiceSession struct {
	path dbus.ObjectPath
}

func (s secretServiceSession) Path() dbus.ObjectPath { return s.path }

func dialSecretService() (*secretService, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	return &secretService{conn: conn}, nil
}

func (s *secretService) service() dbus.BusObject {
	return s.conn.Object(dbusServiceName, dbus.ObjectPath(dbusServicePath))
}

func (s *secretService) openSession() (secretServiceSession, error) {
	var (
		output  dbus.Variant
		session dbus.ObjectPath
	)
	err := s.service().Call(dbusServiceIface+".OpenSession", 0, "plain", dbus.MakeVariant("")).Store(&output, &session)
	if err != nil {
		return secretServiceSession{}, fmt.Errorf("open session: %w", err)
	}
	return secretServiceSession{path: session}, nil
}

func (s *secretService) closeSession(session secretServiceSession) {
	s.conn.Object(dbusServiceName, session.path).Call("org.freedesktop.Secret.Session.Close", 0)
}

func (s *secretService) loginCollection() dbus.ObjectPath {
	return loginCollectionPath
}

func (s *secretService) unlock(path dbus.ObjectPath) error {
	var unlocked []dbus.ObjectPath
	var prompt dbus.ObjectPath
	if err := s.service().Call(dbusServiceIface+".Unlock", 0, []dbus.ObjectPath{path}).Store(&unlocked, &prompt); err != nil {
		return fmt.Errorf("unlock: %w", err)
	}
	return nil
}

func newPlainSecret(session dbus.ObjectPath, value string) secretServiceSecret {
	return secretServiceSecret{
		Session:     session,
		Parameters:  []byte{},
		Value:       []byte(value),
		ContentType: "text/plain; charset=utf8",
	}
}

func (s *secretService) createItem(collection dbus.ObjectPath, label string, attrs map[string]string, secret secretServiceSecret) error {
	properties := map[string]dbus.Variant{
		"org.freedesktop.Secret.Item.Label":      dbus.MakeVariant(label),
		"org.freedesktop.Secret.Item.Attributes": dbus.MakeVariant(attrs),
	}
	var item dbus.ObjectPath
	var prompt dbus.ObjectPath
	call := s.conn.Object(dbusServiceName, collection).Call(dbusCollectionIface+".CreateItem", 0, properties, secret, true)
	if call.Err != nil {
		return fmt.Errorf("create item: %w", call.Err)
	}
	if err := call.Store(&item, &prompt); err != nil {
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (s *secretService) searchItems(collection dbus.ObjectPath, attrs map[string]string) ([]dbus.ObjectPath, error) {
	var results []dbus.ObjectPath
	err := s.conn.Object(dbusServiceName, collection).Call(dbusCollectionIface+".SearchItems", 0, attrs).Store(&results)
	if err != nil {
		return nil, fmt.Errorf("search items: %w", err)
	}
	return results, nil
}

func (s *secretService) getSecret(item dbus.ObjectPath, session dbus.ObjectPath) (secretServiceSecret, error) {
	var secret secretServiceSecret
	err := s.conn.Object(dbusServiceName, item).Call(dbusItemIface+".GetSecret", 0, session).Store(&secret)
	if err != nil {
		return secretServiceSecret{}, fmt.Errorf("get secret: %w", err)
	}
	return secret, nil
}

func (s *secretService) deleteItem(item dbus.ObjectPath) error {
	var prompt dbus.ObjectPath
	err := s.conn.Object(dbusServiceName, item).Call(dbusItemIface+".Delete", 0).Store(&prompt)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
