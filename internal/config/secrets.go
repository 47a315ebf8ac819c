package config

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const keyringService = "pgstream"

// Password returns the saved password for the named connection, or "" when
// none is stored.
func Password(name string) (string, error) {
	p, err := keyring.Get(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return p, err
}

// SetPassword stores the password for the named connection.
func SetPassword(name, password string) error {
	return keyring.Set(keyringService, name, password)
}

// DeletePassword forgets the password for the named connection.
func DeletePassword(name string) error {
	err := keyring.Delete(keyringService, name)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
