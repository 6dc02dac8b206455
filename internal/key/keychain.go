package key

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/zalando/go-keyring"
)

// KeychainService is the service name used in the OS keychain
const KeychainService = "cipherdb"

var (
	// ErrNotInKeychain is returned when no key is stored for a database
	ErrNotInKeychain = errors.New("no key found in keychain")
)

const (
	kindPassphrase = "passphrase"
	kindRaw        = "raw"
)

// KeychainAvailable checks if the OS keychain is available
func KeychainAvailable() bool {
	// ErrNotFound means keychain works but key doesn't exist (that's fine)
	_, err := keyring.Get(KeychainService, "__test__")
	return err == keyring.ErrNotFound || err == nil
}

// StoreInKeychain stores the key for dbName in the OS keychain.
func StoreInKeychain(dbName string, k *Key) error {
	if k.IsEmpty() {
		return fmt.Errorf("refusing to store an empty key")
	}
	kind := kindPassphrase
	if k.raw {
		kind = kindRaw
	}
	encoded := kind + ":" + base64.StdEncoding.EncodeToString(k.material)

	if err := keyring.Set(KeychainService, dbName, encoded); err != nil {
		return fmt.Errorf("failed to store key in keychain: %w", err)
	}
	return nil
}

// FromKeychain retrieves the key stored for dbName.
func FromKeychain(dbName string) (*Key, error) {
	encoded, err := keyring.Get(KeychainService, dbName)
	if err == keyring.ErrNotFound {
		return nil, ErrNotInKeychain
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get key from keychain: %w", err)
	}

	kind, data, ok := strings.Cut(encoded, ":")
	if !ok || (kind != kindPassphrase && kind != kindRaw) {
		return nil, fmt.Errorf("invalid key entry in keychain")
	}
	material, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode key from keychain: %w", err)
	}
	return &Key{material: material, raw: kind == kindRaw}, nil
}

// DeleteFromKeychain removes the key stored for dbName.
func DeleteFromKeychain(dbName string) error {
	err := keyring.Delete(KeychainService, dbName)
	if err == keyring.ErrNotFound {
		return nil // Already deleted, not an error
	}
	if err != nil {
		return fmt.Errorf("failed to delete key from keychain: %w", err)
	}
	return nil
}

// InKeychain checks if a key exists for dbName
func InKeychain(dbName string) bool {
	_, err := keyring.Get(KeychainService, dbName)
	return err == nil
}
