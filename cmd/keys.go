package cmd

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/russellromney/cipherdb/internal/driver"
	"github.com/russellromney/cipherdb/internal/key"
)

// keyFlags selects where a key comes from.
type keyFlags struct {
	passphrase string
	rawHex     string
	deriveSalt string
	prompt     bool
}

func (f *keyFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.passphrase, "key", "k", "", "Passphrase (non-interactive mode)")
	cmd.Flags().StringVar(&f.rawHex, "raw-key", "", "Raw key as 64 hex digits, optionally followed by a 32 digit salt")
	cmd.Flags().StringVar(&f.deriveSalt, "derive-salt", "", "Derive a raw key from the passphrase with Argon2id using this hex salt")
	cmd.Flags().BoolVar(&f.prompt, "prompt", false, "Force passphrase prompt (ignore keychain)")
	cmd.MarkFlagsMutuallyExclusive("key", "raw-key")
	cmd.MarkFlagsMutuallyExclusive("raw-key", "derive-salt")
}

// resolve returns the key for the factory's database. Unencrypted databases
// get the empty key. Otherwise the flags win, then the keychain, then a
// prompt.
func (f *keyFlags) resolve(factory *driver.Factory, label string) (*key.Key, error) {
	if factory.Encryption() == nil {
		return key.Empty, nil
	}
	switch {
	case f.rawHex != "":
		return key.RawFromHex(f.rawHex)
	case f.passphrase != "":
		return f.derive(key.Passphrase(f.passphrase), f.passphrase)
	}

	if !f.prompt && key.KeychainAvailable() {
		k, err := key.FromKeychain(factory.DBName())
		if err == nil {
			return k, nil
		}
		if !errors.Is(err, key.ErrNotInKeychain) {
			return nil, err
		}
	}
	if f.deriveSalt == "" {
		return promptKey(label)
	}
	pass, err := readPassphrase(label)
	if err != nil {
		return nil, err
	}
	return f.derive(nil, pass)
}

// derive turns passphrase into a raw key when a salt was given, and returns
// k otherwise.
func (f *keyFlags) derive(k *key.Key, passphrase string) (*key.Key, error) {
	if f.deriveSalt == "" {
		return k, nil
	}
	salt, err := hex.DecodeString(f.deriveSalt)
	if err != nil {
		return nil, fmt.Errorf("invalid salt: %w", err)
	}
	return key.DeriveRaw(passphrase, salt)
}

func readPassphrase(label string) (string, error) {
	fmt.Printf("%s: ", label)
	pass, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase: %w", err)
	}
	return string(pass), nil
}

func promptKey(label string) (*key.Key, error) {
	pass, err := readPassphrase(label)
	if err != nil {
		return nil, err
	}
	return key.Passphrase(pass), nil
}

// promptNewKey asks for a passphrase twice.
func promptNewKey(label string) (*key.Key, error) {
	k, err := promptKey(label)
	if err != nil {
		return nil, err
	}
	confirm, err := promptKey("Confirm " + label)
	if err != nil {
		return nil, err
	}
	if !k.Equal(confirm) {
		return nil, fmt.Errorf("passphrases do not match")
	}
	return k, nil
}
