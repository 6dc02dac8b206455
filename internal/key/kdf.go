package key

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters
// These are recommended parameters for interactive logins
// See: https://datatracker.ietf.org/doc/html/draft-irtf-cfrg-argon2-13#section-4
const (
	// ArgonTime is the number of iterations
	ArgonTime = 3
	// ArgonMemory is the memory usage in KiB (64 MB)
	ArgonMemory = 64 * 1024
	// ArgonThreads is the number of parallel threads
	ArgonThreads = 4
)

// GenerateSalt generates a random salt for key derivation
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveRaw stretches a passphrase into a raw key using Argon2id, so the
// engine can skip its own (slower, cipher specific) key derivation.
func DeriveRaw(passphrase string, salt []byte) (*Key, error) {
	return DeriveRawWithParams(passphrase, salt, ArgonTime, ArgonMemory, ArgonThreads)
}

// DeriveRawWithParams derives a raw key with custom Argon2id parameters
// This is useful for testing with faster parameters
func DeriveRawWithParams(passphrase string, salt []byte, time, memory uint32, threads uint8) (*Key, error) {
	if len(salt) != SaltLength {
		return nil, ErrInvalidKeySize
	}
	derived := argon2.IDKey([]byte(passphrase), salt, time, memory, threads, RawKeyLength)
	return Raw(derived, nil)
}
