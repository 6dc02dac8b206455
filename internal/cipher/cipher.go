// Package cipher models the cipher schemes supported by the SQLite3 Multiple
// Ciphers encryption extension: the closed set of algorithms, their tunable
// parameters, and the named legacy presets each algorithm ships with.
package cipher

import (
	"errors"
	"fmt"
	"strings"
)

// Cipher identifies an encryption algorithm understood by the engine.
type Cipher int

const (
	AES128CBC Cipher = iota + 1
	AES256CBC
	ChaCha20
	SQLCipher
	RC4
	Ascon128
)

var (
	// ErrUnknownCipher is returned when a cipher name or id does not resolve
	ErrUnknownCipher = errors.New("unknown cipher")
	// ErrUnknownPreset is returned when a preset name is not defined for a cipher
	ErrUnknownPreset = errors.New("unknown cipher preset")
	// ErrNoPreset is returned when a builder is finalized without a preset selection
	ErrNoPreset = errors.New("no cipher preset selected")
	// ErrInvalidParameter is returned when a cipher parameter is out of range
	ErrInvalidParameter = errors.New("invalid cipher parameter")
)

var cipherNames = map[Cipher]string{
	AES128CBC: "aes128cbc",
	AES256CBC: "aes256cbc",
	ChaCha20:  "chacha20",
	SQLCipher: "sqlcipher",
	RC4:       "rc4",
	Ascon128:  "ascon128",
}

// All returns every supported cipher ordered by id.
func All() []Cipher {
	return []Cipher{AES128CBC, AES256CBC, ChaCha20, SQLCipher, RC4, Ascon128}
}

// Parse resolves an engine cipher name (case-insensitive).
func Parse(name string) (Cipher, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	for _, c := range All() {
		if cipherNames[c] == n {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownCipher, name)
}

// ByID resolves a numeric cipher id.
func ByID(id int) (Cipher, error) {
	c := Cipher(id)
	if _, ok := cipherNames[c]; !ok {
		return 0, fmt.Errorf("%w: id %d", ErrUnknownCipher, id)
	}
	return c, nil
}

// String returns the name the engine uses for the cipher.
func (c Cipher) String() string {
	if n, ok := cipherNames[c]; ok {
		return n
	}
	return fmt.Sprintf("cipher(%d)", int(c))
}

// ID returns the engine's numeric cipher id.
func (c Cipher) ID() int {
	return int(c)
}

// SupportsRawKey reports whether the cipher accepts raw (non-passphrase) keys.
func (c Cipher) SupportsRawKey() bool {
	return c == SQLCipher || c == ChaCha20
}

// Parameter names as understood by the engine's PRAGMA interface.
const (
	ParamCipher              = "cipher"
	ParamLegacy              = "legacy"
	ParamLegacyPageSize      = "legacy_page_size"
	ParamKDFIter             = "kdf_iter"
	ParamFastKDFIter         = "fast_kdf_iter"
	ParamHMACUse             = "hmac_use"
	ParamHMACPgno            = "hmac_pgno"
	ParamHMACSaltMask        = "hmac_salt_mask"
	ParamKDFAlgorithm        = "kdf_algorithm"
	ParamHMACAlgorithm       = "hmac_algorithm"
	ParamPlaintextHeaderSize = "plaintext_header_size"
	ParamHMACCheck           = "hmac_check"
	ParamMCLegacyWAL         = "mc_legacy_wal"
)

// Algorithm is a hash algorithm selector for SQLCipher key derivation and HMAC.
type Algorithm int

const (
	SHA1 Algorithm = iota
	SHA256
	SHA512
)

func (a Algorithm) String() string {
	switch a {
	case SHA1:
		return "SHA1"
	case SHA256:
		return "SHA256"
	case SHA512:
		return "SHA512"
	}
	return fmt.Sprintf("Algorithm(%d)", int(a))
}

// ParseAlgorithm resolves an algorithm name such as "sha256".
func ParseAlgorithm(name string) (Algorithm, error) {
	switch strings.ToUpper(strings.TrimSpace(name)) {
	case "SHA1":
		return SHA1, nil
	case "SHA256":
		return SHA256, nil
	case "SHA512":
		return SHA512, nil
	}
	return 0, fmt.Errorf("%w: unknown algorithm %q", ErrInvalidParameter, name)
}

// InvalidParameterError describes a parameter that failed validation.
type InvalidParameterError struct {
	Cipher Cipher
	Param  string
	Value  any
	Reason string
}

func (e *InvalidParameterError) Error() string {
	return fmt.Sprintf("invalid %s parameter %s=%v: %s", e.Cipher, e.Param, e.Value, e.Reason)
}

func (e *InvalidParameterError) Unwrap() error {
	return ErrInvalidParameter
}
