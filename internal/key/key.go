// Package key holds database key material: passphrases and raw 32-byte keys,
// formatted on demand for the engine's key/rekey statements and never
// printed.
package key

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"github.com/russellromney/cipherdb/internal/cipher"
)

const (
	// RawKeyLength is the length of a raw key in bytes (256 bits)
	RawKeyLength = 32
	// SaltLength is the length of the optional database salt in bytes
	SaltLength = 16

	redacted = "[REDACTED]"
)

var (
	// ErrInvalidKeySize is returned when a raw key or salt has the wrong length
	ErrInvalidKeySize = errors.New("invalid key size: raw key must be 32 bytes and salt 16 bytes")
	// ErrUnsupportedKeyType is returned when a raw key is used with a cipher that only takes passphrases
	ErrUnsupportedKeyType = errors.New("unsupported key type")
)

// Key is either a passphrase or a raw key (with optional salt). The zero
// value and Empty are the empty passphrase, which means "no encryption".
type Key struct {
	material []byte
	raw      bool
}

// Empty removes encryption when used as a rekey target.
var Empty = &Key{}

// Passphrase wraps any string as a key.
func Passphrase(value string) *Key {
	return &Key{material: []byte(value)}
}

type rawOptions struct {
	keepKey bool
}

// RawOption adjusts Raw.
type RawOption func(*rawOptions)

// KeepKeyBuffer leaves the caller's key buffer intact. By default Raw zeroes
// it once the key has been encoded.
func KeepKeyBuffer() RawOption {
	return func(o *rawOptions) { o.keepKey = true }
}

// Raw builds a raw key from exactly 32 key bytes and an optional 16 byte
// salt. The key buffer is overwritten with zeros after encoding unless
// KeepKeyBuffer is given; the salt is never modified.
func Raw(key, salt []byte, opts ...RawOption) (*Key, error) {
	if len(key) != RawKeyLength {
		return nil, ErrInvalidKeySize
	}
	if len(salt) != 0 && len(salt) != SaltLength {
		return nil, ErrInvalidKeySize
	}
	var o rawOptions
	for _, opt := range opts {
		opt(&o)
	}

	buf := make([]byte, 0, len(key)+len(salt))
	buf = append(buf, key...)
	buf = append(buf, salt...)
	material := make([]byte, hex.EncodedLen(len(buf)))
	hex.Encode(material, buf)
	zero(buf)

	if !o.keepKey {
		zero(key)
	}
	return &Key{material: material, raw: true}, nil
}

// RawFromHex parses a hex encoded key (64 digits) optionally followed by a
// hex encoded salt (32 digits).
func RawFromHex(s string) (*Key, error) {
	b, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode raw key: %w", err)
	}
	defer zero(b)
	switch len(b) {
	case RawKeyLength:
		return Raw(b, nil)
	case RawKeyLength + SaltLength:
		return Raw(b[:RawKeyLength], b[RawKeyLength:])
	}
	return nil, ErrInvalidKeySize
}

// IsRaw reports whether the key is a raw key.
func (k *Key) IsRaw() bool {
	return k != nil && k.raw
}

// IsEmpty reports whether the key carries no material.
func (k *Key) IsEmpty() bool {
	return k == nil || len(k.material) == 0
}

// Retrieve formats the key as the value of a key or rekey statement for c.
// Passphrases become quoted SQL literals. Raw keys are only accepted by the
// SQLCipher (x'...' blob) and ChaCha20 (raw: prefix) schemes.
func (k *Key) Retrieve(c cipher.Cipher) (string, error) {
	if k.IsEmpty() {
		return "''", nil
	}
	if !k.raw {
		return "'" + strings.ReplaceAll(string(k.material), "'", "''") + "'", nil
	}
	switch c {
	case cipher.SQLCipher:
		return `"x'` + string(k.material) + `'"`, nil
	case cipher.ChaCha20:
		return "'raw:" + string(k.material) + "'", nil
	}
	return "", fmt.Errorf("%w: raw keys are not supported by %s", ErrUnsupportedKeyType, c)
}

// Equal compares key material.
func (k *Key) Equal(other *Key) bool {
	if k.IsEmpty() || other.IsEmpty() {
		return k.IsEmpty() == other.IsEmpty()
	}
	return k.raw == other.raw && string(k.material) == string(other.material)
}

// Clone returns an independent copy that can be wiped without affecting k.
func (k *Key) Clone() *Key {
	if k == nil {
		return &Key{}
	}
	m := make([]byte, len(k.material))
	copy(m, k.material)
	return &Key{material: m, raw: k.raw}
}

// Wipe zeroes the key material. The key is empty afterwards.
func (k *Key) Wipe() {
	if k == nil || k == Empty {
		return
	}
	zero(k.material)
	k.material = nil
}

func (k *Key) String() string {
	return "Key" + redacted
}

func (k *Key) GoString() string {
	return "key.Key" + redacted
}

// LogValue keeps key material out of structured logs.
func (k *Key) LogValue() slog.Value {
	return slog.StringValue(redacted)
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}
