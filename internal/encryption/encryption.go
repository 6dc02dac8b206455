// Package encryption describes how a database file is encrypted: the current
// scheme and the historical schemes a database may still be found in.
package encryption

import (
	"errors"
	"fmt"

	"github.com/russellromney/cipherdb/internal/cipher"
)

var (
	// ErrNoCipherSelected is returned when a config block never chose a cipher
	ErrNoCipherSelected = errors.New("no cipher selected")
)

// Config is one encryption scheme: a cipher config plus the engine-wide
// hmac_check and mc_legacy_wal switches. A nil *Config means "unencrypted".
type Config struct {
	cipher      cipher.Config
	hmacCheck   bool
	mcLegacyWAL bool
}

func (c *Config) Cipher() cipher.Config { return c.cipher }

// HMACCheck defaults to true.
func (c *Config) HMACCheck() bool { return c.hmacCheck }

// MCLegacyWAL defaults to false.
func (c *Config) MCLegacyWAL() bool { return c.mcLegacyWAL }

// Equal compares configs structurally. Two nil configs are equal.
func (c *Config) Equal(other *Config) bool {
	if c == nil || other == nil {
		return c == nil && other == nil
	}
	return c.hmacCheck == other.hmacCheck &&
		c.mcLegacyWAL == other.mcLegacyWAL &&
		c.cipher.Equal(other.cipher)
}

func (c *Config) String() string {
	if c == nil {
		return "none"
	}
	return fmt.Sprintf("%s(legacy=%d)", c.cipher.Cipher(), c.cipher.Legacy())
}

// Builder collects the choices made inside a New block.
type Builder struct {
	other       *Config
	selection   cipher.Selection
	direct      cipher.Config
	hmacCheck   bool
	mcLegacyWAL bool
}

func (b *Builder) otherCipher() cipher.Config {
	if b.other == nil {
		return nil
	}
	return b.other.cipher
}

func (b *Builder) choose(s cipher.Selection) {
	b.selection = s
	b.direct = nil
}

// AES128CBC selects the AES-128 CBC scheme. When the inherited config uses
// the same scheme, Inherit() on the returned options starts from it.
func (b *Builder) AES128CBC() *cipher.AES128CBCOptions {
	other, _ := b.otherCipher().(*cipher.AES128CBCConfig)
	o := cipher.NewAES128CBCOptions(other)
	b.choose(o)
	return o
}

func (b *Builder) AES256CBC() *cipher.AES256CBCOptions {
	other, _ := b.otherCipher().(*cipher.AES256CBCConfig)
	o := cipher.NewAES256CBCOptions(other)
	b.choose(o)
	return o
}

func (b *Builder) ChaCha20() *cipher.ChaCha20Options {
	other, _ := b.otherCipher().(*cipher.ChaCha20Config)
	o := cipher.NewChaCha20Options(other)
	b.choose(o)
	return o
}

func (b *Builder) SQLCipher() *cipher.SQLCipherOptions {
	other, _ := b.otherCipher().(*cipher.SQLCipherConfig)
	o := cipher.NewSQLCipherOptions(other)
	b.choose(o)
	return o
}

func (b *Builder) RC4() *cipher.RC4Options {
	other, _ := b.otherCipher().(*cipher.RC4Config)
	o := cipher.NewRC4Options(other)
	b.choose(o)
	return o
}

func (b *Builder) Ascon128() *cipher.Ascon128Options {
	other, _ := b.otherCipher().(*cipher.Ascon128Config)
	o := cipher.NewAscon128Options(other)
	b.choose(o)
	return o
}

// Cipher uses an already built cipher config.
func (b *Builder) Cipher(c cipher.Config) {
	b.selection = nil
	b.direct = c
}

func (b *Builder) HMACCheck(v bool) {
	b.hmacCheck = v
}

func (b *Builder) MCLegacyWAL(v bool) {
	b.mcLegacyWAL = v
}

// New builds a Config by applying block to a builder seeded from other
// (which may be nil). Without other, block must select a cipher.
func New(other *Config, block func(b *Builder)) (*Config, error) {
	b := &Builder{other: other, hmacCheck: true}
	if other != nil {
		b.hmacCheck = other.hmacCheck
		b.mcLegacyWAL = other.mcLegacyWAL
	}
	if block != nil {
		block(b)
	}

	var c cipher.Config
	switch {
	case b.selection != nil:
		sel, err := b.selection.Config()
		if err != nil {
			return nil, err
		}
		c = sel
	case b.direct != nil:
		c = b.direct
	case other != nil:
		c = other.cipher
	default:
		return nil, ErrNoCipherSelected
	}

	return &Config{cipher: c, hmacCheck: b.hmacCheck, mcLegacyWAL: b.mcLegacyWAL}, nil
}

// NewOrNil is New without the error; any failure yields nil (unencrypted).
func NewOrNil(other *Config, block func(b *Builder)) *Config {
	c, err := New(other, block)
	if err != nil {
		return nil
	}
	return c
}
