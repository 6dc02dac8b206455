package cipher

import (
	"fmt"
	"sort"
	"strings"
)

// Preset names.
const (
	PresetDefault   = "default"
	PresetWxsqlite3 = "wxsqlite3"
	PresetSqleet    = "sqleet"
	PresetV1        = "v1"
	PresetV2        = "v2"
	PresetV3        = "v3"
	PresetV4        = "v4"
)

var (
	aes128Default    = AES128CBCConfig{legacy: 0, legacyPageSize: 0}
	aes128Wxsqlite3  = AES128CBCConfig{legacy: 1, legacyPageSize: 0}
	aes256Default    = AES256CBCConfig{legacy: 0, legacyPageSize: 0, kdfIter: 4001}
	aes256Wxsqlite3  = AES256CBCConfig{legacy: 1, legacyPageSize: 0, kdfIter: 4001}
	chacha20Default  = ChaCha20Config{legacy: 0, legacyPageSize: 4096, kdfIter: 64007}
	chacha20Sqleet   = ChaCha20Config{legacy: 1, legacyPageSize: 4096, kdfIter: 12345}
	rc4Default       = RC4Config{legacy: 1, legacyPageSize: 0}
	ascon128Default  = Ascon128Config{legacy: 0, legacyPageSize: 4096, kdfIter: 64007}
	sqlcipherDefault = SQLCipherConfig{
		legacy:              0,
		legacyPageSize:      4096,
		kdfIter:             256000,
		fastKDFIter:         2,
		hmacUse:             true,
		hmacPgno:            1,
		hmacSaltMask:        0x3a,
		kdfAlgorithm:        someAlgorithm(SHA512),
		hmacAlgorithm:       someAlgorithm(SHA512),
		plaintextHeaderSize: 0,
	}
	sqlcipherV1 = SQLCipherConfig{
		legacy:         1,
		legacyPageSize: 1024,
		kdfIter:        4000,
		fastKDFIter:    2,
		hmacUse:        false,
		hmacPgno:       1,
		hmacSaltMask:   0x3a,
	}
	sqlcipherV2 = SQLCipherConfig{
		legacy:         2,
		legacyPageSize: 1024,
		kdfIter:        4000,
		fastKDFIter:    2,
		hmacUse:        true,
		hmacPgno:       1,
		hmacSaltMask:   0x3a,
	}
	sqlcipherV3 = SQLCipherConfig{
		legacy:         3,
		legacyPageSize: 1024,
		kdfIter:        64000,
		fastKDFIter:    2,
		hmacUse:        true,
		hmacPgno:       1,
		hmacSaltMask:   0x3a,
	}
	sqlcipherV4 = SQLCipherConfig{
		legacy:              4,
		legacyPageSize:      4096,
		kdfIter:             256000,
		fastKDFIter:         2,
		hmacUse:             true,
		hmacPgno:            1,
		hmacSaltMask:        0x3a,
		kdfAlgorithm:        someAlgorithm(SHA512),
		hmacAlgorithm:       someAlgorithm(SHA512),
		plaintextHeaderSize: 0,
	}
)

// presets maps cipher -> preset name -> constructor. Every call returns a
// fresh copy so callers cannot mutate the canonical values.
var presets = map[Cipher]map[string]func() Config{
	AES128CBC: {
		PresetDefault:   func() Config { c := aes128Default; return &c },
		PresetWxsqlite3: func() Config { c := aes128Wxsqlite3; return &c },
	},
	AES256CBC: {
		PresetDefault:   func() Config { c := aes256Default; return &c },
		PresetWxsqlite3: func() Config { c := aes256Wxsqlite3; return &c },
	},
	ChaCha20: {
		PresetDefault: func() Config { c := chacha20Default; return &c },
		PresetSqleet:  func() Config { c := chacha20Sqleet; return &c },
	},
	SQLCipher: {
		PresetDefault: func() Config { c := sqlcipherDefault; return &c },
		PresetV1:      func() Config { c := sqlcipherV1; return &c },
		PresetV2:      func() Config { c := sqlcipherV2; return &c },
		PresetV3:      func() Config { c := sqlcipherV3; return &c },
		PresetV4:      func() Config { c := sqlcipherV4; return &c },
	},
	RC4: {
		PresetDefault: func() Config { c := rc4Default; return &c },
	},
	Ascon128: {
		PresetDefault: func() Config { c := ascon128Default; return &c },
	},
}

// Preset returns a fully populated config for the named preset of c.
func Preset(c Cipher, name string) (Config, error) {
	byName, ok := presets[c]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrUnknownCipher, int(c))
	}
	fn, ok := byName[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no preset %q", ErrUnknownPreset, c, name)
	}
	return fn(), nil
}

// Presets lists the preset names defined for c, sorted.
func Presets(c Cipher) []string {
	names := make([]string, 0, len(presets[c]))
	for n := range presets[c] {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Baseline returns the canonical config the engine assumes for cfg's cipher
// once its legacy value has been applied. Parameters equal to the baseline
// need not be configured explicitly.
func Baseline(cfg Config) Config {
	switch c := cfg.(type) {
	case *AES128CBCConfig:
		if c.legacy == 1 {
			b := aes128Wxsqlite3
			return &b
		}
		b := aes128Default
		return &b
	case *AES256CBCConfig:
		if c.legacy == 1 {
			b := aes256Wxsqlite3
			return &b
		}
		b := aes256Default
		return &b
	case *ChaCha20Config:
		if c.legacy == 1 {
			b := chacha20Sqleet
			return &b
		}
		b := chacha20Default
		return &b
	case *SQLCipherConfig:
		var b SQLCipherConfig
		switch c.legacy {
		case 1:
			b = sqlcipherV1
		case 2:
			b = sqlcipherV2
		case 3:
			b = sqlcipherV3
		case 4:
			b = sqlcipherV4
		default:
			b = sqlcipherDefault
		}
		return &b
	case *RC4Config:
		b := rc4Default
		return &b
	case *Ascon128Config:
		b := ascon128Default
		return &b
	}
	panic(fmt.Sprintf("cipher: unhandled config type %T", cfg))
}

// sqlcipherAlgorithmsApply reports whether kdf_algorithm and hmac_algorithm
// are configurable for a SQLCipher legacy value. Versions 1 through 3 are
// fixed to SHA1.
func sqlcipherAlgorithmsApply(legacy int) bool {
	return legacy == 0 || legacy == 4
}
