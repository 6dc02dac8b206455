package cipher

import "strconv"

// Selection is the first phase of building a cipher config: a preset (or
// inheritance from an existing config) must be chosen before any parameter
// can be overridden. Config fails with ErrNoPreset when nothing was chosen.
type Selection interface {
	Config() (Config, error)
}

var legacyRanges = map[Cipher][2]int{
	AES128CBC: {0, 1},
	AES256CBC: {0, 1},
	ChaCha20:  {0, 1},
	SQLCipher: {0, 4},
	RC4:       {1, 1},
	Ascon128:  {0, 0},
}

func checkRange(c Cipher, param string, v, min, max int) error {
	if v < min || v > max {
		return &InvalidParameterError{Cipher: c, Param: param, Value: v, Reason: rangeReason(min, max)}
	}
	return nil
}

func rangeReason(min, max int) string {
	if min == max {
		return "must be " + strconv.Itoa(min)
	}
	return "must be between " + strconv.Itoa(min) + " and " + strconv.Itoa(max)
}

func checkLegacy(c Cipher, v int) error {
	r := legacyRanges[c]
	return checkRange(c, ParamLegacy, v, r[0], r[1])
}

func checkPageSize(c Cipher, v int) error {
	if v == 0 || (v >= 512 && v <= 65536 && v&(v-1) == 0) {
		return nil
	}
	return &InvalidParameterError{Cipher: c, Param: ParamLegacyPageSize, Value: v, Reason: "must be 0 or a power of two between 512 and 65536"}
}

func checkPositive(c Cipher, param string, v int) error {
	if v <= 0 {
		return &InvalidParameterError{Cipher: c, Param: param, Value: v, Reason: "must be greater than 0"}
	}
	return nil
}

func checkAlgorithm(param string, a Algorithm) error {
	if a < SHA1 || a > SHA512 {
		return &InvalidParameterError{Cipher: SQLCipher, Param: param, Value: int(a), Reason: "must be SHA1, SHA256 or SHA512"}
	}
	return nil
}

func checkHeaderSize(v int) error {
	if v < 0 || v > 100 || v%16 != 0 {
		return &InvalidParameterError{Cipher: SQLCipher, Param: ParamPlaintextHeaderSize, Value: v, Reason: "must be a multiple of 16 between 0 and 100"}
	}
	return nil
}

// apply runs set when no earlier setter failed and check passed. The first
// failure sticks.
func apply(errp *error, check error, set func()) {
	if *errp != nil {
		return
	}
	if check != nil {
		*errp = check
		return
	}
	set()
}

// AES128CBC

// AES128CBCOptions selects an AES-128 CBC preset.
type AES128CBCOptions struct {
	other    *AES128CBCConfig
	selected *AES128CBCBuilder
}

// NewAES128CBCOptions starts a selection; other may be nil.
func NewAES128CBCOptions(other *AES128CBCConfig) *AES128CBCOptions {
	return &AES128CBCOptions{other: other}
}

// Default selects the default preset.
func (o *AES128CBCOptions) Default() *AES128CBCBuilder { return o.use(aes128Default, nil) }

// Wxsqlite3 selects the wxSQLite3 compatible preset.
func (o *AES128CBCOptions) Wxsqlite3() *AES128CBCBuilder { return o.use(aes128Wxsqlite3, nil) }

// Inherit copies every field of the config the options were created from.
func (o *AES128CBCOptions) Inherit() *AES128CBCBuilder {
	if o.other == nil {
		return o.use(AES128CBCConfig{}, ErrNoPreset)
	}
	return o.use(*o.other, nil)
}

func (o *AES128CBCOptions) use(c AES128CBCConfig, err error) *AES128CBCBuilder {
	o.selected = &AES128CBCBuilder{cfg: c, err: err}
	return o.selected
}

// Config builds the selected preset. It fails with ErrNoPreset when none was selected.
func (o *AES128CBCOptions) Config() (Config, error) {
	if o.selected == nil {
		return nil, ErrNoPreset
	}
	c, err := o.selected.Build()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AES128CBCBuilder overrides parameters of a selected preset.
type AES128CBCBuilder struct {
	cfg AES128CBCConfig
	err error
}

// Legacy sets the legacy mode.
func (b *AES128CBCBuilder) Legacy(v int) *AES128CBCBuilder {
	apply(&b.err, checkLegacy(AES128CBC, v), func() { b.cfg.legacy = v })
	return b
}

// LegacyPageSize sets the page size; 0 keeps the engine default.
func (b *AES128CBCBuilder) LegacyPageSize(v int) *AES128CBCBuilder {
	apply(&b.err, checkPageSize(AES128CBC, v), func() { b.cfg.legacyPageSize = v })
	return b
}

// Build finalizes the config or returns the first setter error.
func (b *AES128CBCBuilder) Build() (*AES128CBCConfig, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.cfg
	return &c, nil
}

// AES256CBC

// AES256CBCOptions selects an AES-256 CBC preset.
type AES256CBCOptions struct {
	other    *AES256CBCConfig
	selected *AES256CBCBuilder
}

// NewAES256CBCOptions starts a selection; other may be nil.
func NewAES256CBCOptions(other *AES256CBCConfig) *AES256CBCOptions {
	return &AES256CBCOptions{other: other}
}

// Default selects the default preset.
func (o *AES256CBCOptions) Default() *AES256CBCBuilder { return o.use(aes256Default, nil) }

// Wxsqlite3 selects the wxSQLite3 compatible preset.
func (o *AES256CBCOptions) Wxsqlite3() *AES256CBCBuilder { return o.use(aes256Wxsqlite3, nil) }

// Inherit copies every field of the config the options were created from.
func (o *AES256CBCOptions) Inherit() *AES256CBCBuilder {
	if o.other == nil {
		return o.use(AES256CBCConfig{}, ErrNoPreset)
	}
	return o.use(*o.other, nil)
}

func (o *AES256CBCOptions) use(c AES256CBCConfig, err error) *AES256CBCBuilder {
	o.selected = &AES256CBCBuilder{cfg: c, err: err}
	return o.selected
}

// Config builds the selected preset. It fails with ErrNoPreset when none was selected.
func (o *AES256CBCOptions) Config() (Config, error) {
	if o.selected == nil {
		return nil, ErrNoPreset
	}
	c, err := o.selected.Build()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// AES256CBCBuilder overrides parameters of a selected preset.
type AES256CBCBuilder struct {
	cfg AES256CBCConfig
	err error
}

// Legacy sets the legacy mode.
func (b *AES256CBCBuilder) Legacy(v int) *AES256CBCBuilder {
	apply(&b.err, checkLegacy(AES256CBC, v), func() { b.cfg.legacy = v })
	return b
}

// LegacyPageSize sets the page size; 0 keeps the engine default.
func (b *AES256CBCBuilder) LegacyPageSize(v int) *AES256CBCBuilder {
	apply(&b.err, checkPageSize(AES256CBC, v), func() { b.cfg.legacyPageSize = v })
	return b
}

// KDFIter sets the key derivation iteration count.
func (b *AES256CBCBuilder) KDFIter(v int) *AES256CBCBuilder {
	apply(&b.err, checkPositive(AES256CBC, ParamKDFIter, v), func() { b.cfg.kdfIter = v })
	return b
}

// Build finalizes the config or returns the first setter error.
func (b *AES256CBCBuilder) Build() (*AES256CBCConfig, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.cfg
	return &c, nil
}

// ChaCha20

// ChaCha20Options selects a ChaCha20 preset.
type ChaCha20Options struct {
	other    *ChaCha20Config
	selected *ChaCha20Builder
}

// NewChaCha20Options starts a selection; other may be nil.
func NewChaCha20Options(other *ChaCha20Config) *ChaCha20Options {
	return &ChaCha20Options{other: other}
}

// Default selects the default preset.
func (o *ChaCha20Options) Default() *ChaCha20Builder { return o.use(chacha20Default, nil) }

// Sqleet selects the sqleet compatible preset.
func (o *ChaCha20Options) Sqleet() *ChaCha20Builder { return o.use(chacha20Sqleet, nil) }

// Inherit copies every field of the config the options were created from.
func (o *ChaCha20Options) Inherit() *ChaCha20Builder {
	if o.other == nil {
		return o.use(ChaCha20Config{}, ErrNoPreset)
	}
	return o.use(*o.other, nil)
}

func (o *ChaCha20Options) use(c ChaCha20Config, err error) *ChaCha20Builder {
	o.selected = &ChaCha20Builder{cfg: c, err: err}
	return o.selected
}

// Config builds the selected preset. It fails with ErrNoPreset when none was selected.
func (o *ChaCha20Options) Config() (Config, error) {
	if o.selected == nil {
		return nil, ErrNoPreset
	}
	c, err := o.selected.Build()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// ChaCha20Builder overrides parameters of a selected preset.
type ChaCha20Builder struct {
	cfg ChaCha20Config
	err error
}

// Legacy sets the legacy mode.
func (b *ChaCha20Builder) Legacy(v int) *ChaCha20Builder {
	apply(&b.err, checkLegacy(ChaCha20, v), func() { b.cfg.legacy = v })
	return b
}

// LegacyPageSize sets the page size; 0 keeps the engine default.
func (b *ChaCha20Builder) LegacyPageSize(v int) *ChaCha20Builder {
	apply(&b.err, checkPageSize(ChaCha20, v), func() { b.cfg.legacyPageSize = v })
	return b
}

// KDFIter sets the key derivation iteration count.
func (b *ChaCha20Builder) KDFIter(v int) *ChaCha20Builder {
	apply(&b.err, checkPositive(ChaCha20, ParamKDFIter, v), func() { b.cfg.kdfIter = v })
	return b
}

// Build finalizes the config or returns the first setter error.
func (b *ChaCha20Builder) Build() (*ChaCha20Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.cfg
	return &c, nil
}

// SQLCipher

// SQLCipherOptions selects a SQLCipher compatibility preset.
type SQLCipherOptions struct {
	other    *SQLCipherConfig
	selected *SQLCipherBuilder
}

// NewSQLCipherOptions starts a selection; other may be nil.
func NewSQLCipherOptions(other *SQLCipherConfig) *SQLCipherOptions {
	return &SQLCipherOptions{other: other}
}

// Default selects the default preset.
func (o *SQLCipherOptions) Default() *SQLCipherBuilder { return o.use(sqlcipherDefault, nil) }

// V1 selects the SQLCipher version 1 preset.
func (o *SQLCipherOptions) V1() *SQLCipherBuilder { return o.use(sqlcipherV1, nil) }

// V2 selects the SQLCipher version 2 preset.
func (o *SQLCipherOptions) V2() *SQLCipherBuilder { return o.use(sqlcipherV2, nil) }

// V3 selects the SQLCipher version 3 preset.
func (o *SQLCipherOptions) V3() *SQLCipherBuilder { return o.use(sqlcipherV3, nil) }

// V4 selects the SQLCipher version 4 preset.
func (o *SQLCipherOptions) V4() *SQLCipherBuilder { return o.use(sqlcipherV4, nil) }

// Inherit copies every field of the config the options were created from.
func (o *SQLCipherOptions) Inherit() *SQLCipherBuilder {
	if o.other == nil {
		return o.use(SQLCipherConfig{}, ErrNoPreset)
	}
	return o.use(*o.other, nil)
}

func (o *SQLCipherOptions) use(c SQLCipherConfig, err error) *SQLCipherBuilder {
	o.selected = &SQLCipherBuilder{cfg: c, err: err}
	return o.selected
}

// Config builds the selected preset. It fails with ErrNoPreset when none was selected.
func (o *SQLCipherOptions) Config() (Config, error) {
	if o.selected == nil {
		return nil, ErrNoPreset
	}
	c, err := o.selected.Build()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// SQLCipherBuilder overrides parameters of a selected preset.
type SQLCipherBuilder struct {
	cfg SQLCipherConfig
	err error
}

// Legacy sets the legacy mode.
func (b *SQLCipherBuilder) Legacy(v int) *SQLCipherBuilder {
	apply(&b.err, checkLegacy(SQLCipher, v), func() { b.cfg.legacy = v })
	return b
}

// LegacyPageSize sets the page size; 0 keeps the engine default.
func (b *SQLCipherBuilder) LegacyPageSize(v int) *SQLCipherBuilder {
	apply(&b.err, checkPageSize(SQLCipher, v), func() { b.cfg.legacyPageSize = v })
	return b
}

// KDFIter sets the key derivation iteration count.
func (b *SQLCipherBuilder) KDFIter(v int) *SQLCipherBuilder {
	apply(&b.err, checkPositive(SQLCipher, ParamKDFIter, v), func() { b.cfg.kdfIter = v })
	return b
}

// FastKDFIter sets the iteration count used to derive the HMAC key.
func (b *SQLCipherBuilder) FastKDFIter(v int) *SQLCipherBuilder {
	apply(&b.err, checkPositive(SQLCipher, ParamFastKDFIter, v), func() { b.cfg.fastKDFIter = v })
	return b
}

// HMACUse turns the per-page HMAC on or off.
func (b *SQLCipherBuilder) HMACUse(v bool) *SQLCipherBuilder {
	apply(&b.err, nil, func() { b.cfg.hmacUse = v })
	return b
}

// HMACPgno sets how the page number is stored for the HMAC.
func (b *SQLCipherBuilder) HMACPgno(v int) *SQLCipherBuilder {
	apply(&b.err, checkRange(SQLCipher, ParamHMACPgno, v, 0, 2), func() { b.cfg.hmacPgno = v })
	return b
}

// HMACSaltMask sets the mask applied to the salt of the HMAC key.
func (b *SQLCipherBuilder) HMACSaltMask(v int) *SQLCipherBuilder {
	apply(&b.err, checkRange(SQLCipher, ParamHMACSaltMask, v, 0, 255), func() { b.cfg.hmacSaltMask = v })
	return b
}

// KDFAlgorithm sets the key derivation hash.
func (b *SQLCipherBuilder) KDFAlgorithm(a Algorithm) *SQLCipherBuilder {
	apply(&b.err, checkAlgorithm(ParamKDFAlgorithm, a), func() { b.cfg.kdfAlgorithm = someAlgorithm(a) })
	return b
}

// HMACAlgorithm sets the HMAC hash.
func (b *SQLCipherBuilder) HMACAlgorithm(a Algorithm) *SQLCipherBuilder {
	apply(&b.err, checkAlgorithm(ParamHMACAlgorithm, a), func() { b.cfg.hmacAlgorithm = someAlgorithm(a) })
	return b
}

// PlaintextHeaderSize leaves the first v bytes of the database unencrypted.
func (b *SQLCipherBuilder) PlaintextHeaderSize(v int) *SQLCipherBuilder {
	apply(&b.err, checkHeaderSize(v), func() { b.cfg.plaintextHeaderSize = v })
	return b
}

// Build finalizes the config. Algorithms are dropped for legacy modes that
// fix them, and filled from the baseline when the legacy mode makes them
// applicable again.
func (b *SQLCipherBuilder) Build() (*SQLCipherConfig, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.cfg
	if sqlcipherAlgorithmsApply(c.legacy) {
		base := Baseline(&c).(*SQLCipherConfig)
		if !c.kdfAlgorithm.Valid {
			c.kdfAlgorithm = base.kdfAlgorithm
		}
		if !c.hmacAlgorithm.Valid {
			c.hmacAlgorithm = base.hmacAlgorithm
		}
	} else {
		c.kdfAlgorithm = NullAlgorithm{}
		c.hmacAlgorithm = NullAlgorithm{}
	}
	return &c, nil
}

// RC4

// RC4Options selects an RC4 preset.
type RC4Options struct {
	other    *RC4Config
	selected *RC4Builder
}

// NewRC4Options starts a selection; other may be nil.
func NewRC4Options(other *RC4Config) *RC4Options {
	return &RC4Options{other: other}
}

// Default selects the default preset.
func (o *RC4Options) Default() *RC4Builder { return o.use(rc4Default, nil) }

// Inherit copies every field of the config the options were created from.
func (o *RC4Options) Inherit() *RC4Builder {
	if o.other == nil {
		return o.use(RC4Config{}, ErrNoPreset)
	}
	return o.use(*o.other, nil)
}

func (o *RC4Options) use(c RC4Config, err error) *RC4Builder {
	o.selected = &RC4Builder{cfg: c, err: err}
	return o.selected
}

// Config builds the selected preset. It fails with ErrNoPreset when none was selected.
func (o *RC4Options) Config() (Config, error) {
	if o.selected == nil {
		return nil, ErrNoPreset
	}
	c, err := o.selected.Build()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// RC4Builder overrides parameters of a selected preset.
type RC4Builder struct {
	cfg RC4Config
	err error
}

// LegacyPageSize sets the page size; 0 keeps the engine default.
func (b *RC4Builder) LegacyPageSize(v int) *RC4Builder {
	apply(&b.err, checkPageSize(RC4, v), func() { b.cfg.legacyPageSize = v })
	return b
}

// Build finalizes the config or returns the first setter error.
func (b *RC4Builder) Build() (*RC4Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.cfg
	return &c, nil
}

// Ascon128

// Ascon128Options selects an Ascon-128 preset.
type Ascon128Options struct {
	other    *Ascon128Config
	selected *Ascon128Builder
}

// NewAscon128Options starts a selection; other may be nil.
func NewAscon128Options(other *Ascon128Config) *Ascon128Options {
	return &Ascon128Options{other: other}
}

// Default selects the default preset.
func (o *Ascon128Options) Default() *Ascon128Builder { return o.use(ascon128Default, nil) }

// Inherit copies every field of the config the options were created from.
func (o *Ascon128Options) Inherit() *Ascon128Builder {
	if o.other == nil {
		return o.use(Ascon128Config{}, ErrNoPreset)
	}
	return o.use(*o.other, nil)
}

func (o *Ascon128Options) use(c Ascon128Config, err error) *Ascon128Builder {
	o.selected = &Ascon128Builder{cfg: c, err: err}
	return o.selected
}

// Config builds the selected preset. It fails with ErrNoPreset when none was selected.
func (o *Ascon128Options) Config() (Config, error) {
	if o.selected == nil {
		return nil, ErrNoPreset
	}
	c, err := o.selected.Build()
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Ascon128Builder overrides parameters of a selected preset.
type Ascon128Builder struct {
	cfg Ascon128Config
	err error
}

// LegacyPageSize sets the page size; 0 keeps the engine default.
func (b *Ascon128Builder) LegacyPageSize(v int) *Ascon128Builder {
	apply(&b.err, checkPageSize(Ascon128, v), func() { b.cfg.legacyPageSize = v })
	return b
}

// KDFIter sets the key derivation iteration count.
func (b *Ascon128Builder) KDFIter(v int) *Ascon128Builder {
	apply(&b.err, checkPositive(Ascon128, ParamKDFIter, v), func() { b.cfg.kdfIter = v })
	return b
}

// Build finalizes the config or returns the first setter error.
func (b *Ascon128Builder) Build() (*Ascon128Config, error) {
	if b.err != nil {
		return nil, b.err
	}
	c := b.cfg
	return &c, nil
}
