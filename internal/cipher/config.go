package cipher

// Config is the parameter set of one cipher variant. The set of
// implementations is closed; callers switch on the concrete type.
type Config interface {
	Cipher() Cipher
	Legacy() int
	LegacyPageSize() int
	Equal(other Config) bool

	sealed()
}

// NullAlgorithm is an Algorithm that may be not applicable for a legacy mode.
type NullAlgorithm struct {
	Algorithm Algorithm
	Valid     bool
}

func someAlgorithm(a Algorithm) NullAlgorithm {
	return NullAlgorithm{Algorithm: a, Valid: true}
}

// AES128CBCConfig is the wxSQLite3 AES-128 CBC scheme.
type AES128CBCConfig struct {
	legacy         int
	legacyPageSize int
}

func (*AES128CBCConfig) Cipher() Cipher         { return AES128CBC }
func (c *AES128CBCConfig) Legacy() int         { return c.legacy }
func (c *AES128CBCConfig) LegacyPageSize() int { return c.legacyPageSize }
func (*AES128CBCConfig) sealed()               {}

func (c *AES128CBCConfig) Equal(other Config) bool {
	o, ok := other.(*AES128CBCConfig)
	return ok && o != nil && *c == *o
}

// AES256CBCConfig is the wxSQLite3 AES-256 CBC scheme.
type AES256CBCConfig struct {
	legacy         int
	legacyPageSize int
	kdfIter        int
}

func (*AES256CBCConfig) Cipher() Cipher         { return AES256CBC }
func (c *AES256CBCConfig) Legacy() int         { return c.legacy }
func (c *AES256CBCConfig) LegacyPageSize() int { return c.legacyPageSize }
func (c *AES256CBCConfig) KDFIter() int        { return c.kdfIter }
func (*AES256CBCConfig) sealed()               {}

func (c *AES256CBCConfig) Equal(other Config) bool {
	o, ok := other.(*AES256CBCConfig)
	return ok && o != nil && *c == *o
}

// ChaCha20Config is the ChaCha20-Poly1305 scheme (sqleet compatible in legacy mode).
type ChaCha20Config struct {
	legacy         int
	legacyPageSize int
	kdfIter        int
}

func (*ChaCha20Config) Cipher() Cipher         { return ChaCha20 }
func (c *ChaCha20Config) Legacy() int         { return c.legacy }
func (c *ChaCha20Config) LegacyPageSize() int { return c.legacyPageSize }
func (c *ChaCha20Config) KDFIter() int        { return c.kdfIter }
func (*ChaCha20Config) sealed()               {}

func (c *ChaCha20Config) Equal(other Config) bool {
	o, ok := other.(*ChaCha20Config)
	return ok && o != nil && *c == *o
}

// SQLCipherConfig is the SQLCipher compatible scheme.
type SQLCipherConfig struct {
	legacy              int
	legacyPageSize      int
	kdfIter             int
	fastKDFIter         int
	hmacUse             bool
	hmacPgno            int
	hmacSaltMask        int
	kdfAlgorithm        NullAlgorithm
	hmacAlgorithm       NullAlgorithm
	plaintextHeaderSize int
}

func (*SQLCipherConfig) Cipher() Cipher              { return SQLCipher }
func (c *SQLCipherConfig) Legacy() int              { return c.legacy }
func (c *SQLCipherConfig) LegacyPageSize() int      { return c.legacyPageSize }
func (c *SQLCipherConfig) KDFIter() int             { return c.kdfIter }
func (c *SQLCipherConfig) FastKDFIter() int         { return c.fastKDFIter }
func (c *SQLCipherConfig) HMACUse() bool            { return c.hmacUse }
func (c *SQLCipherConfig) HMACPgno() int            { return c.hmacPgno }
func (c *SQLCipherConfig) HMACSaltMask() int        { return c.hmacSaltMask }
func (c *SQLCipherConfig) PlaintextHeaderSize() int { return c.plaintextHeaderSize }
func (*SQLCipherConfig) sealed()                    {}

// KDFAlgorithm is only applicable for legacy 0 and 4.
func (c *SQLCipherConfig) KDFAlgorithm() NullAlgorithm { return c.kdfAlgorithm }

// HMACAlgorithm is only applicable for legacy 0 and 4.
func (c *SQLCipherConfig) HMACAlgorithm() NullAlgorithm { return c.hmacAlgorithm }

func (c *SQLCipherConfig) Equal(other Config) bool {
	o, ok := other.(*SQLCipherConfig)
	return ok && o != nil && *c == *o
}

// RC4Config is the System.Data.SQLite RC4 scheme.
type RC4Config struct {
	legacy         int
	legacyPageSize int
}

func (*RC4Config) Cipher() Cipher         { return RC4 }
func (c *RC4Config) Legacy() int         { return c.legacy }
func (c *RC4Config) LegacyPageSize() int { return c.legacyPageSize }
func (*RC4Config) sealed()               {}

func (c *RC4Config) Equal(other Config) bool {
	o, ok := other.(*RC4Config)
	return ok && o != nil && *c == *o
}

// Ascon128Config is the Ascon-128 AEAD scheme.
type Ascon128Config struct {
	legacy         int
	legacyPageSize int
	kdfIter        int
}

func (*Ascon128Config) Cipher() Cipher         { return Ascon128 }
func (c *Ascon128Config) Legacy() int         { return c.legacy }
func (c *Ascon128Config) LegacyPageSize() int { return c.legacyPageSize }
func (c *Ascon128Config) KDFIter() int        { return c.kdfIter }
func (*Ascon128Config) sealed()               {}

func (c *Ascon128Config) Equal(other Config) bool {
	o, ok := other.(*Ascon128Config)
	return ok && o != nil && *c == *o
}
