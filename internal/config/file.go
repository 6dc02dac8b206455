package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/russellromney/cipherdb/internal/cipher"
	"github.com/russellromney/cipherdb/internal/driver"
	"github.com/russellromney/cipherdb/internal/encryption"
	"github.com/russellromney/cipherdb/internal/pragma"
)

var (
	// ErrUnknownDatabase is returned when the file does not describe a database
	ErrUnknownDatabase = errors.New("database not configured")
	// ErrInvalidConfig is returned when the file fails validation
	ErrInvalidConfig = errors.New("invalid configuration")
)

// validate is a singleton validator instance
var validate = validator.New()

// File is the YAML configuration file.
//
//	data_dir: ~/.cipherdb
//	driver: sqlite3mc
//	journal_mode: WAL
//	databases:
//	  app.db:
//	    encryption:
//	      cipher: sqlcipher
//	      preset: default
//	    migrations:
//	      - note: before 2.0
//	        encryption: {cipher: sqlcipher, preset: v3}
type File struct {
	DataDir     string               `yaml:"data_dir"`
	Driver      string               `yaml:"driver"`
	JournalMode string               `yaml:"journal_mode" validate:"omitempty,oneof=DELETE TRUNCATE PERSIST MEMORY WAL OFF delete truncate persist memory wal off"`
	Databases   map[string]*Database `yaml:"databases" validate:"dive,required"`
}

// Database holds the settings of one database.
type Database struct {
	Encryption *Encryption  `yaml:"encryption"`
	Migrations []*Migration `yaml:"migrations" validate:"dive,required"`
}

// Migration is a scheme the database may still be encrypted with.
type Migration struct {
	Note       string      `yaml:"note" validate:"required"`
	Encryption *Encryption `yaml:"encryption" validate:"required"`
}

// Encryption describes a cipher scheme as a preset plus overrides.
type Encryption struct {
	Cipher      string `yaml:"cipher" validate:"required,oneof=aes128cbc aes256cbc chacha20 sqlcipher rc4 ascon128"`
	Preset      string `yaml:"preset"`
	HMACCheck   *bool  `yaml:"hmac_check"`
	MCLegacyWAL bool   `yaml:"mc_legacy_wal"`

	Legacy              *int   `yaml:"legacy" validate:"omitempty,min=0"`
	LegacyPageSize      *int   `yaml:"legacy_page_size" validate:"omitempty,min=0"`
	KDFIter             *int   `yaml:"kdf_iter" validate:"omitempty,min=1"`
	FastKDFIter         *int   `yaml:"fast_kdf_iter" validate:"omitempty,min=1"`
	HMACUse             *bool  `yaml:"hmac_use"`
	HMACPgno            *int   `yaml:"hmac_pgno" validate:"omitempty,min=0,max=2"`
	HMACSaltMask        *int   `yaml:"hmac_salt_mask" validate:"omitempty,min=0,max=255"`
	KDFAlgorithm        string `yaml:"kdf_algorithm"`
	HMACAlgorithm       string `yaml:"hmac_algorithm"`
	PlaintextHeaderSize *int   `yaml:"plaintext_header_size" validate:"omitempty,min=0"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a configuration. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	f := &File{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, formatValidationError(err))
	}
	for name := range f.Databases {
		if err := driver.ValidateDBName(name); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
		}
	}
	return f, nil
}

func formatValidationError(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return err
	}

	// Return the first validation error in a user-friendly format
	for _, e := range validationErrs {
		field := e.Namespace()
		switch e.Tag() {
		case "required":
			return fmt.Errorf("%s: field is required", field)
		case "min":
			return fmt.Errorf("%s: must be at least %s", field, e.Param())
		case "max":
			return fmt.Errorf("%s: must not exceed %s", field, e.Param())
		case "oneof":
			return fmt.Errorf("%s: must be one of [%s]", field, e.Param())
		default:
			return fmt.Errorf("%s: validation failed (%s)", field, e.Tag())
		}
	}
	return err
}

// ResolvedDataDir returns DataDir with a leading ~ expanded, or the default
// data directory when unset.
func (f *File) ResolvedDataDir() (string, error) {
	dir := f.DataDir
	if dir == "" {
		return DefaultDataDir()
	}
	if dir == "~" || strings.HasPrefix(dir, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	return dir, nil
}

// Database returns the settings of the named database.
func (f *File) Database(name string) (*Database, error) {
	db, ok := f.Databases[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDatabase, name)
	}
	return db, nil
}

// FactoryOptions converts the settings of the named database into factory
// options. A database missing from the file is opened unencrypted.
func (f *File) FactoryOptions(name string) ([]driver.Option, error) {
	dir, err := f.ResolvedDataDir()
	if err != nil {
		return nil, err
	}

	var fsOpts []driver.FilesystemOption
	if db, ok := f.Databases[name]; ok {
		enc, err := db.Encryption.Build()
		if err != nil {
			return nil, fmt.Errorf("database %s: %w", name, err)
		}
		migrations, err := db.MigrationConfig()
		if err != nil {
			return nil, fmt.Errorf("database %s: %w", name, err)
		}
		fsOpts = append(fsOpts, driver.EncryptionConfig(enc), driver.EncryptionMigrationConfig(migrations))
	}

	opts := []driver.Option{driver.WithFilesystem(dir, fsOpts...)}
	if f.Driver != "" {
		opts = append(opts, driver.WithDriverName(f.Driver))
	}
	if f.JournalMode != "" {
		mode, err := pragma.ParseJournalMode(f.JournalMode)
		if err != nil {
			return nil, err
		}
		opts = append(opts, driver.WithJournalMode(mode))
	}
	return opts, nil
}

// MigrationConfig builds the declared migrations in file order.
func (d *Database) MigrationConfig() (*encryption.MigrationConfig, error) {
	var cfgs []*encryption.Config
	for _, m := range d.Migrations {
		cfg, err := m.Encryption.Build()
		if err != nil {
			return nil, fmt.Errorf("migration %q: %w", m.Note, err)
		}
		cfgs = append(cfgs, cfg)
	}
	return encryption.NewMigrationConfig(func(b *encryption.MigrationBuilder) {
		for i, m := range d.Migrations {
			b.Add(m.Note, cfgs[i])
		}
	})
}

// Build converts e into an encryption config. A nil e means no encryption.
func (e *Encryption) Build() (*encryption.Config, error) {
	if e == nil {
		return nil, nil
	}
	c, err := cipher.Parse(e.Cipher)
	if err != nil {
		return nil, err
	}
	preset := e.Preset
	if preset == "" {
		preset = cipher.PresetDefault
	}
	base, err := cipher.Preset(c, preset)
	if err != nil {
		return nil, err
	}
	cfg, err := e.override(base)
	if err != nil {
		return nil, err
	}
	return encryption.New(nil, func(b *encryption.Builder) {
		b.Cipher(cfg)
		if e.HMACCheck != nil {
			b.HMACCheck(*e.HMACCheck)
		}
		b.MCLegacyWAL(e.MCLegacyWAL)
	})
}

// override applies the explicit parameters to a preset.
func (e *Encryption) override(base cipher.Config) (cipher.Config, error) {
	var unsupported []string
	check := func(set bool, name string) {
		if set {
			unsupported = append(unsupported, name)
		}
	}
	kdf, err := parseAlgorithm(e.KDFAlgorithm)
	if err != nil {
		return nil, err
	}
	hmac, err := parseAlgorithm(e.HMACAlgorithm)
	if err != nil {
		return nil, err
	}

	var cfg cipher.Config
	switch base := base.(type) {
	case *cipher.AES128CBCConfig:
		b := cipher.NewAES128CBCOptions(base).Inherit()
		setInt(e.Legacy, b.Legacy)
		setInt(e.LegacyPageSize, b.LegacyPageSize)
		check(e.KDFIter != nil, cipher.ParamKDFIter)
		cfg, err = b.Build()
	case *cipher.AES256CBCConfig:
		b := cipher.NewAES256CBCOptions(base).Inherit()
		setInt(e.Legacy, b.Legacy)
		setInt(e.LegacyPageSize, b.LegacyPageSize)
		setInt(e.KDFIter, b.KDFIter)
		cfg, err = b.Build()
	case *cipher.ChaCha20Config:
		b := cipher.NewChaCha20Options(base).Inherit()
		setInt(e.Legacy, b.Legacy)
		setInt(e.LegacyPageSize, b.LegacyPageSize)
		setInt(e.KDFIter, b.KDFIter)
		cfg, err = b.Build()
	case *cipher.SQLCipherConfig:
		b := cipher.NewSQLCipherOptions(base).Inherit()
		setInt(e.Legacy, b.Legacy)
		setInt(e.LegacyPageSize, b.LegacyPageSize)
		setInt(e.KDFIter, b.KDFIter)
		setInt(e.FastKDFIter, b.FastKDFIter)
		if e.HMACUse != nil {
			b.HMACUse(*e.HMACUse)
		}
		setInt(e.HMACPgno, b.HMACPgno)
		setInt(e.HMACSaltMask, b.HMACSaltMask)
		if kdf != nil {
			b.KDFAlgorithm(*kdf)
		}
		if hmac != nil {
			b.HMACAlgorithm(*hmac)
		}
		setInt(e.PlaintextHeaderSize, b.PlaintextHeaderSize)
		cfg, err = b.Build()
	case *cipher.RC4Config:
		b := cipher.NewRC4Options(base).Inherit()
		check(e.Legacy != nil, cipher.ParamLegacy)
		setInt(e.LegacyPageSize, b.LegacyPageSize)
		check(e.KDFIter != nil, cipher.ParamKDFIter)
		cfg, err = b.Build()
	case *cipher.Ascon128Config:
		b := cipher.NewAscon128Options(base).Inherit()
		check(e.Legacy != nil, cipher.ParamLegacy)
		setInt(e.LegacyPageSize, b.LegacyPageSize)
		setInt(e.KDFIter, b.KDFIter)
		cfg, err = b.Build()
	default:
		return nil, fmt.Errorf("unsupported cipher config %T", base)
	}
	if err != nil {
		return nil, err
	}

	if _, ok := base.(*cipher.SQLCipherConfig); !ok {
		check(e.FastKDFIter != nil, cipher.ParamFastKDFIter)
		check(e.HMACUse != nil, cipher.ParamHMACUse)
		check(e.HMACPgno != nil, cipher.ParamHMACPgno)
		check(e.HMACSaltMask != nil, cipher.ParamHMACSaltMask)
		check(kdf != nil, cipher.ParamKDFAlgorithm)
		check(hmac != nil, cipher.ParamHMACAlgorithm)
		check(e.PlaintextHeaderSize != nil, cipher.ParamPlaintextHeaderSize)
	}
	if len(unsupported) > 0 {
		return nil, fmt.Errorf("%w: %s does not support %s", cipher.ErrInvalidParameter, base.Cipher(), strings.Join(unsupported, ", "))
	}
	return cfg, nil
}

func setInt[B any](v *int, set func(int) B) {
	if v != nil {
		set(*v)
	}
}

func parseAlgorithm(name string) (*cipher.Algorithm, error) {
	if name == "" {
		return nil, nil
	}
	a, err := cipher.ParseAlgorithm(name)
	if err != nil {
		return nil, err
	}
	return &a, nil
}
