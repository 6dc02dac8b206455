package driver

import (
	"errors"

	"github.com/russellromney/cipherdb/internal/encryption"
	"github.com/russellromney/cipherdb/internal/engine"
	"github.com/russellromney/cipherdb/internal/pragma"
)

// Logger receives one line per configuration step and SQL statement.
type Logger func(string)

// Option is a functional option for configuring a Factory.
type Option func(*options)

type options struct {
	dir          string
	encryption   *encryption.Config
	migrations   *encryption.MigrationConfig
	logger       Logger
	redact       bool
	engine       engine.Engine
	metrics      *Metrics
	journalMode  pragma.JournalMode
	afterVersion []AfterVersion
	errs         []error
}

func defaultOptions() *options {
	return &options{
		redact:      true,
		journalMode: pragma.JournalWAL,
	}
}

func (o *options) fail(err error) {
	if err != nil {
		o.errs = append(o.errs, err)
	}
}

func (o *options) err() error {
	return errors.Join(o.errs...)
}

// FilesystemOption configures databases stored in a directory.
type FilesystemOption func(*options)

// WithFilesystem stores databases in dir. Without it only ephemeral
// databases can be created.
func WithFilesystem(dir string, opts ...FilesystemOption) Option {
	return func(o *options) {
		o.dir = dir
		for _, opt := range opts {
			opt(o)
		}
	}
}

// Encryption sets the encryption scheme of the database. Without it the
// database is not encrypted and keys are ignored.
func Encryption(block func(b *encryption.Builder)) FilesystemOption {
	return func(o *options) {
		cfg, err := encryption.New(nil, block)
		o.fail(err)
		o.encryption = cfg
	}
}

// EncryptionConfig is Encryption for an already built config. A nil config
// disables encryption.
func EncryptionConfig(cfg *encryption.Config) FilesystemOption {
	return func(o *options) {
		o.encryption = cfg
	}
}

// EncryptionMigrations declares the schemes the database may still be
// encrypted with. When opening with the current scheme fails they are
// tried, most recently declared first, and the database is rekeyed to the
// current scheme.
func EncryptionMigrations(block func(b *encryption.MigrationBuilder)) FilesystemOption {
	return func(o *options) {
		m, err := encryption.NewMigrationConfig(block)
		o.fail(err)
		o.migrations = m
	}
}

// EncryptionMigrationConfig is EncryptionMigrations for an already built
// config.
func EncryptionMigrationConfig(m *encryption.MigrationConfig) FilesystemOption {
	return func(o *options) {
		o.migrations = m
	}
}

// WithLogger sets the log sink. Lines are prefixed with the database name.
func WithLogger(l Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithoutRedaction logs key and rekey statements verbatim.
// Only use this while debugging.
func WithoutRedaction() Option {
	return func(o *options) {
		o.redact = false
	}
}

// WithAfterVersion registers callbacks run during schema migration.
func WithAfterVersion(callbacks ...AfterVersion) Option {
	return func(o *options) {
		o.afterVersion = append(o.afterVersion, callbacks...)
	}
}

// WithEngine sets the engine connections are opened with.
func WithEngine(e engine.Engine) Option {
	return func(o *options) {
		o.engine = e
	}
}

// WithDriverName opens connections through the named database/sql driver.
func WithDriverName(name string) Option {
	return WithEngine(engine.New(name))
}

// WithMetrics records factory metrics.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithJournalMode sets the journal mode of file databases. Default is WAL.
func WithJournalMode(mode pragma.JournalMode) Option {
	return func(o *options) {
		o.journalMode = mode
	}
}
