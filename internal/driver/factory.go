// Package driver opens encrypted SQLite databases. A Factory owns one
// database name and its encryption settings; it applies the cipher
// configuration and key on every open, rekeys when asked, and migrates
// databases still encrypted with an older scheme.
package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/russellromney/cipherdb/internal/encryption"
	"github.com/russellromney/cipherdb/internal/engine"
	"github.com/russellromney/cipherdb/internal/key"
	"github.com/russellromney/cipherdb/internal/pragma"
)

// EphemeralOpt selects a database that is never encrypted and does not
// outlive its connections.
type EphemeralOpt int

const (
	// InMemory is a private in-memory database.
	InMemory EphemeralOpt = iota
	// Temporary is a private on-disk database deleted on close.
	Temporary
	// SharedMemory is an in-memory database shared by every connection of
	// the factory.
	SharedMemory
)

func (o EphemeralOpt) String() string {
	switch o {
	case InMemory:
		return "in-memory"
	case Temporary:
		return "temporary"
	case SharedMemory:
		return "shared-memory"
	}
	return fmt.Sprintf("EphemeralOpt(%d)", int(o))
}

// Factory creates connections to one database.
type Factory struct {
	dbName string
	schema Schema
	opts   *options
	engine engine.Engine

	// sem serializes creates; configuration and migration state is shared.
	sem *semaphore.Weighted
	// hasOpened latches once a create succeeded. Later failures never
	// attempt migrations.
	hasOpened atomic.Bool
	sharedID  uuid.UUID
}

// ValidateDBName checks that name can be used as a database file name.
func ValidateDBName(name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return fmt.Errorf("%w: database name is blank", ErrInvalidArgument)
	case strings.ContainsAny(name, "\r\n"):
		return fmt.Errorf("%w: database name spans multiple lines", ErrInvalidArgument)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("%w: database name %q contains a path separator", ErrInvalidArgument, name)
	}
	return nil
}

// NewFactory creates a factory for the database dbName. schema may be nil.
func NewFactory(dbName string, schema Schema, opts ...Option) (*Factory, error) {
	if err := ValidateDBName(dbName); err != nil {
		return nil, err
	}
	if schema != nil && schema.Version() < 1 {
		return nil, fmt.Errorf("%w: schema version %d must be at least 1", ErrInvalidArgument, schema.Version())
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	if err := o.err(); err != nil {
		return nil, invalidArgument(err)
	}
	e := o.engine
	if e == nil {
		e = engine.New(engine.DefaultDriver)
	}

	return &Factory{
		dbName:   dbName,
		schema:   schema,
		opts:     o,
		engine:   e,
		sem:      semaphore.NewWeighted(1),
		sharedID: uuid.New(),
	}, nil
}

// DBName returns the database name.
func (f *Factory) DBName() string {
	return f.dbName
}

// Path returns the database file path, or "" without a filesystem.
func (f *Factory) Path() string {
	if f.opts.dir == "" {
		return ""
	}
	return engine.FileDSN(f.opts.dir, f.dbName)
}

// Encryption returns the current encryption scheme, nil when unencrypted.
func (f *Factory) Encryption() *encryption.Config {
	return f.opts.encryption
}

// HasOpened reports whether a create has succeeded.
func (f *Factory) HasOpened() bool {
	return f.hasOpened.Load()
}

func (f *Factory) logf(format string, args ...any) {
	if f.opts.logger == nil {
		return
	}
	f.opts.logger(fmt.Sprintf("[%s] ", f.dbName) + fmt.Sprintf(format, args...))
}

func (f *Factory) logStatement(st pragma.Statement) {
	if f.opts.logger == nil {
		return
	}
	sql := st.SQL
	if f.opts.redact {
		sql = st.Redacted()
	}
	f.logf("%s", sql)
}

// Create opens the database with k. A nil k is the empty key.
func (f *Factory) Create(ctx context.Context, k *key.Key) (*Connection, error) {
	return f.create(ctx, k, nil)
}

// CreateWithRekey opens the database with k and re-encrypts it with rekey
// using the current scheme.
func (f *Factory) CreateWithRekey(ctx context.Context, k, rekey *key.Key) (*Connection, error) {
	if rekey == nil {
		rekey = key.Empty
	}
	return f.create(ctx, k, rekey)
}

func (f *Factory) create(ctx context.Context, k, rekey *key.Key) (*Connection, error) {
	if f.opts.dir == "" {
		return nil, fmt.Errorf("%w: no filesystem configured for %s", ErrInvalidArgument, f.dbName)
	}
	if k == nil {
		k = key.Empty
	}
	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("[%s] create cancelled: %w", f.dbName, err)
	}
	defer f.sem.Release(1)

	if err := os.MkdirAll(f.opts.dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	conn, err := f.open(ctx, k, rekey)
	f.opts.metrics.open(f.dbName, err == nil)
	if err != nil {
		return nil, err
	}
	f.hasOpened.Store(true)

	c := newConnection(f, conn)
	if err := f.applySchema(ctx, c); err != nil {
		c.Close()
		return nil, &OpenError{DBName: f.dbName, Err: err}
	}
	return c, nil
}

// CreateEphemeral opens a database that is never encrypted.
func (f *Factory) CreateEphemeral(ctx context.Context, opt EphemeralOpt) (*Connection, error) {
	var dsn string
	switch opt {
	case InMemory:
		dsn = engine.MemoryDSN()
	case Temporary:
		dsn = engine.TemporaryDSN()
	case SharedMemory:
		dsn = engine.SharedMemoryDSN(f.dbName + "-" + f.sharedID.String())
	default:
		return nil, fmt.Errorf("%w: unknown ephemeral option %d", ErrInvalidArgument, int(opt))
	}

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("[%s] create cancelled: %w", f.dbName, err)
	}
	defer f.sem.Release(1)

	f.logf("Opening %s database", opt)
	conn, err := f.engine.Open(ctx, dsn)
	if err == nil {
		err = f.tune(ctx, conn, pragma.Tuning(""))
		if err != nil {
			conn.Close()
		}
	}
	f.opts.metrics.open(f.dbName, err == nil)
	if err != nil {
		return nil, &OpenError{DBName: f.dbName, Err: err}
	}

	c := newConnection(f, conn)
	if err := f.applySchema(ctx, c); err != nil {
		c.Close()
		return nil, &OpenError{DBName: f.dbName, Err: err}
	}
	return c, nil
}

// attemptError is a failed open attempt. Fatal failures happened after the
// database accepted the key and must not advance the migration.
type attemptError struct {
	err   error
	fatal bool
}

func (e *attemptError) Error() string { return e.err.Error() }
func (e *attemptError) Unwrap() error { return e.err }

// open runs the open state machine: current scheme first, then the declared
// migrations when this factory never opened the database before.
func (f *Factory) open(ctx context.Context, k, rekey *key.Key) (engine.Conn, error) {
	current := pragma.Target{Encryption: f.opts.encryption, Key: k}
	var rekeyTo *pragma.Target
	if rekey != nil {
		rekeyTo = &pragma.Target{Encryption: f.opts.encryption, Key: rekey}
	}

	f.logf("Opening database with encryption %s", f.opts.encryption)
	conn, err := f.attempt(ctx, current, rekeyTo)
	if err == nil {
		return conn, nil
	}
	if !f.migratable(ctx, err) {
		return nil, f.openError("", 0, err)
	}

	// a migrated database is always rekeyed to the current scheme
	target := rekeyTo
	if target == nil {
		target = &pragma.Target{Encryption: f.opts.encryption, Key: k}
	}

	attempts := 0
	for _, m := range f.opts.migrations.AttemptOrder() {
		attempts++
		f.opts.metrics.migrationAttempt(f.dbName)
		f.logf("Attempting encryption migration %q with %s", m.Note, m.Config)

		conn, err = f.attempt(ctx, pragma.Target{Encryption: m.Config, Key: k}, target)
		if err == nil {
			f.opts.metrics.migrationSuccess(f.dbName)
			f.logf("Migrated encryption from %q to %s", m.Note, f.opts.encryption)
			return conn, nil
		}
		var ae *attemptError
		if errors.As(err, &ae) && ae.fatal {
			return nil, f.openError(m.Note, attempts, err)
		}
		if errors.Is(err, ErrInvalidArgument) || ctx.Err() != nil {
			return nil, f.openError("", attempts, err)
		}
		f.logf("Encryption migration %q failed: %v", m.Note, err)
	}

	return nil, &OpenError{DBName: f.dbName, Attempts: attempts, Exhausted: true, Err: err}
}

// migratable reports whether a failed open with the current scheme may be
// retried with the declared migrations.
func (f *Factory) migratable(ctx context.Context, err error) bool {
	var ae *attemptError
	switch {
	case f.opts.migrations.Len() == 0, f.hasOpened.Load(), ctx.Err() != nil:
		return false
	case errors.Is(err, ErrInvalidArgument):
		return false
	case errors.As(err, &ae) && ae.fatal:
		return false
	}
	return true
}

func (f *Factory) openError(migration string, attempts int, err error) error {
	if errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return &OpenError{DBName: f.dbName, Migration: migration, Attempts: attempts, Err: err}
}

// attempt opens the database with source, optionally rekeys it to rekeyTo,
// and tunes the connection. On any failure the connection is closed.
// Statements carrying key material are dropped when attempt returns.
func (f *Factory) attempt(ctx context.Context, source pragma.Target, rekeyTo *pragma.Target) (engine.Conn, error) {
	seq, err := pragma.Build(pragma.Params{Source: source, Rekey: rekeyTo, JournalMode: f.opts.journalMode})
	if err != nil {
		return nil, invalidArgument(err)
	}
	defer seq.Wipe()

	conn, err := f.engine.Open(ctx, f.Path())
	if err != nil {
		return nil, err
	}

	for _, st := range seq.Statements {
		if err := ctx.Err(); err != nil {
			conn.Close()
			return nil, err
		}
		f.logStatement(st)
		if _, err := conn.ExecContext(ctx, st.SQL); err != nil {
			conn.Close()
			fatal := st.Phase == pragma.PhaseRekey
			switch {
			case st.Kind == pragma.KindVersion:
				fatal = true
				err = fmt.Errorf("%w: %w", ErrNoEncryptionSupport, err)
			case fatal:
				err = fmt.Errorf("failed to rekey database: %w", err)
			}
			return nil, &attemptError{err: err, fatal: fatal}
		}
	}
	if rekeyTo != nil {
		f.opts.metrics.rekey(f.dbName)
	}

	if err := f.tune(ctx, conn, pragma.Tuning(f.opts.journalMode)); err != nil {
		conn.Close()
		return nil, &attemptError{err: err, fatal: true}
	}
	return conn, nil
}

func (f *Factory) tune(ctx context.Context, conn engine.Conn, stmts []pragma.Statement) error {
	for _, st := range stmts {
		f.logStatement(st)
		if _, err := conn.ExecContext(ctx, st.SQL); err != nil {
			return fmt.Errorf("failed to configure connection: %w", err)
		}
	}
	return nil
}
