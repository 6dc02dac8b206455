package driver

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for malformed input caught before any I/O.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrIllegalState is returned when a database cannot be opened, rekeyed or migrated.
	ErrIllegalState = errors.New("illegal state")
	// ErrMigrationsExhausted is returned when no encryption migration could open the database.
	ErrMigrationsExhausted = errors.New("all encryption migrations failed")
	// ErrNoEncryptionSupport is returned when an encrypted database is opened
	// with an engine lacking the SQLite3 Multiple Ciphers extension.
	ErrNoEncryptionSupport = errors.New("database engine has no encryption support")
	// ErrClosed is returned by operations on a closed connection.
	ErrClosed = errors.New("connection is closed")
)

func invalidArgument(err error) error {
	if errors.Is(err, ErrInvalidArgument) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
}

// OpenError reports a failed open. It matches ErrIllegalState, and
// ErrMigrationsExhausted when every migration was tried.
type OpenError struct {
	DBName string
	// Migration is the note of the migration that opened the database when
	// the following rekey failed.
	Migration string
	// Attempts is the number of migrations tried.
	Attempts  int
	Exhausted bool
	Err       error
}

func (e *OpenError) Error() string {
	switch {
	case e.Exhausted:
		return fmt.Sprintf("[%s] %s after %d attempts: %v", e.DBName, ErrMigrationsExhausted, e.Attempts, e.Err)
	case e.Migration != "":
		return fmt.Sprintf("[%s] failed to rekey after migration %q: %v", e.DBName, e.Migration, e.Err)
	}
	return fmt.Sprintf("[%s] failed to open database: %v", e.DBName, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

func (e *OpenError) Is(target error) bool {
	return target == ErrIllegalState || (e.Exhausted && target == ErrMigrationsExhausted)
}
