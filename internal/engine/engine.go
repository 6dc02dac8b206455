// Package engine is the boundary to the SQL engine: it opens connections and
// nothing more. Encryption is configured by executing statements on the
// returned connection.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// DefaultDriver is the database/sql driver used when none is configured.
// It must be swapped for an SQLite3 Multiple Ciphers enabled driver for
// encrypted databases; the pure Go driver ignores cipher pragmas.
const DefaultDriver = "sqlite"

// Conn is an open connection. Every statement runs on the same underlying
// connection, so per-connection state such as the key persists.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
	Close() error
}

// Engine opens connections.
type Engine interface {
	Open(ctx context.Context, dsn string) (Conn, error)
}

// SQLEngine opens connections through a database/sql driver.
type SQLEngine struct {
	driverName string
}

// New creates an engine for the named database/sql driver.
func New(driverName string) *SQLEngine {
	if driverName == "" {
		driverName = DefaultDriver
	}
	return &SQLEngine{driverName: driverName}
}

// DriverName returns the database/sql driver name.
func (e *SQLEngine) DriverName() string {
	return e.driverName
}

// Open opens dsn and pins a single connection to it.
func (e *SQLEngine) Open(ctx context.Context, dsn string) (Conn, error) {
	db, err := sql.Open(e.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect: %w", err)
	}
	return &sqlConn{Conn: conn, db: db}, nil
}

type sqlConn struct {
	*sql.Conn
	db *sql.DB
}

func (c *sqlConn) Close() error {
	err := c.Conn.Close()
	if dbErr := c.db.Close(); err == nil {
		err = dbErr
	}
	return err
}

// FileDSN is the DSN of database name inside dir.
func FileDSN(dir, name string) string {
	return filepath.Join(dir, name)
}

// MemoryDSN is a private in-memory database.
func MemoryDSN() string {
	return ":memory:"
}

// TemporaryDSN is a private on-disk database deleted when closed.
func TemporaryDSN() string {
	return ""
}

// SharedMemoryDSN is an in-memory database shared by every connection of
// this process that uses the same name.
func SharedMemoryDSN(name string) string {
	return "file:" + url.PathEscape(name) + "?mode=memory&cache=shared"
}
