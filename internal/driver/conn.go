package driver

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/russellromney/cipherdb/internal/engine"
)

// ListenerID identifies a registered listener.
type ListenerID uint64

type listener struct {
	fn     func()
	tables map[string]bool
}

// Connection is an open database. It holds no key material.
type Connection struct {
	id      uuid.UUID
	dbName  string
	metrics *Metrics

	mu        sync.RWMutex
	conn      engine.Conn
	listeners map[ListenerID]*listener
	nextID    ListenerID
}

func newConnection(f *Factory, conn engine.Conn) *Connection {
	f.opts.metrics.connections(f.dbName, 1)
	return &Connection{
		id:        uuid.New(),
		dbName:    f.dbName,
		metrics:   f.opts.metrics,
		conn:      conn,
		listeners: make(map[ListenerID]*listener),
	}
}

// ID returns the connection's unique identifier.
func (c *Connection) ID() uuid.UUID {
	return c.id
}

// DBName returns the name of the database.
func (c *Connection) DBName() string {
	return c.dbName
}

// Exec runs a statement that returns no rows.
func (c *Connection) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, ErrClosed
	}
	return c.conn.ExecContext(ctx, query, args...)
}

// Query runs a statement that returns rows.
func (c *Connection) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return nil, ErrClosed
	}
	return c.conn.QueryContext(ctx, query, args...)
}

// QueryValue scans the first row of a query into dest.
func (c *Connection) QueryValue(ctx context.Context, dest any, query string, args ...any) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return ErrClosed
	}
	return c.conn.QueryRowContext(ctx, query, args...).Scan(dest)
}

// Transaction runs fn in a transaction. The transaction is committed when
// fn returns nil and rolled back otherwise.
func (c *Connection) Transaction(ctx context.Context, fn func(tx *sql.Tx) error) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.conn == nil {
		return ErrClosed
	}

	tx, err := c.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// AddListener registers fn to be called when any of tables is notified.
func (c *Connection) AddListener(fn func(), tables ...string) (ListenerID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return 0, ErrClosed
	}
	c.nextID++
	l := &listener{fn: fn, tables: make(map[string]bool, len(tables))}
	for _, t := range tables {
		l.tables[t] = true
	}
	c.listeners[c.nextID] = l
	return c.nextID, nil
}

// RemoveListener unregisters a listener.
func (c *Connection) RemoveListener(id ListenerID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return ErrClosed
	}
	delete(c.listeners, id)
	return nil
}

// NotifyListeners calls every listener registered for any of tables once.
func (c *Connection) NotifyListeners(tables ...string) error {
	c.mu.RLock()
	if c.conn == nil {
		c.mu.RUnlock()
		return ErrClosed
	}
	var fns []func()
	for _, l := range c.listeners {
		for _, t := range tables {
			if l.tables[t] {
				fns = append(fns, l.fn)
				break
			}
		}
	}
	c.mu.RUnlock()

	// listeners may use the connection
	for _, fn := range fns {
		fn()
	}
	return nil
}

// Close closes the connection. Closing an already closed connection is a
// no-op.
func (c *Connection) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	c.listeners = nil
	c.metrics.connections(c.dbName, -1)
	return err
}
