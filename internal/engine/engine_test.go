package engine

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpenFile(t *testing.T) {
	ctx := context.Background()
	dbPath := FileDSN(t.TempDir(), "test.db")

	conn, err := New("").Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `CREATE TABLE kv (k TEXT PRIMARY KEY, v TEXT)`); err != nil {
		t.Fatalf("create table error = %v", err)
	}
	if _, err := conn.ExecContext(ctx, `INSERT INTO kv (k, v) VALUES (?, ?)`, "a", "1"); err != nil {
		t.Fatalf("insert error = %v", err)
	}

	var v string
	if err := conn.QueryRowContext(ctx, `SELECT v FROM kv WHERE k = ?`, "a").Scan(&v); err != nil {
		t.Fatalf("select error = %v", err)
	}
	if v != "1" {
		t.Errorf("v = %q, want %q", v, "1")
	}

	// Verify database file was created
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestPinnedConnectionKeepsState(t *testing.T) {
	ctx := context.Background()
	conn, err := New(DefaultDriver).Open(ctx, MemoryDSN())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer conn.Close()

	// a private in-memory database is only visible on its own connection
	if _, err := conn.ExecContext(ctx, `CREATE TABLE t (x INTEGER)`); err != nil {
		t.Fatalf("create table error = %v", err)
	}
	for i := 0; i < 5; i++ {
		if _, err := conn.ExecContext(ctx, `INSERT INTO t (x) VALUES (?)`, i); err != nil {
			t.Fatalf("insert error = %v", err)
		}
	}
	var n int
	if err := conn.QueryRowContext(ctx, `SELECT count(*) FROM t`).Scan(&n); err != nil {
		t.Fatalf("count error = %v", err)
	}
	if n != 5 {
		t.Errorf("count = %d, want 5", n)
	}
}

func TestSharedMemory(t *testing.T) {
	ctx := context.Background()
	e := New("")
	dsn := SharedMemoryDSN(t.Name())

	a, err := e.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer a.Close()
	b, err := e.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer b.Close()

	if _, err := a.ExecContext(ctx, `CREATE TABLE shared (x INTEGER)`); err != nil {
		t.Fatalf("create table error = %v", err)
	}
	if _, err := b.ExecContext(ctx, `INSERT INTO shared (x) VALUES (1)`); err != nil {
		t.Fatalf("insert through second connection error = %v", err)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := New("no-such-driver").Open(context.Background(), MemoryDSN())
	if err == nil {
		t.Error("Open() with unknown driver succeeded")
	}
}

func TestDSN(t *testing.T) {
	if got := FileDSN("/data", "app.db"); got != filepath.Join("/data", "app.db") {
		t.Errorf("FileDSN() = %s", got)
	}
	if got := SharedMemoryDSN("a b"); got != "file:a%20b?mode=memory&cache=shared" {
		t.Errorf("SharedMemoryDSN() = %s", got)
	}
}
