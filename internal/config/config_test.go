package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultDataDir(t *testing.T) {
	dir, err := DefaultDataDir()
	if err != nil {
		t.Fatalf("DefaultDataDir() error = %v", err)
	}

	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, DefaultDirName)
	if dir != expected {
		t.Errorf("DefaultDataDir() = %v, want %v", dir, expected)
	}
}

func TestNew(t *testing.T) {
	cfg, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if cfg.DataDir == "" {
		t.Error("New() DataDir is empty")
	}
	if cfg.ConfigPath == "" {
		t.Error("New() ConfigPath is empty")
	}
}

func TestNewWithDataDir(t *testing.T) {
	customDir := "/tmp/test-cipherdb"
	cfg := NewWithDataDir(customDir)

	if cfg.DataDir != customDir {
		t.Errorf("NewWithDataDir() DataDir = %v, want %v", cfg.DataDir, customDir)
	}
	if cfg.ConfigPath != filepath.Join(customDir, ConfigFileName) {
		t.Errorf("NewWithDataDir() ConfigPath = %v, want %v", cfg.ConfigPath, filepath.Join(customDir, ConfigFileName))
	}
	if cfg.DBPath("app.db") != filepath.Join(customDir, "app.db") {
		t.Errorf("DBPath() = %v", cfg.DBPath("app.db"))
	}
}

func TestEnsureDataDir(t *testing.T) {
	// Use a temp directory for testing
	tmpDir := t.TempDir()
	testDir := filepath.Join(tmpDir, "test-cipherdb")
	cfg := NewWithDataDir(testDir)

	// Directory shouldn't exist yet
	if _, err := os.Stat(testDir); !os.IsNotExist(err) {
		t.Fatal("Test directory already exists")
	}

	// Create the directory
	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir() error = %v", err)
	}

	// Verify directory exists
	info, err := os.Stat(testDir)
	if err != nil {
		t.Fatalf("Directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("Created path is not a directory")
	}

	// Verify permissions (0700)
	perm := info.Mode().Perm()
	if perm != 0700 {
		t.Errorf("Directory permissions = %o, want 0700", perm)
	}

	// Calling again should not error
	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir() second call error = %v", err)
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := NewWithDataDir(tmpDir)

	// Should not exist initially
	if cfg.Exists("app.db") {
		t.Error("Exists() = true, want false (DB doesn't exist)")
	}

	// Create the DB file
	if err := os.WriteFile(cfg.DBPath("app.db"), []byte("test"), 0600); err != nil {
		t.Fatalf("Failed to create test DB file: %v", err)
	}

	// Should exist now
	if !cfg.Exists("app.db") {
		t.Error("Exists() = false, want true (DB exists)")
	}
}

func TestLoadMissingFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := NewWithDataDir(tmpDir)

	f, err := cfg.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.DataDir != tmpDir {
		t.Errorf("Load() DataDir = %v, want %v", f.DataDir, tmpDir)
	}
	if len(f.Databases) != 0 {
		t.Errorf("Load() Databases = %v, want none", f.Databases)
	}
}

func TestLoadFile(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := NewWithDataDir(tmpDir)

	data := []byte("databases:\n  app.db:\n    encryption:\n      cipher: chacha20\n")
	if err := os.WriteFile(cfg.ConfigPath, data, 0600); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	f, err := cfg.Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	// data dir defaults to the directory holding the file
	if f.DataDir != tmpDir {
		t.Errorf("Load() DataDir = %v, want %v", f.DataDir, tmpDir)
	}
	if _, err := f.Database("app.db"); err != nil {
		t.Errorf("Database() error = %v", err)
	}
}
