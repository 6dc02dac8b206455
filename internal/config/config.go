package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// DefaultDirName is the default directory name for cipherdb data
	DefaultDirName = ".cipherdb"
	// ConfigFileName stores database settings
	ConfigFileName = "config.yaml"
)

// Config locates the data directory and its configuration file
type Config struct {
	// DataDir is the directory where databases are stored
	DataDir string
	// ConfigPath is the full path to the YAML configuration file
	ConfigPath string
}

// DefaultDataDir returns the default data directory (~/.cipherdb)
func DefaultDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, DefaultDirName), nil
}

// New creates a new Config with the default data directory
func New() (*Config, error) {
	dataDir, err := DefaultDataDir()
	if err != nil {
		return nil, err
	}
	return NewWithDataDir(dataDir), nil
}

// NewWithDataDir creates a new Config with a custom data directory
func NewWithDataDir(dataDir string) *Config {
	return &Config{
		DataDir:    dataDir,
		ConfigPath: filepath.Join(dataDir, ConfigFileName),
	}
}

// EnsureDataDir creates the data directory if it doesn't exist
// Sets permissions to 0700 (owner read/write/execute only)
func (c *Config) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}

// DBPath returns the path of the named database
func (c *Config) DBPath(name string) string {
	return filepath.Join(c.DataDir, name)
}

// Exists checks if the named database exists
func (c *Config) Exists(name string) bool {
	_, err := os.Stat(c.DBPath(name))
	return err == nil
}

// Load reads the configuration file. A missing file yields an empty
// configuration rooted at DataDir.
func (c *Config) Load() (*File, error) {
	f, err := Load(c.ConfigPath)
	if errors.Is(err, os.ErrNotExist) {
		return &File{DataDir: c.DataDir}, nil
	}
	if err != nil {
		return nil, err
	}
	if f.DataDir == "" {
		f.DataDir = c.DataDir
	}
	return f, nil
}
