package encryption

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidMigration is returned for a migration entry without a note or config
	ErrInvalidMigration = errors.New("invalid encryption migration")
)

// Migration is a historical encryption scheme kept so that databases still
// encrypted with it can be opened and rekeyed to the current scheme. Note
// records why the scheme is kept.
type Migration struct {
	Note   string
	Config *Config
}

func (m Migration) equal(o Migration) bool {
	return m.Note == o.Note && m.Config.Equal(o.Config)
}

// MigrationConfig is an ordered set of migrations. It is never empty; an
// empty set is represented by a nil *MigrationConfig.
type MigrationConfig struct {
	migrations []Migration
}

// Migrations returns the migrations in declaration order.
func (m *MigrationConfig) Migrations() []Migration {
	if m == nil {
		return nil
	}
	out := make([]Migration, len(m.migrations))
	copy(out, m.migrations)
	return out
}

// AttemptOrder returns the migrations in the order they are tried when
// opening a database: most recently declared first.
func (m *MigrationConfig) AttemptOrder() []Migration {
	if m == nil {
		return nil
	}
	out := make([]Migration, 0, len(m.migrations))
	for i := len(m.migrations) - 1; i >= 0; i-- {
		out = append(out, m.migrations[i])
	}
	return out
}

func (m *MigrationConfig) Len() int {
	if m == nil {
		return 0
	}
	return len(m.migrations)
}

// MigrationBuilder accumulates migrations inside a NewMigrationConfig block.
type MigrationBuilder struct {
	migrations []Migration
	err        error
}

// From declares a migration whose config is built like New(other, block).
func (b *MigrationBuilder) From(note string, other *Config, block func(b *Builder)) {
	if b.err != nil {
		return
	}
	cfg, err := New(other, block)
	if err != nil {
		b.err = fmt.Errorf("migration %q: %w", note, err)
		return
	}
	b.Add(note, cfg)
}

// Add declares a migration from an existing config.
func (b *MigrationBuilder) Add(note string, cfg *Config) {
	if b.err != nil {
		return
	}
	if strings.TrimSpace(note) == "" {
		b.err = fmt.Errorf("%w: a note is required", ErrInvalidMigration)
		return
	}
	if cfg == nil {
		b.err = fmt.Errorf("%w: migration %q has no encryption config", ErrInvalidMigration, note)
		return
	}
	m := Migration{Note: note, Config: cfg}
	for _, existing := range b.migrations {
		if existing.equal(m) {
			return
		}
	}
	b.migrations = append(b.migrations, m)
}

// NewMigrationConfig builds a migration set. It returns nil, nil when block
// declares nothing.
func NewMigrationConfig(block func(b *MigrationBuilder)) (*MigrationConfig, error) {
	return NewMigrationConfigFrom(nil, block)
}

// NewMigrationConfigFrom starts from the migrations of other and appends
// those declared in block.
func NewMigrationConfigFrom(other *MigrationConfig, block func(b *MigrationBuilder)) (*MigrationConfig, error) {
	b := &MigrationBuilder{}
	for _, m := range other.Migrations() {
		b.Add(m.Note, m.Config)
	}
	if block != nil {
		block(b)
	}
	if b.err != nil {
		return nil, b.err
	}
	if len(b.migrations) == 0 {
		return nil, nil
	}
	return &MigrationConfig{migrations: b.migrations}, nil
}
