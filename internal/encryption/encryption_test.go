package encryption

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/russellromney/cipherdb/internal/cipher"
)

func sqlcipherV4(t *testing.T) *Config {
	t.Helper()
	cfg, err := New(nil, func(b *Builder) {
		b.SQLCipher().V4()
	})
	require.NoError(t, err)
	return cfg
}

func TestNewDefaults(t *testing.T) {
	cfg := sqlcipherV4(t)
	require.True(t, cfg.HMACCheck())
	require.False(t, cfg.MCLegacyWAL())
	require.Equal(t, cipher.SQLCipher, cfg.Cipher().Cipher())
	require.Equal(t, "sqlcipher(legacy=4)", cfg.String())
}

func TestNewNoCipherSelected(t *testing.T) {
	_, err := New(nil, func(b *Builder) {
		b.HMACCheck(false)
	})
	require.ErrorIs(t, err, ErrNoCipherSelected)
	require.Nil(t, NewOrNil(nil, nil))
}

func TestNewRequiresPreset(t *testing.T) {
	_, err := New(nil, func(b *Builder) {
		b.ChaCha20()
	})
	require.ErrorIs(t, err, cipher.ErrNoPreset)
}

func TestNewPropagatesSetterError(t *testing.T) {
	_, err := New(nil, func(b *Builder) {
		b.AES256CBC().Default().KDFIter(0)
	})
	require.ErrorIs(t, err, cipher.ErrInvalidParameter)
}

func TestNewInheritsFromOther(t *testing.T) {
	base, err := New(nil, func(b *Builder) {
		b.SQLCipher().V3().KDFIter(70000)
		b.MCLegacyWAL(true)
	})
	require.NoError(t, err)

	// no selection keeps the inherited cipher and switches
	same, err := New(base, nil)
	require.NoError(t, err)
	require.True(t, same.Equal(base))

	derived, err := New(base, func(b *Builder) {
		b.SQLCipher().Inherit().HMACUse(false)
		b.HMACCheck(false)
	})
	require.NoError(t, err)
	sc := derived.Cipher().(*cipher.SQLCipherConfig)
	require.Equal(t, 70000, sc.KDFIter())
	require.False(t, sc.HMACUse())
	require.True(t, derived.MCLegacyWAL())
	require.False(t, derived.HMACCheck())
	require.False(t, derived.Equal(base))

	// switching variant cannot inherit across ciphers
	_, err = New(base, func(b *Builder) {
		b.ChaCha20().Inherit()
	})
	require.ErrorIs(t, err, cipher.ErrNoPreset)
}

func TestNewDirectCipher(t *testing.T) {
	c, err := cipher.Preset(cipher.RC4, cipher.PresetDefault)
	require.NoError(t, err)
	cfg, err := New(nil, func(b *Builder) { b.Cipher(c) })
	require.NoError(t, err)
	require.Equal(t, cipher.RC4, cfg.Cipher().Cipher())
}

func TestEqual(t *testing.T) {
	require.True(t, sqlcipherV4(t).Equal(sqlcipherV4(t)))
	var none *Config
	require.True(t, none.Equal(nil))
	require.False(t, none.Equal(sqlcipherV4(t)))
	require.False(t, sqlcipherV4(t).Equal(nil))
}

func TestMigrationConfigOrder(t *testing.T) {
	mc, err := NewMigrationConfig(func(b *MigrationBuilder) {
		b.From("builds before 2.0 used sqleet", nil, func(b *Builder) { b.ChaCha20().Sqleet() })
		b.From("builds before 3.0 used sqlcipher v3", nil, func(b *Builder) { b.SQLCipher().V3() })
	})
	require.NoError(t, err)
	require.Equal(t, 2, mc.Len())

	declared := mc.Migrations()
	require.Equal(t, cipher.ChaCha20, declared[0].Config.Cipher().Cipher())
	require.Equal(t, cipher.SQLCipher, declared[1].Config.Cipher().Cipher())

	attempt := mc.AttemptOrder()
	require.Equal(t, cipher.SQLCipher, attempt[0].Config.Cipher().Cipher())
	require.Equal(t, cipher.ChaCha20, attempt[1].Config.Cipher().Cipher())
}

func TestMigrationConfigEmptyIsNil(t *testing.T) {
	mc, err := NewMigrationConfig(func(b *MigrationBuilder) {})
	require.NoError(t, err)
	require.Nil(t, mc)
	require.Equal(t, 0, mc.Len())
	require.Empty(t, mc.AttemptOrder())
}

func TestMigrationConfigDeduplicates(t *testing.T) {
	v4 := sqlcipherV4(t)
	mc, err := NewMigrationConfig(func(b *MigrationBuilder) {
		b.Add("legacy", v4)
		b.Add("legacy", sqlcipherV4(t))
	})
	require.NoError(t, err)
	require.Equal(t, 1, mc.Len())
}

func TestMigrationRequiresNote(t *testing.T) {
	_, err := NewMigrationConfig(func(b *MigrationBuilder) {
		b.Add("  ", sqlcipherV4(t))
	})
	require.ErrorIs(t, err, ErrInvalidMigration)

	_, err = NewMigrationConfig(func(b *MigrationBuilder) {
		b.Add("no config", nil)
	})
	require.ErrorIs(t, err, ErrInvalidMigration)

	_, err = NewMigrationConfig(func(b *MigrationBuilder) {
		b.From("no cipher", nil, func(b *Builder) {})
	})
	require.ErrorIs(t, err, ErrNoCipherSelected)
}

func TestMigrationConfigFrom(t *testing.T) {
	first, err := NewMigrationConfig(func(b *MigrationBuilder) {
		b.From("old", nil, func(b *Builder) { b.AES128CBC().Default() })
	})
	require.NoError(t, err)

	extended, err := NewMigrationConfigFrom(first, func(b *MigrationBuilder) {
		b.From("older", nil, func(b *Builder) { b.RC4().Default() })
	})
	require.NoError(t, err)
	require.Equal(t, 2, extended.Len())
	require.Equal(t, 1, first.Len())
	require.Equal(t, "older", extended.AttemptOrder()[0].Note)
}
