package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/russellromney/cipherdb/internal/cipher"
	"github.com/russellromney/cipherdb/internal/driver"
)

const sampleConfig = `
data_dir: /var/lib/cipherdb
driver: sqlite3mc
journal_mode: wal
databases:
  app.db:
    encryption:
      cipher: sqlcipher
      preset: default
      kdf_iter: 300000
      hmac_check: false
    migrations:
      - note: sqlcipher 3 era
        encryption:
          cipher: sqlcipher
          preset: v3
      - note: sqleet
        encryption:
          cipher: chacha20
          preset: sqleet
  plain.db: {}
`

func TestParse(t *testing.T) {
	f, err := Parse([]byte(sampleConfig))
	require.NoError(t, err)
	require.Equal(t, "/var/lib/cipherdb", f.DataDir)
	require.Equal(t, "sqlite3mc", f.Driver)

	db, err := f.Database("app.db")
	require.NoError(t, err)

	enc, err := db.Encryption.Build()
	require.NoError(t, err)
	sc, ok := enc.Cipher().(*cipher.SQLCipherConfig)
	require.True(t, ok)
	require.Equal(t, 300000, sc.KDFIter())
	require.Equal(t, 0, sc.Legacy())
	require.False(t, enc.HMACCheck())

	m, err := db.MigrationConfig()
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())
	order := m.AttemptOrder()
	require.Equal(t, "sqleet", order[0].Note)
	require.Equal(t, "sqlcipher 3 era", order[1].Note)
	require.Equal(t, 3, order[1].Config.Cipher().Legacy())

	plain, err := f.Database("plain.db")
	require.NoError(t, err)
	enc, err = plain.Encryption.Build()
	require.NoError(t, err)
	require.Nil(t, enc)

	_, err = f.Database("missing.db")
	require.ErrorIs(t, err, ErrUnknownDatabase)
}

func TestParseRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"unknown field", "bogus: 1\n"},
		{"unknown cipher", "databases:\n  a.db:\n    encryption:\n      cipher: des\n"},
		{"missing cipher", "databases:\n  a.db:\n    encryption:\n      preset: v4\n"},
		{"missing note", "databases:\n  a.db:\n    migrations:\n      - encryption: {cipher: rc4}\n"},
		{"missing migration encryption", "databases:\n  a.db:\n    migrations:\n      - note: x\n"},
		{"bad journal mode", "journal_mode: sideways\n"},
		{"bad database name", "databases:\n  dir/a.db: {}\n"},
		{"negative kdf iterations", "databases:\n  a.db:\n    encryption: {cipher: sqlcipher, kdf_iter: -1}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestEncryptionBuildErrors(t *testing.T) {
	ten := 10
	yes := true
	tests := []struct {
		name string
		enc  Encryption
	}{
		{"unknown preset", Encryption{Cipher: "chacha20", Preset: "v4"}},
		{"parameter of another cipher", Encryption{Cipher: "aes128cbc", KDFIter: &ten}},
		{"sqlcipher parameter on chacha20", Encryption{Cipher: "chacha20", HMACUse: &yes}},
		{"legacy on rc4", Encryption{Cipher: "rc4", Legacy: &ten}},
		{"out of range legacy", Encryption{Cipher: "sqlcipher", Legacy: &ten}},
		{"unknown algorithm", Encryption{Cipher: "sqlcipher", KDFAlgorithm: "md5"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.enc.Build()
			require.Error(t, err)
		})
	}

	_, err := (&Encryption{Cipher: "aes128cbc", KDFIter: &ten}).Build()
	require.ErrorIs(t, err, cipher.ErrInvalidParameter)
}

func TestEncryptionBuildOverrides(t *testing.T) {
	legacy, page := 4, 1024
	enc, err := (&Encryption{
		Cipher:         "sqlcipher",
		Preset:         "v4",
		Legacy:         &legacy,
		LegacyPageSize: &page,
		HMACAlgorithm:  "sha256",
		MCLegacyWAL:    true,
	}).Build()
	require.NoError(t, err)

	sc := enc.Cipher().(*cipher.SQLCipherConfig)
	require.Equal(t, 1024, sc.LegacyPageSize())
	require.Equal(t, cipher.SHA256, sc.HMACAlgorithm().Algorithm)
	require.True(t, enc.HMACCheck())
	require.True(t, enc.MCLegacyWAL())
}

func TestFactoryOptions(t *testing.T) {
	dir := t.TempDir()
	f, err := Parse([]byte("data_dir: " + dir + "\njournal_mode: DELETE\ndatabases:\n  app.db:\n    encryption: {cipher: chacha20}\n"))
	require.NoError(t, err)

	opts, err := f.FactoryOptions("app.db")
	require.NoError(t, err)
	factory, err := driver.NewFactory("app.db", nil, opts...)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "app.db"), factory.Path())
	require.Equal(t, cipher.ChaCha20, factory.Encryption().Cipher().Cipher())

	// databases missing from the file are not encrypted
	opts, err = f.FactoryOptions("other.db")
	require.NoError(t, err)
	factory, err = driver.NewFactory("other.db", nil, opts...)
	require.NoError(t, err)
	require.Nil(t, factory.Encryption())
}

func TestResolvedDataDir(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	f := &File{DataDir: "~/dbs"}
	dir, err := f.ResolvedDataDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, "dbs"), dir)

	f = &File{}
	dir, err = f.ResolvedDataDir()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(home, DefaultDirName), dir)
}
