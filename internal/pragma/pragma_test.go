package pragma

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/russellromney/cipherdb/internal/cipher"
	"github.com/russellromney/cipherdb/internal/encryption"
	"github.com/russellromney/cipherdb/internal/key"
)

func mustConfig(t *testing.T, block func(b *encryption.Builder)) *encryption.Config {
	t.Helper()
	cfg, err := encryption.New(nil, block)
	require.NoError(t, err)
	return cfg
}

func names(ops []Op) []string {
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.Name
	}
	return out
}

func sqls(seq *Sequence) []string {
	out := make([]string, len(seq.Statements))
	for i, s := range seq.Statements {
		out[i] = s.SQL
	}
	return out
}

func TestOpsDefaultPresetsEmitOnlyCipherAndLegacy(t *testing.T) {
	blocks := map[string]func(b *encryption.Builder){
		"aes128cbc default":   func(b *encryption.Builder) { b.AES128CBC().Default() },
		"aes128cbc wxsqlite3": func(b *encryption.Builder) { b.AES128CBC().Wxsqlite3() },
		"aes256cbc default":   func(b *encryption.Builder) { b.AES256CBC().Default() },
		"chacha20 default":    func(b *encryption.Builder) { b.ChaCha20().Default() },
		"chacha20 sqleet":     func(b *encryption.Builder) { b.ChaCha20().Sqleet() },
		"sqlcipher default":   func(b *encryption.Builder) { b.SQLCipher().Default() },
		"sqlcipher v1":        func(b *encryption.Builder) { b.SQLCipher().V1() },
		"sqlcipher v2":        func(b *encryption.Builder) { b.SQLCipher().V2() },
		"sqlcipher v3":        func(b *encryption.Builder) { b.SQLCipher().V3() },
		"sqlcipher v4":        func(b *encryption.Builder) { b.SQLCipher().V4() },
		"rc4 default":         func(b *encryption.Builder) { b.RC4().Default() },
		"ascon128 default":    func(b *encryption.Builder) { b.Ascon128().Default() },
	}
	for name, block := range blocks {
		t.Run(name, func(t *testing.T) {
			ops, err := Ops(mustConfig(t, block), true, false)
			require.NoError(t, err)
			require.Equal(t, []string{cipher.ParamCipher, cipher.ParamLegacy}, names(ops))
		})
	}
}

func TestOpsOneChangedFieldEmitsOneOp(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) {
		b.SQLCipher().V4().KDFIter(300000)
	})
	ops, err := Ops(cfg, true, false)
	require.NoError(t, err)
	require.Equal(t, []string{cipher.ParamCipher, cipher.ParamLegacy, cipher.ParamKDFIter}, names(ops))
	require.Equal(t, 300000, ops[2].Value)
}

func TestOpsDiffAgainstLegacyPreset(t *testing.T) {
	// legacy 1 with sqlcipher v1 values: nothing to emit beyond legacy
	cfg := mustConfig(t, func(b *encryption.Builder) {
		b.SQLCipher().Default().Legacy(1).LegacyPageSize(1024).KDFIter(4000).HMACUse(false)
	})
	ops, err := Ops(cfg, true, false)
	require.NoError(t, err)
	require.Equal(t, []string{cipher.ParamCipher, cipher.ParamLegacy}, names(ops))
}

func TestOpsNullableAlgorithmsNotEmitted(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) {
		b.SQLCipher().V3().HMACAlgorithm(cipher.SHA256)
	})
	ops, err := Ops(cfg, true, true)
	require.NoError(t, err)
	require.NotContains(t, names(ops), cipher.ParamHMACAlgorithm)
	require.NotContains(t, names(ops), cipher.ParamKDFAlgorithm)
}

func TestOpsForceEmitsEverything(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) { b.SQLCipher().V4() })
	ops, err := Ops(cfg, false, true)
	require.NoError(t, err)
	require.Equal(t, []string{
		cipher.ParamCipher,
		cipher.ParamLegacy,
		cipher.ParamLegacyPageSize,
		cipher.ParamKDFIter,
		cipher.ParamFastKDFIter,
		cipher.ParamHMACUse,
		cipher.ParamHMACPgno,
		cipher.ParamHMACSaltMask,
		cipher.ParamKDFAlgorithm,
		cipher.ParamHMACAlgorithm,
		cipher.ParamPlaintextHeaderSize,
		cipher.ParamHMACCheck,
		cipher.ParamMCLegacyWAL,
	}, names(ops))
	for _, op := range ops {
		require.False(t, op.Transient)
	}
}

func TestOpsHMACCheckAndLegacyWAL(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) {
		b.ChaCha20().Default()
		b.HMACCheck(false)
		b.MCLegacyWAL(true)
	})
	ops, err := Ops(cfg, true, false)
	require.NoError(t, err)
	require.Equal(t, []string{cipher.ParamCipher, cipher.ParamLegacy, cipher.ParamHMACCheck, cipher.ParamMCLegacyWAL}, names(ops))
}

func TestOpsNil(t *testing.T) {
	ops, err := Ops(nil, true, true)
	require.NoError(t, err)
	require.Empty(t, ops)
}

func TestOpSQL(t *testing.T) {
	tests := []struct {
		op   Op
		want string
	}{
		{Op{Name: "cipher", Value: "sqlcipher", Transient: true}, "PRAGMA cipher = 'sqlcipher'"},
		{Op{Cipher: cipher.SQLCipher, Name: "legacy", Value: 4, Transient: true}, "PRAGMA legacy = 4"},
		{Op{Name: "hmac_check", Value: false, Transient: true}, "PRAGMA hmac_check = 0"},
		{Op{Name: "cipher", Value: "chacha20"}, "SELECT sqlite3mc_config('default:cipher', 'chacha20')"},
		{Op{Cipher: cipher.ChaCha20, Name: "kdf_iter", Value: 12345}, "SELECT sqlite3mc_config_cipher('chacha20', 'default:kdf_iter', 12345)"},
	}
	for _, tt := range tests {
		got, err := tt.op.SQL()
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	_, err := Op{Name: "cipher", Value: "x'; DROP"}.SQL()
	require.ErrorIs(t, err, ErrInvalidParameterValue)
	_, err = Op{Name: "kdf_iter", Value: 1.5}.SQL()
	require.ErrorIs(t, err, ErrInvalidParameterValue)
	_, err = Op{Value: 1}.SQL()
	require.ErrorIs(t, err, ErrInvalidParameterValue)
}

func TestRender(t *testing.T) {
	for _, ops := range [][]Op{
		nil,
		{{Name: cipher.ParamCipher, Value: "rc4", Transient: true}},
		{{Name: cipher.ParamLegacy, Value: 1, Transient: true}, {Name: cipher.ParamCipher, Value: "rc4", Transient: true}},
		{{Name: cipher.ParamKDFIter, Value: 4000, Transient: true}},
	} {
		_, err := Render(ops)
		require.ErrorIs(t, err, ErrMissingRequiredParameter)
	}

	sqls, err := Render([]Op{
		{Name: cipher.ParamCipher, Value: "rc4", Transient: true},
		{Name: cipher.ParamLegacy, Value: 1, Transient: true},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"PRAGMA cipher = 'rc4'", "PRAGMA legacy = 1"}, sqls)

	_, err = Render([]Op{
		{Name: cipher.ParamCipher, Value: "rc4", Transient: true},
		{Name: cipher.ParamLegacy, Value: 1.5, Transient: true},
	})
	require.ErrorIs(t, err, ErrInvalidParameterValue)
}

func TestBuildOpen(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) { b.SQLCipher().V4().KDFIter(1000) })
	seq, err := Build(Params{Source: Target{Encryption: cfg, Key: key.Passphrase("pw")}})
	require.NoError(t, err)
	require.Equal(t, []string{
		VersionSQL,
		"PRAGMA cipher = 'sqlcipher'",
		"PRAGMA legacy = 4",
		"PRAGMA kdf_iter = 1000",
		"PRAGMA key = 'pw'",
		ProbeSQL,
	}, sqls(seq))
	for _, s := range seq.Statements {
		require.Equal(t, PhaseOpen, s.Phase)
	}
	require.Equal(t, KindVersion, seq.Statements[0].Kind)
	require.Equal(t, KindKey, seq.Statements[4].Kind)
}

func TestBuildUnencrypted(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) { b.SQLCipher().V4() })

	// no config: key is ignored
	seq, err := Build(Params{Source: Target{Key: key.Passphrase("pw")}})
	require.NoError(t, err)
	require.Equal(t, []string{ProbeSQL}, sqls(seq))

	// empty key: same as no cipher
	seq, err = Build(Params{Source: Target{Encryption: cfg, Key: key.Empty}})
	require.NoError(t, err)
	require.Equal(t, []string{ProbeSQL}, sqls(seq))

	// encrypting a plaintext database still needs the extension
	seq, err = Build(Params{
		Source: Target{Key: key.Empty},
		Rekey:  &Target{Encryption: cfg, Key: key.Passphrase("pw")},
	})
	require.NoError(t, err)
	got := sqls(seq)
	require.Equal(t, []string{VersionSQL, ProbeSQL}, got[:2])
}

func TestBuildRekey(t *testing.T) {
	from := mustConfig(t, func(b *encryption.Builder) { b.ChaCha20().Sqleet() })
	to := mustConfig(t, func(b *encryption.Builder) { b.SQLCipher().V4() })

	seq, err := Build(Params{
		Source:      Target{Encryption: from, Key: key.Passphrase("old")},
		Rekey:       &Target{Encryption: to, Key: key.Passphrase("new")},
		JournalMode: JournalWAL,
	})
	require.NoError(t, err)

	got := sqls(seq)
	require.Equal(t, []string{
		VersionSQL,
		"PRAGMA cipher = 'chacha20'",
		"PRAGMA legacy = 1",
		"PRAGMA key = 'old'",
		ProbeSQL,
		"PRAGMA journal_mode = DELETE",
	}, got[:6])

	forced, err := Ops(to, false, true)
	require.NoError(t, err)
	n := len(forced)
	require.Equal(t, "SELECT sqlite3mc_config('default:cipher', 'sqlcipher')", got[6])
	require.Equal(t, "SELECT sqlite3mc_config_cipher('sqlcipher', 'default:legacy', 4)", got[7])
	require.Equal(t, "PRAGMA rekey = 'new'", got[6+n])
	require.Equal(t, got[6:6+n], got[7+n:7+2*n])
	require.Equal(t, "PRAGMA journal_mode = WAL", got[len(got)-1])
	require.Len(t, got, 6+2*n+2)

	for _, s := range seq.Statements[5:] {
		require.Equal(t, PhaseRekey, s.Phase)
	}
}

func TestBuildRekeyToPlaintext(t *testing.T) {
	from := mustConfig(t, func(b *encryption.Builder) { b.AES256CBC().Default() })
	seq, err := Build(Params{
		Source: Target{Encryption: from, Key: key.Passphrase("old")},
		Rekey:  &Target{Encryption: from, Key: key.Empty},
	})
	require.NoError(t, err)
	got := sqls(seq)
	require.Equal(t, "PRAGMA rekey = ''", got[len(got)-1])
}

func TestBuildRawKeyUnsupported(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) { b.RC4().Default() })
	raw, err := key.Raw(make([]byte, key.RawKeyLength), nil)
	require.NoError(t, err)
	_, err = Build(Params{Source: Target{Encryption: cfg, Key: raw}})
	require.ErrorIs(t, err, key.ErrUnsupportedKeyType)
}

func TestRedact(t *testing.T) {
	tests := map[string]string{
		"PRAGMA key = 'secret'":              "PRAGMA key = [REDACTED]",
		"pragma rekey='secret'":              "pragma rekey= [REDACTED]",
		"PRAGMA main.key = \"x'00ff'\"":      "PRAGMA main.key = [REDACTED]",
		"PRAGMA kdf_iter = 4000":             "PRAGMA kdf_iter = 4000",
		"PRAGMA cipher = 'sqlcipher'":        "PRAGMA cipher = 'sqlcipher'",
		"SELECT key FROM kv WHERE key = 'a'": "SELECT key FROM kv WHERE key = 'a'",
		"PRAGMA journal_mode = WAL":          "PRAGMA journal_mode = WAL",
		"PRAGMA key = 'top\nsecret'":         "PRAGMA key = [REDACTED]",
		"PRAGMA rekey = 'a\r\nb\nc'":         "PRAGMA rekey = [REDACTED]",
	}
	for in, want := range tests {
		require.Equal(t, want, Redact(in), in)
	}
}

func TestStatementRedacted(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) { b.SQLCipher().V4() })
	seq, err := Build(Params{
		Source: Target{Encryption: cfg, Key: key.Passphrase("top\nsecret")},
		Rekey:  &Target{Encryption: cfg, Key: key.Passphrase("new\nsecret")},
	})
	require.NoError(t, err)

	var keys int
	for _, st := range seq.Statements {
		got := st.Redacted()
		require.NotContains(t, got, "secret")
		if st.Secret() {
			keys++
			require.True(t, strings.HasSuffix(got, "= [REDACTED]"), got)
		} else {
			require.Equal(t, st.SQL, got)
		}
	}
	require.Equal(t, 2, keys)
}

func TestSequenceWipe(t *testing.T) {
	cfg := mustConfig(t, func(b *encryption.Builder) { b.SQLCipher().V4() })
	seq, err := Build(Params{Source: Target{Encryption: cfg, Key: key.Passphrase("pw")}})
	require.NoError(t, err)
	seq.Wipe()
	require.Empty(t, seq.Statements)
	for _, s := range sqls(seq) {
		require.False(t, strings.Contains(s, "pw"))
	}
}

func TestTuning(t *testing.T) {
	stmts := Tuning(JournalWAL)
	require.Equal(t, "PRAGMA journal_mode = WAL", stmts[0].SQL)
	require.Len(t, stmts, 3)
	require.Len(t, Tuning(""), 2)

	m, err := ParseJournalMode("wal")
	require.NoError(t, err)
	require.Equal(t, JournalWAL, m)
	_, err = ParseJournalMode("fast")
	require.ErrorIs(t, err, ErrInvalidParameterValue)
}
