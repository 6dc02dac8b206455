// Package pragma turns encryption configs and keys into the ordered SQL
// statements that configure, key and rekey an SQLite3 Multiple Ciphers
// connection.
package pragma

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/russellromney/cipherdb/internal/cipher"
	"github.com/russellromney/cipherdb/internal/encryption"
)

var (
	// ErrMissingRequiredParameter is returned when cipher or legacy is absent from an op list
	ErrMissingRequiredParameter = errors.New("missing required cipher parameter")
	// ErrInvalidParameterValue is returned when an op value cannot be rendered
	ErrInvalidParameterValue = errors.New("invalid cipher parameter value")
)

// Op sets one engine tunable. Cipher is zero for connection-wide
// parameters (cipher, hmac_check, mc_legacy_wal).
//
// Transient ops apply to the next key or rekey on the connection only.
// Non-transient ops change the connection's defaults.
type Op struct {
	Cipher    cipher.Cipher
	Name      string
	Value     any
	Transient bool
}

func (o Op) value() (string, error) {
	switch v := o.Value.(type) {
	case int:
		return strconv.Itoa(v), nil
	case bool:
		if v {
			return "1", nil
		}
		return "0", nil
	case string:
		if v == "" || strings.ContainsAny(v, "'\r\n") {
			return "", fmt.Errorf("%w: %s=%q", ErrInvalidParameterValue, o.Name, v)
		}
		return "'" + v + "'", nil
	}
	return "", fmt.Errorf("%w: %s has unsupported type %T", ErrInvalidParameterValue, o.Name, o.Value)
}

// SQL renders the op.
func (o Op) SQL() (string, error) {
	if o.Name == "" {
		return "", fmt.Errorf("%w: empty parameter name", ErrInvalidParameterValue)
	}
	v, err := o.value()
	if err != nil {
		return "", err
	}
	switch {
	case o.Transient:
		return fmt.Sprintf("PRAGMA %s = %s", o.Name, v), nil
	case o.Cipher == 0:
		return fmt.Sprintf("SELECT sqlite3mc_config('default:%s', %s)", o.Name, v), nil
	default:
		return fmt.Sprintf("SELECT sqlite3mc_config_cipher('%s', 'default:%s', %s)", o.Cipher, o.Name, v), nil
	}
}

// Ops lists the operations that configure enc on a connection. The cipher
// selection always comes first and legacy second, because applying legacy
// resets every dependent parameter to the legacy preset. Remaining
// parameters are only emitted when they differ from that preset, unless
// force is set.
func Ops(enc *encryption.Config, transient, force bool) ([]Op, error) {
	if enc == nil {
		return nil, nil
	}
	cfg := enc.Cipher()
	id := cfg.Cipher()
	base := cipher.Baseline(cfg)

	ops := []Op{
		{Name: cipher.ParamCipher, Value: id.String(), Transient: transient},
		{Cipher: id, Name: cipher.ParamLegacy, Value: cfg.Legacy(), Transient: transient},
	}
	add := func(name string, v, def any) {
		if force || v != def {
			ops = append(ops, Op{Cipher: id, Name: name, Value: v, Transient: transient})
		}
	}
	addAlgorithm := func(name string, v, def cipher.NullAlgorithm) {
		// not configurable in this legacy mode; the engine uses the preset value
		if !v.Valid {
			return
		}
		add(name, int(v.Algorithm), int(def.Algorithm))
	}

	switch c := cfg.(type) {
	case *cipher.AES128CBCConfig:
		b := base.(*cipher.AES128CBCConfig)
		add(cipher.ParamLegacyPageSize, c.LegacyPageSize(), b.LegacyPageSize())
	case *cipher.AES256CBCConfig:
		b := base.(*cipher.AES256CBCConfig)
		add(cipher.ParamLegacyPageSize, c.LegacyPageSize(), b.LegacyPageSize())
		add(cipher.ParamKDFIter, c.KDFIter(), b.KDFIter())
	case *cipher.ChaCha20Config:
		b := base.(*cipher.ChaCha20Config)
		add(cipher.ParamLegacyPageSize, c.LegacyPageSize(), b.LegacyPageSize())
		add(cipher.ParamKDFIter, c.KDFIter(), b.KDFIter())
	case *cipher.SQLCipherConfig:
		b := base.(*cipher.SQLCipherConfig)
		add(cipher.ParamLegacyPageSize, c.LegacyPageSize(), b.LegacyPageSize())
		add(cipher.ParamKDFIter, c.KDFIter(), b.KDFIter())
		add(cipher.ParamFastKDFIter, c.FastKDFIter(), b.FastKDFIter())
		add(cipher.ParamHMACUse, c.HMACUse(), b.HMACUse())
		add(cipher.ParamHMACPgno, c.HMACPgno(), b.HMACPgno())
		add(cipher.ParamHMACSaltMask, c.HMACSaltMask(), b.HMACSaltMask())
		addAlgorithm(cipher.ParamKDFAlgorithm, c.KDFAlgorithm(), b.KDFAlgorithm())
		addAlgorithm(cipher.ParamHMACAlgorithm, c.HMACAlgorithm(), b.HMACAlgorithm())
		add(cipher.ParamPlaintextHeaderSize, c.PlaintextHeaderSize(), b.PlaintextHeaderSize())
	case *cipher.RC4Config:
		b := base.(*cipher.RC4Config)
		add(cipher.ParamLegacyPageSize, c.LegacyPageSize(), b.LegacyPageSize())
	case *cipher.Ascon128Config:
		b := base.(*cipher.Ascon128Config)
		add(cipher.ParamLegacyPageSize, c.LegacyPageSize(), b.LegacyPageSize())
		add(cipher.ParamKDFIter, c.KDFIter(), b.KDFIter())
	default:
		return nil, fmt.Errorf("unsupported cipher config %T", cfg)
	}

	if force || !enc.HMACCheck() {
		ops = append(ops, Op{Name: cipher.ParamHMACCheck, Value: enc.HMACCheck(), Transient: transient})
	}
	if force || enc.MCLegacyWAL() {
		ops = append(ops, Op{Name: cipher.ParamMCLegacyWAL, Value: enc.MCLegacyWAL(), Transient: transient})
	}
	return ops, nil
}

// Render returns the SQL of every op. The list must start with the cipher
// and legacy selections, as produced by Ops.
func Render(ops []Op) ([]string, error) {
	if err := checkRequired(ops); err != nil {
		return nil, err
	}
	sqls := make([]string, 0, len(ops))
	for _, op := range ops {
		sql, err := op.SQL()
		if err != nil {
			return nil, err
		}
		sqls = append(sqls, sql)
	}
	return sqls, nil
}

func checkRequired(ops []Op) error {
	if len(ops) < 1 || ops[0].Name != cipher.ParamCipher {
		return fmt.Errorf("%w: %s", ErrMissingRequiredParameter, cipher.ParamCipher)
	}
	if len(ops) < 2 || ops[1].Name != cipher.ParamLegacy {
		return fmt.Errorf("%w: %s", ErrMissingRequiredParameter, cipher.ParamLegacy)
	}
	return nil
}
