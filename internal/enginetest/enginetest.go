// Package enginetest provides a database/sql driver that behaves like an
// SQLite3 Multiple Ciphers build for tests. It wraps the pure Go SQLite
// driver and simulates encryption: cipher parameters, key and rekey
// statements are tracked per database file, and reading a file with the
// wrong key or cipher scheme fails with "file is not a database".
//
// Data is stored in plaintext. Only the access rules are simulated.
package enginetest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/russellromney/cipherdb/internal/cipher"
	"github.com/russellromney/cipherdb/internal/encryption"
	"github.com/russellromney/cipherdb/internal/pragma"

	_ "modernc.org/sqlite"
)

// DriverName is the database/sql driver name registered by this package.
const DriverName = "cipherdb-sim"

var (
	// ErrNotADatabase is returned when the key or scheme does not match.
	ErrNotADatabase = errors.New("file is not a database")
	// ErrRekeyWAL is returned when rekeying a database in WAL journal mode.
	ErrRekeyWAL = errors.New("cannot rekey in WAL journal mode")
	// ErrInjected is returned by statements failed on purpose.
	ErrInjected = errors.New("injected failure")
)

// Version is what sqlite3mc_version() reports.
const Version = "2.0.0 (simulated)"

// defaultCipher is the engine's cipher when none was configured.
const defaultCipher = cipher.ChaCha20

func init() {
	sql.Register(DriverName, &Driver{})
}

// Stats counts what happened to one database.
type Stats struct {
	Keys       int
	Rekeys     int
	Rejections int
}

type fileState struct {
	known     bool
	encrypted bool
	scheme    string
	key       string
	wal       bool
	failRekey bool
	hook      func(query string) error
	stats     Stats
}

type registry struct {
	mu    sync.Mutex
	files map[string]*fileState
}

var files = &registry{files: map[string]*fileState{}}

// tracked reports whether name refers to a database that outlives a
// connection.
func tracked(name string) bool {
	return name != "" && name != ":memory:" && !strings.Contains(name, "mode=memory")
}

func (r *registry) get(name string) *fileState {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.files[name]
	if !ok {
		f = &fileState{}
		r.files[name] = f
	}
	return f
}

// Driver is the simulated encryption driver.
type Driver struct{}

var (
	innerOnce   sync.Once
	innerDriver driver.Driver
	innerErr    error
)

func inner() (driver.Driver, error) {
	innerOnce.Do(func() {
		db, err := sql.Open("sqlite", "")
		if err != nil {
			innerErr = err
			return
		}
		innerDriver = db.Driver()
		db.Close()
	})
	return innerDriver, innerErr
}

// Open opens name with the wrapped driver.
func (d *Driver) Open(name string) (driver.Conn, error) {
	drv, err := inner()
	if err != nil {
		return nil, err
	}
	c, err := drv.Open(name)
	if err != nil {
		return nil, err
	}
	sc := &conn{
		inner:    c,
		name:     name,
		defaults: map[string]string{},
		staged:   map[string]string{},
	}
	if tracked(name) {
		sc.file = files.get(name)
	}
	return sc, nil
}

// Inspect returns whether the named database is encrypted, its scheme
// fingerprint and its statistics. ok is false for unknown databases.
func Inspect(name string) (encrypted bool, scheme string, stats Stats, ok bool) {
	files.mu.Lock()
	defer files.mu.Unlock()
	f, ok := files.files[name]
	if !ok || !f.known {
		return false, "", Stats{}, false
	}
	return f.encrypted, f.scheme, f.stats, true
}

// FailRekey makes every rekey of the named database fail until the test
// ends.
func FailRekey(t testing.TB, name string) {
	t.Helper()
	f := files.get(name)
	files.mu.Lock()
	f.failRekey = true
	files.mu.Unlock()
	t.Cleanup(func() {
		files.mu.Lock()
		f.failRekey = false
		files.mu.Unlock()
	})
}

// Hook calls fn before every statement executed against the named database.
// A non-nil error from fn fails the statement.
func Hook(t testing.TB, name string, fn func(query string) error) {
	t.Helper()
	f := files.get(name)
	files.mu.Lock()
	f.hook = fn
	files.mu.Unlock()
	t.Cleanup(func() {
		files.mu.Lock()
		f.hook = nil
		files.mu.Unlock()
	})
}

var (
	pragmaStmt       = regexp.MustCompile(`(?is)^\s*PRAGMA\s+(?:main\.)?(\w+)\s*=\s*(.*?)\s*;?\s*$`)
	configStmt       = regexp.MustCompile(`(?is)^\s*SELECT\s+sqlite3mc_config\(\s*'default:(\w+)'\s*,\s*(.*?)\s*\)\s*;?\s*$`)
	configCipherStmt = regexp.MustCompile(`(?is)^\s*SELECT\s+sqlite3mc_config_cipher\(\s*'(\w+)'\s*,\s*'default:(\w+)'\s*,\s*(.*?)\s*\)\s*;?\s*$`)
	versionStmt      = regexp.MustCompile(`(?is)^\s*SELECT\s+sqlite3mc_version\(\s*\)\s*;?\s*$`)
)

// cipherParams are the parameters handled by the simulated extension.
var cipherParams = map[string]bool{
	cipher.ParamCipher:              true,
	cipher.ParamLegacy:              true,
	cipher.ParamLegacyPageSize:      true,
	cipher.ParamKDFIter:             true,
	cipher.ParamFastKDFIter:         true,
	cipher.ParamHMACUse:             true,
	cipher.ParamHMACPgno:            true,
	cipher.ParamHMACSaltMask:        true,
	cipher.ParamKDFAlgorithm:        true,
	cipher.ParamHMACAlgorithm:       true,
	cipher.ParamPlaintextHeaderSize: true,
	cipher.ParamHMACCheck:           true,
	cipher.ParamMCLegacyWAL:         true,
}

// connection-wide parameters that do not change the file format
var formatNeutral = map[string]bool{
	cipher.ParamHMACCheck:   true,
	cipher.ParamMCLegacyWAL: true,
}

func unquote(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 2 && v[0] == '\'' && v[len(v)-1] == '\'' {
		return v[1 : len(v)-1]
	}
	return v
}

type conn struct {
	inner driver.Conn
	name  string
	file  *fileState

	// defaults holds non-transient parameters, staged the transient ones
	// that apply to the next key or rekey. Keys are "<cipher>.<param>" for
	// cipher parameters and "<param>" otherwise.
	defaults map[string]string
	staged   map[string]string

	keyed  bool
	key    string
	scheme string
	// verified is set once the connection was allowed to read the file.
	verified bool
}

func paramKey(c, name string) string {
	if c == "" || name == cipher.ParamCipher || formatNeutral[name] {
		return name
	}
	return c + "." + name
}

func (c *conn) stage(name, value string) {
	if name == cipher.ParamCipher {
		c.staged[name] = value
		return
	}
	cur := c.staged[cipher.ParamCipher]
	if cur == "" {
		cur = c.defaults[cipher.ParamCipher]
	}
	if cur == "" {
		cur = defaultCipher.String()
	}
	c.staged[paramKey(cur, name)] = value
}

// effectiveScheme fingerprints the cipher scheme the next key or rekey will
// use. Staged parameters replace the defaults entirely once a cipher was
// staged.
func (c *conn) effectiveScheme() (string, error) {
	params := c.defaults
	if _, ok := c.staged[cipher.ParamCipher]; ok {
		params = c.staged
	}
	name := params[cipher.ParamCipher]
	if name == "" {
		name = defaultCipher.String()
	}
	id, err := cipher.Parse(name)
	if err != nil {
		return "", err
	}

	legacy := ""
	if v, ok := params[paramKey(name, cipher.ParamLegacy)]; ok {
		legacy = v
	}
	base, err := baseline(id, legacy)
	if err != nil {
		return "", err
	}
	for k, v := range params {
		if p, ok := strings.CutPrefix(k, name+"."); ok {
			base[p] = v
		}
	}

	keys := make([]string, 0, len(base))
	for k := range base {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(name)
	for _, k := range keys {
		fmt.Fprintf(&b, ";%s=%s", k, base[k])
	}
	return b.String(), nil
}

// baseline returns the full parameter set the engine assumes for a cipher
// and legacy value. An empty legacy selects the cipher's default preset.
func baseline(id cipher.Cipher, legacy string) (map[string]string, error) {
	var cfg cipher.Config
	if legacy == "" {
		cfg, _ = cipher.Preset(id, cipher.PresetDefault)
	} else {
		for _, name := range append([]string{cipher.PresetDefault}, cipher.Presets(id)...) {
			p, err := cipher.Preset(id, name)
			if err == nil && fmt.Sprint(p.Legacy()) == legacy {
				cfg = p
				break
			}
		}
	}
	if cfg == nil {
		return nil, fmt.Errorf("SQL logic error: %s does not support legacy %s", id, legacy)
	}
	enc, err := encryption.New(nil, func(b *encryption.Builder) { b.Cipher(cfg) })
	if err != nil {
		return nil, err
	}
	ops, err := pragma.Ops(enc, true, true)
	if err != nil {
		return nil, err
	}
	params := map[string]string{}
	for _, op := range ops {
		if op.Name == cipher.ParamCipher || formatNeutral[op.Name] {
			continue
		}
		params[op.Name] = fmt.Sprint(boolToInt(op.Value))
	}
	return params, nil
}

func boolToInt(v any) any {
	if b, ok := v.(bool); ok {
		if b {
			return 1
		}
		return 0
	}
	return v
}

// authorize checks that the connection may read its database, adopting the
// connection's key for a database seen for the first time.
func (c *conn) authorize() error {
	if c.file == nil || c.verified {
		return nil
	}
	files.mu.Lock()
	defer files.mu.Unlock()
	f := c.file
	switch {
	case !f.known:
		f.known = true
		f.encrypted, f.scheme, f.key = c.keyed, c.scheme, c.key
	case f.encrypted != c.keyed || f.scheme != c.scheme || f.key != c.key:
		f.stats.Rejections++
		return ErrNotADatabase
	}
	c.verified = true
	return nil
}

func (c *conn) hook(query string) error {
	if c.file == nil {
		return nil
	}
	files.mu.Lock()
	fn := c.file.hook
	files.mu.Unlock()
	if fn != nil {
		return fn(query)
	}
	return nil
}

// intercept handles statements of the simulated extension. handled is
// false for statements that go to the real engine.
func (c *conn) intercept(query string) (handled bool, err error) {
	if versionStmt.MatchString(query) {
		return true, nil
	}
	if m := configCipherStmt.FindStringSubmatch(query); m != nil {
		c.defaults[paramKey(m[1], m[2])] = unquote(m[3])
		return true, nil
	}
	if m := configStmt.FindStringSubmatch(query); m != nil {
		c.defaults[m[1]] = unquote(m[2])
		return true, nil
	}
	m := pragmaStmt.FindStringSubmatch(query)
	if m == nil {
		return false, nil
	}
	name, value := strings.ToLower(m[1]), m[2]
	switch {
	case cipherParams[name]:
		c.stage(name, unquote(value))
		return true, nil
	case name == "key":
		return true, c.setKey(value)
	case name == "rekey":
		return true, c.rekey(value)
	case name == "journal_mode":
		if err := c.authorize(); err != nil {
			return true, err
		}
		if c.file != nil {
			files.mu.Lock()
			c.file.wal = strings.EqualFold(unquote(value), string(pragma.JournalWAL))
			files.mu.Unlock()
		}
		return false, nil
	}
	return false, nil
}

func (c *conn) setKey(value string) error {
	defer clear(c.staged)
	c.verified = false
	if unquote(value) == "" {
		c.keyed, c.key, c.scheme = false, "", ""
		return nil
	}
	scheme, err := c.effectiveScheme()
	if err != nil {
		return err
	}
	c.keyed, c.key, c.scheme = true, value, scheme
	if c.file != nil {
		files.mu.Lock()
		c.file.stats.Keys++
		files.mu.Unlock()
	}
	return nil
}

func (c *conn) rekey(value string) error {
	defer clear(c.staged)
	if err := c.authorize(); err != nil {
		return err
	}
	if c.file == nil {
		return nil
	}
	encrypted := unquote(value) != ""
	scheme := ""
	if encrypted {
		var err error
		if scheme, err = c.effectiveScheme(); err != nil {
			return err
		}
	}

	files.mu.Lock()
	defer files.mu.Unlock()
	f := c.file
	switch {
	case f.failRekey:
		return ErrInjected
	case f.wal:
		return ErrRekeyWAL
	}
	f.encrypted, f.scheme = encrypted, scheme
	f.key = ""
	if encrypted {
		f.key = value
	}
	f.stats.Rekeys++
	c.keyed, c.key, c.scheme = f.encrypted, f.key, f.scheme
	return nil
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return c.PrepareContext(context.Background(), query)
}

func (c *conn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	if err := c.hook(query); err != nil {
		return nil, err
	}
	if versionStmt.MatchString(query) {
		query = "SELECT '" + Version + "'"
	} else if err := c.authorize(); err != nil {
		return nil, err
	}
	if p, ok := c.inner.(driver.ConnPrepareContext); ok {
		return p.PrepareContext(ctx, query)
	}
	return c.inner.Prepare(query)
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.hook(query); err != nil {
		return nil, err
	}
	handled, err := c.intercept(query)
	if err != nil {
		return nil, err
	}
	if handled {
		return driver.RowsAffected(0), nil
	}
	if err := c.authorize(); err != nil {
		return nil, err
	}
	e, ok := c.inner.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	return e.ExecContext(ctx, query, args)
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := c.hook(query); err != nil {
		return nil, err
	}
	q, ok := c.inner.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}
	if versionStmt.MatchString(query) {
		return q.QueryContext(ctx, "SELECT '"+Version+"'", nil)
	}
	if err := c.authorize(); err != nil {
		return nil, err
	}
	return q.QueryContext(ctx, query, args)
}

func (c *conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if err := c.authorize(); err != nil {
		return nil, err
	}
	if b, ok := c.inner.(driver.ConnBeginTx); ok {
		return b.BeginTx(ctx, opts)
	}
	return c.inner.Begin() //nolint:staticcheck
}

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) CheckNamedValue(nv *driver.NamedValue) error {
	if checker, ok := c.inner.(driver.NamedValueChecker); ok {
		return checker.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

func (c *conn) Close() error {
	clear(c.staged)
	c.key = ""
	return c.inner.Close()
}
