package pragma

import (
	"regexp"

	"github.com/russellromney/cipherdb/internal/encryption"
	"github.com/russellromney/cipherdb/internal/key"
)

// Kind classifies a statement.
type Kind int

const (
	KindConfig Kind = iota
	KindKey
	KindRekey
	KindProbe
	KindJournal
	KindTuning
	KindVersion
)

// Phase tells whether a statement belongs to opening the database or to
// rekeying it afterwards. A failure in the open phase means the key or
// scheme did not match; a failure in the rekey phase is fatal.
type Phase int

const (
	PhaseOpen Phase = iota
	PhaseRekey
)

// ProbeSQL reads the schema; it fails with "file is not a database" when the
// key or cipher configuration is wrong.
const ProbeSQL = "SELECT count(*) FROM sqlite_schema"

// VersionSQL fails on an engine built without the SQLite3 Multiple Ciphers
// extension. Such an engine ignores the cipher and key pragmas and would
// write the database in plaintext.
const VersionSQL = "SELECT sqlite3mc_version()"

const redacted = "[REDACTED]"

// Statement is one SQL statement of a sequence.
type Statement struct {
	SQL   string
	Kind  Kind
	Phase Phase
}

// Secret reports whether the statement carries key material.
func (s Statement) Secret() bool {
	return s.Kind == KindKey || s.Kind == KindRekey
}

// Redacted returns the statement with the value of key and rekey
// statements replaced by [REDACTED].
func (s Statement) Redacted() string {
	switch s.Kind {
	case KindKey:
		return "PRAGMA key = " + redacted
	case KindRekey:
		return "PRAGMA rekey = " + redacted
	}
	return s.SQL
}

// Target is a scheme and the key to use with it. A nil encryption config or
// an empty key means no encryption.
type Target struct {
	Encryption *encryption.Config
	Key        *key.Key
}

func (t Target) encrypted() bool {
	return t.Encryption != nil && !t.Key.IsEmpty()
}

// Params describes one open, optionally followed by a rekey.
type Params struct {
	Source Target
	// Rekey, when set, re-encrypts the database to this target after opening.
	Rekey *Target
	// JournalMode is restored after a rekey. Empty leaves the rollback journal.
	JournalMode JournalMode
}

// Sequence is the ordered list of statements for one open. Statements must
// run in order; later ones depend on engine state set by earlier ones.
type Sequence struct {
	Statements []Statement
}

func (s *Sequence) add(sql string, kind Kind, phase Phase) {
	s.Statements = append(s.Statements, Statement{SQL: sql, Kind: kind, Phase: phase})
}

func (s *Sequence) addOps(ops []Op, phase Phase) error {
	sqls, err := Render(ops)
	if err != nil {
		return err
	}
	for _, sql := range sqls {
		s.add(sql, KindConfig, phase)
	}
	return nil
}

// Wipe drops the references to statements carrying key material. The
// strings themselves are left to the garbage collector.
func (s *Sequence) Wipe() {
	if s == nil {
		return
	}
	for i := range s.Statements {
		if s.Statements[i].Secret() {
			s.Statements[i].SQL = ""
		}
	}
	s.Statements = nil
}

// Build assembles the statement sequence for p.
//
// Open phase: extension check when any side is encrypted, source ops
// (transient, diffed), PRAGMA key, schema probe.
// Rekey phase: journal_mode = DELETE, target ops (non-transient, all
// parameters), PRAGMA rekey, target ops again, journal mode restore.
func Build(p Params) (*Sequence, error) {
	seq := &Sequence{}

	if p.Source.encrypted() || (p.Rekey != nil && p.Rekey.encrypted()) {
		seq.add(VersionSQL, KindVersion, PhaseOpen)
	}
	if p.Source.encrypted() {
		ops, err := Ops(p.Source.Encryption, true, false)
		if err != nil {
			return nil, err
		}
		if err := seq.addOps(ops, PhaseOpen); err != nil {
			return nil, err
		}
		v, err := p.Source.Key.Retrieve(p.Source.Encryption.Cipher().Cipher())
		if err != nil {
			return nil, err
		}
		seq.add("PRAGMA key = "+v, KindKey, PhaseOpen)
	}
	seq.add(ProbeSQL, KindProbe, PhaseOpen)

	if p.Rekey == nil {
		return seq, nil
	}

	// a WAL database cannot be rekeyed
	seq.add("PRAGMA journal_mode = "+string(JournalDelete), KindJournal, PhaseRekey)

	if p.Rekey.encrypted() {
		ops, err := Ops(p.Rekey.Encryption, false, true)
		if err != nil {
			return nil, err
		}
		if err := seq.addOps(ops, PhaseRekey); err != nil {
			return nil, err
		}
		v, err := p.Rekey.Key.Retrieve(p.Rekey.Encryption.Cipher().Cipher())
		if err != nil {
			return nil, err
		}
		seq.add("PRAGMA rekey = "+v, KindRekey, PhaseRekey)
		if err := seq.addOps(ops, PhaseRekey); err != nil {
			return nil, err
		}
	} else {
		seq.add("PRAGMA rekey = ''", KindRekey, PhaseRekey)
	}

	if p.JournalMode != "" && p.JournalMode != JournalDelete {
		seq.add("PRAGMA journal_mode = "+string(p.JournalMode), KindJournal, PhaseRekey)
	}
	return seq, nil
}

var secretStatement = regexp.MustCompile(`(?is)^(\s*PRAGMA\s+(?:\w+\.)?(?:re)?key\s*=).*$`)

// Redact replaces the value of key and rekey statements with [REDACTED].
// Other statements are returned unchanged.
func Redact(sql string) string {
	if m := secretStatement.FindStringSubmatch(sql); m != nil {
		return m[1] + " " + redacted
	}
	return sql
}
