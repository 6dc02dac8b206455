package pragma

import (
	"fmt"
	"strings"
)

// JournalMode represents the available journal modes for SQLite
type JournalMode string

const (
	JournalDelete   JournalMode = "DELETE"
	JournalTruncate JournalMode = "TRUNCATE"
	JournalPersist  JournalMode = "PERSIST"
	JournalMemory   JournalMode = "MEMORY"
	JournalWAL      JournalMode = "WAL"
	JournalOff      JournalMode = "OFF"
)

// ParseJournalMode resolves a journal mode name (case-insensitive).
func ParseJournalMode(s string) (JournalMode, error) {
	m := JournalMode(strings.ToUpper(strings.TrimSpace(s)))
	switch m {
	case JournalDelete, JournalTruncate, JournalPersist, JournalMemory, JournalWAL, JournalOff:
		return m, nil
	}
	return "", fmt.Errorf("%w: journal mode %q", ErrInvalidParameterValue, s)
}

// BusyTimeoutMillis is how long a connection waits on a locked database.
const BusyTimeoutMillis = 5000

// Tuning returns the connection settings applied once a database is open
// and keyed.
func Tuning(mode JournalMode) []Statement {
	var stmts []Statement
	if mode != "" {
		stmts = append(stmts, Statement{SQL: "PRAGMA journal_mode = " + string(mode), Kind: KindTuning})
	}
	return append(stmts,
		Statement{SQL: "PRAGMA foreign_keys = ON", Kind: KindTuning},
		Statement{SQL: fmt.Sprintf("PRAGMA busy_timeout = %d", BusyTimeoutMillis), Kind: KindTuning},
	)
}
