// Package auditlog appends one JSON line per completed session and one
// per statement to the file named by inception_audit_log. An empty
// path disables logging entirely; changing the path mid-flight reopens
// the writer on the next session.
package auditlog

import (
	"fmt"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// Statements longer than this are truncated in the log.
const maxSQLBytes = 4096

// SessionRecord summarizes one completed session.
type SessionRecord struct {
	User       string
	ClientHost string
	Target     string // "host:port", empty for offline audits
	TargetUser string
	Mode       string
	Statements int
	Errors     int
	DurationMs int64
}

// StatementRecord is the per-statement line.
type StatementRecord struct {
	ID           int
	SQL          string
	Result       string // "OK" or "ERROR"
	AffectedRows int64
	ExecuteTime  string
}

// Logger serializes appends from concurrent sessions.
type Logger struct {
	mu   sync.Mutex
	path string
	file *os.File
	zl   zerolog.Logger
}

func New() *Logger {
	return &Logger{}
}

// Close releases the current file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closeLocked()
}

func (l *Logger) closeLocked() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.path = ""
	return err
}

// reopenLocked switches the writer to a new path.
func (l *Logger) reopenLocked(path string) error {
	if err := l.closeLocked(); err != nil {
		return err
	}
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening audit log %s: %w", path, err)
	}
	l.file = f
	l.path = path
	l.zl = zerolog.New(f).With().Timestamp().Logger()
	return nil
}

// Write appends the session line and its statement lines to the file
// at path. An empty path is a no-op; nothing gets created.
func (l *Logger) Write(path string, sess SessionRecord, stmts []StatementRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if path != l.path {
		if err := l.reopenLocked(path); err != nil {
			return err
		}
	}
	if l.file == nil {
		return nil
	}

	l.zl.Log().
		Str("type", "session").
		Str("user", sess.User).
		Str("client_host", sess.ClientHost).
		Str("target", sess.Target).
		Str("target_user", sess.TargetUser).
		Str("mode", sess.Mode).
		Int("statements", sess.Statements).
		Int("errors", sess.Errors).
		Int64("duration_ms", sess.DurationMs).
		Send()

	for _, st := range stmts {
		sql := st.SQL
		if len(sql) > maxSQLBytes {
			sql = sql[:maxSQLBytes]
		}
		l.zl.Log().
			Str("type", "statement").
			Int("id", st.ID).
			Str("sql", sql).
			Str("result", st.Result).
			Int64("affected_rows", st.AffectedRows).
			Str("execute_time", st.ExecuteTime).
			Send()
	}
	return nil
}
