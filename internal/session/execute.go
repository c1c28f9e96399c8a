package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"sql-gate/internal/meta"
	"sql-gate/internal/model"
	"sql-gate/internal/vars"
)

var errKilled = errors.New("session killed")

// executeAll runs the pre-scanned batch against the remote, one
// statement at a time on a dedicated connection so USE and SET persist
// across statements.
func (s *Session) executeAll(ctx context.Context) {
	if s.provider == nil {
		// The connection error is already on every node; nothing runs.
		return
	}

	if s.snap.Bool(vars.ExecCheckReadOnly) {
		ro, err := s.provider.ReadOnly()
		if err == nil && ro {
			for _, node := range s.nodes {
				node.StageStatus = "Pre-check failed"
				node.Append(model.SeverityError,
					"Remote is read-only (read_only=ON), execution blocked by pre-check.")
			}
			return
		}
	}

	conn, err := s.provider.DB().Conn(ctx)
	if err != nil {
		for _, node := range s.nodes {
			node.StageStatus = "Execute failed"
			node.Append(model.SeverityError, fmt.Sprintf("Acquiring remote connection: %v", err))
		}
		return
	}
	defer conn.Close()

	failed := false
	for i, node := range s.nodes {
		if s.killed.Load() {
			s.markKilled(s.nodes[i:])
			return
		}
		if failed && !s.opts.Force {
			node.Stage = model.StageSkipped
			node.StageStatus = "Skipped: previous statement had errors."
			continue
		}

		if err := s.throttle(ctx); err != nil {
			s.markKilled(s.nodes[i:])
			return
		}

		start := time.Now()
		res, execErr := conn.ExecContext(ctx, node.SQL)
		node.ExecuteTime = fmt.Sprintf("%.3f", time.Since(start).Seconds())
		node.Sequence = fmt.Sprintf("'%d_%d_%d'", time.Now().Unix(), s.threadID, node.ID)

		if execErr != nil {
			if ctx.Err() != nil {
				s.markKilled(s.nodes[i:])
				return
			}
			node.Stage = model.StageExecuted
			node.StageStatus = "Execute failed"
			node.Append(model.SeverityError, execErr.Error())
			failed = true
			log.Warn().Uint32("thread_id", s.threadID).Int("id", node.ID).
				Err(execErr).Msg("Statement failed on remote")
		} else {
			node.Stage = model.StageExecuted
			node.StageStatus = "Execute completed"
			if node.SQLType == "USE_DATABASE" || node.SQLType == "SET" {
				node.Stage = model.StageRerun
			}
			if n, err := res.RowsAffected(); err == nil {
				node.AffectedRows = n
			}
			if s.opts.Backup && node.Stage == model.StageExecuted && node.DB != "" {
				node.BackupDB = s.backupDBName(node.DB)
			}
			s.collectWarnings(ctx, conn, node)
			if isDDLType(node.SQLType) && node.Table != "" {
				s.provider.Invalidate(node.DB, node.Table)
			}
		}

		s.executed.Add(1)
		if err := s.pause(ctx); err != nil {
			if i+1 < len(s.nodes) {
				s.markKilled(s.nodes[i+1:])
			}
			return
		}
	}
}

// markKilled stamps the not-yet-executed tail of the batch. The first
// node carries the reason; all of them show a Killed status.
func (s *Session) markKilled(nodes []*model.CacheNode) {
	for i, node := range nodes {
		node.Stage = model.StageSkipped
		node.StageStatus = "Killed"
		if i == 0 {
			node.Append(model.SeverityError, "Killed by user")
		}
	}
	log.Info().Uint32("thread_id", s.threadID).Int("remaining", len(nodes)).
		Msg("Session killed, remaining statements skipped")
}

// throttle blocks while the remote is busier than the configured caps,
// polling once a second and honoring a kill between polls.
func (s *Session) throttle(ctx context.Context) error {
	maxThreads := s.snap.Uint(vars.ExecMaxThreadsRunning)
	maxLag := s.snap.Uint(vars.ExecMaxReplicationLag)
	if maxThreads == 0 && maxLag == 0 {
		return nil
	}

	for {
		if s.killed.Load() {
			return errKilled
		}

		wait := false
		if maxThreads > 0 {
			if n, err := s.provider.ThreadsRunning(); err == nil {
				s.lastThreads.Store(n)
				if n > int64(maxThreads) {
					wait = true
				}
			}
		}
		if !wait && maxLag > 0 {
			for _, host := range s.opts.SlaveHosts {
				lag, err := meta.ReplicationDelay(host, s.user, s.password)
				if err != nil || lag < 0 {
					continue
				}
				s.lastDelay.Store(lag)
				if lag > int64(maxLag) {
					wait = true
					break
				}
			}
		}
		if !wait {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
}

// collectWarnings folds the remote's SHOW WARNINGS output into the
// statement's diagnostics, raising it to at least WARNING.
func (s *Session) collectWarnings(ctx context.Context, conn *sql.Conn, node *model.CacheNode) {
	rows, err := conn.QueryContext(ctx, "SHOW WARNINGS")
	if err != nil {
		return
	}
	defer rows.Close()

	for rows.Next() {
		var level, message string
		var code int64
		if err := rows.Scan(&level, &code, &message); err != nil {
			return
		}
		node.Append(model.SeverityWarning,
			fmt.Sprintf("Remote %s (code %d): %s", level, code, message))
	}
}

// pause sleeps between statements, re-reading the delay each time so a
// live "set sleep" command takes effect immediately.
func (s *Session) pause(ctx context.Context) error {
	ms := s.sleepMs.Load()
	if ms == 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Duration(ms) * time.Millisecond):
		return nil
	}
}

// backupDBName is the per-target rollback database name in the
// <host>_<port>_<db> form, with dots and dashes flattened so the name
// stays a valid identifier.
func (s *Session) backupDBName(db string) string {
	host := strings.NewReplacer(".", "_", "-", "_").Replace(s.opts.Host)
	return fmt.Sprintf("%s_%d_%s", host, s.opts.Port, db)
}

func isDDLType(sqlType string) bool {
	switch {
	case strings.HasPrefix(sqlType, "CREATE_"),
		strings.HasPrefix(sqlType, "ALTER_"),
		strings.HasPrefix(sqlType, "DROP_"),
		strings.HasPrefix(sqlType, "RENAME_"),
		sqlType == "TRUNCATE":
		return true
	}
	return false
}
