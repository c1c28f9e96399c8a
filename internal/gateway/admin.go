package gateway

import (
	"fmt"
	"strconv"
	"strings"

	"sql-gate/internal/parser"
	"sql-gate/internal/protocol"
	"sql-gate/internal/secret"
	"sql-gate/internal/vars"
)

const (
	killUsage  = "Usage: inception kill <thread_id> [force]"
	sleepUsage = "Usage: inception set sleep <thread_id> <milliseconds>"
)

// handleAdmin dispatches the "inception ..." command family. The third
// return value reports whether the query was an admin command at all.
func (g *Gateway) handleAdmin(cs *protocol.ConnectionSession, query string) (*protocol.ResultSet, error, bool) {
	q := normalize(query)
	fields := strings.Fields(q)
	if len(fields) == 0 || !strings.EqualFold(fields[0], "inception") {
		return nil, nil, false
	}
	args := fields[1:]

	switch {
	case len(args) == 2 && strings.EqualFold(args[0], "show") && strings.EqualFold(args[1], "sessions"):
		return g.showSessions(), nil, true

	case len(args) >= 1 && strings.EqualFold(args[0], "kill"):
		return nil, g.kill(args[1:]), true

	case len(args) >= 2 && strings.EqualFold(args[0], "set") && strings.EqualFold(args[1], "sleep"):
		return nil, g.setSleep(args[2:]), true

	case len(args) == 2 && strings.EqualFold(args[0], "get") && strings.EqualFold(args[1], "sqltypes"):
		return sqlTypesResultSet(), nil, true

	case len(args) >= 2 && strings.EqualFold(args[0], "get") && strings.EqualFold(args[1], "encrypt_password"):
		rs, err := g.encryptPassword(q)
		return rs, err, true
	}

	return nil, protocol.ErrBadCommand(fmt.Sprintf("Unknown inception command: %s", q)), true
}

func (g *Gateway) showSessions() *protocol.ResultSet {
	rs := &protocol.ResultSet{
		Columns: protocol.TextColumns(
			"thread_id", "host", "port", "user", "mode", "db_type",
			"sleep_ms", "total_sql", "executed_sql", "elapsed",
			"threads_running", "repl_delay",
		),
	}
	for _, info := range g.registry.List() {
		rs.Rows = append(rs.Rows, []interface{}{
			info.ThreadID, info.Host, info.Port, info.User, info.Mode,
			info.DBType, info.SleepMs, info.TotalSQL, info.ExecutedSQL,
			info.Elapsed, info.ThreadsRunning, info.ReplDelay,
		})
	}
	return rs
}

func (g *Gateway) kill(args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return protocol.ErrBadCommand(killUsage)
	}
	force := false
	if len(args) == 2 {
		if !strings.EqualFold(args[1], "force") {
			return protocol.ErrBadCommand(killUsage)
		}
		force = true
	}
	tid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return protocol.ErrBadCommand(killUsage)
	}
	if !g.registry.Kill(uint32(tid), force) {
		return protocol.NewMySQLError(1094, "HY000",
			fmt.Sprintf("Thread %d not found or not in active inception session.", tid))
	}
	return nil
}

func (g *Gateway) setSleep(args []string) error {
	if len(args) != 2 {
		return protocol.ErrBadCommand(sleepUsage)
	}
	tid, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return protocol.ErrBadCommand(sleepUsage)
	}
	ms, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		return protocol.ErrBadCommand(sleepUsage)
	}
	if !g.registry.SetSleep(uint32(tid), ms) {
		return protocol.NewMySQLError(1094, "HY000",
			fmt.Sprintf("Thread %d not found or not in active inception session.", tid))
	}
	return nil
}

// sqlTypesResultSet lists the supported sql_type catalog, with the
// ALTER sub-type rows right after ALTER_TABLE.
func sqlTypesResultSet() *protocol.ResultSet {
	rs := &protocol.ResultSet{
		Columns: protocol.TextColumns("sqltype", "description", "audited"),
	}
	yesno := func(b bool) string {
		if b {
			return "YES"
		}
		return "NO"
	}
	for _, entry := range parser.TypeCatalog {
		rs.Rows = append(rs.Rows, []interface{}{entry.Name, entry.Description, yesno(entry.Audited)})
		if entry.Name != "ALTER_TABLE" {
			continue
		}
		for _, sub := range parser.AlterSubTypeCatalog {
			rs.Rows = append(rs.Rows, []interface{}{
				"ALTER_TABLE." + sub.Name, sub.Description, yesno(sub.Audited),
			})
		}
	}
	return rs
}

func (g *Gateway) encryptPassword(q string) (*protocol.ResultSet, error) {
	key := g.store.Snapshot().Str(vars.PasswordEncryptKey)
	if key == "" {
		return nil, protocol.NewMySQLError(1105, "HY000",
			"inception_password_encrypt_key is not configured.")
	}

	idx := strings.Index(strings.ToLower(q), "encrypt_password")
	plain := strings.TrimSpace(q[idx+len("encrypt_password"):])
	plain = strings.Trim(plain, "'\"")
	if plain == "" {
		return nil, protocol.ErrBadCommand("Usage: inception get encrypt_password '<plain>'")
	}

	enc, err := secret.Encrypt(plain, key)
	if err != nil {
		return nil, protocol.NewMySQLError(1105, "HY000", err.Error())
	}
	return &protocol.ResultSet{
		Columns: protocol.TextColumns("encrypted_password"),
		Rows:    [][]interface{}{{enc}},
	}, nil
}

// handleVariables serves SET GLOBAL and SHOW [GLOBAL] VARIABLES.
func (g *Gateway) handleVariables(query string) (*protocol.ResultSet, error, bool) {
	q := normalize(query)
	lower := strings.ToLower(q)

	if strings.HasPrefix(lower, "set global ") {
		rest := q[len("set global "):]
		eq := strings.IndexByte(rest, '=')
		if eq < 0 {
			return nil, protocol.ErrBadCommand("Usage: SET GLOBAL <variable> = <value>"), true
		}
		name := strings.TrimSpace(rest[:eq])
		value := strings.TrimSpace(rest[eq+1:])
		if err := g.store.Set(name, value); err != nil {
			if _, ok := g.store.Snapshot().Get(name); !ok {
				return nil, protocol.ErrUnknownVariable(name), true
			}
			return nil, protocol.ErrBadCommand(err.Error()), true
		}
		return nil, nil, true
	}

	for _, prefix := range []string{"show global variables", "show variables"} {
		if lower != prefix && !strings.HasPrefix(lower, prefix+" ") {
			continue
		}
		pattern := ""
		rest := strings.TrimSpace(q[len(prefix):])
		if rest != "" {
			if !strings.HasPrefix(strings.ToLower(rest), "like") {
				return nil, protocol.ErrBadCommand("Usage: SHOW [GLOBAL] VARIABLES [LIKE '<pattern>']"), true
			}
			pattern = strings.Trim(strings.TrimSpace(rest[len("like"):]), "'\"")
		}
		rs := &protocol.ResultSet{
			Columns: protocol.TextColumns("Variable_name", "Value"),
		}
		for _, pair := range g.store.Snapshot().List(pattern) {
			rs.Rows = append(rs.Rows, []interface{}{pair[0], pair[1]})
		}
		return rs, nil, true
	}

	return nil, nil, false
}
