package meta

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"sql-gate/internal/model"
)

// ThreadsRunning reads the remote's current Threads_running count.
func (p *Provider) ThreadsRunning() (int64, error) {
	var name, value string
	err := p.db.QueryRow("SHOW GLOBAL STATUS LIKE 'Threads_running'").Scan(&name, &value)
	if err != nil {
		return 0, fmt.Errorf("reading Threads_running: %w", err)
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing Threads_running %q: %w", value, err)
	}
	return n, nil
}

// ReadOnly reports whether the remote rejects writes.
func (p *Provider) ReadOnly() (bool, error) {
	var name, value string
	err := p.db.QueryRow("SHOW GLOBAL VARIABLES LIKE 'read_only'").Scan(&name, &value)
	if err != nil {
		return false, fmt.Errorf("reading read_only: %w", err)
	}
	return value == "ON" || value == "1", nil
}

// ReplicationDelay probes one replica for Seconds_Behind_Master.
// Returns -1 when the host is not replicating (no row or NULL lag).
func ReplicationDelay(host model.HostPort, user, password string) (int64, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?timeout=5s", user, password, host.Host, host.Port)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return -1, fmt.Errorf("opening replica %s: %w", host, err)
	}
	defer db.Close()

	rows, err := db.Query("SHOW SLAVE STATUS")
	if err != nil {
		return -1, fmt.Errorf("querying replica %s: %w", host, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return -1, err
	}
	lagIdx := -1
	for i, c := range cols {
		if c == "Seconds_Behind_Master" {
			lagIdx = i
			break
		}
	}
	if lagIdx < 0 || !rows.Next() {
		return -1, nil
	}

	vals := make([]interface{}, len(cols))
	for i := range vals {
		vals[i] = new(sql.NullString)
	}
	if err := rows.Scan(vals...); err != nil {
		return -1, err
	}
	lag := vals[lagIdx].(*sql.NullString)
	if !lag.Valid {
		return -1, nil
	}
	n, err := strconv.ParseInt(lag.String, 10, 64)
	if err != nil {
		return -1, nil
	}
	return n, nil
}

// ExplainRows estimates how many rows a DML statement touches. MySQL
// EXPLAIN puts the estimate in the "rows" column, TiDB in "estRows";
// both are located by name so column layout changes stay harmless.
func (p *Provider) ExplainRows(db, query string) (int64, error) {
	ctx := context.Background()

	// USE and EXPLAIN must land on the same connection; a pooled Exec
	// could switch the default database of an unrelated connection.
	conn, err := p.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("acquiring connection for explain: %w", err)
	}
	defer conn.Close()

	if db != "" {
		if _, err := conn.ExecContext(ctx, "USE "+quoteIdent(db)); err != nil {
			return 0, fmt.Errorf("switching to %s for explain: %w", db, err)
		}
	}
	rows, err := conn.QueryContext(ctx, "EXPLAIN "+query)
	if err != nil {
		return 0, fmt.Errorf("explaining statement: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}
	rowsIdx := -1
	for i, c := range cols {
		if c == "rows" || c == "estRows" {
			rowsIdx = i
			break
		}
	}
	if rowsIdx < 0 {
		return 0, nil
	}

	var total int64
	for rows.Next() {
		vals := make([]interface{}, len(cols))
		for i := range vals {
			vals[i] = new(sql.NullString)
		}
		if err := rows.Scan(vals...); err != nil {
			return 0, err
		}
		v := vals[rowsIdx].(*sql.NullString)
		if !v.Valid {
			continue
		}
		// TiDB reports estRows as a float.
		if f, err := strconv.ParseFloat(v.String, 64); err == nil && int64(f) > total {
			total = int64(f)
		}
	}
	return total, rows.Err()
}

// quoteIdent backtick-quotes an identifier, doubling embedded backticks.
func quoteIdent(name string) string {
	out := make([]byte, 0, len(name)+2)
	out = append(out, '`')
	for i := 0; i < len(name); i++ {
		if name[i] == '`' {
			out = append(out, '`')
		}
		out = append(out, name[i])
	}
	return string(append(out, '`'))
}
