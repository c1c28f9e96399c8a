// Package auditor runs the rule engine over parsed statements. Rules
// read their severity from a config snapshot taken at session start,
// so one batch is always checked against a single consistent policy.
package auditor

import (
	"fmt"
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sql-gate/internal/model"
	"sql-gate/internal/parser"
	"sql-gate/internal/vars"
)

// RowEstimator predicts how many rows a DML statement will touch.
// *meta.Provider satisfies it; audits without a remote leave it nil.
type RowEstimator interface {
	ExplainRows(db, query string) (int64, error)
}

// Config wires one Auditor to its session.
type Config struct {
	Snap      *vars.Snapshot
	Meta      model.MetaProvider // nil when no remote is reachable
	Rows      RowEstimator
	Profile   model.ServerProfile
	DefaultDB string
	// ConnError carries the remote connection failure, reported as an
	// error on every statement so the batch never silently passes.
	ConnError string
}

// Auditor audits one statement batch. It is not safe for concurrent
// use; each session owns its own instance.
type Auditor struct {
	snap      *vars.Snapshot
	meta      model.MetaProvider
	rows      RowEstimator
	profile   model.ServerProfile
	currentDB string
	connError string

	// Objects created earlier in the same batch, keyed "db.table"
	// lowercased, mapping to the lowercased column set.
	batchTables map[string]map[string]bool
	batchDBs    map[string]bool
	altered     map[string]bool
}

func New(cfg Config) *Auditor {
	return &Auditor{
		snap:        cfg.Snap,
		meta:        cfg.Meta,
		rows:        cfg.Rows,
		profile:     cfg.Profile,
		currentDB:   cfg.DefaultDB,
		connError:   cfg.ConnError,
		batchTables: make(map[string]map[string]bool),
		batchDBs:    make(map[string]bool),
		altered:     make(map[string]bool),
	}
}

// CurrentDB returns the session's database context.
func (a *Auditor) CurrentDB() string { return a.currentDB }

// SetCurrentDB switches the database context, as a USE statement does.
func (a *Auditor) SetCurrentDB(db string) { a.currentDB = db }

// Check audits one statement and records the outcome on node. The
// node's SQLType/SubTypes are expected to be classified already.
func (a *Auditor) Check(stmt ast.StmtNode, node *model.CacheNode) {
	node.Stage = model.StageChecked
	node.StageStatus = "Audit completed"

	if a.connError != "" {
		node.Append(model.SeverityError, a.connError)
	}

	db, table := parser.TargetTable(stmt, a.currentDB)
	node.DB, node.Table = db, table

	switch s := stmt.(type) {
	case *ast.CreateDatabaseStmt:
		a.auditCreateDB(s, node)
	case *ast.DropDatabaseStmt:
		a.auditDropDB(s, node)
	case *ast.UseStmt:
		a.currentDB = s.DBName
		node.DB = s.DBName
	case *ast.CreateTableStmt:
		a.auditCreateTable(s, node)
	case *ast.AlterTableStmt:
		a.auditAlterTable(s, node)
	case *ast.InsertStmt:
		a.auditInsert(s, node)
	case *ast.UpdateStmt:
		a.auditUpdate(s, node)
	case *ast.DeleteStmt:
		a.auditDelete(s, node)
	case *ast.SelectStmt:
		a.auditSelect(s, node)
	case *ast.DropTableStmt:
		a.auditDropTable(s, node)
	case *ast.TruncateTableStmt:
		a.auditTruncate(s, node)
	}

	node.SQLSha1 = parser.Fingerprint(node.SQL)
}

// report appends a message at the severity configured for the named
// rule variable. A rule set to OFF stays silent.
func (a *Auditor) report(node *model.CacheNode, rule, format string, args ...interface{}) {
	level := a.snap.Level(rule)
	if level == model.SeverityOff {
		return
	}
	node.Append(level, fmt.Sprintf(format, args...))
}

func (a *Auditor) warn(node *model.CacheNode, format string, args ...interface{}) {
	node.Append(model.SeverityWarning, fmt.Sprintf(format, args...))
}

func (a *Auditor) fail(node *model.CacheNode, format string, args ...interface{}) {
	node.Append(model.SeverityError, fmt.Sprintf(format, args...))
}

func tableKey(db, table string) string {
	return strings.ToLower(db) + "." + strings.ToLower(table)
}

func (a *Auditor) inBatch(db, table string) bool {
	_, ok := a.batchTables[tableKey(db, table)]
	return ok
}

func (a *Auditor) trackTable(db, table string, columns []string) {
	cols := make(map[string]bool, len(columns))
	for _, c := range columns {
		cols[strings.ToLower(c)] = true
	}
	a.batchTables[tableKey(db, table)] = cols
}

func (a *Auditor) batchColumnExists(db, table, column string) bool {
	cols, ok := a.batchTables[tableKey(db, table)]
	return ok && cols[strings.ToLower(column)]
}

// remoteTable resolves table metadata from the remote server. The
// second return is false when no answer is available (no connection or
// lookup failure), in which case remote-dependent rules are skipped.
func (a *Auditor) remoteTable(db, table string) (*model.TableMeta, bool) {
	if a.meta == nil || db == "" || table == "" {
		return nil, false
	}
	tm, err := a.meta.TableMeta(db, table)
	if err != nil {
		return nil, false
	}
	return tm, true
}

// charsetAllowed checks a charset name against the comma-separated
// inception_support_charset whitelist.
func (a *Auditor) charsetAllowed(cs string) bool {
	allowed := a.snap.Str(vars.SupportCharset)
	if allowed == "" {
		return true
	}
	for _, item := range strings.Split(allowed, ",") {
		if strings.EqualFold(strings.TrimSpace(item), cs) {
			return true
		}
	}
	return false
}

func indexName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
