package auditor

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sql-gate/internal/model"
	"sql-gate/internal/vars"
)

func (a *Auditor) auditDropTable(stmt *ast.DropTableStmt, node *model.CacheNode) {
	a.report(node, vars.CheckDropTable, "DROP TABLE will permanently remove the table.")

	// Tables created earlier in the batch are gone again after a drop.
	for _, t := range stmt.Tables {
		db := t.Schema.O
		if db == "" {
			db = a.currentDB
		}
		delete(a.batchTables, tableKey(db, t.Name.O))
	}
}

func (a *Auditor) auditDropDB(stmt *ast.DropDatabaseStmt, node *model.CacheNode) {
	name := stmt.Name.O
	node.DB = name

	a.report(node, vars.CheckDropDatabase,
		"DROP DATABASE will permanently remove database '%s'.", name)

	if a.meta != nil && name != "" && !a.batchDBs[strings.ToLower(name)] {
		if exists, err := a.meta.DatabaseExists(name); err == nil && !exists {
			a.warn(node, "Database '%s' does not exist on remote server.", name)
		}
	}

	delete(a.batchDBs, strings.ToLower(name))
}

func (a *Auditor) auditTruncate(stmt *ast.TruncateTableStmt, node *model.CacheNode) {
	db, table := node.DB, node.Table

	a.report(node, vars.CheckTruncateTable,
		"TRUNCATE TABLE will remove all data from '%s.%s'.", db, table)

	if db != "" && table != "" && !a.inBatch(db, table) {
		if tm, ok := a.remoteTable(db, table); ok {
			if tm == nil {
				a.fail(node, "Table '%s.%s' does not exist on remote server.", db, table)
			} else if tm.Rows > 0 {
				node.AffectedRows = tm.Rows
			}
		}
	}
}
