package auditor

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sql-gate/internal/model"
	"sql-gate/internal/parser"
	"sql-gate/internal/vars"
)

// inClauseVisitor counts the literals of every IN (...) list under an
// expression tree.
type inClauseVisitor struct {
	hits []int
}

func (v *inClauseVisitor) Enter(n ast.Node) (ast.Node, bool) {
	if in, ok := n.(*ast.PatternInExpr); ok && len(in.List) > 0 {
		v.hits = append(v.hits, len(in.List))
	}
	return n, false
}

func (v *inClauseVisitor) Leave(n ast.Node) (ast.Node, bool) { return n, true }

func (a *Auditor) checkInClause(where ast.ExprNode, node *model.CacheNode) {
	max := a.snap.Uint(vars.InCount)
	if where == nil || max == 0 {
		return
	}
	v := &inClauseVisitor{}
	where.Accept(v)
	for _, count := range v.hits {
		if uint64(count) > max {
			a.warn(node, "IN clause has %d items, exceeds max %d.", count, max)
		}
	}
}

// checkTableExists reports an error when the DML target is neither in
// the batch nor on the remote. Returns the remote metadata when known.
func (a *Auditor) checkTableExists(db, table string, node *model.CacheNode) *model.TableMeta {
	if db == "" || table == "" || a.inBatch(db, table) {
		return nil
	}
	tm, ok := a.remoteTable(db, table)
	if !ok {
		return nil
	}
	if tm == nil {
		a.fail(node, "Table '%s.%s' does not exist on remote server.", db, table)
	}
	return tm
}

// estimateRows predicts the affected row count via EXPLAIN, falling
// back to the table's row-count estimate.
func (a *Auditor) estimateRows(db string, remote *model.TableMeta, sql string) int64 {
	if a.rows != nil {
		if rows, err := a.rows.ExplainRows(db, sql); err == nil && rows >= 0 {
			return rows
		}
	}
	if remote != nil {
		return remote.Rows
	}
	return -1
}

func (a *Auditor) checkMaxRows(db, table, verb string, rows int64, node *model.CacheNode) {
	if rows < 0 {
		return
	}
	node.AffectedRows = rows
	if max := a.snap.Uint(vars.MaxUpdateRows); max > 0 && uint64(rows) > max {
		a.warn(node, "Table '%s.%s' has approximately %d rows, exceeds max %d. "+
			"Consider batching the %s.", db, table, rows, max, verb)
	}
}

// columnExists resolves a column name against the batch definition or
// the remote table.
func (a *Auditor) columnExists(db, table, column string, remote *model.TableMeta) bool {
	if a.inBatch(db, table) {
		return a.batchColumnExists(db, table, column)
	}
	if remote != nil {
		return remote.Column(column) != nil
	}
	// Unknown table state, assume present.
	return true
}

func (a *Auditor) auditInsert(stmt *ast.InsertStmt, node *model.CacheNode) {
	db, table := node.DB, node.Table
	remote := a.checkTableExists(db, table, node)

	if len(stmt.Columns) == 0 {
		a.report(node, vars.CheckInsertColumn,
			"INSERT/REPLACE should specify an explicit column list.")
	}

	if len(stmt.Columns) > 0 {
		expected := len(stmt.Columns)
		for _, row := range stmt.Lists {
			if len(row) != expected {
				a.report(node, vars.CheckInsertValuesMatch,
					"INSERT column count %d does not match value count %d.",
					expected, len(row))
				break
			}
		}

		seen := make(map[string]bool, expected)
		for _, col := range stmt.Columns {
			lower := strings.ToLower(col.Name.O)
			if seen[lower] {
				a.report(node, vars.CheckInsertDuplicateColumn,
					"Duplicate column '%s' in INSERT column list.", col.Name.O)
			}
			seen[lower] = true
		}

		for _, col := range stmt.Columns {
			if !a.columnExists(db, table, col.Name.O, remote) {
				a.report(node, vars.CheckColumnExists,
					"Column '%s' does not exist in '%s.%s'.", col.Name.O, db, table)
			}
		}
	}

	if sel, ok := stmt.Select.(*ast.SelectStmt); ok && sel.Where == nil {
		a.report(node, vars.CheckDMLWhere,
			"INSERT ... SELECT without a WHERE clause on the SELECT.")
	}

	node.AffectedRows = int64(len(stmt.Lists))
}

// checkJoinedTables verifies the non-target tables of a multi-table
// DML against the current database context.
func (a *Auditor) checkJoinedTables(stmt ast.StmtNode, db, target string, node *model.CacheNode) {
	for _, t := range parser.ExtractTableNames(stmt) {
		if !strings.EqualFold(t, target) {
			a.checkTableExists(db, t, node)
		}
	}
}

func (a *Auditor) auditUpdate(stmt *ast.UpdateStmt, node *model.CacheNode) {
	db, table := node.DB, node.Table
	remote := a.checkTableExists(db, table, node)
	a.checkJoinedTables(stmt, db, table, node)

	if stmt.Where == nil {
		a.report(node, vars.CheckDMLWhere, "UPDATE without a WHERE clause is not allowed.")
	}
	if stmt.Limit != nil {
		a.report(node, vars.CheckDMLLimit, "UPDATE with LIMIT is not recommended.")
	}
	if stmt.Order != nil {
		a.report(node, vars.CheckOrderbyInDML, "UPDATE with ORDER BY is not recommended.")
	}

	a.checkInClause(stmt.Where, node)

	rows := a.estimateRows(db, remote, node.SQL)
	a.checkMaxRows(db, table, "UPDATE", rows, node)

	for _, assign := range stmt.List {
		name := assign.Column.Name.O
		if !a.columnExists(db, table, name, remote) {
			a.report(node, vars.CheckColumnExists,
				"Column '%s' does not exist in '%s.%s'.", name, db, table)
		}
	}
}

func (a *Auditor) auditDelete(stmt *ast.DeleteStmt, node *model.CacheNode) {
	db, table := node.DB, node.Table
	remote := a.checkTableExists(db, table, node)
	a.checkJoinedTables(stmt, db, table, node)

	a.report(node, vars.CheckDelete, "DELETE statement is restricted by audit policy.")

	if stmt.Where == nil {
		a.report(node, vars.CheckDMLWhere, "DELETE without a WHERE clause is not allowed.")
	}
	if stmt.Limit != nil {
		a.report(node, vars.CheckDMLLimit, "DELETE with LIMIT is not recommended.")
	}
	if stmt.Order != nil {
		a.report(node, vars.CheckOrderbyInDML, "DELETE with ORDER BY is not recommended.")
	}

	a.checkInClause(stmt.Where, node)

	rows := a.estimateRows(db, remote, node.SQL)
	a.checkMaxRows(db, table, "DELETE", rows, node)
}

func (a *Auditor) auditSelect(stmt *ast.SelectStmt, node *model.CacheNode) {
	if stmt.Fields != nil {
		for _, field := range stmt.Fields.Fields {
			if field.WildCard != nil {
				a.report(node, vars.CheckSelectStar,
					"SELECT * is not recommended; specify columns.")
				break
			}
		}
	}

	if stmt.OrderBy != nil {
		for _, item := range stmt.OrderBy.Items {
			if fn, ok := item.Expr.(*ast.FuncCallExpr); ok && fn.FnName.L == "rand" {
				a.report(node, vars.CheckOrderbyRand,
					"ORDER BY RAND() is not recommended; causes full table scan.")
				break
			}
		}
	}

	a.checkInClause(stmt.Where, node)
}
