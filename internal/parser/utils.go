package parser

import (
	"github.com/pingcap/tidb/parser/ast"
)

// ExtractTableNames extracts all table names mentioned in a SQL
// statement. Supports Select, Update, Delete, and Insert statements.
func ExtractTableNames(node ast.StmtNode) []string {
	var tables []string

	switch stmt := node.(type) {
	case *ast.SelectStmt:
		if stmt.From != nil {
			extractTableRefs(stmt.From.TableRefs, &tables)
		}
	case *ast.UpdateStmt:
		if stmt.TableRefs != nil && stmt.TableRefs.TableRefs != nil {
			extractTableRefs(stmt.TableRefs.TableRefs, &tables)
		}
	case *ast.DeleteStmt:
		if stmt.TableRefs != nil && stmt.TableRefs.TableRefs != nil {
			extractTableRefs(stmt.TableRefs.TableRefs, &tables)
		}
	case *ast.InsertStmt:
		if stmt.Table != nil {
			extractTableRefs(stmt.Table.TableRefs, &tables)
		}
	}

	return tables
}

func extractTableRefs(join *ast.Join, tables *[]string) {
	if join == nil {
		return
	}

	if join.Left != nil {
		extractTableSource(join.Left, tables)
	}
	if join.Right != nil {
		extractTableSource(join.Right, tables)
	}
}

func extractTableSource(r ast.ResultSetNode, tables *[]string) {
	if ts, ok := r.(*ast.TableSource); ok {
		if tn, ok := ts.Source.(*ast.TableName); ok {
			*tables = append(*tables, tn.Name.O)
		}
	} else if join, ok := r.(*ast.Join); ok {
		extractTableRefs(join, tables)
	}
}

// TargetTable resolves the statement's primary target to (db, table),
// falling back to currentDB when the statement does not qualify the
// name. Returns empty strings for statements without a table target.
func TargetTable(node ast.StmtNode, currentDB string) (string, string) {
	var tn *ast.TableName
	switch stmt := node.(type) {
	case *ast.CreateTableStmt:
		tn = stmt.Table
	case *ast.AlterTableStmt:
		tn = stmt.Table
	case *ast.DropTableStmt:
		if len(stmt.Tables) > 0 {
			tn = stmt.Tables[0]
		}
	case *ast.TruncateTableStmt:
		tn = stmt.Table
	case *ast.CreateIndexStmt:
		tn = stmt.Table
	case *ast.DropIndexStmt:
		tn = stmt.Table
	case *ast.InsertStmt:
		if stmt.Table != nil {
			tn = firstTableName(stmt.Table.TableRefs)
		}
	case *ast.UpdateStmt:
		if stmt.TableRefs != nil {
			tn = firstTableName(stmt.TableRefs.TableRefs)
		}
	case *ast.DeleteStmt:
		if stmt.TableRefs != nil {
			tn = firstTableName(stmt.TableRefs.TableRefs)
		}
	case *ast.SelectStmt:
		if stmt.From != nil {
			tn = firstTableName(stmt.From.TableRefs)
		}
	}
	if tn == nil {
		return "", ""
	}
	db := tn.Schema.O
	if db == "" {
		db = currentDB
	}
	return db, tn.Name.O
}

func firstTableName(join *ast.Join) *ast.TableName {
	if join == nil {
		return nil
	}
	if ts, ok := join.Left.(*ast.TableSource); ok {
		if tn, ok := ts.Source.(*ast.TableName); ok {
			return tn
		}
	}
	if inner, ok := join.Left.(*ast.Join); ok {
		if tn := firstTableName(inner); tn != nil {
			return tn
		}
	}
	if ts, ok := join.Right.(*ast.TableSource); ok {
		if tn, ok := ts.Source.(*ast.TableName); ok {
			return tn
		}
	}
	return nil
}
