package parser

import (
	"github.com/pingcap/tidb/parser/ast"
)

// SQLTypeEntry is one row of the supported-types catalog, served by
// "inception get sqltypes".
type SQLTypeEntry struct {
	Name        string
	Description string
	Audited     bool
}

// TypeCatalog lists all supported base sql_type values in display
// order. Audited marks types the rule engine actively checks; the
// rest are classified and passed through.
var TypeCatalog = []SQLTypeEntry{
	{"CREATE_TABLE", "Create a new table", true},
	{"ALTER_TABLE", "Alter table structure", true},
	{"DROP_TABLE", "Drop a table", true},
	{"RENAME_TABLE", "Rename a table", false},
	{"TRUNCATE", "Truncate a table", true},
	{"CREATE_INDEX", "Create an index", false},
	{"DROP_INDEX", "Drop an index", false},
	{"CREATE_DATABASE", "Create a new database", true},
	{"DROP_DATABASE", "Drop a database", true},
	{"ALTER_DATABASE", "Alter database attributes", false},
	{"USE_DATABASE", "Switch current database (USE)", true},
	{"INSERT", "Insert rows", true},
	{"INSERT_SELECT", "Insert rows from SELECT", true},
	{"REPLACE", "Replace rows", true},
	{"REPLACE_SELECT", "Replace rows from SELECT", true},
	{"UPDATE", "Update rows", true},
	{"DELETE", "Delete rows", true},
	{"SELECT", "Select query", true},
	{"SET", "Set session/global variable", false},
	{"CREATE_VIEW", "Create a view", false},
	{"DROP_VIEW", "Drop a view", false},
	{"CREATE_USER", "Create a user account", false},
	{"DROP_USER", "Drop a user account", false},
	{"GRANT", "Grant privileges", false},
	{"REVOKE", "Revoke privileges", false},
	{"LOCK_TABLES", "Lock tables", false},
	{"UNLOCK_TABLES", "Unlock tables", false},
}

// AlterSubTypeEntry is one ALTER TABLE sub-operation in the catalog.
type AlterSubTypeEntry struct {
	Name        string
	Description string
	Audited     bool
}

// AlterSubTypeCatalog lists every recognizable ALTER sub-type.
var AlterSubTypeCatalog = []AlterSubTypeEntry{
	{"ADD_COLUMN", "Add new column(s)", true},
	{"DROP_COLUMN", "Drop column(s)", true},
	{"MODIFY_COLUMN", "Modify/change column definition", true},
	{"CHANGE_DEFAULT", "Change column default value", false},
	{"COLUMN_ORDER", "Reorder columns (FIRST/AFTER)", false},
	{"ADD_INDEX", "Add new index", true},
	{"DROP_INDEX", "Drop index", true},
	{"RENAME_INDEX", "Rename index", false},
	{"INDEX_VISIBILITY", "Change index visibility", false},
	{"RENAME", "Rename table", true},
	{"ORDER", "ORDER BY clause", false},
	{"OPTIONS", "Change table options (ENGINE, COMMENT, etc.)", true},
	{"KEYS_ONOFF", "Enable/disable keys", false},
	{"FORCE", "Force table rebuild", false},
	{"ADD_PARTITION", "Add partition", false},
	{"DROP_PARTITION", "Drop partition", false},
	{"COALESCE_PARTITION", "Coalesce partition", false},
	{"REORGANIZE_PARTITION", "Reorganize partition", false},
	{"EXCHANGE_PARTITION", "Exchange partition", false},
	{"TRUNCATE_PARTITION", "Truncate partition", false},
	{"REMOVE_PARTITIONING", "Remove partitioning", false},
	{"DISCARD_TABLESPACE", "Discard tablespace", false},
	{"IMPORT_TABLESPACE", "Import tablespace", false},
}

// Classify assigns the base sql_type string for a parsed statement.
// Unparsable statements never reach this point; the session records
// them as UNKNOWN directly.
func Classify(node ast.StmtNode) string {
	switch stmt := node.(type) {
	case *ast.CreateTableStmt:
		return "CREATE_TABLE"
	case *ast.AlterTableStmt:
		return "ALTER_TABLE"
	case *ast.DropTableStmt:
		if stmt.IsView {
			return "DROP_VIEW"
		}
		return "DROP_TABLE"
	case *ast.RenameTableStmt:
		return "RENAME_TABLE"
	case *ast.TruncateTableStmt:
		return "TRUNCATE"
	case *ast.CreateIndexStmt:
		return "CREATE_INDEX"
	case *ast.DropIndexStmt:
		return "DROP_INDEX"
	case *ast.CreateDatabaseStmt:
		return "CREATE_DATABASE"
	case *ast.DropDatabaseStmt:
		return "DROP_DATABASE"
	case *ast.AlterDatabaseStmt:
		return "ALTER_DATABASE"
	case *ast.UseStmt:
		return "USE_DATABASE"
	case *ast.InsertStmt:
		hasSelect := stmt.Select != nil
		if stmt.IsReplace {
			if hasSelect {
				return "REPLACE_SELECT"
			}
			return "REPLACE"
		}
		if hasSelect {
			return "INSERT_SELECT"
		}
		return "INSERT"
	case *ast.UpdateStmt:
		return "UPDATE"
	case *ast.DeleteStmt:
		return "DELETE"
	case *ast.SelectStmt, *ast.SetOprStmt:
		return "SELECT"
	case *ast.SetStmt:
		return "SET"
	case *ast.CreateViewStmt:
		return "CREATE_VIEW"
	case *ast.CreateUserStmt:
		return "CREATE_USER"
	case *ast.DropUserStmt:
		return "DROP_USER"
	case *ast.GrantStmt:
		return "GRANT"
	case *ast.RevokeStmt:
		return "REVOKE"
	case *ast.LockTablesStmt:
		return "LOCK_TABLES"
	case *ast.UnlockTablesStmt:
		return "UNLOCK_TABLES"
	}
	return "OTHER"
}
