package auditor

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sql-gate/internal/model"
	"sql-gate/internal/vars"
)

func (a *Auditor) auditCreateTable(stmt *ast.CreateTableStmt, node *model.CacheNode) {
	db, table := node.DB, node.Table

	if db != "" && table != "" {
		if a.inBatch(db, table) {
			a.fail(node, "Table '%s.%s' already exists (created earlier in this batch).", db, table)
		} else if tm, ok := a.remoteTable(db, table); ok && tm != nil {
			a.fail(node, "Table '%s.%s' already exists on remote server.", db, table)
		}
	}

	hasPK := false
	for _, cons := range stmt.Constraints {
		if cons.Tp == ast.ConstraintPrimaryKey {
			hasPK = true
			break
		}
	}
	if !hasPK {
		// Inline "id INT PRIMARY KEY" counts too.
		for _, col := range stmt.Cols {
			for _, opt := range col.Options {
				if opt.Tp == ast.ColumnOptionPrimaryKey {
					hasPK = true
				}
			}
		}
	}
	if !hasPK {
		a.report(node, vars.CheckPrimaryKey, "Table must have a PRIMARY KEY.")
	}

	var tableComment, tableEngine, tableCharset string
	var autoIncInit uint64
	for _, opt := range stmt.Options {
		switch opt.Tp {
		case ast.TableOptionComment:
			tableComment = opt.StrValue
		case ast.TableOptionEngine:
			tableEngine = opt.StrValue
		case ast.TableOptionCharset:
			tableCharset = opt.StrValue
		case ast.TableOptionAutoIncrement:
			autoIncInit = opt.UintValue
		}
	}

	if tableComment == "" {
		a.report(node, vars.CheckTableComment, "Table must have a comment.")
	}

	if tableEngine != "" && !strings.EqualFold(tableEngine, "innodb") {
		a.report(node, vars.CheckEngineInnodb,
			"Table engine must be InnoDB (found '%s').", tableEngine)
	}

	if tableCharset != "" && !a.charsetAllowed(tableCharset) {
		a.fail(node, "Table charset '%s' is not in allowed list '%s'.",
			tableCharset, a.snap.Str(vars.SupportCharset))
	}

	if stmt.Select != nil {
		a.report(node, vars.CheckCreateSelect, "CREATE TABLE ... SELECT is not allowed.")
	}

	if max := a.snap.Uint(vars.MaxTableNameLength); max > 0 && uint64(len(table)) > max {
		a.warn(node, "Table name '%s' length %d exceeds max %d.", table, len(table), max)
	}
	if !isValidIdentifier(table) {
		a.report(node, vars.CheckIdentifier,
			"Table name '%s' should be lowercase letters, digits and underscores.", table)
	}
	if isReservedKeyword(table) {
		a.report(node, vars.CheckIdentifierKeyword,
			"Table name '%s' is a MySQL reserved keyword.", table)
	}

	if max := a.snap.Uint(vars.MaxColumns); max > 0 && uint64(len(stmt.Cols)) > max {
		a.warn(node, "Table has %d columns, exceeds max %d.", len(stmt.Cols), max)
	}

	for _, col := range stmt.Cols {
		a.checkColumn(col, node)
	}

	if max := a.snap.Uint(vars.MaxIndexes); max > 0 && uint64(len(stmt.Constraints)) > max {
		a.warn(node, "Table has %d indexes, exceeds max %d.", len(stmt.Constraints), max)
	}

	for _, cons := range stmt.Constraints {
		a.checkIndex(cons, stmt.Cols, nil, node)
		if cons.Tp == ast.ConstraintPrimaryKey {
			if max := a.snap.Uint(vars.MaxPrimaryKeyParts); max > 0 && uint64(len(cons.Keys)) > max {
				a.warn(node, "PRIMARY KEY has %d columns, exceeds max %d.", len(cons.Keys), max)
			}
		}
	}

	a.checkDuplicateIndexes(stmt.Constraints, node)

	if stmt.Partition != nil {
		a.report(node, vars.CheckPartition, "Partitioned tables are not recommended.")
	}

	if spec := a.snap.Str(vars.MustHaveColumns); spec != "" {
		a.checkMustHaveColumns(spec, stmt.Cols, node)
	}

	if autoIncInit > 1 {
		a.report(node, vars.CheckAutoincrementInit,
			"AUTO_INCREMENT initial value is %d, should be 1.", autoIncInit)
	}

	// Track the table so later statements in the batch resolve
	// against its definition instead of the remote.
	if db != "" && table != "" {
		cols := make([]string, 0, len(stmt.Cols))
		for _, col := range stmt.Cols {
			cols = append(cols, col.Name.Name.O)
		}
		a.trackTable(db, table, cols)
	}
}

func (a *Auditor) auditCreateDB(stmt *ast.CreateDatabaseStmt, node *model.CacheNode) {
	name := stmt.Name.O
	node.DB = name

	if a.meta != nil && name != "" && !a.batchDBs[strings.ToLower(name)] {
		if exists, err := a.meta.DatabaseExists(name); err == nil && exists {
			a.fail(node, "Database '%s' already exists on remote server.", name)
		}
	}

	if !isValidIdentifier(name) {
		a.report(node, vars.CheckIdentifier,
			"Database name '%s' should be lowercase letters, digits and underscores.", name)
	}

	if max := a.snap.Uint(vars.MaxTableNameLength); max > 0 && uint64(len(name)) > max {
		a.warn(node, "Database name '%s' length %d exceeds max %d.", name, len(name), max)
	}

	for _, opt := range stmt.Options {
		if opt.Tp == ast.DatabaseOptionCharset && !a.charsetAllowed(opt.Value) {
			a.fail(node, "Database charset '%s' is not in allowed list '%s'.",
				opt.Value, a.snap.Str(vars.SupportCharset))
		}
	}

	a.batchDBs[strings.ToLower(name)] = true
}
