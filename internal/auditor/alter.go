package auditor

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/mysql"

	"sql-gate/internal/model"
	"sql-gate/internal/vars"
)

func (a *Auditor) auditAlterTable(stmt *ast.AlterTableStmt, node *model.CacheNode) {
	db, table := node.DB, node.Table
	inBatch := a.inBatch(db, table)

	var remote *model.TableMeta
	if !inBatch {
		if tm, ok := a.remoteTable(db, table); ok {
			remote = tm
			if remote == nil {
				a.fail(node, "Table '%s.%s' does not exist on remote server.", db, table)
			} else if remote.Rows > 0 {
				node.AffectedRows = remote.Rows
			}
		}
	}

	// Column list of the whole statement, for index key length math.
	var localCols []*ast.ColumnDef
	for _, spec := range stmt.Specs {
		localCols = append(localCols, spec.NewColumns...)
	}

	for _, spec := range stmt.Specs {
		switch spec.Tp {
		case ast.AlterTableAddColumns:
			for _, col := range spec.NewColumns {
				a.checkColumn(col, node)
				name := col.Name.Name.O
				if inBatch {
					if a.batchColumnExists(db, table, name) {
						a.fail(node, "Column '%s' already exists in '%s.%s'.", name, db, table)
					} else {
						a.batchTables[tableKey(db, table)][strings.ToLower(name)] = true
					}
				} else if remote != nil && remote.Column(name) != nil {
					a.fail(node, "Column '%s' already exists in '%s.%s' on remote server.",
						name, db, table)
				}
			}

		case ast.AlterTableDropColumn:
			name := spec.OldColumnName.Name.O
			a.warn(node, "Dropping column '%s' is a high-risk operation.", name)
			if inBatch {
				if !a.batchColumnExists(db, table, name) {
					a.fail(node, "Column '%s' does not exist in '%s.%s'.", name, db, table)
				} else {
					delete(a.batchTables[tableKey(db, table)], strings.ToLower(name))
				}
			} else if remote != nil && remote.Column(name) == nil {
				a.fail(node, "Column '%s' does not exist in '%s.%s' on remote server.",
					name, db, table)
			}

		case ast.AlterTableModifyColumn, ast.AlterTableChangeColumn:
			oldName := ""
			if spec.Tp == ast.AlterTableChangeColumn && spec.OldColumnName != nil {
				oldName = spec.OldColumnName.Name.O
			}
			for _, col := range spec.NewColumns {
				a.checkColumn(col, node)
				lookup := col.Name.Name.O
				if oldName != "" {
					lookup = oldName
				}
				if inBatch {
					if !a.batchColumnExists(db, table, lookup) {
						a.fail(node, "Column '%s' does not exist in '%s.%s'.", lookup, db, table)
					}
					// Batch tables carry no old type info, so the
					// narrowing checks only run against the remote.
				} else if remote != nil {
					old := remote.Column(lookup)
					if old == nil {
						a.fail(node, "Column '%s' does not exist in '%s.%s' on remote server.",
							lookup, db, table)
					} else {
						a.checkTypeChange(old, col, node)
					}
				}
			}

		case ast.AlterTableAddConstraint:
			if spec.Constraint != nil {
				a.checkIndex(spec.Constraint, localCols, remote, node)
			}

		case ast.AlterTableDropIndex:
			if !inBatch && remote != nil && remote.Index(spec.Name) == nil {
				a.fail(node, "Index '%s' does not exist in '%s.%s' on remote server.",
					spec.Name, db, table)
			}

		case ast.AlterTableRenameTable:
			a.warn(node, "Renaming table '%s.%s' is a high-risk operation.", db, table)

		case ast.AlterTableOption:
			for _, opt := range spec.Options {
				if opt.Tp == ast.TableOptionEngine && !strings.EqualFold(opt.StrValue, "innodb") {
					a.report(node, vars.CheckEngineInnodb,
						"Changing engine to '%s' is not allowed; must use InnoDB.", opt.StrValue)
				}
			}
		}
	}

	if db != "" && table != "" {
		key := tableKey(db, table)
		if a.altered[key] {
			a.report(node, vars.CheckMergeAlterTable,
				"Table '%s.%s' has been altered before in this session; "+
					"consider merging into a single ALTER TABLE statement.", db, table)
		}
		a.altered[key] = true
	}

	if a.profile.Type == model.DBTypeTiDB {
		a.checkTiDBMultiOp(stmt, node)
	}

	node.DDLAlgorithm = PredictAlgorithm(stmt, a.profile)
}

// checkTypeChange compares a MODIFY/CHANGE target against the remote
// column definition, flagging narrowing conversions.
func (a *Auditor) checkTypeChange(old *model.ColumnMeta, col *ast.ColumnDef, node *model.CacheNode) {
	name := col.Name.Name.O
	newTp := col.Tp.GetType()

	oldRank := intTypeRankFromName(old.DataType)
	newRank := intTypeRank(newTp)
	if oldRank > 0 && newRank > 0 && newRank < oldRank {
		a.report(node, vars.CheckLossyTypeChange,
			"Column '%s' type narrowing: %s -> %s, may truncate data.",
			name, old.DataType, typeDisplayName(newTp))
		if a.profile.Type == model.DBTypeTiDB {
			a.report(node, vars.TiDBLossyChange,
				"TiDB does not support lossy type change: '%s' %s -> %s.",
				name, old.DataType, typeDisplayName(newTp))
		}
	}

	if old.CharLength > 0 && isStringType(newTp) {
		newLen := int64(col.Tp.GetFlen())
		if newLen > 0 && newLen < old.CharLength {
			a.report(node, vars.CheckVarcharShrink,
				"Column '%s' length reduced: %d -> %d, may truncate data.",
				name, old.CharLength, newLen)
			if a.profile.Type == model.DBTypeTiDB && newTp == mysql.TypeVarchar {
				a.report(node, vars.TiDBVarcharShrink,
					"TiDB does not support shrinking VARCHAR length: '%s' %d -> %d.",
					name, old.CharLength, newLen)
			}
		}
	}

	if strings.EqualFold(old.DataType, "decimal") && newTp == mysql.TypeNewDecimal &&
		(old.Precision >= 0 || old.Scale >= 0) {
		a.report(node, vars.CheckDecimalChange,
			"Column '%s' DECIMAL precision/scale changed.", name)
		if a.profile.Type == model.DBTypeTiDB {
			a.report(node, vars.TiDBDecimalChange,
				"TiDB does not support changing DECIMAL precision/scale for column '%s'.", name)
		}
	}
}

// checkTiDBMultiOp rejects ALTER TABLE statements TiDB cannot run in
// one step: several operation categories or several added columns.
func (a *Auditor) checkTiDBMultiOp(stmt *ast.AlterTableStmt, node *model.CacheNode) {
	seen := make(map[string]bool)
	addColCount := 0
	for _, spec := range stmt.Specs {
		switch spec.Tp {
		case ast.AlterTableAddColumns:
			seen["add_column"] = true
			addColCount += len(spec.NewColumns)
		case ast.AlterTableDropColumn:
			seen["drop_column"] = true
		case ast.AlterTableModifyColumn, ast.AlterTableChangeColumn:
			seen["change_column"] = true
		case ast.AlterTableAddConstraint:
			seen["add_index"] = true
		case ast.AlterTableDropIndex, ast.AlterTableDropPrimaryKey:
			seen["drop_index"] = true
		case ast.AlterTableRenameTable:
			seen["rename"] = true
		case ast.AlterTableOption:
			seen["options"] = true
		}
	}
	if len(seen) > 1 || addColCount > 1 {
		a.report(node, vars.TiDBMergeAlter,
			"TiDB does not support multiple operations in a single ALTER TABLE; "+
				"split into separate statements.")
	}
}
