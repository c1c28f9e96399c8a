package parser

import (
	"github.com/pingcap/tidb/parser/ast"
)

// AlterSubTypes derives the sub-type tags of an ALTER TABLE statement,
// one per clause, deduplicated, in clause order. A MODIFY/CHANGE that
// also moves the column (FIRST/AFTER) additionally tags COLUMN_ORDER.
func AlterSubTypes(stmt *ast.AlterTableStmt) []string {
	var subs []string
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		subs = append(subs, s)
	}

	for _, spec := range stmt.Specs {
		switch spec.Tp {
		case ast.AlterTableAddColumns:
			add("ADD_COLUMN")
			if spec.Position != nil && spec.Position.Tp != ast.ColumnPositionNone {
				add("COLUMN_ORDER")
			}
		case ast.AlterTableDropColumn:
			add("DROP_COLUMN")
		case ast.AlterTableModifyColumn, ast.AlterTableChangeColumn:
			add("MODIFY_COLUMN")
			if spec.Position != nil && spec.Position.Tp != ast.ColumnPositionNone {
				add("COLUMN_ORDER")
			}
		case ast.AlterTableAlterColumn:
			add("CHANGE_DEFAULT")
		case ast.AlterTableRenameColumn:
			add("MODIFY_COLUMN")
		case ast.AlterTableAddConstraint:
			add("ADD_INDEX")
		case ast.AlterTableDropIndex, ast.AlterTableDropPrimaryKey, ast.AlterTableDropForeignKey:
			add("DROP_INDEX")
		case ast.AlterTableRenameIndex:
			add("RENAME_INDEX")
		case ast.AlterTableRenameTable:
			add("RENAME")
		case ast.AlterTableOption:
			add("OPTIONS")
		case ast.AlterTableForce:
			add("FORCE")
		case ast.AlterTableOrderByColumns:
			add("ORDER")
		case ast.AlterTableIndexInvisible:
			add("INDEX_VISIBILITY")
		case ast.AlterTableEnableKeys, ast.AlterTableDisableKeys:
			add("KEYS_ONOFF")
		case ast.AlterTableAddPartitions:
			add("ADD_PARTITION")
		case ast.AlterTableDropPartition:
			add("DROP_PARTITION")
		case ast.AlterTableCoalescePartitions:
			add("COALESCE_PARTITION")
		case ast.AlterTableReorganizePartition:
			add("REORGANIZE_PARTITION")
		case ast.AlterTableExchangePartition:
			add("EXCHANGE_PARTITION")
		case ast.AlterTableTruncatePartition:
			add("TRUNCATE_PARTITION")
		case ast.AlterTableRemovePartitioning:
			add("REMOVE_PARTITIONING")
		case ast.AlterTableDiscardTablespace:
			add("DISCARD_TABLESPACE")
		case ast.AlterTableImportTablespace:
			add("IMPORT_TABLESPACE")
		}
	}
	return subs
}

// EngineChange reports whether any OPTIONS clause changes the table
// engine, which forces a COPY rebuild.
func EngineChange(stmt *ast.AlterTableStmt) bool {
	for _, spec := range stmt.Specs {
		if spec.Tp != ast.AlterTableOption {
			continue
		}
		for _, opt := range spec.Options {
			if opt.Tp == ast.TableOptionEngine {
				return true
			}
		}
	}
	return false
}
