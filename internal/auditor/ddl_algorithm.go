package auditor

import (
	"github.com/pingcap/tidb/parser/ast"

	"sql-gate/internal/model"
	"sql-gate/internal/parser"
)

// Algorithm levels, worst wins: INSTANT < INPLACE < COPY.
const (
	algoInstant = iota
	algoInplace
	algoCopy
)

// PredictAlgorithm estimates the InnoDB algorithm an ALTER TABLE will
// use. MODIFY/CHANGE COLUMN is assumed COPY since a pure attribute
// change cannot always be told apart from a type change statically.
func PredictAlgorithm(stmt *ast.AlterTableStmt, profile model.ServerProfile) string {
	is80 := profile.Type != model.DBTypeMySQL || profile.AtLeast(8, 0)

	worst := algoInstant
	raise := func(level int) {
		if level > worst {
			worst = level
		}
	}

	if parser.EngineChange(stmt) {
		raise(algoCopy)
	}

	for _, spec := range stmt.Specs {
		switch spec.Tp {
		case ast.AlterTableAddColumns:
			if is80 {
				raise(algoInstant)
			} else {
				raise(algoInplace)
			}
		case ast.AlterTableDropColumn:
			raise(algoInplace)
		case ast.AlterTableModifyColumn, ast.AlterTableChangeColumn:
			raise(algoCopy)
		case ast.AlterTableAlterColumn:
			// Default changes are metadata-only from 8.0; 5.7 rebuilds.
			if is80 {
				raise(algoInstant)
			} else {
				raise(algoCopy)
			}
		case ast.AlterTableAddConstraint,
			ast.AlterTableDropIndex,
			ast.AlterTableDropPrimaryKey,
			ast.AlterTableDropForeignKey,
			ast.AlterTableRenameIndex,
			ast.AlterTableIndexInvisible,
			ast.AlterTableEnableKeys,
			ast.AlterTableDisableKeys,
			ast.AlterTableDiscardTablespace,
			ast.AlterTableImportTablespace:
			raise(algoInplace)
		case ast.AlterTableRenameTable, ast.AlterTableRenameColumn:
			raise(algoInstant)
		case ast.AlterTableOrderByColumns, ast.AlterTableForce:
			raise(algoCopy)
		case ast.AlterTableOption:
			raise(algoInstant)
		case ast.AlterTableAddPartitions,
			ast.AlterTableDropPartition,
			ast.AlterTableCoalescePartitions,
			ast.AlterTableReorganizePartition,
			ast.AlterTableExchangePartition,
			ast.AlterTableTruncatePartition,
			ast.AlterTableRemovePartitioning:
			raise(algoCopy)
		}

		// FIRST/AFTER placement forces a row rewrite path on columns
		// that would otherwise be INSTANT.
		if spec.Position != nil && spec.Position.Tp != ast.ColumnPositionNone {
			raise(algoInplace)
		}
	}

	switch worst {
	case algoInstant:
		return "INSTANT"
	case algoInplace:
		return "INPLACE"
	}
	return "COPY"
}
