package auditor

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/mysql"

	"sql-gate/internal/model"
	"sql-gate/internal/vars"
)

func isUniqueConstraint(tp ast.ConstraintType) bool {
	return tp == ast.ConstraintUniq || tp == ast.ConstraintUniqKey || tp == ast.ConstraintUniqIndex
}

func isPlainIndex(tp ast.ConstraintType) bool {
	return tp == ast.ConstraintKey || tp == ast.ConstraintIndex
}

// fixedTypeBytes is the key size of a non-string column type.
func fixedTypeBytes(tp byte) int {
	switch tp {
	case mysql.TypeTiny:
		return 1
	case mysql.TypeShort:
		return 2
	case mysql.TypeInt24, mysql.TypeDate, mysql.TypeNewDate, mysql.TypeDuration:
		return 3
	case mysql.TypeLong, mysql.TypeFloat, mysql.TypeTimestamp:
		return 4
	}
	return 8
}

func findColumnDef(cols []*ast.ColumnDef, name string) *ast.ColumnDef {
	for _, c := range cols {
		if strings.EqualFold(c.Name.Name.O, name) {
			return c
		}
	}
	return nil
}

// checkIndex runs the shared index rules. localCols is the column list
// of the CREATE TABLE or ALTER TABLE statement; remote supplies column
// types for ALTER ... ADD INDEX on existing columns and may be nil.
func (a *Auditor) checkIndex(cons *ast.Constraint, localCols []*ast.ColumnDef,
	remote *model.TableMeta, node *model.CacheNode) {

	name := indexName(cons.Name)

	if max := a.snap.Uint(vars.MaxIndexParts); max > 0 && uint64(len(cons.Keys)) > max {
		a.warn(node, "Index '%s' has %d columns, exceeds max %d.", name, len(cons.Keys), max)
	}

	if cons.Name != "" {
		if isUniqueConstraint(cons.Tp) && !strings.HasPrefix(strings.ToLower(cons.Name), "uniq_") {
			a.report(node, vars.CheckIndexPrefix,
				"Unique index '%s' should have 'uniq_' prefix.", cons.Name)
		}
		if isPlainIndex(cons.Tp) && !strings.HasPrefix(strings.ToLower(cons.Name), "idx_") {
			a.report(node, vars.CheckIndexPrefix,
				"Index '%s' should have 'idx_' prefix.", cons.Name)
		}
	}

	if cons.Tp == ast.ConstraintForeignKey {
		a.report(node, vars.CheckForeignKey, "Foreign keys are not allowed.")
		if a.profile.Type == model.DBTypeTiDB {
			a.report(node, vars.TiDBForeignKey, "TiDB does not support FOREIGN KEY constraints.")
		}
		return
	}

	// BLOB/TEXT index parts need an explicit prefix length, and key
	// byte lengths are capped per column and in total.
	var totalBytes uint64
	for _, part := range cons.Keys {
		if part.Column == nil {
			continue
		}
		colName := part.Column.Name.O
		prefixLen := 0
		if part.Length > 0 {
			prefixLen = part.Length
		}

		var colBytes uint64
		if def := findColumnDef(localCols, colName); def != nil {
			tp := def.Tp.GetType()
			if isBlobType(tp) && prefixLen == 0 {
				a.fail(node, "Index '%s' on BLOB/TEXT column '%s' must specify a prefix length.",
					name, colName)
			}
			charWidth := uint64(mbMaxLen(def.Tp.GetCharset()))
			switch {
			case prefixLen > 0:
				colBytes = uint64(prefixLen) * charWidth
			case isStringType(tp) && def.Tp.GetFlen() > 0:
				colBytes = uint64(def.Tp.GetFlen()) * charWidth
			default:
				colBytes = uint64(fixedTypeBytes(tp))
			}
		} else if remote != nil {
			cm := remote.Column(colName)
			if cm == nil {
				continue
			}
			if isBlobTypeName(cm.DataType) && prefixLen == 0 {
				a.fail(node, "Index '%s' on BLOB/TEXT column '%s' must specify a prefix length.",
					name, colName)
			}
			// Worst case utf8mb4 for remote columns.
			if prefixLen > 0 {
				colBytes = uint64(prefixLen) * 4
			} else if cm.CharLength > 0 {
				colBytes = uint64(cm.CharLength) * 4
			}
		}

		if max := a.snap.Uint(vars.IndexColumnMaxBytes); max > 0 && colBytes > max {
			a.report(node, vars.CheckIndexLength,
				"Index '%s' column '%s' key length %d bytes exceeds max %d.",
				name, colName, colBytes, max)
		}
		totalBytes += colBytes
	}

	if max := a.snap.Uint(vars.IndexTotalMaxBytes); max > 0 && totalBytes > max {
		a.report(node, vars.CheckIndexLength,
			"Index '%s' total key length %d bytes exceeds max %d.", name, totalBytes, max)
	}
}

// checkDuplicateIndexes flags indexes whose column list is a prefix of
// another index on the same table.
func (a *Auditor) checkDuplicateIndexes(constraints []*ast.Constraint, node *model.CacheNode) {
	keyed := make([]*ast.Constraint, 0, len(constraints))
	for _, c := range constraints {
		if c.Tp == ast.ConstraintPrimaryKey || c.Tp == ast.ConstraintForeignKey {
			continue
		}
		keyed = append(keyed, c)
	}

	for i := 0; i < len(keyed); i++ {
		for j := i + 1; j < len(keyed); j++ {
			a1, b := keyed[i], keyed[j]
			min := len(a1.Keys)
			if len(b.Keys) < min {
				min = len(b.Keys)
			}
			if min == 0 {
				continue
			}
			match := true
			for k := 0; k < min; k++ {
				if a1.Keys[k].Column == nil || b.Keys[k].Column == nil ||
					!strings.EqualFold(a1.Keys[k].Column.Name.O, b.Keys[k].Column.Name.O) {
					match = false
					break
				}
			}
			if !match {
				continue
			}
			shorter, longer := a1, b
			if len(b.Keys) < len(a1.Keys) {
				shorter, longer = b, a1
			}
			a.report(node, vars.CheckDuplicateIndex,
				"Index '%s' is a prefix of '%s' and may be redundant.",
				indexName(shorter.Name), indexName(longer.Name))
		}
	}
}
