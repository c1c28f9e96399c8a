package auditor

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/mysql"

	"sql-gate/internal/model"
	"sql-gate/internal/vars"
)

// requiredColumn is one entry of the inception_must_have_columns
// policy. Every keyword present in the entry becomes a requirement;
// absent keywords are not checked.
type requiredColumn struct {
	name         string
	tp           byte // mysql.TypeUnspecified when no type given
	needUnsigned bool
	needNotNull  bool
	needAutoInc  bool
	needComment  bool
}

func typeByName(name string) byte {
	switch strings.ToLower(name) {
	case "tinyint":
		return mysql.TypeTiny
	case "smallint":
		return mysql.TypeShort
	case "mediumint":
		return mysql.TypeInt24
	case "int", "integer":
		return mysql.TypeLong
	case "bigint":
		return mysql.TypeLonglong
	case "float":
		return mysql.TypeFloat
	case "double":
		return mysql.TypeDouble
	case "decimal":
		return mysql.TypeNewDecimal
	case "char":
		return mysql.TypeString
	case "varchar":
		return mysql.TypeVarchar
	case "tinytext":
		return mysql.TypeTinyBlob
	case "text", "blob":
		return mysql.TypeBlob
	case "mediumtext":
		return mysql.TypeMediumBlob
	case "longtext":
		return mysql.TypeLongBlob
	case "date":
		return mysql.TypeDate
	case "time":
		return mysql.TypeDuration
	case "datetime":
		return mysql.TypeDatetime
	case "timestamp":
		return mysql.TypeTimestamp
	case "json":
		return mysql.TypeJSON
	}
	return mysql.TypeUnspecified
}

func hasKeyword(spec, kw string) bool {
	lower := strings.ToLower(spec)
	kw = strings.ToLower(kw)
	for i := 0; i+len(kw) <= len(lower); i++ {
		if lower[i:i+len(kw)] != kw {
			continue
		}
		if i > 0 && lower[i-1] != ' ' && lower[i-1] != '\t' {
			continue
		}
		end := i + len(kw)
		if end < len(lower) && lower[end] != ' ' && lower[end] != '\t' && lower[end] != ';' {
			continue
		}
		return true
	}
	return false
}

// parseRequiredColumn parses one "name TYPE [UNSIGNED] [NOT NULL]
// [AUTO_INCREMENT] [COMMENT]" entry.
func parseRequiredColumn(spec string) requiredColumn {
	req := requiredColumn{tp: mysql.TypeUnspecified}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return req
	}

	fields := strings.Fields(spec)
	req.name = fields[0]
	if len(fields) > 1 {
		req.tp = typeByName(fields[1])
	}

	req.needUnsigned = hasKeyword(spec, "UNSIGNED")
	req.needNotNull = hasKeyword(spec, "NOT NULL")
	req.needAutoInc = hasKeyword(spec, "AUTO_INCREMENT")
	req.needComment = hasKeyword(spec, "COMMENT")
	return req
}

func typeCompatible(have, want byte) bool {
	return have == want
}

func (req requiredColumn) describe() string {
	var sb strings.Builder
	sb.WriteString(req.name)
	if req.tp != mysql.TypeUnspecified {
		sb.WriteString(" " + typeDisplayName(req.tp))
	}
	if req.needUnsigned {
		sb.WriteString(" UNSIGNED")
	}
	if req.needNotNull {
		sb.WriteString(" NOT NULL")
	}
	if req.needAutoInc {
		sb.WriteString(" AUTO_INCREMENT")
	}
	if req.needComment {
		sb.WriteString(" COMMENT")
	}
	return sb.String()
}

// checkMustHaveColumns verifies the semicolon-separated required
// column policy against a CREATE TABLE column list.
func (a *Auditor) checkMustHaveColumns(spec string, cols []*ast.ColumnDef, node *model.CacheNode) {
	for _, entry := range strings.Split(spec, ";") {
		req := parseRequiredColumn(entry)
		if req.name == "" {
			continue
		}

		var match *ast.ColumnDef
		for _, col := range cols {
			if strings.EqualFold(col.Name.Name.O, req.name) {
				match = col
				break
			}
		}

		if match == nil {
			a.report(node, vars.CheckMustHaveColumns,
				"Required column is missing: %s.", req.describe())
			continue
		}

		info := colInfo(match)
		if req.tp != mysql.TypeUnspecified && !typeCompatible(info.tp, req.tp) {
			a.report(node, vars.CheckMustHaveColumns,
				"Required column '%s' must be %s, but found %s.",
				req.name, typeDisplayName(req.tp), typeDisplayName(info.tp))
		}
		if req.needUnsigned && !info.unsigned {
			a.report(node, vars.CheckMustHaveColumns,
				"Required column '%s' must be UNSIGNED.", req.name)
		}
		if req.needNotNull && info.nullable {
			a.report(node, vars.CheckMustHaveColumns,
				"Required column '%s' must be NOT NULL.", req.name)
		}
		if req.needAutoInc && !info.autoInc {
			a.report(node, vars.CheckMustHaveColumns,
				"Required column '%s' must be AUTO_INCREMENT.", req.name)
		}
		if req.needComment && !info.hasComment {
			a.report(node, vars.CheckMustHaveColumns,
				"Required column '%s' must have a COMMENT.", req.name)
		}
	}
}
