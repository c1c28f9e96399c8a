package auditor

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/pingcap/tidb/parser/mysql"

	"sql-gate/internal/model"
	"sql-gate/internal/vars"
)

// colAttrs is the flattened view of a column definition the rules
// care about.
type colAttrs struct {
	name       string
	tp         byte
	flen       int
	unsigned   bool
	nullable   bool
	autoInc    bool
	hasDefault bool
	hasComment bool
	charset    string // explicit column-level charset, "" otherwise
}

func colInfo(col *ast.ColumnDef) colAttrs {
	info := colAttrs{
		name:     col.Name.Name.O,
		tp:       col.Tp.GetType(),
		flen:     col.Tp.GetFlen(),
		unsigned: mysql.HasUnsignedFlag(col.Tp.GetFlag()),
		nullable: true,
		charset:  col.Tp.GetCharset(),
	}
	for _, opt := range col.Options {
		switch opt.Tp {
		case ast.ColumnOptionNotNull, ast.ColumnOptionPrimaryKey:
			info.nullable = false
		case ast.ColumnOptionAutoIncrement:
			info.autoInc = true
		case ast.ColumnOptionDefaultValue, ast.ColumnOptionGenerated:
			info.hasDefault = true
		case ast.ColumnOptionComment:
			info.hasComment = true
		}
	}
	return info
}

func isJSONOrBlob(tp byte) bool {
	return tp == mysql.TypeJSON || isBlobType(tp)
}

func isBlobType(tp byte) bool {
	switch tp {
	case mysql.TypeTinyBlob, mysql.TypeBlob, mysql.TypeMediumBlob, mysql.TypeLongBlob:
		return true
	}
	return false
}

func isBlobTypeName(name string) bool {
	switch strings.ToLower(name) {
	case "tinyblob", "blob", "mediumblob", "longblob",
		"tinytext", "text", "mediumtext", "longtext":
		return true
	}
	return false
}

func isStringType(tp byte) bool {
	return tp == mysql.TypeVarchar || tp == mysql.TypeString || tp == mysql.TypeVarString
}

// intTypeRank maps integer types to a width rank, 1=TINYINT through
// 5=BIGINT; 0 means not an integer type.
func intTypeRank(tp byte) int {
	switch tp {
	case mysql.TypeTiny:
		return 1
	case mysql.TypeShort:
		return 2
	case mysql.TypeInt24:
		return 3
	case mysql.TypeLong:
		return 4
	case mysql.TypeLonglong:
		return 5
	}
	return 0
}

func intTypeRankFromName(name string) int {
	switch strings.ToLower(name) {
	case "tinyint":
		return 1
	case "smallint":
		return 2
	case "mediumint":
		return 3
	case "int":
		return 4
	case "bigint":
		return 5
	}
	return 0
}

func typeDisplayName(tp byte) string {
	switch tp {
	case mysql.TypeTiny:
		return "TINYINT"
	case mysql.TypeShort:
		return "SMALLINT"
	case mysql.TypeInt24:
		return "MEDIUMINT"
	case mysql.TypeLong:
		return "INT"
	case mysql.TypeLonglong:
		return "BIGINT"
	case mysql.TypeFloat:
		return "FLOAT"
	case mysql.TypeDouble:
		return "DOUBLE"
	case mysql.TypeNewDecimal:
		return "DECIMAL"
	case mysql.TypeString:
		return "CHAR"
	case mysql.TypeVarchar, mysql.TypeVarString:
		return "VARCHAR"
	case mysql.TypeTinyBlob:
		return "TINYTEXT"
	case mysql.TypeBlob:
		return "TEXT"
	case mysql.TypeMediumBlob:
		return "MEDIUMTEXT"
	case mysql.TypeLongBlob:
		return "LONGTEXT"
	case mysql.TypeDate, mysql.TypeNewDate:
		return "DATE"
	case mysql.TypeDuration:
		return "TIME"
	case mysql.TypeDatetime:
		return "DATETIME"
	case mysql.TypeTimestamp:
		return "TIMESTAMP"
	case mysql.TypeJSON:
		return "JSON"
	}
	return "UNKNOWN"
}

// mbMaxLen is the worst-case bytes per character for a charset name.
// Unknown charsets assume utf8mb4.
func mbMaxLen(charset string) int {
	switch strings.ToLower(charset) {
	case "latin1", "ascii", "binary":
		return 1
	case "gbk", "ucs2", "gb2312":
		return 2
	case "utf8", "utf8mb3":
		return 3
	}
	return 4
}

// isValidIdentifier enforces the lowercase letter/digit/underscore
// naming convention, first character a letter or underscore.
func isValidIdentifier(name string) bool {
	if name == "" {
		return false
	}
	c := name[0]
	if !(c >= 'a' && c <= 'z') && c != '_' {
		return false
	}
	for i := 1; i < len(name); i++ {
		c := name[i]
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	return true
}

// checkColumn runs the shared column definition rules, used by both
// CREATE TABLE and ALTER TABLE ADD/MODIFY/CHANGE COLUMN.
func (a *Auditor) checkColumn(col *ast.ColumnDef, node *model.CacheNode) {
	info := colInfo(col)

	if max := a.snap.Uint(vars.MaxColumnNameLength); max > 0 && uint64(len(info.name)) > max {
		a.warn(node, "Column '%s' name length %d exceeds max %d.", info.name, len(info.name), max)
	}

	if !isValidIdentifier(info.name) {
		a.report(node, vars.CheckIdentifier,
			"Column '%s' name should be lowercase letters, digits and underscores.", info.name)
	}

	if !info.hasComment {
		a.report(node, vars.CheckColumnComment, "Column '%s' must have a comment.", info.name)
	}

	// JSON/BLOB/TEXT columns commonly allow NULL and cannot carry
	// simple literal defaults, so the nullable and default rules
	// skip them.
	if info.nullable && !isJSONOrBlob(info.tp) {
		a.report(node, vars.CheckNullable,
			"Column '%s' is nullable; consider NOT NULL with a default.", info.name)
	}

	if !info.nullable && !info.autoInc && !info.hasDefault && !isJSONOrBlob(info.tp) {
		a.report(node, vars.CheckNotNullDefault,
			"Column '%s' is NOT NULL but has no DEFAULT value.", info.name)
	}

	if isJSONOrBlob(info.tp) && info.hasDefault {
		a.report(node, vars.CheckJSONBlobTextDefault,
			"Column '%s': explicit DEFAULT on JSON/BLOB/TEXT is not allowed.", info.name)
	}

	if isBlobType(info.tp) {
		a.report(node, vars.CheckBlobType, "Column '%s' uses BLOB/TEXT type.", info.name)
	}

	switch info.tp {
	case mysql.TypeEnum:
		a.report(node, vars.CheckEnumType, "Column '%s' uses ENUM type, not recommended.", info.name)
	case mysql.TypeSet:
		a.report(node, vars.CheckSetType, "Column '%s' uses SET type, not recommended.", info.name)
	case mysql.TypeBit:
		a.report(node, vars.CheckBitType, "Column '%s' uses BIT type, not recommended.", info.name)
	case mysql.TypeJSON:
		if a.profile.Type == model.DBTypeMySQL && a.profile.Major == 5 && a.profile.Minor < 7 {
			a.fail(node, "Column '%s': JSON type is not supported in MySQL %d.%d.",
				info.name, a.profile.Major, a.profile.Minor)
		} else {
			a.report(node, vars.CheckJSONType, "Column '%s' uses JSON type.", info.name)
		}
	}

	if info.tp == mysql.TypeString && info.flen > 0 {
		if max := a.snap.Uint(vars.MaxCharLength); max > 0 && uint64(info.flen) > max {
			a.warn(node, "Column '%s' CHAR(%d) exceeds max %d; consider VARCHAR.",
				info.name, info.flen, max)
		}
	}

	if info.autoInc {
		if !info.unsigned {
			a.report(node, vars.CheckAutoincrement,
				"Auto-increment column '%s' should be UNSIGNED.", info.name)
		}
		if info.tp != mysql.TypeLong && info.tp != mysql.TypeLonglong {
			a.report(node, vars.CheckAutoincrement,
				"Auto-increment column '%s' should be INT or BIGINT.", info.name)
		}
		if !strings.EqualFold(info.name, "id") {
			a.report(node, vars.CheckAutoincrementName,
				"Auto-increment column '%s' should be named 'id'.", info.name)
		}
	}

	if info.tp == mysql.TypeTimestamp && !info.hasDefault {
		a.report(node, vars.CheckTimestampDefault,
			"TIMESTAMP column '%s' must have a DEFAULT value.", info.name)
	}

	if info.charset != "" && !isBlobType(info.tp) {
		a.report(node, vars.CheckColumnCharset,
			"Column '%s' specifies a character set; use table default instead.", info.name)
	}

	if !info.autoInc && !info.hasDefault && !isJSONOrBlob(info.tp) {
		a.report(node, vars.CheckColumnDefaultValue,
			"Column '%s' must have a DEFAULT value.", info.name)
	}

	if isReservedKeyword(info.name) {
		a.report(node, vars.CheckIdentifierKeyword,
			"Column name '%s' is a MySQL reserved keyword.", info.name)
	}
}
