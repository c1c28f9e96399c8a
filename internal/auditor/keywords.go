package auditor

import "strings"

// MySQL 8.0 reserved words. Non-reserved keywords (STATUS, COMMENT,
// DATE, ...) are legal identifiers and deliberately absent.
var reservedKeywords = map[string]bool{
	"accessible": true, "add": true, "all": true, "alter": true,
	"analyze": true, "and": true, "as": true, "asc": true,
	"asensitive": true, "before": true, "between": true, "bigint": true,
	"binary": true, "blob": true, "both": true, "by": true, "call": true,
	"cascade": true, "case": true, "change": true, "char": true,
	"character": true, "check": true, "collate": true, "column": true,
	"condition": true, "constraint": true, "continue": true,
	"convert": true, "create": true, "cross": true, "cube": true,
	"cume_dist": true, "current_date": true, "current_time": true,
	"current_timestamp": true, "current_user": true, "cursor": true,
	"database": true, "databases": true, "day_hour": true,
	"day_microsecond": true, "day_minute": true, "day_second": true,
	"dec": true, "decimal": true, "declare": true, "default": true,
	"delayed": true, "delete": true, "dense_rank": true, "desc": true,
	"describe": true, "deterministic": true, "distinct": true,
	"distinctrow": true, "div": true, "double": true, "drop": true,
	"dual": true, "each": true, "else": true, "elseif": true,
	"empty": true, "enclosed": true, "escaped": true, "except": true,
	"exists": true, "exit": true, "explain": true, "false": true,
	"fetch": true, "first_value": true, "float": true, "for": true,
	"force": true, "foreign": true, "from": true, "fulltext": true,
	"function": true, "generated": true, "get": true, "grant": true,
	"group": true, "grouping": true, "groups": true, "having": true,
	"high_priority": true, "hour_microsecond": true, "hour_minute": true,
	"hour_second": true, "if": true, "ignore": true, "in": true,
	"index": true, "infile": true, "inner": true, "inout": true,
	"insensitive": true, "insert": true, "int": true, "integer": true,
	"intersect": true, "interval": true, "into": true, "is": true,
	"iterate": true, "join": true, "json_table": true, "key": true,
	"keys": true, "kill": true, "lag": true, "last_value": true,
	"lateral": true, "lead": true, "leading": true, "leave": true,
	"left": true, "like": true, "limit": true, "linear": true,
	"lines": true, "load": true, "localtime": true,
	"localtimestamp": true, "lock": true, "long": true, "longblob": true,
	"longtext": true, "loop": true, "low_priority": true, "match": true,
	"maxvalue": true, "mediumblob": true, "mediumint": true,
	"mediumtext": true, "middleint": true, "minute_microsecond": true,
	"minute_second": true, "mod": true, "modifies": true,
	"natural": true, "not": true, "no_write_to_binlog": true,
	"nth_value": true, "ntile": true, "null": true, "numeric": true,
	"of": true, "on": true, "optimize": true, "optimizer_costs": true,
	"option": true, "optionally": true, "or": true, "order": true,
	"out": true, "outer": true, "outfile": true, "over": true,
	"partition": true, "percent_rank": true, "precision": true,
	"primary": true, "procedure": true, "purge": true, "range": true,
	"rank": true, "read": true, "reads": true, "read_write": true,
	"real": true, "recursive": true, "references": true, "regexp": true,
	"release": true, "rename": true, "repeat": true, "replace": true,
	"require": true, "resignal": true, "restrict": true, "return": true,
	"revoke": true, "right": true, "rlike": true, "row": true,
	"rows": true, "row_number": true, "schema": true, "schemas": true,
	"second_microsecond": true, "select": true, "sensitive": true,
	"separator": true, "set": true, "show": true, "signal": true,
	"smallint": true, "spatial": true, "specific": true, "sql": true,
	"sqlexception": true, "sqlstate": true, "sqlwarning": true,
	"sql_big_result": true, "sql_calc_found_rows": true,
	"sql_small_result": true, "ssl": true, "starting": true,
	"stored": true, "straight_join": true, "system": true, "table": true,
	"terminated": true, "then": true, "tinyblob": true, "tinyint": true,
	"tinytext": true, "to": true, "trailing": true, "trigger": true,
	"true": true, "undo": true, "union": true, "unique": true,
	"unlock": true, "unsigned": true, "update": true, "usage": true,
	"use": true, "using": true, "utc_date": true, "utc_time": true,
	"utc_timestamp": true, "values": true, "varbinary": true,
	"varchar": true, "varcharacter": true, "varying": true,
	"virtual": true, "when": true, "where": true, "while": true,
	"window": true, "with": true, "write": true, "xor": true,
	"year_month": true, "zerofill": true,
}

func isReservedKeyword(name string) bool {
	return reservedKeywords[strings.ToLower(name)]
}
