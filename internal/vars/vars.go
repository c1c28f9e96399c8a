// Package vars holds the global "inception_*" variable catalog. Reads
// go through immutable snapshots; SET GLOBAL swaps in a new snapshot
// atomically, so a running session keeps the configuration it started
// with while later sessions see the update.
package vars

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"

	"sql-gate/internal/model"
)

// Rule-level variables.
const (
	CheckPrimaryKey            = "inception_check_primary_key"
	CheckTableComment          = "inception_check_table_comment"
	CheckColumnComment         = "inception_check_column_comment"
	CheckEngineInnodb          = "inception_check_engine_innodb"
	CheckDMLWhere              = "inception_check_dml_where"
	CheckDMLLimit              = "inception_check_dml_limit"
	CheckOrderbyInDML          = "inception_check_orderby_in_dml"
	CheckOrderbyRand           = "inception_check_orderby_rand"
	CheckSelectStar            = "inception_check_select_star"
	CheckInsertColumn          = "inception_check_insert_column"
	CheckInsertValuesMatch     = "inception_check_insert_values_match"
	CheckInsertDuplicateColumn = "inception_check_insert_duplicate_column"
	CheckNullable              = "inception_check_nullable"
	CheckForeignKey            = "inception_check_foreign_key"
	CheckBlobType              = "inception_check_blob_type"
	CheckEnumType              = "inception_check_enum_type"
	CheckSetType               = "inception_check_set_type"
	CheckBitType               = "inception_check_bit_type"
	CheckJSONType              = "inception_check_json_type"
	CheckJSONBlobTextDefault   = "inception_check_json_blob_text_default"
	CheckIndexPrefix           = "inception_check_index_prefix"
	CheckDuplicateIndex        = "inception_check_duplicate_index"
	CheckIndexLength           = "inception_check_index_length"
	CheckCreateSelect          = "inception_check_create_select"
	CheckIdentifier            = "inception_check_identifier"
	CheckIdentifierKeyword     = "inception_check_identifier_keyword"
	CheckNotNullDefault        = "inception_check_not_null_default"
	CheckTimestampDefault      = "inception_check_timestamp_default"
	CheckColumnCharset         = "inception_check_column_charset"
	CheckColumnDefaultValue    = "inception_check_column_default_value"
	CheckAutoincrement         = "inception_check_autoincrement"
	CheckAutoincrementInit     = "inception_check_autoincrement_init_value"
	CheckAutoincrementName     = "inception_check_autoincrement_name"
	CheckPartition             = "inception_check_partition"
	CheckDropDatabase          = "inception_check_drop_database"
	CheckDropTable             = "inception_check_drop_table"
	CheckTruncateTable         = "inception_check_truncate_table"
	CheckDelete                = "inception_check_delete"
	CheckColumnExists          = "inception_check_column_exists"
	CheckMustHaveColumns       = "inception_check_must_have_columns"
	CheckMergeAlterTable       = "inception_check_merge_alter_table"
	CheckVarcharShrink         = "inception_check_varchar_shrink"
	CheckLossyTypeChange       = "inception_check_lossy_type_change"
	CheckDecimalChange         = "inception_check_decimal_change"
	TiDBMergeAlter             = "inception_tidb_merge_alter"
	TiDBVarcharShrink          = "inception_tidb_varchar_shrink"
	TiDBDecimalChange          = "inception_tidb_decimal_change"
	TiDBLossyChange            = "inception_tidb_lossy_change"
	TiDBForeignKey             = "inception_tidb_foreign_key"
)

// Numeric threshold variables.
const (
	MaxIndexes             = "inception_check_max_indexes"
	MaxIndexParts          = "inception_check_max_index_parts"
	MaxUpdateRows          = "inception_max_update_rows"
	MaxCharLength          = "inception_max_char_length"
	MaxPrimaryKeyParts     = "inception_max_primary_key_parts"
	MaxTableNameLength     = "inception_max_table_name_length"
	MaxColumnNameLength    = "inception_max_column_name_length"
	MaxColumns             = "inception_max_columns"
	IndexColumnMaxBytes    = "inception_index_column_max_bytes"
	IndexTotalMaxBytes     = "inception_index_total_max_bytes"
	InCount                = "inception_in_count"
	ExecMaxThreadsRunning  = "inception_exec_max_threads_running"
	ExecMaxReplicationLag  = "inception_exec_max_replication_delay"
)

// Boolean and string variables.
const (
	ExecCheckReadOnly  = "inception_exec_check_read_only"
	SupportCharset     = "inception_support_charset"
	MustHaveColumns    = "inception_must_have_columns"
	AuditLog           = "inception_audit_log"
	User               = "inception_user"
	Password           = "inception_password"
	PasswordEncryptKey = "inception_password_encrypt_key"
)

type kind int

const (
	kindLevel kind = iota
	kindUint
	kindBool
	kindString
)

type value struct {
	kind  kind
	level model.Severity
	u     uint64
	b     bool
	s     string
}

func (v value) display() string {
	switch v.kind {
	case kindLevel:
		return v.level.String()
	case kindUint:
		return strconv.FormatUint(v.u, 10)
	case kindBool:
		if v.b {
			return "ON"
		}
		return "OFF"
	}
	return v.s
}

func lvl(s model.Severity) value { return value{kind: kindLevel, level: s} }
func num(u uint64) value         { return value{kind: kindUint, u: u} }
func boolean(b bool) value       { return value{kind: kindBool, b: b} }
func str(s string) value         { return value{kind: kindString, s: s} }

func defaults() map[string]value {
	return map[string]value{
		CheckPrimaryKey:            lvl(2),
		CheckTableComment:          lvl(2),
		CheckColumnComment:         lvl(2),
		CheckEngineInnodb:          lvl(2),
		CheckDMLWhere:              lvl(2),
		CheckDMLLimit:              lvl(0),
		CheckOrderbyInDML:          lvl(1),
		CheckOrderbyRand:           lvl(1),
		CheckSelectStar:            lvl(0),
		CheckInsertColumn:          lvl(2),
		CheckInsertValuesMatch:     lvl(2),
		CheckInsertDuplicateColumn: lvl(2),
		CheckNullable:              lvl(1),
		CheckForeignKey:            lvl(0),
		CheckBlobType:              lvl(0),
		CheckEnumType:              lvl(0),
		CheckSetType:               lvl(0),
		CheckBitType:               lvl(0),
		CheckJSONType:              lvl(0),
		CheckJSONBlobTextDefault:   lvl(2),
		CheckIndexPrefix:           lvl(1),
		CheckDuplicateIndex:        lvl(1),
		CheckIndexLength:           lvl(1),
		CheckCreateSelect:          lvl(0),
		CheckIdentifier:            lvl(0),
		CheckIdentifierKeyword:     lvl(0),
		CheckNotNullDefault:        lvl(0),
		CheckTimestampDefault:      lvl(1),
		CheckColumnCharset:         lvl(0),
		CheckColumnDefaultValue:    lvl(0),
		CheckAutoincrement:         lvl(1),
		CheckAutoincrementInit:     lvl(1),
		CheckAutoincrementName:     lvl(0),
		CheckPartition:             lvl(1),
		CheckDropDatabase:          lvl(2),
		CheckDropTable:             lvl(1),
		CheckTruncateTable:         lvl(1),
		CheckDelete:                lvl(0),
		CheckColumnExists:          lvl(2),
		CheckMustHaveColumns:       lvl(2),
		CheckMergeAlterTable:       lvl(1),
		CheckVarcharShrink:         lvl(1),
		CheckLossyTypeChange:       lvl(1),
		CheckDecimalChange:         lvl(0),
		TiDBMergeAlter:             lvl(2),
		TiDBVarcharShrink:          lvl(2),
		TiDBDecimalChange:          lvl(2),
		TiDBLossyChange:            lvl(2),
		TiDBForeignKey:             lvl(2),

		MaxIndexes:            num(16),
		MaxIndexParts:         num(5),
		MaxUpdateRows:         num(10000),
		MaxCharLength:         num(64),
		MaxPrimaryKeyParts:    num(5),
		MaxTableNameLength:    num(64),
		MaxColumnNameLength:   num(64),
		MaxColumns:            num(0),
		IndexColumnMaxBytes:   num(767),
		IndexTotalMaxBytes:    num(3072),
		InCount:               num(0),
		ExecMaxThreadsRunning: num(0),
		ExecMaxReplicationLag: num(0),

		ExecCheckReadOnly: boolean(true),

		SupportCharset:     str("utf8,utf8mb4"),
		MustHaveColumns:    str(""),
		AuditLog:           str(""),
		User:               str(""),
		Password:           str(""),
		PasswordEncryptKey: str(""),
	}
}

// Snapshot is an immutable view of the variable catalog. Sessions grab
// one at open time and read it without locks for their whole lifetime.
type Snapshot struct {
	vals map[string]value
}

// Level returns a rule variable's severity, OFF for unknown names.
func (s *Snapshot) Level(name string) model.Severity {
	return s.vals[name].level
}

// Uint returns a numeric threshold, 0 for unknown names.
func (s *Snapshot) Uint(name string) uint64 {
	return s.vals[name].u
}

// Bool returns a boolean variable.
func (s *Snapshot) Bool(name string) bool {
	return s.vals[name].b
}

// Str returns a string variable.
func (s *Snapshot) Str(name string) string {
	return s.vals[name].s
}

// Get returns the display form of a variable.
func (s *Snapshot) Get(name string) (string, bool) {
	v, ok := s.vals[strings.ToLower(name)]
	if !ok {
		return "", false
	}
	return v.display(), true
}

// List returns name/value pairs matching a SQL LIKE pattern ("%" and
// "_" wildcards; empty pattern matches everything), sorted by name.
func (s *Snapshot) List(pattern string) [][2]string {
	var re *regexp.Regexp
	if pattern != "" {
		quoted := regexp.QuoteMeta(strings.ToLower(pattern))
		quoted = strings.ReplaceAll(quoted, "%", ".*")
		quoted = strings.ReplaceAll(quoted, "_", ".")
		re = regexp.MustCompile("^" + quoted + "$")
	}
	var out [][2]string
	for name, v := range s.vals {
		if re != nil && !re.MatchString(name) {
			continue
		}
		out = append(out, [2]string{name, v.display()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// Store is the process-wide mutable holder of the catalog.
type Store struct {
	cur atomic.Pointer[Snapshot]
}

// NewStore starts from the built-in defaults.
func NewStore() *Store {
	st := &Store{}
	st.cur.Store(&Snapshot{vals: defaults()})
	return st
}

// Snapshot returns the current immutable view.
func (st *Store) Snapshot() *Snapshot {
	return st.cur.Load()
}

// Set parses and applies one SET GLOBAL assignment, copy-on-write.
func (st *Store) Set(name, raw string) error {
	name = strings.ToLower(strings.TrimSpace(name))
	raw = strings.Trim(strings.TrimSpace(raw), "'\"")

	for {
		old := st.cur.Load()
		cur, ok := old.vals[name]
		if !ok {
			return fmt.Errorf("Unknown system variable '%s'", name)
		}

		next := cur
		switch cur.kind {
		case kindLevel:
			sev, err := model.ParseSeverity(raw)
			if err != nil {
				return err
			}
			next.level = sev
		case kindUint:
			u, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value %q for variable '%s'", raw, name)
			}
			next.u = u
		case kindBool:
			switch strings.ToLower(raw) {
			case "1", "on", "true":
				next.b = true
			case "0", "off", "false":
				next.b = false
			default:
				return fmt.Errorf("invalid value %q for variable '%s'", raw, name)
			}
		case kindString:
			next.s = raw
		}

		vals := make(map[string]value, len(old.vals))
		for k, v := range old.vals {
			vals[k] = v
		}
		vals[name] = next
		if st.cur.CompareAndSwap(old, &Snapshot{vals: vals}) {
			return nil
		}
	}
}
