package model

import (
	"fmt"
	"strings"
)

// Mode selects what a magic session does with its statement batch.
type Mode int

const (
	ModeCheck Mode = iota
	ModeExecute
	ModeSplit
	ModeQueryTree
)

func (m Mode) String() string {
	switch m {
	case ModeCheck:
		return "CHECK"
	case ModeExecute:
		return "EXECUTE"
	case ModeSplit:
		return "SPLIT"
	case ModeQueryTree:
		return "QUERY_TREE"
	}
	return "UNKNOWN"
}

// Severity is the level of a triggered rule, and also the configured
// level of a rule variable (OFF disables the rule entirely).
type Severity int

const (
	SeverityOff     Severity = 0
	SeverityWarning Severity = 1
	SeverityError   Severity = 2
)

func (s Severity) String() string {
	switch s {
	case SeverityOff:
		return "OFF"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// ParseSeverity accepts both numeric (0/1/2) and symbolic
// (off/warning/error) forms, case-insensitive.
func ParseSeverity(v string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "0", "off":
		return SeverityOff, nil
	case "1", "warning":
		return SeverityWarning, nil
	case "2", "error":
		return SeverityError, nil
	}
	return SeverityOff, fmt.Errorf("invalid rule level %q, want 0/1/2 or OFF/WARNING/ERROR", v)
}

// Stage is the processing state of one statement in a batch.
type Stage int

const (
	StageNone Stage = iota
	StageChecked
	StageExecuted
	StageRerun // SET/USE replayed on the remote, not a mutation
	StageSkipped
)

func (s Stage) String() string {
	switch s {
	case StageChecked:
		return "CHECKED"
	case StageExecuted:
		return "EXECUTED"
	case StageRerun:
		return "RERUN"
	case StageSkipped:
		return "SKIPPED"
	}
	return "NONE"
}

// CacheNode is the per-statement record a session accumulates: audit
// outcome first, execution outcome later. One node becomes one row of
// the 15-column result set.
type CacheNode struct {
	ID           int
	SQL          string
	SQLType      string
	SubTypes     []string
	Stage        Stage
	StageStatus  string
	ErrLevel     Severity
	messages     []string
	AffectedRows int64
	Sequence     string
	BackupDB     string
	ExecuteTime  string
	SQLSha1      string
	DDLAlgorithm string

	// Resolved statement context.
	DB    string
	Table string
}

// Append records one triggered rule message, raising the node's error
// level if the new severity is higher. OFF-level messages are dropped.
func (n *CacheNode) Append(level Severity, msg string) {
	if level == SeverityOff {
		return
	}
	n.messages = append(n.messages, msg)
	if level > n.ErrLevel {
		n.ErrLevel = level
	}
}

// ErrMessage joins all triggered messages, or returns the literal
// "None" when the statement is clean. Never returns an empty string.
func (n *CacheNode) ErrMessage() string {
	if len(n.messages) == 0 {
		return "None"
	}
	return strings.Join(n.messages, "\n")
}

// Messages returns the raw triggered messages in evaluation order.
func (n *CacheNode) Messages() []string {
	return n.messages
}

// TypeString renders sql_type with ALTER sub-type suffixes, e.g.
// "ALTER_TABLE.ADD_COLUMN,ADD_INDEX".
func (n *CacheNode) TypeString() string {
	if len(n.SubTypes) == 0 {
		return n.SQLType
	}
	return n.SQLType + "." + strings.Join(n.SubTypes, ",")
}

// DBType identifies the remote backend flavor.
type DBType int

const (
	DBTypeUnknown DBType = iota
	DBTypeMySQL
	DBTypeTiDB
)

func (t DBType) String() string {
	switch t {
	case DBTypeMySQL:
		return "MySQL"
	case DBTypeTiDB:
		return "TiDB"
	}
	return "Unknown"
}

// ServerProfile is the detected identity of the remote backend.
type ServerProfile struct {
	Type  DBType
	Major int
	Minor int
	Raw   string
}

// AtLeast reports whether the profile version is >= major.minor.
func (p ServerProfile) AtLeast(major, minor int) bool {
	if p.Major != major {
		return p.Major > major
	}
	return p.Minor >= minor
}

// VersionString renders "major.minor", or "" for an unknown profile.
func (p ServerProfile) VersionString() string {
	if p.Type == DBTypeUnknown {
		return ""
	}
	return fmt.Sprintf("%d.%d", p.Major, p.Minor)
}

// ColumnMeta describes one column of a remote (or batch-created) table.
type ColumnMeta struct {
	Name          string
	DataType      string // lowercase base type, e.g. "varchar"
	FullType      string // e.g. "varchar(64) unsigned"
	CharLength    int64  // declared character length, 0 when n/a
	Precision     int64  // numeric precision for decimal types
	Scale         int64  // numeric scale for decimal types
	Nullable      bool
	Unsigned      bool
	AutoIncrement bool
	HasDefault    bool
	Default       string
	Comment       string
	Charset       string
}

// IndexPart is one column of an index, with an optional prefix length.
type IndexPart struct {
	Column    string
	PrefixLen int64 // 0 means full column
}

// IndexMeta describes one index of a table.
type IndexMeta struct {
	Name    string
	Unique  bool
	Primary bool
	Parts   []IndexPart
}

// Columns lists the column names of the index parts in order.
func (i *IndexMeta) Columns() []string {
	cols := make([]string, len(i.Parts))
	for k, p := range i.Parts {
		cols[k] = p.Column
	}
	return cols
}

// TableMeta is the schema snapshot of one table, fetched from the
// remote or synthesized for tables created earlier in the same batch.
type TableMeta struct {
	DB      string
	Name    string
	Engine  string
	Charset string
	Comment string
	Rows    int64 // row-count estimate from the remote, 0 for batch tables
	Columns []*ColumnMeta
	Indexes []*IndexMeta
}

// Column looks a column up case-insensitively, nil when absent.
func (t *TableMeta) Column(name string) *ColumnMeta {
	for _, c := range t.Columns {
		if strings.EqualFold(c.Name, name) {
			return c
		}
	}
	return nil
}

// Index looks an index up case-insensitively, nil when absent.
func (t *TableMeta) Index(name string) *IndexMeta {
	for _, i := range t.Indexes {
		if strings.EqualFold(i.Name, name) {
			return i
		}
	}
	return nil
}

// HostPort is a remote endpoint, used for replica delay probes.
type HostPort struct {
	Host string
	Port int
}

func (h HostPort) String() string {
	return fmt.Sprintf("%s:%d", h.Host, h.Port)
}

// SessionOptions carries everything parsed out of a magic-start marker.
type SessionOptions struct {
	Host           string
	Port           int
	User           string
	Password       string
	Mode           Mode
	Force          bool
	Backup         bool
	IgnoreWarnings bool
	SleepMs        uint64
	SlaveHosts     []HostPort
}

// SplitGroup is one output row of SPLIT mode.
type SplitGroup struct {
	ID      int
	SQL     string
	DDLFlag int
}

// TreeNode is one output row of QUERY_TREE mode.
type TreeNode struct {
	ID   int
	SQL  string
	JSON string
}
