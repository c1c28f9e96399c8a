package parser

import (
	"testing"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func alterStmt(t *testing.T, sql string) *ast.AlterTableStmt {
	t.Helper()
	stmt, err := NewSQLParser().Parse(sql)
	require.NoError(t, err)
	alter, ok := stmt.(*ast.AlterTableStmt)
	require.True(t, ok, "not an ALTER TABLE: %s", sql)
	return alter
}

func TestAlterSubTypes(t *testing.T) {
	tests := []struct {
		sql  string
		want []string
	}{
		{"ALTER TABLE t ADD COLUMN c INT", []string{"ADD_COLUMN"}},
		{"ALTER TABLE t ADD COLUMN c INT AFTER a", []string{"ADD_COLUMN", "COLUMN_ORDER"}},
		{"ALTER TABLE t DROP COLUMN c", []string{"DROP_COLUMN"}},
		{"ALTER TABLE t MODIFY COLUMN c BIGINT", []string{"MODIFY_COLUMN"}},
		{"ALTER TABLE t CHANGE c c2 BIGINT", []string{"MODIFY_COLUMN"}},
		{"ALTER TABLE t MODIFY COLUMN c BIGINT FIRST", []string{"MODIFY_COLUMN", "COLUMN_ORDER"}},
		{"ALTER TABLE t ALTER COLUMN c SET DEFAULT 5", []string{"CHANGE_DEFAULT"}},
		{"ALTER TABLE t ADD INDEX idx_c (c)", []string{"ADD_INDEX"}},
		{"ALTER TABLE t DROP INDEX idx_c", []string{"DROP_INDEX"}},
		{"ALTER TABLE t RENAME INDEX idx_a TO idx_b", []string{"RENAME_INDEX"}},
		{"ALTER TABLE t RENAME TO t2", []string{"RENAME"}},
		{"ALTER TABLE t ENGINE = InnoDB", []string{"OPTIONS"}},
		{"ALTER TABLE t COMMENT = 'x'", []string{"OPTIONS"}},
		{"ALTER TABLE t FORCE", []string{"FORCE"}},
		{
			"ALTER TABLE t ADD COLUMN c INT, ADD COLUMN d INT, ADD INDEX idx_c (c)",
			[]string{"ADD_COLUMN", "ADD_INDEX"},
		},
		{
			"ALTER TABLE t DROP COLUMN a, MODIFY COLUMN b VARCHAR(10)",
			[]string{"DROP_COLUMN", "MODIFY_COLUMN"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			assert.Equal(t, tt.want, AlterSubTypes(alterStmt(t, tt.sql)))
		})
	}
}

func TestEngineChange(t *testing.T) {
	assert.True(t, EngineChange(alterStmt(t, "ALTER TABLE t ENGINE = MyISAM")))
	assert.False(t, EngineChange(alterStmt(t, "ALTER TABLE t COMMENT = 'x'")))
	assert.False(t, EngineChange(alterStmt(t, "ALTER TABLE t ADD COLUMN c INT")))
}
