package auditor

import (
	"testing"

	"github.com/pingcap/tidb/parser/ast"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-gate/internal/model"
	"sql-gate/internal/parser"
)

func parseAlter(t *testing.T, sql string) *ast.AlterTableStmt {
	t.Helper()
	stmt, err := parser.NewSQLParser().Parse(sql)
	require.NoError(t, err)
	alter, ok := stmt.(*ast.AlterTableStmt)
	require.True(t, ok, "not an ALTER TABLE: %s", sql)
	return alter
}

func TestPredictAlgorithm(t *testing.T) {
	v80 := model.ServerProfile{Type: model.DBTypeMySQL, Major: 8, Minor: 0}
	v57 := model.ServerProfile{Type: model.DBTypeMySQL, Major: 5, Minor: 7}

	tests := []struct {
		sql     string
		profile model.ServerProfile
		want    string
	}{
		{"ALTER TABLE t ADD COLUMN a int", v80, "INSTANT"},
		{"ALTER TABLE t ADD COLUMN a int", v57, "INPLACE"},
		{"ALTER TABLE t ADD COLUMN a int AFTER b", v80, "INPLACE"},
		{"ALTER TABLE t DROP COLUMN a", v80, "INPLACE"},
		{"ALTER TABLE t MODIFY COLUMN a bigint", v80, "COPY"},
		{"ALTER TABLE t CHANGE COLUMN a b int", v80, "COPY"},
		{"ALTER TABLE t ALTER COLUMN a SET DEFAULT 1", v80, "INSTANT"},
		{"ALTER TABLE t ALTER COLUMN a SET DEFAULT 1", v57, "COPY"},
		{"ALTER TABLE t ALTER COLUMN a DROP DEFAULT", v57, "COPY"},
		{"ALTER TABLE t ADD INDEX idx_a (a)", v80, "INPLACE"},
		{"ALTER TABLE t DROP INDEX idx_a", v80, "INPLACE"},
		{"ALTER TABLE t RENAME INDEX idx_a TO idx_b", v80, "INPLACE"},
		{"ALTER TABLE t RENAME TO t2", v80, "INSTANT"},
		{"ALTER TABLE t COMMENT = 'x'", v80, "INSTANT"},
		{"ALTER TABLE t ENGINE = InnoDB", v80, "COPY"},
		{"ALTER TABLE t FORCE", v80, "COPY"},
		{"ALTER TABLE t ORDER BY a", v80, "COPY"},
		// Worst operation wins.
		{"ALTER TABLE t ADD COLUMN a int, MODIFY COLUMN b bigint", v80, "COPY"},
		{"ALTER TABLE t ADD COLUMN a int, ADD INDEX idx_b (b)", v80, "INPLACE"},
	}

	for _, tt := range tests {
		got := PredictAlgorithm(parseAlter(t, tt.sql), tt.profile)
		assert.Equal(t, tt.want, got, "sql: %s", tt.sql)
	}
}
