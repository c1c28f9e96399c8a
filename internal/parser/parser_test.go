package parser

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSQLParser_Parse(t *testing.T) {
	p := NewSQLParser()

	tests := []struct {
		name    string
		sql     string
		wantErr bool
	}{
		{
			name:    "Valid SELECT",
			sql:     "SELECT * FROM users",
			wantErr: false,
		},
		{
			name:    "Valid INSERT",
			sql:     "INSERT INTO users (name) VALUES ('test')",
			wantErr: false,
		},
		{
			name:    "Invalid SQL",
			sql:     "SELECT * FROM",
			wantErr: true,
		},
		{
			name:    "Empty SQL",
			sql:     "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stmt, err := p.Parse(tt.sql)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, stmt)
		})
	}
}

func TestClassify(t *testing.T) {
	p := NewSQLParser()

	tests := []struct {
		sql  string
		want string
	}{
		{"CREATE TABLE t (id INT)", "CREATE_TABLE"},
		{"ALTER TABLE t ADD COLUMN c INT", "ALTER_TABLE"},
		{"DROP TABLE t", "DROP_TABLE"},
		{"RENAME TABLE t TO t2", "RENAME_TABLE"},
		{"TRUNCATE TABLE t", "TRUNCATE"},
		{"CREATE INDEX idx_a ON t (a)", "CREATE_INDEX"},
		{"DROP INDEX idx_a ON t", "DROP_INDEX"},
		{"CREATE DATABASE d", "CREATE_DATABASE"},
		{"DROP DATABASE d", "DROP_DATABASE"},
		{"USE d", "USE_DATABASE"},
		{"INSERT INTO t (a) VALUES (1)", "INSERT"},
		{"INSERT INTO t (a) SELECT a FROM s", "INSERT_SELECT"},
		{"REPLACE INTO t (a) VALUES (1)", "REPLACE"},
		{"REPLACE INTO t (a) SELECT a FROM s", "REPLACE_SELECT"},
		{"UPDATE t SET a = 1 WHERE id = 1", "UPDATE"},
		{"DELETE FROM t WHERE id = 1", "DELETE"},
		{"SELECT 1", "SELECT"},
		{"SELECT a FROM t UNION SELECT a FROM s", "SELECT"},
		{"SET @@global.sort_buffer_size = 1", "SET"},
		{"CREATE VIEW v AS SELECT 1", "CREATE_VIEW"},
		{"DROP VIEW v", "DROP_VIEW"},
		{"LOCK TABLES t READ", "LOCK_TABLES"},
		{"UNLOCK TABLES", "UNLOCK_TABLES"},
	}

	for _, tt := range tests {
		t.Run(tt.want+"/"+tt.sql, func(t *testing.T) {
			stmt, err := p.Parse(tt.sql)
			require.NoError(t, err)
			assert.Equal(t, tt.want, Classify(stmt))
		})
	}
}

func TestTypeCatalogShape(t *testing.T) {
	seen := map[string]bool{}
	for _, e := range TypeCatalog {
		assert.NotEmpty(t, e.Description, e.Name)
		// UPDATE appears once even though multi-table UPDATE maps to it too.
		assert.False(t, seen[e.Name], "duplicate catalog entry %s", e.Name)
		seen[e.Name] = true
	}
	assert.True(t, seen["CREATE_TABLE"])
	assert.True(t, seen["ALTER_TABLE"])
}

func TestFingerprintLiteralInsensitive(t *testing.T) {
	a := Fingerprint("INSERT INTO t (a, b) VALUES (1, 'x')")
	b := Fingerprint("INSERT INTO t (a, b) VALUES (99, 'zzz')")
	c := Fingerprint("INSERT INTO t (a) VALUES (1)")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{40}$`), a)
}

func TestTargetTable(t *testing.T) {
	p := NewSQLParser()

	tests := []struct {
		sql       string
		currentDB string
		wantDB    string
		wantTable string
	}{
		{"CREATE TABLE t (id INT)", "d1", "d1", "t"},
		{"CREATE TABLE d2.t (id INT)", "d1", "d2", "t"},
		{"ALTER TABLE t ADD COLUMN c INT", "d1", "d1", "t"},
		{"INSERT INTO t (a) VALUES (1)", "d1", "d1", "t"},
		{"UPDATE d2.t SET a = 1 WHERE id = 1", "d1", "d2", "t"},
		{"DELETE FROM t WHERE id = 1", "", "", "t"},
		{"SELECT 1", "d1", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.sql, func(t *testing.T) {
			stmt, err := p.Parse(tt.sql)
			require.NoError(t, err)
			db, table := TargetTable(stmt, tt.currentDB)
			assert.Equal(t, tt.wantDB, db)
			assert.Equal(t, tt.wantTable, table)
		})
	}
}
