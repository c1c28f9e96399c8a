package auditlog

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func readLines(t *testing.T, path string) []map[string]interface{} {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []map[string]interface{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	require.NoError(t, sc.Err())
	return out
}

func TestWriteSessionAndStatements(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := New()
	defer l.Close()

	err := l.Write(path, SessionRecord{
		User: "root", ClientHost: "10.0.0.9", Target: "db1:3306",
		TargetUser: "app", Mode: "EXECUTE", Statements: 2, Errors: 1,
		DurationMs: 42,
	}, []StatementRecord{
		{ID: 1, SQL: "INSERT INTO t1 VALUES (1)", Result: "OK", AffectedRows: 1, ExecuteTime: "0.003"},
		{ID: 2, SQL: "INSERT INTO t1 VALUES (1)", Result: "ERROR"},
	})
	require.NoError(t, err)

	lines := readLines(t, path)
	require.Len(t, lines, 3)

	assert.Equal(t, "session", lines[0]["type"])
	assert.Equal(t, "EXECUTE", lines[0]["mode"])
	assert.Equal(t, float64(2), lines[0]["statements"])
	assert.Equal(t, float64(1), lines[0]["errors"])
	assert.NotEmpty(t, lines[0]["time"])

	assert.Equal(t, "statement", lines[1]["type"])
	assert.Equal(t, float64(1), lines[1]["id"])
	assert.Equal(t, "OK", lines[1]["result"])
	assert.Equal(t, "ERROR", lines[2]["result"])
}

func TestEmptyPathDisables(t *testing.T) {
	dir := t.TempDir()
	l := New()
	defer l.Close()

	require.NoError(t, l.Write("", SessionRecord{Mode: "CHECK"}, nil))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLongSQLTruncated(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l := New()
	defer l.Close()

	long := strings.Repeat("x", maxSQLBytes+500)
	require.NoError(t, l.Write(path, SessionRecord{Mode: "CHECK", Statements: 1},
		[]StatementRecord{{ID: 1, SQL: long, Result: "OK"}}))

	lines := readLines(t, path)
	require.Len(t, lines, 2)
	assert.Len(t, lines[1]["sql"], maxSQLBytes)
}

func TestPathChangeReopens(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.log")
	second := filepath.Join(dir, "b.log")
	l := New()
	defer l.Close()

	require.NoError(t, l.Write(first, SessionRecord{Mode: "CHECK"}, nil))
	require.NoError(t, l.Write(second, SessionRecord{Mode: "SPLIT"}, nil))

	assert.Len(t, readLines(t, first), 1)
	got := readLines(t, second)
	require.Len(t, got, 1)
	assert.Equal(t, "SPLIT", got[0]["mode"])
}
