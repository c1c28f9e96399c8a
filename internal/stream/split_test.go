package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplit(t *testing.T) {
	tests := []struct {
		name   string
		script string
		want   []string
	}{
		{
			name:   "two statements",
			script: "USE db1; SELECT 1;",
			want:   []string{"USE db1", "SELECT 1"},
		},
		{
			name:   "semicolon inside single quotes",
			script: "INSERT INTO t VALUES ('a;b'); SELECT 1;",
			want:   []string{"INSERT INTO t VALUES ('a;b')", "SELECT 1"},
		},
		{
			name:   "semicolon inside double quotes",
			script: `UPDATE t SET c = "x;y" WHERE id = 1;`,
			want:   []string{`UPDATE t SET c = "x;y" WHERE id = 1`},
		},
		{
			name:   "escaped quote does not end string",
			script: `INSERT INTO t VALUES ('it\'s;fine');`,
			want:   []string{`INSERT INTO t VALUES ('it\'s;fine')`},
		},
		{
			name:   "semicolon inside backticks",
			script: "SELECT `weird;name` FROM t;",
			want:   []string{"SELECT `weird;name` FROM t"},
		},
		{
			name:   "line comment swallows terminator",
			script: "SELECT 1 -- trailing; not a split\n FROM dual;",
			want:   []string{"SELECT 1 -- trailing; not a split\n FROM dual"},
		},
		{
			name:   "hash comment swallows terminator",
			script: "SELECT 1 # no; split\n;SELECT 2;",
			want:   []string{"SELECT 1 # no; split", "SELECT 2"},
		},
		{
			name:   "block comment swallows terminator",
			script: "SELECT /* a;b */ 1; SELECT 2;",
			want:   []string{"SELECT /* a;b */ 1", "SELECT 2"},
		},
		{
			name:   "unterminated tail kept",
			script: "SELECT 1; SELECT 2",
			want:   []string{"SELECT 1", "SELECT 2"},
		},
		{
			name:   "empty segments dropped",
			script: ";;  ;SELECT 1;",
			want:   []string{"SELECT 1"},
		},
		{
			name:   "empty input",
			script: "   ",
			want:   nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Split(tt.script))
		})
	}
}
