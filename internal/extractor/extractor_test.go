package extractor

import (
	"reflect"
	"testing"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected []string
	}{
		{
			name:     "double quoted",
			content:  `db.Exec("SELECT * FROM users")`,
			expected: []string{"SELECT * FROM users"},
		},
		{
			name:     "single quoted",
			content:  `cur.execute('INSERT INTO logs VALUES (1)')`,
			expected: []string{"INSERT INTO logs VALUES (1)"},
		},
		{
			name:     "backtick quoted",
			content:  "q := `UPDATE users SET name='test'`",
			expected: []string{"UPDATE users SET name='test'"},
		},
		{
			name:     "no sql",
			content:  `fmt.Println("Hello world")`,
			expected: nil,
		},
		{
			name:     "mixed quotes on one line",
			content:  `db.Exec("DELETE FROM users"); log.Info('SELECT * FROM logs')`,
			expected: []string{"DELETE FROM users", "SELECT * FROM logs"},
		},
		{
			name:     "keyword inside a word is not sql",
			content:  `x := "preselected option"`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			segments := Extract("test.go", []byte(tt.content))

			var got []string
			for _, seg := range segments {
				got = append(got, seg.SQL)
			}
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("Extract() got %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestExtractLineNumbers(t *testing.T) {
	content := "package main\n\nvar q = \"SELECT id FROM t1\"\nvar r = \"DROP TABLE t2\"\n"
	segments := Extract("queries.go", []byte(content))
	if len(segments) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segments))
	}
	if segments[0].Line != 3 || segments[1].Line != 4 {
		t.Errorf("lines = %d, %d; want 3, 4", segments[0].Line, segments[1].Line)
	}
	if segments[0].Path != "queries.go" {
		t.Errorf("path = %q", segments[0].Path)
	}
}
