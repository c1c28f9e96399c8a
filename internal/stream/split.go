// Package stream turns raw client input into individual statements and
// recognizes the magic comment markers that open and close a session.
package stream

import "strings"

// Split cuts a script into semicolon-terminated statements. Terminator
// characters inside single/double quotes, backtick identifiers, line
// comments ("-- " and "#") and block comments never split. An
// unterminated tail is emitted as a final statement; whether it parses
// is the parser's problem, not the splitter's.
func Split(script string) []string {
	var stmts []string
	var b strings.Builder

	const (
		stNormal = iota
		stSingle // '...'
		stDouble // "..."
		stBacktick
		stLineComment
		stBlockComment
	)

	state := stNormal
	n := len(script)
	for i := 0; i < n; i++ {
		c := script[i]
		switch state {
		case stNormal:
			switch {
			case c == '\'':
				state = stSingle
			case c == '"':
				state = stDouble
			case c == '`':
				state = stBacktick
			case c == '#':
				state = stLineComment
			case c == '-' && i+2 < n && script[i+1] == '-' && isSpace(script[i+2]):
				state = stLineComment
			case c == '/' && i+1 < n && script[i+1] == '*':
				state = stBlockComment
				b.WriteByte(c)
				b.WriteByte(script[i+1])
				i++
				continue
			case c == ';':
				if s := strings.TrimSpace(b.String()); s != "" {
					stmts = append(stmts, s)
				}
				b.Reset()
				continue
			}
		case stSingle:
			if c == '\\' && i+1 < n {
				b.WriteByte(c)
				i++
				b.WriteByte(script[i])
				continue
			}
			if c == '\'' {
				state = stNormal
			}
		case stDouble:
			if c == '\\' && i+1 < n {
				b.WriteByte(c)
				i++
				b.WriteByte(script[i])
				continue
			}
			if c == '"' {
				state = stNormal
			}
		case stBacktick:
			if c == '`' {
				state = stNormal
			}
		case stLineComment:
			if c == '\n' {
				state = stNormal
			}
		case stBlockComment:
			if c == '*' && i+1 < n && script[i+1] == '/' {
				b.WriteByte(c)
				i++
				b.WriteByte(script[i])
				state = stNormal
				continue
			}
		}
		b.WriteByte(c)
	}

	if s := strings.TrimSpace(b.String()); s != "" {
		stmts = append(stmts, s)
	}
	return stmts
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\r' || c == '\n'
}
