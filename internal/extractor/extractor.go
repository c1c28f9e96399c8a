// Package extractor pulls SQL statements out of application source
// files so the offline check command can audit queries embedded in
// code, not just standalone .sql scripts.
package extractor

import (
	"bufio"
	"bytes"
	"regexp"
)

// Segment is one SQL statement found in a file.
type Segment struct {
	SQL  string
	Path string
	Line int
}

// Statement-looking string literals. RE2 has no backreferences, so one
// pattern per quote style, non-greedy up to the first closing quote.
var (
	doubleQuoteSQL = regexp.MustCompile(`"(?i)(?:SELECT|INSERT|REPLACE|UPDATE|DELETE|CREATE|ALTER|DROP|TRUNCATE)\b.*?"`)
	singleQuoteSQL = regexp.MustCompile(`'(?i)(?:SELECT|INSERT|REPLACE|UPDATE|DELETE|CREATE|ALTER|DROP|TRUNCATE)\b.*?'`)
	backTickSQL    = regexp.MustCompile("`(?i)(?:SELECT|INSERT|REPLACE|UPDATE|DELETE|CREATE|ALTER|DROP|TRUNCATE)\\b.*?`")
)

// Extract scans source content line by line for SQL string literals.
// Multi-line literals are not reassembled; the parser flags whatever
// fragment we caught, which is still a useful signal.
func Extract(path string, content []byte) []Segment {
	var segments []Segment

	scanner := bufio.NewScanner(bytes.NewReader(content))
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		for _, re := range []*regexp.Regexp{doubleQuoteSQL, singleQuoteSQL, backTickSQL} {
			for _, match := range re.FindAllString(line, -1) {
				if len(match) < 2 {
					continue
				}
				segments = append(segments, Segment{
					SQL:  match[1 : len(match)-1],
					Path: path,
					Line: lineNo,
				})
			}
		}
	}
	return segments
}
