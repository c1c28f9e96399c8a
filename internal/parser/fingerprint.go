package parser

import (
	"crypto/sha1"
	"encoding/hex"

	"github.com/pingcap/tidb/parser"
)

// Fingerprint hashes the structure of a statement: literals are
// normalized away first, so two statements that differ only in values
// share a fingerprint. Returns 40 lowercase hex characters.
func Fingerprint(sql string) string {
	normalized := parser.Normalize(sql)
	if normalized == "" {
		normalized = sql
	}
	sum := sha1.Sum([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
