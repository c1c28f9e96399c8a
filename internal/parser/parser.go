package parser

import (
	"fmt"

	"github.com/pingcap/tidb/parser"
	"github.com/pingcap/tidb/parser/ast"
	_ "github.com/pingcap/tidb/parser/test_driver"
)

// SQLParser wraps the TiDB parser. Not safe for concurrent use; each
// session owns one instance.
type SQLParser struct {
	p *parser.Parser
}

func NewSQLParser() *SQLParser {
	return &SQLParser{
		p: parser.New(),
	}
}

// Parse converts a single SQL statement into an AST.
func (sp *SQLParser) Parse(sql string) (ast.StmtNode, error) {
	stmtNodes, _, err := sp.p.Parse(sql, "", "")
	if err != nil {
		return nil, err
	}
	if len(stmtNodes) == 0 {
		return nil, fmt.Errorf("no valid SQL found")
	}
	return stmtNodes[0], nil
}

// ParseScript parses a multi-statement script in one go.
func (sp *SQLParser) ParseScript(sql string) ([]ast.StmtNode, error) {
	stmts, _, err := sp.p.Parse(sql, "", "")
	return stmts, err
}
