package session

import (
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sql-gate/internal/model"
	"sql-gate/internal/parser"
)

// splitGroup accumulates consecutive statements bound for the same
// table before rendering one SPLIT result row.
type splitGroup struct {
	db    string
	key   string // lowercased "db.table"
	ddl   bool
	flag  int
	stmts []string
}

func (g *splitGroup) render() string {
	var b strings.Builder
	if g.db != "" {
		b.WriteString("USE " + g.db + ";\n")
	}
	for _, stmt := range g.stmts {
		b.WriteString(stmt)
		b.WriteString(";")
		b.WriteString("\n")
	}
	return b.String()
}

// split groups the pre-scanned batch for piecewise execution. Only
// consecutive DML statements against the same table merge; every DDL
// statement gets its own group. USE and SET never produce a group: USE
// switches the db context, SET rides along with the group it precedes
// or follows.
func (s *Session) split() []model.SplitGroup {
	var groups []*splitGroup
	var cur *splitGroup
	var pending []string
	db := ""

	open := func(key string, ddl bool, flag int) *splitGroup {
		g := &splitGroup{db: db, key: key, ddl: ddl, flag: flag}
		g.stmts = append(g.stmts, pending...)
		pending = nil
		groups = append(groups, g)
		return g
	}

	for i, stmt := range s.stmts {
		node := s.nodes[i]

		switch n := stmt.(type) {
		case *ast.UseStmt:
			db = n.DBName
			cur = nil
			continue
		case *ast.SetStmt:
			if cur != nil {
				cur.stmts = append(cur.stmts, node.SQL)
			} else {
				pending = append(pending, node.SQL)
			}
			continue
		}

		key := ""
		if stmt != nil {
			tdb, table := parser.TargetTable(stmt, db)
			key = strings.ToLower(tdb + "." + table)
		}
		ddl := isDDLType(node.SQLType)
		flag := 0
		if strings.HasPrefix(node.SQLType, "ALTER") || strings.HasPrefix(node.SQLType, "DROP") {
			flag = 1
		}

		if cur != nil && !ddl && !cur.ddl && cur.key == key {
			cur.stmts = append(cur.stmts, node.SQL)
			continue
		}
		cur = open(key, ddl, flag)
		cur.stmts = append(cur.stmts, node.SQL)
		if ddl {
			// A DDL group never absorbs what follows.
			cur = nil
		}
	}

	out := make([]model.SplitGroup, len(groups))
	for i, g := range groups {
		out[i] = model.SplitGroup{ID: i + 1, SQL: g.render(), DDLFlag: g.flag}
	}
	return out
}
