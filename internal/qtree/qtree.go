// Package qtree walks a parsed statement and reports which tables and
// columns it touches, grouped by usage context. The output feeds the
// QUERY_TREE session mode as one JSON document per statement.
package qtree

import (
	"encoding/json"
	"strings"

	"github.com/pingcap/tidb/parser/ast"

	"sql-gate/internal/model"
	"sql-gate/internal/parser"
)

// ColumnRef is one column reference inside a statement. Expanded
// carries the real column names behind a `*` when the remote schema
// is available.
type ColumnRef struct {
	DB       string   `json:"db"`
	Table    string   `json:"table"`
	Column   string   `json:"column"`
	Expanded []string `json:"expanded,omitempty"`
}

// TableRef is one table a statement reads or writes.
type TableRef struct {
	DB    string `json:"db"`
	Table string `json:"table"`
	Alias string `json:"alias"`
	Type  string `json:"type"` // "read" or "write"
}

// Tree is the full extraction result for one statement.
type Tree struct {
	SQLType string                 `json:"sql_type"`
	Tables  []TableRef             `json:"tables"`
	Columns map[string][]ColumnRef `json:"columns"`
}

// JSON renders the tree in one line. Map keys marshal sorted, so the
// output is deterministic.
func (t *Tree) JSON() (string, error) {
	b, err := json.Marshal(t)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (t *Tree) bucket(name string) []ColumnRef {
	if _, ok := t.Columns[name]; !ok {
		t.Columns[name] = []ColumnRef{}
	}
	return t.Columns[name]
}

func (t *Tree) add(name string, refs ...ColumnRef) {
	t.Columns[name] = append(t.bucket(name), refs...)
}

// Extractor resolves aliases and expands stars against an optional
// metadata provider.
type Extractor struct {
	meta      model.MetaProvider
	defaultDB string
}

func New(meta model.MetaProvider, defaultDB string) *Extractor {
	return &Extractor{meta: meta, defaultDB: defaultDB}
}

// scopeTable is one FROM-clause entry visible to column resolution.
type scopeTable struct {
	db    string
	table string
	alias string
}

// Extract builds the query tree for one statement.
func (e *Extractor) Extract(stmt ast.StmtNode) *Tree {
	tree := &Tree{Columns: make(map[string][]ColumnRef)}

	switch s := stmt.(type) {
	case *ast.SelectStmt:
		tree.SQLType = "SELECT"
		e.processSelect(s, tree, "")
	case *ast.SetOprStmt:
		tree.SQLType = "SELECT"
		if s.SelectList != nil {
			for _, sel := range s.SelectList.Selects {
				if sub, ok := sel.(*ast.SelectStmt); ok {
					e.processSelect(sub, tree, "")
				}
			}
		}
	case *ast.InsertStmt:
		e.processInsert(s, tree)
	case *ast.UpdateStmt:
		e.processUpdate(s, tree)
	case *ast.DeleteStmt:
		e.processDelete(s, tree)
	default:
		tree.SQLType = parser.Classify(stmt)
		db, table := parser.TargetTable(stmt, e.defaultDB)
		if table != "" {
			tree.Tables = append(tree.Tables, TableRef{DB: db, Table: table, Type: "write"})
		}
	}

	return tree
}

// collectScope flattens a FROM clause into the visible table list.
// Derived tables are skipped; their inner tables surface through the
// subquery walk.
func (e *Extractor) collectScope(rs ast.ResultSetNode, scope *[]scopeTable) {
	switch n := rs.(type) {
	case *ast.Join:
		if n.Left != nil {
			e.collectScope(n.Left, scope)
		}
		if n.Right != nil {
			e.collectScope(n.Right, scope)
		}
	case *ast.TableSource:
		if tn, ok := n.Source.(*ast.TableName); ok {
			db := tn.Schema.O
			if db == "" {
				db = e.defaultDB
			}
			*scope = append(*scope, scopeTable{db: db, table: tn.Name.O, alias: n.AsName.O})
		}
	}
}

// appendTables records the scope on the tree, marking writeTable (when
// set) as the write target. An alias equal to the table name is
// dropped from the output.
func appendTables(tree *Tree, scope []scopeTable, writeTable string) {
	for _, st := range scope {
		alias := st.alias
		if strings.EqualFold(alias, st.table) {
			alias = ""
		}
		typ := "read"
		if writeTable != "" && strings.EqualFold(st.table, writeTable) {
			typ = "write"
		}
		tree.Tables = append(tree.Tables, TableRef{DB: st.db, Table: st.table, Alias: alias, Type: typ})
	}
}

// resolveAlias maps a column qualifier to the real db and table.
func (e *Extractor) resolveAlias(scope []scopeTable, name string) (string, string) {
	for _, st := range scope {
		if st.alias != "" && strings.EqualFold(st.alias, name) {
			return st.db, st.table
		}
	}
	for _, st := range scope {
		if strings.EqualFold(st.table, name) {
			return st.db, st.table
		}
	}
	return e.defaultDB, name
}

// columnVisitor collects column references and subqueries from an
// expression tree.
type columnVisitor struct {
	e     *Extractor
	scope []scopeTable
	refs  []ColumnRef
	subs  []*ast.SelectStmt
}

func (v *columnVisitor) Enter(n ast.Node) (ast.Node, bool) {
	switch expr := n.(type) {
	case *ast.SubqueryExpr:
		if sel, ok := expr.Query.(*ast.SelectStmt); ok {
			v.subs = append(v.subs, sel)
		}
		return n, true
	case *ast.ColumnNameExpr:
		v.refs = append(v.refs, v.e.resolveColumn(v.scope, expr.Name))
		return n, true
	}
	return n, false
}

func (v *columnVisitor) Leave(n ast.Node) (ast.Node, bool) { return n, true }

func (e *Extractor) resolveColumn(scope []scopeTable, name *ast.ColumnName) ColumnRef {
	ref := ColumnRef{Column: name.Name.O}
	switch {
	case name.Table.O != "":
		ref.DB, ref.Table = e.resolveAlias(scope, name.Table.O)
		if name.Schema.O != "" {
			ref.DB = name.Schema.O
		}
	case len(scope) == 1:
		ref.DB, ref.Table = scope[0].db, scope[0].table
	}
	if ref.DB == "" {
		ref.DB = e.defaultDB
	}
	return ref
}

// walk collects an expression's column references into a bucket and
// processes nested subqueries.
func (e *Extractor) walk(expr ast.ExprNode, scope []scopeTable, tree *Tree, bucket string) {
	if expr == nil {
		return
	}
	v := &columnVisitor{e: e, scope: scope}
	expr.Accept(v)
	tree.add(bucket, v.refs...)
	for _, sub := range v.subs {
		e.processSubquery(sub, tree, bucket)
	}
}

// joinConds walks all JOIN ... ON conditions of a FROM clause.
func (e *Extractor) joinConds(rs ast.ResultSetNode, scope []scopeTable, tree *Tree) {
	join, ok := rs.(*ast.Join)
	if !ok {
		return
	}
	if join.Left != nil {
		e.joinConds(join.Left, scope, tree)
	}
	if join.Right != nil {
		e.joinConds(join.Right, scope, tree)
	}
	if join.On != nil {
		e.walk(join.On.Expr, scope, tree, "join")
	}
}

// expandStar resolves `*` or `t.*` against the remote schema.
func (e *Extractor) expandStar(db, table string) []string {
	if e.meta == nil {
		return nil
	}
	cols, err := e.meta.ColumnNames(db, table)
	if err != nil {
		return nil
	}
	return cols
}

// processSelect handles one SELECT block including its FROM scope,
// field list and all filter clauses.
func (e *Extractor) processSelect(sel *ast.SelectStmt, tree *Tree, writeTable string) {
	var scope []scopeTable
	if sel.From != nil {
		e.collectScope(sel.From.TableRefs, &scope)
	}
	appendTables(tree, scope, writeTable)

	tree.bucket("select")
	if sel.Fields != nil {
		for _, field := range sel.Fields.Fields {
			if field.WildCard != nil {
				e.addStar(field.WildCard, scope, tree)
				continue
			}
			e.walk(field.Expr, scope, tree, "select")
		}
	}

	e.walk(sel.Where, scope, tree, "where")

	tree.bucket("join")
	if sel.From != nil {
		e.joinConds(sel.From.TableRefs, scope, tree)
	}

	if sel.GroupBy != nil {
		for _, item := range sel.GroupBy.Items {
			e.walk(item.Expr, scope, tree, "group_by")
		}
	}
	if sel.OrderBy != nil {
		for _, item := range sel.OrderBy.Items {
			e.walk(item.Expr, scope, tree, "order_by")
		}
	}
	if sel.Having != nil {
		e.walk(sel.Having.Expr, scope, tree, "having")
	}
}

func (e *Extractor) addStar(wc *ast.WildCardField, scope []scopeTable, tree *Tree) {
	if wc.Table.O != "" {
		ref := ColumnRef{Column: "*"}
		ref.DB, ref.Table = e.resolveAlias(scope, wc.Table.O)
		if wc.Schema.O != "" {
			ref.DB = wc.Schema.O
		}
		ref.Expanded = e.expandStar(ref.DB, ref.Table)
		tree.add("select", ref)
		return
	}
	for _, st := range scope {
		ref := ColumnRef{DB: st.db, Table: st.table, Column: "*"}
		ref.Expanded = e.expandStar(st.db, st.table)
		tree.add("select", ref)
	}
}

// processSubquery surfaces a nested SELECT's tables and column
// references; its refs land in the bucket of the enclosing clause.
func (e *Extractor) processSubquery(sel *ast.SelectStmt, tree *Tree, bucket string) {
	var scope []scopeTable
	if sel.From != nil {
		e.collectScope(sel.From.TableRefs, &scope)
	}
	appendTables(tree, scope, "")

	if sel.Fields != nil {
		for _, field := range sel.Fields.Fields {
			if field.WildCard == nil {
				e.walk(field.Expr, scope, tree, bucket)
			}
		}
	}
	e.walk(sel.Where, scope, tree, bucket)
	if sel.From != nil {
		e.joinConds(sel.From.TableRefs, scope, tree)
	}
}

func (e *Extractor) processInsert(stmt *ast.InsertStmt, tree *Tree) {
	tree.SQLType = parser.Classify(stmt)

	var target []scopeTable
	if stmt.Table != nil {
		e.collectScope(stmt.Table.TableRefs, &target)
	}
	writeTable := ""
	if len(target) > 0 {
		writeTable = target[0].table
		tree.Tables = append(tree.Tables, TableRef{
			DB: target[0].db, Table: target[0].table, Type: "write",
		})
	}

	tree.bucket("insert_columns")
	for _, col := range stmt.Columns {
		tree.add("insert_columns", e.resolveColumn(target, col))
	}

	if sel, ok := stmt.Select.(*ast.SelectStmt); ok {
		var scope []scopeTable
		if sel.From != nil {
			e.collectScope(sel.From.TableRefs, &scope)
		}
		// The select side reads; skip the write target if it appears.
		for _, st := range scope {
			if strings.EqualFold(st.table, writeTable) {
				continue
			}
			alias := st.alias
			if strings.EqualFold(alias, st.table) {
				alias = ""
			}
			tree.Tables = append(tree.Tables, TableRef{
				DB: st.db, Table: st.table, Alias: alias, Type: "read",
			})
		}

		if sel.Fields != nil {
			for _, field := range sel.Fields.Fields {
				if field.WildCard != nil {
					e.addStar(field.WildCard, scope, tree)
					continue
				}
				e.walk(field.Expr, scope, tree, "select")
			}
		}
		e.walk(sel.Where, scope, tree, "where")
		if sel.From != nil {
			e.joinConds(sel.From.TableRefs, scope, tree)
		}
	}
}

func (e *Extractor) processUpdate(stmt *ast.UpdateStmt, tree *Tree) {
	tree.SQLType = "UPDATE"

	var scope []scopeTable
	if stmt.TableRefs != nil {
		e.collectScope(stmt.TableRefs.TableRefs, &scope)
	}
	writeTable := ""
	if len(scope) > 0 {
		writeTable = scope[0].table
	}
	appendTables(tree, scope, writeTable)

	tree.bucket("set")
	tree.bucket("set_values")
	for _, assign := range stmt.List {
		tree.add("set", e.resolveColumn(scope, assign.Column))
		e.walk(assign.Expr, scope, tree, "set_values")
	}

	e.walk(stmt.Where, scope, tree, "where")

	tree.bucket("join")
	if stmt.TableRefs != nil {
		e.joinConds(stmt.TableRefs.TableRefs, scope, tree)
	}
}

func (e *Extractor) processDelete(stmt *ast.DeleteStmt, tree *Tree) {
	tree.SQLType = "DELETE"

	var scope []scopeTable
	if stmt.TableRefs != nil {
		e.collectScope(stmt.TableRefs.TableRefs, &scope)
	}
	writeTable := ""
	if len(scope) > 0 {
		writeTable = scope[0].table
	}
	appendTables(tree, scope, writeTable)

	e.walk(stmt.Where, scope, tree, "where")

	tree.bucket("join")
	if stmt.TableRefs != nil {
		e.joinConds(stmt.TableRefs.TableRefs, scope, tree)
	}
}
