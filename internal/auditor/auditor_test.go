package auditor

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-gate/internal/model"
	"sql-gate/internal/parser"
	"sql-gate/internal/vars"
)

// fakeMeta serves canned schema answers in place of a live remote.
type fakeMeta struct {
	profile   model.ServerProfile
	databases map[string]bool
	tables    map[string]*model.TableMeta
}

func (f *fakeMeta) Profile() model.ServerProfile { return f.profile }

func (f *fakeMeta) DatabaseExists(name string) (bool, error) {
	return f.databases[strings.ToLower(name)], nil
}

func (f *fakeMeta) TableMeta(db, table string) (*model.TableMeta, error) {
	return f.tables[strings.ToLower(db+"."+table)], nil
}

func (f *fakeMeta) ColumnNames(db, table string) ([]string, error) {
	tm, _ := f.TableMeta(db, table)
	if tm == nil {
		return nil, nil
	}
	var names []string
	for _, c := range tm.Columns {
		names = append(names, c.Name)
	}
	return names, nil
}

func mysql80() model.ServerProfile {
	return model.ServerProfile{Type: model.DBTypeMySQL, Major: 8, Minor: 0, Raw: "8.0.32"}
}

func newTestAuditor(t *testing.T, meta model.MetaProvider, profile model.ServerProfile) *Auditor {
	t.Helper()
	return New(Config{
		Snap:      vars.NewStore().Snapshot(),
		Meta:      meta,
		Profile:   profile,
		DefaultDB: "test",
	})
}

func audit(t *testing.T, a *Auditor, sql string) *model.CacheNode {
	t.Helper()
	stmt, err := parser.NewSQLParser().Parse(sql)
	require.NoError(t, err)
	node := &model.CacheNode{ID: 1, SQL: sql, SQLType: parser.Classify(stmt)}
	a.Check(stmt, node)
	return node
}

func TestCreateTableClean(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	node := audit(t, a, `CREATE TABLE orders (
		id bigint unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		user_id bigint unsigned NOT NULL COMMENT 'owner',
		PRIMARY KEY (id),
		KEY idx_user (user_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='orders'`)

	assert.Equal(t, model.SeverityOff, node.ErrLevel)
	assert.Equal(t, "None", node.ErrMessage())
	assert.Equal(t, model.StageChecked, node.Stage)
	assert.Equal(t, "Audit completed", node.StageStatus)
	assert.Len(t, node.SQLSha1, 40)
}

func TestCreateTableStructuralRules(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	node := audit(t, a, `CREATE TABLE t1 (c1 int) ENGINE=MyISAM`)

	msg := node.ErrMessage()
	assert.Equal(t, model.SeverityError, node.ErrLevel)
	assert.Contains(t, msg, "Table must have a PRIMARY KEY.")
	assert.Contains(t, msg, "Table must have a comment.")
	assert.Contains(t, msg, "Table engine must be InnoDB (found 'MyISAM').")
	assert.Contains(t, msg, "Column 'c1' must have a comment.")
	assert.Contains(t, msg, "Column 'c1' is nullable; consider NOT NULL with a default.")
}

func TestCreateTableCharsetWhitelist(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	node := audit(t, a, `CREATE TABLE t1 (
		id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		PRIMARY KEY (id)
	) ENGINE=InnoDB DEFAULT CHARSET=latin1 COMMENT='t'`)

	assert.Contains(t, node.ErrMessage(),
		"Table charset 'latin1' is not in allowed list 'utf8,utf8mb4'.")
	assert.Equal(t, model.SeverityError, node.ErrLevel)
}

func TestCreateTableDuplicateInBatch(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	sql := `CREATE TABLE t1 (
		id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		PRIMARY KEY (id)
	) ENGINE=InnoDB COMMENT='t'`

	first := audit(t, a, sql)
	assert.Equal(t, model.SeverityOff, first.ErrLevel)

	second := audit(t, a, sql)
	assert.Contains(t, second.ErrMessage(),
		"Table 'test.t1' already exists (created earlier in this batch).")
}

func TestCreateTableExistsOnRemote(t *testing.T) {
	meta := &fakeMeta{
		profile: mysql80(),
		tables: map[string]*model.TableMeta{
			"test.t1": {DB: "test", Name: "t1"},
		},
	}
	a := newTestAuditor(t, meta, mysql80())
	node := audit(t, a, `CREATE TABLE t1 (
		id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		PRIMARY KEY (id)
	) ENGINE=InnoDB COMMENT='t'`)

	assert.Contains(t, node.ErrMessage(), "Table 'test.t1' already exists on remote server.")
}

func TestIndexNamingAndDuplicates(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	node := audit(t, a, `CREATE TABLE t1 (
		id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		a int NOT NULL COMMENT 'a',
		b int NOT NULL COMMENT 'b',
		PRIMARY KEY (id),
		KEY k_a (a),
		UNIQUE KEY u_ab (a, b),
		KEY idx_ab (a, b)
	) ENGINE=InnoDB COMMENT='t'`)

	msg := node.ErrMessage()
	assert.Contains(t, msg, "Index 'k_a' should have 'idx_' prefix.")
	assert.Contains(t, msg, "Unique index 'u_ab' should have 'uniq_' prefix.")
	assert.Contains(t, msg, "Index 'k_a' is a prefix of 'u_ab' and may be redundant.")
}

func TestIndexKeyLength(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	node := audit(t, a, `CREATE TABLE t1 (
		id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		name varchar(300) NOT NULL COMMENT 'n',
		PRIMARY KEY (id),
		KEY idx_name (name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COMMENT='t'`)

	// 300 chars * 4 bytes = 1200, over the 767 per-column cap.
	assert.Contains(t, node.ErrMessage(),
		"Index 'idx_name' column 'name' key length 1200 bytes exceeds max 767.")
}

func TestIndexBlobNeedsPrefix(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	node := audit(t, a, `CREATE TABLE t1 (
		id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		body text COMMENT 'b',
		PRIMARY KEY (id),
		KEY idx_body (body)
	) ENGINE=InnoDB COMMENT='t'`)

	assert.Contains(t, node.ErrMessage(),
		"Index 'idx_body' on BLOB/TEXT column 'body' must specify a prefix length.")
	assert.Equal(t, model.SeverityError, node.ErrLevel)
}

func TestAutoIncrementRules(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	node := audit(t, a, `CREATE TABLE t1 (
		id smallint NOT NULL AUTO_INCREMENT COMMENT 'pk',
		PRIMARY KEY (id)
	) ENGINE=InnoDB COMMENT='t' AUTO_INCREMENT=100`)

	msg := node.ErrMessage()
	assert.Contains(t, msg, "Auto-increment column 'id' should be UNSIGNED.")
	assert.Contains(t, msg, "Auto-increment column 'id' should be INT or BIGINT.")
	assert.Contains(t, msg, "AUTO_INCREMENT initial value is 100, should be 1.")
}

func TestAlterAddColumnAgainstBatch(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	audit(t, a, `CREATE TABLE t1 (
		id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		PRIMARY KEY (id)
	) ENGINE=InnoDB COMMENT='t'`)

	dup := audit(t, a, `ALTER TABLE t1 ADD COLUMN id int NOT NULL COMMENT 'x'`)
	assert.Contains(t, dup.ErrMessage(), "Column 'id' already exists in 'test.t1'.")

	ok := audit(t, a, `ALTER TABLE t1 ADD COLUMN age int unsigned NOT NULL DEFAULT 0 COMMENT 'age'`)
	assert.NotContains(t, ok.ErrMessage(), "already exists")

	missing := audit(t, a, `ALTER TABLE t1 DROP COLUMN nope`)
	assert.Contains(t, missing.ErrMessage(), "Column 'nope' does not exist in 'test.t1'.")
}

func TestAlterAgainstRemoteMeta(t *testing.T) {
	meta := &fakeMeta{
		profile: mysql80(),
		tables: map[string]*model.TableMeta{
			"test.users": {
				DB: "test", Name: "users", Rows: 500,
				Columns: []*model.ColumnMeta{
					{Name: "id", DataType: "bigint"},
					{Name: "name", DataType: "varchar", CharLength: 200},
					{Name: "amount", DataType: "decimal", Precision: 10, Scale: 2},
				},
				Indexes: []*model.IndexMeta{
					{Name: "PRIMARY", Primary: true, Parts: []model.IndexPart{{Column: "id"}}},
				},
			},
		},
	}
	a := newTestAuditor(t, meta, mysql80())

	shrink := audit(t, a, `ALTER TABLE users MODIFY COLUMN name varchar(50) NOT NULL COMMENT 'n'`)
	assert.Contains(t, shrink.ErrMessage(),
		"Column 'name' length reduced: 200 -> 50, may truncate data.")
	assert.Equal(t, int64(500), shrink.AffectedRows)
	assert.Equal(t, "COPY", shrink.DDLAlgorithm)

	narrow := audit(t, a, `ALTER TABLE users MODIFY COLUMN id tinyint NOT NULL COMMENT 'i'`)
	assert.Contains(t, narrow.ErrMessage(),
		"Column 'id' type narrowing: bigint -> TINYINT, may truncate data.")

	gone := audit(t, a, `ALTER TABLE missing ADD COLUMN a int NOT NULL COMMENT 'a'`)
	assert.Contains(t, gone.ErrMessage(), "Table 'test.missing' does not exist on remote server.")

	noidx := audit(t, a, `ALTER TABLE users DROP INDEX idx_nope`)
	assert.Contains(t, noidx.ErrMessage(),
		"Index 'idx_nope' does not exist in 'test.users' on remote server.")
}

func TestMergeAlterDetection(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	audit(t, a, `ALTER TABLE t1 ADD COLUMN a int NOT NULL COMMENT 'a'`)
	second := audit(t, a, `ALTER TABLE t1 ADD COLUMN b int NOT NULL COMMENT 'b'`)

	assert.Contains(t, second.ErrMessage(),
		"Table 'test.t1' has been altered before in this session; "+
			"consider merging into a single ALTER TABLE statement.")
}

func TestTiDBMultiOpAlter(t *testing.T) {
	profile := model.ServerProfile{Type: model.DBTypeTiDB, Major: 6, Minor: 5}
	a := newTestAuditor(t, nil, profile)
	node := audit(t, a, `ALTER TABLE t1 ADD COLUMN a int NOT NULL COMMENT 'a', DROP COLUMN b`)

	assert.Contains(t, node.ErrMessage(),
		"TiDB does not support multiple operations in a single ALTER TABLE")
	assert.Equal(t, model.SeverityError, node.ErrLevel)
}

func TestMySQL56RejectsJSON(t *testing.T) {
	profile := model.ServerProfile{Type: model.DBTypeMySQL, Major: 5, Minor: 6}
	a := newTestAuditor(t, nil, profile)
	node := audit(t, a, `CREATE TABLE t1 (
		id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk',
		payload json COMMENT 'p',
		PRIMARY KEY (id)
	) ENGINE=InnoDB COMMENT='t'`)

	assert.Contains(t, node.ErrMessage(),
		"Column 'payload': JSON type is not supported in MySQL 5.6.")
	assert.Equal(t, model.SeverityError, node.ErrLevel)
}

func TestUpdateDeleteRules(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())

	up := audit(t, a, `UPDATE t1 SET a = 1`)
	assert.Contains(t, up.ErrMessage(), "UPDATE without a WHERE clause is not allowed.")
	assert.Equal(t, model.SeverityError, up.ErrLevel)

	del := audit(t, a, `DELETE FROM t1`)
	assert.Contains(t, del.ErrMessage(), "DELETE without a WHERE clause is not allowed.")

	ordered := audit(t, a, `UPDATE t1 SET a = 1 WHERE id > 0 ORDER BY id`)
	assert.Contains(t, ordered.ErrMessage(), "UPDATE with ORDER BY is not recommended.")
	assert.Equal(t, model.SeverityWarning, ordered.ErrLevel)
}

func TestUpdateColumnExistence(t *testing.T) {
	meta := &fakeMeta{
		profile: mysql80(),
		tables: map[string]*model.TableMeta{
			"test.t1": {
				DB: "test", Name: "t1",
				Columns: []*model.ColumnMeta{{Name: "a", DataType: "int"}},
			},
		},
	}
	a := newTestAuditor(t, meta, mysql80())
	node := audit(t, a, `UPDATE t1 SET nope = 1 WHERE a = 2`)

	assert.Contains(t, node.ErrMessage(), "Column 'nope' does not exist in 'test.t1'.")
}

func TestInsertRules(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())

	bare := audit(t, a, `INSERT INTO t1 VALUES (1, 2)`)
	assert.Contains(t, bare.ErrMessage(),
		"INSERT/REPLACE should specify an explicit column list.")

	mismatch := audit(t, a, `INSERT INTO t1 (a, b) VALUES (1)`)
	assert.Contains(t, mismatch.ErrMessage(),
		"INSERT column count 2 does not match value count 1.")

	dup := audit(t, a, `INSERT INTO t1 (a, a) VALUES (1, 2)`)
	assert.Contains(t, dup.ErrMessage(), "Duplicate column 'a' in INSERT column list.")

	noWhere := audit(t, a, `INSERT INTO t1 (a) SELECT a FROM t2`)
	assert.Contains(t, noWhere.ErrMessage(),
		"INSERT ... SELECT without a WHERE clause on the SELECT.")
}

func TestInClauseLimit(t *testing.T) {
	store := vars.NewStore()
	require.NoError(t, store.Set(vars.InCount, "3"))
	a := New(Config{Snap: store.Snapshot(), Profile: mysql80(), DefaultDB: "test"})

	node := audit(t, a, `DELETE FROM t1 WHERE id IN (1, 2, 3, 4, 5)`)
	assert.Contains(t, node.ErrMessage(), "IN clause has 5 items, exceeds max 3.")
}

func TestSelectRules(t *testing.T) {
	store := vars.NewStore()
	require.NoError(t, store.Set(vars.CheckSelectStar, "1"))
	a := New(Config{Snap: store.Snapshot(), Profile: mysql80(), DefaultDB: "test"})

	star := audit(t, a, `SELECT * FROM t1 WHERE id = 1`)
	assert.Contains(t, star.ErrMessage(), "SELECT * is not recommended; specify columns.")

	rand := audit(t, a, `SELECT id FROM t1 ORDER BY RAND()`)
	assert.Contains(t, rand.ErrMessage(),
		"ORDER BY RAND() is not recommended; causes full table scan.")
}

func TestDropAndTruncate(t *testing.T) {
	meta := &fakeMeta{
		profile:   mysql80(),
		databases: map[string]bool{"legacy": true},
		tables: map[string]*model.TableMeta{
			"test.t1": {DB: "test", Name: "t1", Rows: 42},
		},
	}
	a := newTestAuditor(t, meta, mysql80())

	drop := audit(t, a, `DROP TABLE t1`)
	assert.Contains(t, drop.ErrMessage(), "DROP TABLE will permanently remove the table.")

	trunc := audit(t, a, `TRUNCATE TABLE t1`)
	assert.Contains(t, trunc.ErrMessage(), "TRUNCATE TABLE will remove all data from 'test.t1'.")
	assert.Equal(t, int64(42), trunc.AffectedRows)

	dropDB := audit(t, a, `DROP DATABASE legacy`)
	assert.Contains(t, dropDB.ErrMessage(),
		"DROP DATABASE will permanently remove database 'legacy'.")
	assert.Equal(t, model.SeverityError, dropDB.ErrLevel)

	ghost := audit(t, a, `DROP DATABASE ghost`)
	assert.Contains(t, ghost.ErrMessage(), "Database 'ghost' does not exist on remote server.")
}

func TestConnErrorReportedPerStatement(t *testing.T) {
	a := New(Config{
		Snap:      vars.NewStore().Snapshot(),
		Profile:   mysql80(),
		DefaultDB: "test",
		ConnError: "Cannot connect to remote server db1:3306 (connection refused).",
	})

	node := audit(t, a, `SELECT 1`)
	assert.Contains(t, node.ErrMessage(), "Cannot connect to remote server db1:3306")
	assert.Equal(t, model.SeverityError, node.ErrLevel)
}

func TestUseSwitchesDatabase(t *testing.T) {
	a := newTestAuditor(t, nil, mysql80())
	node := audit(t, a, `USE warehouse`)

	assert.Equal(t, "warehouse", a.CurrentDB())
	assert.Equal(t, "warehouse", node.DB)
	assert.Equal(t, "None", node.ErrMessage())
}
