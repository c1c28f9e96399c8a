package gateway

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sql-gate/internal/auditlog"
	"sql-gate/internal/protocol"
	"sql-gate/internal/secret"
	"sql-gate/internal/session"
	"sql-gate/internal/vars"
)

func newTestGateway() *Gateway {
	return New(vars.NewStore(), session.NewRegistry(), auditlog.New())
}

func conn(id uint64) *protocol.ConnectionSession {
	return &protocol.ConnectionSession{ConnID: id, User: "root", RemoteAddr: "127.0.0.1:55000"}
}

func TestSinglePacketCheckSession(t *testing.T) {
	g := newTestGateway()
	cs := conn(1)

	rs, err := g.HandleQuery(cs, "/*--enable-check=1;inception_magic_start;*/"+
		"USE test;"+
		"CREATE TABLE t1 (id int unsigned NOT NULL AUTO_INCREMENT COMMENT 'pk', PRIMARY KEY (id)) ENGINE=InnoDB COMMENT='t';"+
		"/*inception_magic_commit;*/")
	require.NoError(t, err)
	require.NotNil(t, rs)

	require.Len(t, rs.Columns, 15)
	assert.Equal(t, "id", rs.Columns[0].Name)
	assert.Equal(t, "db_version", rs.Columns[14].Name)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, 1, rs.Rows[0][0])
	assert.Equal(t, "CHECKED", rs.Rows[0][1])
	assert.Equal(t, "None", rs.Rows[1][4])
	assert.Equal(t, "Unknown", rs.Rows[0][13])
}

func TestMultiPacketAccumulation(t *testing.T) {
	g := newTestGateway()
	cs := conn(2)

	rs, err := g.HandleQuery(cs, "/*--enable-check=1;inception_magic_start;*/")
	require.NoError(t, err)
	assert.Nil(t, rs)

	rs, err = g.HandleQuery(cs, "SELECT id FROM t1 WHERE id = 1;")
	require.NoError(t, err)
	assert.Nil(t, rs)

	rs, err = g.HandleQuery(cs, "/*inception_magic_commit;*/")
	require.NoError(t, err)
	require.NotNil(t, rs)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "SELECT", rs.Rows[0][11])
}

func TestConnectionCloseDiscardsSession(t *testing.T) {
	g := newTestGateway()
	cs := conn(3)

	_, err := g.HandleQuery(cs, "/*--enable-check=1;inception_magic_start;*/")
	require.NoError(t, err)
	assert.NotNil(t, g.active[cs.ConnID])

	g.ConnectionClosed(cs)
	assert.Nil(t, g.active[cs.ConnID])
	assert.Empty(t, g.registry.List())
}

func TestSplitModeEndToEnd(t *testing.T) {
	g := newTestGateway()
	cs := conn(4)

	rs, err := g.HandleQuery(cs, "/*--enable-split=1;inception_magic_start;*/"+
		"USE shop;"+
		"INSERT INTO t1 (id) VALUES (1);"+
		"INSERT INTO t1 (id) VALUES (2);"+
		"ALTER TABLE t1 ADD COLUMN age int;"+
		"/*inception_magic_commit;*/")
	require.NoError(t, err)
	require.NotNil(t, rs)

	require.Len(t, rs.Columns, 3)
	assert.Equal(t, "sql_statement", rs.Columns[1].Name)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, 0, rs.Rows[0][2])
	assert.Equal(t, 1, rs.Rows[1][2])
	assert.Contains(t, rs.Rows[0][1].(string), "USE shop;")
}

func TestShowSessionsEmpty(t *testing.T) {
	g := newTestGateway()
	rs, err := g.HandleQuery(conn(5), "inception show sessions;")
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Len(t, rs.Columns, 12)
	assert.Empty(t, rs.Rows)
}

func TestKillErrors(t *testing.T) {
	g := newTestGateway()

	_, err := g.HandleQuery(conn(6), "inception kill 99999")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Thread 99999 not found or not in active inception session.")

	_, err = g.HandleQuery(conn(6), "inception kill notanumber")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Usage: inception kill <thread_id> [force]")

	_, err = g.HandleQuery(conn(6), "inception kill 1 2 3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Usage: inception kill")
}

func TestSetSleepErrors(t *testing.T) {
	g := newTestGateway()

	_, err := g.HandleQuery(conn(7), "inception set sleep 42")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Usage: inception set sleep <thread_id> <milliseconds>")

	_, err = g.HandleQuery(conn(7), "inception set sleep 42 100")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found or not in active inception session.")
}

func TestGetSQLTypes(t *testing.T) {
	g := newTestGateway()
	rs, err := g.HandleQuery(conn(8), "inception get sqltypes")
	require.NoError(t, err)
	require.NotNil(t, rs)
	assert.Len(t, rs.Columns, 3)

	var idx int
	for i, row := range rs.Rows {
		if row[0] == "ALTER_TABLE" {
			idx = i
			break
		}
	}
	// Sub-type rows immediately follow the base ALTER_TABLE row.
	assert.Equal(t, "ALTER_TABLE.ADD_COLUMN", rs.Rows[idx+1][0])
	assert.Equal(t, "YES", rs.Rows[idx+1][2])
}

func TestEncryptPassword(t *testing.T) {
	g := newTestGateway()

	_, err := g.HandleQuery(conn(9), "inception get encrypt_password 'secret'")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inception_password_encrypt_key is not configured.")

	require.NoError(t, g.store.Set(vars.PasswordEncryptKey, "k3y"))
	rs, err := g.HandleQuery(conn(9), "inception get encrypt_password 'secret'")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)

	enc := rs.Rows[0][0].(string)
	assert.True(t, strings.HasPrefix(enc, secret.Prefix))
	assert.Equal(t, "secret", secret.Decrypt(enc, "k3y"))
}

func TestSetAndShowVariables(t *testing.T) {
	g := newTestGateway()

	_, err := g.HandleQuery(conn(10), "SET GLOBAL inception_check_select_star = 2")
	require.NoError(t, err)

	rs, err := g.HandleQuery(conn(10), "SHOW GLOBAL VARIABLES LIKE 'inception_check_select_star'")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 1)
	assert.Equal(t, "ERROR", rs.Rows[0][1])

	// Symbolic values work too, case-insensitive.
	_, err = g.HandleQuery(conn(10), "SET GLOBAL inception_check_select_star = warning")
	require.NoError(t, err)
	rs, _ = g.HandleQuery(conn(10), "SHOW VARIABLES LIKE 'inception_check_select_star'")
	assert.Equal(t, "WARNING", rs.Rows[0][1])

	_, err = g.HandleQuery(conn(10), "SET GLOBAL inception_no_such_thing = 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Unknown system variable 'inception_no_such_thing'")
}

func TestUnknownQueryGetsOK(t *testing.T) {
	g := newTestGateway()
	rs, err := g.HandleQuery(conn(11), "select @@version_comment limit 1")
	require.NoError(t, err)
	assert.Nil(t, rs)
}
