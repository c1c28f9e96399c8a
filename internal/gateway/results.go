package gateway

import (
	"sql-gate/internal/model"
	"sql-gate/internal/protocol"
)

// auditResultSet renders the 15-column CHECK/EXECUTE result.
func auditResultSet(nodes []*model.CacheNode, profile model.ServerProfile) *protocol.ResultSet {
	rs := &protocol.ResultSet{
		Columns: protocol.TextColumns(
			"id", "stage", "err_level", "stage_status", "err_message",
			"sql_text", "affected_rows", "sequence", "backup_dbname",
			"execute_time", "sql_sha1", "sql_type", "ddl_algorithm",
			"db_type", "db_version",
		),
	}
	for _, node := range nodes {
		rs.Rows = append(rs.Rows, []interface{}{
			node.ID,
			node.Stage.String(),
			int(node.ErrLevel),
			node.StageStatus,
			node.ErrMessage(),
			node.SQL,
			node.AffectedRows,
			node.Sequence,
			node.BackupDB,
			node.ExecuteTime,
			node.SQLSha1,
			node.TypeString(),
			node.DDLAlgorithm,
			profile.Type.String(),
			profile.VersionString(),
		})
	}
	return rs
}

func splitResultSet(groups []model.SplitGroup) *protocol.ResultSet {
	rs := &protocol.ResultSet{
		Columns: protocol.TextColumns("id", "sql_statement", "ddlflag"),
	}
	for _, g := range groups {
		rs.Rows = append(rs.Rows, []interface{}{g.ID, g.SQL, g.DDLFlag})
	}
	return rs
}

func treeResultSet(trees []model.TreeNode) *protocol.ResultSet {
	rs := &protocol.ResultSet{
		Columns: protocol.TextColumns("id", "sql_text", "query_tree"),
	}
	for _, t := range trees {
		rs.Rows = append(rs.Rows, []interface{}{t.ID, t.SQL, t.JSON})
	}
	return rs
}
