package model

// MetaProvider answers schema questions about the remote target.
// Implementations must tolerate a missing object without error:
// TableMeta returns (nil, nil) for a table that does not exist.
type MetaProvider interface {
	// Profile returns the detected backend identity. A zero-value
	// profile (DBTypeUnknown) means the remote was never reachable.
	Profile() ServerProfile
	// DatabaseExists checks for a schema by name.
	DatabaseExists(name string) (bool, error)
	// TableMeta fetches the full schema snapshot of db.table.
	TableMeta(db, table string) (*TableMeta, error)
	// ColumnNames lists db.table's columns in declared order, used for
	// star expansion in query trees.
	ColumnNames(db, table string) ([]string, error)
}
