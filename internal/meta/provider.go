// Package meta fetches schema and status information from the remote
// MySQL/TiDB target that audit rules need.
package meta

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"sql-gate/internal/model"
)

// Provider implements model.MetaProvider over a live connection, with
// an LRU cache in front of table lookups.
type Provider struct {
	db      *sql.DB
	profile model.ServerProfile
	cache   *tableCache
}

// Connect opens a pool to the remote and probes its identity. The
// caller decides how a connection failure is surfaced; Connect itself
// just reports it.
func Connect(host string, port int, user, password string) (*Provider, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/?interpolateParams=true&timeout=10s", user, password, host, port)
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening remote %s:%d: %w", host, port, err)
	}
	db.SetMaxOpenConns(4)

	var raw string
	if err := db.QueryRow("SELECT VERSION()").Scan(&raw); err != nil {
		db.Close()
		return nil, fmt.Errorf("probing remote %s:%d: %w", host, port, err)
	}
	profile := ParseVersion(raw)
	log.Debug().Str("host", host).Int("port", port).
		Str("version", raw).Str("db_type", profile.Type.String()).
		Msg("Remote profile detected")

	return &Provider{db: db, profile: profile, cache: newTableCache()}, nil
}

// NewWithDB wraps an existing handle; used by tests with sqlmock.
func NewWithDB(db *sql.DB, profile model.ServerProfile) *Provider {
	return &Provider{db: db, profile: profile, cache: newTableCache()}
}

// Close releases the underlying pool.
func (p *Provider) Close() error {
	return p.db.Close()
}

// DB exposes the underlying handle for the execution loop.
func (p *Provider) DB() *sql.DB {
	return p.db
}

// Profile returns the detected backend identity.
func (p *Provider) Profile() model.ServerProfile {
	return p.profile
}

// DatabaseExists checks information_schema for a schema by name.
func (p *Provider) DatabaseExists(name string) (bool, error) {
	var one int
	err := p.db.QueryRow(
		"SELECT 1 FROM information_schema.SCHEMATA WHERE SCHEMA_NAME = ?", name,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking database %s: %w", name, err)
	}
	return true, nil
}

// TableMeta fetches the schema snapshot of db.table, (nil, nil) when
// the table does not exist.
func (p *Provider) TableMeta(db, table string) (*model.TableMeta, error) {
	if t, ok := p.cache.get(db, table); ok {
		return t, nil
	}

	meta := &model.TableMeta{DB: db, Name: table}
	var engine, charset, comment sql.NullString
	var rows sql.NullInt64
	err := p.db.QueryRow(`
		SELECT t.ENGINE, IFNULL(t.TABLE_ROWS, 0), IFNULL(t.TABLE_COMMENT, ''),
		       IFNULL(c.CHARACTER_SET_NAME, '')
		FROM information_schema.TABLES t
		LEFT JOIN information_schema.COLLATION_CHARACTER_SET_APPLICABILITY c
		       ON c.COLLATION_NAME = t.TABLE_COLLATION
		WHERE t.TABLE_SCHEMA = ? AND t.TABLE_NAME = ?`, db, table,
	).Scan(&engine, &rows, &comment, &charset)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying table %s.%s: %w", db, table, err)
	}
	meta.Engine = engine.String
	meta.Rows = rows.Int64
	meta.Comment = comment.String
	meta.Charset = charset.String

	if err := p.loadColumns(meta); err != nil {
		return nil, err
	}
	if err := p.loadIndexes(meta); err != nil {
		return nil, err
	}

	p.cache.put(db, table, meta)
	return meta, nil
}

func (p *Provider) loadColumns(meta *model.TableMeta) error {
	rows, err := p.db.Query(`
		SELECT COLUMN_NAME, DATA_TYPE, COLUMN_TYPE,
		       IFNULL(CHARACTER_MAXIMUM_LENGTH, 0),
		       IFNULL(NUMERIC_PRECISION, 0), IFNULL(NUMERIC_SCALE, 0),
		       IS_NULLABLE, COLUMN_DEFAULT, EXTRA,
		       IFNULL(COLUMN_COMMENT, ''), IFNULL(CHARACTER_SET_NAME, '')
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, meta.DB, meta.Name)
	if err != nil {
		return fmt.Errorf("querying columns of %s.%s: %w", meta.DB, meta.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var c model.ColumnMeta
		var nullable, extra string
		var def sql.NullString
		if err := rows.Scan(&c.Name, &c.DataType, &c.FullType, &c.CharLength,
			&c.Precision, &c.Scale, &nullable, &def, &extra, &c.Comment, &c.Charset); err != nil {
			return fmt.Errorf("scanning column of %s.%s: %w", meta.DB, meta.Name, err)
		}
		c.DataType = strings.ToLower(c.DataType)
		c.Nullable = strings.EqualFold(nullable, "YES")
		c.Unsigned = strings.Contains(strings.ToLower(c.FullType), "unsigned")
		c.AutoIncrement = strings.Contains(strings.ToLower(extra), "auto_increment")
		c.HasDefault = def.Valid
		c.Default = def.String
		meta.Columns = append(meta.Columns, &c)
	}
	return rows.Err()
}

func (p *Provider) loadIndexes(meta *model.TableMeta) error {
	rows, err := p.db.Query(`
		SELECT INDEX_NAME, NON_UNIQUE, COLUMN_NAME, IFNULL(SUB_PART, 0)
		FROM information_schema.STATISTICS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY INDEX_NAME, SEQ_IN_INDEX`, meta.DB, meta.Name)
	if err != nil {
		return fmt.Errorf("querying indexes of %s.%s: %w", meta.DB, meta.Name, err)
	}
	defer rows.Close()

	byName := make(map[string]*model.IndexMeta)
	for rows.Next() {
		var name, column string
		var nonUnique int
		var subPart int64
		if err := rows.Scan(&name, &nonUnique, &column, &subPart); err != nil {
			return fmt.Errorf("scanning index of %s.%s: %w", meta.DB, meta.Name, err)
		}
		idx, ok := byName[name]
		if !ok {
			idx = &model.IndexMeta{
				Name:    name,
				Unique:  nonUnique == 0,
				Primary: strings.EqualFold(name, "PRIMARY"),
			}
			byName[name] = idx
			meta.Indexes = append(meta.Indexes, idx)
		}
		idx.Parts = append(idx.Parts, model.IndexPart{Column: column, PrefixLen: subPart})
	}
	return rows.Err()
}

// ColumnNames lists db.table's columns in declared order.
func (p *Provider) ColumnNames(db, table string) ([]string, error) {
	if t, ok := p.cache.get(db, table); ok {
		names := make([]string, len(t.Columns))
		for i, c := range t.Columns {
			names[i] = c.Name
		}
		return names, nil
	}

	rows, err := p.db.Query(`
		SELECT COLUMN_NAME FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, db, table)
	if err != nil {
		return nil, fmt.Errorf("querying columns of %s.%s: %w", db, table, err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// Invalidate drops db.table from the cache after its DDL executed.
func (p *Provider) Invalidate(db, table string) {
	p.cache.drop(db, table)
}
