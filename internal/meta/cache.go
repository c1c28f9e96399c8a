package meta

import (
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"

	"sql-gate/internal/model"
)

const cacheSize = 1024

// tableCache keeps recently fetched table snapshots. Keys are hashed
// so the hot path avoids building "db.table" strings twice.
type tableCache struct {
	lru *lru.Cache[uint64, *model.TableMeta]
}

func newTableCache() *tableCache {
	c, _ := lru.New[uint64, *model.TableMeta](cacheSize)
	return &tableCache{lru: c}
}

func cacheKey(db, table string) uint64 {
	h := xxhash.New()
	h.WriteString(db)
	h.Write([]byte{0})
	h.WriteString(table)
	return h.Sum64()
}

func (c *tableCache) get(db, table string) (*model.TableMeta, bool) {
	return c.lru.Get(cacheKey(db, table))
}

func (c *tableCache) put(db, table string, t *model.TableMeta) {
	c.lru.Add(cacheKey(db, table), t)
}

func (c *tableCache) drop(db, table string) {
	c.lru.Remove(cacheKey(db, table))
}
