// Package state keeps the collector's durable run state in the Meta table:
// the polling cursor, the advisory run lock and the per-day warned/seen
// sets. Everything here is a thin layer over MetaStore so the engine never
// touches column names.
package state

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/repo"
)

// MetaStore is the key/value contract required by the state helpers.
// Get returns repo.ErrNotFound for absent keys; Insert returns
// repo.ErrDuplicate when the key exists.
type MetaStore interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Insert(ctx context.Context, key, value string) error
	Swap(ctx context.Context, key, prev, next string) (bool, error)
	DeleteIf(ctx context.Context, key, value string) (bool, error)
}

// metaShim adapts the repository free functions to MetaStore for one table.
type metaShim struct {
	db    *gorm.DB
	table string
}

// NewMetaStore returns a MetaStore backed by the given Meta table.
func NewMetaStore(db *gorm.DB, table string) MetaStore {
	return metaShim{db: db, table: table}
}

// Get proxies repo.GetMeta.
func (m metaShim) Get(ctx context.Context, key string) (string, error) {
	return repo.GetMeta(ctx, m.db, m.table, key)
}

// Set proxies repo.SetMeta.
func (m metaShim) Set(ctx context.Context, key, value string) error {
	return repo.SetMeta(ctx, m.db, m.table, key, value)
}

// Insert proxies repo.InsertMeta.
func (m metaShim) Insert(ctx context.Context, key, value string) error {
	return repo.InsertMeta(ctx, m.db, m.table, key, value)
}

// Swap proxies repo.SwapMeta.
func (m metaShim) Swap(ctx context.Context, key, prev, next string) (bool, error) {
	return repo.SwapMeta(ctx, m.db, m.table, key, prev, next)
}

// DeleteIf proxies repo.DeleteMetaIf.
func (m metaShim) DeleteIf(ctx context.Context, key, value string) (bool, error) {
	return repo.DeleteMetaIf(ctx, m.db, m.table, key, value)
}
