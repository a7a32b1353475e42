// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for accepted
// report records.
//
// All functions are context-aware and accept a *gorm.DB handle plus the
// configured table name, making them safe for use within transactions and
// against schemas whose table names differ from the defaults. They follow
// the "thin repository" approach: no business logic, only persistence and
// query composition.
//
// Functions:
//
//   - CreateRecord(ctx, db, table, rec) -> error
//     Inserts a record, assigning a UUID when rec.ID is empty.
//
//   - ListRecordsByDay(ctx, db, table, day) -> []domain.Record, error
//     Returns the day's records ordered by (created_at, id) ascending.
//
//   - CountRecordsByDay(ctx, db, table, day) -> int64, error
//
//   - ListRecordsPage(ctx, db, table, day, offset, limit) -> []domain.Record, error
//     Most recent first; an empty day lists every record.
//
//   - ContentHashesByDay(ctx, db, table, day) -> []string, error
package repo

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/domain"
)

// CreateRecord inserts rec into table. CreatedAt and Day are the caller's
// responsibility since both depend on the operating timezone.
func CreateRecord(ctx context.Context, db *gorm.DB, table string, rec *domain.Record) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	return db.WithContext(ctx).Table(table).Create(rec).Error
}

// ListRecordsByDay returns all records of the given local day ordered
// deterministically (CreatedAt ASC, ID ASC).
func ListRecordsByDay(ctx context.Context, db *gorm.DB, table, day string) ([]domain.Record, error) {
	var out []domain.Record
	err := db.WithContext(ctx).
		Table(table).
		Where("day = ?", day).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}

// CountRecordsByDay returns the number of records for day, or for every day
// when day is empty.
func CountRecordsByDay(ctx context.Context, db *gorm.DB, table, day string) (int64, error) {
	var total int64
	q := db.WithContext(ctx).Table(table)
	if day != "" {
		q = q.Where("day = ?", day)
	}
	err := q.Count(&total).Error
	return total, err
}

// ListRecordsPage returns a paginated slice ordered (CreatedAt DESC, ID DESC).
// The caller computes offset and limit (e.g. via utils.Paginate).
func ListRecordsPage(ctx context.Context, db *gorm.DB, table, day string, offset, limit int) ([]domain.Record, error) {
	var out []domain.Record
	q := db.WithContext(ctx).Table(table)
	if day != "" {
		q = q.Where("day = ?", day)
	}
	err := q.
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// ContentHashesByDay returns the content hash of every record of day.
func ContentHashesByDay(ctx context.Context, db *gorm.DB, table, day string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Table(table).
		Where("day = ?", day).
		Pluck("content_hash", &out).Error
	return out, err
}
