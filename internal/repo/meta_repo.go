// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides the key/value helpers over the Meta
// table that back the polling cursor, the run lock and the per-day sets.
package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-report-bot/internal/domain"
)

// GetMeta returns the value stored under key or ErrNotFound.
func GetMeta(ctx context.Context, db *gorm.DB, table, key string) (string, error) {
	var m domain.Meta
	err := db.WithContext(ctx).
		Table(table).
		Where("key = ?", key).
		Take(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return m.Value, nil
}

// SetMeta inserts or overwrites key.
func SetMeta(ctx context.Context, db *gorm.DB, table, key, value string) error {
	m := &domain.Meta{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	return db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
		}).
		Create(m).Error
}

// InsertMeta inserts key and returns ErrDuplicate if it already exists.
func InsertMeta(ctx context.Context, db *gorm.DB, table, key, value string) error {
	m := &domain.Meta{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if err := db.WithContext(ctx).Table(table).Create(m).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}

// SwapMeta replaces the value of key with next only if it currently equals
// prev. It reports whether the swap happened.
func SwapMeta(ctx context.Context, db *gorm.DB, table, key, prev, next string) (bool, error) {
	res := db.WithContext(ctx).
		Table(table).
		Where("key = ? AND value = ?", key, prev).
		Updates(map[string]any{"value": next, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// DeleteMetaIf removes key only if its value equals value. It reports
// whether a row was removed.
func DeleteMetaIf(ctx context.Context, db *gorm.DB, table, key, value string) (bool, error) {
	res := db.WithContext(ctx).
		Table(table).
		Where("key = ? AND value = ?", key, value).
		Delete(&domain.Meta{})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
