// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides small aggregate queries used for
// conditional responses (ETag generation) in the admin HTTP layer.
package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// RecordsStats returns the number of records of day (all days when empty)
// and the greatest CreatedAt among them.
//
// Return values:
//   - count:        total records matched
//   - maxCreatedAt: pointer to the latest CreatedAt, or nil if no rows
//   - err:          database error, if any
func RecordsStats(ctx context.Context, db *gorm.DB, table, day string) (count int64, maxCreatedAt *time.Time, err error) {
	q := func() *gorm.DB {
		q := db.WithContext(ctx).Table(table)
		if day != "" {
			q = q.Where("day = ?", day)
		}
		return q
	}

	if err = q().Count(&count).Error; err != nil {
		return 0, nil, err
	}
	if count == 0 {
		return 0, nil, nil
	}

	// Get latest created_at (avoid MAX() -> TEXT in SQLite)
	var row struct {
		CreatedAt time.Time
	}
	if err = q().Select("created_at").Order("created_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return 0, nil, err
	}
	return count, &row.CreatedAt, nil
}
