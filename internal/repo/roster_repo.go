package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-report-bot/internal/domain"
)

// ListRoster returns every roster row ordered by code.
func ListRoster(ctx context.Context, db *gorm.DB, table string) ([]domain.RosterEntry, error) {
	var out []domain.RosterEntry
	err := db.WithContext(ctx).
		Table(table).
		Order("code ASC").
		Find(&out).Error
	return out, err
}

// UpsertRoster inserts entries, overwriting the display name of codes that
// already exist. It returns the number of affected rows.
func UpsertRoster(ctx context.Context, db *gorm.DB, table string, entries []domain.RosterEntry) (int64, error) {
	if len(entries) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).
		Table(table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{"name"}),
		}).
		Create(&entries)
	return res.RowsAffected, res.Error
}
