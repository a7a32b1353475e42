package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/domain"
)

// ListFingerprints returns every stored attachment fingerprint.
func ListFingerprints(ctx context.Context, db *gorm.DB, table string) ([]string, error) {
	var out []string
	err := db.WithContext(ctx).
		Table(table).
		Pluck("fingerprint", &out).Error
	return out, err
}

// InsertFingerprint appends one fingerprint row. It returns ErrDuplicate
// when the fingerprint is already stored.
func InsertFingerprint(ctx context.Context, db *gorm.DB, table, fingerprint, code, day string) error {
	row := &domain.ImageFingerprint{
		Fingerprint: fingerprint,
		Code:        code,
		Day:         day,
		CreatedAt:   time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Table(table).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return err
	}
	return nil
}
