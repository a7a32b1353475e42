package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-report-bot/internal/config"
	"github.com/tbourn/go-report-bot/internal/domain"
)

// newTestDB opens a private in-memory database. When tables is non-nil the
// schema is migrated under those names.
func newTestDB(t *testing.T, tables *config.TablesConfig) *gorm.DB {
	t.Helper()
	// Unique DB per test to avoid schema leaking across tests.
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if tables != nil {
		if err := AutoMigrate(db, *tables); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func defaultTablesPtr() *config.TablesConfig {
	tb := DefaultTables()
	return &tb
}

func TestRecordsStats_CountError_NoTable(t *testing.T) {
	db := newTestDB(t, nil)
	_, _, err := RecordsStats(context.Background(), db, "messages", "")
	if err == nil {
		t.Fatalf("expected error due to missing messages table")
	}
}

func TestRecordsStats_ZeroRows(t *testing.T) {
	db := newTestDB(t, defaultTablesPtr())
	count, maxAt, err := RecordsStats(context.Background(), db, "messages", "2025-01-01")
	if err != nil {
		t.Fatalf("RecordsStats error: %v", err)
	}
	if count != 0 || maxAt != nil {
		t.Fatalf("expected (0, nil), got (%d, %v)", count, maxAt)
	}
}

func TestRecordsStats_FilterByDayAndMax(t *testing.T) {
	db := newTestDB(t, defaultTablesPtr())
	ctx := context.Background()

	t1 := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	t2 := time.Date(2025, 1, 1, 17, 30, 0, 0, time.UTC) // max for the day
	t3 := time.Date(2025, 1, 2, 9, 0, 0, 0, time.UTC)   // other day

	for i, at := range []time.Time{t1, t2, t3} {
		rec := &domain.Record{
			CreatedAt:   at,
			Day:         at.Format("2006-01-02"),
			ChatID:      -100,
			MessageID:   i + 1,
			Content:     "20250101 - Kho A",
			Code:        "20250101",
			ContentHash: fmt.Sprintf("%064d", i),
		}
		if err := CreateRecord(ctx, db, "messages", rec); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	count, maxAt, err := RecordsStats(ctx, db, "messages", "2025-01-01")
	if err != nil {
		t.Fatalf("RecordsStats: %v", err)
	}
	if count != 2 {
		t.Fatalf("count = %d; want 2", count)
	}
	if maxAt == nil || !maxAt.Equal(t2) {
		t.Fatalf("maxCreatedAt = %v; want %v", maxAt, t2)
	}

	all, _, err := RecordsStats(ctx, db, "messages", "")
	if err != nil || all != 3 {
		t.Fatalf("all-days count = %d err=%v; want 3", all, err)
	}
}
