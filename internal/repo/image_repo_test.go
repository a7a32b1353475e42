package repo

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/tbourn/go-report-bot/internal/domain"
)

func TestInsertFingerprint_AndList(t *testing.T) {
	db := newTestDB(t, defaultTablesPtr())
	ctx := context.Background()

	for _, fp := range []string{"AQADb", "AQADa"} {
		if err := InsertFingerprint(ctx, db, "images", fp, "20250101", "2025-01-01"); err != nil {
			t.Fatalf("InsertFingerprint(%s): %v", fp, err)
		}
	}
	if err := InsertFingerprint(ctx, db, "images", "AQADa", "20250102", "2025-01-02"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	got, err := ListFingerprints(ctx, db, "images")
	if err != nil {
		t.Fatalf("ListFingerprints: %v", err)
	}
	sort.Strings(got)
	if len(got) != 2 || got[0] != "AQADa" || got[1] != "AQADb" {
		t.Fatalf("unexpected fingerprints: %v", got)
	}

	// First association wins; rows are never mutated.
	var row domain.ImageFingerprint
	if err := db.Table("images").Where("fingerprint = ?", "AQADa").Take(&row).Error; err != nil {
		t.Fatalf("readback: %v", err)
	}
	if row.Code != "20250101" {
		t.Fatalf("fingerprint row mutated: %+v", row)
	}
}

func TestListFingerprints_MissingTable(t *testing.T) {
	db := newTestDB(t, nil)
	if _, err := ListFingerprints(context.Background(), db, "images"); err == nil {
		t.Fatalf("expected error without table")
	}
}
