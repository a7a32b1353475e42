package services

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/domain"
	"github.com/tbourn/go-report-bot/internal/utils"
)

// RecordRepo defines the repository contract required by RecordService.
// An empty day means all days.
type RecordRepo interface {
	// CountRecordsByDay returns the number of records stored for day.
	CountRecordsByDay(ctx context.Context, db *gorm.DB, table, day string) (int64, error)

	// ListRecordsPage returns records newest first.
	ListRecordsPage(ctx context.Context, db *gorm.DB, table, day string, offset, limit int) ([]domain.Record, error)

	// RecordsStats returns the count and latest CreatedAt, used for ETags.
	RecordsStats(ctx context.Context, db *gorm.DB, table, day string) (int64, *time.Time, error)
}

// RecordService exposes accepted reports read-only.
type RecordService struct {
	DB    *gorm.DB
	Repo  RecordRepo
	Table string
}

// NewRecordService constructs a RecordService over table.
func NewRecordService(db *gorm.DB, r RecordRepo, table string) *RecordService {
	return &RecordService{DB: db, Repo: r, Table: table}
}

// ListPage returns one page of records and the total for the filter.
func (s *RecordService) ListPage(ctx context.Context, day string, page, pageSize int) ([]domain.Record, int64, error) {
	tr := otel.Tracer("services/RecordService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("records.day", day),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	day, err := normalizeDay(day)
	if err != nil {
		return nil, 0, err
	}
	_, pageSize, offset := utils.Paginate(page, pageSize)

	total, err := s.Repo.CountRecordsByDay(ctx, s.DB, s.Table, day)
	if err != nil {
		span.RecordError(err)
		return nil, 0, err
	}
	if total == 0 {
		return []domain.Record{}, 0, nil
	}

	items, err := s.Repo.ListRecordsPage(ctx, s.DB, s.Table, day, offset, pageSize)
	if err != nil {
		span.RecordError(err)
	}
	return items, total, err
}

// Stats returns the record count and the latest acceptance time for day.
func (s *RecordService) Stats(ctx context.Context, day string) (int64, *time.Time, error) {
	day, err := normalizeDay(day)
	if err != nil {
		return 0, nil, err
	}
	return s.Repo.RecordsStats(ctx, s.DB, s.Table, day)
}

func normalizeDay(day string) (string, error) {
	day = strings.TrimSpace(day)
	if day == "" {
		return "", nil
	}
	if _, err := time.Parse(utils.DayLayout, day); err != nil {
		return "", ErrInvalidDay
	}
	return day, nil
}
