package handlers

import (
	"context"
	"time"

	"github.com/tbourn/go-report-bot/internal/collector"
	"github.com/tbourn/go-report-bot/internal/domain"
	"github.com/tbourn/go-report-bot/internal/report"
)

//
// Service contracts (context-aware)
//

// RecordService lists stored reports. An empty day means all days.
type RecordService interface {
	ListPage(ctx context.Context, day string, page, pageSize int) ([]domain.Record, int64, error)
	Stats(ctx context.Context, day string) (int64, *time.Time, error)
}

// ReportService builds today's report and its rendered messages.
type ReportService interface {
	Today(ctx context.Context) (report.Report, []string, error)
}

// CollectService runs one collect pass on demand.
type CollectService interface {
	Collect(ctx context.Context) (collector.PassResult, error)
}

// Handlers groups the admin endpoints.
type Handlers struct {
	recSvc     RecordService
	reportSvc  ReportService
	collectSvc CollectService
}

// New constructs Handlers bound to the given services.
func New(recSvc RecordService, reportSvc ReportService, collectSvc CollectService) *Handlers {
	return &Handlers{recSvc: recSvc, reportSvc: reportSvc, collectSvc: collectSvc}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}
