package services

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-report-bot/internal/report"
)

// ReportBuilder computes today's report.
type ReportBuilder interface {
	Build(ctx context.Context) (report.Report, error)
}

// ReportService builds, renders and publishes the daily report.
type ReportService struct {
	Builder ReportBuilder
	// Sender is optional; without it only Today is usable.
	Sender   report.Sender
	ChatID   int64
	ThreadID int
	// Limit is the per-message size limit; 0 means report.MaxMessageLen.
	Limit int
}

// Today builds the report and its rendered message parts.
func (s *ReportService) Today(ctx context.Context) (report.Report, []string, error) {
	r, err := s.Builder.Build(ctx)
	if err != nil {
		return report.Report{}, nil, err
	}
	return r, report.Render(r, s.Limit), nil
}

// Publish builds today's report, logs its text and delivers it to the
// report chat. It returns the number of parts delivered.
func (s *ReportService) Publish(ctx context.Context) (int, error) {
	tr := otel.Tracer("services/ReportService")
	ctx, span := tr.Start(ctx, "Publish",
		trace.WithAttributes(
			attribute.Int64("chat.id", s.ChatID),
			attribute.Int("thread.id", s.ThreadID),
		),
	)
	defer span.End()

	if s.Sender == nil {
		return 0, ErrNoSender
	}
	r, parts, err := s.Today(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build failed")
		return 0, err
	}
	log.Info().
		Str("day", r.Day).
		Int("roster", r.RosterSize).
		Int("sent", len(r.Sent)).
		Int("missing", len(r.Missing)).
		Int("percent", r.Percent).
		Int("parts", len(parts)).
		Msg("daily report built")
	log.Debug().Msg(strings.Join(parts, "\n"))

	if err := report.Deliver(ctx, s.Sender, s.ChatID, s.ThreadID, parts); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "deliver failed")
		return 0, err
	}
	return len(parts), nil
}
