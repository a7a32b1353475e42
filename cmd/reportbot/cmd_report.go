package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-report-bot/internal/observability"
	"github.com/tbourn/go-report-bot/internal/report"
	"github.com/tbourn/go-report-bot/internal/services"
	"github.com/tbourn/go-report-bot/internal/telegram"
)

// runReport builds today's report and sends it to the report chat. Like
// collect, runtime failures are logged and do not change the exit code.
func runReport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown := startTracing(ctx, "report")
	defer observability.Flush(shutdown, flushTimeout)
	defer pushMetrics(ctx, "reportbot_report")

	db, closeDB, err := openStore()
	if err != nil {
		log.Error().Err(err).Msg("report aborted")
		return nil
	}
	defer closeDB()

	tg, err := telegram.New(cfg.Telegram, cfg.Collector.CallTimeout)
	if err != nil {
		log.Error().Err(err).Msg("report aborted")
		return nil
	}

	svc := &services.ReportService{
		Builder:  report.New(db, cfg.Store.Tables, cfg.Collector.Location()),
		Sender:   tg,
		ChatID:   cfg.Report.ChatID,
		ThreadID: cfg.Report.ThreadID,
	}
	parts, err := svc.Publish(ctx)
	if err != nil {
		log.Error().Err(err).Msg("daily report failed")
		return nil
	}
	log.Info().Int("parts", parts).Int64("chat_id", cfg.Report.ChatID).Msg("daily report sent")
	return nil
}
