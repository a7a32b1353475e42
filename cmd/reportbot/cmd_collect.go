package main

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-report-bot/internal/collector"
	"github.com/tbourn/go-report-bot/internal/observability"
	"github.com/tbourn/go-report-bot/internal/telegram"
)

// runCollect runs a single pass. Failures are logged; the exit code stays 0
// so cron does not mail on transient network errors.
func runCollect(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	shutdown := startTracing(ctx, "collect")
	defer observability.Flush(shutdown, flushTimeout)
	defer pushMetrics(ctx, "reportbot_collect")

	db, closeDB, err := openStore()
	if err != nil {
		log.Error().Err(err).Msg("collect aborted")
		return nil
	}
	defer closeDB()

	tg, err := telegram.New(cfg.Telegram, cfg.Collector.CallTimeout)
	if err != nil {
		log.Error().Err(err).Msg("collect aborted")
		return nil
	}

	res, err := collector.New(cfg, db, tg).RunPass(ctx)
	if err != nil {
		log.Error().Err(err).Msg("collect pass failed")
		return nil
	}
	logPass(res)
	return nil
}

func logPass(res collector.PassResult) {
	if res.Skipped != "" {
		log.Info().Str("skipped", res.Skipped).Msg("collect pass skipped")
		return
	}
	log.Info().
		Int("fetched", res.Fetched).
		Int64("cursor", res.Cursor).
		Int("submissions", res.Submissions).
		Int("accepted", res.Accepted).
		Int("duplicate", res.Duplicate).
		Int("malformed", res.Malformed).
		Int("already_seen", res.AlreadySeen).
		Int("failed", res.Failed).
		Int("replies", res.Replies).
		Msg("collect pass done")
}

// pushMetrics hands the run's metrics to the Pushgateway when configured.
func pushMetrics(ctx context.Context, job string) {
	if err := collector.PushMetrics(context.WithoutCancel(ctx), cfg.PushgatewayURL, job); err != nil {
		log.Warn().Err(err).Str("job", job).Msg("pushgateway push failed")
	}
}
