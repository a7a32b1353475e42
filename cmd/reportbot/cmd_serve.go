package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-report-bot/internal/collector"
	httpapi "github.com/tbourn/go-report-bot/internal/http"
	"github.com/tbourn/go-report-bot/internal/observability"
	"github.com/tbourn/go-report-bot/internal/services"
	"github.com/tbourn/go-report-bot/internal/telegram"
)

// runServe collects every COLLECT_INTERVAL and serves the admin API until
// SIGINT/SIGTERM. Unlike the one-shot commands, failing to start is an
// error.
func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := startTracing(ctx, "serve")
	defer observability.Flush(shutdown, flushTimeout)

	db, closeDB, err := openStore()
	if err != nil {
		return err
	}
	defer closeDB()

	tg, err := telegram.New(cfg.Telegram, cfg.Collector.CallTimeout)
	if err != nil {
		return err
	}
	if err := tg.RegisterCommands("Hướng dẫn gửi báo cáo 5S"); err != nil {
		log.Warn().Err(err).Msg("register bot commands")
	}

	engine := collector.New(cfg, db, tg)

	gin.SetMode(cfg.GinMode)
	r := gin.New()
	httpapi.RegisterRoutes(r, db, engine, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	loopDone := make(chan struct{})
	go func() {
		defer close(loopDone)
		(&services.CollectService{Runner: engine}).Loop(ctx, cfg.Collector.Interval)
	}()

	srvErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("admin api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown: signal received")
	case err := <-srvErr:
		if err != nil {
			stop()
			<-loopDone
			return err
		}
	}

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Warn().Err(err).Msg("http shutdown")
	}
	<-loopDone
	log.Info().Msg("shutdown complete")
	return nil
}
