package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/go-report-bot/internal/config"
	"github.com/tbourn/go-report-bot/internal/observability"
	"github.com/tbourn/go-report-bot/internal/repo"
	"github.com/tbourn/go-report-bot/internal/sysutil"
)

// errConfig marks failures that must end the process with a non-zero code.
// Runtime failures of a pass are logged and the process exits 0.
var errConfig = errors.New("invalid configuration")

var (
	envFile string
	daily   bool

	// cfg is resolved once in PersistentPreRunE.
	cfg config.Config

	rootCmd = &cobra.Command{
		Use:   "reportbot",
		Short: "Collect 5S reports from a Telegram group and publish the daily summary",
		Long: `reportbot reads new messages from the collection chat, stores valid
reports, replies to each submission and publishes a daily report of who
has and has not submitted.

Without a subcommand it runs one collect pass.`,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
		RunE: func(cmd *cobra.Command, args []string) error {
			if wantsDaily(daily, os.Getenv("RUN_DAILY")) {
				return runReport(cmd, args)
			}
			return runCollect(cmd, args)
		},
	}

	collectCmd = &cobra.Command{
		Use:   "collect",
		Short: "Run one collect pass",
		Args:  cobra.NoArgs,
		RunE:  runCollect,
	}

	reportCmd = &cobra.Command{
		Use:     "report",
		Aliases: []string{"daily"},
		Short:   "Build today's report and send it to the report chat",
		Args:    cobra.NoArgs,
		RunE:    runReport,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Collect on an interval and serve the admin HTTP API",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}

	rosterCmd = &cobra.Command{
		Use:   "roster",
		Short: "Manage the roster of expected reporters",
	}
	rosterImportCmd = &cobra.Command{
		Use:   "import [file.yaml]",
		Short: "Insert or update roster entries from a YAML file",
		Args:  cobra.ExactArgs(1),
		RunE:  runRosterImport,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	rootCmd.Flags().BoolVar(&daily, "daily", false, "publish the daily report instead of collecting (same as RUN_DAILY=1)")

	rosterCmd.AddCommand(rosterImportCmd)
	rootCmd.AddCommand(collectCmd, reportCmd, serveCmd, rosterCmd)
}

// wantsDaily reports whether the root command should behave like `report`.
func wantsDaily(flag bool, env string) bool {
	return flag || sysutil.IsTruthy(env)
}

// loadConfig loads the dotenv file when present, resolves the configuration
// and sets up logging.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %s: %w", errConfig, envFile, err)
	}
	c, err := config.Load()
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	cfg = c
	sysutil.SetupLogger(cmd.ErrOrStderr(), cfg.LogLevel, cfg.LogPretty)
	return nil
}

// openStore opens the configured database.
func openStore() (*gorm.DB, func(), error) {
	db, err := repo.Open(cfg.Store)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	closeFn := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, closeFn, nil
}

// startTracing sets up OpenTelemetry for mode. A failure only disables
// tracing.
func startTracing(ctx context.Context, mode string) observability.ShutdownFunc {
	shutdown, err := observability.Setup(ctx, cfg.OTEL, version, mode)
	if err != nil {
		log.Warn().Err(err).Msg("otel setup failed; tracing disabled")
		return nil
	}
	return shutdown
}

const flushTimeout = 5 * time.Second
