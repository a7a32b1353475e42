// Command reportbot collects daily 5S reports posted to a Telegram group
// and publishes the daily reconciliation report.
//
// It is meant to run from cron (`reportbot` every few minutes,
// `reportbot report` once a day) or as a long-running process
// (`reportbot serve`) with an admin HTTP API.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

// version is overridden at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("reportbot failed")
		os.Exit(1)
	}
}
