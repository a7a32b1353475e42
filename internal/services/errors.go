// Package services holds the application operations behind the admin API and
// the CLI: listing stored records, building and publishing the daily report,
// and running collect passes. Handlers translate the errors below into HTTP
// status codes.
package services

import "errors"

var (
	// ErrInvalidDay is returned when a day filter is not YYYY-MM-DD.
	ErrInvalidDay = errors.New("day must be YYYY-MM-DD")

	// ErrCollectBusy is returned when a manual collect finds the run lock held.
	ErrCollectBusy = errors.New("collect pass already running")

	// ErrNoSender is returned by Publish when no transport is configured.
	ErrNoSender = errors.New("report sender not configured")
)
