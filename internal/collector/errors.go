// Package collector runs one polling pass: take the run lock, fetch updates
// after the cursor, acknowledge them by advancing the cursor, aggregate
// albums, then classify, persist and answer each submission.
//
// This file centralizes the error tags the engine uses to decide between
// skipping a submission and aborting the pass.
package collector

import "errors"

var (
	// ErrTransport tags failures of the chat transport (fetch or send).
	// A fetch failure aborts the pass; a send failure only affects its
	// submission.
	ErrTransport = errors.New("transport error")

	// ErrStore tags failures of the durable store. Reads of optional state
	// degrade to empty sets; a failed record write skips its submission.
	ErrStore = errors.New("store error")
)

// SkipLockHeld is PassResult.Skipped when another pass holds the run lock.
const SkipLockHeld = "lock_held"

// SkipBusy is PassResult.Skipped when a pass of the same Engine is still
// running.
const SkipBusy = "busy"
