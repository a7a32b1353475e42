package services

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-report-bot/internal/collector"
)

// PassRunner runs one collect pass.
type PassRunner interface {
	RunPass(ctx context.Context) (collector.PassResult, error)
}

// CollectService triggers collect passes on demand or on a fixed interval.
type CollectService struct {
	Runner PassRunner
}

// Collect runs a single pass. A pass skipped because the run lock is held,
// or because a scheduled pass of the same engine is running, is reported as
// ErrCollectBusy alongside its result.
func (s *CollectService) Collect(ctx context.Context) (collector.PassResult, error) {
	res, err := s.Runner.RunPass(ctx)
	if err != nil {
		return res, err
	}
	switch res.Skipped {
	case collector.SkipLockHeld, collector.SkipBusy:
		return res, ErrCollectBusy
	}
	return res, nil
}

// Loop runs a pass immediately and then every interval until ctx is done.
// Failed passes are logged; the loop keeps going.
func (s *CollectService) Loop(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		if _, err := s.Runner.RunPass(ctx); err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("scheduled collect pass failed")
		}
		select {
		case <-ctx.Done():
			return
		case <-t.C:
		}
	}
}
