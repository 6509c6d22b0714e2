package service

import (
	"context"
	"time"

	"yield-ledger/internal/core/ports"
	"yield-ledger/pkg/logger"

	"github.com/rs/zerolog"
)

// SweepScheduler runs a SweepService on a fixed interval until its context
// is cancelled. The first run starts immediately.
type SweepScheduler struct {
	sweep    ports.SweepService
	interval time.Duration
	log      zerolog.Logger
}

func NewSweepScheduler(sweep ports.SweepService, interval time.Duration, log zerolog.Logger) *SweepScheduler {
	return &SweepScheduler{sweep: sweep, interval: interval, log: logger.Component(log, "sweep_scheduler")}
}

// Start blocks until ctx is done. Sweep errors are logged and never stop
// the schedule.
func (s *SweepScheduler) Start(ctx context.Context) error {
	s.log.Info().Dur("interval", s.interval).Msg("sweep scheduler started")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.runOnce(ctx)
		select {
		case <-ctx.Done():
			s.log.Info().Msg("sweep scheduler stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (s *SweepScheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if _, err := s.sweep.Run(ctx); err != nil {
		s.log.Error().Err(err).Msg("scheduled sweep failed")
	}
}
