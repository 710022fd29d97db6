package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ExpiredDocumentCleaner is the part of the document service the sweeper needs.
type ExpiredDocumentCleaner interface {
	CleanupExpired(ctx context.Context, now time.Time) (int, error)
}

// RetentionSweeper periodically discards documents past their retention window.
type RetentionSweeper struct {
	cleaner  ExpiredDocumentCleaner
	interval time.Duration
	logger   zerolog.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewRetentionSweeper(cleaner ExpiredDocumentCleaner, interval time.Duration, logger zerolog.Logger) *RetentionSweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &RetentionSweeper{
		cleaner:  cleaner,
		interval: interval,
		logger:   logger,
	}
}

func (s *RetentionSweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweep(ctx)
			}
		}
	}()

	s.logger.Info().Dur("interval", s.interval).Msg("Retention sweeper started")
}

func (s *RetentionSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
}

func (s *RetentionSweeper) sweep(ctx context.Context) {
	removed, err := s.cleaner.CleanupExpired(ctx, time.Now().UTC())
	if err != nil {
		s.logger.Error().Err(err).Int("removed", removed).Msg("Retention sweep failed")
		return
	}
	if removed > 0 {
		s.logger.Info().Int("removed", removed).Msg("Expired documents removed")
	}
}
