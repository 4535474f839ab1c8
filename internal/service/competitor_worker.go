package service

import (
	"context"
	"time"

	"github.com/mathieu-neron/nichescope/internal/logging"
)

// CompetitorWorker periodically snapshots every tracked competitor channel.
type CompetitorWorker struct {
	svc      *CompetitorService
	interval time.Duration
}

// NewCompetitorWorker creates a worker that ticks every interval (6h when unset).
func NewCompetitorWorker(svc *CompetitorService, interval time.Duration) *CompetitorWorker {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	return &CompetitorWorker{svc: svc, interval: interval}
}

// Start runs one tick immediately, then every interval until ctx is cancelled.
func (w *CompetitorWorker) Start(ctx context.Context) {
	log := logging.Component("competitor-worker")
	log.Info().Dur("interval", w.interval).Msg("starting")

	w.tick(ctx)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.tick(ctx)
		case <-ctx.Done():
			log.Info().Msg("stopping (context cancelled)")
			return
		}
	}
}

func (w *CompetitorWorker) tick(ctx context.Context) {
	log := logging.Component("competitor-worker")
	start := time.Now()

	captured, failed, err := w.svc.SnapshotAll(ctx)
	if err != nil {
		log.Error().Err(err).Msg("tick failed")
		return
	}

	log.Info().
		Int("captured", captured).
		Int("failed", failed).
		Dur("elapsed", time.Since(start).Round(time.Millisecond)).
		Msg("tick complete")
}
