package service

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mathieu-neron/nichescope/internal/logging"
	"github.com/mathieu-neron/nichescope/internal/repository"
)

// RefreshWorker listens for PostgreSQL NOTIFY on the analysis_refresh channel
// and batches run recomputations. Repeated refresh requests for the same run
// inside one window are recomputed once.
type RefreshWorker struct {
	pool   *pgxpool.Pool
	niches *NicheService
	window time.Duration

	mu      sync.Mutex
	pending map[string]struct{} // run IDs waiting for recomputation
}

// NewRefreshWorker creates a refresh worker flushing every window.
func NewRefreshWorker(pool *pgxpool.Pool, niches *NicheService, window time.Duration) *RefreshWorker {
	if window <= 0 {
		window = 5 * time.Second
	}
	return &RefreshWorker{
		pool:    pool,
		niches:  niches,
		window:  window,
		pending: make(map[string]struct{}),
	}
}

// Start listens for refresh notifications and processes batches until ctx is
// cancelled, reconnecting after listen errors.
func (w *RefreshWorker) Start(ctx context.Context) {
	log := logging.Component("refresh-worker")
	log.Info().Dur("window", w.window).Msg("starting")

	for {
		if err := w.listenLoop(ctx); err != nil {
			if ctx.Err() != nil {
				log.Info().Msg("stopping (context cancelled)")
				return
			}
			log.Warn().Err(err).Msg("listen error, reconnecting in 5s")
			select {
			case <-time.After(5 * time.Second):
			case <-ctx.Done():
				log.Info().Msg("stopping (context cancelled)")
				return
			}
		}
	}
}

// listenLoop acquires a dedicated connection, LISTENs on analysis_refresh,
// and queues each notified run id.
func (w *RefreshWorker) listenLoop(ctx context.Context) error {
	conn, err := w.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "LISTEN "+repository.RefreshChannel); err != nil {
		return err
	}
	logging.Component("refresh-worker").Info().Str("channel", repository.RefreshChannel).Msg("listening")

	flushCtx, flushCancel := context.WithCancel(ctx)
	defer flushCancel()
	go w.flushLoop(flushCtx)

	for {
		notification, err := conn.Conn().WaitForNotification(ctx)
		if err != nil {
			return err
		}
		w.Enqueue(notification.Payload)
	}
}

// Enqueue adds a run id to the pending batch.
func (w *RefreshWorker) Enqueue(runID string) {
	if runID == "" {
		return
	}
	w.mu.Lock()
	w.pending[runID] = struct{}{}
	w.mu.Unlock()
}

func (w *RefreshWorker) flushLoop(ctx context.Context) {
	ticker := time.NewTicker(w.window)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Flush(ctx)
		case <-ctx.Done():
			// Final flush before exit.
			w.Flush(context.Background())
			return
		}
	}
}

// Flush drains the pending set and recomputes each run. It returns the
// number of runs recomputed.
func (w *RefreshWorker) Flush(ctx context.Context) int {
	w.mu.Lock()
	if len(w.pending) == 0 {
		w.mu.Unlock()
		return 0
	}
	batch := w.pending
	w.pending = make(map[string]struct{})
	w.mu.Unlock()

	log := logging.Component("refresh-worker")
	recomputed := 0
	for runID := range batch {
		if _, err := w.niches.Recompute(ctx, runID); err != nil {
			log.Warn().Err(err).Str("run", runID).Msg("recompute failed")
			continue
		}
		recomputed++
	}

	if recomputed > 0 {
		log.Info().Int("recomputed", recomputed).Int("requested", len(batch)).Msg("batch complete")
	}
	return recomputed
}
