// Package worker runs background jobs inside the API process.
package worker

import (
	"context"
	"sync"
	"time"

	"amethyst-storefront/internal/core/ports"

	"github.com/rs/zerolog"
)

// Sweeper triggers a batch reconciliation on a fixed interval.
type Sweeper struct {
	recon    ports.ReconciliationService
	interval time.Duration
	log      zerolog.Logger
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a periodic sweeper.
func NewSweeper(recon ports.ReconciliationService, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Sweeper{
		recon:    recon,
		interval: interval,
		log:      log,
		stopCh:   make(chan struct{}),
	}
}

// Start blocks, sweeping once immediately and then on every tick, until ctx
// is done or Stop is called.
func (w *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info().Dur("interval", w.interval).Msg("payment sweeper started")
	w.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("payment sweeper shutting down")
			return
		case <-w.stopCh:
			w.log.Info().Msg("payment sweeper stopped")
			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the sweeper. Safe to call more than once.
func (w *Sweeper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
}

func (w *Sweeper) sweep(ctx context.Context) {
	res, err := w.recon.Sweep(ctx)
	if err != nil {
		w.log.Error().Err(err).Msg("payment sweep failed")
		return
	}
	if res.ConfirmedCount > 0 || res.Failed > 0 {
		w.log.Info().
			Int("confirmed", res.ConfirmedCount).
			Int("failed", res.Failed).
			Int("total_checked", res.TotalChecked).
			Msg("payment sweep finished")
	}
}
