package store

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper reclaims expired sessions on a timer, independent of login
// traffic, so entries cannot linger under low create volume.
type Sweeper struct {
	store    Store
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(store Store, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{store: store, interval: interval, logger: logger}
}

// Run sweeps until ctx is cancelled. Sweep failures are logged and the
// loop keeps going.
func (w *Sweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			removed, err := w.store.Sweep(ctx)
			if err != nil {
				w.logger.Warn("session sweep failed", "error", err)
				continue
			}
			if removed > 0 {
				w.logger.Debug("session sweep completed", "removed", removed)
			}
		}
	}
}
