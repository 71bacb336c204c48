package promotion

import (
	"context"
	"fmt"
	"time"

	"bookstore-orders/internal/logger"
)

// RunSweeper periodically syncs stored promotion statuses with their
// computed values so listing UIs stay roughly current. Best effort: failures
// are logged and retried on the next tick. Enforcement never reads the
// stored column, so a missed sweep is harmless.
func RunSweeper(ctx context.Context, svc *Service, interval time.Duration, log *logger.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("SWEEP", fmt.Sprintf("promotion status sweeper started (interval %s)", interval))

	for {
		select {
		case <-ctx.Done():
			log.Info("SWEEP", "promotion status sweeper stopped")
			return
		case <-ticker.C:
			updated, err := svc.SweepStatuses(ctx)
			if err != nil {
				log.Error("SWEEP", fmt.Sprintf("promotion status sweep failed: %v", err))
				continue
			}
			if updated > 0 {
				log.Info("SWEEP", fmt.Sprintf("promotion status sweep updated %d rows", updated))
			}
		}
	}
}
