package worker

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Sweeper drops sessions idle longer than the given duration.
type Sweeper interface {
	Sweep(ctx context.Context, idle time.Duration) int
}

// RunSessionSweeper sweeps every interval until ctx is done.
func RunSessionSweeper(ctx context.Context, sweeper Sweeper, idle, interval time.Duration, logger *zap.Logger) {
	if sweeper == nil || idle <= 0 || interval <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sweeper.Sweep(ctx, idle); n > 0 {
				logger.Info("idle sessions swept", zap.Int("count", n))
			}
		}
	}
}
