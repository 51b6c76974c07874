package main

import (
	"context"
	"time"

	"github.com/ignatzorin/hive-backend/internal/goroutine"
	"github.com/ignatzorin/hive-backend/internal/logger"
	"github.com/ignatzorin/hive-backend/internal/service"
)

// startSweeper запускает Sweep каждые interval. interval <= 0 отключает таймер,
// тогда прогон делается внешним cron через `gigctl sweep`.
func startSweeper(ctx context.Context, sweeper *service.AutoApprovalService, interval time.Duration) {
	if interval <= 0 {
		logger.Log.Info("auto-approval ticker disabled")
		return
	}

	goroutine.SafeGoWithContext(ctx, "auto-approval-ticker", func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				// Прогоны не перекрываются внутри процесса. Параллельный прогон из cron безопасен.
				if _, err := sweeper.Sweep(ctx); err != nil {
					logger.Op("auto_approval.tick").WithError(err).Warn("sweep failed")
				}
			}
		}
	})
}
