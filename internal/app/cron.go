package app

import (
	"context"
	"time"

	"github.com/dvinyl/core/internal/pkg/throttle"
	"go.uber.org/zap"
)

const throttleJanitorInterval = time.Minute

// startBackgroundJobs launches the periodic jobs. They stop with ctx.
func startBackgroundJobs(ctx context.Context, th throttle.Throttle, logger *zap.Logger) {
	if mem, ok := th.(*throttle.Memory); ok {
		logger.Debug("throttle janitor started", zap.Duration("interval", throttleJanitorInterval))
		go mem.RunJanitor(ctx, throttleJanitorInterval)
	}
}
