package auctionwatcher

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper ends auctions whose end time has passed.
type Sweeper interface {
	EndExpired(ctx context.Context) (int, error)
}

// SweepOnce runs a single expiry pass. Errors are logged, not returned,
// so the schedule keeps going.
func SweepOnce(ctx context.Context, svc Sweeper) {
	n, err := svc.EndExpired(ctx)
	if err != nil {
		zap.L().Warn("auction.sweep_failed", zap.Error(err))
		return
	}
	if n > 0 {
		zap.L().Debug("auction.sweep", zap.Int("ended", n))
	}
}

// Run sweeps expired auctions on the given cron spec until ctx is done.
// Run must be started once at service boot.
func Run(ctx context.Context, spec string, svc Sweeper) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(spec, func() { SweepOnce(ctx, svc) }); err != nil {
		return fmt.Errorf("schedule expiry sweep %q: %w", spec, err)
	}

	zap.L().Info("auction.watcher_started", zap.String("spec", spec))
	c.Start()
	<-ctx.Done()
	// Wait for an in-flight sweep.
	<-c.Stop().Done()
	return nil
}
