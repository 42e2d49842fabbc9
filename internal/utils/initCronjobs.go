package utils

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Sweeper removes abandoned rooms and offers.
type Sweeper interface {
	SweepStaleRooms(ctx context.Context, olderThan time.Duration) (int, error)
	ExpireStaleOffers(ctx context.Context, olderThan time.Duration) (int, error)
}

// CronCleaner schedules the periodic cleanup jobs and starts the scheduler.
// The caller stops it on shutdown.
func CronCleaner(s Sweeper, staleRoomAfter, staleOfferAfter time.Duration, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	// Rooms nobody touched for staleRoomAfter are torn down.
	if _, err := c.AddFunc("@hourly", func() {
		runSweep(logger, "stale rooms", func(ctx context.Context) (int, error) {
			return s.SweepStaleRooms(ctx, staleRoomAfter)
		})
	}); err != nil {
		return nil, err
	}

	// "minute hour dom month dow"
	if _, err := c.AddFunc("0 3 * * *", func() {
		runSweep(logger, "stale offers", func(ctx context.Context) (int, error) {
			return s.ExpireStaleOffers(ctx, staleOfferAfter)
		})
	}); err != nil {
		return nil, err
	}

	c.Start()
	return c, nil
}

func runSweep(logger *zap.Logger, name string, fn func(ctx context.Context) (int, error)) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	logger.Info("cleanup started", zap.String("job", name))
	n, err := fn(ctx)
	if err != nil {
		logger.Error("cleanup failed", zap.String("job", name), zap.Error(err))
		return
	}
	logger.Info("cleanup finished", zap.String("job", name), zap.Int("affected", n))
}
