package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/repository"
)

// LeaseReaper releases queue rows whose lease expired without the row being
// deleted, e.g. because the process died mid-item or the buffer was full.
//
// The lease lives in the database, so redelivery survives restarts.
type LeaseReaper struct {
	repo      repository.QueueRepository
	queueName string
	interval  time.Duration
	logger    *zap.Logger
}

func NewLeaseReaper(
	repo repository.QueueRepository,
	queueName string,
	interval time.Duration,
	logger *zap.Logger,
) *LeaseReaper {
	return &LeaseReaper{repo: repo, queueName: queueName, interval: interval, logger: logger}
}

// Run ticks every interval and releases expired leases.
// Stops cleanly when ctx is cancelled.
func (lr *LeaseReaper) Run(ctx context.Context) {
	ticker := time.NewTicker(lr.interval)
	defer ticker.Stop()

	lr.logger.Info("lease reaper started", zap.Duration("interval", lr.interval))

	for {
		select {
		case <-ctx.Done():
			lr.logger.Info("lease reaper stopping")
			return
		case <-ticker.C:
			lr.reap(ctx)
		}
	}
}

func (lr *LeaseReaper) reap(ctx context.Context) {
	n, err := lr.repo.ReleaseExpired(ctx, lr.queueName)
	if err != nil {
		lr.logger.Error("lease release error", zap.Error(err))
		return
	}
	if n > 0 {
		lr.logger.Info("released expired leases", zap.Int("count", n))
	}
}
