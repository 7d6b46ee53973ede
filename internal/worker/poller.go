package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
	"github.com/notifyhub/user-mail-queue/internal/repository"
)

// Poller claims rows from the queue table and feeds them to the buffer.
//
// Claimed rows carry a lease in the database, so a row that does not fit into
// the buffer is simply picked up again after the LeaseReaper releases it.
type Poller struct {
	repo      repository.QueueRepository
	buf       *queue.Buffer
	queueName string
	batch     int
	lease     time.Duration
	interval  time.Duration
	logger    *zap.Logger
}

// NewPoller claims at most batch rows of queueName every interval, leasing
// each for lease, and pushes them into buf.
func NewPoller(
	repo repository.QueueRepository,
	buf *queue.Buffer,
	queueName string,
	batch int,
	lease time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) *Poller {
	return &Poller{
		repo: repo, buf: buf, queueName: queueName,
		batch: batch, lease: lease, interval: interval, logger: logger,
	}
}

// Run ticks every interval and claims whatever the buffer has room for.
// Stops cleanly when ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.logger.Info("queue poller started",
		zap.String("queue", p.queueName), zap.Duration("interval", p.interval))

	for {
		select {
		case <-ctx.Done():
			p.logger.Info("queue poller stopping")
			return
		case <-ticker.C:
			p.poll(ctx)
		}
	}
}

func (p *Poller) poll(ctx context.Context) int {
	room := p.buf.Capacity() - p.buf.Depth()
	if room <= 0 {
		return 0
	}
	limit := p.batch
	if limit > room {
		limit = room
	}

	items, err := p.repo.Claim(ctx, p.queueName, limit, p.lease)
	if err != nil {
		p.logger.Error("queue claim error", zap.Error(err))
		return 0
	}

	enqueued := 0
	for _, it := range items {
		if err := p.buf.Enqueue(it); err != nil {
			if errors.Is(err, domain.ErrQueueFull) {
				p.logger.Warn("buffer full: leaving claimed item for lease expiry",
					zap.Int64("queue_item_id", it.ID))
				continue
			}
			p.logger.Error("could not buffer queue item", zap.Int64("queue_item_id", it.ID), zap.Error(err))
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		p.logger.Debug("claimed queue items", zap.Int("count", enqueued))
	}
	return enqueued
}
