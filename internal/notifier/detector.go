package notifier

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
	"github.com/notifyhub/user-mail-queue/internal/repository"
)

// LastItemDetector decides whether the item being processed is the final
// one of its batch. It is called exactly once per processed item.
type LastItemDetector interface {
	IsLastItem(ctx context.Context, item domain.QueueItem) bool
}

// PatternDetector counts queue rows whose payload contains both the mail
// item marker and the mail content id. The current item is still in the
// table while it is processed, so a count of exactly one means last.
//
// This is an approximation: payloads also embed user ids, so an id that is
// a substring of another id (mail "4" vs user "42") inflates the count, and
// two workers finishing the same batch concurrently can both see two rows.
type PatternDetector struct {
	inspector repository.QueueInspector
	queueName string
	logger    *zap.Logger
}

// NewPatternDetector counts rows of queueName through inspector.
func NewPatternDetector(inspector repository.QueueInspector, queueName string, logger *zap.Logger) *PatternDetector {
	return &PatternDetector{inspector: inspector, queueName: queueName, logger: logger}
}

func (d *PatternDetector) IsLastItem(ctx context.Context, item domain.QueueItem) bool {
	n, err := d.inspector.CountMatching(ctx, d.queueName, queue.ItemTypeMarker, item.MailContentID)
	if err != nil {
		d.logger.Error("last item count failed",
			zap.String("mail_id", item.MailContentID), zap.Error(err))
		return false
	}
	return n == 1
}

// CounterDetector decrements the explicit remaining counter recorded when the
// job was scheduled. Items without a batch id, or whose batch has no counter,
// are delegated to fallback.
type CounterDetector struct {
	counter  repository.BatchCounter
	fallback LastItemDetector
	logger   *zap.Logger
}

// NewCounterDetector decrements batch counters through counter and defers
// to fallback for items it cannot account for.
func NewCounterDetector(counter repository.BatchCounter, fallback LastItemDetector, logger *zap.Logger) *CounterDetector {
	return &CounterDetector{counter: counter, fallback: fallback, logger: logger}
}

func (d *CounterDetector) IsLastItem(ctx context.Context, item domain.QueueItem) bool {
	if item.BatchID == "" {
		return d.fallback.IsLastItem(ctx, item)
	}

	remaining, err := d.counter.Decrement(ctx, item.BatchID)
	if errors.Is(err, domain.ErrNotFound) {
		return d.fallback.IsLastItem(ctx, item)
	}
	if err != nil {
		d.logger.Error("batch counter decrement failed",
			zap.String("batch_id", item.BatchID), zap.Error(err))
		return false
	}
	return remaining == 0
}

var (
	_ LastItemDetector = (*PatternDetector)(nil)
	_ LastItemDetector = (*CounterDetector)(nil)
)
