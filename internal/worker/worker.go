package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
	"github.com/notifyhub/user-mail-queue/internal/repository"
)

// Processor handles one decoded queue item. *notifier.BatchMailNotifier
// satisfies it.
type Processor interface {
	ProcessItem(ctx context.Context, item domain.QueueItem) domain.Report
}

// OutcomeUndecodable labels rows whose payload could not be parsed.
const OutcomeUndecodable = "undecodable"

// OutcomeProcessed labels items that reached the delivery stage.
const OutcomeProcessed = "processed"

// Worker is a single goroutine that pulls claimed rows from the buffer,
// hands them to the processor and deletes them from the queue table.
type Worker struct {
	id     int
	buf    *queue.Buffer
	repo   repository.QueueRepository
	proc   Processor
	logger *zap.Logger

	// Hook for metrics — injected by the pool so the worker stays metrics-agnostic.
	onProcessed func(outcome string, latency time.Duration)
}

// NewWorker constructs a worker. onProcessed is optional (nil = no-op).
func NewWorker(
	id int,
	buf *queue.Buffer,
	repo repository.QueueRepository,
	proc Processor,
	logger *zap.Logger,
	onProcessed func(string, time.Duration),
) *Worker {
	if onProcessed == nil {
		onProcessed = func(string, time.Duration) {}
	}
	return &Worker{
		id: id, buf: buf, repo: repo, proc: proc,
		logger: logger, onProcessed: onProcessed,
	}
}

// Run blocks until ctx is cancelled, processing one queue item per iteration.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("worker started", zap.Int("id", w.id))
	for {
		item, ok := w.buf.Dequeue(ctx)
		if !ok {
			w.logger.Info("worker stopping", zap.Int("id", w.id))
			return
		}
		w.process(ctx, item)
	}
}

// process consumes one row. The row is deleted whatever the outcome: partial
// failures are not requeued. If the delete fails, the lease expires and the
// item is delivered again.
//
// Cancelling ctx stops the worker between items only; an item that has been
// dequeued always runs to completion so none of its recipients are dropped.
func (w *Worker) process(ctx context.Context, row queue.Item) {
	start := time.Now()
	log := w.logger.With(zap.Int64("queue_item_id", row.ID))
	pctx := context.WithoutCancel(ctx)

	outcome := OutcomeProcessed
	item, err := queue.Decode(row.Data)
	if err != nil {
		log.Warn("dropping undecodable queue item", zap.Error(err))
		outcome = OutcomeUndecodable
	} else {
		report := w.proc.ProcessItem(pctx, item)
		if report.Skipped != domain.SkipNone {
			outcome = string(report.Skipped)
		}
	}

	if err := w.repo.Delete(pctx, row.ID); err != nil {
		log.Error("failed to delete consumed queue item", zap.Error(err))
	}

	w.onProcessed(outcome, time.Since(start))
}
