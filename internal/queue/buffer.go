package queue

import (
	"context"

	"github.com/notifyhub/user-mail-queue/internal/domain"
)

// Buffer hands claimed rows from the poller to the worker pool.
//
// The persistent queue table stays the source of truth: a row dropped here
// because the buffer is full is still leased in the database and becomes
// claimable again once the lease expires.
type Buffer struct {
	items chan Item
}

func NewBuffer(size int) *Buffer {
	if size <= 0 {
		size = 100
	}
	return &Buffer{items: make(chan Item, size)}
}

// Enqueue is non-blocking: if the buffer is full, ErrQueueFull is returned
// immediately rather than stalling the poller.
func (b *Buffer) Enqueue(item Item) error {
	select {
	case b.items <- item:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// Dequeue blocks until an item is available or ctx is cancelled.
// Returns (Item{}, false) when ctx is cancelled (graceful shutdown signal),
// even if items are still waiting.
func (b *Buffer) Dequeue(ctx context.Context) (Item, bool) {
	if ctx.Err() != nil {
		return Item{}, false
	}
	select {
	case item := <-b.items:
		return item, true
	case <-ctx.Done():
		return Item{}, false
	}
}

// Depth returns the number of items waiting for a worker.
func (b *Buffer) Depth() int {
	return len(b.items)
}

// Capacity returns the buffer size.
func (b *Buffer) Capacity() int {
	return cap(b.items)
}
