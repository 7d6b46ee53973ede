package repository

import (
	"context"
	"time"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
)

// EntityStore loads the records the mail worker reads.
// Single-record loads return domain.ErrNotFound for unknown ids; batch loads
// simply leave unknown ids out of the result.
type EntityStore interface {
	LoadUser(ctx context.Context, id string) (*domain.User, error)
	LoadUsers(ctx context.Context, ids []string) (map[string]*domain.User, error)
	LoadMailContent(ctx context.Context, id string) (*domain.MailContent, error)
}

// QueueInspector counts persisted queue rows by payload text.
type QueueInspector interface {
	CountMatching(ctx context.Context, queueName, substr1, substr2 string) (int, error)
}

// QueueRepository is the persistent queue table. The pgx implementation is
// in pg_queue_repo.go; tests use the in-memory mock in mock_queue_repo.go.
type QueueRepository interface {
	QueueInspector
	EnqueueBatch(ctx context.Context, queueName string, progress *domain.BatchProgress, payloads [][]byte) error
	Claim(ctx context.Context, queueName string, limit int, lease time.Duration) ([]queue.Item, error)
	Delete(ctx context.Context, id int64) error
	ReleaseExpired(ctx context.Context, queueName string) (int, error)
}

// BatchCounter tracks the remaining item count of scheduled jobs.
type BatchCounter interface {
	// Decrement lowers the remaining count and returns the new value.
	// Unknown batches yield domain.ErrNotFound.
	Decrement(ctx context.Context, batchID string) (int, error)
}

// MessageRepository persists private message threads.
type MessageRepository interface {
	// ThreadForMembers finds or creates the thread for exactly this member set.
	ThreadForMembers(ctx context.Context, memberIDs []string) (*domain.Thread, error)
	SaveMessage(ctx context.Context, m *domain.PrivateMessage) error
	AddMessage(ctx context.Context, threadID, messageID string) error
}
