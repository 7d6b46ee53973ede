package notifier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/notifier"
	"github.com/notifyhub/user-mail-queue/internal/queue"
	"github.com/notifyhub/user-mail-queue/internal/repository"
)

func zapNop() *zap.Logger { return zap.NewNop() }

func seedBatch(t *testing.T, repo *repository.MockQueueRepository, batchID string, items ...domain.QueueItem) {
	t.Helper()
	payloads := make([][]byte, len(items))
	for i, it := range items {
		it.BatchID = batchID
		b, err := queue.Encode(it)
		require.NoError(t, err)
		payloads[i] = b
	}
	require.NoError(t, repo.EnqueueBatch(context.Background(), queueName, &domain.BatchProgress{
		BatchID: batchID, MailContentID: items[0].MailContentID, Total: len(items), Remaining: len(items),
	}, payloads))
}

func TestCounterDetector_LastExactlyOnce(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	a := domain.QueueItem{MailContentID: "4", UserIDs: []string{"7"}, BatchID: "b1"}
	b := domain.QueueItem{MailContentID: "4", UserIDs: []string{"42"}, BatchID: "b1"}
	seedBatch(t, repo, "b1", a, b)

	d := notifier.NewCounterDetector(repo, notifier.NewPatternDetector(repo, queueName, zapNop()), zapNop())
	ctx := context.Background()

	assert.False(t, d.IsLastItem(ctx, a))
	assert.True(t, d.IsLastItem(ctx, b))
	assert.False(t, d.IsLastItem(ctx, b), "a redelivered item must not complete the batch twice")
}

func TestCounterDetector_FallsBackWithoutBatch(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	item := domain.QueueItem{MailContentID: "42", UserIDs: []string{"7"}}
	data, _ := queue.Encode(item)
	repo.Add(queueName, data)

	d := notifier.NewCounterDetector(repo, notifier.NewPatternDetector(repo, queueName, zapNop()), zapNop())

	assert.True(t, d.IsLastItem(context.Background(), item))

	item.BatchID = "unknown"
	assert.True(t, d.IsLastItem(context.Background(), item), "unknown batches use the pattern count")
}

func TestCounterDetector_DecrementError(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	repo.DecrementErr = errors.New("db down")
	d := notifier.NewCounterDetector(repo, notifier.NewPatternDetector(repo, queueName, zapNop()), zapNop())

	assert.False(t, d.IsLastItem(context.Background(), domain.QueueItem{MailContentID: "1", BatchID: "b"}))
}

func TestPatternDetector_IgnoresOtherQueues(t *testing.T) {
	repo := repository.NewMockQueueRepository()
	item := domain.QueueItem{MailContentID: "42", UserIDs: []string{"7"}}
	data, _ := queue.Encode(item)
	repo.Add(queueName, data)
	repo.Add("other_queue", data)

	d := notifier.NewPatternDetector(repo, queueName, zapNop())
	assert.True(t, d.IsLastItem(context.Background(), item))
}
