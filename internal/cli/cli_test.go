package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
	"github.com/notifyhub/user-mail-queue/internal/repository"
	"github.com/notifyhub/user-mail-queue/internal/service"
)

type memBackend struct {
	*service.MailJobService
	closed bool
}

func (b *memBackend) Close() { b.closed = true }

type harness struct {
	out      *bytes.Buffer
	repo     *repository.MockQueueRepository
	backend  *memBackend
	migrated []string
}

func newHarness() *harness {
	h := &harness{out: &bytes.Buffer{}, repo: repository.NewMockQueueRepository()}
	store := repository.NewMockEntityStore()
	store.PutMailContent(&domain.MailContent{ID: "42", Kind: domain.MailKindEmail, Subject: "Digest"})
	h.backend = &memBackend{}
	h.backend.MailJobService = service.NewMailJobService(store, h.repo, "user_email_queue", 2, zap.NewNop(), nil)
	return h
}

func (h *harness) run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRootCommand(Config{
		OutputWriter: h.out,
		Open: func(_ context.Context, _ Options, _ *zap.Logger) (Backend, error) {
			return h.backend, nil
		},
		Migrate: func(databaseURL, sourceURL string) error {
			h.migrated = append(h.migrated, databaseURL, sourceURL)
			return nil
		},
	})
	root.SetArgs(append([]string{"--database-url", "postgres://localhost/mail"}, args...))
	root.SetOut(h.out)
	root.SetErr(&bytes.Buffer{})
	return root.Execute()
}

func TestEnqueue_JSON(t *testing.T) {
	h := newHarness()

	err := h.run(t, "enqueue", "--mail", "42", "--users", "1,2,3", "--address", "jane@example.com:Jane Doe", "-o", "json")
	require.NoError(t, err)

	var job domain.ScheduledJob
	require.NoError(t, json.Unmarshal(h.out.Bytes(), &job))
	assert.Equal(t, 3, job.Items)
	assert.Equal(t, 4, job.Recipients)
	assert.True(t, h.backend.closed)

	rows := h.repo.Rows()
	require.Len(t, rows, 3)
	item, err := queue.Decode(rows[2].Data)
	require.NoError(t, err)
	require.Len(t, item.RawRecipients, 1)
	assert.Equal(t, "Jane Doe", item.RawRecipients[0].DisplayName)
}

func TestPending_YAML(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "enqueue", "--mail", "42", "--users", "1,2,3"))
	h.out.Reset()

	require.NoError(t, h.run(t, "pending", "--mail", "42", "-o", "yaml"))

	var res pendingResult
	require.NoError(t, yaml.Unmarshal(h.out.Bytes(), &res))
	assert.Equal(t, "42", res.MailID)
	assert.Equal(t, 2, res.Pending)
}

func TestPending_Table(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "pending", "--mail", "42"))
	assert.Contains(t, h.out.String(), "PENDING")
}

func TestEnqueue_RequiresMail(t *testing.T) {
	h := newHarness()
	assert.Error(t, h.run(t, "enqueue", "--users", "1"))
}

func TestEnqueue_UnknownOutput(t *testing.T) {
	h := newHarness()
	assert.Error(t, h.run(t, "enqueue", "--mail", "42", "--users", "1", "-o", "xml"))
}

func TestMigrate(t *testing.T) {
	h := newHarness()
	require.NoError(t, h.run(t, "migrate", "--migrations", "file:///srv/migrations"))
	assert.Equal(t, []string{"postgres://localhost/mail", "file:///srv/migrations"}, h.migrated)
	assert.Contains(t, h.out.String(), "migrations applied")
}

func TestParseAddresses(t *testing.T) {
	got := parseAddresses([]string{"a@example.com", " b@example.com : Bee "})
	assert.Equal(t, []domain.RawRecipient{
		{Email: "a@example.com"},
		{Email: "b@example.com", DisplayName: "Bee"},
	}, got)
}
