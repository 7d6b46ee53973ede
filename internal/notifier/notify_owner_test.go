package notifier_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyhub/user-mail-queue/internal/notifier"
)

func TestNotifyOwner_MissingOwner(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.n.NotifyOwner(context.Background(), "1000", "Digest"))
	assert.Empty(t, f.messages.Messages())
	assert.Empty(t, f.messages.Threads())
}

func TestNotifyOwner_EmptySubject(t *testing.T) {
	f := newFixture(t)

	assert.False(t, f.n.NotifyOwner(context.Background(), "3", ""))
	assert.Empty(t, f.messages.Messages())
}

func TestNotifyOwner_MissingSystemSender(t *testing.T) {
	f := newFixture(t)
	n := notifier.New(f.store, f.mail, nil, f.messages, notifier.Options{SystemSenderID: "999"}, zapNop(), notifier.Hooks{})

	assert.False(t, n.NotifyOwner(context.Background(), "3", "Digest"))
	assert.Empty(t, f.messages.Messages())
}

func TestNotifyOwner_ThreadFailure(t *testing.T) {
	f := newFixture(t)
	f.messages.ThreadErr = errors.New("db down")

	assert.False(t, f.n.NotifyOwner(context.Background(), "3", "Digest"))
	assert.Empty(t, f.messages.Messages())
}

func TestNotifyOwner_SaveFailureSkipsAppend(t *testing.T) {
	f := newFixture(t)
	f.messages.SaveErr = errors.New("storage exception")

	assert.True(t, f.n.NotifyOwner(context.Background(), "3", "Digest"))

	threads := f.messages.Threads()
	require.Len(t, threads, 1)
	assert.Empty(t, f.messages.ThreadMessageIDs(threads[0].ID), "an unsaved message has no id to append")
}

func TestNotifyOwner_AddFailureIsLogged(t *testing.T) {
	f := newFixture(t)
	f.messages.AddErr = errors.New("storage exception")

	assert.True(t, f.n.NotifyOwner(context.Background(), "3", "Digest"))
	assert.Len(t, f.messages.Messages(), 1)
}

func TestNotifyOwner_ReusesThread(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.n.NotifyOwner(ctx, "3", "First")
	f.n.NotifyOwner(ctx, "3", "Second")

	threads := f.messages.Threads()
	require.Len(t, threads, 1)
	assert.Len(t, f.messages.ThreadMessageIDs(threads[0].ID), 2)
}

func TestComposeCompletionMessage(t *testing.T) {
	body := notifier.ComposeCompletionMessage("Ada <script>", "Q&A")

	assert.Equal(t,
		"<strong>(This message is automatically generated)</strong>\n"+
			"Dear Ada &lt;script&gt;,\n\n"+
			"A background process sending e-mail <em>Q&amp;A</em> has just finished.",
		body)
}

func TestIsValidEmail(t *testing.T) {
	assert.True(t, notifier.IsValidEmail("a@example.com"))
	assert.False(t, notifier.IsValidEmail(""))
	assert.False(t, notifier.IsValidEmail("a@"))
	assert.False(t, notifier.IsValidEmail("plainaddress"))
}
