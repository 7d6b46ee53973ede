package mailer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

type fakeDialer struct {
	sent []*gomail.Message
	err  error
}

func (f *fakeDialer) DialAndSend(m ...*gomail.Message) error {
	f.sent = append(f.sent, m...)
	return f.err
}

func newTestSMTPSender(d dialer) *SMTPSender {
	s := NewSMTPSender(SMTPConfig{Host: "smtp.example.com", Port: 25, SenderAddress: "noreply@example.com", SenderName: "Community"}, zap.NewNop())
	s.dialer = d
	return s
}

func TestSMTPSender_Headers(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSMTPSender(d)

	err := s.Send(context.Background(), Message{
		Key:      KeyActionSendEmail,
		To:       "guest@example.com",
		Langcode: "de",
		ReplyTo:  "owner@example.com",
		Params:   Params{Subject: "Digest", Message: "hi", DisplayName: "Guest"},
	})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)

	m := d.sent[0]
	assert.Equal(t, []string{"Digest"}, m.GetHeader("Subject"))
	assert.Equal(t, []string{"owner@example.com"}, m.GetHeader("Reply-To"))
	assert.Equal(t, []string{"de"}, m.GetHeader("Content-Language"))
	require.Len(t, m.GetHeader("To"), 1)
	assert.Contains(t, m.GetHeader("To")[0], "guest@example.com")
	assert.Contains(t, m.GetHeader("From")[0], "noreply@example.com")
}

func TestSMTPSender_OmitsEmptyReplyTo(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSMTPSender(d)

	require.NoError(t, s.Send(context.Background(), Message{Key: KeyActionSendEmail, To: "a@example.com"}))
	assert.Empty(t, d.sent[0].GetHeader("Reply-To"))
}

func TestSMTPSender_DialError(t *testing.T) {
	dialErr := errors.New("connection refused")
	s := newTestSMTPSender(&fakeDialer{err: dialErr})

	err := s.Send(context.Background(), Message{Key: KeyActionSendEmail, To: "a@example.com"})
	assert.ErrorIs(t, err, dialErr)
}

func TestSMTPSender_CancelledContext(t *testing.T) {
	d := &fakeDialer{}
	s := newTestSMTPSender(d)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, s.Send(ctx, Message{Key: KeyActionSendEmail, To: "a@example.com"}), context.Canceled)
	assert.Empty(t, d.sent)
}
