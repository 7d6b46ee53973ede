package mailer

import "context"

// KeyActionSendEmail is the template used for bulk mail deliveries.
const KeyActionSendEmail = "action_send_email"

// Params is the template context of a mail.
type Params struct {
	Subject string
	// Message is stored content authored through a filtered text format and
	// is rendered without escaping.
	Message     string
	DisplayName string
}

// Message describes one mail to one recipient.
type Message struct {
	Key      string
	To       string
	Langcode string
	ReplyTo  string
	Params   Params
}

// Sender abstracts mail delivery. Mocking this interface in tests gives full
// control over delivery behaviour without an SMTP server.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}
