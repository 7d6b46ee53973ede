package mailer

import (
	"context"
	"crypto/tls"
	"fmt"

	"go.uber.org/zap"
	"gopkg.in/gomail.v2"
)

// SMTPConfig holds the connection and envelope settings of SMTPSender.
type SMTPConfig struct {
	Host               string
	Port               int
	User               string
	Password           string
	InsecureSkipVerify bool
	SenderAddress      string
	SenderName         string
}

type dialer interface {
	DialAndSend(m ...*gomail.Message) error
}

// SMTPSender delivers mail through an SMTP relay. It opens one connection
// per message and never retries: the caller decides what a failure means.
type SMTPSender struct {
	dialer   dialer
	from     string
	fromName string
	logger   *zap.Logger
}

func NewSMTPSender(cfg SMTPConfig, logger *zap.Logger) *SMTPSender {
	d := gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password)
	if cfg.InsecureSkipVerify {
		logger.Warn("TLS verification disabled for SMTP relay", zap.String("host", cfg.Host))
		d.TLSConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}

	from := cfg.SenderAddress
	if from == "" {
		from = "noreply@localhost"
	}
	name := cfg.SenderName
	if name == "" {
		name = "Community"
	}

	logger.Info("smtp sender configured",
		zap.String("host", cfg.Host),
		zap.Int("port", cfg.Port),
		zap.String("from", from),
	)
	return &SMTPSender{dialer: d, from: from, fromName: name, logger: logger}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m, err := s.build(msg)
	if err != nil {
		return err
	}
	if err := s.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("send mail to %s: %w", msg.To, err)
	}
	s.logger.Debug("mail sent", zap.String("to", msg.To), zap.String("langcode", msg.Langcode))
	return nil
}

func (s *SMTPSender) build(msg Message) (*gomail.Message, error) {
	subject, body, err := Render(msg)
	if err != nil {
		return nil, err
	}

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	if msg.Params.DisplayName != "" {
		m.SetAddressHeader("To", msg.To, msg.Params.DisplayName)
	} else {
		m.SetHeader("To", msg.To)
	}
	m.SetHeader("Subject", subject)
	if msg.ReplyTo != "" {
		m.SetHeader("Reply-To", msg.ReplyTo)
	}
	if msg.Langcode != "" {
		m.SetHeader("Content-Language", msg.Langcode)
	}
	m.SetBody("text/html", body)
	return m, nil
}

var _ Sender = (*SMTPSender)(nil)
