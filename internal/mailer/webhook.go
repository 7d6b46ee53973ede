package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// WebhookRequest is the JSON body posted to a mail relay webhook.
type WebhookRequest struct {
	To       string `json:"to"`
	Name     string `json:"name,omitempty"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	ReplyTo  string `json:"reply_to,omitempty"`
	Langcode string `json:"langcode,omitempty"`
}

// WebhookSender delivers mail by POSTing rendered messages to an HTTP relay.
// The base URL is injected from config so tests can point to a local mock.
type WebhookSender struct {
	baseURL    string
	httpClient *http.Client
}

func NewWebhookSender(baseURL string, timeout time.Duration) *WebhookSender {
	return &WebhookSender{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts the rendered mail and expects a 202 Accepted response.
func (s *WebhookSender) Send(ctx context.Context, msg Message) error {
	subject, html, err := Render(msg)
	if err != nil {
		return err
	}

	body, err := json.Marshal(WebhookRequest{
		To:       msg.To,
		Name:     msg.Params.DisplayName,
		Subject:  subject,
		HTML:     html,
		ReplyTo:  msg.ReplyTo,
		Langcode: msg.Langcode,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("unexpected relay status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that WebhookSender implements Sender
var _ Sender = (*WebhookSender)(nil)
