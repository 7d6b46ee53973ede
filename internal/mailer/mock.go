package mailer

import (
	"context"
	"sync"
)

// MockSender records every message it is asked to send. Addresses listed in
// FailFor return the configured error instead.
type MockSender struct {
	mu      sync.Mutex
	sent    []Message
	FailFor map[string]error
}

func NewMockSender() *MockSender {
	return &MockSender{FailFor: make(map[string]error)}
}

func (m *MockSender) Send(_ context.Context, msg Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	if err, ok := m.FailFor[msg.To]; ok {
		return err
	}
	return nil
}

// Calls returns every attempted message, failed ones included.
func (m *MockSender) Calls() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Message(nil), m.sent...)
}
