package repository

import (
	"context"
	"strconv"
	"sync"

	"github.com/notifyhub/user-mail-queue/internal/domain"
)

// MockMessageRepository keeps threads and messages in memory.
type MockMessageRepository struct {
	mu       sync.Mutex
	threads  map[string]*domain.Thread
	messages map[string]*domain.PrivateMessage
	// thread id -> message ids in insertion order
	threadMessages map[string][]string
	seq            int

	ThreadErr error
	SaveErr   error
	AddErr    error
}

func NewMockMessageRepository() *MockMessageRepository {
	return &MockMessageRepository{
		threads:        make(map[string]*domain.Thread),
		messages:       make(map[string]*domain.PrivateMessage),
		threadMessages: make(map[string][]string),
	}
}

func (m *MockMessageRepository) ThreadForMembers(_ context.Context, memberIDs []string) (*domain.Thread, error) {
	if m.ThreadErr != nil {
		return nil, m.ThreadErr
	}
	key, members := membersKey(memberIDs)
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.threads[key]; ok {
		clone := *t
		return &clone, nil
	}
	m.seq++
	t := &domain.Thread{ID: "thread-" + strconv.Itoa(m.seq), MemberIDs: members}
	m.threads[key] = t
	clone := *t
	return &clone, nil
}

func (m *MockMessageRepository) SaveMessage(_ context.Context, pm *domain.PrivateMessage) error {
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if pm.ID == "" {
		m.seq++
		pm.ID = "message-" + strconv.Itoa(m.seq)
	}
	clone := *pm
	m.messages[pm.ID] = &clone
	return nil
}

func (m *MockMessageRepository) AddMessage(_ context.Context, threadID, messageID string) error {
	if m.AddErr != nil {
		return m.AddErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.threadMessages[threadID] = append(m.threadMessages[threadID], messageID)
	return nil
}

// Messages returns all saved messages.
func (m *MockMessageRepository) Messages() []domain.PrivateMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.PrivateMessage, 0, len(m.messages))
	for _, pm := range m.messages {
		out = append(out, *pm)
	}
	return out
}

// ThreadMessageIDs returns the message ids appended to a thread.
func (m *MockMessageRepository) ThreadMessageIDs(threadID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.threadMessages[threadID]...)
}

// Threads returns all threads.
func (m *MockMessageRepository) Threads() []domain.Thread {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Thread, 0, len(m.threads))
	for _, t := range m.threads {
		out = append(out, *t)
	}
	return out
}
