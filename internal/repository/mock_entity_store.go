package repository

import (
	"context"
	"sync"

	"github.com/notifyhub/user-mail-queue/internal/domain"
)

// MockEntityStore is a hand-written, in-memory EntityStore used in unit tests.
type MockEntityStore struct {
	mu       sync.RWMutex
	users    map[string]*domain.User
	contents map[string]*domain.MailContent

	// Optional error overrides — set in tests to simulate failure paths.
	LoadUserErr        error
	LoadUsersErr       error
	LoadMailContentErr error
}

func NewMockEntityStore() *MockEntityStore {
	return &MockEntityStore{
		users:    make(map[string]*domain.User),
		contents: make(map[string]*domain.MailContent),
	}
}

func (m *MockEntityStore) PutUser(u *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *u
	m.users[u.ID] = &clone
}

func (m *MockEntityStore) PutMailContent(c *domain.MailContent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	clone := *c
	m.contents[c.ID] = &clone
}

func (m *MockEntityStore) LoadUser(_ context.Context, id string) (*domain.User, error) {
	if m.LoadUserErr != nil {
		return nil, m.LoadUserErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *u
	return &clone, nil
}

func (m *MockEntityStore) LoadUsers(_ context.Context, ids []string) (map[string]*domain.User, error) {
	if m.LoadUsersErr != nil {
		return nil, m.LoadUsersErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make(map[string]*domain.User, len(ids))
	for _, id := range ids {
		if u, ok := m.users[id]; ok {
			clone := *u
			result[id] = &clone
		}
	}
	return result, nil
}

func (m *MockEntityStore) LoadMailContent(_ context.Context, id string) (*domain.MailContent, error) {
	if m.LoadMailContentErr != nil {
		return nil, m.LoadMailContentErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contents[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *c
	return &clone, nil
}
