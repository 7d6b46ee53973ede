package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/notifyhub/user-mail-queue/internal/domain"
	"github.com/notifyhub/user-mail-queue/internal/queue"
)

// MockQueueRepository is an in-memory queue table. CountMatching uses the
// same substring semantics as the LIKE query of the pgx implementation.
type MockQueueRepository struct {
	mu       sync.Mutex
	nextID   int64
	rows     []queue.Item
	progress map[string]*domain.BatchProgress

	CountErr     error
	EnqueueErr   error
	ClaimErr     error
	DeleteErr    error
	DecrementErr error
}

func NewMockQueueRepository() *MockQueueRepository {
	return &MockQueueRepository{progress: make(map[string]*domain.BatchProgress)}
}

// Add inserts a raw payload and returns its row id.
func (m *MockQueueRepository) Add(queueName string, payload []byte) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(queueName, payload, time.Now().UTC())
}

func (m *MockQueueRepository) addLocked(queueName string, payload []byte, at time.Time) int64 {
	m.nextID++
	m.rows = append(m.rows, queue.Item{ID: m.nextID, Name: queueName, Data: payload, Created: at})
	return m.nextID
}

// Rows returns a snapshot of the table.
func (m *MockQueueRepository) Rows() []queue.Item {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]queue.Item, len(m.rows))
	copy(out, m.rows)
	return out
}

// Progress returns the stored progress record of a batch.
func (m *MockQueueRepository) Progress(batchID string) (domain.BatchProgress, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[batchID]
	if !ok {
		return domain.BatchProgress{}, false
	}
	return *p, true
}

func (m *MockQueueRepository) CountMatching(_ context.Context, queueName, substr1, substr2 string) (int, error) {
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, r := range m.rows {
		data := string(r.Data)
		if r.Name == queueName && strings.Contains(data, substr1) && strings.Contains(data, substr2) {
			n++
		}
	}
	return n, nil
}

func (m *MockQueueRepository) EnqueueBatch(_ context.Context, queueName string, progress *domain.BatchProgress, payloads [][]byte) error {
	if m.EnqueueErr != nil {
		return m.EnqueueErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if progress != nil {
		clone := *progress
		m.progress[progress.BatchID] = &clone
	}
	now := time.Now().UTC()
	for _, p := range payloads {
		m.addLocked(queueName, p, now)
	}
	return nil
}

func (m *MockQueueRepository) Claim(_ context.Context, queueName string, limit int, lease time.Duration) ([]queue.Item, error) {
	if m.ClaimErr != nil {
		return nil, m.ClaimErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	expire := time.Now().Add(lease)
	var claimed []queue.Item
	for i := range m.rows {
		if len(claimed) == limit {
			break
		}
		if m.rows[i].Name != queueName || m.rows[i].Expire != nil {
			continue
		}
		e := expire
		m.rows[i].Expire = &e
		claimed = append(claimed, m.rows[i])
	}
	return claimed, nil
}

func (m *MockQueueRepository) Delete(_ context.Context, id int64) error {
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, r := range m.rows {
		if r.ID == id {
			m.rows = append(m.rows[:i], m.rows[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *MockQueueRepository) ReleaseExpired(_ context.Context, queueName string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	n := 0
	for i := range m.rows {
		if m.rows[i].Name == queueName && m.rows[i].Expire != nil && m.rows[i].Expire.Before(now) {
			m.rows[i].Expire = nil
			n++
		}
	}
	return n, nil
}

func (m *MockQueueRepository) Decrement(_ context.Context, batchID string) (int, error) {
	if m.DecrementErr != nil {
		return 0, m.DecrementErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.progress[batchID]
	if !ok {
		return 0, domain.ErrNotFound
	}
	p.Remaining--
	return p.Remaining, nil
}
