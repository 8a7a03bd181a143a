package mocks

import (
	"context"
	"sort"
	"sync"

	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

// MockEventLog is a mock implementation of EventLog for testing
type MockEventLog struct {
	mu     sync.RWMutex
	events map[string]*store.ARIEvent

	// For tracking calls in tests
	InsertCalls    []string
	SetStatusCalls []SetStatusCall

	// Error injection
	InsertErr    error
	SetStatusErr error
}

// SetStatusCall records parameters passed to SetStatus
type SetStatusCall struct {
	EventID string
	Status  store.EventStatus
	Error   string
}

// NewMockEventLog creates a new MockEventLog
func NewMockEventLog() *MockEventLog {
	return &MockEventLog{events: make(map[string]*store.ARIEvent)}
}

func (m *MockEventLog) Insert(ctx context.Context, ev *store.ARIEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.InsertCalls = append(m.InsertCalls, ev.ID)
	if m.InsertErr != nil {
		return m.InsertErr
	}
	if _, ok := m.events[ev.ID]; ok {
		return store.ErrDuplicateEvent
	}
	cp := *ev
	m.events[ev.ID] = &cp
	return nil
}

func (m *MockEventLog) SetStatus(ctx context.Context, eventID string, status store.EventStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.SetStatusCalls = append(m.SetStatusCalls, SetStatusCall{EventID: eventID, Status: status, Error: errMsg})
	if m.SetStatusErr != nil {
		return m.SetStatusErr
	}
	ev, ok := m.events[eventID]
	if !ok {
		return store.ErrNotFound
	}
	ev.Status = status
	ev.Error = errMsg
	return nil
}

func (m *MockEventLog) Get(ctx context.Context, eventID string) (*store.ARIEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ev, ok := m.events[eventID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (m *MockEventLog) ListDeadLetters(ctx context.Context, hotelID string, limit int) ([]store.ARIEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.ARIEvent
	for _, ev := range m.events {
		if ev.HotelID == hotelID && ev.Status == store.StatusError {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
