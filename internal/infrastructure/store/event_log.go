package store

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"
	"time"
)

// EventStatus is the saga state recorded on an ARI event.
type EventStatus string

const (
	StatusReceived   EventStatus = "RECEIVED"
	StatusDeduped    EventStatus = "DEDUPED"
	StatusValidated  EventStatus = "VALIDATED"
	StatusNormalized EventStatus = "NORMALIZED"
	StatusApplied    EventStatus = "APPLIED"
	StatusError      EventStatus = "ERROR"
)

// ARI event types.
const (
	EventTypeAvailability = "AVAILABILITY"
	EventTypeRate         = "RATE"
	EventTypeRestriction  = "RESTRICTION"
)

// ErrDuplicateEvent is returned by Insert when an event with the same ID is
// already in the log. The uniqueness constraint on the ID is the dedupe
// mechanism: callers must treat this error as "already applied", never retry.
var ErrDuplicateEvent = errors.New("duplicate event id")

// ARIEvent is one availability/rate/restriction change request. Rows are
// append-only: once a terminal status (DEDUPED, APPLIED, ERROR) is recorded
// the event is never mutated again. The log doubles as the idempotency ledger
// and the processing audit trail.
type ARIEvent struct {
	ID           string          `json:"id"`
	Type         string          `json:"type"`
	HotelID      string          `json:"hotel_id"`
	RoomTypeCode string          `json:"room_type_code"`
	RatePlanCode string          `json:"rate_plan_code,omitempty"`
	ChannelCode  string          `json:"channel_code,omitempty"`
	From         time.Time       `json:"from"`
	To           time.Time       `json:"to"`
	Payload      json.RawMessage `json:"payload"`
	OccurredAt   time.Time       `json:"occurred_at"`
	ReceivedAt   time.Time       `json:"received_at"`
	Status       EventStatus     `json:"status"`
	Error        string          `json:"error,omitempty"`
}

// EventLog stores ARI events keyed by their idempotency ID.
type EventLog interface {
	// Insert persists a new event. Returns ErrDuplicateEvent when the ID is
	// already present; any other error is an infrastructure failure.
	Insert(ctx context.Context, ev *ARIEvent) error
	// SetStatus records a stage transition, with an error message for ERROR.
	SetStatus(ctx context.Context, eventID string, status EventStatus, errMsg string) error
	Get(ctx context.Context, eventID string) (*ARIEvent, error)
	// ListDeadLetters returns the most recent ERROR events for a hotel.
	ListDeadLetters(ctx context.Context, hotelID string, limit int) ([]ARIEvent, error)
}

// MemoryEventLog is an in-memory EventLog used in tests and single-node
// development mode.
type MemoryEventLog struct {
	mu     sync.RWMutex
	events map[string]*ARIEvent
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{events: make(map[string]*ARIEvent)}
}

func (l *MemoryEventLog) Insert(ctx context.Context, ev *ARIEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.events[ev.ID]; ok {
		return ErrDuplicateEvent
	}
	cp := *ev
	l.events[ev.ID] = &cp
	return nil
}

func (l *MemoryEventLog) SetStatus(ctx context.Context, eventID string, status EventStatus, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	ev, ok := l.events[eventID]
	if !ok {
		return ErrNotFound
	}
	ev.Status = status
	ev.Error = errMsg
	return nil
}

func (l *MemoryEventLog) Get(ctx context.Context, eventID string) (*ARIEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	ev, ok := l.events[eventID]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *ev
	return &cp, nil
}

func (l *MemoryEventLog) ListDeadLetters(ctx context.Context, hotelID string, limit int) ([]ARIEvent, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []ARIEvent
	for _, ev := range l.events {
		if ev.HotelID == hotelID && ev.Status == StatusError {
			out = append(out, *ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.After(out[j].ReceivedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
