package ari

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

const defaultRatePlan = "BAR"

// Publisher publishes applied changes to the distribution feed.
type Publisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// Result is what the ingestion boundary returns. Expected domain failures
// (validation, dedupe, apply errors) land here with Success=false or a
// DEDUPED status; only infrastructure failures surface as Go errors.
type Result struct {
	Success bool              `json:"success"`
	Status  store.EventStatus `json:"status"`
	Message string            `json:"message,omitempty"`
	EventID string            `json:"event_id"`
}

// Saga runs one ARI event through the fixed pipeline:
// RECEIVED -> DEDUPED | VALIDATED -> NORMALIZED -> APPLIED | ERROR.
// Every terminal state is durable in the event log; the log's uniqueness
// constraint on the event ID makes replays under at-least-once delivery
// short-circuit to DEDUPED before any write happens.
type Saga struct {
	log      store.EventLog
	ari      store.ARIWriter
	audit    store.AuditLog
	producer Publisher
	now      func() time.Time
}

func NewSaga(eventLog store.EventLog, ari store.ARIWriter, audit store.AuditLog, producer Publisher) *Saga {
	return &Saga{
		log:      eventLog,
		ari:      ari,
		audit:    audit,
		producer: producer,
		now:      time.Now,
	}
}

// DeriveEventID builds a deterministic idempotency key for callers that did
// not supply one. Callers needing dedupe across retries should always send
// their own ID: a retry with a different timestamp derives a different key.
func DeriveEventID(eventType, roomTypeCode string, occurredAt time.Time) string {
	return fmt.Sprintf("%s-%s-%d", strings.ToLower(eventType), strings.ToLower(roomTypeCode), occurredAt.UnixNano())
}

// Process ingests one event. The returned error is reserved for
// infrastructure failures; everything the caller can act on is in Result.
func (s *Saga) Process(ctx context.Context, ev *store.ARIEvent) (*Result, error) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = s.now()
	}
	if ev.ID == "" {
		ev.ID = DeriveEventID(ev.Type, ev.RoomTypeCode, ev.OccurredAt)
	}
	ev.ReceivedAt = s.now()
	ev.Status = store.StatusReceived

	// The insert is the dedupe check: a duplicate key means a previous
	// delivery already owns this ID, whatever state it reached.
	if err := s.log.Insert(ctx, ev); err != nil {
		if errors.Is(err, store.ErrDuplicateEvent) {
			log.Printf("[Saga] Event %s already processed, skipping", ev.ID)
			return &Result{Success: true, Status: store.StatusDeduped, Message: "duplicate event ignored", EventID: ev.ID}, nil
		}
		return nil, fmt.Errorf("event log insert: %w", err)
	}

	rt, reason, err := s.validate(ctx, ev)
	if err != nil {
		return nil, err
	}
	if reason != "" {
		return s.deadLetter(ctx, ev, reason)
	}
	if err := s.log.SetStatus(ctx, ev.ID, store.StatusValidated, ""); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	s.normalize(ev)
	if err := s.log.SetStatus(ctx, ev.ID, store.StatusNormalized, ""); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	if reason := s.apply(ctx, ev, rt); reason != "" {
		return s.deadLetter(ctx, ev, reason)
	}

	return s.ack(ctx, ev, rt)
}

// validate returns a non-empty reason for caller-visible failures; err is
// infrastructure only.
func (s *Saga) validate(ctx context.Context, ev *store.ARIEvent) (*store.RoomType, string, error) {
	switch ev.Type {
	case store.EventTypeAvailability, store.EventTypeRate, store.EventTypeRestriction:
	default:
		return nil, fmt.Sprintf("unknown event type %q", ev.Type), nil
	}

	if ev.From.After(ev.To) {
		return nil, fmt.Sprintf("invalid date range: %s is after %s",
			ev.From.Format(store.DateFormat), ev.To.Format(store.DateFormat)), nil
	}

	rt, err := s.ari.FindRoomType(ctx, ev.HotelID, ev.RoomTypeCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Sprintf("room type %q does not exist for hotel %s", ev.RoomTypeCode, ev.HotelID), nil
		}
		return nil, "", err
	}
	return rt, "", nil
}

// normalize canonicalizes the event in place. Idempotent and free of side
// effects so a replayed stage cannot diverge.
func (s *Saga) normalize(ev *store.ARIEvent) {
	ev.From = store.Day(ev.From)
	ev.To = store.Day(ev.To)
	if ev.Type == store.EventTypeRate && ev.RatePlanCode == "" {
		ev.RatePlanCode = defaultRatePlan
	}
}

// apply dispatches on the event type. Each write is an idempotent upsert on a
// uniquely keyed row, so interleaving with a concurrent event for the same
// date is safe (last writer wins).
func (s *Saga) apply(ctx context.Context, ev *store.ARIEvent, rt *store.RoomType) string {
	switch ev.Type {
	case store.EventTypeAvailability:
		return s.applyAvailability(ctx, ev, rt)
	case store.EventTypeRate:
		return s.applyRate(ctx, ev, rt)
	case store.EventTypeRestriction:
		return s.applyRestriction(ctx, ev, rt)
	}
	return fmt.Sprintf("unknown event type %q", ev.Type)
}

func (s *Saga) applyAvailability(ctx context.Context, ev *store.ARIEvent, rt *store.RoomType) string {
	var p AvailabilityPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Sprintf("availability payload: %v", err)
	}
	if p.UpdateType == "" {
		p.UpdateType = UpdateSet
	}

	for d := ev.From; !d.After(ev.To); d = d.AddDate(0, 0, 1) {
		var err error
		switch p.UpdateType {
		case UpdateSet:
			err = s.ari.SetAvailability(ctx, *rt, d, p.Available)
		case UpdateIncrement:
			err = s.ari.AdjustAvailability(ctx, *rt, d, p.Available)
		case UpdateDecrement:
			err = s.ari.AdjustAvailability(ctx, *rt, d, -p.Available)
		default:
			return fmt.Sprintf("unknown update type %q", p.UpdateType)
		}
		if err != nil {
			return fmt.Sprintf("availability write on %s: %v", d.Format(store.DateFormat), err)
		}
	}
	return ""
}

func (s *Saga) applyRate(ctx context.Context, ev *store.ARIEvent, rt *store.RoomType) string {
	var p RatePayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Sprintf("rate payload: %v", err)
	}
	if p.BaseRate == nil && len(p.Rates) == 0 {
		return "rate payload carries neither base_rate nor rates"
	}
	currency := p.Currency
	if currency == "" {
		currency = "USD"
	}

	if p.BaseRate != nil {
		for d := ev.From; !d.After(ev.To); d = d.AddDate(0, 0, 1) {
			if err := s.ari.UpsertRate(ctx, *rt, ev.RatePlanCode, d, *p.BaseRate, currency); err != nil {
				return fmt.Sprintf("rate write on %s: %v", d.Format(store.DateFormat), err)
			}
		}
	}

	// Per-date entries run after the base rate and win on their date.
	for _, r := range p.Rates {
		d, err := store.ParseDate(r.Date)
		if err != nil {
			return fmt.Sprintf("rate entry date %q: %v", r.Date, err)
		}
		if err := s.ari.UpsertRate(ctx, *rt, ev.RatePlanCode, d, r.Amount, currency); err != nil {
			return fmt.Sprintf("rate write on %s: %v", r.Date, err)
		}
	}
	return ""
}

func (s *Saga) applyRestriction(ctx context.Context, ev *store.ARIEvent, rt *store.RoomType) string {
	var p RestrictionPayload
	if err := json.Unmarshal(ev.Payload, &p); err != nil {
		return fmt.Sprintf("restriction payload: %v", err)
	}
	patch := store.RestrictionPatch{
		ClosedToArrival:   p.ClosedToArrival,
		ClosedToDeparture: p.ClosedToDeparture,
		MinStay:           p.MinStay,
		MaxStay:           p.MaxStay,
		StopSell:          p.StopSell,
		Closed:            p.Closed,
	}
	if patch.IsZero() {
		return "restriction payload carries no fields"
	}

	for d := ev.From; !d.After(ev.To); d = d.AddDate(0, 0, 1) {
		if err := s.ari.UpsertRestriction(ctx, *rt, d, patch); err != nil {
			return fmt.Sprintf("restriction write on %s: %v", d.Format(store.DateFormat), err)
		}
	}
	return ""
}

// ack records the APPLIED terminal state, appends the audit entry and feeds
// the distribution topic.
func (s *Saga) ack(ctx context.Context, ev *store.ARIEvent, rt *store.RoomType) (*Result, error) {
	if err := s.log.SetStatus(ctx, ev.ID, store.StatusApplied, ""); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	entry := store.AuditEntry{
		EventID:       ev.ID,
		EventType:     appliedEventType(ev.Type),
		AggregateID:   rt.ID,
		AggregateType: "RoomType",
		Payload:       ev.Payload,
		HotelID:       ev.HotelID,
		Timestamp:     s.now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("audit append: %w", err)
	}

	if s.producer != nil {
		if err := s.producer.Publish(ctx, ev.HotelID, ev); err != nil {
			// The change is durable; distribution is at-least-once and the
			// channel audit catches gaps. Do not fail the caller.
			log.Printf("[Saga] Publish of event %s failed: %v", ev.ID, err)
		}
	}

	log.Printf("[Saga] Applied %s event %s for hotel %s room type %s", ev.Type, ev.ID, ev.HotelID, ev.RoomTypeCode)
	return &Result{Success: true, Status: store.StatusApplied, EventID: ev.ID}, nil
}

// deadLetter records the ERROR terminal state with the failure reason and a
// dead-letter audit entry. The reason goes back in the result, never as a
// Go error.
func (s *Saga) deadLetter(ctx context.Context, ev *store.ARIEvent, reason string) (*Result, error) {
	if err := s.log.SetStatus(ctx, ev.ID, store.StatusError, reason); err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}

	payload, _ := json.Marshal(map[string]string{"reason": reason})
	entry := store.AuditEntry{
		EventID:       ev.ID,
		EventType:     "ARIEventDeadLettered",
		AggregateID:   ev.ID,
		AggregateType: "ARIEvent",
		Payload:       payload,
		HotelID:       ev.HotelID,
		Timestamp:     s.now(),
	}
	if err := s.audit.Append(ctx, entry); err != nil {
		return nil, fmt.Errorf("audit append: %w", err)
	}

	log.Printf("[Saga] Event %s dead-lettered: %s", ev.ID, reason)
	return &Result{Success: false, Status: store.StatusError, Message: reason, EventID: ev.ID}, nil
}

func appliedEventType(eventType string) string {
	switch eventType {
	case store.EventTypeAvailability:
		return "AvailabilityApplied"
	case store.EventTypeRate:
		return "RateApplied"
	case store.EventTypeRestriction:
		return "RestrictionApplied"
	}
	return "ARIEventApplied"
}
