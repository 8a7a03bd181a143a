package ari

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/hotel-distribution/internal/infrastructure/store"
	"github.com/example/hotel-distribution/internal/infrastructure/store/mocks"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func i64ptr(v int64) *int64 {
	return &v
}

type sagaFixture struct {
	saga      *Saga
	eventLog  *mocks.MockEventLog
	ariStore  *mocks.MockARIStore
	publisher *mocks.MockPublisher
}

func newSagaFixture(t *testing.T) *sagaFixture {
	t.Helper()
	eventLog := mocks.NewMockEventLog()
	ariStore := mocks.NewMockARIStore()
	publisher := mocks.NewMockPublisher()
	ariStore.SeedRoomType(store.RoomType{ID: "rt-1", HotelID: "hotel-1", Code: "DLX", TotalRooms: 20})

	return &sagaFixture{
		saga:      NewSaga(eventLog, ariStore, ariStore, publisher),
		eventLog:  eventLog,
		ariStore:  ariStore,
		publisher: publisher,
	}
}

func availabilityEvent(id string, payload AvailabilityPayload) *store.ARIEvent {
	data, _ := json.Marshal(payload)
	return &store.ARIEvent{
		ID:           id,
		Type:         store.EventTypeAvailability,
		HotelID:      "hotel-1",
		RoomTypeCode: "DLX",
		From:         date(2026, 7, 1),
		To:           date(2026, 7, 3),
		Payload:      data,
	}
}

// ============================================================
// Happy path
// ============================================================

func TestSaga_Process_AvailabilitySet(t *testing.T) {
	f := newSagaFixture(t)

	ev := availabilityEvent("ev-1", AvailabilityPayload{Available: 5, UpdateType: UpdateSet})
	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, store.StatusApplied, result.Status)
	assert.Equal(t, "ev-1", result.EventID)

	// One write per day of the inclusive range.
	assert.Len(t, f.ariStore.SetAvailabilityCalls, 3)

	stored, err := f.eventLog.Get(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.Equal(t, store.StatusApplied, stored.Status)

	rec, err := f.ariStore.GetInventory(context.Background(), "hotel-1", "rt-1", date(2026, 7, 2))
	require.NoError(t, err)
	assert.Equal(t, 5, rec.Available)

	require.Len(t, f.publisher.PublishCalls, 1)
	assert.Equal(t, "hotel-1", f.publisher.PublishCalls[0].Key)

	entries := f.ariStore.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "AvailabilityApplied", entries[0].EventType)
	assert.Equal(t, "rt-1", entries[0].AggregateID)
}

func TestSaga_Process_AvailabilityIncrementAndDecrement(t *testing.T) {
	f := newSagaFixture(t)

	_, err := f.saga.Process(context.Background(),
		availabilityEvent("ev-set", AvailabilityPayload{Available: 5, UpdateType: UpdateSet}))
	require.NoError(t, err)

	_, err = f.saga.Process(context.Background(),
		availabilityEvent("ev-inc", AvailabilityPayload{Available: 3, UpdateType: UpdateIncrement}))
	require.NoError(t, err)

	rec, err := f.ariStore.GetInventory(context.Background(), "hotel-1", "rt-1", date(2026, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, 8, rec.Available)

	_, err = f.saga.Process(context.Background(),
		availabilityEvent("ev-dec", AvailabilityPayload{Available: 10, UpdateType: UpdateDecrement}))
	require.NoError(t, err)

	// Decrement below zero floors at zero.
	rec, err = f.ariStore.GetInventory(context.Background(), "hotel-1", "rt-1", date(2026, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, 0, rec.Available)
}

func TestSaga_Process_AvailabilityClampedToSellableRooms(t *testing.T) {
	f := newSagaFixture(t)
	f.ariStore.SeedRoomType(store.RoomType{ID: "rt-2", HotelID: "hotel-1", Code: "STD", TotalRooms: 12, OutOfService: 2})

	ev := availabilityEvent("ev-clamp", AvailabilityPayload{Available: 50, UpdateType: UpdateSet})
	ev.RoomTypeCode = "STD"

	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.True(t, result.Success)

	rec, err := f.ariStore.GetInventory(context.Background(), "hotel-1", "rt-2", date(2026, 7, 1))
	require.NoError(t, err)
	assert.Equal(t, 10, rec.Available)
}

func TestSaga_Process_RateBaseAndOverrides(t *testing.T) {
	f := newSagaFixture(t)

	payload, _ := json.Marshal(RatePayload{
		BaseRate: i64ptr(12000),
		Currency: "EUR",
		Rates:    []DateRate{{Date: "2026-07-02", Amount: 15000}},
	})
	ev := &store.ARIEvent{
		ID:           "ev-rate",
		Type:         store.EventTypeRate,
		HotelID:      "hotel-1",
		RoomTypeCode: "DLX",
		From:         date(2026, 7, 1),
		To:           date(2026, 7, 3),
		Payload:      payload,
	}

	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.True(t, result.Success)

	// Three base-rate writes plus one per-date override, override last.
	require.Len(t, f.ariStore.UpsertRateCalls, 4)
	last := f.ariStore.UpsertRateCalls[3]
	assert.Equal(t, date(2026, 7, 2), last.Date)
	assert.Equal(t, int64(15000), last.Amount)
	assert.Equal(t, "EUR", last.Currency)
	// No plan supplied: the default applies.
	assert.Equal(t, "BAR", last.RatePlanCode)
}

func TestSaga_Process_RestrictionPatch(t *testing.T) {
	f := newSagaFixture(t)

	stopSell := true
	minStay := 3
	payload, _ := json.Marshal(RestrictionPayload{StopSell: &stopSell, MinStay: &minStay})
	ev := &store.ARIEvent{
		ID:           "ev-restr",
		Type:         store.EventTypeRestriction,
		HotelID:      "hotel-1",
		RoomTypeCode: "DLX",
		From:         date(2026, 7, 1),
		To:           date(2026, 7, 2),
		Payload:      payload,
	}

	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, f.ariStore.UpsertRestrictionCalls, 2)

	patch := f.ariStore.UpsertRestrictionCalls[0].Patch
	require.NotNil(t, patch.StopSell)
	assert.True(t, *patch.StopSell)
	require.NotNil(t, patch.MinStay)
	assert.Equal(t, 3, *patch.MinStay)
	// Fields not in the payload stay nil so existing values survive.
	assert.Nil(t, patch.Closed)
	assert.Nil(t, patch.MaxStay)
}

// ============================================================
// Idempotency
// ============================================================

func TestSaga_Process_DuplicateEventIsDeduped(t *testing.T) {
	f := newSagaFixture(t)

	ev := availabilityEvent("ev-dup", AvailabilityPayload{Available: 5, UpdateType: UpdateSet})
	first, err := f.saga.Process(context.Background(), ev)
	require.NoError(t, err)
	require.True(t, first.Success)
	writesAfterFirst := len(f.ariStore.SetAvailabilityCalls)

	replay := availabilityEvent("ev-dup", AvailabilityPayload{Available: 999, UpdateType: UpdateSet})
	second, err := f.saga.Process(context.Background(), replay)

	require.NoError(t, err)
	assert.True(t, second.Success)
	assert.Equal(t, store.StatusDeduped, second.Status)
	assert.Equal(t, "duplicate event ignored", second.Message)

	// The replay performed no writes and published nothing.
	assert.Len(t, f.ariStore.SetAvailabilityCalls, writesAfterFirst)
	assert.Len(t, f.publisher.PublishCalls, 1)

	// The stored event keeps its original terminal state.
	stored, err := f.eventLog.Get(context.Background(), "ev-dup")
	require.NoError(t, err)
	assert.Equal(t, store.StatusApplied, stored.Status)
}

func TestSaga_Process_DerivesEventIDWhenMissing(t *testing.T) {
	f := newSagaFixture(t)

	ev := availabilityEvent("", AvailabilityPayload{Available: 5})
	ev.OccurredAt = date(2026, 7, 1)

	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.Equal(t, DeriveEventID(store.EventTypeAvailability, "DLX", date(2026, 7, 1)), result.EventID)
}

func TestDeriveEventID_Deterministic(t *testing.T) {
	at := date(2026, 7, 1)
	a := DeriveEventID("AVAILABILITY", "DLX", at)
	b := DeriveEventID("AVAILABILITY", "DLX", at)
	c := DeriveEventID("AVAILABILITY", "DLX", at.Add(time.Nanosecond))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

// ============================================================
// Dead-lettering
// ============================================================

func TestSaga_Process_UnknownRoomTypeDeadLetters(t *testing.T) {
	f := newSagaFixture(t)

	ev := availabilityEvent("ev-bad-rt", AvailabilityPayload{Available: 5})
	ev.RoomTypeCode = "NOPE"

	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, store.StatusError, result.Status)
	assert.Contains(t, result.Message, "NOPE")

	stored, err := f.eventLog.Get(context.Background(), "ev-bad-rt")
	require.NoError(t, err)
	assert.Equal(t, store.StatusError, stored.Status)
	assert.NotEmpty(t, stored.Error)

	entries := f.ariStore.AuditEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "ARIEventDeadLettered", entries[0].EventType)

	assert.Empty(t, f.publisher.PublishCalls)
	assert.Empty(t, f.ariStore.SetAvailabilityCalls)
}

func TestSaga_Process_InvalidDateRangeDeadLetters(t *testing.T) {
	f := newSagaFixture(t)

	ev := availabilityEvent("ev-range", AvailabilityPayload{Available: 5})
	ev.From = date(2026, 7, 5)
	ev.To = date(2026, 7, 1)

	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "invalid date range")
}

func TestSaga_Process_UnknownEventTypeDeadLetters(t *testing.T) {
	f := newSagaFixture(t)

	ev := availabilityEvent("ev-type", AvailabilityPayload{Available: 5})
	ev.Type = "PROMOTION"

	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "unknown event type")

	deadLetters, err := f.eventLog.ListDeadLetters(context.Background(), "hotel-1", 10)
	require.NoError(t, err)
	require.Len(t, deadLetters, 1)
	assert.Equal(t, "ev-type", deadLetters[0].ID)
}

func TestSaga_Process_EmptyRestrictionPayloadDeadLetters(t *testing.T) {
	f := newSagaFixture(t)

	payload, _ := json.Marshal(RestrictionPayload{})
	ev := &store.ARIEvent{
		ID:           "ev-empty",
		Type:         store.EventTypeRestriction,
		HotelID:      "hotel-1",
		RoomTypeCode: "DLX",
		From:         date(2026, 7, 1),
		To:           date(2026, 7, 1),
		Payload:      payload,
	}

	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Contains(t, result.Message, "no fields")
}

// ============================================================
// Infrastructure failures
// ============================================================

func TestSaga_Process_InsertFailureIsInfrastructureError(t *testing.T) {
	f := newSagaFixture(t)
	f.eventLog.InsertErr = errors.New("connection refused")

	ev := availabilityEvent("ev-infra", AvailabilityPayload{Available: 5})
	result, err := f.saga.Process(context.Background(), ev)

	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestSaga_Process_PublishFailureDoesNotFailCaller(t *testing.T) {
	f := newSagaFixture(t)
	f.publisher.PublishErr = errors.New("broker unavailable")

	ev := availabilityEvent("ev-pub", AvailabilityPayload{Available: 5})
	result, err := f.saga.Process(context.Background(), ev)

	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, store.StatusApplied, result.Status)
}
