package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

// MockARIStore is an in-memory implementation of ARIStore for testing.
// WithinTx runs on a copy of the state and only merges it back on success,
// so tests can assert that an aborted batch left nothing behind.
type MockARIStore struct {
	mu    sync.RWMutex
	state *ariState

	channels          map[string]*store.Channel
	reservationCounts map[string]int
	pushCounts        map[string]int
	auditEntries      []store.AuditEntry

	// For tracking calls in tests
	SetAvailabilityCalls    []SetAvailabilityCall
	UpsertRateCalls         []UpsertRateCall
	UpsertRestrictionCalls  []UpsertRestrictionCall
	SaveChannelModeCalls    []SaveChannelModeCall
	RecordPushDeliveryCalls []RecordPushDeliveryCall
	AppendCalls             []store.AuditEntry

	// Error injection
	FindRoomTypeErr      error
	SetAvailabilityErr   error
	UpsertRateErr        error
	UpsertRestrictionErr error
	AppendErr            error
	WithinTxBeginErr     error
}

// SetAvailabilityCall records parameters passed to SetAvailability
type SetAvailabilityCall struct {
	RoomTypeCode string
	Date         time.Time
	Available    int
}

// UpsertRateCall records parameters passed to UpsertRate
type UpsertRateCall struct {
	RoomTypeCode string
	RatePlanCode string
	Date         time.Time
	Amount       int64
	Currency     string
}

// UpsertRestrictionCall records parameters passed to UpsertRestriction
type UpsertRestrictionCall struct {
	RoomTypeCode string
	Date         time.Time
	Patch        store.RestrictionPatch
}

// SaveChannelModeCall records parameters passed to SaveChannelMode
type SaveChannelModeCall struct {
	ChannelID string
	Mode      string
	LockedAt  time.Time
}

// RecordPushDeliveryCall records parameters passed to RecordPushDelivery
type RecordPushDeliveryCall struct {
	ChannelID string
	EventID   string
	At        time.Time
}

// ariState holds the mutable ARI data so WithinTx can clone it wholesale.
type ariState struct {
	roomTypes    map[string]store.RoomType         // hotelID|code
	inventory    map[string]store.InventoryRecord  // hotelID|roomTypeID|date
	rates        map[string]store.RateRecord       // hotelID|roomTypeID|plan|date
	restrictions map[string]store.RestrictionRecord // hotelID|roomTypeID|date
}

func newARIState() *ariState {
	return &ariState{
		roomTypes:    make(map[string]store.RoomType),
		inventory:    make(map[string]store.InventoryRecord),
		rates:        make(map[string]store.RateRecord),
		restrictions: make(map[string]store.RestrictionRecord),
	}
}

func (s *ariState) clone() *ariState {
	cp := newARIState()
	for k, v := range s.roomTypes {
		cp.roomTypes[k] = v
	}
	for k, v := range s.inventory {
		cp.inventory[k] = v
	}
	for k, v := range s.rates {
		cp.rates[k] = v
	}
	for k, v := range s.restrictions {
		cp.restrictions[k] = v
	}
	return cp
}

// NewMockARIStore creates a new MockARIStore
func NewMockARIStore() *MockARIStore {
	return &MockARIStore{
		state:             newARIState(),
		channels:          make(map[string]*store.Channel),
		reservationCounts: make(map[string]int),
		pushCounts:        make(map[string]int),
	}
}

// Seeding helpers

func (m *MockARIStore) SeedRoomType(rt store.RoomType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.roomTypes[rtKey(rt.HotelID, rt.Code)] = rt
}

func (m *MockARIStore) SeedRestriction(rec store.RestrictionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.restrictions[dateKey(rec.HotelID, rec.RoomTypeID, rec.Date)] = rec
}

func (m *MockARIStore) SeedChannel(ch store.Channel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := ch
	m.channels[ch.ID] = &cp
}

func (m *MockARIStore) SeedReservations(channelID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reservationCounts[channelID] = n
}

func (m *MockARIStore) SeedPushDeliveries(channelID string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pushCounts[channelID] = n
}

// AuditEntries returns a copy of everything appended so far.
func (m *MockARIStore) AuditEntries() []store.AuditEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]store.AuditEntry, len(m.auditEntries))
	copy(out, m.auditEntries)
	return out
}

// ARIWriter

func (m *MockARIStore) FindRoomType(ctx context.Context, hotelID, code string) (*store.RoomType, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.findRoomType(hotelID, code, m.FindRoomTypeErr)
}

func (m *MockARIStore) SetAvailability(ctx context.Context, rt store.RoomType, date time.Time, available int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetAvailabilityCalls = append(m.SetAvailabilityCalls, SetAvailabilityCall{
		RoomTypeCode: rt.Code, Date: store.Day(date), Available: available,
	})
	if m.SetAvailabilityErr != nil {
		return m.SetAvailabilityErr
	}
	m.state.setAvailability(rt, date, available)
	return nil
}

func (m *MockARIStore) AdjustAvailability(ctx context.Context, rt store.RoomType, date time.Time, delta int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.adjustAvailability(rt, date, delta)
	return nil
}

func (m *MockARIStore) UpsertRate(ctx context.Context, rt store.RoomType, ratePlanCode string, date time.Time, amount int64, currency string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertRateCalls = append(m.UpsertRateCalls, UpsertRateCall{
		RoomTypeCode: rt.Code, RatePlanCode: ratePlanCode, Date: store.Day(date), Amount: amount, Currency: currency,
	})
	if m.UpsertRateErr != nil {
		return m.UpsertRateErr
	}
	m.state.upsertRate(rt, ratePlanCode, date, amount, currency)
	return nil
}

func (m *MockARIStore) UpsertRestriction(ctx context.Context, rt store.RoomType, date time.Time, patch store.RestrictionPatch) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpsertRestrictionCalls = append(m.UpsertRestrictionCalls, UpsertRestrictionCall{
		RoomTypeCode: rt.Code, Date: store.Day(date), Patch: patch,
	})
	if m.UpsertRestrictionErr != nil {
		return m.UpsertRestrictionErr
	}
	m.state.upsertRestriction(rt, date, patch)
	return nil
}

func (m *MockARIStore) GetInventory(ctx context.Context, hotelID, roomTypeID string, date time.Time) (*store.InventoryRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.state.inventory[dateKey(hotelID, roomTypeID, date)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

// RestrictionReader

func (m *MockARIStore) FindRestrictions(ctx context.Context, hotelID, roomTypeID string, from, to time.Time) ([]store.RestrictionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []store.RestrictionRecord
	for _, rec := range m.state.restrictions {
		if rec.HotelID != hotelID || rec.RoomTypeID != roomTypeID {
			continue
		}
		d := store.Day(rec.Date)
		if d.Before(store.Day(from)) || d.After(store.Day(to)) {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// TxRunner

func (m *MockARIStore) WithinTx(ctx context.Context, fn func(tx store.ARIWriter) error) error {
	if m.WithinTxBeginErr != nil {
		return m.WithinTxBeginErr
	}

	m.mu.Lock()
	txState := m.state.clone()
	m.mu.Unlock()

	tx := &mockTxWriter{parent: m, state: txState}
	if err := fn(tx); err != nil {
		return err
	}

	m.mu.Lock()
	m.state = txState
	m.mu.Unlock()
	return nil
}

// mockTxWriter applies writes to the cloned state only. Call records still go
// to the parent so tests see attempted work even after a rollback.
type mockTxWriter struct {
	parent *MockARIStore
	state  *ariState
}

func (t *mockTxWriter) FindRoomType(ctx context.Context, hotelID, code string) (*store.RoomType, error) {
	return t.state.findRoomType(hotelID, code, t.parent.FindRoomTypeErr)
}

func (t *mockTxWriter) SetAvailability(ctx context.Context, rt store.RoomType, date time.Time, available int) error {
	t.parent.mu.Lock()
	t.parent.SetAvailabilityCalls = append(t.parent.SetAvailabilityCalls, SetAvailabilityCall{
		RoomTypeCode: rt.Code, Date: store.Day(date), Available: available,
	})
	err := t.parent.SetAvailabilityErr
	t.parent.mu.Unlock()
	if err != nil {
		return err
	}
	t.state.setAvailability(rt, date, available)
	return nil
}

func (t *mockTxWriter) AdjustAvailability(ctx context.Context, rt store.RoomType, date time.Time, delta int) error {
	t.state.adjustAvailability(rt, date, delta)
	return nil
}

func (t *mockTxWriter) UpsertRate(ctx context.Context, rt store.RoomType, ratePlanCode string, date time.Time, amount int64, currency string) error {
	t.parent.mu.Lock()
	t.parent.UpsertRateCalls = append(t.parent.UpsertRateCalls, UpsertRateCall{
		RoomTypeCode: rt.Code, RatePlanCode: ratePlanCode, Date: store.Day(date), Amount: amount, Currency: currency,
	})
	err := t.parent.UpsertRateErr
	t.parent.mu.Unlock()
	if err != nil {
		return err
	}
	t.state.upsertRate(rt, ratePlanCode, date, amount, currency)
	return nil
}

func (t *mockTxWriter) UpsertRestriction(ctx context.Context, rt store.RoomType, date time.Time, patch store.RestrictionPatch) error {
	t.parent.mu.Lock()
	t.parent.UpsertRestrictionCalls = append(t.parent.UpsertRestrictionCalls, UpsertRestrictionCall{
		RoomTypeCode: rt.Code, Date: store.Day(date), Patch: patch,
	})
	err := t.parent.UpsertRestrictionErr
	t.parent.mu.Unlock()
	if err != nil {
		return err
	}
	t.state.upsertRestriction(rt, date, patch)
	return nil
}

func (t *mockTxWriter) GetInventory(ctx context.Context, hotelID, roomTypeID string, date time.Time) (*store.InventoryRecord, error) {
	rec, ok := t.state.inventory[dateKey(hotelID, roomTypeID, date)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := rec
	return &cp, nil
}

// ChannelStore

func (m *MockARIStore) GetChannel(ctx context.Context, channelID string) (*store.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.channels[channelID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *ch
	return &cp, nil
}

func (m *MockARIStore) FindChannelByCode(ctx context.Context, hotelID, code string) (*store.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ch := range m.channels {
		if ch.HotelID == hotelID && ch.Code == code {
			cp := *ch
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (m *MockARIStore) ListChannels(ctx context.Context, hotelID string) ([]store.Channel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []store.Channel
	for _, ch := range m.channels {
		if ch.HotelID == hotelID {
			out = append(out, *ch)
		}
	}
	return out, nil
}

func (m *MockARIStore) ListHotelIDs(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := make(map[string]bool)
	var out []string
	for _, ch := range m.channels {
		if !seen[ch.HotelID] {
			seen[ch.HotelID] = true
			out = append(out, ch.HotelID)
		}
	}
	return out, nil
}

func (m *MockARIStore) SaveChannelMode(ctx context.Context, channelID, mode string, lockedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SaveChannelModeCalls = append(m.SaveChannelModeCalls, SaveChannelModeCall{
		ChannelID: channelID, Mode: mode, LockedAt: lockedAt,
	})
	ch, ok := m.channels[channelID]
	if !ok {
		return store.ErrNotFound
	}
	ch.DistributionMode = mode
	ch.ModeLockedAt = lockedAt
	return nil
}

func (m *MockARIStore) CountReservations(ctx context.Context, channelID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reservationCounts[channelID], nil
}

func (m *MockARIStore) CountPushDeliveries(ctx context.Context, channelID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pushCounts[channelID], nil
}

func (m *MockARIStore) RecordPushDelivery(ctx context.Context, channelID, eventID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RecordPushDeliveryCalls = append(m.RecordPushDeliveryCalls, RecordPushDeliveryCall{
		ChannelID: channelID, EventID: eventID, At: at,
	})
	m.pushCounts[channelID]++
	return nil
}

// AuditLog

func (m *MockARIStore) Append(ctx context.Context, entry store.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AppendCalls = append(m.AppendCalls, entry)
	if m.AppendErr != nil {
		return m.AppendErr
	}
	m.auditEntries = append(m.auditEntries, entry)
	return nil
}

func (m *MockARIStore) ByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]store.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []store.AuditEntry
	for i := len(m.auditEntries) - 1; i >= 0; i-- {
		e := m.auditEntries[i]
		if e.AggregateType == aggregateType && e.AggregateID == aggregateID {
			out = append(out, e)
		}
	}
	return out, nil
}

// State operations shared by the store and its tx writer.

func (s *ariState) findRoomType(hotelID, code string, injectedErr error) (*store.RoomType, error) {
	if injectedErr != nil {
		return nil, injectedErr
	}
	rt, ok := s.roomTypes[rtKey(hotelID, code)]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := rt
	return &cp, nil
}

func (s *ariState) setAvailability(rt store.RoomType, date time.Time, available int) {
	clamped := available
	if sellable := rt.SellableRooms(); clamped > sellable {
		clamped = sellable
	}
	if clamped < 0 {
		clamped = 0
	}
	key := dateKey(rt.HotelID, rt.ID, date)
	s.inventory[key] = store.InventoryRecord{
		HotelID:    rt.HotelID,
		RoomTypeID: rt.ID,
		Date:       store.Day(date),
		TotalRooms: rt.TotalRooms,
		Available:  clamped,
	}
}

func (s *ariState) adjustAvailability(rt store.RoomType, date time.Time, delta int) {
	key := dateKey(rt.HotelID, rt.ID, date)
	current := 0
	if rec, ok := s.inventory[key]; ok {
		current = rec.Available
	}
	s.setAvailability(rt, date, current+delta)
}

func (s *ariState) upsertRate(rt store.RoomType, ratePlanCode string, date time.Time, amount int64, currency string) {
	key := rtKey(dateKey(rt.HotelID, rt.ID, date), ratePlanCode)
	s.rates[key] = store.RateRecord{
		HotelID:      rt.HotelID,
		RoomTypeID:   rt.ID,
		RatePlanCode: ratePlanCode,
		Date:         store.Day(date),
		Amount:       amount,
		Currency:     currency,
	}
}

func (s *ariState) upsertRestriction(rt store.RoomType, date time.Time, patch store.RestrictionPatch) {
	key := dateKey(rt.HotelID, rt.ID, date)
	rec, ok := s.restrictions[key]
	if !ok {
		rec = store.RestrictionRecord{HotelID: rt.HotelID, RoomTypeID: rt.ID, Date: store.Day(date)}
	}
	if patch.ClosedToArrival != nil {
		rec.ClosedToArrival = *patch.ClosedToArrival
	}
	if patch.ClosedToDeparture != nil {
		rec.ClosedToDeparture = *patch.ClosedToDeparture
	}
	if patch.MinStay != nil {
		v := *patch.MinStay
		rec.MinStay = &v
	}
	if patch.MaxStay != nil {
		v := *patch.MaxStay
		rec.MaxStay = &v
	}
	if patch.StopSell != nil {
		rec.StopSell = *patch.StopSell
	}
	if patch.Closed != nil {
		rec.Closed = *patch.Closed
	}
	s.restrictions[key] = rec
}

func rtKey(a, b string) string {
	return a + "|" + b
}

func dateKey(hotelID, roomTypeID string, date time.Time) string {
	return hotelID + "|" + roomTypeID + "|" + store.Day(date).Format(store.DateFormat)
}
