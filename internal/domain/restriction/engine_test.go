package restriction

import (
	"context"
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

func iptr(v int) *int {
	return &v
}

func restrictionOn(d time.Time, mutate func(*store.RestrictionRecord)) store.RestrictionRecord {
	rec := store.RestrictionRecord{HotelID: "hotel-1", RoomTypeID: "rt-1", Date: d}
	if mutate != nil {
		mutate(&rec)
	}
	return rec
}

// ============================================================
// Evaluate
// ============================================================

func TestEvaluate_NoRestrictions(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 12)}

	result := Evaluate(req, nil)

	assert.True(t, result.Valid)
	assert.Empty(t, result.Code)
}

func TestEvaluate_Closed(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 13)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 11), func(r *store.RestrictionRecord) { r.Closed = true }),
	}

	result := Evaluate(req, records)

	assert.False(t, result.Valid)
	assert.Equal(t, CodeRoomClosed, result.Code)
	assert.Contains(t, result.Detail, "2026-06-11")
}

func TestEvaluate_StopSell(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 12)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 10), func(r *store.RestrictionRecord) { r.StopSell = true }),
	}

	result := Evaluate(req, records)

	assert.False(t, result.Valid)
	assert.Equal(t, CodeStopSell, result.Code)
}

func TestEvaluate_StopSellBeatsMinLOS(t *testing.T) {
	// Both rules fail; stop-sell has the higher priority and must be the one
	// reported.
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 11)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 10), func(r *store.RestrictionRecord) {
			r.StopSell = true
			r.MinStay = iptr(3)
		}),
	}

	result := Evaluate(req, records)

	assert.False(t, result.Valid)
	assert.Equal(t, CodeStopSell, result.Code)
}

func TestEvaluate_ClosedBeatsStopSell(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 11)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 10), func(r *store.RestrictionRecord) {
			r.Closed = true
			r.StopSell = true
		}),
	}

	result := Evaluate(req, records)

	assert.Equal(t, CodeRoomClosed, result.Code)
}

func TestEvaluate_CTAOnCheckInDate(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 12)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 10), func(r *store.RestrictionRecord) { r.ClosedToArrival = true }),
	}

	result := Evaluate(req, records)

	assert.False(t, result.Valid)
	assert.Equal(t, CodeCTAViolation, result.Code)
}

func TestEvaluate_CTAOnOtherNightIsIgnored(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 12)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 11), func(r *store.RestrictionRecord) { r.ClosedToArrival = true }),
	}

	result := Evaluate(req, records)

	assert.True(t, result.Valid)
}

func TestEvaluate_CTDOnCheckOutDate(t *testing.T) {
	// The check-out date itself is not a night of the stay, but CTD reads it.
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 12)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 12), func(r *store.RestrictionRecord) { r.ClosedToDeparture = true }),
	}

	result := Evaluate(req, records)

	assert.False(t, result.Valid)
	assert.Equal(t, CodeCTDViolation, result.Code)
}

func TestEvaluate_MinLOSUsesStrictestNight(t *testing.T) {
	// Three nights; one night asks for 2, another for 5. The effective
	// minimum is 5, so a 3-night stay fails.
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 13)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 10), func(r *store.RestrictionRecord) { r.MinStay = iptr(2) }),
		restrictionOn(date(2026, 6, 11), func(r *store.RestrictionRecord) { r.MinStay = iptr(5) }),
	}

	result := Evaluate(req, records)

	assert.False(t, result.Valid)
	assert.Equal(t, CodeMinLOSViolation, result.Code)
	assert.Contains(t, result.Detail, "minimum stay is 5 nights")
}

func TestEvaluate_MinLOSSatisfied(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 13)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 10), func(r *store.RestrictionRecord) { r.MinStay = iptr(3) }),
	}

	result := Evaluate(req, records)

	assert.True(t, result.Valid)
}

func TestEvaluate_MaxLOSUsesStrictestNight(t *testing.T) {
	// Effective maximum is the smallest per-night maximum.
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 14)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 10), func(r *store.RestrictionRecord) { r.MaxStay = iptr(7) }),
		restrictionOn(date(2026, 6, 11), func(r *store.RestrictionRecord) { r.MaxStay = iptr(3) }),
	}

	result := Evaluate(req, records)

	assert.False(t, result.Valid)
	assert.Equal(t, CodeMaxLOSViolation, result.Code)
	assert.Contains(t, result.Detail, "maximum stay is 3 nights")
}

func TestEvaluate_MinLOSBeatsMaxLOS(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 12)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 10), func(r *store.RestrictionRecord) {
			r.MinStay = iptr(5)
			r.MaxStay = iptr(1)
		}),
	}

	result := Evaluate(req, records)

	assert.Equal(t, CodeMinLOSViolation, result.Code)
}

func TestEvaluate_RestrictionsOutsideStayAreIgnored(t *testing.T) {
	req := StayRequest{CheckIn: date(2026, 6, 10), CheckOut: date(2026, 6, 12)}
	records := []store.RestrictionRecord{
		restrictionOn(date(2026, 6, 20), func(r *store.RestrictionRecord) {
			r.Closed = true
			r.StopSell = true
			r.MinStay = iptr(10)
		}),
	}

	result := Evaluate(req, records)

	assert.True(t, result.Valid)
}

// ============================================================
// Service.ValidateQuote
// ============================================================

func newQuoteFixture(t *testing.T) (*Service, *mocks.MockARIStore) {
	t.Helper()
	m := mocks.NewMockARIStore()
	m.SeedRoomType(store.RoomType{ID: "rt-1", HotelID: "hotel-1", Code: "DLX", TotalRooms: 10})
	return NewService(m), m
}

func TestService_ValidateQuote_Valid(t *testing.T) {
	svc, _ := newQuoteFixture(t)

	result, err := svc.ValidateQuote(context.Background(), "hotel-1", "DLX", "BAR",
		date(2026, 6, 10), date(2026, 6, 12))

	require.NoError(t, err)
	assert.True(t, result.Valid)
}

func TestService_ValidateQuote_StopSell(t *testing.T) {
	svc, m := newQuoteFixture(t)
	m.SeedRestriction(restrictionOn(date(2026, 6, 11), func(r *store.RestrictionRecord) { r.StopSell = true }))

	result, err := svc.ValidateQuote(context.Background(), "hotel-1", "DLX", "BAR",
		date(2026, 6, 10), date(2026, 6, 12))

	require.NoError(t, err)
	assert.False(t, result.Valid)
	assert.Equal(t, CodeStopSell, result.Code)
}

func TestService_ValidateQuote_CTDOnCheckOut(t *testing.T) {
	// The fetched window has to include the check-out date or CTD can never
	// fire.
	svc, m := newQuoteFixture(t)
	m.SeedRestriction(restrictionOn(date(2026, 6, 12), func(r *store.RestrictionRecord) { r.ClosedToDeparture = true }))

	result, err := svc.ValidateQuote(context.Background(), "hotel-1", "DLX", "BAR",
		date(2026, 6, 10), date(2026, 6, 12))

	require.NoError(t, err)
	assert.Equal(t, CodeCTDViolation, result.Code)
}

func TestService_ValidateQuote_UnknownRoomType(t *testing.T) {
	svc, _ := newQuoteFixture(t)

	_, err := svc.ValidateQuote(context.Background(), "hotel-1", "NOPE", "BAR",
		date(2026, 6, 10), date(2026, 6, 12))

	assert.ErrorIs(t, err, ErrRoomTypeNotFound)
}

func TestService_ValidateQuote_InvalidStayRange(t *testing.T) {
	svc, _ := newQuoteFixture(t)

	tests := []struct {
		name     string
		checkIn  time.Time
		checkOut time.Time
	}{
		{"check-out before check-in", date(2026, 6, 12), date(2026, 6, 10)},
		{"zero nights", date(2026, 6, 10), date(2026, 6, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateQuote(context.Background(), "hotel-1", "DLX", "BAR", tt.checkIn, tt.checkOut)
			assert.ErrorIs(t, err, ErrInvalidStayRange)
		})
	}
}
