package restriction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

// Violation codes returned by the engine. Callers branch on these; they are
// part of the API contract.
const (
	CodeRoomClosed      = "ROOM_CLOSED"
	CodeStopSell        = "STOP_SELL"
	CodeCTAViolation    = "CTA_VIOLATION"
	CodeCTDViolation    = "CTD_VIOLATION"
	CodeMinLOSViolation = "MIN_LOS_VIOLATION"
	CodeMaxLOSViolation = "MAX_LOS_VIOLATION"
)

var (
	ErrRoomTypeNotFound = errors.New("room type not found")
	ErrInvalidStayRange = errors.New("check-out must be after check-in")
)

// StayRequest is a candidate stay to gate against restrictions.
type StayRequest struct {
	CheckIn  time.Time
	CheckOut time.Time
}

// Nights returns the length of stay.
func (r StayRequest) Nights() int {
	return int(r.CheckOut.Sub(r.CheckIn).Hours() / 24)
}

// QuoteResult is the outcome of a restriction check. Code is empty when the
// stay is valid.
type QuoteResult struct {
	Valid  bool   `json:"valid"`
	Code   string `json:"code,omitempty"`
	Detail string `json:"detail,omitempty"`
}

func violation(code, format string, args ...any) QuoteResult {
	return QuoteResult{Valid: false, Code: code, Detail: fmt.Sprintf(format, args...)}
}

// Evaluate gates a stay against a restriction snapshot. Rules run in strict
// priority order and the first failure wins: CLOSED, STOP_SELL, CTA, CTD,
// MIN_LOS, MAX_LOS. Night-level rules cover [checkIn, checkOut); CTD consults
// the check-out date itself. Pure: same snapshot, same answer.
func Evaluate(req StayRequest, records []store.RestrictionRecord) QuoteResult {
	byDate := make(map[time.Time]store.RestrictionRecord, len(records))
	for _, rec := range records {
		byDate[store.Day(rec.Date)] = rec
	}

	checkIn := store.Day(req.CheckIn)
	checkOut := store.Day(req.CheckOut)

	nights := make([]store.RestrictionRecord, 0, req.Nights())
	for d := checkIn; d.Before(checkOut); d = d.AddDate(0, 0, 1) {
		if rec, ok := byDate[d]; ok {
			nights = append(nights, rec)
		}
	}

	for _, rec := range nights {
		if rec.Closed {
			return violation(CodeRoomClosed, "room is closed on %s", rec.Date.Format(store.DateFormat))
		}
	}

	for _, rec := range nights {
		if rec.StopSell {
			return violation(CodeStopSell, "stop-sell is active on %s", rec.Date.Format(store.DateFormat))
		}
	}

	if rec, ok := byDate[checkIn]; ok && rec.ClosedToArrival {
		return violation(CodeCTAViolation, "arrival not allowed on %s", checkIn.Format(store.DateFormat))
	}

	if rec, ok := byDate[checkOut]; ok && rec.ClosedToDeparture {
		return violation(CodeCTDViolation, "departure not allowed on %s", checkOut.Format(store.DateFormat))
	}

	// The effective minimum stay is the strictest (largest) of the per-night
	// minimums; the effective maximum is the smallest of the per-night maximums.
	los := req.Nights()
	effectiveMin := 0
	for _, rec := range nights {
		if rec.MinStay != nil && *rec.MinStay > effectiveMin {
			effectiveMin = *rec.MinStay
		}
	}
	if effectiveMin > 0 && los < effectiveMin {
		return violation(CodeMinLOSViolation, "minimum stay is %d nights, requested %d", effectiveMin, los)
	}

	effectiveMax := 0
	for _, rec := range nights {
		if rec.MaxStay != nil && (effectiveMax == 0 || *rec.MaxStay < effectiveMax) {
			effectiveMax = *rec.MaxStay
		}
	}
	if effectiveMax > 0 && los > effectiveMax {
		return violation(CodeMaxLOSViolation, "maximum stay is %d nights, requested %d", effectiveMax, los)
	}

	return QuoteResult{Valid: true}
}

// Service resolves the room type and restriction snapshot, then evaluates.
type Service struct {
	store store.RestrictionReader
}

func NewService(s store.RestrictionReader) *Service {
	return &Service{store: s}
}

// ValidateQuote gates one stay request for a hotel room type. The rate plan
// code is accepted for parity with the quote flow but restrictions are kept
// per room type, not per rate plan.
func (s *Service) ValidateQuote(ctx context.Context, hotelID, roomTypeCode, ratePlanCode string, checkIn, checkOut time.Time) (QuoteResult, error) {
	if !store.Day(checkOut).After(store.Day(checkIn)) {
		return QuoteResult{}, ErrInvalidStayRange
	}

	rt, err := s.store.FindRoomType(ctx, hotelID, roomTypeCode)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return QuoteResult{}, fmt.Errorf("%w: %s", ErrRoomTypeNotFound, roomTypeCode)
		}
		return QuoteResult{}, err
	}

	// CTD reads the record on the check-out date, so fetch through it.
	records, err := s.store.FindRestrictions(ctx, hotelID, rt.ID, store.Day(checkIn), store.Day(checkOut))
	if err != nil {
		return QuoteResult{}, err
	}

	return Evaluate(StayRequest{CheckIn: checkIn, CheckOut: checkOut}, records), nil
}
