package bulk

import (
	"fmt"
	"time"

	"github.com/example/hotel-distribution/internal/infrastructure/store"
)

// Operation is one flat, single-date, single-room-type change.
type Operation struct {
	Date              string `json:"date"`
	RoomTypeCode      string `json:"room_type_code"`
	Available         *int   `json:"available,omitempty"`
	Price             *int64 `json:"price,omitempty"`
	MinLOS            *int   `json:"min_los,omitempty"`
	MaxLOS            *int   `json:"max_los,omitempty"`
	ClosedToArrival   *bool  `json:"closed_to_arrival,omitempty"`
	ClosedToDeparture *bool  `json:"closed_to_departure,omitempty"`
	StopSell          *bool  `json:"stop_sell,omitempty"`
	Closed            *bool  `json:"closed,omitempty"`
}

// hasUpdate reports whether at least one update field is set.
func (op Operation) hasUpdate() bool {
	return op.Available != nil || op.Price != nil || op.MinLOS != nil || op.MaxLOS != nil ||
		op.ClosedToArrival != nil || op.ClosedToDeparture != nil || op.StopSell != nil || op.Closed != nil
}

func (op Operation) restrictionPatch() store.RestrictionPatch {
	return store.RestrictionPatch{
		ClosedToArrival:   op.ClosedToArrival,
		ClosedToDeparture: op.ClosedToDeparture,
		MinStay:           op.MinLOS,
		MaxStay:           op.MaxLOS,
		StopSell:          op.StopSell,
		Closed:            op.Closed,
	}
}

// Bounds accepted on the wire. Values outside these are caller mistakes, not
// clamp candidates.
const (
	maxAvailable = 1000
	maxPrice     = 100000
	minLOSBound  = 1
	maxLOSBound  = 365
)

// validateOperation checks one operation structurally, before any store work.
// today must be a UTC calendar date.
func validateOperation(op Operation, today time.Time) error {
	if op.Date == "" {
		return fmt.Errorf("date is required")
	}
	if op.RoomTypeCode == "" {
		return fmt.Errorf("room_type_code is required")
	}
	date, err := store.ParseDate(op.Date)
	if err != nil {
		return fmt.Errorf("date %q is not in YYYY-MM-DD format", op.Date)
	}
	if date.Before(today) {
		return fmt.Errorf("date %s is in the past", op.Date)
	}
	if !op.hasUpdate() {
		return fmt.Errorf("no update fields set")
	}
	if op.Available != nil && (*op.Available < 0 || *op.Available > maxAvailable) {
		return fmt.Errorf("available %d is out of range [0,%d]", *op.Available, maxAvailable)
	}
	if op.Price != nil && (*op.Price < 0 || *op.Price > maxPrice) {
		return fmt.Errorf("price %d is out of range [0,%d]", *op.Price, maxPrice)
	}
	if op.MinLOS != nil && (*op.MinLOS < minLOSBound || *op.MinLOS > maxLOSBound) {
		return fmt.Errorf("min_los %d is out of range [%d,%d]", *op.MinLOS, minLOSBound, maxLOSBound)
	}
	if op.MaxLOS != nil && (*op.MaxLOS < minLOSBound || *op.MaxLOS > maxLOSBound) {
		return fmt.Errorf("max_los %d is out of range [%d,%d]", *op.MaxLOS, minLOSBound, maxLOSBound)
	}
	if op.MinLOS != nil && op.MaxLOS != nil && *op.MinLOS > *op.MaxLOS {
		return fmt.Errorf("min_los cannot be greater than max_los")
	}
	return nil
}
