package store

import (
	"encoding/json"
	"errors"
	"time"
)

// DateFormat is the wire format for calendar dates across all entry points.
const DateFormat = "2006-01-02"

var ErrNotFound = errors.New("not found")

// RoomType describes one sellable room category of a hotel.
type RoomType struct {
	ID           string `json:"id"`
	HotelID      string `json:"hotel_id"`
	Code         string `json:"code"`
	Name         string `json:"name"`
	TotalRooms   int    `json:"total_rooms"`
	OutOfService int    `json:"out_of_service"`
}

// SellableRooms returns the physically installed rooms currently in service.
// Availability writes are clamped to this number.
func (rt RoomType) SellableRooms() int {
	n := rt.TotalRooms - rt.OutOfService
	if n < 0 {
		return 0
	}
	return n
}

// InventoryRecord is one row per (hotel, room type, date).
type InventoryRecord struct {
	HotelID    string    `json:"hotel_id"`
	RoomTypeID string    `json:"room_type_id"`
	Date       time.Time `json:"date"`
	TotalRooms int       `json:"total_rooms"`
	Available  int       `json:"available"`
	Booked     int       `json:"booked"`
}

// RateRecord is one row per (hotel, room type, rate plan, date).
// Amount is in minor currency units.
type RateRecord struct {
	HotelID      string    `json:"hotel_id"`
	RoomTypeID   string    `json:"room_type_id"`
	RatePlanCode string    `json:"rate_plan_code"`
	Date         time.Time `json:"date"`
	Amount       int64     `json:"amount"`
	Currency     string    `json:"currency"`
}

// RestrictionRecord is one row per (hotel, room type, date). Nil MinStay/MaxStay
// means no length-of-stay bound on that date.
type RestrictionRecord struct {
	HotelID           string    `json:"hotel_id"`
	RoomTypeID        string    `json:"room_type_id"`
	Date              time.Time `json:"date"`
	ClosedToArrival   bool      `json:"closed_to_arrival"`
	ClosedToDeparture bool      `json:"closed_to_departure"`
	MinStay           *int      `json:"min_stay,omitempty"`
	MaxStay           *int      `json:"max_stay,omitempty"`
	StopSell          bool      `json:"stop_sell"`
	Closed            bool      `json:"closed"`
}

// RestrictionPatch is a partial restriction update. Only non-nil fields are
// written; existing values on the row are kept for the rest.
type RestrictionPatch struct {
	ClosedToArrival   *bool `json:"closed_to_arrival,omitempty"`
	ClosedToDeparture *bool `json:"closed_to_departure,omitempty"`
	MinStay           *int  `json:"min_stay,omitempty"`
	MaxStay           *int  `json:"max_stay,omitempty"`
	StopSell          *bool `json:"stop_sell,omitempty"`
	Closed            *bool `json:"closed,omitempty"`
}

// IsZero reports whether the patch carries no fields at all.
func (p RestrictionPatch) IsZero() bool {
	return p.ClosedToArrival == nil && p.ClosedToDeparture == nil &&
		p.MinStay == nil && p.MaxStay == nil && p.StopSell == nil && p.Closed == nil
}

// Channel is a sales channel connected to the platform.
type Channel struct {
	ID               string    `json:"id"`
	HotelID          string    `json:"hotel_id"`
	Code             string    `json:"code"`
	Name             string    `json:"name"`
	Type             string    `json:"type"` // gds, ota, direct
	DistributionMode string    `json:"distribution_mode"`
	ModeLockedAt     time.Time `json:"mode_locked_at"`
	SecretHash       string    `json:"-"`
}

// AuditEntry is the append-only audit record shared by all write paths.
type AuditEntry struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	Payload       json.RawMessage `json:"payload"`
	HotelID       string          `json:"hotel_id"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD wire date into a UTC calendar date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateFormat, s)
}
