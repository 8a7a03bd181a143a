package ari

// UpdateType selects how an availability value is applied.
type UpdateType string

const (
	UpdateSet       UpdateType = "SET"
	UpdateIncrement UpdateType = "INCREMENT"
	UpdateDecrement UpdateType = "DECREMENT"
)

// AvailabilityPayload sets or adjusts available rooms for every date in the
// event range. An empty UpdateType means SET.
type AvailabilityPayload struct {
	Available  int        `json:"available"`
	UpdateType UpdateType `json:"update_type,omitempty"`
}

// DateRate is a per-date rate override. Overrides are applied after the base
// rate, so they take precedence on their date.
type DateRate struct {
	Date   string `json:"date"`
	Amount int64  `json:"amount"`
}

// RatePayload carries a base rate for the whole range and/or explicit
// per-date rates. Amounts are in minor currency units.
type RatePayload struct {
	BaseRate *int64     `json:"base_rate,omitempty"`
	Currency string     `json:"currency,omitempty"`
	Rates    []DateRate `json:"rates,omitempty"`
}

// RestrictionPayload is a partial restriction update: only provided fields
// are changed on each date in range.
type RestrictionPayload struct {
	ClosedToArrival   *bool `json:"closed_to_arrival,omitempty"`
	ClosedToDeparture *bool `json:"closed_to_departure,omitempty"`
	MinStay           *int  `json:"min_stay,omitempty"`
	MaxStay           *int  `json:"max_stay,omitempty"`
	StopSell          *bool `json:"stop_sell,omitempty"`
	Closed            *bool `json:"closed,omitempty"`
}
