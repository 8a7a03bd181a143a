package store

import (
	"context"
	"time"
)

// RestrictionReader is the read-side collaborator of the restriction engine.
type RestrictionReader interface {
	FindRoomType(ctx context.Context, hotelID, code string) (*RoomType, error)
	FindRestrictions(ctx context.Context, hotelID, roomTypeID string, from, to time.Time) ([]RestrictionRecord, error)
}

// ARIWriter covers the per-date upserts performed by the event saga and the
// bulk processor. Availability writes clamp to RoomType.SellableRooms and
// never go below zero.
type ARIWriter interface {
	FindRoomType(ctx context.Context, hotelID, code string) (*RoomType, error)
	SetAvailability(ctx context.Context, rt RoomType, date time.Time, available int) error
	AdjustAvailability(ctx context.Context, rt RoomType, date time.Time, delta int) error
	UpsertRate(ctx context.Context, rt RoomType, ratePlanCode string, date time.Time, amount int64, currency string) error
	UpsertRestriction(ctx context.Context, rt RoomType, date time.Time, patch RestrictionPatch) error
	GetInventory(ctx context.Context, hotelID, roomTypeID string, date time.Time) (*InventoryRecord, error)
}

// TxRunner executes fn inside one atomic transaction. fn returning an error
// rolls everything back.
type TxRunner interface {
	WithinTx(ctx context.Context, fn func(tx ARIWriter) error) error
}

// ChannelStore covers channel configuration and the activity rows the
// exclusivity audit inspects.
type ChannelStore interface {
	GetChannel(ctx context.Context, channelID string) (*Channel, error)
	FindChannelByCode(ctx context.Context, hotelID, code string) (*Channel, error)
	ListChannels(ctx context.Context, hotelID string) ([]Channel, error)
	ListHotelIDs(ctx context.Context) ([]string, error)
	SaveChannelMode(ctx context.Context, channelID, mode string, lockedAt time.Time) error
	CountReservations(ctx context.Context, channelID string, since time.Time) (int, error)
	CountPushDeliveries(ctx context.Context, channelID string, since time.Time) (int, error)
	RecordPushDelivery(ctx context.Context, channelID, eventID string, at time.Time) error
}

// AuditLog is the append-only audit trail shared by all write paths.
type AuditLog interface {
	Append(ctx context.Context, entry AuditEntry) error
	ByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]AuditEntry, error)
}

// ARIStore is the full persistence surface of the distribution core.
type ARIStore interface {
	RestrictionReader
	ARIWriter
	TxRunner
	ChannelStore
	AuditLog
}
