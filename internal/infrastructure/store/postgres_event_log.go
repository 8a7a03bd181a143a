package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"
)

// PostgresEventLog persists ARI events with a primary key on the event ID.
// The key constraint carries the dedupe guarantee: concurrent deliveries of
// the same event race on the insert and exactly one wins.
type PostgresEventLog struct {
	db *sql.DB
}

func NewPostgresEventLog(db *sql.DB) *PostgresEventLog {
	return &PostgresEventLog{db: db}
}

func (l *PostgresEventLog) Insert(ctx context.Context, ev *ARIEvent) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO ari_events (id, type, hotel_id, room_type_code, rate_plan_code, channel_code,
		     date_from, date_to, payload, occurred_at, received_at, status, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		ev.ID, ev.Type, ev.HotelID, ev.RoomTypeCode, ev.RatePlanCode, ev.ChannelCode,
		ev.From, ev.To, []byte(ev.Payload), ev.OccurredAt, ev.ReceivedAt, ev.Status, ev.Error,
	)
	if err != nil {
		// 23505 is unique_violation: someone already owns this event ID.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrDuplicateEvent
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (l *PostgresEventLog) SetStatus(ctx context.Context, eventID string, status EventStatus, errMsg string) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE ari_events SET status = $2, error = $3 WHERE id = $1`,
		eventID, status, errMsg)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (l *PostgresEventLog) Get(ctx context.Context, eventID string) (*ARIEvent, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, type, hotel_id, room_type_code, rate_plan_code, channel_code,
		     date_from, date_to, payload, occurred_at, received_at, status, error
		 FROM ari_events WHERE id = $1`, eventID)

	ev, err := scanEvent(row.Scan)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return ev, nil
}

func (l *PostgresEventLog) ListDeadLetters(ctx context.Context, hotelID string, limit int) ([]ARIEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, type, hotel_id, room_type_code, rate_plan_code, channel_code,
		     date_from, date_to, payload, occurred_at, received_at, status, error
		 FROM ari_events
		 WHERE hotel_id = $1 AND status = $2
		 ORDER BY received_at DESC
		 LIMIT $3`,
		hotelID, StatusError, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []ARIEvent
	for rows.Next() {
		ev, err := scanEvent(rows.Scan)
		if err != nil {
			return nil, err
		}
		events = append(events, *ev)
	}
	return events, rows.Err()
}

func scanEvent(scan func(dest ...any) error) (*ARIEvent, error) {
	var ev ARIEvent
	var payload []byte
	err := scan(&ev.ID, &ev.Type, &ev.HotelID, &ev.RoomTypeCode, &ev.RatePlanCode, &ev.ChannelCode,
		&ev.From, &ev.To, &payload, &ev.OccurredAt, &ev.ReceivedAt, &ev.Status, &ev.Error)
	if err != nil {
		return nil, err
	}
	ev.Payload = payload
	return &ev, nil
}
