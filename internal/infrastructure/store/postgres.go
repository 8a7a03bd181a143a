package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// querier is satisfied by both *sql.DB and *sql.Tx so the same store code
// runs inside and outside a transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresStore implements ARIStore on PostgreSQL.
type PostgresStore struct {
	db *sql.DB
	q  querier
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

// ConnectPostgres establishes a pooled connection to PostgreSQL.
func ConnectPostgres(connStr string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

// WithinTx runs fn inside one transaction; fn returning an error rolls the
// whole batch back. The transaction is the only mutual-exclusion layer: two
// batches on overlapping keys serialize on the store, last writer wins.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx ARIWriter) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	txStore := &PostgresStore{db: s.db, q: sqlTx}
	if err := fn(txStore); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback after %v: %w", err, rbErr)
		}
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Room types

func (s *PostgresStore) FindRoomType(ctx context.Context, hotelID, code string) (*RoomType, error) {
	var rt RoomType
	err := s.q.QueryRowContext(ctx,
		`SELECT id, hotel_id, code, name, total_rooms, out_of_service
		 FROM room_types WHERE hotel_id = $1 AND code = $2`,
		hotelID, code,
	).Scan(&rt.ID, &rt.HotelID, &rt.Code, &rt.Name, &rt.TotalRooms, &rt.OutOfService)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rt, nil
}

// Inventory

func (s *PostgresStore) SetAvailability(ctx context.Context, rt RoomType, date time.Time, available int) error {
	// Never report more rooms than physically exist and are in service.
	clamped := available
	if sellable := rt.SellableRooms(); clamped > sellable {
		clamped = sellable
	}
	if clamped < 0 {
		clamped = 0
	}

	_, err := s.q.ExecContext(ctx,
		`INSERT INTO inventory (hotel_id, room_type_id, date, total_rooms, available, booked, updated_at)
		 VALUES ($1, $2, $3, $4, $5, 0, $6)
		 ON CONFLICT (hotel_id, room_type_id, date) DO UPDATE SET
		     available = EXCLUDED.available,
		     total_rooms = EXCLUDED.total_rooms,
		     updated_at = EXCLUDED.updated_at`,
		rt.HotelID, rt.ID, Day(date), rt.TotalRooms, clamped, time.Now(),
	)
	return err
}

func (s *PostgresStore) AdjustAvailability(ctx context.Context, rt RoomType, date time.Time, delta int) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO inventory (hotel_id, room_type_id, date, total_rooms, available, booked, updated_at)
		 VALUES ($1, $2, $3, $4, GREATEST(0, LEAST($5, $6)), 0, $7)
		 ON CONFLICT (hotel_id, room_type_id, date) DO UPDATE SET
		     available = GREATEST(0, LEAST($5, inventory.available + $6)),
		     total_rooms = $4,
		     updated_at = $7`,
		rt.HotelID, rt.ID, Day(date), rt.TotalRooms, rt.SellableRooms(), delta, time.Now(),
	)
	return err
}

func (s *PostgresStore) GetInventory(ctx context.Context, hotelID, roomTypeID string, date time.Time) (*InventoryRecord, error) {
	var rec InventoryRecord
	err := s.q.QueryRowContext(ctx,
		`SELECT hotel_id, room_type_id, date, total_rooms, available, booked
		 FROM inventory WHERE hotel_id = $1 AND room_type_id = $2 AND date = $3`,
		hotelID, roomTypeID, Day(date),
	).Scan(&rec.HotelID, &rec.RoomTypeID, &rec.Date, &rec.TotalRooms, &rec.Available, &rec.Booked)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// Rates

func (s *PostgresStore) UpsertRate(ctx context.Context, rt RoomType, ratePlanCode string, date time.Time, amount int64, currency string) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO rates (hotel_id, room_type_id, rate_plan_code, date, amount, currency, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (hotel_id, room_type_id, rate_plan_code, date) DO UPDATE SET
		     amount = EXCLUDED.amount,
		     currency = EXCLUDED.currency,
		     updated_at = EXCLUDED.updated_at`,
		rt.HotelID, rt.ID, ratePlanCode, Day(date), amount, currency, time.Now(),
	)
	return err
}

// Restrictions

func (s *PostgresStore) UpsertRestriction(ctx context.Context, rt RoomType, date time.Time, patch RestrictionPatch) error {
	// Partial upsert: nil patch fields keep whatever the row already has.
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO restrictions (hotel_id, room_type_id, date,
		     closed_to_arrival, closed_to_departure, min_stay, max_stay, stop_sell, closed, updated_at)
		 VALUES ($1, $2, $3,
		     COALESCE($4, false), COALESCE($5, false), $6, $7, COALESCE($8, false), COALESCE($9, false), $10)
		 ON CONFLICT (hotel_id, room_type_id, date) DO UPDATE SET
		     closed_to_arrival = COALESCE($4, restrictions.closed_to_arrival),
		     closed_to_departure = COALESCE($5, restrictions.closed_to_departure),
		     min_stay = COALESCE($6, restrictions.min_stay),
		     max_stay = COALESCE($7, restrictions.max_stay),
		     stop_sell = COALESCE($8, restrictions.stop_sell),
		     closed = COALESCE($9, restrictions.closed),
		     updated_at = $10`,
		rt.HotelID, rt.ID, Day(date),
		patch.ClosedToArrival, patch.ClosedToDeparture, patch.MinStay, patch.MaxStay,
		patch.StopSell, patch.Closed, time.Now(),
	)
	return err
}

func (s *PostgresStore) FindRestrictions(ctx context.Context, hotelID, roomTypeID string, from, to time.Time) ([]RestrictionRecord, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT hotel_id, room_type_id, date,
		     closed_to_arrival, closed_to_departure, min_stay, max_stay, stop_sell, closed
		 FROM restrictions
		 WHERE hotel_id = $1 AND room_type_id = $2 AND date BETWEEN $3 AND $4
		 ORDER BY date ASC`,
		hotelID, roomTypeID, Day(from), Day(to),
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []RestrictionRecord
	for rows.Next() {
		var rec RestrictionRecord
		var minStay, maxStay sql.NullInt64
		if err := rows.Scan(&rec.HotelID, &rec.RoomTypeID, &rec.Date,
			&rec.ClosedToArrival, &rec.ClosedToDeparture, &minStay, &maxStay,
			&rec.StopSell, &rec.Closed); err != nil {
			return nil, err
		}
		if minStay.Valid {
			v := int(minStay.Int64)
			rec.MinStay = &v
		}
		if maxStay.Valid {
			v := int(maxStay.Int64)
			rec.MaxStay = &v
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Channels

func (s *PostgresStore) GetChannel(ctx context.Context, channelID string) (*Channel, error) {
	return s.scanChannel(s.q.QueryRowContext(ctx,
		`SELECT id, hotel_id, code, name, type, distribution_mode, mode_locked_at, secret_hash
		 FROM channels WHERE id = $1`, channelID))
}

func (s *PostgresStore) FindChannelByCode(ctx context.Context, hotelID, code string) (*Channel, error) {
	return s.scanChannel(s.q.QueryRowContext(ctx,
		`SELECT id, hotel_id, code, name, type, distribution_mode, mode_locked_at, secret_hash
		 FROM channels WHERE hotel_id = $1 AND code = $2`, hotelID, code))
}

func (s *PostgresStore) scanChannel(row *sql.Row) (*Channel, error) {
	var ch Channel
	var lockedAt sql.NullTime
	err := row.Scan(&ch.ID, &ch.HotelID, &ch.Code, &ch.Name, &ch.Type,
		&ch.DistributionMode, &lockedAt, &ch.SecretHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if lockedAt.Valid {
		ch.ModeLockedAt = lockedAt.Time
	}
	return &ch, nil
}

func (s *PostgresStore) ListChannels(ctx context.Context, hotelID string) ([]Channel, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT id, hotel_id, code, name, type, distribution_mode, mode_locked_at, secret_hash
		 FROM channels WHERE hotel_id = $1 ORDER BY code`, hotelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var channels []Channel
	for rows.Next() {
		var ch Channel
		var lockedAt sql.NullTime
		if err := rows.Scan(&ch.ID, &ch.HotelID, &ch.Code, &ch.Name, &ch.Type,
			&ch.DistributionMode, &lockedAt, &ch.SecretHash); err != nil {
			return nil, err
		}
		if lockedAt.Valid {
			ch.ModeLockedAt = lockedAt.Time
		}
		channels = append(channels, ch)
	}
	return channels, rows.Err()
}

func (s *PostgresStore) ListHotelIDs(ctx context.Context) ([]string, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT DISTINCT hotel_id FROM channels ORDER BY hotel_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *PostgresStore) SaveChannelMode(ctx context.Context, channelID, mode string, lockedAt time.Time) error {
	res, err := s.q.ExecContext(ctx,
		`UPDATE channels SET distribution_mode = $2, mode_locked_at = $3 WHERE id = $1`,
		channelID, mode, lockedAt)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// Channel activity

func (s *PostgresStore) CountReservations(ctx context.Context, channelID string, since time.Time) (int, error) {
	return s.countActivity(ctx, channelID, "reservation", since)
}

func (s *PostgresStore) CountPushDeliveries(ctx context.Context, channelID string, since time.Time) (int, error) {
	return s.countActivity(ctx, channelID, "push", since)
}

func (s *PostgresStore) countActivity(ctx context.Context, channelID, kind string, since time.Time) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM channel_activity
		 WHERE channel_id = $1 AND kind = $2 AND occurred_at >= $3`,
		channelID, kind, since,
	).Scan(&n)
	return n, err
}

func (s *PostgresStore) RecordPushDelivery(ctx context.Context, channelID, eventID string, at time.Time) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO channel_activity (channel_id, kind, event_id, occurred_at)
		 VALUES ($1, 'push', $2, $3)`,
		channelID, eventID, at)
	return err
}

// Audit trail

func (s *PostgresStore) Append(ctx context.Context, entry AuditEntry) error {
	_, err := s.q.ExecContext(ctx,
		`INSERT INTO audit_log (event_id, event_type, aggregate_id, aggregate_type, payload, hotel_id, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.EventID, entry.EventType, entry.AggregateID, entry.AggregateType,
		[]byte(entry.Payload), entry.HotelID, entry.Timestamp)
	return err
}

func (s *PostgresStore) ByAggregate(ctx context.Context, aggregateType, aggregateID string) ([]AuditEntry, error) {
	rows, err := s.q.QueryContext(ctx,
		`SELECT event_id, event_type, aggregate_id, aggregate_type, payload, hotel_id, created_at
		 FROM audit_log
		 WHERE aggregate_type = $1 AND aggregate_id = $2
		 ORDER BY created_at DESC`,
		aggregateType, aggregateID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.EventID, &e.EventType, &e.AggregateID, &e.AggregateType,
			&e.Payload, &e.HotelID, &e.Timestamp); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
