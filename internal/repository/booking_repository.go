package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// BookingRepo stores bookings.  hold_id is unique so a hold can only
// ever be finalized once, even across processes.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// UpsertTx inserts a booking or records its cancellation.
func (r *BookingRepo) UpsertTx(ctx context.Context, tx *sql.Tx, b model.Booking) error {
	seats, err := encodeIDs(b.SeatIDs)
	if err != nil {
		return err
	}
	const q = `INSERT INTO bookings (id, hold_id, screening_id, seat_ids, owner_token, status, booked_at, cancelled_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE status = VALUES(status), cancelled_at = VALUES(cancelled_at)`
	_, err = tx.ExecContext(ctx, q,
		b.ID, b.HoldID, b.ScreeningID, seats, b.OwnerToken, string(b.Status),
		b.BookedAt.UTC(), nullTimePtr(b.CancelledAt),
	)
	return err
}

// ListByScreening returns every booking of a screening.
func (r *BookingRepo) ListByScreening(ctx context.Context, screeningID string) ([]model.Booking, error) {
	const q = `SELECT id, hold_id, seat_ids, owner_token, status, booked_at, cancelled_at
               FROM bookings WHERE screening_id = ? ORDER BY booked_at`
	rows, err := r.db.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		var (
			b         model.Booking
			seats     []byte
			status    string
			cancelled sql.NullTime
		)
		if err := rows.Scan(&b.ID, &b.HoldID, &seats, &b.OwnerToken, &status, &b.BookedAt, &cancelled); err != nil {
			return nil, err
		}
		if b.SeatIDs, err = decodeIDs(seats); err != nil {
			return nil, err
		}
		b.ScreeningID = screeningID
		b.Status = model.BookingStatus(status)
		b.BookedAt = b.BookedAt.UTC()
		if cancelled.Valid {
			t := cancelled.Time.UTC()
			b.CancelledAt = &t
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
