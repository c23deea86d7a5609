package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// SeatStateRepo stores one screening_seats row per seat of a screening.
// The row carries both the immutable seat description and the mutable
// state; version implements optimistic locking.
type SeatStateRepo struct {
	db *sql.DB
}

// NewSeatStateRepo returns a SeatStateRepo bound to db.
func NewSeatStateRepo(db *sql.DB) *SeatStateRepo { return &SeatStateRepo{db: db} }

// seatsPerInsert keeps a bulk insert well below MySQL's placeholder
// limit.
const seatsPerInsert = 500

// CreateBulkTx inserts the seats of a new screening, all AVAILABLE at
// version 0.
func (r *SeatStateRepo) CreateBulkTx(ctx context.Context, tx *sql.Tx, screeningID string, seats []model.Seat) error {
	for start := 0; start < len(seats); start += seatsPerInsert {
		end := start + seatsPerInsert
		if end > len(seats) {
			end = len(seats)
		}
		query := `INSERT INTO screening_seats (screening_id, seat_id, row_label, col, seat_type, base_price_cents, status, version) VALUES `
		args := make([]any, 0, (end-start)*8)
		for i, s := range seats[start:end] {
			if i > 0 {
				query += ","
			}
			query += "(?, ?, ?, ?, ?, ?, ?, ?)"
			args = append(args, screeningID, s.ID, s.Row, s.Col, string(s.Type), s.BasePriceCents, string(model.SeatAvailable), 0)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}
	}
	return nil
}

// UpdateTx writes new seat states.  Each update only matches the row if
// its version still equals the version the state was derived from;
// otherwise ErrConflict is returned and the caller must roll back.
func (r *SeatStateRepo) UpdateTx(ctx context.Context, tx *sql.Tx, screeningID string, writes []model.SeatWrite) error {
	const q = `UPDATE screening_seats
               SET status = ?, hold_ref = ?, lock_reason = ?, locked_by = ?, version = ?, updated_at = ?
               WHERE screening_id = ? AND seat_id = ? AND version = ?`
	for _, w := range writes {
		st := w.State
		res, err := tx.ExecContext(ctx, q,
			string(st.Status), nullString(st.HoldRef), nullString(st.LockReason), nullString(st.LockedBy),
			st.Version, st.UpdatedAt.UTC(),
			screeningID, st.SeatID, w.PrevVersion,
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("seat %s at version %d: %w", st.SeatID, w.PrevVersion, ErrConflict)
		}
	}
	return nil
}

// ListByScreening returns the seats and their states in row-major
// order.
func (r *SeatStateRepo) ListByScreening(ctx context.Context, screeningID string) ([]model.Seat, []model.SeatState, error) {
	const q = `SELECT seat_id, row_label, col, seat_type, base_price_cents,
                      status, hold_ref, lock_reason, locked_by, version, updated_at
               FROM screening_seats WHERE screening_id = ?
               ORDER BY LENGTH(row_label), row_label, col`
	rows, err := r.db.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var (
		seats  []model.Seat
		states []model.SeatState
	)
	for rows.Next() {
		var (
			seat                          model.Seat
			st                            model.SeatState
			seatType, status              string
			holdRef, lockReason, lockedBy sql.NullString
			updatedAt                     sql.NullTime
		)
		if err := rows.Scan(&seat.ID, &seat.Row, &seat.Col, &seatType, &seat.BasePriceCents,
			&status, &holdRef, &lockReason, &lockedBy, &st.Version, &updatedAt); err != nil {
			return nil, nil, err
		}
		seat.ScreeningID = screeningID
		seat.Type = model.SeatType(seatType)
		st.SeatID = seat.ID
		st.Status = model.SeatStatus(status)
		st.HoldRef = holdRef.String
		st.LockReason = lockReason.String
		st.LockedBy = lockedBy.String
		if updatedAt.Valid {
			st.UpdatedAt = updatedAt.Time.UTC()
		}
		seats = append(seats, seat)
		states = append(states, st)
	}
	return seats, states, rows.Err()
}
