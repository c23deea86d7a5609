package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// HoldRepo stores live holds.  A row exists exactly while the hold is
// live; release, expiry and confirmation delete it in the same
// transaction that frees or books the seats.
type HoldRepo struct {
	db *sql.DB
}

// NewHoldRepo returns a HoldRepo bound to db.
func NewHoldRepo(db *sql.DB) *HoldRepo { return &HoldRepo{db: db} }

// UpsertTx inserts a hold or, for an existing id, moves its expiry.
func (r *HoldRepo) UpsertTx(ctx context.Context, tx *sql.Tx, h model.Hold) error {
	seats, err := encodeIDs(h.SeatIDs)
	if err != nil {
		return err
	}
	const q = `INSERT INTO holds (id, screening_id, seat_ids, owner_token, created_at, expires_at)
               VALUES (?, ?, ?, ?, ?, ?)
               ON DUPLICATE KEY UPDATE expires_at = VALUES(expires_at)`
	_, err = tx.ExecContext(ctx, q, h.ID, h.ScreeningID, seats, h.OwnerToken, h.CreatedAt.UTC(), h.ExpiresAt.UTC())
	return err
}

// DeleteTx removes a hold.  Deleting a missing hold is not an error.
func (r *HoldRepo) DeleteTx(ctx context.Context, tx *sql.Tx, holdID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM holds WHERE id = ?`, holdID)
	return err
}

// ListByScreening returns the live holds of a screening, including
// holds whose expiry passed while the process was down.
func (r *HoldRepo) ListByScreening(ctx context.Context, screeningID string) ([]model.Hold, error) {
	const q = `SELECT id, seat_ids, owner_token, created_at, expires_at
               FROM holds WHERE screening_id = ? ORDER BY created_at`
	rows, err := r.db.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Hold
	for rows.Next() {
		var (
			h     model.Hold
			seats []byte
		)
		if err := rows.Scan(&h.ID, &seats, &h.OwnerToken, &h.CreatedAt, &h.ExpiresAt); err != nil {
			return nil, err
		}
		if h.SeatIDs, err = decodeIDs(seats); err != nil {
			return nil, err
		}
		h.ScreeningID = screeningID
		h.CreatedAt = h.CreatedAt.UTC()
		h.ExpiresAt = h.ExpiresAt.UTC()
		out = append(out, h)
	}
	return out, rows.Err()
}
