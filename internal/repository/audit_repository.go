package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// AuditRepo appends to seat_audit.  Rows are never updated.
type AuditRepo struct {
	db *sql.DB
}

// NewAuditRepo returns an AuditRepo bound to db.
func NewAuditRepo(db *sql.DB) *AuditRepo { return &AuditRepo{db: db} }

// InsertTx appends one audit entry.
func (r *AuditRepo) InsertTx(ctx context.Context, tx *sql.Tx, e model.AuditEntry) error {
	seats, err := encodeIDs(e.SeatIDs)
	if err != nil {
		return err
	}
	conflicts, err := encodeIDs(e.Conflicts)
	if err != nil {
		return err
	}
	const q = `INSERT INTO seat_audit (id, screening_id, action, actor, reason, seat_ids, outcome, conflicts, at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = tx.ExecContext(ctx, q,
		e.ID, e.ScreeningID, string(e.Action), e.Actor, e.Reason, seats,
		string(e.Outcome), conflicts, e.At.UTC(),
	)
	return err
}

// ListByScreening returns the audit trail of a screening, oldest first.
func (r *AuditRepo) ListByScreening(ctx context.Context, screeningID string) ([]model.AuditEntry, error) {
	const q = `SELECT id, action, actor, reason, seat_ids, outcome, conflicts, at
               FROM seat_audit WHERE screening_id = ? ORDER BY seq`
	rows, err := r.db.QueryContext(ctx, q, screeningID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.AuditEntry
	for rows.Next() {
		var (
			e                model.AuditEntry
			action, outcome  string
			seats, conflicts []byte
		)
		if err := rows.Scan(&e.ID, &action, &e.Actor, &e.Reason, &seats, &outcome, &conflicts, &e.At); err != nil {
			return nil, err
		}
		if e.SeatIDs, err = decodeIDs(seats); err != nil {
			return nil, err
		}
		if e.Conflicts, err = decodeIDs(conflicts); err != nil {
			return nil, err
		}
		if len(e.Conflicts) == 0 {
			e.Conflicts = nil
		}
		e.ScreeningID = screeningID
		e.Action = model.AuditAction(action)
		e.Outcome = model.AuditOutcome(outcome)
		e.At = e.At.UTC()
		out = append(out, e)
	}
	return out, rows.Err()
}
