package repository

import (
	"context"
	"database/sql"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// ScreeningRepo provides access to the screenings table.  seat_total
// and seat_remain are only written by the statements below; the
// inventory recomputes them on every transition.
type ScreeningRepo struct {
	db *sql.DB
}

// NewScreeningRepo returns a ScreeningRepo bound to db.
func NewScreeningRepo(db *sql.DB) *ScreeningRepo { return &ScreeningRepo{db: db} }

// CreateTx inserts a screening row.
func (r *ScreeningRepo) CreateTx(ctx context.Context, tx *sql.Tx, sc model.Screening) error {
	const q = `INSERT INTO screenings (id, hall_id, movie_title, starts_at, ends_at, status, seat_total, seat_remain, created_at)
               VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := tx.ExecContext(ctx, q,
		sc.ID, sc.HallID, sc.MovieTitle, nullTime(sc.StartsAt), nullTime(sc.EndsAt),
		string(sc.Status), sc.SeatTotal, sc.SeatRemain, sc.CreatedAt.UTC(),
	)
	return err
}

// UpdateCountersTx stores the new seat_remain and, when retire is set,
// marks the screening RETIRED.
func (r *ScreeningRepo) UpdateCountersTx(ctx context.Context, tx *sql.Tx, screeningID string, seatRemain int, retire bool) error {
	var (
		res sql.Result
		err error
	)
	if retire {
		res, err = tx.ExecContext(ctx,
			`UPDATE screenings SET seat_remain = ?, status = ? WHERE id = ?`,
			seatRemain, string(model.ScreeningRetired), screeningID)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE screenings SET seat_remain = ? WHERE id = ?`,
			seatRemain, screeningID)
	}
	if err != nil {
		return err
	}
	// Requires clientFoundRows in the DSN: an unchanged counter still
	// counts as a matched row.
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListActive returns every screening that has not been retired.
func (r *ScreeningRepo) ListActive(ctx context.Context) ([]model.Screening, error) {
	const q = `SELECT id, hall_id, movie_title, starts_at, ends_at, status, seat_total, seat_remain, created_at
               FROM screenings WHERE status <> ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, string(model.ScreeningRetired))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Screening
	for rows.Next() {
		var (
			sc           model.Screening
			status       string
			starts, ends sql.NullTime
		)
		if err := rows.Scan(&sc.ID, &sc.HallID, &sc.MovieTitle, &starts, &ends, &status,
			&sc.SeatTotal, &sc.SeatRemain, &sc.CreatedAt); err != nil {
			return nil, err
		}
		sc.Status = model.ScreeningStatus(status)
		if starts.Valid {
			sc.StartsAt = starts.Time.UTC()
		}
		if ends.Valid {
			sc.EndsAt = ends.Time.UTC()
		}
		sc.CreatedAt = sc.CreatedAt.UTC()
		out = append(out, sc)
	}
	return out, rows.Err()
}
