package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// Store writes inventory transitions to MySQL and loads them back for
// recovery.  It satisfies inventory.Persister and inventory.Loader.
type Store struct {
	db         *sql.DB
	Screenings *ScreeningRepo
	Seats      *SeatStateRepo
	Holds      *HoldRepo
	Bookings   *BookingRepo
	Audit      *AuditRepo
}

// NewStore bundles the table repositories over one connection pool.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:         db,
		Screenings: NewScreeningRepo(db),
		Seats:      NewSeatStateRepo(db),
		Holds:      NewHoldRepo(db),
		Bookings:   NewBookingRepo(db),
		Audit:      NewAuditRepo(db),
	}
}

// DB returns the underlying pool, used for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// CreateScreening inserts a screening and all of its seats in one
// transaction.
func (s *Store) CreateScreening(ctx context.Context, sc model.Screening, seats []model.Seat) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Screenings.CreateTx(ctx, tx, sc); err != nil {
			return fmt.Errorf("insert screening: %w", err)
		}
		if err := s.Seats.CreateBulkTx(ctx, tx, sc.ID, seats); err != nil {
			return fmt.Errorf("insert seats: %w", err)
		}
		return nil
	})
}

// Apply stores one transition atomically: seat rows (version
// checked), the screening counters and the side records.
func (s *Store) Apply(ctx context.Context, t model.Transition) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if err := s.Seats.UpdateTx(ctx, tx, t.ScreeningID, t.Seats); err != nil {
			return err
		}
		if len(t.Seats) > 0 || t.Retire {
			if err := s.Screenings.UpdateCountersTx(ctx, tx, t.ScreeningID, t.SeatRemain, t.Retire); err != nil {
				return fmt.Errorf("update screening %s: %w", t.ScreeningID, err)
			}
		}
		if t.DeleteHold != "" {
			if err := s.Holds.DeleteTx(ctx, tx, t.DeleteHold); err != nil {
				return fmt.Errorf("delete hold: %w", err)
			}
		}
		if t.PutHold != nil {
			if err := s.Holds.UpsertTx(ctx, tx, *t.PutHold); err != nil {
				return fmt.Errorf("store hold: %w", err)
			}
		}
		if t.PutBooking != nil {
			if err := s.Bookings.UpsertTx(ctx, tx, *t.PutBooking); err != nil {
				return fmt.Errorf("store booking: %w", err)
			}
		}
		if t.Audit != nil {
			if err := s.Audit.InsertTx(ctx, tx, *t.Audit); err != nil {
				return fmt.Errorf("store audit entry: %w", err)
			}
		}
		return nil
	})
}

// LoadAll returns a snapshot of every screening that has not been
// retired.
func (s *Store) LoadAll(ctx context.Context) ([]model.ScreeningSnapshot, error) {
	screenings, err := s.Screenings.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list screenings: %w", err)
	}
	out := make([]model.ScreeningSnapshot, 0, len(screenings))
	for _, sc := range screenings {
		snap := model.ScreeningSnapshot{Screening: sc}
		if snap.Seats, snap.States, err = s.Seats.ListByScreening(ctx, sc.ID); err != nil {
			return nil, fmt.Errorf("seats of %s: %w", sc.ID, err)
		}
		if snap.Holds, err = s.Holds.ListByScreening(ctx, sc.ID); err != nil {
			return nil, fmt.Errorf("holds of %s: %w", sc.ID, err)
		}
		if snap.Bookings, err = s.Bookings.ListByScreening(ctx, sc.ID); err != nil {
			return nil, fmt.Errorf("bookings of %s: %w", sc.ID, err)
		}
		if snap.Audit, err = s.Audit.ListByScreening(ctx, sc.ID); err != nil {
			return nil, fmt.Errorf("audit of %s: %w", sc.ID, err)
		}
		out = append(out, snap)
	}
	return out, nil
}

// inTx runs fn in a transaction, committing only when fn succeeds.
func (s *Store) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}
