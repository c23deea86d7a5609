package inventory

import (
	"context"
	"fmt"

	"github.com/iliyamo/cinema-seat-inventory/internal/clock"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/metrics"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// Config collects the tunables of every inventory component.
type Config struct {
	Hold  HoldConfig
	Sweep SweeperConfig
	Retry RetryPolicy
}

// Deps are the collaborators shared by the components.  Zero values
// select in-memory, silent defaults.
type Deps struct {
	Persister Persister
	Events    EventSink
	Clock     clock.Clock
	Logger    logger.Logger
	Metrics   *metrics.Collectors
}

// Loader reads every persisted screening for crash recovery.
type Loader interface {
	LoadAll(ctx context.Context) ([]model.ScreeningSnapshot, error)
}

// Service bundles the store with the components that drive it.
type Service struct {
	Store    *Store
	Holds    *HoldManager
	Sweeper  *Sweeper
	Bookings *Finalizer
	Admin    *Admin
}

// New wires a complete inventory.
func New(cfg Config, d Deps) *Service {
	if d.Persister == nil {
		d.Persister = NopPersister{}
	}
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Logger == nil {
		d.Logger = logger.Nop()
	}
	store := NewStore(
		WithPersister(d.Persister),
		WithClock(d.Clock),
		WithRetry(cfg.Retry),
		WithLogger(d.Logger),
		WithMetrics(d.Metrics),
	)
	holds := NewHoldManager(store, cfg.Hold, d.Events)
	sweeper := NewSweeper(holds, d.Clock, cfg.Sweep)
	bookings := NewFinalizer(holds)
	return &Service{
		Store:    store,
		Holds:    holds,
		Sweeper:  sweeper,
		Bookings: bookings,
		Admin:    NewAdmin(holds, bookings),
	}
}

// RegisterScreening instantiates the seat map of a screening.
func (s *Service) RegisterScreening(ctx context.Context, sc model.Screening, seats []model.Seat) (SeatMap, error) {
	if !sc.EndsAt.IsZero() && !sc.StartsAt.IsZero() && !sc.EndsAt.After(sc.StartsAt) {
		return SeatMap{}, invalid("screening must end after it starts")
	}
	for _, seat := range seats {
		if !seat.Type.Valid() {
			return SeatMap{}, invalid("seat %s has unknown type %q", seat.ID, seat.Type)
		}
	}
	if _, err := s.Store.Register(ctx, sc, seats); err != nil {
		return SeatMap{}, err
	}
	return s.Store.Snapshot(ctx, sc.ID)
}

// Recover restores every persisted screening and rebuilds the expiry
// schedule.  Holds that expired while the process was down are
// reclaimed before Recover returns.
func (s *Service) Recover(ctx context.Context, loader Loader) error {
	snaps, err := loader.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load seat maps: %w", err)
	}
	for _, snap := range snaps {
		s.Store.Restore(snap)
	}
	s.Sweeper.Recover(ctx)
	s.Store.log.Info("seat maps recovered", "screenings", len(snaps))
	return nil
}
