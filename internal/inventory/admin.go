package inventory

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// Admin performs operator overrides on seat state.  Every call is
// written to the audit trail whether or not it was applied.
type Admin struct {
	store     *Store
	holds     *HoldManager
	finalizer *Finalizer
	events    EventSink
	log       logger.Logger
}

// NewAdmin returns an override component over the finalizer's store.
func NewAdmin(holds *HoldManager, finalizer *Finalizer) *Admin {
	return &Admin{
		store:     holds.store,
		holds:     holds,
		finalizer: finalizer,
		events:    holds.events,
		log:       holds.store.log.With("component", "admin"),
	}
}

// LockSeats takes AVAILABLE seats out of sale.  Seats that are held,
// booked or already locked cause the whole call to fail with an
// admin-override *ConflictError.
func (a *Admin) LockSeats(ctx context.Context, screeningID string, seatIDs []string, reason, actor string) ([]model.SeatState, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, invalid("reason is required")
	}
	seats, err := adminSeats(seatIDs)
	if err != nil {
		return nil, err
	}
	return a.apply(ctx, model.AuditLock, screeningID, seats, reason, actor,
		StatusIs(model.SeatAvailable), model.SeatLocked, model.EventSeatsLocked)
}

// UnlockSeats returns LOCKED seats to AVAILABLE.
func (a *Admin) UnlockSeats(ctx context.Context, screeningID string, seatIDs []string, actor string) ([]model.SeatState, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	seats, err := adminSeats(seatIDs)
	if err != nil {
		return nil, err
	}
	return a.apply(ctx, model.AuditUnlock, screeningID, seats, "", actor,
		StatusIs(model.SeatLocked), model.SeatAvailable, model.EventSeatsUnlocked)
}

// ForceRelease cancels every hold and releases every booking covering
// seatIDs, then locks the seats.  Seats already locked stay locked.
// The steps run one after another; a buyer racing the release may
// claim a freed seat, in which case the final lock reports it as a
// conflict.
func (a *Admin) ForceRelease(ctx context.Context, screeningID string, seatIDs []string, reason, actor string) ([]model.SeatState, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if strings.TrimSpace(reason) == "" {
		return nil, invalid("reason is required")
	}
	seats, err := adminSeats(seatIDs)
	if err != nil {
		return nil, err
	}

	var (
		holds    []model.Hold
		bookings []model.Booking
		toLock   []string
		unknown  []string
	)
	err = a.store.View(ctx, screeningID, func(r Reader) error {
		seenHold := make(map[string]struct{})
		for _, id := range seats {
			st, ok := r.State(id)
			if !ok {
				unknown = append(unknown, id)
				continue
			}
			switch st.Status {
			case model.SeatLocked:
				continue
			case model.SeatHeld:
				if _, dup := seenHold[st.HoldRef]; !dup {
					seenHold[st.HoldRef] = struct{}{}
					if h, ok := r.Hold(st.HoldRef); ok {
						holds = append(holds, h)
					}
				}
			case model.SeatBooked:
				if _, dup := seenHold[st.HoldRef]; !dup {
					seenHold[st.HoldRef] = struct{}{}
					if b, ok := r.BookingForHold(st.HoldRef); ok {
						bookings = append(bookings, b)
					}
				}
			}
			toLock = append(toLock, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrSeatNotFound, strings.Join(unknown, ","))
	}

	by := override{actor: actor, reason: reason}
	var released []string
	for _, h := range holds {
		if err := a.holds.cancel(ctx, h, by); err != nil {
			return nil, fmt.Errorf("cancel hold %s: %w", h.ID, err)
		}
		released = append(released, h.SeatIDs...)
	}
	for _, b := range bookings {
		if _, err := a.finalizer.ReleaseBooking(ctx, b.ID, actor, reason); err != nil {
			return nil, fmt.Errorf("release booking %s: %w", b.ID, err)
		}
		released = append(released, b.SeatIDs...)
	}

	entry := a.entry(model.AuditForceRelease, screeningID, seats, reason, actor)
	if err := a.store.UpdateRecords(ctx, screeningID, Metadata{Audit: &entry}); err != nil {
		return nil, err
	}
	a.store.metrics.AdminOverride(string(model.AuditForceRelease), string(model.AuditApplied))
	a.log.Info("seats force released",
		"screening_id", screeningID,
		"actor", actor,
		"holds", len(holds),
		"bookings", len(bookings),
		"released_seats", released,
	)

	if len(toLock) == 0 {
		return a.store.statesOf(ctx, screeningID, seats)
	}
	if _, err := a.apply(ctx, model.AuditLock, screeningID, toLock, reason, actor,
		StatusIs(model.SeatAvailable), model.SeatLocked, model.EventSeatsLocked); err != nil {
		return nil, err
	}
	return a.store.statesOf(ctx, screeningID, seats)
}

// Audit lists the audit trail of a screening.
func (a *Admin) Audit(ctx context.Context, screeningID string) ([]model.AuditEntry, error) {
	return a.store.Audit(ctx, screeningID)
}

func (a *Admin) apply(ctx context.Context, action model.AuditAction, screeningID string, seats []string, reason, actor string, pred Predicate, target model.SeatStatus, evType model.EventType) ([]model.SeatState, error) {
	entry := a.entry(action, screeningID, seats, reason, actor)
	meta := Metadata{Audit: &entry}
	if target == model.SeatLocked {
		meta.LockReason = reason
		meta.LockedBy = actor
	}
	res, err := a.store.BulkTransition(ctx, screeningID, seats, pred, target, meta)
	if err != nil {
		return nil, err
	}
	if !res.Applied {
		rejected := a.entry(action, screeningID, seats, reason, actor)
		rejected.Outcome = model.AuditConflict
		rejected.Conflicts = res.Conflicts
		if err := a.store.UpdateRecords(ctx, screeningID, Metadata{Audit: &rejected}); err != nil {
			a.log.Warn("recording rejected override failed", "screening_id", screeningID, "error", err)
		}
		a.store.metrics.AdminOverride(string(action), string(model.AuditConflict))
		return nil, &ConflictError{Seats: res.Conflicts, Admin: true}
	}
	a.store.metrics.AdminOverride(string(action), string(model.AuditApplied))
	a.events.Publish(ctx, model.Event{
		Type:        evType,
		ScreeningID: screeningID,
		Actor:       actor,
		Reason:      reason,
		SeatIDs:     seats,
		SeatRemain:  res.SeatRemain,
		At:          entry.At,
	})
	return res.States, nil
}

func (a *Admin) entry(action model.AuditAction, screeningID string, seats []string, reason, actor string) model.AuditEntry {
	return model.AuditEntry{
		ID:          uuid.NewString(),
		ScreeningID: screeningID,
		Action:      action,
		Actor:       actor,
		Reason:      reason,
		SeatIDs:     seats,
		Outcome:     model.AuditApplied,
		At:          a.store.Now(),
	}
}

// statesOf returns the authoritative states of the given seats.
func (s *Store) statesOf(ctx context.Context, screeningID string, seats []string) ([]model.SeatState, error) {
	out := make([]model.SeatState, 0, len(seats))
	err := s.View(ctx, screeningID, func(r Reader) error {
		for _, id := range seats {
			st, ok := r.State(id)
			if !ok {
				return fmt.Errorf("%w: %s", ErrSeatNotFound, id)
			}
			out = append(out, st)
		}
		return nil
	})
	return out, err
}

func requireActor(actor string) error {
	if strings.TrimSpace(actor) == "" {
		return invalid("actor is required")
	}
	return nil
}

// adminSeats validates an override seat set.  Overrides are not bound
// by the per-hold seat limit.
func adminSeats(ids []string) ([]string, error) {
	return normalizeSeats(ids, len(ids))
}
