package inventory

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// finalized carries the booking a hold already produced out of the
// critical section.
type finalized struct{ booking model.Booking }

func (f *finalized) Error() string { return "hold already finalized as booking " + f.booking.ID }

// Finalizer converts live holds into permanent bookings.
type Finalizer struct {
	store  *Store
	holds  *HoldManager
	events EventSink
	log    logger.Logger
}

// NewFinalizer returns a finalizer sharing the hold manager's store
// and event sink.
func NewFinalizer(holds *HoldManager) *Finalizer {
	return &Finalizer{
		store:  holds.store,
		holds:  holds,
		events: holds.events,
		log:    holds.store.log.With("component", "bookings"),
	}
}

// ConfirmBooking finalizes holdID into a booking.  Calling it again for
// a hold that was already confirmed by the same owner returns the
// existing booking.
func (f *Finalizer) ConfirmBooking(ctx context.Context, holdID, ownerToken string) (model.Booking, error) {
	screeningID, ok := f.store.ScreeningForHold(holdID)
	if !ok {
		return model.Booking{}, ErrHoldNotFound
	}
	var hold model.Hold
	err := f.store.View(ctx, screeningID, func(r Reader) error {
		cur, ok := r.Hold(holdID)
		if !ok {
			if b, booked := r.BookingForHold(holdID); booked {
				return &finalized{booking: b}
			}
			return ErrHoldNotFound
		}
		hold = cur
		return nil
	})
	if b, done, err := f.existing(err, ownerToken); done {
		return b, err
	}
	if hold.OwnerToken != ownerToken {
		return model.Booking{}, ErrNotOwner
	}
	if hold.Expired(f.store.Now()) {
		if _, err := f.holds.expire(ctx, holdID); err != nil && !errors.Is(err, ErrHoldNotFound) {
			f.log.Warn("reclaiming expired hold failed", "hold_id", holdID, "error", err)
		}
		return model.Booking{}, ErrHoldExpired
	}

	now := f.store.Now()
	booking := model.Booking{
		ID:          uuid.NewString(),
		HoldID:      holdID,
		ScreeningID: screeningID,
		SeatIDs:     hold.SeatIDs,
		OwnerToken:  ownerToken,
		Status:      model.BookingConfirmed,
		BookedAt:    now,
	}
	res, err := f.store.BulkTransition(ctx, screeningID, hold.SeatIDs, HeldBy(holdID), model.SeatBooked, Metadata{
		HoldRef:    holdID,
		DeleteHold: holdID,
		PutBooking: &booking,
		Precondition: func(r Reader) error {
			cur, ok := r.Hold(holdID)
			if !ok {
				if b, booked := r.BookingForHold(holdID); booked {
					return &finalized{booking: b}
				}
				return ErrHoldNotFound
			}
			if cur.Expired(f.store.Now()) {
				return ErrHoldExpired
			}
			return nil
		},
	})
	if b, done, err := f.existing(err, ownerToken); done {
		return b, err
	}
	if !res.Applied {
		f.log.Error("held seats out of sync with hold record",
			"hold_id", holdID,
			"seats", res.Conflicts,
		)
		return model.Booking{}, &ConflictError{Seats: res.Conflicts}
	}

	f.store.metrics.BookingConfirmed()
	f.events.Publish(ctx, model.Event{
		Type:        model.EventBookingConfirmed,
		ScreeningID: screeningID,
		HoldID:      holdID,
		BookingID:   booking.ID,
		OwnerToken:  ownerToken,
		SeatIDs:     booking.SeatIDs,
		SeatRemain:  res.SeatRemain,
		At:          now,
	})
	return booking, nil
}

// existing resolves an error returned from a confirm step.  done is
// false when the caller should carry on.
func (f *Finalizer) existing(err error, ownerToken string) (model.Booking, bool, error) {
	if err == nil {
		return model.Booking{}, false, nil
	}
	var fin *finalized
	if errors.As(err, &fin) {
		if fin.booking.OwnerToken != ownerToken {
			return model.Booking{}, true, ErrNotOwner
		}
		return fin.booking, true, nil
	}
	return model.Booking{}, true, err
}

// GetBooking returns a booking by id.
func (f *Finalizer) GetBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	screeningID, ok := f.store.ScreeningForBooking(bookingID)
	if !ok {
		return model.Booking{}, ErrBookingNotFound
	}
	var out model.Booking
	err := f.store.View(ctx, screeningID, func(r Reader) error {
		b, ok := r.Booking(bookingID)
		if !ok {
			return ErrBookingNotFound
		}
		out = b
		return nil
	})
	return out, err
}

// OwnerBooking returns a booking only to the owner whose hold produced
// it.
func (f *Finalizer) OwnerBooking(ctx context.Context, bookingID, ownerToken string) (model.Booking, error) {
	b, err := f.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.OwnerToken != ownerToken {
		return model.Booking{}, ErrNotOwner
	}
	return b, nil
}

// ReleaseBooking cancels a confirmed booking and returns its seats to
// AVAILABLE.  It serves external refund flows and forced releases and
// is recorded in the audit trail.  Releasing a cancelled booking
// returns it unchanged.
func (f *Finalizer) ReleaseBooking(ctx context.Context, bookingID, actor, reason string) (model.Booking, error) {
	if strings.TrimSpace(actor) == "" {
		return model.Booking{}, invalid("actor is required")
	}
	b, err := f.GetBooking(ctx, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == model.BookingCancelled {
		return b, nil
	}

	now := f.store.Now()
	cancelled := b
	cancelled.CancelledAt = &now
	cancelled.Status = model.BookingCancelled
	entry := model.AuditEntry{
		ID:          uuid.NewString(),
		ScreeningID: b.ScreeningID,
		Action:      model.AuditReleaseBooking,
		Actor:       actor,
		Reason:      reason,
		SeatIDs:     b.SeatIDs,
		Outcome:     model.AuditApplied,
		At:          now,
	}
	res, err := f.store.BulkTransition(ctx, b.ScreeningID, b.SeatIDs, BookedBy(b.HoldID), model.SeatAvailable, Metadata{
		PutBooking: &cancelled,
		Audit:      &entry,
		Precondition: func(r Reader) error {
			cur, ok := r.Booking(bookingID)
			if !ok {
				return ErrBookingNotFound
			}
			if cur.Status == model.BookingCancelled {
				return &finalized{booking: cur}
			}
			return nil
		},
	})
	var fin *finalized
	if errors.As(err, &fin) {
		return fin.booking, nil
	}
	if err != nil {
		return model.Booking{}, err
	}
	if !res.Applied {
		f.log.Error("booked seats out of sync with booking record",
			"booking_id", bookingID,
			"seats", res.Conflicts,
		)
		return model.Booking{}, &ConflictError{Seats: res.Conflicts}
	}

	f.store.metrics.BookingReleased()
	f.events.Publish(ctx, model.Event{
		Type:        model.EventBookingReleased,
		ScreeningID: b.ScreeningID,
		HoldID:      b.HoldID,
		BookingID:   b.ID,
		Actor:       actor,
		Reason:      reason,
		SeatIDs:     b.SeatIDs,
		SeatRemain:  res.SeatRemain,
		At:          now,
	})
	return cancelled, nil
}
