package inventory

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// HoldConfig bounds hold lifetimes and sizes.
type HoldConfig struct {
	DefaultTTL  time.Duration // used when the caller gives no ttl
	MaxTTL      time.Duration // requested ttl is capped here
	MaxLifetime time.Duration // extensions never push expiry past CreatedAt+MaxLifetime
	MaxSeats    int
}

func (c HoldConfig) withDefaults() HoldConfig {
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = 5 * time.Minute
	}
	if c.MaxTTL <= 0 {
		c.MaxTTL = 15 * time.Minute
	}
	if c.MaxTTL < c.DefaultTTL {
		c.MaxTTL = c.DefaultTTL
	}
	if c.MaxLifetime < c.MaxTTL {
		c.MaxLifetime = 2 * c.MaxTTL
	}
	if c.MaxSeats <= 0 {
		c.MaxSeats = 10
	}
	return c
}

type scheduler interface {
	Schedule(holdID string, at time.Time)
}

type noSchedule struct{}

func (noSchedule) Schedule(string, time.Time) {}

// errHoldGone aborts a transition whose hold disappeared between the
// read and the critical section.  errNotDue stops an expiry whose hold
// was extended.
var (
	errHoldGone = errors.New("hold no longer present")
	errNotDue   = errors.New("hold not due")
)

// HoldManager creates, extends and releases holds.  Holds are
// scheduled with the sweeper, which reclaims them on expiry through
// the same release path.
type HoldManager struct {
	store  *Store
	cfg    HoldConfig
	sched  scheduler
	events EventSink
	log    logger.Logger
}

// NewHoldManager returns a manager over store.  events may be nil.
func NewHoldManager(store *Store, cfg HoldConfig, events EventSink) *HoldManager {
	if events == nil {
		events = nopSink{}
	}
	return &HoldManager{
		store:  store,
		cfg:    cfg.withDefaults(),
		sched:  noSchedule{},
		events: events,
		log:    store.log.With("component", "holds"),
	}
}

// Config returns the effective configuration.
func (h *HoldManager) Config() HoldConfig { return h.cfg }

// CreateHold atomically claims every seat in seatIDs for ownerToken.
// A nil ttl selects the default; ttl is capped at MaxTTL and a zero
// ttl produces a hold that is already expired when returned.  If any
// seat is not AVAILABLE no seat is claimed and the returned error is a
// *ConflictError naming the taken seats.
func (h *HoldManager) CreateHold(ctx context.Context, screeningID string, seatIDs []string, ownerToken string, ttl *time.Duration) (model.Hold, error) {
	if strings.TrimSpace(ownerToken) == "" {
		return model.Hold{}, invalid("owner token is required")
	}
	seats, err := normalizeSeats(seatIDs, h.cfg.MaxSeats)
	if err != nil {
		return model.Hold{}, err
	}
	d, err := h.ttlFor(ttl)
	if err != nil {
		return model.Hold{}, err
	}

	now := h.store.Now()
	hold := model.Hold{
		ID:          uuid.NewString(),
		ScreeningID: screeningID,
		SeatIDs:     seats,
		OwnerToken:  ownerToken,
		CreatedAt:   now,
		ExpiresAt:   now.Add(d),
	}
	if d == 0 {
		hold.ExpiresAt = now.Add(time.Nanosecond)
	}
	meta := Metadata{HoldRef: hold.ID, PutHold: &hold, Precondition: openForSale}

	res, err := h.store.BulkTransition(ctx, screeningID, seats, StatusIs(model.SeatAvailable), model.SeatHeld, meta)
	if err != nil {
		return model.Hold{}, err
	}
	if !res.Applied && h.reclaimExpired(ctx, screeningID, res.Conflicts) > 0 {
		res, err = h.store.BulkTransition(ctx, screeningID, seats, StatusIs(model.SeatAvailable), model.SeatHeld, meta)
		if err != nil {
			return model.Hold{}, err
		}
	}
	if !res.Applied {
		h.store.metrics.HoldConflict()
		return model.Hold{}, &ConflictError{Seats: res.Conflicts}
	}

	h.sched.Schedule(hold.ID, hold.ExpiresAt)
	h.store.metrics.HoldCreated()
	h.events.Publish(ctx, model.Event{
		Type:        model.EventHoldCreated,
		ScreeningID: screeningID,
		HoldID:      hold.ID,
		OwnerToken:  ownerToken,
		SeatIDs:     seats,
		SeatRemain:  res.SeatRemain,
		At:          now,
	})
	return hold, nil
}

// GetHold returns a live hold of ownerToken.
func (h *HoldManager) GetHold(ctx context.Context, holdID, ownerToken string) (model.Hold, error) {
	hold, err := h.lookup(ctx, holdID)
	if err != nil {
		return model.Hold{}, err
	}
	if hold.OwnerToken != ownerToken {
		return model.Hold{}, ErrNotOwner
	}
	if hold.Expired(h.store.Now()) {
		return model.Hold{}, ErrHoldExpired
	}
	return hold, nil
}

// ExtendHold pushes the expiry of a live hold by extra, never past
// CreatedAt+MaxLifetime.
func (h *HoldManager) ExtendHold(ctx context.Context, holdID, ownerToken string, extra time.Duration) (model.Hold, error) {
	if extra <= 0 {
		return model.Hold{}, invalid("extension must be positive")
	}
	screeningID, ok := h.store.ScreeningForHold(holdID)
	if !ok {
		return model.Hold{}, ErrHoldNotFound
	}
	var updated model.Hold
	err := h.store.UpdateRecords(ctx, screeningID, Metadata{
		PutHold: &updated,
		Precondition: func(r Reader) error {
			cur, ok := r.Hold(holdID)
			if !ok {
				return ErrHoldNotFound
			}
			if cur.OwnerToken != ownerToken {
				return ErrNotOwner
			}
			if cur.Expired(h.store.Now()) {
				return ErrHoldExpired
			}
			updated = cur
			updated.ExpiresAt = cur.ExpiresAt.Add(extra)
			if limit := cur.CreatedAt.Add(h.cfg.MaxLifetime); updated.ExpiresAt.After(limit) {
				updated.ExpiresAt = limit
			}
			return nil
		},
	})
	if err != nil {
		return model.Hold{}, err
	}
	h.sched.Schedule(updated.ID, updated.ExpiresAt)
	return updated, nil
}

// ReleaseHold returns the seats of a hold to AVAILABLE.  Releasing a
// hold that is unknown, already released, expired or finalized is a
// no-op.  Only the owner may release a live hold.
func (h *HoldManager) ReleaseHold(ctx context.Context, holdID, ownerToken string) error {
	_, err := h.releaseIfOwner(ctx, holdID, ownerToken)
	return err
}

// ReleaseOwnerHolds releases every live hold of ownerToken, used when a
// buyer session ends.  It returns the number of holds released.
func (h *HoldManager) ReleaseOwnerHolds(ctx context.Context, ownerToken string) (int, error) {
	if strings.TrimSpace(ownerToken) == "" {
		return 0, invalid("owner token is required")
	}
	var (
		released int
		errs     []error
	)
	for _, hold := range h.store.HoldsByOwner(ownerToken) {
		ok, err := h.releaseIfOwner(ctx, hold.ID, ownerToken)
		if err != nil {
			errs = append(errs, fmt.Errorf("hold %s: %w", hold.ID, err))
			continue
		}
		if ok {
			released++
		}
	}
	return released, errors.Join(errs...)
}

func (h *HoldManager) releaseIfOwner(ctx context.Context, holdID, ownerToken string) (bool, error) {
	hold, err := h.lookup(ctx, holdID)
	if errors.Is(err, ErrHoldNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	now := h.store.Now()
	if hold.Expired(now) {
		_, err := h.expire(ctx, holdID)
		if errors.Is(err, ErrHoldNotFound) {
			err = nil
		}
		return false, err
	}
	if hold.OwnerToken != ownerToken {
		return false, ErrNotOwner
	}
	ok, err := h.release(ctx, hold, model.EventHoldReleased, "owner", nil, func(cur model.Hold) error {
		if cur.OwnerToken != ownerToken {
			return ErrNotOwner
		}
		return nil
	})
	if errors.Is(err, errHoldGone) {
		return false, nil
	}
	return ok, err
}

// expire reclaims a hold whose expiry has passed.  A hold whose expiry
// moved into the future is left alone and its new expiry returned.
// ErrHoldNotFound reports a hold that was already released or
// finalized.
func (h *HoldManager) expire(ctx context.Context, holdID string) (time.Time, error) {
	hold, err := h.lookup(ctx, holdID)
	if err != nil {
		return time.Time{}, err
	}
	var notDue time.Time
	_, err = h.release(ctx, hold, model.EventHoldExpired, "expired", nil, func(cur model.Hold) error {
		if !cur.Expired(h.store.Now()) {
			notDue = cur.ExpiresAt
			return errNotDue
		}
		return nil
	})
	switch {
	case errors.Is(err, errNotDue):
		return notDue, nil
	case errors.Is(err, errHoldGone):
		return time.Time{}, ErrHoldNotFound
	}
	return time.Time{}, err
}

// override identifies the admin behind a forced release.
type override struct {
	actor  string
	reason string
}

// cancel drops a hold regardless of its owner on behalf of an admin.
func (h *HoldManager) cancel(ctx context.Context, hold model.Hold, by override) error {
	_, err := h.release(ctx, hold, model.EventHoldReleased, "forced", &by, nil)
	if errors.Is(err, errHoldGone) {
		return nil
	}
	return err
}

// release moves the seats of hold back to AVAILABLE and deletes the
// hold record in one transition.  check runs inside the critical
// section against the current hold record.
func (h *HoldManager) release(ctx context.Context, hold model.Hold, evType model.EventType, reason string, forced *override, check func(model.Hold) error) (bool, error) {
	res, err := h.store.BulkTransition(ctx, hold.ScreeningID, hold.SeatIDs, HeldBy(hold.ID), model.SeatAvailable, Metadata{
		DeleteHold: hold.ID,
		Precondition: func(r Reader) error {
			cur, ok := r.Hold(hold.ID)
			if !ok {
				return errHoldGone
			}
			if check != nil {
				return check(cur)
			}
			return nil
		},
	})
	if err != nil {
		return false, err
	}
	if !res.Applied {
		h.log.Error("hold seats out of sync with hold record",
			"hold_id", hold.ID,
			"screening_id", hold.ScreeningID,
			"seats", res.Conflicts,
		)
		return false, &ConflictError{Seats: res.Conflicts}
	}
	h.store.metrics.HoldReleased(reason)
	ev := model.Event{
		Type:        evType,
		ScreeningID: hold.ScreeningID,
		HoldID:      hold.ID,
		OwnerToken:  hold.OwnerToken,
		SeatIDs:     hold.SeatIDs,
		SeatRemain:  res.SeatRemain,
		At:          h.store.Now(),
	}
	if forced != nil {
		ev.Actor = forced.actor
		ev.Reason = forced.reason
	}
	h.events.Publish(ctx, ev)
	return true, nil
}

// reclaimExpired expires the holds behind conflicting seats whose
// expiry has already passed but which the sweeper has not reached.
func (h *HoldManager) reclaimExpired(ctx context.Context, screeningID string, seats []string) int {
	now := h.store.Now()
	var stale []string
	_ = h.store.View(ctx, screeningID, func(r Reader) error {
		seen := make(map[string]struct{})
		for _, id := range seats {
			st, ok := r.State(id)
			if !ok || st.Status != model.SeatHeld {
				continue
			}
			if _, dup := seen[st.HoldRef]; dup {
				continue
			}
			if hold, ok := r.Hold(st.HoldRef); ok && hold.Expired(now) {
				seen[st.HoldRef] = struct{}{}
				stale = append(stale, st.HoldRef)
			}
		}
		return nil
	})
	n := 0
	for _, id := range stale {
		if _, err := h.expire(ctx, id); err == nil {
			n++
		}
	}
	return n
}

func (h *HoldManager) lookup(ctx context.Context, holdID string) (model.Hold, error) {
	screeningID, ok := h.store.ScreeningForHold(holdID)
	if !ok {
		return model.Hold{}, ErrHoldNotFound
	}
	var hold model.Hold
	err := h.store.View(ctx, screeningID, func(r Reader) error {
		cur, ok := r.Hold(holdID)
		if !ok {
			return ErrHoldNotFound
		}
		hold = cur
		return nil
	})
	return hold, err
}

func (h *HoldManager) ttlFor(ttl *time.Duration) (time.Duration, error) {
	if ttl == nil {
		return h.cfg.DefaultTTL, nil
	}
	d := *ttl
	if d < 0 {
		return 0, invalid("ttl must not be negative")
	}
	if d > h.cfg.MaxTTL {
		d = h.cfg.MaxTTL
	}
	return d, nil
}

func openForSale(r Reader) error {
	if r.Screening().Status == model.ScreeningRetired {
		return ErrScreeningClosed
	}
	return nil
}

func normalizeSeats(ids []string, max int) ([]string, error) {
	if len(ids) == 0 {
		return nil, invalid("at least one seat is required")
	}
	if len(ids) > max {
		return nil, invalid("at most %d seats per hold", max)
	}
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			return nil, invalid("empty seat id")
		}
		if _, dup := seen[id]; dup {
			return nil, invalid("seat %s requested twice", id)
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}
