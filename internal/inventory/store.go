// Package inventory owns the seat state of every screening: the seat
// map store, time-bounded holds, the expiry sweeper, booking
// finalization and administrative overrides.
package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/clock"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/metrics"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// Persister stores seat maps durably.  Apply must be atomic: when it
// returns an error none of the transition may be visible.
type Persister interface {
	CreateScreening(ctx context.Context, sc model.Screening, seats []model.Seat) error
	Apply(ctx context.Context, t model.Transition) error
}

// NopPersister keeps everything in memory only.
type NopPersister struct{}

func (NopPersister) CreateScreening(context.Context, model.Screening, []model.Seat) error { return nil }
func (NopPersister) Apply(context.Context, model.Transition) error                      { return nil }

// Predicate decides whether a seat may take part in a bulk transition.
type Predicate func(model.SeatState) bool

// StatusIs matches seats currently in status st.
func StatusIs(st model.SeatStatus) Predicate {
	return func(s model.SeatState) bool { return s.Status == st }
}

// HeldBy matches seats held by holdID.
func HeldBy(holdID string) Predicate {
	return func(s model.SeatState) bool { return s.Status == model.SeatHeld && s.HoldRef == holdID }
}

// BookedBy matches seats booked through holdID.
func BookedBy(holdID string) Predicate {
	return func(s model.SeatState) bool { return s.Status == model.SeatBooked && s.HoldRef == holdID }
}

// Reader gives read access to the hold and booking records of one
// screening while its critical section is held.
type Reader interface {
	Screening() model.Screening
	State(seatID string) (model.SeatState, bool)
	Hold(id string) (model.Hold, bool)
	BookingForHold(holdID string) (model.Booking, bool)
	Booking(id string) (model.Booking, bool)
}

// Metadata accompanies a bulk transition.  HoldRef, LockReason and
// LockedBy are written onto the seats; the remaining fields are side
// records stored in the same durable write.  Precondition runs inside
// the critical section before any seat is inspected; a non-nil error
// aborts the transition and is returned unchanged.
type Metadata struct {
	HoldRef    string
	LockReason string
	LockedBy   string

	PutHold    *model.Hold
	DeleteHold string
	PutBooking *model.Booking
	Audit      *model.AuditEntry

	Precondition func(Reader) error
}

// Result of a bulk transition.  Either Applied is true and States holds
// the new seat states, or Conflicts names every seat that failed the
// predicate and nothing changed.
type Result struct {
	Applied    bool
	Conflicts  []string
	States     []model.SeatState
	SeatRemain int
}

// RetryPolicy bounds how often a failed durable write is retried
// before the request fails with ErrStoreUnavailable.
type RetryPolicy struct {
	Attempts int
	Delay    time.Duration
}

// SeatView is one entry of a seat map snapshot.
type SeatView struct {
	model.Seat
	Status    model.SeatStatus `json:"status"`
	ExpiresAt *time.Time       `json:"hold_expires_at,omitempty"`
}

// SeatMap is the rendering snapshot of a screening.
type SeatMap struct {
	Screening model.Screening `json:"screening"`
	Available int             `json:"available"`
	Seats     []SeatView      `json:"seats"`
}

type seatMap struct {
	mu        sync.Mutex
	screening model.Screening
	order     []string
	seats     map[string]model.Seat
	states    map[string]model.SeatState
	holds     map[string]model.Hold
	bookings  map[string]model.Booking
	byHold    map[string]string // hold id -> booking id
	audit     []model.AuditEntry
}

func (m *seatMap) Screening() model.Screening { return m.screening }

func (m *seatMap) State(seatID string) (model.SeatState, bool) {
	st, ok := m.states[seatID]
	return st, ok
}

func (m *seatMap) Hold(id string) (model.Hold, bool) {
	h, ok := m.holds[id]
	return h, ok
}

func (m *seatMap) BookingForHold(holdID string) (model.Booking, bool) {
	id, ok := m.byHold[holdID]
	if !ok {
		return model.Booking{}, false
	}
	b, ok := m.bookings[id]
	return b, ok
}

func (m *seatMap) Booking(id string) (model.Booking, bool) {
	b, ok := m.bookings[id]
	return b, ok
}

// Store is the single source of truth for seat status.  Each screening
// has its own mutex; operations on different screenings never contend.
// The index mutex only guards the lookup maps and is never held while
// a screening mutex is being acquired.
type Store struct {
	idxMu   sync.RWMutex
	maps    map[string]*seatMap
	holdIdx map[string]string
	bookIdx map[string]string

	persist Persister
	clock   clock.Clock
	retry   RetryPolicy
	log     logger.Logger
	metrics *metrics.Collectors
}

// StoreOption customises a Store.
type StoreOption func(*Store)

func WithPersister(p Persister) StoreOption         { return func(s *Store) { s.persist = p } }
func WithClock(c clock.Clock) StoreOption           { return func(s *Store) { s.clock = c } }
func WithRetry(r RetryPolicy) StoreOption           { return func(s *Store) { s.retry = r } }
func WithLogger(l logger.Logger) StoreOption        { return func(s *Store) { s.log = l } }
func WithMetrics(m *metrics.Collectors) StoreOption { return func(s *Store) { s.metrics = m } }

// NewStore returns an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		maps:    make(map[string]*seatMap),
		holdIdx: make(map[string]string),
		bookIdx: make(map[string]string),
		persist: NopPersister{},
		clock:   clock.Real{},
		retry:   RetryPolicy{Attempts: 3, Delay: 50 * time.Millisecond},
		log:     logger.Nop(),
	}
	for _, o := range opts {
		o(s)
	}
	if s.retry.Attempts < 1 {
		s.retry.Attempts = 1
	}
	return s
}

// Now exposes the store clock so every component reads the same time.
func (s *Store) Now() time.Time { return s.clock.Now() }

// Register instantiates the seat map of a new screening.  All seats
// start AVAILABLE at version 0.
func (s *Store) Register(ctx context.Context, sc model.Screening, seats []model.Seat) (model.Screening, error) {
	if strings.TrimSpace(sc.ID) == "" {
		return model.Screening{}, invalid("screening id is required")
	}
	if len(seats) == 0 {
		return model.Screening{}, invalid("screening %s has no seats", sc.ID)
	}
	now := s.clock.Now()
	m := &seatMap{
		seats:    make(map[string]model.Seat, len(seats)),
		states:   make(map[string]model.SeatState, len(seats)),
		holds:    make(map[string]model.Hold),
		bookings: make(map[string]model.Booking),
		byHold:   make(map[string]string),
	}
	for _, seat := range seats {
		if seat.ID == "" {
			return model.Screening{}, invalid("seat without id")
		}
		if _, dup := m.seats[seat.ID]; dup {
			return model.Screening{}, invalid("duplicate seat %s", seat.ID)
		}
		seat.ScreeningID = sc.ID
		m.seats[seat.ID] = seat
		m.order = append(m.order, seat.ID)
		m.states[seat.ID] = model.SeatState{SeatID: seat.ID, Status: model.SeatAvailable, UpdatedAt: now}
	}
	sc.Status = model.ScreeningScheduled
	sc.SeatTotal = len(seats)
	sc.SeatRemain = len(seats)
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = now
	}
	m.screening = sc

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	if _, exists := s.maps[sc.ID]; exists {
		return model.Screening{}, ErrScreeningExists
	}
	if err := s.persist.CreateScreening(ctx, sc, orderedSeats(m)); err != nil {
		s.metrics.StoreWriteFailed()
		return model.Screening{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	s.maps[sc.ID] = m
	s.metrics.SetSeatRemain(sc.ID, sc.SeatRemain)
	return sc, nil
}

// Restore loads a persisted screening.  It replaces any in-memory copy.
func (s *Store) Restore(snap model.ScreeningSnapshot) {
	m := &seatMap{
		screening: snap.Screening,
		seats:     make(map[string]model.Seat, len(snap.Seats)),
		states:    make(map[string]model.SeatState, len(snap.States)),
		holds:     make(map[string]model.Hold, len(snap.Holds)),
		bookings:  make(map[string]model.Booking, len(snap.Bookings)),
		byHold:    make(map[string]string, len(snap.Bookings)),
		audit:     append([]model.AuditEntry(nil), snap.Audit...),
	}
	for _, seat := range snap.Seats {
		m.seats[seat.ID] = seat
		m.order = append(m.order, seat.ID)
	}
	for _, st := range snap.States {
		m.states[st.SeatID] = st
	}
	for _, h := range snap.Holds {
		m.holds[h.ID] = h
	}
	for _, b := range snap.Bookings {
		m.bookings[b.ID] = b
		m.byHold[b.HoldID] = b.ID
	}
	m.screening.SeatTotal = len(m.seats)
	m.screening.SeatRemain = countSellable(m.states)

	s.idxMu.Lock()
	defer s.idxMu.Unlock()
	s.maps[snap.Screening.ID] = m
	for _, h := range snap.Holds {
		s.holdIdx[h.ID] = snap.Screening.ID
	}
	for _, b := range snap.Bookings {
		s.holdIdx[b.HoldID] = snap.Screening.ID
		s.bookIdx[b.ID] = snap.Screening.ID
	}
	s.metrics.SetSeatRemain(m.screening.ID, m.screening.SeatRemain)
}

func (s *Store) lookup(screeningID string) (*seatMap, error) {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	m, ok := s.maps[screeningID]
	if !ok {
		return nil, ErrScreeningNotFound
	}
	return m, nil
}

// ScreeningForHold resolves the screening a hold belongs to.  Holds
// that were ever registered stay resolvable after they terminate.
func (s *Store) ScreeningForHold(holdID string) (string, bool) {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	id, ok := s.holdIdx[holdID]
	return id, ok
}

// ScreeningForBooking resolves the screening a booking belongs to.
func (s *Store) ScreeningForBooking(bookingID string) (string, bool) {
	s.idxMu.RLock()
	defer s.idxMu.RUnlock()
	id, ok := s.bookIdx[bookingID]
	return id, ok
}

// Screening returns a copy of the screening aggregate.
func (s *Store) Screening(ctx context.Context, screeningID string) (model.Screening, error) {
	m, err := s.lookup(screeningID)
	if err != nil {
		return model.Screening{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.screening, nil
}

// Screenings lists every known screening.
func (s *Store) Screenings() []model.Screening {
	s.idxMu.RLock()
	maps := make([]*seatMap, 0, len(s.maps))
	for _, m := range s.maps {
		maps = append(maps, m)
	}
	s.idxMu.RUnlock()

	out := make([]model.Screening, 0, len(maps))
	for _, m := range maps {
		m.mu.Lock()
		out = append(out, m.screening)
		m.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// View runs fn inside the screening's critical section with read access
// to its records.  fn must not block.
func (s *Store) View(ctx context.Context, screeningID string, fn func(Reader) error) error {
	m, err := s.lookup(screeningID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(m)
}

// GetStates returns a snapshot of every seat state.  Held seats whose
// hold has already expired are reported AVAILABLE even if the sweeper
// has not reclaimed them yet.
func (s *Store) GetStates(ctx context.Context, screeningID string) ([]model.SeatState, error) {
	m, err := s.lookup(screeningID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]model.SeatState, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, displayState(m, m.states[id], now))
	}
	return out, nil
}

// Snapshot returns the seat map for rendering.
func (s *Store) Snapshot(ctx context.Context, screeningID string) (SeatMap, error) {
	m, err := s.lookup(screeningID)
	if err != nil {
		return SeatMap{}, err
	}
	now := s.clock.Now()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := SeatMap{Screening: m.screening, Seats: make([]SeatView, 0, len(m.order))}
	for _, id := range m.order {
		st := displayState(m, m.states[id], now)
		v := SeatView{Seat: m.seats[id], Status: st.Status}
		if st.Status == model.SeatHeld {
			exp := m.holds[st.HoldRef].ExpiresAt
			v.ExpiresAt = &exp
		}
		if st.Status == model.SeatAvailable {
			out.Available++
		}
		out.Seats = append(out.Seats, v)
	}
	return out, nil
}

func displayState(m *seatMap, st model.SeatState, now time.Time) model.SeatState {
	if st.Status != model.SeatHeld {
		return st
	}
	if h, ok := m.holds[st.HoldRef]; ok && !h.Expired(now) {
		return st
	}
	st.Status = model.SeatAvailable
	st.HoldRef = ""
	return st
}

// CompareAndSet replaces one seat's state if its version still equals
// expectedVersion.  The stored version becomes expectedVersion+1.
func (s *Store) CompareAndSet(ctx context.Context, screeningID, seatID string, expectedVersion uint64, next model.SeatState) (model.SeatState, error) {
	m, err := s.lookup(screeningID)
	if err != nil {
		return model.SeatState{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	w, err := s.casLocked(m, seatID, expectedVersion, next)
	if err != nil {
		return model.SeatState{}, err
	}
	if w.State.Status == model.SeatHeld {
		if _, ok := m.holds[w.State.HoldRef]; !ok {
			return model.SeatState{}, invalid("seat %s cannot reference unknown hold %q", seatID, w.State.HoldRef)
		}
	}
	remain := remainAfter(m, []model.SeatWrite{w})
	tr := model.Transition{ScreeningID: screeningID, Seats: []model.SeatWrite{w}, SeatRemain: remain}
	if err := s.commitLocked(ctx, m, tr); err != nil {
		return model.SeatState{}, err
	}
	return w.State, nil
}

// casLocked validates one compare-and-set against the in-memory state
// and returns the staged write.  Nothing is applied.
func (s *Store) casLocked(m *seatMap, seatID string, expected uint64, next model.SeatState) (model.SeatWrite, error) {
	cur, ok := m.states[seatID]
	if !ok {
		return model.SeatWrite{}, fmt.Errorf("%w: %s", ErrSeatNotFound, seatID)
	}
	if cur.Version != expected {
		return model.SeatWrite{}, ErrVersionConflict
	}
	next.SeatID = seatID
	next.Version = expected + 1
	next.UpdatedAt = s.clock.Now()
	return model.SeatWrite{State: next, PrevVersion: expected}, nil
}

// BulkTransition moves every seat in seatIDs to target as one set.  If
// any seat fails pred no seat changes and Result.Conflicts lists the
// failing seats.  Unknown seats are reported through ErrSeatNotFound.
func (s *Store) BulkTransition(ctx context.Context, screeningID string, seatIDs []string, pred Predicate, target model.SeatStatus, meta Metadata) (Result, error) {
	if len(seatIDs) == 0 {
		return Result{}, invalid("no seats given")
	}
	m, err := s.lookup(screeningID)
	if err != nil {
		return Result{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if meta.Precondition != nil {
		if err := meta.Precondition(m); err != nil {
			return Result{}, err
		}
	}

	var unknown, conflicts []string
	seen := make(map[string]struct{}, len(seatIDs))
	for _, id := range seatIDs {
		if _, dup := seen[id]; dup {
			return Result{}, invalid("duplicate seat %s", id)
		}
		seen[id] = struct{}{}
		st, ok := m.states[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		if !pred(st) {
			conflicts = append(conflicts, id)
		}
	}
	if len(unknown) > 0 {
		return Result{}, fmt.Errorf("%w: %s", ErrSeatNotFound, strings.Join(unknown, ","))
	}
	if len(conflicts) > 0 {
		return Result{Conflicts: conflicts, SeatRemain: m.screening.SeatRemain}, nil
	}

	writes := make([]model.SeatWrite, 0, len(seatIDs))
	for _, id := range seatIDs {
		cur := m.states[id]
		w, err := s.casLocked(m, id, cur.Version, nextState(cur, target, meta))
		if err != nil {
			return Result{}, err
		}
		writes = append(writes, w)
	}
	remain := remainAfter(m, writes)
	tr := model.Transition{
		ScreeningID: screeningID,
		Seats:       writes,
		SeatRemain:  remain,
		PutHold:     meta.PutHold,
		DeleteHold:  meta.DeleteHold,
		PutBooking:  meta.PutBooking,
		Audit:       meta.Audit,
	}
	if err := s.commitLocked(ctx, m, tr); err != nil {
		return Result{}, err
	}
	states := make([]model.SeatState, 0, len(writes))
	for _, w := range writes {
		states = append(states, w.State)
	}
	return Result{Applied: true, States: states, SeatRemain: remain}, nil
}

func nextState(cur model.SeatState, target model.SeatStatus, meta Metadata) model.SeatState {
	next := model.SeatState{SeatID: cur.SeatID, Status: target}
	switch target {
	case model.SeatHeld, model.SeatBooked:
		next.HoldRef = meta.HoldRef
	case model.SeatLocked:
		next.LockReason = meta.LockReason
		next.LockedBy = meta.LockedBy
	}
	return next
}

// UpdateRecords stores side records (hold extension, audit entries)
// that do not change any seat.  Precondition semantics match
// BulkTransition.
func (s *Store) UpdateRecords(ctx context.Context, screeningID string, meta Metadata) error {
	m, err := s.lookup(screeningID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if meta.Precondition != nil {
		if err := meta.Precondition(m); err != nil {
			return err
		}
	}
	tr := model.Transition{
		ScreeningID: screeningID,
		SeatRemain:  m.screening.SeatRemain,
		PutHold:     meta.PutHold,
		DeleteHold:  meta.DeleteHold,
		PutBooking:  meta.PutBooking,
		Audit:       meta.Audit,
	}
	if tr.Empty() {
		return nil
	}
	return s.commitLocked(ctx, m, tr)
}

// Retire marks a screening RETIRED.  Retired screenings keep their
// state for reads but accept no new holds.
func (s *Store) Retire(ctx context.Context, screeningID string) error {
	m, err := s.lookup(screeningID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.screening.Status == model.ScreeningRetired {
		return nil
	}
	tr := model.Transition{ScreeningID: screeningID, SeatRemain: m.screening.SeatRemain, Retire: true}
	return s.commitLocked(ctx, m, tr)
}

// Audit returns the audit trail of a screening, oldest first.
func (s *Store) Audit(ctx context.Context, screeningID string) ([]model.AuditEntry, error) {
	m, err := s.lookup(screeningID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.AuditEntry(nil), m.audit...), nil
}

// HoldsByOwner lists the live hold records of ownerToken across all
// screenings.
func (s *Store) HoldsByOwner(ownerToken string) []model.Hold {
	s.idxMu.RLock()
	maps := make([]*seatMap, 0, len(s.maps))
	for _, m := range s.maps {
		maps = append(maps, m)
	}
	s.idxMu.RUnlock()

	var out []model.Hold
	for _, m := range maps {
		m.mu.Lock()
		for _, h := range m.holds {
			if h.OwnerToken == ownerToken {
				out = append(out, h)
			}
		}
		m.mu.Unlock()
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// AllHolds lists every hold record, used when rebuilding the sweeper
// schedule after a restart.
func (s *Store) AllHolds() []model.Hold {
	s.idxMu.RLock()
	maps := make([]*seatMap, 0, len(s.maps))
	for _, m := range s.maps {
		maps = append(maps, m)
	}
	s.idxMu.RUnlock()

	var out []model.Hold
	for _, m := range maps {
		m.mu.Lock()
		for _, h := range m.holds {
			out = append(out, h)
		}
		m.mu.Unlock()
	}
	return out
}

// commitLocked persists tr and, on success, applies it to memory.  The
// caller holds m.mu.
func (s *Store) commitLocked(ctx context.Context, m *seatMap, tr model.Transition) error {
	if err := s.persistWithRetry(ctx, tr); err != nil {
		return err
	}
	for _, w := range tr.Seats {
		m.states[w.State.SeatID] = w.State
	}
	m.screening.SeatRemain = tr.SeatRemain
	if tr.Retire {
		m.screening.Status = model.ScreeningRetired
	}
	if tr.DeleteHold != "" {
		delete(m.holds, tr.DeleteHold)
	}
	if tr.PutHold != nil {
		m.holds[tr.PutHold.ID] = *tr.PutHold
	}
	if tr.PutBooking != nil {
		m.bookings[tr.PutBooking.ID] = *tr.PutBooking
		m.byHold[tr.PutBooking.HoldID] = tr.PutBooking.ID
	}
	if tr.Audit != nil {
		m.audit = append(m.audit, *tr.Audit)
	}
	if tr.PutHold != nil || tr.PutBooking != nil {
		s.idxMu.Lock()
		if tr.PutHold != nil {
			s.holdIdx[tr.PutHold.ID] = tr.ScreeningID
		}
		if tr.PutBooking != nil {
			s.holdIdx[tr.PutBooking.HoldID] = tr.ScreeningID
			s.bookIdx[tr.PutBooking.ID] = tr.ScreeningID
		}
		s.idxMu.Unlock()
	}
	s.metrics.SetSeatRemain(tr.ScreeningID, tr.SeatRemain)
	return nil
}

func (s *Store) persistWithRetry(ctx context.Context, tr model.Transition) error {
	var err error
	for attempt := 1; attempt <= s.retry.Attempts; attempt++ {
		if err = s.persist.Apply(ctx, tr); err == nil {
			return nil
		}
		s.metrics.StoreWriteFailed()
		s.log.Warn("seat store write failed",
			"screening_id", tr.ScreeningID,
			"attempt", attempt,
			"error", err,
		)
		if attempt == s.retry.Attempts {
			break
		}
		t := time.NewTimer(s.retry.Delay * time.Duration(attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, ctx.Err())
		case <-t.C:
		}
	}
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func remainAfter(m *seatMap, writes []model.SeatWrite) int {
	remain := m.screening.SeatRemain
	for _, w := range writes {
		before := m.states[w.State.SeatID].Sellable()
		after := w.State.Sellable()
		switch {
		case before && !after:
			remain--
		case !before && after:
			remain++
		}
	}
	return remain
}

func countSellable(states map[string]model.SeatState) int {
	n := 0
	for _, st := range states {
		if st.Sellable() {
			n++
		}
	}
	return n
}

func orderedSeats(m *seatMap) []model.Seat {
	out := make([]model.Seat, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.seats[id])
	}
	return out
}
