package inventory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

func TestRegisterRejectsDuplicateScreening(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)

	seats, _ := Layout{Rows: 1, Cols: 1}.Seats()
	_, err := f.svc.RegisterScreening(context.Background(), model.Screening{ID: "scr-1"}, seats)
	if !errors.Is(err, ErrScreeningExists) {
		t.Fatalf("err = %v, want ErrScreeningExists", err)
	}
}

func TestRegisterInitialState(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 2, 3)

	sc, err := f.svc.Store.Screening(context.Background(), "scr-1")
	if err != nil {
		t.Fatal(err)
	}
	if sc.SeatTotal != 6 || sc.SeatRemain != 6 || sc.Status != model.ScreeningScheduled {
		t.Fatalf("unexpected screening %+v", sc)
	}
	for id, st := range f.states(t, "scr-1") {
		if st.Status != model.SeatAvailable || st.Version != 0 {
			t.Fatalf("seat %s = %+v, want AVAILABLE v0", id, st)
		}
	}
	if len(f.persist.screenings) != 1 {
		t.Fatalf("persisted screenings = %d, want 1", len(f.persist.screenings))
	}
}

func TestUnknownScreening(t *testing.T) {
	f := newFixture(t)
	if _, err := f.svc.Store.GetStates(context.Background(), "missing"); !errors.Is(err, ErrScreeningNotFound) {
		t.Fatalf("err = %v", err)
	}
	_, err := f.svc.Holds.CreateHold(context.Background(), "missing", []string{"A1"}, "buyer", nil)
	if !errors.Is(err, ErrScreeningNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestCompareAndSet(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 2)
	ctx := context.Background()

	next := model.SeatState{Status: model.SeatLocked, LockReason: "broken", LockedBy: "ops"}
	got, err := f.svc.Store.CompareAndSet(ctx, "scr-1", "A1", 0, next)
	if err != nil {
		t.Fatal(err)
	}
	if got.Version != 1 || got.Status != model.SeatLocked {
		t.Fatalf("state = %+v", got)
	}
	if _, err := f.svc.Store.CompareAndSet(ctx, "scr-1", "A1", 0, model.SeatState{Status: model.SeatAvailable}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("stale cas err = %v, want ErrVersionConflict", err)
	}
	if f.remain(t, "scr-1") != 1 {
		t.Fatalf("seat remain = %d, want 1", f.remain(t, "scr-1"))
	}
	if _, err := f.svc.Store.CompareAndSet(ctx, "scr-1", "A2", 0, model.SeatState{Status: model.SeatHeld, HoldRef: "nope"}); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("dangling hold ref err = %v, want ErrInvalidRequest", err)
	}
}

func TestBulkTransitionAllOrNothing(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 4)
	ctx := context.Background()

	if _, err := f.svc.Admin.LockSeats(ctx, "scr-1", []string{"A3"}, "spill", "ops"); err != nil {
		t.Fatal(err)
	}
	before := f.states(t, "scr-1")

	res, err := f.svc.Store.BulkTransition(ctx, "scr-1", []string{"A1", "A2", "A3"},
		StatusIs(model.SeatAvailable), model.SeatLocked, Metadata{LockReason: "x", LockedBy: "y"})
	if err != nil {
		t.Fatal(err)
	}
	if res.Applied || len(res.Conflicts) != 1 || res.Conflicts[0] != "A3" {
		t.Fatalf("result = %+v, want conflict on A3", res)
	}
	after := f.states(t, "scr-1")
	for id, st := range before {
		if after[id] != st {
			t.Fatalf("seat %s changed on conflict: %+v -> %+v", id, st, after[id])
		}
	}
}

func TestBulkTransitionUnknownSeat(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 2)
	_, err := f.svc.Store.BulkTransition(context.Background(), "scr-1", []string{"A1", "Z9"},
		StatusIs(model.SeatAvailable), model.SeatLocked, Metadata{})
	if !errors.Is(err, ErrSeatNotFound) {
		t.Fatalf("err = %v, want ErrSeatNotFound", err)
	}
	if st := f.status(t, "scr-1", "A1"); st != model.SeatAvailable {
		t.Fatalf("A1 = %s", st)
	}
}

func TestPersistFailureLeavesMemoryUnchanged(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	f.persist.fail(2)

	_, err := f.svc.Holds.CreateHold(context.Background(), "scr-1", []string{"A1", "A2"}, "buyer", nil)
	if !errors.Is(err, ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	for id, st := range f.states(t, "scr-1") {
		if st.Status != model.SeatAvailable || st.Version != 0 {
			t.Fatalf("seat %s = %+v after failed write", id, st)
		}
	}
	if f.remain(t, "scr-1") != 3 {
		t.Fatalf("seat remain = %d", f.remain(t, "scr-1"))
	}
	if got := f.svc.Store.HoldsByOwner("buyer"); len(got) != 0 {
		t.Fatalf("hold recorded despite failure: %+v", got)
	}
}

func TestPersistRetrySucceeds(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	f.persist.fail(1)

	if _, err := f.svc.Holds.CreateHold(context.Background(), "scr-1", []string{"A1"}, "buyer", nil); err != nil {
		t.Fatalf("create after one transient failure: %v", err)
	}
	if f.status(t, "scr-1", "A1") != model.SeatHeld {
		t.Fatal("A1 not held")
	}
}

func TestTransitionCarriesSideRecords(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	hold, err := f.svc.Holds.CreateHold(context.Background(), "scr-1", []string{"A1", "A2"}, "buyer", nil)
	if err != nil {
		t.Fatal(err)
	}
	f.persist.mu.Lock()
	tr := f.persist.transitions[len(f.persist.transitions)-1]
	f.persist.mu.Unlock()
	if tr.PutHold == nil || tr.PutHold.ID != hold.ID {
		t.Fatalf("hold record not in transition: %+v", tr)
	}
	if len(tr.Seats) != 2 || tr.SeatRemain != 3 {
		t.Fatalf("transition = %+v", tr)
	}
	for _, w := range tr.Seats {
		if w.PrevVersion != 0 || w.State.Version != 1 || w.State.HoldRef != hold.ID {
			t.Fatalf("seat write = %+v", w)
		}
	}
}

func TestSnapshotShowsExpiredHoldsAvailable(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	if _, err := f.svc.Holds.CreateHold(context.Background(), "scr-1", []string{"A1"}, "buyer", ttl(10*time.Second)); err != nil {
		t.Fatal(err)
	}

	snap, err := f.svc.Store.Snapshot(context.Background(), "scr-1")
	if err != nil {
		t.Fatal(err)
	}
	if snap.Available != 2 || snap.Seats[0].Status != model.SeatHeld || snap.Seats[0].ExpiresAt == nil {
		t.Fatalf("snapshot before expiry = %+v", snap)
	}

	f.clock.Advance(10 * time.Second)
	snap, _ = f.svc.Store.Snapshot(context.Background(), "scr-1")
	if snap.Available != 3 || snap.Seats[0].Status != model.SeatAvailable {
		t.Fatalf("snapshot after expiry = %+v", snap)
	}
	if f.status(t, "scr-1", "A1") != model.SeatHeld {
		t.Fatal("display read must not mutate authoritative state")
	}
	states, _ := f.svc.Store.GetStates(context.Background(), "scr-1")
	if states[0].Status != model.SeatAvailable || states[0].HoldRef != "" {
		t.Fatalf("GetStates = %+v", states[0])
	}
}

func TestRestore(t *testing.T) {
	f := newFixture(t)
	exp := t0.Add(time.Minute)
	f.svc.Store.Restore(model.ScreeningSnapshot{
		Screening: model.Screening{ID: "scr-9", Status: model.ScreeningScheduled},
		Seats: []model.Seat{
			{ScreeningID: "scr-9", ID: "A1", Row: "A", Col: 1, Type: model.SeatStandard},
			{ScreeningID: "scr-9", ID: "A2", Row: "A", Col: 2, Type: model.SeatStandard},
			{ScreeningID: "scr-9", ID: "A3", Row: "A", Col: 3, Type: model.SeatStandard},
		},
		States: []model.SeatState{
			{SeatID: "A1", Status: model.SeatHeld, HoldRef: "h-1", Version: 1},
			{SeatID: "A2", Status: model.SeatBooked, HoldRef: "h-0", Version: 2},
			{SeatID: "A3", Status: model.SeatAvailable},
		},
		Holds:    []model.Hold{{ID: "h-1", ScreeningID: "scr-9", SeatIDs: []string{"A1"}, OwnerToken: "b1", CreatedAt: t0, ExpiresAt: exp}},
		Bookings: []model.Booking{{ID: "bk-0", HoldID: "h-0", ScreeningID: "scr-9", SeatIDs: []string{"A2"}, OwnerToken: "b0", Status: model.BookingConfirmed}},
	})

	sc, _ := f.svc.Store.Screening(context.Background(), "scr-9")
	if sc.SeatTotal != 3 || sc.SeatRemain != 2 {
		t.Fatalf("screening = %+v", sc)
	}
	if id, ok := f.svc.Store.ScreeningForHold("h-1"); !ok || id != "scr-9" {
		t.Fatal("hold index not restored")
	}
	b, err := f.svc.Bookings.ConfirmBooking(context.Background(), "h-0", "b0")
	if err != nil || b.ID != "bk-0" {
		t.Fatalf("confirm restored booking = %+v, %v", b, err)
	}
}
