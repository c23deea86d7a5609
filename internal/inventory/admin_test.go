package inventory

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

func TestLockHeldSeatConflicts(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	ctx := context.Background()

	hold, _ := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A2"}, "buyer", nil)
	_, err := f.svc.Admin.LockSeats(ctx, "scr-1", []string{"A1", "A2"}, "maintenance", "ops@cinema")
	if !errors.Is(err, ErrAdminOverrideConflict) {
		t.Fatalf("err = %v, want ErrAdminOverrideConflict", err)
	}
	if seats, _ := ConflictSeats(err); !reflect.DeepEqual(seats, []string{"A2"}) {
		t.Fatalf("conflicts = %v", seats)
	}
	st := f.states(t, "scr-1")
	if st["A2"].Status != model.SeatHeld || st["A2"].HoldRef != hold.ID || st["A1"].Status != model.SeatAvailable {
		t.Fatalf("states changed: %+v", st)
	}

	audit, _ := f.svc.Admin.Audit(ctx, "scr-1")
	if len(audit) != 1 || audit[0].Outcome != model.AuditConflict || !reflect.DeepEqual(audit[0].Conflicts, []string{"A2"}) {
		t.Fatalf("audit = %+v", audit)
	}
}

func TestLockUnlock(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	ctx := context.Background()

	states, err := f.svc.Admin.LockSeats(ctx, "scr-1", []string{"A1", "A3"}, "broken armrest", "ops")
	if err != nil {
		t.Fatal(err)
	}
	if len(states) != 2 || states[0].LockReason != "broken armrest" || states[0].LockedBy != "ops" {
		t.Fatalf("states = %+v", states)
	}
	if f.remain(t, "scr-1") != 1 {
		t.Fatalf("seat remain = %d", f.remain(t, "scr-1"))
	}
	if _, err := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1"}, "buyer", nil); !errors.Is(err, ErrSeatConflict) {
		t.Fatalf("hold on locked seat err = %v", err)
	}
	if _, err := f.svc.Admin.UnlockSeats(ctx, "scr-1", []string{"A1", "A2"}, "ops"); !errors.Is(err, ErrAdminOverrideConflict) {
		t.Fatalf("unlock of available seat err = %v", err)
	}
	states, err = f.svc.Admin.UnlockSeats(ctx, "scr-1", []string{"A1", "A3"}, "ops")
	if err != nil {
		t.Fatal(err)
	}
	if states[0].Status != model.SeatAvailable || states[0].LockReason != "" {
		t.Fatalf("unlocked = %+v", states[0])
	}
	if f.remain(t, "scr-1") != 3 {
		t.Fatalf("seat remain = %d", f.remain(t, "scr-1"))
	}

	audit, _ := f.svc.Admin.Audit(ctx, "scr-1")
	var actions []model.AuditAction
	for _, e := range audit {
		actions = append(actions, e.Action)
	}
	want := []model.AuditAction{model.AuditLock, model.AuditUnlock, model.AuditUnlock}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("audit actions = %v, want %v", actions, want)
	}
}

func TestAdminRequiresActorAndReason(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 2)
	ctx := context.Background()

	if _, err := f.svc.Admin.LockSeats(ctx, "scr-1", []string{"A1"}, "reason", ""); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
	if _, err := f.svc.Admin.LockSeats(ctx, "scr-1", []string{"A1"}, " ", "ops"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
	if _, err := f.svc.Admin.ForceRelease(ctx, "scr-1", nil, "reason", "ops"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("err = %v", err)
	}
}

func TestForceRelease(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 5)
	ctx := context.Background()

	held, _ := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1", "A2"}, "b1", nil)
	toBook, _ := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A3"}, "b2", nil)
	booking, err := f.svc.Bookings.ConfirmBooking(ctx, toBook.ID, "b2")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Admin.LockSeats(ctx, "scr-1", []string{"A5"}, "wet", "ops"); err != nil {
		t.Fatal(err)
	}

	states, err := f.svc.Admin.ForceRelease(ctx, "scr-1", []string{"A1", "A3", "A4", "A5"}, "projector fault", "admin")
	if err != nil {
		t.Fatal(err)
	}
	for _, st := range states {
		if st.Status != model.SeatLocked {
			t.Fatalf("seat %s = %s, want LOCKED", st.SeatID, st.Status)
		}
	}
	if f.status(t, "scr-1", "A2") != model.SeatAvailable {
		t.Fatal("rest of the cancelled hold must be free")
	}
	if _, err := f.svc.Holds.GetHold(ctx, held.ID, "b1"); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("owner sees %v, want ErrHoldNotFound", err)
	}
	got, _ := f.svc.Bookings.GetBooking(ctx, booking.ID)
	if got.Status != model.BookingCancelled {
		t.Fatalf("booking = %+v", got)
	}
	if st := f.states(t, "scr-1")["A5"]; st.LockReason != "wet" {
		t.Fatalf("already locked seat relabelled: %+v", st)
	}

	audit, _ := f.svc.Admin.Audit(ctx, "scr-1")
	var actions []model.AuditAction
	for _, e := range audit {
		actions = append(actions, e.Action)
	}
	want := []model.AuditAction{model.AuditLock, model.AuditReleaseBooking, model.AuditForceRelease, model.AuditLock}
	if !reflect.DeepEqual(actions, want) {
		t.Fatalf("audit actions = %v, want %v", actions, want)
	}
}
