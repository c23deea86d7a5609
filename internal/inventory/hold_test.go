package inventory

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

func TestCreateHoldDefaults(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)

	hold, err := f.svc.Holds.CreateHold(context.Background(), "scr-1", []string{"A1", "A2"}, "buyer", nil)
	if err != nil {
		t.Fatal(err)
	}
	if hold.ID == "" || !hold.CreatedAt.Equal(t0) || !hold.ExpiresAt.Equal(t0.Add(5*time.Minute)) {
		t.Fatalf("hold = %+v", hold)
	}
	for _, id := range []string{"A1", "A2"} {
		st := f.states(t, "scr-1")[id]
		if st.Status != model.SeatHeld || st.HoldRef != hold.ID {
			t.Fatalf("%s = %+v", id, st)
		}
	}
	if got := f.events.types(); !reflect.DeepEqual(got, []model.EventType{model.EventHoldCreated}) {
		t.Fatalf("events = %v", got)
	}
}

func TestCreateHoldCapsTTL(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	hold, err := f.svc.Holds.CreateHold(context.Background(), "scr-1", []string{"A1"}, "buyer", ttl(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if !hold.ExpiresAt.Equal(t0.Add(15 * time.Minute)) {
		t.Fatalf("expires at %v, want capped at 15m", hold.ExpiresAt)
	}
}

func TestCreateHoldValidation(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 2, 10)
	ctx := context.Background()

	tooMany := make([]string, 11)
	for i := range tooMany {
		tooMany[i] = SeatID(RowLabel(i/10), i%10+1)
	}
	cases := []struct {
		name  string
		seats []string
		owner string
		ttl   *time.Duration
	}{
		{"no seats", nil, "buyer", nil},
		{"empty seat id", []string{" "}, "buyer", nil},
		{"duplicate seat", []string{"A1", "A1"}, "buyer", nil},
		{"over limit", tooMany, "buyer", nil},
		{"no owner", []string{"A1"}, "", nil},
		{"negative ttl", []string{"A1"}, "buyer", ttl(-time.Second)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.Holds.CreateHold(ctx, "scr-1", tc.seats, tc.owner, tc.ttl)
			if !errors.Is(err, ErrInvalidRequest) {
				t.Fatalf("err = %v, want ErrInvalidRequest", err)
			}
		})
	}
	if f.remain(t, "scr-1") != 20 || f.persist.count() != 0 {
		t.Fatal("rejected requests must not touch state")
	}
}

func TestCreateHoldConflictNamesSeats(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 4)
	ctx := context.Background()

	if _, err := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A2", "A3"}, "b1", nil); err != nil {
		t.Fatal(err)
	}
	_, err := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1", "A2", "A3", "A4"}, "b2", nil)
	if !errors.Is(err, ErrSeatConflict) || errors.Is(err, ErrAdminOverrideConflict) {
		t.Fatalf("err = %v, want seat conflict", err)
	}
	seats, _ := ConflictSeats(err)
	if !reflect.DeepEqual(seats, []string{"A2", "A3"}) {
		t.Fatalf("conflicts = %v", seats)
	}
	if f.status(t, "scr-1", "A1") != model.SeatAvailable || f.status(t, "scr-1", "A4") != model.SeatAvailable {
		t.Fatal("partial hold applied")
	}
}

func TestConcurrentOverlappingHolds(t *testing.T) {
	f := newFixture(t)
	const rows, cols = 2, 10
	f.register(t, "scr-1", rows, cols)
	all := make([]string, 0, rows*cols)
	for r := 0; r < rows; r++ {
		for c := 1; c <= cols; c++ {
			all = append(all, SeatID(RowLabel(r), c))
		}
	}

	const buyers = 64
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		holds []model.Hold
	)
	start := make(chan struct{})
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(int64(i)))
			n := 1 + rng.Intn(4)
			perm := rng.Perm(len(all))[:n]
			seats := make([]string, 0, n)
			for _, p := range perm {
				seats = append(seats, all[p])
			}
			<-start
			h, err := f.svc.Holds.CreateHold(context.Background(), "scr-1", seats, fmt.Sprintf("buyer-%d", i), nil)
			if err != nil {
				if !errors.Is(err, ErrSeatConflict) {
					t.Errorf("buyer %d: unexpected error %v", i, err)
				}
				return
			}
			mu.Lock()
			holds = append(holds, h)
			mu.Unlock()
		}(i)
	}
	close(start)
	wg.Wait()

	owner := make(map[string]string)
	held := 0
	for _, h := range holds {
		for _, id := range h.SeatIDs {
			if prev, dup := owner[id]; dup {
				t.Fatalf("seat %s granted to %s and %s", id, prev, h.ID)
			}
			owner[id] = h.ID
			held++
		}
	}
	available := 0
	for id, st := range f.states(t, "scr-1") {
		switch st.Status {
		case model.SeatAvailable:
			available++
		case model.SeatHeld:
			if owner[id] != st.HoldRef {
				t.Fatalf("seat %s held by %s, granted to %s", id, st.HoldRef, owner[id])
			}
		default:
			t.Fatalf("seat %s in unexpected status %s", id, st.Status)
		}
	}
	if held+available != rows*cols {
		t.Fatalf("held %d + available %d != %d", held, available, rows*cols)
	}
}

func TestZeroTTLHoldCannotBeConfirmed(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	ctx := context.Background()

	hold, err := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1"}, "buyer", ttl(0))
	if err != nil {
		t.Fatal(err)
	}
	if !hold.ExpiresAt.After(hold.CreatedAt) {
		t.Fatalf("expiresAt %v must be after createdAt %v", hold.ExpiresAt, hold.CreatedAt)
	}
	f.clock.Advance(time.Millisecond)

	if _, err := f.svc.Bookings.ConfirmBooking(ctx, hold.ID, "buyer"); !errors.Is(err, ErrHoldExpired) {
		t.Fatalf("err = %v, want ErrHoldExpired", err)
	}
	if f.status(t, "scr-1", "A1") != model.SeatAvailable {
		t.Fatal("expired hold not reclaimed on confirm")
	}
}

func TestReleaseHoldIdempotent(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	ctx := context.Background()

	hold, _ := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1", "A2"}, "buyer", nil)
	if err := f.svc.Holds.ReleaseHold(ctx, hold.ID, "stranger"); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	if err := f.svc.Holds.ReleaseHold(ctx, hold.ID, "buyer"); err != nil {
		t.Fatal(err)
	}
	first := f.states(t, "scr-1")
	writes := f.persist.count()
	if err := f.svc.Holds.ReleaseHold(ctx, hold.ID, "buyer"); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if err := f.svc.Holds.ReleaseHold(ctx, "never-existed", "buyer"); err != nil {
		t.Fatalf("unknown release: %v", err)
	}
	if !reflect.DeepEqual(first, f.states(t, "scr-1")) || f.persist.count() != writes {
		t.Fatal("second release changed state")
	}
	if f.remain(t, "scr-1") != 3 {
		t.Fatalf("seat remain = %d", f.remain(t, "scr-1"))
	}
	if _, err := f.svc.Holds.GetHold(ctx, hold.ID, "buyer"); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("get released hold err = %v", err)
	}
}

func TestReleaseExpiredHoldIsNoop(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 2)
	ctx := context.Background()

	hold, _ := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1"}, "buyer", ttl(time.Second))
	f.clock.Advance(2 * time.Second)
	if err := f.svc.Holds.ReleaseHold(ctx, hold.ID, "someone-else"); err != nil {
		t.Fatalf("release of expired hold: %v", err)
	}
	if f.status(t, "scr-1", "A1") != model.SeatAvailable {
		t.Fatal("expired hold still holds A1")
	}
}

func TestExtendHold(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 2)
	ctx := context.Background()

	hold, _ := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1"}, "buyer", ttl(time.Minute))
	if _, err := f.svc.Holds.ExtendHold(ctx, hold.ID, "other", time.Minute); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("err = %v, want ErrNotOwner", err)
	}
	got, err := f.svc.Holds.ExtendHold(ctx, hold.ID, "buyer", 2*time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if !got.ExpiresAt.Equal(t0.Add(3 * time.Minute)) {
		t.Fatalf("expires at %v", got.ExpiresAt)
	}
	got, _ = f.svc.Holds.ExtendHold(ctx, hold.ID, "buyer", time.Hour)
	if !got.ExpiresAt.Equal(t0.Add(20 * time.Minute)) {
		t.Fatalf("extension not capped by max lifetime: %v", got.ExpiresAt)
	}
	f.clock.Advance(20 * time.Minute)
	if _, err := f.svc.Holds.ExtendHold(ctx, hold.ID, "buyer", time.Minute); !errors.Is(err, ErrHoldExpired) {
		t.Fatalf("err = %v, want ErrHoldExpired", err)
	}
	if _, err := f.svc.Holds.ExtendHold(ctx, "nope", "buyer", time.Minute); !errors.Is(err, ErrHoldNotFound) {
		t.Fatalf("err = %v, want ErrHoldNotFound", err)
	}
}

func TestCreateHoldReclaimsExpiredSeats(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 2)
	ctx := context.Background()

	if _, err := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1"}, "b1", ttl(time.Second)); err != nil {
		t.Fatal(err)
	}
	f.clock.Advance(time.Second)

	hold, err := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1", "A2"}, "b2", nil)
	if err != nil {
		t.Fatalf("hold over expired seat: %v", err)
	}
	if f.states(t, "scr-1")["A1"].HoldRef != hold.ID {
		t.Fatal("A1 not claimed by the new hold")
	}
}

func TestReleaseOwnerHolds(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 3)
	f.register(t, "scr-2", 1, 3)
	ctx := context.Background()

	f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1"}, "session-7", nil)
	f.svc.Holds.CreateHold(ctx, "scr-2", []string{"A2", "A3"}, "session-7", nil)
	f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A2"}, "session-8", nil)

	n, err := f.svc.Holds.ReleaseOwnerHolds(ctx, "session-7")
	if err != nil || n != 2 {
		t.Fatalf("released %d, %v", n, err)
	}
	if f.status(t, "scr-2", "A2") != model.SeatAvailable || f.status(t, "scr-1", "A1") != model.SeatAvailable ||
		f.status(t, "scr-1", "A2") != model.SeatHeld {
		t.Fatal("wrong holds released")
	}
}

func TestRetiredScreeningRejectsHolds(t *testing.T) {
	f := newFixture(t)
	f.register(t, "scr-1", 1, 2)
	ctx := context.Background()
	if err := f.svc.Store.Retire(ctx, "scr-1"); err != nil {
		t.Fatal(err)
	}
	if _, err := f.svc.Holds.CreateHold(ctx, "scr-1", []string{"A1"}, "buyer", nil); !errors.Is(err, ErrScreeningClosed) {
		t.Fatalf("err = %v, want ErrScreeningClosed", err)
	}
	if _, err := f.svc.Store.Snapshot(ctx, "scr-1"); err != nil {
		t.Fatalf("retired screening must stay readable: %v", err)
	}
}
