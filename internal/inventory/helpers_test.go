package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/clock"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

var t0 = time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC)

type recordingPersister struct {
	mu          sync.Mutex
	transitions []model.Transition
	screenings  []model.Screening
	failNext    int
	err         error
}

func (p *recordingPersister) CreateScreening(_ context.Context, sc model.Screening, _ []model.Seat) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.screenings = append(p.screenings, sc)
	return nil
}

func (p *recordingPersister) Apply(_ context.Context, t model.Transition) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext > 0 {
		p.failNext--
		return p.err
	}
	p.transitions = append(p.transitions, t)
	return nil
}

func (p *recordingPersister) fail(n int) {
	p.mu.Lock()
	p.failNext = n
	p.err = errors.New("mysql: connection refused")
	p.mu.Unlock()
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.transitions)
}

type eventRecorder struct {
	mu     sync.Mutex
	events []model.Event
}

func (r *eventRecorder) Publish(_ context.Context, ev model.Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *eventRecorder) types() []model.EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.EventType, 0, len(r.events))
	for _, ev := range r.events {
		out = append(out, ev.Type)
	}
	return out
}

type fixture struct {
	svc     *Service
	clock   *clock.Manual
	persist *recordingPersister
	events  *eventRecorder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		clock:   clock.NewManual(t0),
		persist: &recordingPersister{},
		events:  &eventRecorder{},
	}
	f.svc = New(Config{
		Hold:  HoldConfig{DefaultTTL: 5 * time.Minute, MaxTTL: 15 * time.Minute, MaxLifetime: 20 * time.Minute, MaxSeats: 10},
		Sweep: SweeperConfig{Interval: time.Second, RetireGrace: time.Hour},
		Retry: RetryPolicy{Attempts: 2, Delay: time.Millisecond},
	}, Deps{
		Persister: f.persist,
		Events:    f.events,
		Clock:     f.clock,
	})
	return f
}

// register creates a screening with one row per label and n seats per row.
func (f *fixture) register(t *testing.T, id string, rows, cols int) {
	t.Helper()
	seats, err := Layout{Rows: rows, Cols: cols, BasePriceCents: 1200}.Seats()
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	sc := model.Screening{
		ID:         id,
		HallID:     "hall-1",
		MovieTitle: "Arrival",
		StartsAt:   t0.Add(2 * time.Hour),
		EndsAt:     t0.Add(4 * time.Hour),
	}
	if _, err := f.svc.RegisterScreening(context.Background(), sc, seats); err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
}

func ttl(d time.Duration) *time.Duration { return &d }

// states reads the authoritative seat states, bypassing display rules.
func (f *fixture) states(t *testing.T, screeningID string) map[string]model.SeatState {
	t.Helper()
	m, err := f.svc.Store.lookup(screeningID)
	if err != nil {
		t.Fatalf("lookup %s: %v", screeningID, err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]model.SeatState, len(m.states))
	for id, st := range m.states {
		out[id] = st
	}
	return out
}

func (f *fixture) status(t *testing.T, screeningID, seatID string) model.SeatStatus {
	t.Helper()
	st, ok := f.states(t, screeningID)[seatID]
	if !ok {
		t.Fatalf("seat %s missing", seatID)
	}
	return st.Status
}

func (f *fixture) remain(t *testing.T, screeningID string) int {
	t.Helper()
	sc, err := f.svc.Store.Screening(context.Background(), screeningID)
	if err != nil {
		t.Fatalf("screening: %v", err)
	}
	return sc.SeatRemain
}
