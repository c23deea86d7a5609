package inventory

import (
	"container/heap"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/iliyamo/cinema-seat-inventory/internal/clock"
	"github.com/iliyamo/cinema-seat-inventory/internal/logger"
	"github.com/iliyamo/cinema-seat-inventory/internal/model"
)

// SweeperConfig controls the expiry loop.
type SweeperConfig struct {
	Interval    time.Duration // upper bound between two passes
	RetireGrace time.Duration // screenings retire at EndsAt+RetireGrace
	RetryDelay  time.Duration // delay before retrying a failed expiry
}

func (c SweeperConfig) withDefaults() SweeperConfig {
	if c.Interval <= 0 {
		c.Interval = time.Second
	}
	if c.RetireGrace <= 0 {
		c.RetireGrace = time.Hour
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = c.Interval
	}
	return c
}

type deadline struct {
	at     time.Time
	holdID string
}

type deadlineHeap []deadline

func (d deadlineHeap) Len() int           { return len(d) }
func (d deadlineHeap) Less(i, j int) bool { return d[i].at.Before(d[j].at) }
func (d deadlineHeap) Swap(i, j int)      { d[i], d[j] = d[j], d[i] }
func (d *deadlineHeap) Push(x any)        { *d = append(*d, x.(deadline)) }
func (d *deadlineHeap) Pop() any {
	old := *d
	n := len(old)
	x := old[n-1]
	*d = old[:n-1]
	return x
}

// Sweeper reclaims expired holds and retires finished screenings.  It
// keeps a min-heap of hold deadlines and wakes at the earliest one or
// after Interval, whichever comes first.  The heap may hold stale
// entries; each one is checked against the store before acting.
type Sweeper struct {
	holds *HoldManager
	store *Store
	clock clock.Clock
	cfg   SweeperConfig
	log   logger.Logger

	mu      sync.Mutex
	queue   deadlineHeap
	wake    chan struct{}
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// NewSweeper attaches a sweeper to holds so new holds get scheduled.
func NewSweeper(holds *HoldManager, clk clock.Clock, cfg SweeperConfig) *Sweeper {
	s := &Sweeper{
		holds: holds,
		store: holds.store,
		clock: clk,
		cfg:   cfg.withDefaults(),
		log:   holds.store.log.With("component", "sweeper"),
		wake:  make(chan struct{}, 1),
	}
	holds.sched = s
	return s
}

// Schedule queues holdID for expiry at at.
func (s *Sweeper) Schedule(holdID string, at time.Time) {
	s.mu.Lock()
	heap.Push(&s.queue, deadline{at: at, holdID: holdID})
	s.mu.Unlock()
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Pending returns the number of queued deadlines.
func (s *Sweeper) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.queue.Len()
}

// Start runs the loop in a background goroutine until Stop is called
// or ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("sweeper is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop(ctx, s.stopCh)
	}()
	s.log.Info("sweeper started", "interval", s.cfg.Interval.String())
	return nil
}

// Stop signals the loop and waits for it to exit.
func (s *Sweeper) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return errors.New("sweeper is not running")
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()
	s.wg.Wait()
	s.log.Info("sweeper stopped")
	return nil
}

// Run blocks until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) error {
	if err := s.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return s.Stop()
}

func (s *Sweeper) loop(ctx context.Context, stop <-chan struct{}) {
	for {
		wait := s.cfg.Interval
		if next, ok := s.next(); ok {
			if d := next.Sub(s.clock.Now()); d < wait {
				wait = d
			}
		}
		if wait < 0 {
			wait = 0
		}
		select {
		case <-ctx.Done():
			return
		case <-stop:
			return
		case <-s.wake:
			continue
		case <-s.clock.After(wait):
		}
		s.SweepDue(ctx)
		s.RetireDue(ctx)
	}
}

func (s *Sweeper) next() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue.Len() == 0 {
		return time.Time{}, false
	}
	return s.queue[0].at, true
}

// SweepDue expires every hold whose deadline has passed and returns how
// many holds were reclaimed.
func (s *Sweeper) SweepDue(ctx context.Context) int {
	now := s.clock.Now()
	var due []string
	s.mu.Lock()
	for s.queue.Len() > 0 && !now.Before(s.queue[0].at) {
		due = append(due, heap.Pop(&s.queue).(deadline).holdID)
	}
	s.mu.Unlock()

	expired := 0
	for _, id := range due {
		next, err := s.holds.expire(ctx, id)
		switch {
		case errors.Is(err, ErrHoldNotFound):
			// confirmed or released before its deadline
		case err != nil:
			s.log.Warn("hold expiry failed", "hold_id", id, "error", err)
			s.Schedule(id, now.Add(s.cfg.RetryDelay))
		case !next.IsZero():
			s.Schedule(id, next)
		default:
			expired++
		}
	}
	if expired > 0 {
		s.log.Debug("expired holds reclaimed", "count", expired)
	}
	return expired
}

// RetireDue retires screenings that ended more than RetireGrace ago.
func (s *Sweeper) RetireDue(ctx context.Context) int {
	now := s.clock.Now()
	n := 0
	for _, sc := range s.store.Screenings() {
		if sc.Status == model.ScreeningRetired || sc.EndsAt.IsZero() {
			continue
		}
		if now.Before(sc.EndsAt.Add(s.cfg.RetireGrace)) {
			continue
		}
		if err := s.store.Retire(ctx, sc.ID); err != nil {
			s.log.Warn("screening retirement failed", "screening_id", sc.ID, "error", err)
			continue
		}
		s.log.Info("screening retired", "screening_id", sc.ID)
		n++
	}
	return n
}

// Recover schedules every hold currently in the store and reclaims
// those already past their expiry.  It runs once after the store has
// been restored and before traffic is accepted.
func (s *Sweeper) Recover(ctx context.Context) int {
	for _, h := range s.store.AllHolds() {
		s.Schedule(h.ID, h.ExpiresAt)
	}
	n := s.SweepDue(ctx)
	s.log.Info("hold schedule recovered", "pending", s.Pending(), "expired", n)
	return n
}
