// Package sched provides the cooperative fixed-rate tick scheduler that drives
// every periodic job in a session. All callbacks run on the goroutine that
// calls Step; other goroutines hand work over with Submit.
package sched

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Handle cancels a scheduled job. Cancel is idempotent and a cancelled job is
// never invoked again, even if it was already due on the current tick.
type Handle interface {
	Cancel()
}

// Scheduler is the surface the zone controller and round engine depend on.
type Scheduler interface {
	ScheduleEvery(intervalTicks int, fn func()) Handle
	ScheduleOnce(delayTicks int, fn func()) Handle
	TicksPerSecond() int
	CurrentTick() uint64
}

type job struct {
	seq      uint64
	due      uint64
	interval uint64
	fn       func()

	cancelled atomic.Bool
}

func (j *job) Cancel() { j.cancelled.Store(true) }

type TickScheduler struct {
	rateHz int

	tick atomic.Uint64

	mu        sync.Mutex
	submitted []func()

	// Only touched from the stepping goroutine.
	jobs []*job
	seq  uint64
}

func New(rateHz int) *TickScheduler {
	if rateHz <= 0 {
		rateHz = 20
	}
	return &TickScheduler{rateHz: rateHz}
}

func (s *TickScheduler) TicksPerSecond() int { return s.rateHz }

// CurrentTick is safe to call from any goroutine.
func (s *TickScheduler) CurrentTick() uint64 { return s.tick.Load() }

// ScheduleEvery runs fn every intervalTicks, first after one full interval.
func (s *TickScheduler) ScheduleEvery(intervalTicks int, fn func()) Handle {
	if intervalTicks < 1 {
		intervalTicks = 1
	}
	return s.add(uint64(intervalTicks), uint64(intervalTicks), fn)
}

// ScheduleOnce runs fn once after delayTicks (at least one tick).
func (s *TickScheduler) ScheduleOnce(delayTicks int, fn func()) Handle {
	if delayTicks < 1 {
		delayTicks = 1
	}
	return s.add(uint64(delayTicks), 0, fn)
}

func (s *TickScheduler) add(delay, interval uint64, fn func()) Handle {
	s.seq++
	j := &job{
		seq:      s.seq,
		due:      s.tick.Load() + delay,
		interval: interval,
		fn:       fn,
	}
	s.jobs = append(s.jobs, j)
	return j
}

// Submit queues fn to run on the stepping goroutine at the start of the next
// Step. Safe from any goroutine.
func (s *TickScheduler) Submit(fn func()) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	s.submitted = append(s.submitted, fn)
	s.mu.Unlock()
}

// Pending reports the number of live scheduled jobs.
func (s *TickScheduler) Pending() int {
	n := 0
	for _, j := range s.jobs {
		if !j.cancelled.Load() {
			n++
		}
	}
	return n
}

// Step advances one tick: submitted closures first, then every due job in
// (due tick, registration) order.
func (s *TickScheduler) Step() {
	now := s.tick.Add(1)

	s.mu.Lock()
	pending := s.submitted
	s.submitted = nil
	s.mu.Unlock()
	for _, fn := range pending {
		fn()
	}

	var due []*job
	for _, j := range s.jobs {
		if j.due <= now && !j.cancelled.Load() {
			due = append(due, j)
		}
	}
	sort.Slice(due, func(a, b int) bool {
		if due[a].due != due[b].due {
			return due[a].due < due[b].due
		}
		return due[a].seq < due[b].seq
	})
	for _, j := range due {
		if j.cancelled.Load() {
			continue
		}
		if j.interval == 0 {
			j.cancelled.Store(true)
		} else {
			j.due = now + j.interval
		}
		j.fn()
	}

	live := s.jobs[:0]
	for _, j := range s.jobs {
		if !j.cancelled.Load() {
			live = append(live, j)
		}
	}
	for i := len(live); i < len(s.jobs); i++ {
		s.jobs[i] = nil
	}
	s.jobs = live
}

// Advance steps n ticks.
func (s *TickScheduler) Advance(n int) {
	for i := 0; i < n; i++ {
		s.Step()
	}
}

// Run steps the scheduler at its tick rate until ctx is cancelled.
func (s *TickScheduler) Run(ctx context.Context) error {
	interval := time.Second / time.Duration(s.rateHz)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Step()
		}
	}
}

// Group collects handles so an owner can cancel everything it scheduled at
// once.
type Group struct {
	handles []Handle
}

func (g *Group) Add(h Handle) Handle {
	if h != nil {
		g.handles = append(g.handles, h)
	}
	return h
}

func (g *Group) CancelAll() {
	for _, h := range g.handles {
		h.Cancel()
	}
	g.handles = nil
}
