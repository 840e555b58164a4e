package sched

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestScheduleEvery_FiresOnInterval(t *testing.T) {
	s := New(20)
	var fired []uint64
	s.ScheduleEvery(5, func() { fired = append(fired, s.CurrentTick()) })

	s.Advance(16)
	want := []uint64{5, 10, 15}
	if len(fired) != len(want) {
		t.Fatalf("fired=%v want=%v", fired, want)
	}
	for i := range want {
		if fired[i] != want[i] {
			t.Fatalf("fired=%v want=%v", fired, want)
		}
	}
}

func TestScheduleOnce_FiresOnceAndIsDropped(t *testing.T) {
	s := New(20)
	n := 0
	s.ScheduleOnce(3, func() { n++ })
	s.Advance(10)
	if n != 1 {
		t.Fatalf("once fired %d times want 1", n)
	}
	if s.Pending() != 0 {
		t.Fatalf("pending=%d want 0", s.Pending())
	}
}

func TestCancel_IsIdempotentAndSuppressesSameTick(t *testing.T) {
	s := New(20)
	var order []string
	var second Handle
	s.ScheduleOnce(2, func() {
		order = append(order, "a")
		second.Cancel()
		second.Cancel()
	})
	second = s.ScheduleOnce(2, func() { order = append(order, "b") })

	s.Advance(4)
	if len(order) != 1 || order[0] != "a" {
		t.Fatalf("order=%v want [a]", order)
	}
}

func TestStep_OrdersByDueThenRegistration(t *testing.T) {
	s := New(20)
	var order []int
	s.ScheduleOnce(2, func() { order = append(order, 1) })
	s.ScheduleOnce(1, func() { order = append(order, 2) })
	s.ScheduleOnce(2, func() { order = append(order, 3) })
	s.Advance(2)
	want := []int{2, 1, 3}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order=%v want=%v", order, want)
		}
	}
}

func TestSubmit_RunsOnNextStepBeforeJobs(t *testing.T) {
	s := New(20)
	var order []string
	s.ScheduleOnce(1, func() { order = append(order, "job") })

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Submit(func() { order = append(order, "submitted") })
	}()
	wg.Wait()

	s.Step()
	if len(order) != 2 || order[0] != "submitted" || order[1] != "job" {
		t.Fatalf("order=%v", order)
	}
}

func TestGroup_CancelAll(t *testing.T) {
	s := New(20)
	var g Group
	n := 0
	g.Add(s.ScheduleEvery(1, func() { n++ }))
	g.Add(s.ScheduleOnce(3, func() { n += 100 }))
	s.Advance(2)
	g.CancelAll()
	s.Advance(5)
	if n != 2 {
		t.Fatalf("n=%d want 2", n)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	s := New(200)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); err != context.DeadlineExceeded {
		t.Fatalf("Run err=%v", err)
	}
	if s.CurrentTick() == 0 {
		t.Fatalf("expected ticks to advance")
	}
}
