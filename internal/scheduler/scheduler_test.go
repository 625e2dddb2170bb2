package scheduler

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsImmediatelyThenAtInterval(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int64
	if err := s.Every(50*time.Millisecond, func() { runs.Add(1) }); err != nil {
		t.Fatalf("Every() error = %v", err)
	}

	s.Start()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 3 {
		select {
		case <-deadline:
			t.Fatalf("only %d runs before deadline, want at least 3", runs.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestSchedulerFirstRunDoesNotWaitInterval(t *testing.T) {
	s := New()
	defer s.Stop()

	var runs atomic.Int64
	if err := s.Every(time.Hour, func() { runs.Add(1) }); err != nil {
		t.Fatalf("Every() error = %v", err)
	}

	s.Start()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("first run did not happen promptly")
		case <-time.After(10 * time.Millisecond):
		}
	}
	if got := runs.Load(); got != 1 {
		t.Errorf("runs = %d, want exactly 1 within the first interval", got)
	}
}

func TestSchedulerStopHaltsRuns(t *testing.T) {
	s := New()

	var runs atomic.Int64
	if err := s.Every(20*time.Millisecond, func() { runs.Add(1) }); err != nil {
		t.Fatalf("Every() error = %v", err)
	}

	s.Start()

	deadline := time.After(2 * time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("job never ran")
		case <-time.After(5 * time.Millisecond):
		}
	}

	s.Stop()
	// Let any in-flight run finish before snapshotting.
	time.Sleep(50 * time.Millisecond)
	after := runs.Load()
	time.Sleep(100 * time.Millisecond)

	if got := runs.Load(); got != after {
		t.Errorf("runs continued after Stop: %d -> %d", after, got)
	}
}

func TestSchedulerMultipleJobs(t *testing.T) {
	s := New()
	defer s.Stop()

	var a, b atomic.Int64
	if err := s.Every(30*time.Millisecond, func() { a.Add(1) }); err != nil {
		t.Fatalf("Every() error = %v", err)
	}
	if err := s.Every(30*time.Millisecond, func() { b.Add(1) }); err != nil {
		t.Fatalf("Every() error = %v", err)
	}

	s.Start()

	deadline := time.After(2 * time.Second)
	for a.Load() == 0 || b.Load() == 0 {
		select {
		case <-deadline:
			t.Fatalf("jobs did not both run: a=%d b=%d", a.Load(), b.Load())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
