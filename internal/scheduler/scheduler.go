// Package scheduler wraps gocron for the engine's periodic jobs.
package scheduler

import (
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler drives the per-coin collection scans. Jobs registered
// before Start run once immediately and then at their interval.
type Scheduler struct {
	inner *gocron.Scheduler
}

// New creates a stopped scheduler.
func New() *Scheduler {
	return &Scheduler{inner: gocron.NewScheduler(time.UTC)}
}

// Every registers task to run at the given interval.
func (s *Scheduler) Every(interval time.Duration, task func()) error {
	_, err := s.inner.Every(interval).Do(task)
	return err
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.inner.StartAsync()
}

// Stop stops scheduling further runs.
func (s *Scheduler) Stop() {
	s.inner.Stop()
}
