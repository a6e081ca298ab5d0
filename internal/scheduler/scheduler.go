// Package scheduler runs the periodic jobs of the daemon: dispatcher ticks,
// weather refreshes, and persistence flushes. It wraps robfig/cron so job
// registration stays declarative and overlapping runs are skipped rather
// than stacked.
package scheduler

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/tartampluch/go-reminder/internal/config"
)

// Scheduler owns the cron runner. Jobs are registered before Start and run
// on their own goroutines until Stop.
type Scheduler struct {
	cron *cron.Cron
}

// New creates a scheduler whose jobs never overlap themselves: a tick still
// in flight causes the next firing of the same job to be skipped.
func New() *Scheduler {
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.SkipIfStillRunning(cron.DiscardLogger),
		)),
	}
}

// AddEvery registers a job firing at a fixed interval.
func (s *Scheduler) AddEvery(interval time.Duration, job func()) error {
	spec := "@every " + interval.String()
	if _, err := s.cron.AddFunc(spec, job); err != nil {
		return fmt.Errorf("%s %q: %w", config.ErrSchedulerSpec, spec, err)
	}
	return nil
}

// Start launches the cron runner in its own goroutine.
func (s *Scheduler) Start() {
	slog.Debug(config.MsgSchedulerStart, config.LogKeyComponent, config.CompScheduler)
	s.cron.Start()
}

// Stop halts scheduling and waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	slog.Debug(config.MsgSchedulerStop, config.LogKeyComponent, config.CompScheduler)
}
