package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"anitgo/pkg/config"
)

// Scheduler ticks the backfill jobs on independent timers. Each job gets
// a re-entry guard: if a batch outruns its interval the next tick is
// skipped, never stacked.
type Scheduler struct {
	jobs     []*scheduledJob
	interval time.Duration
	idle     time.Duration
	batch    int
	logger   *slog.Logger
	wg       sync.WaitGroup
}

type scheduledJob struct {
	job     Job
	running atomic.Bool
}

// NewScheduler creates a Scheduler for the given jobs.
func NewScheduler(cfg config.BackfillConfig, logger *slog.Logger, jobs ...Job) *Scheduler {
	s := &Scheduler{
		interval: time.Duration(cfg.Interval),
		idle:     time.Duration(cfg.IdleInterval),
		batch:    cfg.BatchSize,
		logger:   logger,
	}
	for _, j := range jobs {
		s.jobs = append(s.jobs, &scheduledJob{job: j})
	}
	return s
}

// Start launches one timer loop per job and returns immediately. The
// loops stop when the context is cancelled; Wait blocks until they have.
func (s *Scheduler) Start(ctx context.Context) {
	for _, sj := range s.jobs {
		s.wg.Add(1)
		go func(sj *scheduledJob) {
			defer s.wg.Done()
			s.loop(ctx, sj)
		}(sj)
	}
	s.logger.Info("backfill scheduler started", "jobs", len(s.jobs), "interval", s.interval, "idle_interval", s.idle)
}

// Wait blocks until all job loops have exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}

// RunOnce runs a single named job immediately, for CLI use.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (int, error) {
	for _, sj := range s.jobs {
		if sj.job.Name() != name {
			continue
		}
		if !sj.running.CompareAndSwap(false, true) {
			return 0, fmt.Errorf("job %q is already running", name)
		}
		defer sj.running.Store(false)
		return sj.job.Run(ctx)
	}
	return 0, fmt.Errorf("unknown job %q", name)
}

// JobNames lists the scheduled job names.
func (s *Scheduler) JobNames() []string {
	names := make([]string, 0, len(s.jobs))
	for _, sj := range s.jobs {
		names = append(names, sj.job.Name())
	}
	return names
}

func (s *Scheduler) loop(ctx context.Context, sj *scheduledJob) {
	// First tick after a full interval, so a fresh process doesn't slam
	// the upstream APIs the moment it starts.
	next := s.interval
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(next):
		}

		if !sj.running.CompareAndSwap(false, true) {
			// Previous batch still running, skip this tick.
			continue
		}
		processed, err := sj.job.Run(ctx)
		sj.running.Store(false)

		if err != nil {
			s.logger.Error("backfill job failed", "job", sj.job.Name(), "error", err)
			next = s.interval
			continue
		}

		// A full batch means a backlog remains; come back soon. A short
		// batch means the queue drained, back off to the idle interval.
		if processed >= s.batch {
			next = s.interval
		} else {
			next = s.idle
		}
	}
}
