// Package scheduler drives the ETL job once or on a recurring timetable.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"weatheretl/internal/config"
	"weatheretl/internal/logger"
)

// Job is one ETL run.
type Job func(ctx context.Context) error

// Scheduler owns the run loop. In once mode Run executes the job a single
// time and returns its error. In schedule mode Run executes the job
// immediately, hands further runs to the trigger and blocks until Stop or
// context cancellation.
type Scheduler struct {
	mode    string
	trigger Trigger
	job     Job

	mu   sync.Mutex // serializes runs
	runs atomic.Int64

	stopOnce sync.Once
	stop     chan struct{}
}

func New(mode string, trigger Trigger, job Job) *Scheduler {
	return &Scheduler{
		mode:    mode,
		trigger: trigger,
		job:     job,
		stop:    make(chan struct{}),
	}
}

func (s *Scheduler) Run(ctx context.Context) error {
	switch s.mode {
	case config.ModeOnce:
		return s.runJob(ctx)
	case config.ModeSchedule:
	default:
		return fmt.Errorf("unknown scheduler mode %q", s.mode)
	}

	if err := s.runJob(ctx); err != nil {
		logger.Errorf("ETL run failed: %v", err)
	}

	err := s.trigger.Start(func() {
		select {
		case <-s.stop:
			return
		default:
		}
		if err := s.runJob(ctx); err != nil {
			logger.Errorf("ETL run failed: %v", err)
		}
	})
	if err != nil {
		return err
	}
	logger.Infof("Scheduler started (%v)", s.trigger)

	select {
	case <-ctx.Done():
	case <-s.stop:
	}

	logger.Infof("Stopping scheduler...")
	s.trigger.Stop()

	// wait for an in-flight run
	s.mu.Lock()
	s.mu.Unlock()
	return nil
}

// Stop ends a scheduled Run. It is safe to call more than once.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Runs returns how many times the job has been invoked.
func (s *Scheduler) Runs() int {
	return int(s.runs.Load())
}

func (s *Scheduler) runJob(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs.Add(1)
	return s.job(ctx)
}
