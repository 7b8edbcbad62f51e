// Package scheduler re-runs the index refresh on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/dbsmedya/goask/internal/logger"
)

// RefreshFunc performs one refresh.
type RefreshFunc func(ctx context.Context) error

// Scheduler runs a RefreshFunc on a cron expression. A tick that fires
// while the previous refresh is still running is skipped.
type Scheduler struct {
	cron    *cron.Cron
	job     cron.Job
	refresh RefreshFunc
	log     *logger.Logger

	runOnStart bool

	mu  sync.Mutex
	ctx context.Context

	runs   atomic.Int64
	failed atomic.Int64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// RunOnStart makes Run refresh once before the first scheduled tick.
func RunOnStart() Option {
	return func(s *Scheduler) { s.runOnStart = true }
}

// New creates a Scheduler for spec, a standard five-field cron expression
// or a descriptor such as "@hourly" or "@every 30m".
func New(spec string, fn RefreshFunc, log *logger.Logger, opts ...Option) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	s := &Scheduler{
		refresh: fn,
		log:     log.WithComponent("scheduler"),
		ctx:     context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}

	cl := cronLogger{s.log}
	s.cron = cron.New(cron.WithLogger(cl))
	s.job = cron.NewChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)).Then(cron.FuncJob(s.tick))
	if _, err := s.cron.AddJob(spec, s.job); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run starts the schedule and blocks until ctx is done. It returns after
// a refresh in progress has finished.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.mu.Unlock()

	if s.runOnStart {
		s.job.Run()
	}
	s.cron.Start()
	if next := s.Next(); !next.IsZero() {
		s.log.Infow("Scheduler started", "next_run", next)
	}

	<-ctx.Done()
	<-s.cron.Stop().Done()
	s.log.Infow("Scheduler stopped", "runs", s.runs.Load(), "failed", s.failed.Load())
	return nil
}

// Trigger runs a refresh now, unless one is already running.
func (s *Scheduler) Trigger() {
	s.job.Run()
}

// Next returns the time of the next scheduled run, or zero before Run.
func (s *Scheduler) Next() time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Next
}

// Runs returns the number of completed refreshes, failed ones included.
func (s *Scheduler) Runs() int64 { return s.runs.Load() }

// Failed returns the number of refreshes that returned an error.
func (s *Scheduler) Failed() int64 { return s.failed.Load() }

func (s *Scheduler) tick() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	if ctx.Err() != nil {
		return
	}

	start := time.Now()
	err := s.refresh(ctx)
	s.runs.Add(1)
	if err != nil {
		s.failed.Add(1)
		s.log.Errorw("Scheduled refresh failed", "error", err, "duration", time.Since(start))
		return
	}
	s.log.Debugw("Scheduled refresh finished", "duration", time.Since(start))
}

// cronLogger adapts Logger to cron.Logger.
type cronLogger struct {
	log *logger.Logger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.log.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
