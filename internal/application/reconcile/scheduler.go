package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-shop-api/internal/domain"
	cron "github.com/robfig/cron/v3"
)

const (
	// DefaultInterval is the pass cadence used when none is configured.
	DefaultInterval = 5 * time.Minute
	// intervalFloor prevents runaway polling of the order table.
	intervalFloor = time.Minute
)

// PassRunner runs one reconciliation pass.
type PassRunner interface {
	RunPass(ctx context.Context) ([]Outcome, error)
}

// Status is a consumer-visible snapshot of the scheduler.
type Status struct {
	Running  bool          `json:"running"`
	Interval time.Duration `json:"interval"`
	LastRun  time.Time     `json:"last_run,omitempty"`
	NextRun  time.Time     `json:"next_run,omitempty"`
}

// Scheduler drives recurring auto-confirmation passes. It is an injectable
// service object owning its own cron handle — one instance per process, but
// nothing package-global, so tests can run independent instances.
//
// passMu guarantees at most one pass in flight: an overlapping tick or a
// manual RunOnce queues behind the running pass instead of doubling it.
type Scheduler struct {
	runner PassRunner

	mu       sync.Mutex // guards the fields below
	cron     *cron.Cron
	entry    cron.EntryID
	interval time.Duration
	running  bool
	lastRun  time.Time

	passMu sync.Mutex
}

// NewScheduler builds a stopped scheduler. A non-positive interval falls back
// to DefaultInterval.
func NewScheduler(runner PassRunner, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		runner:   runner,
		cron:     cron.New(),
		interval: interval,
	}
}

// Start moves the scheduler to RUNNING: one immediate pass, then a recurring
// pass at the configured interval. Calling Start while running is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		slog.Warn("reconciliation scheduler already running")
		return
	}
	s.entry = s.cron.Schedule(cron.Every(s.interval), cron.FuncJob(s.tick))
	s.running = true
	interval := s.interval
	s.mu.Unlock()

	slog.Info("reconciliation scheduler started", "interval", interval)
	go s.tick() // immediate first pass, off the caller's goroutine
	s.cron.Start()
}

// Stop prevents further passes from being scheduled. A pass already in flight
// runs to completion. Calling Stop while stopped is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		slog.Warn("reconciliation scheduler already stopped")
		return
	}
	s.cron.Remove(s.entry)
	s.cron.Stop()
	s.running = false
	s.mu.Unlock()

	slog.Info("reconciliation scheduler stopped")
}

// SetInterval changes the pass cadence. Intervals under one minute are
// rejected. While running, the timer is rearmed with the new interval; an
// in-flight pass is unaffected and finishes first.
func (s *Scheduler) SetInterval(d time.Duration) error {
	if d < intervalFloor {
		return fmt.Errorf("interval %s below %s floor: %w", d, intervalFloor, domain.ErrInvalidInterval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.interval = d
	if s.running {
		s.cron.Remove(s.entry)
		s.entry = s.cron.Schedule(cron.Every(d), cron.FuncJob(s.tick))
	}
	slog.Info("reconciliation interval changed", "interval", d)
	return nil
}

// RunOnce triggers a single pass outside the timer, for diagnostics and
// testing. It serializes behind any pass already in flight.
func (s *Scheduler) RunOnce(ctx context.Context) ([]Outcome, error) {
	return s.executePass(ctx)
}

// Status returns the current scheduler snapshot.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Running:  s.running,
		Interval: s.interval,
		LastRun:  s.lastRun,
	}
	if s.running {
		st.NextRun = s.cron.Entry(s.entry).Next
	}
	return st
}

func (s *Scheduler) tick() {
	if _, err := s.executePass(context.Background()); err != nil {
		slog.Error("scheduled reconciliation pass failed", "err", err)
	}
}

func (s *Scheduler) executePass(ctx context.Context) ([]Outcome, error) {
	s.passMu.Lock()
	defer s.passMu.Unlock()

	s.mu.Lock()
	s.lastRun = time.Now()
	s.mu.Unlock()

	return s.runner.RunPass(ctx)
}
