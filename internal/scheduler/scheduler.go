// Package scheduler fires medication reminders on a recurring cron tick.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/manav03panchal/medremind/internal/config"
	"github.com/manav03panchal/medremind/internal/errors"
	"github.com/manav03panchal/medremind/internal/logging"
	"github.com/manav03panchal/medremind/internal/metrics"
)

// State is the scheduler's dispatch state.
type State int32

const (
	// StateIdle means no tick is running.
	StateIdle State = iota
	// StateDispatching means a tick is in flight.
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDispatching:
		return "dispatching"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Options configures a Scheduler.
type Options struct {
	// TickInterval is the dispatch period. One minute is aligned to
	// wall-clock minute boundaries.
	TickInterval time.Duration
	// ShutdownTimeout bounds how long Stop waits for an in-flight tick.
	ShutdownTimeout time.Duration
	// Location is the clock reminders are evaluated in.
	Location *time.Location
	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
	// OnTick, if set, receives every completed tick result.
	OnTick func(TickResult)
}

// DefaultOptions returns options from the global configuration.
func DefaultOptions() Options {
	loc, err := config.Global.Location()
	if err != nil {
		logging.Warn("falling back to local time", logging.KeyError, err)
		loc = time.Local
	}
	return Options{
		TickInterval:    config.Global.Scheduler.TickInterval,
		ShutdownTimeout: config.Global.Daemon.ShutdownTimeout,
		Location:        loc,
		Clock:           time.Now,
	}
}

// Scheduler drives a Dispatcher from a cron job. Ticks never overlap: an
// activation that finds a tick in flight is skipped and counted.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher *Dispatcher
	opts       Options

	ctx    context.Context
	cancel context.CancelFunc

	state    atomic.Int32
	overlaps atomic.Uint64

	mu       sync.Mutex
	started  bool
	stopped  bool
	entryID  cron.EntryID
	inflight sync.WaitGroup
	last     TickResult
}

// New creates a scheduler. Nothing runs until Start.
func New(dispatcher *Dispatcher, opts Options) *Scheduler {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Minute
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	ctx, cancel := context.WithCancel(context.Background())
	cronLogger := logging.CronLogger()
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithLocation(opts.Location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		dispatcher: dispatcher,
		opts:       opts,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// tickSpec returns the cron spec for a tick interval.
func tickSpec(interval time.Duration) string {
	if interval == time.Minute {
		return "0 * * * * *"
	}
	return "@every " + interval.String()
}

// Start registers the tick job, runs one tick and then starts cron. The
// first tick completes before Start returns, so reminders due at startup
// fire before any scheduled activation can run.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return nil
	}
	if s.stopped {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already stopped")
	}

	id, err := s.cron.AddFunc(tickSpec(s.opts.TickInterval), func() { s.RunTick() })
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to add tick job: %w", err)
	}
	s.entryID = id
	s.started = true
	s.mu.Unlock()

	s.RunTick()

	s.cron.Start()
	logging.Info("scheduler started",
		"interval", s.opts.TickInterval.String(),
		"missed_window", s.dispatcher.MissedWindow().String(),
		"location", s.opts.Location.String())
	return nil
}

// RunTick runs one guarded tick at the scheduler's clock. It returns false
// without running when another tick is in flight or the scheduler stopped.
func (s *Scheduler) RunTick() (TickResult, bool) {
	if !s.state.CompareAndSwap(int32(StateIdle), int32(StateDispatching)) {
		s.overlaps.Add(1)
		metrics.TicksTotal.WithLabelValues("overlap").Inc()
		logging.Warn("tick skipped, previous tick still running")
		return TickResult{}, false
	}
	defer s.state.Store(int32(StateIdle))

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return TickResult{}, false
	}
	s.inflight.Add(1)
	s.mu.Unlock()
	defer s.inflight.Done()

	metrics.TicksTotal.WithLabelValues("run").Inc()
	result := s.dispatcher.Tick(logging.NewRequestContext(s.ctx), s.opts.Clock().In(s.opts.Location))

	s.mu.Lock()
	s.last = result
	s.mu.Unlock()

	if s.opts.OnTick != nil {
		s.opts.OnTick(result)
	}
	return result, true
}

// Stop stops accepting ticks and waits for the in-flight tick, at most
// ShutdownTimeout or until ctx ends. A tick still running then is canceled
// and Stop returns without waiting for it.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	s.mu.Unlock()

	s.cron.Stop()

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	timer := time.NewTimer(s.opts.ShutdownTimeout)
	defer timer.Stop()

	var err error
	select {
	case <-done:
	case <-timer.C:
		err = errors.Wrapf(errors.ErrTimeout, "tick still running after %s", s.opts.ShutdownTimeout)
	case <-ctx.Done():
		err = ctx.Err()
	}
	s.cancel()

	if err != nil {
		logging.Warn("scheduler stopped with tick in flight", logging.KeyError, err)
		return err
	}
	logging.Info("scheduler stopped")
	return nil
}

// State returns whether a tick is in flight.
func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Overlaps returns how many activations were skipped because a tick was
// still running.
func (s *Scheduler) Overlaps() uint64 {
	return s.overlaps.Load()
}

// LastResult returns the result of the most recent completed tick.
func (s *Scheduler) LastResult() TickResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

// NextRun returns the next scheduled tick, or the zero time if not started.
func (s *Scheduler) NextRun() time.Time {
	s.mu.Lock()
	id := s.entryID
	s.mu.Unlock()
	if id == 0 {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Dispatcher returns the scheduler's dispatcher.
func (s *Scheduler) Dispatcher() *Dispatcher {
	return s.dispatcher
}
