// Package scheduler drives the render tick from a display refresh signal.
//
// Each refresh the scheduler measures the time since the last executed tick
// and adjusts a degrade level in {0, 1, 2}: deltas above 26 ms raise it, deltas
// below 18 ms lower it. At level n it skips n refreshes between executed
// ticks and adds a small random jitter to the reported time. Safe mode pins
// the level at zero and disables both skipping and jitter.
//
// Analysis runs on every refresh, skipped or not. The delta of a skipped
// refresh spans every refresh since the last executed tick, so a degraded
// scheduler only recovers once the host renders fast enough to cover the
// skipped interval as well.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"
)

// Degrade thresholds in milliseconds and the highest degrade level.
const (
	SlowFrameMs = 26.0
	FastFrameMs = 18.0
	MaxLevel    = 2
)

// ErrAlreadyRunning is returned by Start while a loop is active.
var ErrAlreadyRunning = errors.New("scheduler: already running")

// Callback receives the jittered time and the unjittered delta of an
// executed tick, both in milliseconds.
type Callback func(timeMs, deltaMs float64)

// Tick is the outcome of an executed refresh.
type Tick struct {
	// Time is the refresh time plus jitter.
	Time float64

	// Delta is the time since the previous executed tick.
	Delta float64

	// Jitter is the offset that was added to Time.
	Jitter float64
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithRefresh sets the refresh source. The default is a 60 Hz TickerRefresh.
func WithRefresh(r Refresh) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.refresh = r
		}
	}
}

// WithRand sets the jitter random source. It must return values in [0, 1).
func WithRand(rand01 func() float64) Option {
	return func(s *Scheduler) {
		if rand01 != nil {
			s.rand = rand01
		}
	}
}

// WithLogger sets the logger for level changes and loop errors.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.log = l.With(slog.String("component", "scheduler"))
		}
	}
}

// Scheduler is Stopped until Start and Running until Stop. All methods are
// safe for concurrent use; the callback runs on the scheduler goroutine and
// never concurrently with itself.
type Scheduler struct {
	refresh Refresh
	rand    func() float64
	log     *slog.Logger

	mu       sync.Mutex
	level    int
	safe     bool
	skip     int
	lastTime float64
	skipped  uint64
	executed uint64

	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// New returns a stopped scheduler at degrade level 0.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		rand: rand.Float64,
		log:  slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.refresh == nil {
		s.refresh = NewTickerRefresh(DefaultRate)
	}
	return s
}

// Start runs the refresh loop in a new goroutine and returns immediately.
// The delta of the first tick is measured from the refresh clock at Start.
func (s *Scheduler) Start(ctx context.Context, cb Callback) error {
	if cb == nil {
		return errors.New("scheduler: nil callback")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrAlreadyRunning
	}
	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.running = true
	s.cancel = cancel
	s.done = done
	s.skip = 0
	s.lastTime = durationMs(s.refresh.Now())

	go s.loop(loopCtx, cb, done)
	s.log.Debug("scheduler started")
	return nil
}

func (s *Scheduler) loop(ctx context.Context, cb Callback, done chan struct{}) {
	defer func() {
		if st, ok := s.refresh.(interface{ Stop() }); ok {
			st.Stop()
		}
		s.mu.Lock()
		if s.done == done {
			s.running = false
			s.cancel = nil
			s.done = nil
		}
		s.mu.Unlock()
		close(done)
	}()

	for {
		t, err := s.refresh.Wait(ctx)
		if err != nil {
			if ctx.Err() == nil {
				s.log.Warn("refresh wait failed, scheduler stopping", "err", err)
			}
			return
		}
		if tick, ok := s.Step(durationMs(t)); ok {
			cb(tick.Time, tick.Delta)
		}
	}
}

// Stop cancels future refreshes and waits for an in-flight tick to finish.
// Safe to call when not running and more than once. Stop must not be called
// from the callback, which would wait on itself; use Cancel there.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Debug("scheduler stopped")
}

// Cancel asks the loop to stop after the current refresh and returns
// without waiting. It is safe to call from the callback.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Running reports whether the loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Step evaluates one refresh at nowMs. It reports whether the tick executes
// and, if so, the time and delta to hand to the callback.
func (s *Scheduler) Step(nowMs float64) (Tick, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delta := nowMs - s.lastTime
	if !s.safe {
		s.analyse(delta)
	}

	maxSkip := s.level
	if s.safe {
		maxSkip = 0
	}
	if s.skip < maxSkip {
		s.skip++
		s.skipped++
		return Tick{}, false
	}
	s.skip = 0

	var jitter float64
	if !s.safe {
		jitter = JitterOffset(s.level, s.rand)
	}
	s.lastTime = nowMs
	s.executed++
	return Tick{Time: nowMs + jitter, Delta: delta, Jitter: jitter}, true
}

func (s *Scheduler) analyse(delta float64) {
	prev := s.level
	switch {
	case delta > SlowFrameMs:
		s.level = min(MaxLevel, s.level+1)
	case delta < FastFrameMs && s.level > 0:
		s.level--
	}
	if s.level != prev {
		s.log.Debug("degrade level changed", "from", prev, "to", s.level, "delta_ms", delta)
	}
}

// SetSafeMode enables or disables safe mode. Enabling resets the degrade
// level and the skip counter; an in-flight tick is unaffected.
func (s *Scheduler) SetSafeMode(enabled bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.safe == enabled {
		return
	}
	s.safe = enabled
	if enabled {
		s.level = 0
		s.skip = 0
	}
	s.log.Debug("safe mode changed", "enabled", enabled)
}

// SafeMode reports whether safe mode is on.
func (s *Scheduler) SafeMode() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.safe
}

// DegradeLevel returns the current degrade level.
func (s *Scheduler) DegradeLevel() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.level
}

// Skipped returns the number of refreshes skipped so far.
func (s *Scheduler) Skipped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.skipped
}

// Executed returns the number of executed ticks so far.
func (s *Scheduler) Executed() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executed
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
