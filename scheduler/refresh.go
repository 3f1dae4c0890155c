package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Refresh is the display refresh signal the scheduler waits on. Timestamps
// are monotonic and share one origin per Refresh value.
type Refresh interface {
	// Now returns the current clock reading.
	Now() time.Duration

	// Wait blocks until the next refresh and returns its timestamp.
	// It returns ctx.Err() when ctx is done first.
	Wait(ctx context.Context) (time.Duration, error)
}

// DefaultRate is the refresh rate of a TickerRefresh created with rate <= 0.
const DefaultRate = 60.0

// TickerRefresh emulates a display refresh with a time.Ticker. The ticker is
// created on the first Wait and released by Stop.
type TickerRefresh struct {
	interval time.Duration
	epoch    time.Time

	mu     sync.Mutex
	ticker *time.Ticker
}

// NewTickerRefresh returns a refresh source firing rate times per second.
func NewTickerRefresh(rate float64) *TickerRefresh {
	if rate <= 0 {
		rate = DefaultRate
	}
	return &TickerRefresh{
		interval: time.Duration(float64(time.Second) / rate),
		epoch:    time.Now(),
	}
}

// Interval returns the time between refreshes.
func (r *TickerRefresh) Interval() time.Duration { return r.interval }

// Now implements Refresh.
func (r *TickerRefresh) Now() time.Duration { return time.Since(r.epoch) }

// Wait implements Refresh.
func (r *TickerRefresh) Wait(ctx context.Context) (time.Duration, error) {
	r.mu.Lock()
	if r.ticker == nil {
		r.ticker = time.NewTicker(r.interval)
	}
	c := r.ticker.C
	r.mu.Unlock()

	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case <-c:
		return r.Now(), nil
	}
}

// Stop releases the ticker. A later Wait starts a new one.
func (r *TickerRefresh) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ticker != nil {
		r.ticker.Stop()
		r.ticker = nil
	}
}

// ManualRefresh is driven by explicit Signal calls, for host vsync callbacks
// and deterministic tests.
type ManualRefresh struct {
	ch  chan time.Duration
	now atomic.Int64
}

// NewManualRefresh returns a refresh source whose clock reads zero until the
// first signal.
func NewManualRefresh() *ManualRefresh {
	return &ManualRefresh{ch: make(chan time.Duration)}
}

// Signal delivers a refresh at time t. It blocks until the scheduler takes
// it or ctx is done.
func (m *ManualRefresh) Signal(ctx context.Context, t time.Duration) error {
	select {
	case m.ch <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Now implements Refresh. It returns the last delivered timestamp.
func (m *ManualRefresh) Now() time.Duration { return time.Duration(m.now.Load()) }

// Wait implements Refresh.
func (m *ManualRefresh) Wait(ctx context.Context) (time.Duration, error) {
	select {
	case <-ctx.Done():
		return 0, ctx.Err()
	case t := <-m.ch:
		m.now.Store(int64(t))
		return t, nil
	}
}
