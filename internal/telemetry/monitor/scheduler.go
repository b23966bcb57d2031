// Package monitor publishes derived dashboard views of the telemetry stores
// and serves them as charts. A Scheduler recomputes its view at a fixed
// cadence when the acquisition loop signals fresh data; handlers read the
// published view atomically and never touch the stores.
package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/sensor.watch/internal/timeutil"
)

// Render cadence per dashboard. The ranging display redraws fast enough to
// track obstacles, motion at a comfortable reading rate, packet summaries
// once a second.
const (
	RangeInterval   = 50 * time.Millisecond
	MotionInterval  = 250 * time.Millisecond
	PacketInterval  = time.Second
	DefaultInterval = 250 * time.Millisecond
)

// Scheduler owns one dashboard's derived view. A single goroutine recomputes
// the view on its tick only when the dirty signal fired since the last tick;
// quiet ticks re-publish the previous view untouched, so a stopped stream
// freezes its dashboard instead of erroring. The published pointer is
// swapped atomically and is safe to read from any goroutine.
type Scheduler[V any] struct {
	render   func() *V
	notify   <-chan struct{}
	interval time.Duration
	clock    timeutil.Clock

	view    atomic.Pointer[V]
	renders atomic.Uint64
	ticks   atomic.Uint64

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewScheduler creates a scheduler and publishes an initial view so readers
// never observe nil. notify is the acquisition loop's coalesced dirty
// channel. A zero interval means DefaultInterval; a nil clock means wall
// time.
func NewScheduler[V any](render func() *V, notify <-chan struct{}, interval time.Duration, clock timeutil.Clock) *Scheduler[V] {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	s := &Scheduler[V]{
		render:   render,
		notify:   notify,
		interval: interval,
		clock:    clock,
	}
	s.view.Store(render())
	s.renders.Add(1)
	return s
}

// Start launches the render goroutine. Starting a running scheduler is a
// no-op.
func (s *Scheduler[V]) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(runCtx, s.done)
}

// Stop halts rendering and waits for the goroutine to exit. The last
// published view stays readable. Stopping a stopped scheduler is a no-op.
func (s *Scheduler[V]) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// View returns the current published view. Never nil.
func (s *Scheduler[V]) View() *V { return s.view.Load() }

// Renders returns how many times the view was recomputed, including the
// initial publish.
func (s *Scheduler[V]) Renders() uint64 { return s.renders.Load() }

// Ticks returns how many scheduler ticks have fired.
func (s *Scheduler[V]) Ticks() uint64 { return s.ticks.Load() }

func (s *Scheduler[V]) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick()
		}
	}
}

func (s *Scheduler[V]) tick() {
	s.ticks.Add(1)
	select {
	case <-s.notify:
		// Any number of arrivals since the last tick collapsed into this
		// one signal; recompute once from the latest snapshot.
		s.view.Store(s.render())
		s.renders.Add(1)
	default:
		// Nothing new: the previous view stands.
	}
}
