package analysis

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
	"github.com/banshee-data/sensor.watch/internal/telemetry"
)

// resultBuffer bounds the results channel; the dashboard consumer drains it
// between renders, and a full buffer drops on the floor rather than blocking
// a completion.
const resultBuffer = 16

// Result is one finished analysis keyed to the request that asked for it.
type Result struct {
	ID   uuid.UUID
	Seq  uint64
	Text string
	Err  error
}

// Dispatcher runs analyses one goroutine per submission, newest request
// wins. Selecting a second packet while the first review is still in flight
// supersedes it: when the older call finally lands, its result is discarded
// rather than overwriting the newer one. There is no dedup and no queue;
// every Submit starts a call.
type Dispatcher struct {
	analyzer *Analyzer
	results  chan Result

	mu       sync.Mutex
	current  uuid.UUID
	latest   *Result
	inFlight int
}

// NewDispatcher wraps an Analyzer.
func NewDispatcher(analyzer *Analyzer) *Dispatcher {
	return &Dispatcher{
		analyzer: analyzer,
		results:  make(chan Result, resultBuffer),
	}
}

// Submit starts one analysis for rec and returns its request ID. The record
// is captured at submission, so later store eviction cannot change what gets
// reviewed.
func (d *Dispatcher) Submit(ctx context.Context, rec telemetry.PacketRecord) uuid.UUID {
	id := uuid.New()

	d.mu.Lock()
	d.current = id
	d.latest = nil
	d.inFlight++
	d.mu.Unlock()

	go func() {
		text, err := d.analyzer.Analyze(ctx, rec)
		d.complete(Result{ID: id, Seq: rec.Seq, Text: text, Err: err})
	}()
	return id
}

func (d *Dispatcher) complete(r Result) {
	d.mu.Lock()
	d.inFlight--
	stale := r.ID != d.current
	if !stale {
		d.latest = &r
		select {
		case d.results <- r:
		default:
		}
	}
	d.mu.Unlock()

	if stale {
		monitoring.Logf("Analysis result for packet %d discarded: request %s superseded", r.Seq, r.ID)
	}
}

// Latest returns the newest request's result. ok is false before the first
// submission and while the newest request is still in flight.
func (d *Dispatcher) Latest() (Result, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.latest == nil {
		return Result{}, false
	}
	return *d.latest, true
}

// Current returns the newest request ID, uuid.Nil before the first
// submission.
func (d *Dispatcher) Current() uuid.UUID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// InFlight reports how many submitted analyses have not completed yet.
func (d *Dispatcher) InFlight() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.inFlight
}

// Results exposes completed, non-superseded analyses in completion order.
func (d *Dispatcher) Results() <-chan Result {
	return d.results
}
