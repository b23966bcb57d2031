package capture

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/gopacket"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
	"github.com/banshee-data/sensor.watch/internal/telemetry"
	"github.com/banshee-data/sensor.watch/internal/timeutil"
)

// State reports what an acquisition loop is doing.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateStopping
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// ParseFunc turns one raw unit into a record. seq is the sequence number the
// record gets if accepted and now is the clock reading at arrival. Return
// ok=false to skip the unit, a non-nil error to count it malformed; either
// way the unit is dropped whole and the loop keeps reading.
type ParseFunc[T any] func(data []byte, seq uint64, now time.Time) (T, bool, error)

// Config wires a Loop.
type Config[T any] struct {
	// Transport yields raw units. Required. The loop never closes it; the
	// owner does, after the final Stop.
	Transport Transport

	// Parse turns units into records. Required.
	Parse ParseFunc[T]

	// Sink receives each accepted record, called from the loop goroutine.
	// Required.
	Sink func(T)

	// Notify is signalled after each accepted record, coalesced so a slow
	// consumer sees at most one pending signal. Created with capacity 1
	// when nil.
	Notify chan struct{}

	// Stats receives the counters. Created when nil.
	Stats *CaptureStats

	// Clock stamps records and bounds reads. Wall clock when nil.
	Clock timeutil.Clock

	// ReadTimeout bounds a single transport read, which in turn bounds how
	// long Stop can block. DefaultReadTimeout when zero.
	ReadTimeout time.Duration
}

// Loop drives one acquisition session: read, parse, stamp, sink, notify.
// Start and Stop are idempotent and safe from any goroutine; parsing and
// sinking happen on the loop's own goroutine.
type Loop[T any] struct {
	cfg Config[T]
	seq atomic.Uint64

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
	done   chan struct{}

	errCh chan error
}

// NewLoop creates a loop with defaults filled in. The loop is idle until
// Start.
func NewLoop[T any](cfg Config[T]) *Loop[T] {
	if cfg.Clock == nil {
		cfg.Clock = timeutil.RealClock{}
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Notify == nil {
		cfg.Notify = make(chan struct{}, 1)
	}
	if cfg.Stats == nil {
		cfg.Stats = NewCaptureStats(cfg.Clock)
	}
	return &Loop[T]{
		cfg:   cfg,
		errCh: make(chan error, 1),
	}
}

// Start begins an acquisition session. Starting a loop that is already
// running is a no-op, so repeated start requests cannot stack goroutines.
func (l *Loop[T]) Start(ctx context.Context) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.state != StateIdle {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	l.state = StateRunning
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.run(runCtx, l.done)
}

// Stop ends the session and waits for the loop goroutine to exit. The wait
// is bounded by the read timeout because every blocking read times out and
// re-checks cancellation. Stopping an idle loop is a no-op.
func (l *Loop[T]) Stop() {
	l.mu.Lock()
	if l.state != StateRunning {
		// Another Stop may already be draining the session; wait on the
		// same done channel so both callers return after it exits.
		done := l.done
		l.mu.Unlock()
		if done != nil {
			<-done
		}
		return
	}
	l.state = StateStopping
	cancel := l.cancel
	done := l.done
	l.mu.Unlock()

	cancel()
	<-done
}

// State reports the loop's current state.
func (l *Loop[T]) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Seq returns the count of records accepted across all sessions. Sequence
// numbers keep climbing over stop/start cycles.
func (l *Loop[T]) Seq() uint64 { return l.seq.Load() }

// Notify returns the coalesced dirty signal for the render scheduler.
func (l *Loop[T]) Notify() <-chan struct{} { return l.cfg.Notify }

// Stats returns the loop's counters.
func (l *Loop[T]) Stats() *CaptureStats { return l.cfg.Stats }

// Err exposes the session-fatal transport error, capacity one. A loop that
// stops because its transport died parks the error here; Stop and clean EOF
// leave it empty.
func (l *Loop[T]) Err() <-chan error { return l.errCh }

func (l *Loop[T]) run(ctx context.Context, done chan struct{}) {
	defer func() {
		l.mu.Lock()
		l.state = StateIdle
		l.cancel = nil
		l.mu.Unlock()
		close(done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		data, err := l.cfg.Transport.Read(l.cfg.ReadTimeout)
		switch {
		case errors.Is(err, ErrReadTimeout):
			continue
		case errors.Is(err, io.EOF):
			monitoring.Logf("Capture source exhausted after %d records", l.seq.Load())
			return
		case err != nil:
			l.reportError(err)
			return
		}

		l.cfg.Stats.AddRead(len(data))

		rec, ok, perr := l.cfg.Parse(data, l.seq.Load()+1, l.cfg.Clock.Now())
		if perr != nil {
			l.cfg.Stats.AddParseError(perr)
			continue
		}
		if !ok {
			l.cfg.Stats.AddSkip()
			continue
		}

		l.seq.Add(1)
		l.cfg.Sink(rec)
		l.cfg.Stats.AddRecord()

		select {
		case l.cfg.Notify <- struct{}{}:
		default:
		}
	}
}

func (l *Loop[T]) reportError(err error) {
	var terr *TransportError
	if !errors.As(err, &terr) {
		err = &TransportError{Op: "read", Err: err}
	}
	l.cfg.Stats.SetLastError(err)
	monitoring.Logf("Capture transport failed: %v", err)
	select {
	case l.errCh <- err:
	default:
	}
}

// LineParser adapts a schema's lenient line parse to the loop. Out-of-band
// lines skip; accepted records get the loop's sequence and timestamp.
func LineParser(schema telemetry.Schema) ParseFunc[telemetry.Record] {
	return func(data []byte, seq uint64, now time.Time) (telemetry.Record, bool, error) {
		rec, ok, err := schema.ParseLine(string(data))
		if err != nil || !ok {
			return telemetry.Record{}, false, err
		}
		rec.Seq = seq
		rec.Time = now
		return rec, true, nil
	}
}

// PacketParser decodes raw frames with the given link-layer decoder and
// reduces them to packet records. Pass layers.LinkTypeEthernet for capture
// on ordinary interfaces.
func PacketParser(link gopacket.Decoder) ParseFunc[telemetry.PacketRecord] {
	return func(data []byte, seq uint64, now time.Time) (telemetry.PacketRecord, bool, error) {
		pkt := gopacket.NewPacket(data, link, gopacket.Default)
		rec, ok, err := telemetry.ParsePacket(pkt)
		if err != nil || !ok {
			return telemetry.PacketRecord{}, false, err
		}
		rec.Seq = seq
		rec.Time = now
		return rec, true, nil
	}
}
