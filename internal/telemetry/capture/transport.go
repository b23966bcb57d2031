// Package capture runs the acquisition side of a pipeline: a Transport
// yields raw units (serial lines or captured frames), the Loop parses and
// stamps them into a store, and CaptureStats keeps the rollup counters. One
// loop owns one transport; everything downstream reads store snapshots.
package capture

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/sensor.watch/internal/serialmux"
	"github.com/banshee-data/sensor.watch/internal/timeutil"
)

// DefaultReadTimeout bounds a single transport read. The loop re-checks
// cancellation at this cadence, which also bounds how long Stop can block.
const DefaultReadTimeout = time.Second

// ErrReadTimeout reports a bounded read that yielded nothing. It is a
// scheduling point, not a failure: the loop re-checks cancellation and reads
// again.
var ErrReadTimeout = errors.New("capture: read timeout")

// TransportError wraps a session-fatal transport failure. It stops the loop
// that saw it but never crashes the process.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Transport is a bounded-read source of raw units. Read returns one unit (a
// serial line, one captured frame) or ErrReadTimeout when nothing arrived
// within the bound. Any other error ends the acquisition session.
type Transport interface {
	Read(timeout time.Duration) ([]byte, error)
	Close() error
}

// SerialTransport adapts a serialmux subscription to the Transport
// interface. The mux keeps exclusive ownership of the port handle; the
// transport only consumes the fan-out, so commands and the debug tail keep
// working while a loop runs.
type SerialTransport struct {
	mux   serialmux.SerialMuxInterface
	id    string
	lines chan string
	clock timeutil.Clock
}

// NewSerialTransport subscribes to the mux. Close unsubscribes; it never
// closes the mux itself.
func NewSerialTransport(mux serialmux.SerialMuxInterface, clock timeutil.Clock) *SerialTransport {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	id, lines := mux.Subscribe()
	return &SerialTransport{mux: mux, id: id, lines: lines, clock: clock}
}

// Read waits up to timeout for the next line. A closed subscription channel
// means the mux shut down underneath us, which ends the session.
func (t *SerialTransport) Read(timeout time.Duration) ([]byte, error) {
	timer := t.clock.NewTimer(timeout)
	defer timer.Stop()
	select {
	case line, ok := <-t.lines:
		if !ok {
			return nil, &TransportError{Op: "read", Err: errors.New("serial subscription closed")}
		}
		return []byte(line), nil
	case <-timer.C():
		return nil, ErrReadTimeout
	}
}

func (t *SerialTransport) Close() error {
	t.mux.Unsubscribe(t.id)
	return nil
}
