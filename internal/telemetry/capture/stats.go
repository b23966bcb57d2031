package capture

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
	"github.com/banshee-data/sensor.watch/internal/timeutil"
)

// DefaultStatsInterval is how often StartLogging emits a rollup.
const DefaultStatsInterval = 60 * time.Second

// CaptureStats tracks acquisition counters with thread-safe operations. One
// instance per loop; the state endpoint reads Snapshot and the periodic
// logger drains GetAndReset.
type CaptureStats struct {
	mu          sync.Mutex
	clock       timeutil.Clock
	unitsRead   int64
	bytesRead   int64
	records     int64
	skips       int64
	parseErrors int64
	lastError   string
	lastErrorAt time.Time
	lastReset   time.Time
}

// StatsSnapshot is a point-in-time copy of the counters. LastError carries
// the most recent parse or transport error and survives interval resets.
type StatsSnapshot struct {
	UnitsRead   int64     `json:"units_read"`
	BytesRead   int64     `json:"bytes_read"`
	Records     int64     `json:"records"`
	Skips       int64     `json:"skips"`
	ParseErrors int64     `json:"parse_errors"`
	LastError   string    `json:"last_error,omitempty"`
	LastErrorAt time.Time `json:"last_error_at"`
}

// NewCaptureStats creates a stats tracker. A nil clock means wall time.
func NewCaptureStats(clock timeutil.Clock) *CaptureStats {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &CaptureStats{clock: clock, lastReset: clock.Now()}
}

// AddRead records one raw unit of the given size arriving from the
// transport.
func (cs *CaptureStats) AddRead(bytes int) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.unitsRead++
	cs.bytesRead += int64(bytes)
}

// AddRecord records one unit accepted by the parser.
func (cs *CaptureStats) AddRecord() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.records++
}

// AddSkip records one unit the parser declined (out-of-band line, non-IP
// frame).
func (cs *CaptureStats) AddSkip() {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.skips++
}

// AddParseError records one malformed unit.
func (cs *CaptureStats) AddParseError(err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.parseErrors++
	cs.lastError = err.Error()
	cs.lastErrorAt = cs.clock.Now()
}

// SetLastError records a transport failure without counting it as a parse
// error.
func (cs *CaptureStats) SetLastError(err error) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	cs.lastError = err.Error()
	cs.lastErrorAt = cs.clock.Now()
}

// Snapshot returns the current counters without resetting them.
func (cs *CaptureStats) Snapshot() StatsSnapshot {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	return cs.snapshotLocked()
}

func (cs *CaptureStats) snapshotLocked() StatsSnapshot {
	return StatsSnapshot{
		UnitsRead:   cs.unitsRead,
		BytesRead:   cs.bytesRead,
		Records:     cs.records,
		Skips:       cs.skips,
		ParseErrors: cs.parseErrors,
		LastError:   cs.lastError,
		LastErrorAt: cs.lastErrorAt,
	}
}

// GetAndReset returns the interval counters and the elapsed interval, then
// zeroes the counters. The last error is deliberately retained: it reports
// the most recent failure, not an interval count.
func (cs *CaptureStats) GetAndReset() (StatsSnapshot, time.Duration) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	snap := cs.snapshotLocked()
	duration := cs.clock.Since(cs.lastReset)

	cs.unitsRead = 0
	cs.bytesRead = 0
	cs.records = 0
	cs.skips = 0
	cs.parseErrors = 0
	cs.lastReset = cs.clock.Now()

	return snap, duration
}

// LogStats logs a rate rollup and resets the interval counters. Stays quiet
// when nothing moved so an idle daemon does not fill the log.
func (cs *CaptureStats) LogStats(pipeline string) {
	snap, duration := cs.GetAndReset()
	if snap.UnitsRead == 0 && snap.ParseErrors == 0 {
		return
	}

	secs := duration.Seconds()
	if secs <= 0 {
		secs = 1
	}
	unitsPerSec := float64(snap.UnitsRead) / secs
	kbPerSec := float64(snap.BytesRead) / secs / 1024

	msg := fmt.Sprintf("%s stats (/sec): %.1f units, %.2f KB, %s records",
		pipeline, unitsPerSec, kbPerSec, FormatWithCommas(snap.Records))
	if snap.Skips > 0 {
		msg += fmt.Sprintf(", %d skipped", snap.Skips)
	}
	if snap.ParseErrors > 0 {
		msg += fmt.Sprintf(", %d parse errors (last: %s)", snap.ParseErrors, snap.LastError)
	}
	monitoring.Logf("%s", msg)
}

// StartLogging emits a rollup for the named pipeline at the given interval
// until ctx is cancelled.
func (cs *CaptureStats) StartLogging(ctx context.Context, pipeline string, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultStatsInterval
	}
	go func() {
		ticker := cs.clock.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				cs.LogStats(pipeline)
			}
		}
	}()
}

// FormatWithCommas renders n with thousands separators for log readability.
func FormatWithCommas(n int64) string {
	str := fmt.Sprintf("%d", n)
	if n < 0 {
		return "-" + FormatWithCommas(-n)
	}
	if len(str) <= 3 {
		return str
	}

	var result string
	for i, char := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(char)
	}
	return result
}
