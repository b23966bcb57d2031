package capture

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
	"github.com/banshee-data/sensor.watch/internal/timeutil"
)

func TestCaptureStats_Counters(t *testing.T) {
	stats := NewCaptureStats(nil)

	stats.AddRead(40)
	stats.AddRead(60)
	stats.AddRecord()
	stats.AddSkip()
	stats.AddParseError(errors.New("bad line"))

	snap := stats.Snapshot()
	if snap.UnitsRead != 2 {
		t.Errorf("expected 2 units, got %d", snap.UnitsRead)
	}
	if snap.BytesRead != 100 {
		t.Errorf("expected 100 bytes, got %d", snap.BytesRead)
	}
	if snap.Records != 1 {
		t.Errorf("expected 1 record, got %d", snap.Records)
	}
	if snap.Skips != 1 {
		t.Errorf("expected 1 skip, got %d", snap.Skips)
	}
	if snap.ParseErrors != 1 {
		t.Errorf("expected 1 parse error, got %d", snap.ParseErrors)
	}
	if snap.LastError != "bad line" {
		t.Errorf("expected last error recorded, got %q", snap.LastError)
	}

	// Snapshot does not reset.
	if again := stats.Snapshot(); again.UnitsRead != 2 {
		t.Errorf("expected snapshot to leave counters intact, got %d units", again.UnitsRead)
	}
}

func TestCaptureStats_GetAndReset(t *testing.T) {
	base := time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(base)
	stats := NewCaptureStats(clock)

	stats.AddRead(100)
	stats.AddRecord()
	stats.AddParseError(errors.New("bad line"))
	clock.Advance(5 * time.Second)

	snap, duration := stats.GetAndReset()
	if duration != 5*time.Second {
		t.Errorf("expected 5s interval, got %v", duration)
	}
	if snap.UnitsRead != 1 || snap.Records != 1 || snap.ParseErrors != 1 {
		t.Errorf("unexpected interval counters: %+v", snap)
	}

	after := stats.Snapshot()
	if after.UnitsRead != 0 || after.Records != 0 || after.ParseErrors != 0 {
		t.Errorf("expected counters zeroed after reset: %+v", after)
	}
	// The last error is the most recent failure, not an interval count, so
	// it survives the reset.
	if after.LastError != "bad line" {
		t.Errorf("expected last error to survive reset, got %q", after.LastError)
	}
}

func TestCaptureStats_SetLastError(t *testing.T) {
	stats := NewCaptureStats(nil)
	stats.SetLastError(errors.New("transport read: port gone"))

	snap := stats.Snapshot()
	if snap.ParseErrors != 0 {
		t.Errorf("transport errors must not count as parse errors, got %d", snap.ParseErrors)
	}
	if !strings.Contains(snap.LastError, "port gone") {
		t.Errorf("expected last error recorded, got %q", snap.LastError)
	}
	if snap.LastErrorAt.IsZero() {
		t.Error("expected last error timestamp")
	}
}

func captureLog(t *testing.T) *[]string {
	t.Helper()
	var mu sync.Mutex
	var lines []string
	old := monitoring.Logf
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		defer mu.Unlock()
		lines = append(lines, fmt.Sprintf(format, v...))
	})
	t.Cleanup(func() { monitoring.SetLogger(old) })
	return &lines
}

func TestCaptureStats_LogStatsQuietWhenIdle(t *testing.T) {
	lines := captureLog(t)
	stats := NewCaptureStats(nil)

	stats.LogStats("imu")
	if len(*lines) != 0 {
		t.Fatalf("expected no log lines for idle stats, got %v", *lines)
	}
}

func TestCaptureStats_LogStatsReportsRates(t *testing.T) {
	lines := captureLog(t)

	base := time.Date(2024, 1, 31, 15, 45, 0, 0, time.UTC)
	clock := timeutil.NewMockClock(base)
	stats := NewCaptureStats(clock)

	for i := 0; i < 20; i++ {
		stats.AddRead(50)
		stats.AddRecord()
	}
	stats.AddSkip()
	stats.AddParseError(errors.New("bad line"))
	clock.Advance(10 * time.Second)

	stats.LogStats("imu")

	if len(*lines) != 1 {
		t.Fatalf("expected one log line, got %d", len(*lines))
	}
	msg := (*lines)[0]
	for _, want := range []string{"imu stats (/sec):", "2.0 units", "20 records", "1 skipped", "1 parse errors", "bad line"} {
		if !strings.Contains(msg, want) {
			t.Errorf("expected %q in log line %q", want, msg)
		}
	}

	// Interval counters drained; a second rollup with no traffic is quiet.
	stats.LogStats("imu")
	if len(*lines) != 1 {
		t.Errorf("expected rollup to reset counters, got extra line %v", (*lines)[1:])
	}
}

func TestFormatWithCommas(t *testing.T) {
	tests := []struct {
		n    int64
		want string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-1234, "-1,234"},
	}
	for _, tt := range tests {
		if got := FormatWithCommas(tt.n); got != tt.want {
			t.Errorf("FormatWithCommas(%d) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
