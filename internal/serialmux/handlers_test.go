package serialmux

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
)

func TestClassifyLine(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{"motion sample", "DATA:0.12,-0.34,9.81,0.01,0.02,0.03,1.5,-2.5", EventTypeSample},
		{"range sample", "DATA:120,45,300,80", EventTypeSample},
		{"sample with garbage payload", "DATA:not,really,numbers", EventTypeSample},
		{"calibration ack", "Calibration complete", EventTypeAck},
		{"bare ok", "OK", EventTypeAck},
		{"ok with whitespace", "  OK  ", EventTypeAck},
		{"boot banner", "MPU6050 initialised", EventTypeConsole},
		{"warning", "WARN: sensor saturated", EventTypeConsole},
		{"empty line", "", EventTypeConsole},
		{"sentinel mid-line is not a sample", "noise DATA:1,2,3,4", EventTypeConsole},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyLine(tc.line); got != tc.want {
				t.Errorf("ClassifyLine(%q) = %q, want %q", tc.line, got, tc.want)
			}
		})
	}
}

func TestHandleDeviceLine_SampleIsQuiet(t *testing.T) {
	ResetConsoleHistory()

	var mu sync.Mutex
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		logged = append(logged, fmt.Sprintf(format, v...))
		mu.Unlock()
	})
	defer monitoring.SetLogger(nil)

	got := HandleDeviceLine("imu", "DATA:1.0,2.0,3.0,4.0,5.0,6.0,7.0,8.0")
	if got != EventTypeSample {
		t.Errorf("HandleDeviceLine = %q, want %q", got, EventTypeSample)
	}

	// Sample lines are the acquisition loop's business: no log, no history
	mu.Lock()
	if len(logged) != 0 {
		t.Errorf("Sample line should not be logged, got %v", logged)
	}
	mu.Unlock()
	if len(ConsoleHistory()) != 0 {
		t.Errorf("Sample line should not be retained, got %v", ConsoleHistory())
	}
}

func TestHandleDeviceLine_AckLoggedAndRetained(t *testing.T) {
	ResetConsoleHistory()

	var mu sync.Mutex
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		logged = append(logged, fmt.Sprintf(format, v...))
		mu.Unlock()
	})
	defer monitoring.SetLogger(nil)

	got := HandleDeviceLine("imu", "Calibration complete")
	if got != EventTypeAck {
		t.Errorf("HandleDeviceLine = %q, want %q", got, EventTypeAck)
	}

	mu.Lock()
	if len(logged) != 1 || !strings.Contains(logged[0], "imu device ack") {
		t.Errorf("Expected ack log entry, got %v", logged)
	}
	mu.Unlock()

	history := ConsoleHistory()
	if len(history) != 1 || history[0] != "Calibration complete" {
		t.Errorf("ConsoleHistory = %v", history)
	}
}

func TestHandleDeviceLine_ConsoleLogged(t *testing.T) {
	ResetConsoleHistory()

	var mu sync.Mutex
	var logged []string
	monitoring.SetLogger(func(format string, v ...interface{}) {
		mu.Lock()
		logged = append(logged, fmt.Sprintf(format, v...))
		mu.Unlock()
	})
	defer monitoring.SetLogger(nil)

	got := HandleDeviceLine("sonar", "HC-SR04 array ready")
	if got != EventTypeConsole {
		t.Errorf("HandleDeviceLine = %q, want %q", got, EventTypeConsole)
	}

	mu.Lock()
	if len(logged) != 1 || !strings.Contains(logged[0], "sonar device console") {
		t.Errorf("Expected console log entry, got %v", logged)
	}
	mu.Unlock()
}

func TestConsoleHistory_Trimming(t *testing.T) {
	ResetConsoleHistory()
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(nil)

	for i := 0; i < consoleHistoryLimit+10; i++ {
		HandleDeviceLine("imu", fmt.Sprintf("banner %d", i))
	}

	history := ConsoleHistory()
	if len(history) != consoleHistoryLimit {
		t.Fatalf("ConsoleHistory length = %d, want %d", len(history), consoleHistoryLimit)
	}
	// Oldest entries are trimmed; the window ends at the newest line
	if history[0] != "banner 10" {
		t.Errorf("history[0] = %q, want %q", history[0], "banner 10")
	}
	if history[len(history)-1] != fmt.Sprintf("banner %d", consoleHistoryLimit+9) {
		t.Errorf("history[last] = %q", history[len(history)-1])
	}
}

func TestConsoleHistory_ReturnsCopy(t *testing.T) {
	ResetConsoleHistory()
	monitoring.SetLogger(nil)
	defer monitoring.SetLogger(nil)

	HandleDeviceLine("imu", "one")
	history := ConsoleHistory()
	history[0] = "mutated"

	if got := ConsoleHistory()[0]; got != "one" {
		t.Errorf("internal history mutated through returned slice: %q", got)
	}
}
