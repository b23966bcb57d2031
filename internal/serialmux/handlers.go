package serialmux

import (
	"sync"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
)

// consoleHistoryLimit bounds the retained out-of-band lines; the sensor
// boards print a handful of lines at boot and one ack per command, so a small
// window is plenty for the debug console view.
const consoleHistoryLimit = 50

var (
	consoleMu      sync.Mutex
	consoleHistory []string
)

// recordConsole appends a line to the retained out-of-band history, trimming
// the oldest entries beyond the limit.
func recordConsole(line string) {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	consoleHistory = append(consoleHistory, line)
	if len(consoleHistory) > consoleHistoryLimit {
		consoleHistory = consoleHistory[len(consoleHistory)-consoleHistoryLimit:]
	}
}

// ConsoleHistory returns a copy of the retained out-of-band lines, oldest
// first. It backs the /debug/device-console admin route and is exported so
// tests can inspect it.
func ConsoleHistory() []string {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	out := make([]string, len(consoleHistory))
	copy(out, consoleHistory)
	return out
}

// ResetConsoleHistory clears the retained out-of-band lines.
func ResetConsoleHistory() {
	consoleMu.Lock()
	defer consoleMu.Unlock()
	consoleHistory = nil
}

// HandleDeviceLine routes a line from a subscribed channel. Sample lines are
// left alone (the acquisition loop owns parsing); acknowledgements and
// console output are logged under the pipeline name and retained for the
// debug console view. Returns the classified event type so callers can branch
// on it.
func HandleDeviceLine(pipeline, line string) string {
	eventType := ClassifyLine(line)
	switch eventType {
	case EventTypeSample:
		// handled by the acquisition loop's own subscription
	case EventTypeAck:
		recordConsole(line)
		monitoring.Logf("%s device ack: %s", pipeline, line)
	default:
		recordConsole(line)
		monitoring.Logf("%s device console: %s", pipeline, line)
	}
	return eventType
}
