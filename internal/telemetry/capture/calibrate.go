package capture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/banshee-data/sensor.watch/internal/monitoring"
	"github.com/banshee-data/sensor.watch/internal/serialmux"
	"github.com/banshee-data/sensor.watch/internal/timeutil"
)

const (
	// CalibrateCommand is the device command that starts a sensor
	// recalibration cycle.
	CalibrateCommand = "CALIBRATE"

	// CalibrateAck is the substring the device prints when recalibration
	// finishes. Data lines keep flowing while it runs, so the ack is
	// matched anywhere in the stream.
	CalibrateAck = "Calibration complete"

	// DefaultCalibrateTimeout bounds how long Calibrate waits for the ack.
	DefaultCalibrateTimeout = 10 * time.Second
)

// Calibrate sends the calibration command and blocks until the device
// acknowledges, the timeout passes, or ctx is cancelled. It subscribes
// before sending so the ack cannot slip past between command and listen. An
// empty phrase means CalibrateAck; a zero timeout means
// DefaultCalibrateTimeout.
func Calibrate(ctx context.Context, mux serialmux.SerialMuxInterface, phrase string, timeout time.Duration, clock timeutil.Clock) error {
	if phrase == "" {
		phrase = CalibrateAck
	}
	if timeout <= 0 {
		timeout = DefaultCalibrateTimeout
	}
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	id, lines := mux.Subscribe()
	defer mux.Unsubscribe(id)

	if err := mux.SendCommand(CalibrateCommand); err != nil {
		return fmt.Errorf("failed to send calibrate command: %w", err)
	}
	monitoring.Logf("Calibration started, waiting up to %s for %q", timeout, phrase)

	timer := clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-lines:
			if !ok {
				return &TransportError{Op: "calibrate", Err: errors.New("serial subscription closed")}
			}
			if strings.Contains(line, phrase) {
				monitoring.Logf("Calibration complete")
				return nil
			}
		case <-timer.C():
			return &TransportError{Op: "calibrate", Err: fmt.Errorf("no %q within %s", phrase, timeout)}
		}
	}
}
