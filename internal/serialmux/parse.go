package serialmux

import "strings"

const (
	EventTypeSample  = "sample"
	EventTypeAck     = "ack"
	EventTypeConsole = "console"
)

// ClassifyLine inspects a line from the device and returns a simple event
// type token. Sample lines carry the DATA: sentinel; acknowledgements are the
// short confirmations the firmwares print after a command ("OK", "Calibration
// complete"). Everything else is console output (boot banners, warnings). The
// classification is intentionally conservative: when in doubt a line is
// console output, which is logged but never parsed.
func ClassifyLine(line string) string {
	if strings.HasPrefix(line, "DATA:") {
		return EventTypeSample
	}
	trimmed := strings.TrimSpace(line)
	if trimmed == "OK" || strings.Contains(trimmed, "complete") {
		return EventTypeAck
	}
	return EventTypeConsole
}
