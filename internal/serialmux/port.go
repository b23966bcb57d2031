package serialmux

import (
	"io"
	"time"
)

// SerialPorter is what the mux needs from a port: bytes in, bytes out,
// close. Keeping it this small lets every test run against an in-memory
// port instead of hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}

// TimeoutSerialPorter is implemented by ports whose reads can be bounded.
// The mux checks for it so a wedged device cannot pin the monitor loop.
type TimeoutSerialPorter interface {
	SerialPorter
	SetReadTimeout(timeout time.Duration) error
}

// SerialPortFactory opens ports on demand, so callers that reconnect can
// inject a fake opener.
type SerialPortFactory interface {
	Open(path string, mode *SerialPortMode) (SerialPorter, error)
}

// SerialPortMode carries the line settings handed to a factory Open.
type SerialPortMode struct {
	BaudRate int
	DataBits int
	Parity   Parity
	StopBits StopBits
}

// Parity selects the parity bit scheme.
type Parity int

const (
	NoParity Parity = iota
	OddParity
	EvenParity
)

// StopBits selects the number of stop bits.
type StopBits int

const (
	OneStopBit StopBits = iota
	TwoStopBits
)

// DefaultSerialPortMode is 115200 8N1, the rate the shipped sensor
// firmwares stream at.
func DefaultSerialPortMode() *SerialPortMode {
	return &SerialPortMode{
		BaudRate: 115200,
		DataBits: 8,
		Parity:   NoParity,
		StopBits: OneStopBit,
	}
}
