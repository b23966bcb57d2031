package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"
	"time"
)

// RawPacket is one captured frame with its capture timestamp.
type RawPacket struct {
	Data      []byte
	Timestamp time.Time
}

// PacketReader abstracts packet capture for testing. The live implementation
// wraps libpcap behind the pcap build tag; tests use MockPacketReader.
type PacketReader interface {
	// Open starts capture on the named source: an interface name for live
	// capture, a file path for replay.
	Open(source string) error

	// SetBPFFilter restricts capture to packets matching the filter.
	SetBPFFilter(filter string) error

	// NextPacket returns the next captured frame. It returns ErrReadTimeout
	// when no packet arrived within the reader's block interval, and io.EOF
	// when a replay file is exhausted.
	NextPacket() (*RawPacket, error)

	// Close releases the capture handle.
	Close() error

	// LinkType returns the data link type of the open source.
	LinkType() int
}

// PacketReaderFactory creates PacketReader instances, so daemons can swap in
// mocks without touching the acquisition path.
type PacketReaderFactory interface {
	NewReader() PacketReader
}

// MockPacketReader is a PacketReader serving pre-loaded frames for tests.
type MockPacketReader struct {
	mu            sync.Mutex
	Packets       []RawPacket
	ReadIndex     int
	OpenError     error
	FilterError   error
	OpenedSource  string
	AppliedFilter string
	Closed        bool
	MockLinkType  int
}

func (m *MockPacketReader) Open(source string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.OpenError != nil {
		return m.OpenError
	}
	m.OpenedSource = source
	m.Closed = false
	return nil
}

func (m *MockPacketReader) SetBPFFilter(filter string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FilterError != nil {
		return m.FilterError
	}
	m.AppliedFilter = filter
	return nil
}

func (m *MockPacketReader) NextPacket() (*RawPacket, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Closed {
		return nil, errors.New("reader closed")
	}
	if m.ReadIndex >= len(m.Packets) {
		return nil, io.EOF
	}
	pkt := m.Packets[m.ReadIndex]
	m.ReadIndex++
	return &pkt, nil
}

func (m *MockPacketReader) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

func (m *MockPacketReader) LinkType() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.MockLinkType
}

// AddPacket appends a frame to the replay queue.
func (m *MockPacketReader) AddPacket(data []byte, timestamp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Packets = append(m.Packets, RawPacket{Data: data, Timestamp: timestamp})
}

// Reset rewinds the replay queue so the same frames can be served again.
func (m *MockPacketReader) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ReadIndex = 0
	m.Closed = false
}

// MockPacketReaderFactory returns a fixed reader instance.
type MockPacketReaderFactory struct {
	Reader *MockPacketReader
}

func (f *MockPacketReaderFactory) NewReader() PacketReader {
	if f.Reader == nil {
		f.Reader = &MockPacketReader{}
	}
	return f.Reader
}

// PacketTransport adapts an opened PacketReader to the Transport interface.
// The reader's own block interval bounds NextPacket, so the timeout argument
// to Read is advisory here; readers surface ErrReadTimeout themselves.
type PacketTransport struct {
	reader PacketReader
}

// NewPacketTransport wraps an already-opened reader. Close closes the
// reader.
func NewPacketTransport(reader PacketReader) *PacketTransport {
	return &PacketTransport{reader: reader}
}

func (t *PacketTransport) Read(timeout time.Duration) ([]byte, error) {
	pkt, err := t.reader.NextPacket()
	switch {
	case errors.Is(err, ErrReadTimeout):
		return nil, ErrReadTimeout
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case err != nil:
		return nil, &TransportError{Op: "next packet", Err: err}
	case pkt == nil:
		// Some readers signal exhaustion with a nil packet.
		return nil, io.EOF
	}
	return pkt.Data, nil
}

func (t *PacketTransport) Close() error {
	if err := t.reader.Close(); err != nil {
		return fmt.Errorf("close packet reader: %w", err)
	}
	return nil
}
