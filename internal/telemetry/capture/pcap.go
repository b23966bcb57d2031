//go:build pcap
// +build pcap

package capture

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket/pcap"
)

// DefaultBlockInterval is how long a live capture blocks waiting for traffic
// before surfacing ErrReadTimeout.
const DefaultBlockInterval = time.Second

const defaultSnaplen = 65535

// LivePacketReader captures frames from a network interface via libpcap.
// Only available when built with the pcap tag.
type LivePacketReader struct {
	handle        *pcap.Handle
	snaplen       int32
	promiscuous   bool
	blockInterval time.Duration
}

func NewLivePacketReader() *LivePacketReader {
	return &LivePacketReader{
		snaplen:       defaultSnaplen,
		promiscuous:   true,
		blockInterval: DefaultBlockInterval,
	}
}

func (r *LivePacketReader) Open(source string) error {
	handle, err := pcap.OpenLive(source, r.snaplen, r.promiscuous, r.blockInterval)
	if err != nil {
		return fmt.Errorf("failed to open live capture on %s: %w", source, err)
	}
	r.handle = handle
	return nil
}

func (r *LivePacketReader) SetBPFFilter(filter string) error {
	if r.handle == nil {
		return errors.New("capture not open")
	}
	if err := r.handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filter, err)
	}
	return nil
}

func (r *LivePacketReader) NextPacket() (*RawPacket, error) {
	if r.handle == nil {
		return nil, errors.New("capture not open")
	}
	data, ci, err := r.handle.ReadPacketData()
	switch {
	case errors.Is(err, pcap.NextErrorTimeoutExpired):
		return nil, ErrReadTimeout
	case err != nil:
		return nil, err
	}
	return &RawPacket{Data: data, Timestamp: ci.Timestamp}, nil
}

func (r *LivePacketReader) Close() error {
	if r.handle != nil {
		r.handle.Close()
		r.handle = nil
	}
	return nil
}

func (r *LivePacketReader) LinkType() int {
	if r.handle == nil {
		return 0
	}
	return int(r.handle.LinkType())
}

// OfflinePacketReader replays frames from a capture file. NextPacket returns
// io.EOF when the file is exhausted.
type OfflinePacketReader struct {
	handle *pcap.Handle
}

func (r *OfflinePacketReader) Open(source string) error {
	handle, err := pcap.OpenOffline(source)
	if err != nil {
		return fmt.Errorf("failed to open PCAP file %s: %w", source, err)
	}
	r.handle = handle
	return nil
}

func (r *OfflinePacketReader) SetBPFFilter(filter string) error {
	if r.handle == nil {
		return errors.New("capture not open")
	}
	if err := r.handle.SetBPFFilter(filter); err != nil {
		return fmt.Errorf("failed to set BPF filter '%s': %w", filter, err)
	}
	return nil
}

func (r *OfflinePacketReader) NextPacket() (*RawPacket, error) {
	if r.handle == nil {
		return nil, errors.New("capture not open")
	}
	data, ci, err := r.handle.ReadPacketData()
	switch {
	case errors.Is(err, io.EOF):
		return nil, io.EOF
	case err != nil:
		return nil, err
	}
	return &RawPacket{Data: data, Timestamp: ci.Timestamp}, nil
}

func (r *OfflinePacketReader) Close() error {
	if r.handle != nil {
		r.handle.Close()
		r.handle = nil
	}
	return nil
}

func (r *OfflinePacketReader) LinkType() int {
	if r.handle == nil {
		return 0
	}
	return int(r.handle.LinkType())
}

// LivePacketReaderFactory builds live capture readers.
type LivePacketReaderFactory struct{}

func (LivePacketReaderFactory) NewReader() PacketReader { return NewLivePacketReader() }

// OfflinePacketReaderFactory builds replay readers.
type OfflinePacketReaderFactory struct{}

func (OfflinePacketReaderFactory) NewReader() PacketReader { return &OfflinePacketReader{} }
