//go:build !pcap
// +build !pcap

package capture

import (
	"errors"
	"time"
)

// DefaultBlockInterval is how long a live capture blocks waiting for traffic
// before surfacing ErrReadTimeout.
const DefaultBlockInterval = time.Second

var errPCAPDisabled = errors.New("PCAP support not enabled: rebuild with -tags=pcap to enable packet capture")

// LivePacketReader is a stub implementation when PCAP support is disabled.
// Build with -tags=pcap to enable live capture.
type LivePacketReader struct{}

func NewLivePacketReader() *LivePacketReader { return &LivePacketReader{} }

func (r *LivePacketReader) Open(source string) error         { return errPCAPDisabled }
func (r *LivePacketReader) SetBPFFilter(filter string) error { return errPCAPDisabled }
func (r *LivePacketReader) NextPacket() (*RawPacket, error)  { return nil, errPCAPDisabled }
func (r *LivePacketReader) Close() error                     { return nil }
func (r *LivePacketReader) LinkType() int                    { return 0 }

// OfflinePacketReader is a stub implementation when PCAP support is disabled.
// Build with -tags=pcap to enable replay from capture files.
type OfflinePacketReader struct{}

func (r *OfflinePacketReader) Open(source string) error         { return errPCAPDisabled }
func (r *OfflinePacketReader) SetBPFFilter(filter string) error { return errPCAPDisabled }
func (r *OfflinePacketReader) NextPacket() (*RawPacket, error)  { return nil, errPCAPDisabled }
func (r *OfflinePacketReader) Close() error                     { return nil }
func (r *OfflinePacketReader) LinkType() int                    { return 0 }

// LivePacketReaderFactory builds live capture readers.
type LivePacketReaderFactory struct{}

func (LivePacketReaderFactory) NewReader() PacketReader { return NewLivePacketReader() }

// OfflinePacketReaderFactory builds replay readers.
type OfflinePacketReaderFactory struct{}

func (OfflinePacketReaderFactory) NewReader() PacketReader { return &OfflinePacketReader{} }
