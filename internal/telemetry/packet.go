package telemetry

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Protocol is the three-way classification the packet list shows.
type Protocol string

const (
	ProtocolTCP   Protocol = "TCP"
	ProtocolUDP   Protocol = "UDP"
	ProtocolOther Protocol = "Other"
)

// TCPFlags carries the four flags the analyzer inspects. Zero-valued for
// anything that is not TCP.
type TCPFlags struct {
	SYN bool `json:"SYN"`
	ACK bool `json:"ACK"`
	FIN bool `json:"FIN"`
	RST bool `json:"RST"`
}

// Summary renders the set flags as a comma-joined list ("SYN, ACK"). Empty
// when none are set.
func (f TCPFlags) Summary() string {
	var set []string
	if f.SYN {
		set = append(set, "SYN")
	}
	if f.ACK {
		set = append(set, "ACK")
	}
	if f.FIN {
		set = append(set, "FIN")
	}
	if f.RST {
		set = append(set, "RST")
	}
	return strings.Join(set, ", ")
}

// PacketRecord is one captured IPv4 packet reduced to the columns the sniffer
// dashboard lists. Seq and Time are stamped by the acquisition loop.
type PacketRecord struct {
	Seq      uint64    `json:"seq"`
	Time     time.Time `json:"time"`
	SrcIP    string    `json:"src_ip"`
	DstIP    string    `json:"dst_ip"`
	SrcPort  int       `json:"src_port"`
	DstPort  int       `json:"dst_port"`
	Protocol Protocol  `json:"protocol"`
	Length   int       `json:"length"`
	Flags    TCPFlags  `json:"flags"`
	Info     string    `json:"info"`
}

// ParsePacket reduces a decoded packet to a PacketRecord. Packets without an
// IPv4 layer are not of interest: the bool result is false with no error. A
// packet that failed to decode far enough to expose IPv4 is reported as an
// error. Protocol ties break TCP before UDP before Other; an IP-only packet
// classifies as Other with empty ports and zero-valued flags.
func ParsePacket(pkt gopacket.Packet) (PacketRecord, bool, error) {
	ipLayer := pkt.Layer(layers.LayerTypeIPv4)
	if ipLayer == nil {
		if errLayer := pkt.ErrorLayer(); errLayer != nil {
			return PacketRecord{}, false, fmt.Errorf("malformed packet: %w", errLayer.Error())
		}
		return PacketRecord{}, false, nil
	}
	ip := ipLayer.(*layers.IPv4)

	rec := PacketRecord{
		SrcIP:    ip.SrcIP.String(),
		DstIP:    ip.DstIP.String(),
		Protocol: ProtocolOther,
		Length:   packetLength(pkt),
	}

	if tcpLayer := pkt.Layer(layers.LayerTypeTCP); tcpLayer != nil {
		tcp := tcpLayer.(*layers.TCP)
		rec.Protocol = ProtocolTCP
		rec.SrcPort = int(tcp.SrcPort)
		rec.DstPort = int(tcp.DstPort)
		rec.Flags = TCPFlags{SYN: tcp.SYN, ACK: tcp.ACK, FIN: tcp.FIN, RST: tcp.RST}
		rec.Info = fmt.Sprintf("Port: %d → %d | Flags: %s", rec.SrcPort, rec.DstPort, rec.Flags.Summary())
	} else if udpLayer := pkt.Layer(layers.LayerTypeUDP); udpLayer != nil {
		udp := udpLayer.(*layers.UDP)
		rec.Protocol = ProtocolUDP
		rec.SrcPort = int(udp.SrcPort)
		rec.DstPort = int(udp.DstPort)
		rec.Info = fmt.Sprintf("Port: %d → %d", rec.SrcPort, rec.DstPort)
	}

	return rec, true, nil
}

// packetLength prefers the capture metadata's wire length, falling back to
// the decoded byte count for synthetic packets built without metadata.
func packetLength(pkt gopacket.Packet) int {
	if md := pkt.Metadata(); md != nil && md.Length > 0 {
		return md.Length
	}
	return len(pkt.Data())
}

// Dict renders the record as the key/value document the analysis prompt and
// the API serve. Ports are present only for TCP and UDP, and the flag map
// only for TCP, matching the shape the packet list exposes per row.
func (r PacketRecord) Dict() map[string]any {
	d := map[string]any{
		"time":      r.Time.Format("2006-01-02 15:04:05"),
		"source_ip": r.SrcIP,
		"dest_ip":   r.DstIP,
		"protocol":  string(r.Protocol),
		"length":    r.Length,
	}
	switch r.Protocol {
	case ProtocolTCP:
		d["source_port"] = r.SrcPort
		d["dest_port"] = r.DstPort
		d["tcp_flags"] = map[string]bool{
			"SYN": r.Flags.SYN,
			"ACK": r.Flags.ACK,
			"FIN": r.Flags.FIN,
			"RST": r.Flags.RST,
		}
	case ProtocolUDP:
		d["source_port"] = r.SrcPort
		d["dest_port"] = r.DstPort
	}
	return d
}
