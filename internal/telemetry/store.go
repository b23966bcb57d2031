package telemetry

import (
	"sync"
	"time"
)

// Counters are the cumulative ingest totals a store has seen since the last
// Clear. They outlive ring eviction.
type Counters struct {
	Records     uint64 `json:"records"`
	ParseErrors uint64 `json:"parse_errors"`
}

// SampleStore is the rolling window for one serial pipeline: one ring per
// schema channel plus a parallel timestamp ring, all guarded by a single
// mutex so a snapshot never observes a torn record. Exactly one acquisition
// loop writes; everything else reads through snapshot copies.
type SampleStore struct {
	mu       sync.Mutex
	schema   Schema
	rings    []*Ring[float64]
	times    *Ring[time.Time]
	counters Counters
}

// NewSampleStore sizes one ring per schema channel. Non-positive capacities
// fall back to DefaultRingCapacity.
func NewSampleStore(schema Schema, capacity int) *SampleStore {
	rings := make([]*Ring[float64], schema.Len())
	for i := range rings {
		rings[i] = NewRing[float64](capacity)
	}
	return &SampleStore{
		schema: schema,
		rings:  rings,
		times:  NewRing[time.Time](capacity),
	}
}

func (s *SampleStore) Schema() Schema { return s.schema }

// Push distributes the record's values across the channel rings under one
// lock. A record whose value count does not match the schema is dropped
// whole; the store never applies a partial row. The parser rejects such
// records before they get here, so this is belt and braces for direct
// callers.
func (s *SampleStore) Push(rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(rec.Values) != len(s.rings) {
		return
	}
	for i, v := range rec.Values {
		s.rings[i].Push(v)
	}
	s.times.Push(rec.Time)
	s.counters.Records++
}

// CountParseError bumps the running parse failure total reported by the
// state endpoint.
func (s *SampleStore) CountParseError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters.ParseErrors++
}

// Counters returns a copy of the cumulative totals.
func (s *SampleStore) Counters() Counters {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counters
}

// Len reports the number of samples currently retained.
func (s *SampleStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.times.Len()
}

// Snapshot returns a copy of one channel's window, oldest first. Unknown
// channels return nil.
func (s *SampleStore) Snapshot(channel string) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, c := range s.schema.Channels {
		if c.Name == channel {
			return s.rings[i].Snapshot()
		}
	}
	return nil
}

// SnapshotAll returns copies of every channel window keyed by channel name.
// All slices come from the same locked pass, so their indexes line up.
func (s *SampleStore) SnapshotAll() map[string][]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]float64, len(s.rings))
	for i, c := range s.schema.Channels {
		out[c.Name] = s.rings[i].Snapshot()
	}
	return out
}

// Latest returns the most recent record reassembled from the channel rings,
// false when the store is empty.
func (s *SampleStore) Latest() (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.times.Latest()
	if !ok {
		return Record{}, false
	}
	values := make([]float64, len(s.rings))
	for i := range s.rings {
		values[i], _ = s.rings[i].Latest()
	}
	return Record{Time: t, Values: values}, true
}

// TimedWindow is a consistent row-major copy of a store used by CSV export:
// Times[i] pairs with Rows[i], whose values follow schema channel order.
type TimedWindow struct {
	Schema Schema
	Times  []time.Time
	Rows   [][]float64
}

// Window extracts the full retained window, oldest first.
func (s *SampleStore) Window() TimedWindow {
	s.mu.Lock()
	defer s.mu.Unlock()
	times := s.times.Snapshot()
	rows := make([][]float64, len(times))
	for i := range rows {
		row := make([]float64, len(s.rings))
		for j := range s.rings {
			row[j] = s.rings[j].At(i)
		}
		rows[i] = row
	}
	return TimedWindow{Schema: s.schema, Times: times, Rows: rows}
}

// Clear empties every ring and zeroes the counters in one locked step, so no
// reader can observe a partially cleared store.
func (s *SampleStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.rings {
		r.Clear()
	}
	s.times.Clear()
	s.counters = Counters{}
}

// PacketStore is the sniffer's rolling window: captured records plus
// cumulative per-protocol counters and a parallel length series for the size
// chart. Counters survive ring eviction; Clear resets both.
type PacketStore struct {
	mu      sync.Mutex
	ring    *Ring[PacketRecord]
	lengths *Ring[float64]
	counts  map[Protocol]uint64
}

// NewPacketStore returns a store retaining at most capacity packets.
func NewPacketStore(capacity int) *PacketStore {
	return &PacketStore{
		ring:    NewRing[PacketRecord](capacity),
		lengths: NewRing[float64](capacity),
		counts: map[Protocol]uint64{
			ProtocolTCP:   0,
			ProtocolUDP:   0,
			ProtocolOther: 0,
		},
	}
}

// Push stores the record and feeds the protocol and size tallies.
func (s *PacketStore) Push(rec PacketRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Push(rec)
	s.lengths.Push(float64(rec.Length))
	s.counts[rec.Protocol]++
}

// PacketSnapshot is a consistent copy of the packet window.
type PacketSnapshot struct {
	Records []PacketRecord      `json:"records"`
	Lengths []float64           `json:"lengths"`
	Counts  map[Protocol]uint64 `json:"counts"`
}

// Snapshot copies the retained records, the length series, and the protocol
// counts in one locked pass.
func (s *PacketStore) Snapshot() PacketSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	counts := make(map[Protocol]uint64, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return PacketSnapshot{
		Records: s.ring.Snapshot(),
		Lengths: s.lengths.Snapshot(),
		Counts:  counts,
	}
}

// Find returns the retained record with the given sequence number. Analysis
// selection goes through here; a packet already evicted from the window
// reports false.
func (s *PacketStore) Find(seq uint64) (PacketRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < s.ring.Len(); i++ {
		if rec := s.ring.At(i); rec.Seq == seq {
			return rec, true
		}
	}
	return PacketRecord{}, false
}

// Len reports the number of packets currently retained.
func (s *PacketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ring.Len()
}

// Clear empties the window and zeroes the protocol counts atomically.
func (s *PacketStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ring.Clear()
	s.lengths.Clear()
	for k := range s.counts {
		s.counts[k] = 0
	}
}
