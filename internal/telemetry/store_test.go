package telemetry

import (
	"sync"
	"testing"
	"time"
)

func motionRecord(seq uint64, base float64) Record {
	values := make([]float64, 8)
	for i := range values {
		values[i] = base + float64(i)
	}
	return Record{Seq: seq, Time: time.Unix(int64(seq), 0), Values: values}
}

func TestNewSampleStore(t *testing.T) {
	store := NewSampleStore(MotionSchema(), 10)
	if store.Schema().Name != "imu" {
		t.Errorf("Schema().Name = %q, want imu", store.Schema().Name)
	}
	if store.Len() != 0 {
		t.Errorf("new store should be empty, got %d", store.Len())
	}
}

func TestSampleStore_PushAndSnapshot(t *testing.T) {
	store := NewSampleStore(MotionSchema(), 10)
	store.Push(motionRecord(1, 100))
	store.Push(motionRecord(2, 200))

	accelX := store.Snapshot("AccelX")
	if len(accelX) != 2 || accelX[0] != 100 || accelX[1] != 200 {
		t.Errorf("AccelX snapshot = %v, want [100 200]", accelX)
	}

	pitch := store.Snapshot("Pitch")
	if len(pitch) != 2 || pitch[0] != 107 || pitch[1] != 207 {
		t.Errorf("Pitch snapshot = %v, want [107 207]", pitch)
	}

	if got := store.Snapshot("NoSuchChannel"); got != nil {
		t.Errorf("unknown channel snapshot = %v, want nil", got)
	}
}

func TestSampleStore_Overflow(t *testing.T) {
	store := NewSampleStore(RangeSchema(), 3)
	for i := 1; i <= 5; i++ {
		v := float64(i * 10)
		store.Push(Record{Seq: uint64(i), Values: []float64{v, v + 1, v + 2, v + 3}})
	}

	if store.Len() != 3 {
		t.Fatalf("Len = %d, want capacity 3", store.Len())
	}

	front := store.Snapshot("Front")
	want := []float64{30, 40, 50}
	for i := range want {
		if front[i] != want[i] {
			t.Errorf("Front[%d] = %v, want %v", i, front[i], want[i])
		}
	}

	// Eviction in one channel never skews another: columns stay aligned.
	back := store.Snapshot("Back")
	for i := range want {
		if back[i] != want[i]+3 {
			t.Errorf("Back[%d] = %v, want %v", i, back[i], want[i]+3)
		}
	}
}

func TestSampleStore_RejectsWrongWidth(t *testing.T) {
	store := NewSampleStore(MotionSchema(), 10)
	store.Push(Record{Values: []float64{1, 2}})

	if store.Len() != 0 {
		t.Errorf("narrow record was stored, Len = %d", store.Len())
	}
	if c := store.Counters(); c.Records != 0 {
		t.Errorf("narrow record was counted: %+v", c)
	}
}

func TestSampleStore_SnapshotAll(t *testing.T) {
	store := NewSampleStore(MotionSchema(), 10)
	store.Push(motionRecord(1, 0))

	all := store.SnapshotAll()
	if len(all) != 8 {
		t.Fatalf("expected 8 channels, got %d", len(all))
	}
	for _, name := range store.Schema().ChannelNames() {
		if _, present := all[name]; !present {
			t.Errorf("SnapshotAll missing channel %q", name)
		}
		if len(all[name]) != 1 {
			t.Errorf("channel %q has %d samples, want 1", name, len(all[name]))
		}
	}
}

func TestSampleStore_Window(t *testing.T) {
	store := NewSampleStore(RangeSchema(), 5)
	t0 := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		store.Push(Record{
			Seq:    uint64(i + 1),
			Time:   t0.Add(time.Duration(i) * time.Second),
			Values: []float64{float64(i), float64(i + 10), float64(i + 20), float64(i + 30)},
		})
	}

	win := store.Window()
	if len(win.Times) != 3 || len(win.Rows) != 3 {
		t.Fatalf("window = %d times / %d rows, want 3/3", len(win.Times), len(win.Rows))
	}
	if !win.Times[0].Equal(t0) {
		t.Errorf("Times[0] = %v, want %v", win.Times[0], t0)
	}
	// Rows follow schema channel order: Front, Right, Left, Back.
	if win.Rows[2][0] != 2 || win.Rows[2][3] != 32 {
		t.Errorf("Rows[2] = %v, want [2 12 22 32]", win.Rows[2])
	}
	if win.Schema.Name != "sonar" {
		t.Errorf("window schema = %q, want sonar", win.Schema.Name)
	}
}

func TestSampleStore_Latest(t *testing.T) {
	store := NewSampleStore(MotionSchema(), 4)

	if _, ok := store.Latest(); ok {
		t.Error("Latest on empty store should report false")
	}

	store.Push(motionRecord(1, 10))
	store.Push(motionRecord(2, 20))

	rec, ok := store.Latest()
	if !ok {
		t.Fatal("Latest should report true after pushes")
	}
	if rec.Values[0] != 20 {
		t.Errorf("Latest AccelX = %v, want 20", rec.Values[0])
	}
	if !rec.Time.Equal(time.Unix(2, 0)) {
		t.Errorf("Latest time = %v, want %v", rec.Time, time.Unix(2, 0))
	}
}

func TestSampleStore_Counters(t *testing.T) {
	store := NewSampleStore(MotionSchema(), 10)
	store.Push(motionRecord(1, 0))
	store.Push(motionRecord(2, 0))
	store.CountParseError()

	c := store.Counters()
	if c.Records != 2 {
		t.Errorf("Records = %d, want 2", c.Records)
	}
	if c.ParseErrors != 1 {
		t.Errorf("ParseErrors = %d, want 1", c.ParseErrors)
	}
}

func TestSampleStore_Clear(t *testing.T) {
	store := NewSampleStore(MotionSchema(), 10)
	store.Push(motionRecord(1, 0))
	store.CountParseError()

	store.Clear()

	if store.Len() != 0 {
		t.Errorf("Len after Clear = %d, want 0", store.Len())
	}
	if got := store.Snapshot("AccelX"); len(got) != 0 {
		t.Errorf("AccelX after Clear = %v, want empty", got)
	}
	if c := store.Counters(); c != (Counters{}) {
		t.Errorf("counters after Clear = %+v, want zero", c)
	}

	// Store keeps working after Clear.
	store.Push(motionRecord(9, 5))
	if store.Len() != 1 {
		t.Errorf("push after Clear: Len = %d, want 1", store.Len())
	}
}

// Concurrent pushes and snapshots must never tear a record, exceed capacity,
// or race (run under -race).
func TestSampleStore_ConcurrentPushSnapshot(t *testing.T) {
	const capacity = 16
	store := NewSampleStore(RangeSchema(), capacity)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			v := float64(i)
			store.Push(Record{Seq: uint64(i), Values: []float64{v, v, v, v}})
		}
		close(stop)
	}()

	for g := 0; g < 4; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				all := store.SnapshotAll()
				n := -1
				for name, series := range all {
					if len(series) > capacity {
						t.Errorf("channel %q holds %d > capacity %d", name, len(series), capacity)
						return
					}
					if n == -1 {
						n = len(series)
					} else if len(series) != n {
						t.Errorf("torn snapshot: channel lengths differ (%d vs %d)", len(series), n)
						return
					}
				}
				// A row is pushed whole, so at any instant every channel's
				// latest value is identical for this workload.
				if rec, ok := store.Latest(); ok {
					for i := 1; i < len(rec.Values); i++ {
						if rec.Values[i] != rec.Values[0] {
							t.Errorf("torn record observed: %v", rec.Values)
							return
						}
					}
				}
			}
		}()
	}

	wg.Wait()
	if store.Len() != capacity {
		t.Errorf("Len = %d, want %d after 500 pushes", store.Len(), capacity)
	}
}

func packetRecord(seq uint64, proto Protocol, length int) PacketRecord {
	return PacketRecord{
		Seq:      seq,
		Time:     time.Unix(int64(seq), 0),
		SrcIP:    "192.168.1.10",
		DstIP:    "10.0.0.5",
		Protocol: proto,
		Length:   length,
	}
}

func TestPacketStore_PushAndSnapshot(t *testing.T) {
	store := NewPacketStore(10)
	store.Push(packetRecord(1, ProtocolTCP, 60))
	store.Push(packetRecord(2, ProtocolUDP, 120))
	store.Push(packetRecord(3, ProtocolTCP, 40))
	store.Push(packetRecord(4, ProtocolOther, 84))

	snap := store.Snapshot()
	if len(snap.Records) != 4 {
		t.Fatalf("expected 4 records, got %d", len(snap.Records))
	}
	if snap.Records[0].Seq != 1 || snap.Records[3].Seq != 4 {
		t.Errorf("records out of order: %v ... %v", snap.Records[0].Seq, snap.Records[3].Seq)
	}

	if snap.Counts[ProtocolTCP] != 2 || snap.Counts[ProtocolUDP] != 1 || snap.Counts[ProtocolOther] != 1 {
		t.Errorf("Counts = %v", snap.Counts)
	}

	wantLengths := []float64{60, 120, 40, 84}
	for i := range wantLengths {
		if snap.Lengths[i] != wantLengths[i] {
			t.Errorf("Lengths[%d] = %v, want %v", i, snap.Lengths[i], wantLengths[i])
		}
	}
}

func TestPacketStore_Find(t *testing.T) {
	store := NewPacketStore(3)
	for i := 1; i <= 5; i++ {
		store.Push(packetRecord(uint64(i), ProtocolTCP, i*10))
	}

	if rec, ok := store.Find(4); !ok || rec.Length != 40 {
		t.Errorf("Find(4) = %+v, %v; want length 40, true", rec, ok)
	}
	// Seq 1 was evicted by the ring.
	if _, ok := store.Find(1); ok {
		t.Error("Find(1) found an evicted packet")
	}
	if _, ok := store.Find(999); ok {
		t.Error("Find(999) found a packet that never existed")
	}
}

// Protocol counters are cumulative: eviction shrinks the window but never
// the tallies.
func TestPacketStore_CountsSurviveEviction(t *testing.T) {
	store := NewPacketStore(2)
	for i := 1; i <= 7; i++ {
		store.Push(packetRecord(uint64(i), ProtocolUDP, 100))
	}

	snap := store.Snapshot()
	if len(snap.Records) != 2 {
		t.Errorf("window = %d records, want 2", len(snap.Records))
	}
	if snap.Counts[ProtocolUDP] != 7 {
		t.Errorf("UDP count = %d, want 7", snap.Counts[ProtocolUDP])
	}
}

func TestPacketStore_Clear(t *testing.T) {
	store := NewPacketStore(10)
	store.Push(packetRecord(1, ProtocolTCP, 60))
	store.Push(packetRecord(2, ProtocolOther, 90))

	store.Clear()

	snap := store.Snapshot()
	if len(snap.Records) != 0 || len(snap.Lengths) != 0 {
		t.Errorf("window not empty after Clear: %d records, %d lengths", len(snap.Records), len(snap.Lengths))
	}
	for proto, n := range snap.Counts {
		if n != 0 {
			t.Errorf("count %q = %d after Clear, want 0", proto, n)
		}
	}
	if store.Len() != 0 {
		t.Errorf("Len = %d after Clear, want 0", store.Len())
	}
}

func TestPacketStore_ConcurrentAccess(t *testing.T) {
	store := NewPacketStore(8)

	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 300; i++ {
			store.Push(packetRecord(uint64(i), ProtocolTCP, i))
		}
		close(stop)
	}()

	for g := 0; g < 3; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := store.Snapshot()
				if len(snap.Records) > 8 {
					t.Errorf("window exceeded capacity: %d", len(snap.Records))
					return
				}
				store.Find(uint64(len(snap.Records)))
			}
		}()
	}

	wg.Wait()
}
