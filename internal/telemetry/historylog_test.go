package telemetry

import (
	"testing"
	"time"
)

func TestHistoryLog_AppendWhileInactive(t *testing.T) {
	log := NewHistoryLog()
	log.Append(Record{Seq: 1, Values: []float64{1}})

	if log.Active() {
		t.Error("new log should be inactive")
	}
	if log.Len() != 0 {
		t.Errorf("inactive Append buffered a record, Len = %d", log.Len())
	}
}

func TestHistoryLog_StartAppendStop(t *testing.T) {
	log := NewHistoryLog()
	log.Start()
	if !log.Active() {
		t.Fatal("log should be active after Start")
	}

	t0 := time.Now()
	for i := 1; i <= 3; i++ {
		log.Append(Record{Seq: uint64(i), Time: t0, Values: []float64{float64(i)}})
	}
	if log.Len() != 3 {
		t.Fatalf("Len = %d, want 3", log.Len())
	}

	drained := log.Stop()
	if log.Active() {
		t.Error("log should be inactive after Stop")
	}
	if len(drained) != 3 {
		t.Fatalf("drained %d records, want 3", len(drained))
	}
	for i, rec := range drained {
		if rec.Seq != uint64(i+1) {
			t.Errorf("drained[%d].Seq = %d, want %d", i, rec.Seq, i+1)
		}
	}

	// The drain empties the buffer.
	if log.Len() != 0 {
		t.Errorf("Len after drain = %d, want 0", log.Len())
	}
}

func TestHistoryLog_StopWhileInactive(t *testing.T) {
	log := NewHistoryLog()
	if got := log.Stop(); got != nil {
		t.Errorf("Stop on inactive log = %v, want nil", got)
	}
}

// A second Start while recording keeps the buffer, so a duplicated start
// request never loses samples.
func TestHistoryLog_StartWhileActiveKeepsBuffer(t *testing.T) {
	log := NewHistoryLog()
	log.Start()
	log.Append(Record{Seq: 1})
	log.Start()
	log.Append(Record{Seq: 2})

	drained := log.Stop()
	if len(drained) != 2 {
		t.Fatalf("drained %d records, want 2", len(drained))
	}
}

func TestHistoryLog_RestartRecordsFresh(t *testing.T) {
	log := NewHistoryLog()
	log.Start()
	log.Append(Record{Seq: 1})
	log.Stop()

	log.Start()
	log.Append(Record{Seq: 2})
	drained := log.Stop()

	if len(drained) != 1 || drained[0].Seq != 2 {
		t.Errorf("second session drained %v, want just seq 2", drained)
	}
}
