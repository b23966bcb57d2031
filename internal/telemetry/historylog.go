package telemetry

import "sync"

// HistoryLog records every sample between Start and Stop for later flushing
// to the database, independent of the rolling window's eviction. Append while
// inactive is a no-op, so the acquisition loop can call it unconditionally on
// every record.
type HistoryLog struct {
	mu      sync.Mutex
	active  bool
	records []Record
}

func NewHistoryLog() *HistoryLog { return &HistoryLog{} }

// Start begins recording. Starting while already active is a no-op and keeps
// the buffer, so a repeated start never loses samples.
func (l *HistoryLog) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.active = true
}

// Stop ends recording and drains the buffer, returning the records in append
// order. Stopping while inactive returns nil. The log is cleared by the
// drain, never trimmed while active.
func (l *HistoryLog) Stop() []Record {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return nil
	}
	l.active = false
	out := l.records
	l.records = nil
	return out
}

// Append stores one record if the log is active.
func (l *HistoryLog) Append(rec Record) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.active {
		return
	}
	l.records = append(l.records, rec)
}

// Active reports whether the log is currently recording.
func (l *HistoryLog) Active() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// Len reports the number of records buffered so far.
func (l *HistoryLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}
