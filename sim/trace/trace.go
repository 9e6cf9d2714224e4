package trace

import (
	"sync"
	"time"
)

// TraceLevel controls the verbosity of dispatch tracing.
type TraceLevel string

const (
	// TraceLevelNone prints nothing about dispatch.
	TraceLevelNone TraceLevel = "none"
	// TraceLevelSummary prints the aggregate dispatch statistics.
	TraceLevelSummary TraceLevel = "summary"
	// TraceLevelItems prints the statistics and one line per dispatched item.
	TraceLevelItems TraceLevel = "items"
)

// validTraceLevels maps accepted trace level strings.
var validTraceLevels = map[TraceLevel]bool{
	TraceLevelNone:    true,
	TraceLevelSummary: true,
	TraceLevelItems:   true,
	"":                true, // empty defaults to none
}

// IsValidTraceLevel returns true if the given level string is a recognized trace level.
func IsValidTraceLevel(level string) bool {
	return validTraceLevels[TraceLevel(level)]
}

// RunTrace collects dispatch records during one simulation run.
// Recording is goroutine-safe: multi-channel dispatch records concurrently.
type RunTrace struct {
	StartedAt time.Time

	mu      sync.Mutex
	records []DispatchRecord
}

// NewRunTrace creates a RunTrace ready for recording.
func NewRunTrace(startedAt time.Time) *RunTrace {
	return &RunTrace{
		StartedAt: startedAt,
		records:   make([]DispatchRecord, 0),
	}
}

// Record appends a dispatch record.
func (rt *RunTrace) Record(record DispatchRecord) {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	rt.records = append(rt.records, record)
}

// Records returns a copy of the records in completion order.
func (rt *RunTrace) Records() []DispatchRecord {
	rt.mu.Lock()
	defer rt.mu.Unlock()
	out := make([]DispatchRecord, len(rt.records))
	copy(out, rt.records)
	return out
}
