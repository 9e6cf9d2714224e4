package trace

import (
	"testing"
	"time"
)

func TestSummarize_EmptyTrace_ZeroValues(t *testing.T) {
	// GIVEN an empty trace
	rt := NewRunTrace(time.Unix(0, 0))

	// WHEN summarized
	summary := Summarize(rt)

	// THEN all counts are zero
	if summary.TotalItems != 0 {
		t.Errorf("expected 0 items, got %d", summary.TotalItems)
	}
	if summary.Succeeded != 0 || summary.Failed != 0 {
		t.Error("expected 0 succeeded and failed")
	}
	if summary.MeanElapsed != 0 || summary.MaxElapsed != 0 {
		t.Error("expected 0 elapsed values")
	}
	if len(summary.ChannelItemCount) != 0 {
		t.Error("expected empty channel distribution")
	}
}

func TestSummarize_NilTrace_ZeroValues(t *testing.T) {
	summary := Summarize(nil)
	if summary.TotalItems != 0 || summary.ChannelItemCount == nil {
		t.Errorf("expected zero summary with initialized map, got %+v", summary)
	}
}

func TestSummarize_PopulatedTrace_CorrectCounts(t *testing.T) {
	// GIVEN a trace with mixed outcomes over two channels
	rt := NewRunTrace(time.Unix(0, 0))
	rt.Record(DispatchRecord{MonsterID: "a", Channel: 0, Elapsed: 10 * time.Millisecond, Success: true})
	rt.Record(DispatchRecord{MonsterID: "b", Channel: 1, Elapsed: 30 * time.Millisecond, Success: false, OutOfTicks: true})
	rt.Record(DispatchRecord{MonsterID: "c", EntityID: "d1", Channel: 0, Elapsed: 20 * time.Millisecond, Success: false, Err: true})

	// WHEN summarized
	summary := Summarize(rt)

	// THEN counts, timing and distribution reflect the records
	if summary.TotalItems != 3 {
		t.Errorf("expected 3 items, got %d", summary.TotalItems)
	}
	if summary.Succeeded != 1 || summary.Failed != 2 {
		t.Errorf("expected 1 succeeded / 2 failed, got %d / %d", summary.Succeeded, summary.Failed)
	}
	if summary.OutOfTicks != 1 || summary.Errors != 1 {
		t.Errorf("expected 1 out-of-ticks and 1 error, got %d and %d", summary.OutOfTicks, summary.Errors)
	}
	if summary.MeanElapsed != 20*time.Millisecond {
		t.Errorf("expected mean 20ms, got %v", summary.MeanElapsed)
	}
	if summary.MaxElapsed != 30*time.Millisecond || summary.Slowest != "b" {
		t.Errorf("expected slowest b at 30ms, got %s at %v", summary.Slowest, summary.MaxElapsed)
	}
	if summary.ChannelItemCount[0] != 2 || summary.ChannelItemCount[1] != 1 {
		t.Errorf("unexpected channel distribution %v", summary.ChannelItemCount)
	}
}
