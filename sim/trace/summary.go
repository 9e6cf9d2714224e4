package trace

import "time"

// TraceSummary aggregates statistics from a RunTrace.
type TraceSummary struct {
	TotalItems       int
	Succeeded        int
	Failed           int
	OutOfTicks       int
	Errors           int
	MeanElapsed      time.Duration
	MaxElapsed       time.Duration
	Slowest          string      // label of the slowest item
	ChannelItemCount map[int]int // channel index → items completed
}

// Summarize computes aggregate statistics from a RunTrace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(rt *RunTrace) *TraceSummary {
	summary := &TraceSummary{
		ChannelItemCount: make(map[int]int),
	}
	if rt == nil {
		return summary
	}

	records := rt.Records()
	summary.TotalItems = len(records)
	if len(records) == 0 {
		return summary
	}

	var total time.Duration
	for _, r := range records {
		if r.Success {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
		if r.OutOfTicks {
			summary.OutOfTicks++
		}
		if r.Err {
			summary.Errors++
		}
		summary.ChannelItemCount[r.Channel]++
		total += r.Elapsed
		if r.Elapsed > summary.MaxElapsed || summary.Slowest == "" {
			summary.MaxElapsed = r.Elapsed
			summary.Slowest = r.Label()
		}
	}
	summary.MeanElapsed = total / time.Duration(len(records))

	return summary
}
