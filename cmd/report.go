package cmd

import (
	"fmt"
	"io"
	"math"
	"sort"
	"text/tabwriter"

	"github.com/combat-sim/combat-sim/sim"
	"github.com/combat-sim/combat-sim/sim/trace"
)

// printDataSet writes one row per chart bar: the entity, its value and, for a
// bar without a value, the reason.
func printDataSet(w io.Writer, s *sim.Simulator, plot sim.PlotType) error {
	unit := s.Settings().TimeUnit
	header := plot.Label
	if plot.Scaled {
		header = fmt.Sprintf("%s per %s", plot.Label, unit)
	}
	fmt.Fprintf(w, "=== %s ===\n", header)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	bars := sim.Bars(s.Registry())
	values := s.DataSet(plot)
	for i, ref := range bars {
		v := values[i]
		if !math.IsNaN(v) {
			fmt.Fprintf(tw, "%s\t%.4f\t\n", ref, v)
			continue
		}
		reason := s.FailureText(ref)
		if !s.Store().Included(ref) {
			reason = "excluded"
		}
		if reason == "" {
			reason = "no result"
		}
		fmt.Fprintf(tw, "%s\t-\t%s\n", ref, reason)
	}
	return tw.Flush()
}

// printTraceSummary writes dispatch statistics of a run.
func printTraceSummary(w io.Writer, rt *trace.RunTrace) {
	summary := trace.Summarize(rt)
	fmt.Fprintln(w, "=== Dispatch Summary ===")
	fmt.Fprintf(w, "Items: %d (succeeded %d, failed %d, out of ticks %d, errors %d)\n",
		summary.TotalItems, summary.Succeeded, summary.Failed, summary.OutOfTicks, summary.Errors)
	if summary.TotalItems == 0 {
		return
	}
	fmt.Fprintf(w, "Mean item time: %v, slowest: %s (%v)\n", summary.MeanElapsed, summary.Slowest, summary.MaxElapsed)
	idx := make([]int, 0, len(summary.ChannelItemCount))
	for ch := range summary.ChannelItemCount {
		idx = append(idx, ch)
	}
	sort.Ints(idx)
	for _, ch := range idx {
		fmt.Fprintf(w, "  channel %d: %d items\n", ch, summary.ChannelItemCount[ch])
	}
}

// printTraceItems writes one line per dispatched item in completion order.
func printTraceItems(w io.Writer, rt *trace.RunTrace) {
	fmt.Fprintln(w, "=== Dispatched Items ===")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, r := range rt.Records() {
		status := "ok"
		switch {
		case r.Err:
			status = "error: " + r.Reason
		case r.OutOfTicks:
			status = "out of ticks"
		case !r.Success:
			status = "failed: " + r.Reason
		}
		fmt.Fprintf(tw, "%s\tchannel %d\t%v\t%d ticks\t%s\n", r.Label(), r.Channel, r.Elapsed, r.TickCount, status)
	}
	tw.Flush()
}

// printReport writes the run counters and history id.
func printReport(w io.Writer, result *sim.RunResult) {
	r := result.Report
	fmt.Fprintf(w, "Run: %d/%d items completed, %d failed", r.Completed, r.Total, r.Failed)
	if r.Cancelled {
		fmt.Fprint(w, ", cancelled")
	}
	fmt.Fprintln(w)
	if r.Err != nil {
		fmt.Fprintf(w, "First compute error: %v\n", r.Err)
	}
	if result.HistoryID != "" {
		fmt.Fprintf(w, "History id: %s\n", result.HistoryID)
	}
}
