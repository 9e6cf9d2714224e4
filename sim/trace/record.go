// Package trace provides dispatch-trace recording for simulation runs.
// The package does not import sim/; it stores pure data types.
package trace

import "time"

// DispatchRecord captures one work item sent to a compute channel.
type DispatchRecord struct {
	MonsterID  string
	EntityID   string // owning container, empty for open-world monsters
	Channel    int    // index of the compute channel that ran the trial
	Elapsed    time.Duration
	Success    bool
	Reason     string // failure reason (empty on success)
	TickCount  int64
	OutOfTicks bool // trial failed at or beyond the tick budget
	Err        bool // compute channel error or malformed outcome
}

// Label renders "entity/monster" or "monster".
func (r DispatchRecord) Label() string {
	if r.EntityID == "" {
		return r.MonsterID
	}
	return r.EntityID + "/" + r.MonsterID
}
