package sim

import (
	"errors"
	"fmt"
	"strings"
)

// Advisory failure reasons stored on records.
const (
	ReasonNotSimulated   = "not simulated"
	ReasonFiltered       = "entity filtered"
	ReasonCannotAccess   = "cannot access area"
	ReasonNoTaskMonsters = "no monsters match this task"
	ReasonNoKills        = "no successful member simulations"

	computeErrorPrefix = "simulation error: "
)

// ErrNothingSelected is returned by a single-target run without a selection.
var ErrNothingSelected = errors.New("no target selected")

// ErrAlreadyRunning is returned when a run is started while another is in flight.
var ErrAlreadyRunning = errors.New("a simulation run is already in progress")

// SelectionError reports why the selected target cannot be simulated.
type SelectionError struct {
	Target EntityRef
	Reason string
}

func (e *SelectionError) Error() string {
	return fmt.Sprintf("cannot simulate %s: %s", e.Target, e.Reason)
}

// FailureKind classifies why a record has no usable result.
type FailureKind int

const (
	FailureNone FailureKind = iota
	FailureNotSimulated
	FailureFiltered
	FailureInaccessible
	FailureSkipped
	FailureInsufficientTime
	FailureCompute
	FailureOther
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureNotSimulated:
		return "not-simulated"
	case FailureFiltered:
		return "filtered"
	case FailureInaccessible:
		return "inaccessible"
	case FailureSkipped:
		return "skipped"
	case FailureInsufficientTime:
		return "insufficient-time"
	case FailureCompute:
		return "compute"
	default:
		return "other"
	}
}

// ClassifyFailure determines the failure kind of a record. A failed trial whose
// tick count reached the budget, including exactly at the budget, ran out of
// simulated time.
func ClassifyFailure(d *SimulationData, tickBudget int64) FailureKind {
	switch {
	case d.SimSuccess:
		return FailureNone
	case d.IsSkipped:
		return FailureSkipped
	case d.Reason == ReasonFiltered:
		return FailureFiltered
	case d.Reason == ReasonCannotAccess:
		return FailureInaccessible
	case d.Reason == ReasonNotSimulated:
		return FailureNotSimulated
	case strings.HasPrefix(d.Reason, computeErrorPrefix):
		return FailureCompute
	case tickBudget > 0 && d.TickCount >= tickBudget:
		return FailureInsufficientTime
	default:
		return FailureOther
	}
}

// GetSimFailureText renders a user-facing explanation for a failed record.
// hint is the registry's note for composites whose simulation is known to be
// inaccurate; it is appended when non-empty.
func GetSimFailureText(d *SimulationData, tickBudget int64, hint string) string {
	var text string
	switch ClassifyFailure(d, tickBudget) {
	case FailureNone:
		return ""
	case FailureInsufficientTime:
		text = fmt.Sprintf("Insufficient simulation time: the trial used all %d ticks before finishing. Increase the tick budget or lower the trial count.", tickBudget)
	case FailureFiltered:
		text = "Not simulated: entity filtered."
	case FailureInaccessible:
		text = "Not simulated: entry requirements are not met (cannot access area)."
	case FailureSkipped:
		text = "Skipped: " + d.Reason
	case FailureCompute:
		text = "The combat engine failed: " + strings.TrimPrefix(d.Reason, computeErrorPrefix)
	default:
		text = "Simulation failed: " + d.Reason
	}
	if hint != "" {
		text += " " + hint
	}
	return text
}

// joinReasons de-duplicates reasons, preserving first occurrence order.
func joinReasons(reasons []string) string {
	seen := make(map[string]bool, len(reasons))
	var out []string
	for _, r := range reasons {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return strings.Join(out, ", ")
}
