package sim

import (
	"fmt"
	"math"
)

// Aggregator derives composite records (dungeons, strongholds, depths and
// slayer tasks) from their member leaf records. Every recomputation builds a
// fresh record, so running it twice over unchanged leaves yields identical
// results.
type Aggregator struct {
	reg   Registry
	store *Store
}

// NewAggregator creates an Aggregator over the given store.
func NewAggregator(reg Registry, store *Store) *Aggregator {
	return &Aggregator{reg: reg, store: store}
}

// RecomputeAll recomputes every composite of the registry.
func (a *Aggregator) RecomputeAll() {
	for _, kind := range ContainerKinds {
		for _, c := range a.reg.Containers(kind) {
			a.Recompute(c.Ref())
		}
	}
	for _, t := range a.reg.SlayerTasks() {
		a.Recompute(EntityRef{Kind: KindSlayerTask, ID: t.ID})
	}
}

// Recompute rebuilds the composite record of ref. Monster refs are leaves and
// are ignored. Unknown composites panic.
func (a *Aggregator) Recompute(ref EntityRef) {
	switch {
	case ref.Kind == KindMonster:
		return
	case ref.Kind.IsContainer():
		c, ok := a.reg.Container(ref.Kind, ref.ID)
		if !ok {
			panic(fmt.Sprintf("Aggregator: unknown %s %q", ref.Kind, ref.ID))
		}
		a.store.setComposite(ref, a.container(c))
	case ref.Kind == KindSlayerTask:
		t, ok := a.reg.SlayerTask(ref.ID)
		if !ok {
			panic(fmt.Sprintf("Aggregator: unknown slayer task %q", ref.ID))
		}
		a.store.setComposite(ref, a.task(t))
	default:
		panic(fmt.Sprintf("Aggregator: cannot aggregate entity kind %q", ref.Kind))
	}
}

func (a *Aggregator) container(c *Container) *SimulationData {
	out := NewSimulationData("", c.ID, c.Realm)
	if !a.store.Included(c.Ref()) {
		out.Fail(ReasonFiltered)
		return out
	}
	members := make([]*SimulationData, 0, len(c.Monsters))
	var reasons []string
	for _, m := range c.Monsters {
		d, ok := a.store.Leaf(WorkKey{MonsterID: m, EntityID: c.ID})
		if !ok {
			reasons = append(reasons, ReasonNotSimulated)
			continue
		}
		if d.IsSkipped {
			continue
		}
		out.SimulationTime += d.SimulationTime
		if !d.SimSuccess {
			reasons = append(reasons, d.Reason)
			continue
		}
		members = append(members, d)
	}
	if len(reasons) > 0 {
		simTime := out.SimulationTime
		out.Fail(joinReasons(reasons))
		out.SimulationTime = simTime
		return out
	}
	if len(members) == 0 {
		out.Fail(ReasonNoKills)
		return out
	}

	survive := 1.0
	for _, d := range members {
		survive *= 1 - d.DeathRate
		out.KillTimeS += d.KillTimeS
		out.HighestDamageTaken = math.Max(out.HighestDamageTaken, d.HighestDamageTaken)
		out.HighestReflectDamageTaken = math.Max(out.HighestReflectDamageTaken, d.HighestReflectDamageTaken)
		out.LowestHitpoints = math.Min(out.LowestHitpoints, d.LowestHitpoints)
		if d.TickCount > out.TickCount {
			out.TickCount = d.TickCount
		}
	}
	out.DeathRate = clamp01(1 - survive)
	weightRates(&out.TrialOutcome, members)
	out.succeed()
	return out
}

func (a *Aggregator) task(t *SlayerTask) *SimulationData {
	ref := EntityRef{Kind: KindSlayerTask, ID: t.ID}
	out := NewSimulationData("", t.ID, t.Realm)
	if !a.store.Included(ref) {
		out.Fail(ReasonFiltered)
		return out
	}
	if prev, ok := a.store.Composite(ref); ok && prev.IsSkipped {
		out.Fail(prev.Reason)
		out.IsSkipped = true
		return out
	}

	var members []*SimulationData
	var reasons []string
	for _, m := range a.store.TaskMembers(t.ID) {
		d, ok := a.store.Leaf(WorkKey{MonsterID: m})
		if !ok {
			continue
		}
		out.SimulationTime += d.SimulationTime
		if d.SimSuccess {
			members = append(members, d)
		} else {
			reasons = append(reasons, d.Reason)
		}
	}
	if len(members) == 0 {
		simTime := out.SimulationTime
		if len(reasons) > 0 {
			out.Fail(joinReasons(reasons))
		} else {
			out.Fail(ReasonNoKills)
		}
		out.SimulationTime = simTime
		return out
	}

	// A task kill is one kill of a uniformly chosen eligible member.
	n := float64(len(members))
	survive := 1.0
	for _, d := range members {
		out.KillTimeS += d.KillTimeS / n
		survive *= 1 - d.DeathRate
		out.HighestDamageTaken = math.Max(out.HighestDamageTaken, d.HighestDamageTaken)
		out.HighestReflectDamageTaken = math.Max(out.HighestReflectDamageTaken, d.HighestReflectDamageTaken)
		out.LowestHitpoints = math.Min(out.LowestHitpoints, d.LowestHitpoints)
		if d.TickCount > out.TickCount {
			out.TickCount = d.TickCount
		}
	}
	out.DeathRate = clamp01(1 - survive)
	weightRates(&out.TrialOutcome, members)
	out.succeed()
	return out
}

// weightRates sets every rate of out to the kill-time weighted average over
// members. Breakdown keys absent from a member contribute zero.
func weightRates(out *TrialOutcome, members []*SimulationData) {
	var total float64
	for _, d := range members {
		total += d.KillTimeS
	}
	for _, f := range rateFields {
		var sum float64
		for _, d := range members {
			sum += *f.ptr(&d.TrialOutcome) * d.KillTimeS
		}
		*f.ptr(out) = sum / total
	}
	out.UsedRunesBreakdown = weightMaps(members, total, func(o *TrialOutcome) map[string]float64 { return o.UsedRunesBreakdown })
	out.PetRolls = weightMaps(members, total, func(o *TrialOutcome) map[string]float64 { return o.PetRolls })
	out.MarkRolls = weightMaps(members, total, func(o *TrialOutcome) map[string]float64 { return o.MarkRolls })
}

func weightMaps(members []*SimulationData, total float64, get func(*TrialOutcome) map[string]float64) map[string]float64 {
	var out map[string]float64
	for _, d := range members {
		for k, v := range get(&d.TrialOutcome) {
			if out == nil {
				out = make(map[string]float64)
			}
			out[k] += v * d.KillTimeS
		}
	}
	for k := range out {
		out[k] /= total
	}
	return out
}

func (d *SimulationData) succeed() {
	d.SimSuccess = true
	d.Reason = ""
	d.KillsPerSecond = 1 / d.KillTimeS
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
