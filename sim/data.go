package sim

import (
	"fmt"
	"maps"
	"math"
	"time"
)

// TrialOutcome is the engine-owned part of a record: everything a compute
// channel reports for one (monster, container) trial. Rates are per second of
// simulated combat.
type TrialOutcome struct {
	SimSuccess bool   `json:"simSuccess"`
	Reason     string `json:"reason,omitempty"`
	TickCount  int64  `json:"tickCount"`

	XPPerSecond          float64 `json:"xpPerSecond"`
	HPXPPerSecond        float64 `json:"hpXpPerSecond"`
	PrayerXPPerSecond    float64 `json:"prayerXpPerSecond"`
	SlayerXPPerSecond    float64 `json:"slayerXpPerSecond"`
	SummoningXPPerSecond float64 `json:"summoningXpPerSecond"`

	PPConsumedPerSecond           float64 `json:"ppConsumedPerSecond"`
	PPGainedPerSecond             float64 `json:"ppGainedPerSecond"`
	DmgPerSecond                  float64 `json:"dmgPerSecond"`
	AmmoUsedPerSecond             float64 `json:"ammoUsedPerSecond"`
	RunesUsedPerSecond            float64 `json:"runesUsedPerSecond"`
	CombinationRunesUsedPerSecond float64 `json:"combinationRunesUsedPerSecond"`
	PotionsUsedPerSecond          float64 `json:"potionsUsedPerSecond"`
	TabletsUsedPerSecond          float64 `json:"tabletsUsedPerSecond"`
	AtePerSecond                  float64 `json:"atePerSecond"`
	AttacksMadePerSecond          float64 `json:"attacksMadePerSecond"`
	AttacksTakenPerSecond         float64 `json:"attacksTakenPerSecond"`

	HighestDamageTaken        float64 `json:"highestDamageTaken"`
	HighestReflectDamageTaken float64 `json:"highestReflectDamageTaken"`
	LowestHitpoints           float64 `json:"lowestHitpoints"`
	DeathRate                 float64 `json:"deathRate"`
	KillTimeS                 float64 `json:"killTimeS"`

	UsedRunesBreakdown map[string]float64 `json:"usedRunesBreakdown,omitempty"`
	PetRolls           map[string]float64 `json:"petRolls,omitempty"`  // skill id -> roll interval (ms)
	MarkRolls          map[string]float64 `json:"markRolls,omitempty"` // familiar id -> roll interval (ms)
}

// SimulationData is the per-entity result record.
type SimulationData struct {
	MonsterID string `json:"monsterId,omitempty"`
	EntityID  string `json:"entityId,omitempty"`
	RealmID   string `json:"realmId,omitempty"`

	IsSkipped      bool    `json:"isSkipped"`
	InQueue        bool    `json:"inQueue"`
	SimulationTime float64 `json:"simulationTime"` // wall-clock cost of the trial in ms

	TrialOutcome

	KillsPerSecond float64            `json:"killsPerSecond"`
	GoldPerSecond  map[string]float64 `json:"goldPerSecond,omitempty"`
	DropChance     float64            `json:"dropChance"`
	SignetChance   float64            `json:"signetChance"`
	PetChance      float64            `json:"petChance"`
	MarkChance     float64            `json:"markChance"`

	// AdjustedRates overlays rate plots when consumable supply limits the
	// chosen time window. Keyed by plot name.
	AdjustedRates map[string]float64 `json:"adjustedRates,omitempty"`
}

// NewSimulationData returns a record in the "not simulated" state.
func NewSimulationData(monsterID, entityID, realmID string) *SimulationData {
	d := &SimulationData{MonsterID: monsterID, EntityID: entityID, RealmID: realmID}
	d.reset()
	return d
}

func (d *SimulationData) reset() {
	ids := [3]string{d.MonsterID, d.EntityID, d.RealmID}
	*d = SimulationData{}
	d.MonsterID, d.EntityID, d.RealmID = ids[0], ids[1], ids[2]
	d.Reason = ReasonNotSimulated
	d.LowestHitpoints = math.MaxFloat64
}

// Merge applies a trial outcome to the record. Derived fields that depend on
// the outcome (kills per second) are recomputed; loot-derived fields are left
// for the value engine.
func (d *SimulationData) Merge(o TrialOutcome, elapsed time.Duration) {
	d.TrialOutcome = o.clone()
	d.InQueue = false
	d.SimulationTime = float64(elapsed) / float64(time.Millisecond)
	if d.SimSuccess {
		d.Reason = ""
		d.KillsPerSecond = 1 / d.KillTimeS
	} else {
		d.KillsPerSecond = 0
	}
}

// Fail marks the record failed with reason, keeping its identity.
func (d *SimulationData) Fail(reason string) {
	d.reset()
	d.Reason = reason
}

// Clone returns a deep copy of the record.
func (d *SimulationData) Clone() *SimulationData {
	c := *d
	c.TrialOutcome = d.TrialOutcome.clone()
	c.GoldPerSecond = maps.Clone(d.GoldPerSecond)
	c.AdjustedRates = maps.Clone(d.AdjustedRates)
	return &c
}

func (o TrialOutcome) clone() TrialOutcome {
	o.UsedRunesBreakdown = maps.Clone(o.UsedRunesBreakdown)
	o.PetRolls = maps.Clone(o.PetRolls)
	o.MarkRolls = maps.Clone(o.MarkRolls)
	return o
}

// Validate checks an outcome received from a compute channel.
func (o *TrialOutcome) Validate() error {
	if !o.SimSuccess {
		if o.Reason == "" {
			return fmt.Errorf("failed outcome carries no reason")
		}
		return nil
	}
	if !(o.KillTimeS > 0) || math.IsInf(o.KillTimeS, 0) {
		return fmt.Errorf("killTimeS must be positive and finite, got %v", o.KillTimeS)
	}
	if o.DeathRate < 0 || o.DeathRate > 1 || math.IsNaN(o.DeathRate) {
		return fmt.Errorf("deathRate must be in [0, 1], got %v", o.DeathRate)
	}
	for _, f := range rateFields {
		v := *f.ptr(o)
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return fmt.Errorf("%s must be finite and non-negative, got %v", f.name, v)
		}
	}
	for _, m := range []map[string]float64{o.UsedRunesBreakdown, o.PetRolls, o.MarkRolls} {
		for k, v := range m {
			if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
				return fmt.Errorf("breakdown %q must be finite and non-negative, got %v", k, v)
			}
		}
	}
	return nil
}

// rateField addresses one per-second rate of a TrialOutcome. The table drives
// time-weighted aggregation, supply adjustment and validation.
type rateField struct {
	name string
	ptr  func(*TrialOutcome) *float64
}

var rateFields = []rateField{
	{"xpPerSecond", func(o *TrialOutcome) *float64 { return &o.XPPerSecond }},
	{"hpXpPerSecond", func(o *TrialOutcome) *float64 { return &o.HPXPPerSecond }},
	{"prayerXpPerSecond", func(o *TrialOutcome) *float64 { return &o.PrayerXPPerSecond }},
	{"slayerXpPerSecond", func(o *TrialOutcome) *float64 { return &o.SlayerXPPerSecond }},
	{"summoningXpPerSecond", func(o *TrialOutcome) *float64 { return &o.SummoningXPPerSecond }},
	{"ppConsumedPerSecond", func(o *TrialOutcome) *float64 { return &o.PPConsumedPerSecond }},
	{"ppGainedPerSecond", func(o *TrialOutcome) *float64 { return &o.PPGainedPerSecond }},
	{"dmgPerSecond", func(o *TrialOutcome) *float64 { return &o.DmgPerSecond }},
	{"ammoUsedPerSecond", func(o *TrialOutcome) *float64 { return &o.AmmoUsedPerSecond }},
	{"runesUsedPerSecond", func(o *TrialOutcome) *float64 { return &o.RunesUsedPerSecond }},
	{"combinationRunesUsedPerSecond", func(o *TrialOutcome) *float64 { return &o.CombinationRunesUsedPerSecond }},
	{"potionsUsedPerSecond", func(o *TrialOutcome) *float64 { return &o.PotionsUsedPerSecond }},
	{"tabletsUsedPerSecond", func(o *TrialOutcome) *float64 { return &o.TabletsUsedPerSecond }},
	{"atePerSecond", func(o *TrialOutcome) *float64 { return &o.AtePerSecond }},
	{"attacksMadePerSecond", func(o *TrialOutcome) *float64 { return &o.AttacksMadePerSecond }},
	{"attacksTakenPerSecond", func(o *TrialOutcome) *float64 { return &o.AttacksTakenPerSecond }},
}
