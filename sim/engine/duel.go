package engine

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/combat-sim/combat-sim/sim"
)

// Experience awarded per unit of combat activity.
const (
	combatXPPerDamage    = 4.0
	hpXPPerDamage        = 1.33
	prayerXPPerPoint     = 2.0
	summoningXPPerTablet = 3.0
	slayerXPDivisor      = 10.0 // slayer XP per kill is monster hitpoints / divisor
)

// stopCheckTicks is how often a running trial polls for cancellation.
const stopCheckTicks = 1024

// duel is one player-versus-monster trial.
type duel struct {
	player    *sim.CombatProfile
	monster   *sim.Monster
	rng       *rand.Rand
	stop      func() bool
	canDamage bool
	onTask    bool
}

// tally accumulates the raw counts of a trial.
type tally struct {
	ticks        int64
	kills        int
	deaths       int
	attacksMade  float64
	attacksTaken float64
	damage       float64
	eaten        float64
	ppUsed       float64
	ppGained     float64
	ammo         float64
	runes        map[string]float64
	comboRunes   float64
	potions      float64
	tablets      float64
	highestHit   float64
	maxReflect   float64
	lowestHP     float64
}

func ticksFor(intervalMS float64) int64 {
	return int64(math.Max(1, math.Ceil(intervalMS/TickMS)))
}

// run fights until trialCount kills resolve or the tick budget is used.
func (d *duel) run(trialCount int, budget int64) sim.TrialOutcome {
	if !d.canDamage {
		return sim.TrialOutcome{Reason: fmt.Sprintf("requires %s damage", d.monster.DamageType)}
	}
	p, m := d.player, d.monster
	t := &tally{runes: make(map[string]float64), lowestHP: p.Hitpoints}
	playerEvery := ticksFor(p.AttackIntervalMS)
	monsterEvery := ticksFor(m.AttackIntervalMS)

	hp := p.Hitpoints
	monsterHP := m.Hitpoints
	nextPlayer, nextMonster := playerEvery, monsterEvery
	playerHit := p.Accuracy * (1 - m.Evasion)
	monsterHit := m.Accuracy * (1 - p.Evasion)

	for t.kills < trialCount {
		if t.ticks >= budget {
			return sim.TrialOutcome{Reason: ReasonTickBudget, TickCount: t.ticks}
		}
		if t.ticks%stopCheckTicks == 0 && d.stop() {
			return sim.TrialOutcome{Reason: ReasonCancelled, TickCount: t.ticks}
		}
		t.ticks++

		if t.ticks >= nextPlayer {
			nextPlayer += playerEvery
			t.attacksMade++
			d.consume(t)
			if d.rng.Float64() < playerHit {
				dmg := p.MinHit + d.rng.Float64()*(p.MaxHit-p.MinHit)
				t.damage += math.Min(dmg, monsterHP)
				monsterHP -= dmg
				if m.ReflectDamage > 0 {
					hp -= m.ReflectDamage
					t.maxReflect = math.Max(t.maxReflect, m.ReflectDamage)
				}
			}
		}
		if monsterHP <= 0 {
			t.kills++
			t.ppGained += p.PrayerPointsPerKill
			monsterHP = m.Hitpoints
			nextMonster = t.ticks + monsterEvery
		} else if t.ticks >= nextMonster {
			nextMonster += monsterEvery
			t.attacksTaken++
			if m.MaxHit > 0 && d.rng.Float64() < monsterHit {
				minHit := math.Min(1, m.MaxHit)
				dmg := (minHit + d.rng.Float64()*(m.MaxHit-minHit)) * (1 - p.DamageReduction)
				hp -= dmg
				t.highestHit = math.Max(t.highestHit, dmg)
			}
		}

		hp = d.autoEat(t, hp)
		t.lowestHP = math.Min(t.lowestHP, math.Max(hp, 0))
		if hp <= 0 {
			// Death abandons the current kill; the fight restarts at full health.
			t.deaths++
			hp = p.Hitpoints
			monsterHP = m.Hitpoints
			nextPlayer = t.ticks + playerEvery
			nextMonster = t.ticks + monsterEvery
		}
	}
	return d.outcome(t)
}

// consume charges the per-attack consumables.
func (d *duel) consume(t *tally) {
	p := d.player
	t.ppUsed += p.PrayerPointsPerAttack
	t.ammo += p.AmmoPerAttack
	for id, n := range p.RunesPerAttack {
		t.runes[id] += n
	}
	t.comboRunes += p.CombinationRunesPerAttack
	t.potions += p.PotionChargesPerAttack
	if len(p.Familiars) > 0 {
		t.tablets += p.TabletsPerAttack
	}
}

// autoEat eats food while hitpoints are below the threshold.
func (d *duel) autoEat(t *tally, hp float64) float64 {
	p := d.player
	if p.FoodHealing <= 0 || hp <= 0 {
		return hp
	}
	limit := p.AutoEatThreshold * p.Hitpoints
	for hp < limit {
		hp = math.Min(p.Hitpoints, hp+p.FoodHealing)
		t.eaten++
	}
	return hp
}

func (d *duel) outcome(t *tally) sim.TrialOutcome {
	p, m := d.player, d.monster
	seconds := float64(t.ticks) * TickMS / 1000
	rate := func(n float64) float64 { return n / seconds }

	o := sim.TrialOutcome{
		SimSuccess: true,
		TickCount:  t.ticks,

		XPPerSecond:       rate(t.damage * combatXPPerDamage),
		HPXPPerSecond:     rate(t.damage * hpXPPerDamage),
		PrayerXPPerSecond: rate(t.ppUsed * prayerXPPerPoint),

		PPConsumedPerSecond:           rate(t.ppUsed),
		PPGainedPerSecond:             rate(t.ppGained),
		DmgPerSecond:                  rate(t.damage),
		AmmoUsedPerSecond:             rate(t.ammo),
		CombinationRunesUsedPerSecond: rate(t.comboRunes),
		PotionsUsedPerSecond:          rate(t.potions),
		TabletsUsedPerSecond:          rate(t.tablets),
		SummoningXPPerSecond:          rate(t.tablets * summoningXPPerTablet),
		AtePerSecond:                  rate(t.eaten),
		AttacksMadePerSecond:          rate(t.attacksMade),
		AttacksTakenPerSecond:         rate(t.attacksTaken),

		HighestDamageTaken:        t.highestHit,
		HighestReflectDamageTaken: t.maxReflect,
		LowestHitpoints:           t.lowestHP,
		DeathRate:                 float64(t.deaths) / float64(t.deaths+t.kills),
		KillTimeS:                 seconds / float64(t.kills),
	}
	if d.onTask {
		o.SlayerXPPerSecond = rate(float64(t.kills) * m.Hitpoints / slayerXPDivisor)
	}
	if len(t.runes) > 0 {
		ids := make([]string, 0, len(t.runes))
		for id := range t.runes {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		o.UsedRunesBreakdown = make(map[string]float64, len(ids))
		for _, id := range ids {
			o.UsedRunesBreakdown[id] = rate(t.runes[id])
			o.RunesUsedPerSecond += rate(t.runes[id])
		}
	}
	if p.StyleSkill != "" {
		o.PetRolls = map[string]float64{p.StyleSkill: p.AttackIntervalMS}
	}
	if len(p.Familiars) > 0 {
		o.MarkRolls = make(map[string]float64, len(p.Familiars))
		for _, f := range p.Familiars {
			o.MarkRolls[f] = p.AttackIntervalMS
		}
	}
	return o
}
