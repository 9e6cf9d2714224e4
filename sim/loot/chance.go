package loot

import (
	"math"

	"github.com/combat-sim/combat-sim/sim"
)

// Project converts a per-kill chance into the chance of at least one success
// within the time unit window: 1 - (1 - p)^(T / killTimeS). For UnitKill the
// per-kill chance is returned unchanged.
func Project(p, killTimeS float64, unit sim.TimeUnit) float64 {
	if unit == sim.UnitKill {
		return p
	}
	if p <= 0 || !(killTimeS > 0) {
		return 0
	}
	if p >= 1 {
		return 1
	}
	kills := unit.Window(killTimeS) / killTimeS
	return -math.Expm1(kills * math.Log1p(-p))
}

// RollChancePerKill returns the chance that at least one of the rolls fires
// during one kill. rolls maps a roll source to its interval in milliseconds;
// each roll succeeds with probability interval/divisor.
func RollChancePerKill(rolls map[string]float64, divisor, killTimeS float64) float64 {
	if divisor <= 0 || !(killTimeS > 0) {
		return 0
	}
	killTimeMS := killTimeS * 1000
	var logMiss float64
	for _, interval := range rolls {
		if interval <= 0 {
			continue
		}
		p := math.Min(1, interval/divisor)
		if p >= 1 {
			return 1
		}
		logMiss += killTimeMS / interval * math.Log1p(-p)
	}
	return -math.Expm1(logMiss)
}

// SignetChancePerKill returns the per-kill chance of the signet roll, which
// grows with the monster's combat level.
func SignetChancePerKill(combatLevel int, divisor float64) float64 {
	if divisor <= 0 || combatLevel <= 0 {
		return 0
	}
	return math.Min(1, float64(combatLevel)/divisor)
}
