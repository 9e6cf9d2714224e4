package sim

import (
	"math"
	"sort"
)

// supplyRates maps a consumable kind to the rate it is used at.
var supplyRates = map[string]func(d *SimulationData) float64{
	"food":              func(d *SimulationData) float64 { return d.AtePerSecond },
	"potions":           func(d *SimulationData) float64 { return d.PotionsUsedPerSecond },
	"runes":             func(d *SimulationData) float64 { return d.RunesUsedPerSecond },
	"combination_runes": func(d *SimulationData) float64 { return d.CombinationRunesUsedPerSecond },
	"ammo":              func(d *SimulationData) float64 { return d.AmmoUsedPerSecond },
	"tablets":           func(d *SimulationData) float64 { return d.TabletsUsedPerSecond },
}

// SupplyKinds returns the accepted consumable kinds in sorted order.
func SupplyKinds() []string {
	kinds := make([]string, 0, len(supplyRates))
	for k := range supplyRates {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// SustainSeconds returns how long the supply lasts at the record's rates.
// Consumables without a stock entry are unlimited; +Inf means nothing runs out.
func SustainSeconds(d *SimulationData, supply map[string]float64) float64 {
	sustain := math.Inf(1)
	for kind, stock := range supply {
		rate := supplyRates[kind](d)
		if rate <= 0 {
			continue
		}
		sustain = math.Min(sustain, stock/rate)
	}
	return sustain
}

// AdjustForSupply scales the rate plots of d by the fraction of the window the
// supply sustains and stores them in AdjustedRates. When the supply lasts the
// whole window, or the unit is per kill, AdjustedRates is cleared.
func AdjustForSupply(d *SimulationData, supply map[string]float64, unit TimeUnit) {
	d.AdjustedRates = nil
	if !d.SimSuccess || len(supply) == 0 || unit == UnitKill {
		return
	}
	window := unit.Window(d.KillTimeS)
	sustain := SustainSeconds(d, supply)
	if sustain >= window {
		return
	}
	factor := sustain / window
	d.AdjustedRates = make(map[string]float64)
	for _, p := range plotTypes {
		if p.Scaled {
			d.AdjustedRates[p.Name] = p.value(d) * factor
		}
	}
	for currency, rate := range d.GoldPerSecond {
		d.AdjustedRates[goldPlotPrefix+currency] = rate * factor
	}
}

// ApplySupplyAdjustment runs AdjustForSupply over every record of the store.
func ApplySupplyAdjustment(store *Store, supply map[string]float64, unit TimeUnit) {
	for _, key := range store.Leaves() {
		if d, ok := store.Leaf(key); ok {
			AdjustForSupply(d, supply, unit)
		}
	}
	for _, kind := range append(append([]EntityKind(nil), ContainerKinds...), KindSlayerTask) {
		for _, ref := range store.Composites(kind) {
			if d, ok := store.Composite(ref); ok {
				AdjustForSupply(d, supply, unit)
			}
		}
	}
}
