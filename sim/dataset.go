package sim

import (
	"fmt"
	"math"
	"strings"
)

// PlotType is one metric the bar chart can show.
type PlotType struct {
	Name  string
	Label string
	// Scaled metrics are per-second rates multiplied by the time unit window.
	Scaled bool
	value  func(d *SimulationData) float64
}

// Value returns the metric of d, unscaled.
func (p PlotType) Value(d *SimulationData) float64 {
	return p.value(d)
}

func ratePlot(name, label string, get func(d *SimulationData) float64) PlotType {
	return PlotType{Name: name, Label: label, Scaled: true, value: get}
}

func plainPlot(name, label string, get func(d *SimulationData) float64) PlotType {
	return PlotType{Name: name, Label: label, value: get}
}

// goldPlotPrefix prefixes the per-currency gold plots, e.g. "gp:gold".
const goldPlotPrefix = "gp:"

var plotTypes = []PlotType{
	ratePlot("xp", "XP", func(d *SimulationData) float64 { return d.XPPerSecond }),
	ratePlot("hp_xp", "Hitpoints XP", func(d *SimulationData) float64 { return d.HPXPPerSecond }),
	ratePlot("prayer_xp", "Prayer XP", func(d *SimulationData) float64 { return d.PrayerXPPerSecond }),
	ratePlot("slayer_xp", "Slayer XP", func(d *SimulationData) float64 { return d.SlayerXPPerSecond }),
	ratePlot("summoning_xp", "Summoning XP", func(d *SimulationData) float64 { return d.SummoningXPPerSecond }),
	ratePlot("pp_used", "Prayer points used", func(d *SimulationData) float64 { return d.PPConsumedPerSecond }),
	ratePlot("pp_gained", "Prayer points gained", func(d *SimulationData) float64 { return d.PPGainedPerSecond }),
	ratePlot("damage", "Damage dealt", func(d *SimulationData) float64 { return d.DmgPerSecond }),
	ratePlot("ammo", "Ammo used", func(d *SimulationData) float64 { return d.AmmoUsedPerSecond }),
	ratePlot("runes", "Runes used", func(d *SimulationData) float64 { return d.RunesUsedPerSecond }),
	ratePlot("combination_runes", "Combination runes used", func(d *SimulationData) float64 { return d.CombinationRunesUsedPerSecond }),
	ratePlot("potions", "Potions used", func(d *SimulationData) float64 { return d.PotionsUsedPerSecond }),
	ratePlot("tablets", "Tablets used", func(d *SimulationData) float64 { return d.TabletsUsedPerSecond }),
	ratePlot("food", "Food eaten", func(d *SimulationData) float64 { return d.AtePerSecond }),
	ratePlot("attacks_made", "Attacks made", func(d *SimulationData) float64 { return d.AttacksMadePerSecond }),
	ratePlot("attacks_taken", "Attacks taken", func(d *SimulationData) float64 { return d.AttacksTakenPerSecond }),
	ratePlot("kills", "Kills", func(d *SimulationData) float64 { return d.KillsPerSecond }),
	ratePlot("drops", "Drops", func(d *SimulationData) float64 { return d.DropChance }),
	plainPlot("kill_time", "Kill time (s)", func(d *SimulationData) float64 { return d.KillTimeS }),
	plainPlot("death_rate", "Death rate", func(d *SimulationData) float64 { return d.DeathRate }),
	plainPlot("highest_hit_taken", "Highest hit taken", func(d *SimulationData) float64 { return d.HighestDamageTaken }),
	plainPlot("highest_reflect_taken", "Highest reflect taken", func(d *SimulationData) float64 { return d.HighestReflectDamageTaken }),
	plainPlot("lowest_hitpoints", "Lowest hitpoints", func(d *SimulationData) float64 { return d.LowestHitpoints }),
	plainPlot("signet", "Signet chance", func(d *SimulationData) float64 { return d.SignetChance }),
	plainPlot("pet", "Pet chance", func(d *SimulationData) float64 { return d.PetChance }),
	plainPlot("mark", "Mark chance", func(d *SimulationData) float64 { return d.MarkChance }),
	plainPlot("sim_time", "Simulation time (ms)", func(d *SimulationData) float64 { return d.SimulationTime }),
}

// PlotTypes returns the fixed plot types in menu order. Per-currency gold plots
// are resolved by PlotByName.
func PlotTypes() []PlotType {
	return append([]PlotType(nil), plotTypes...)
}

// PlotByName resolves a plot type. "gp:<currency>" selects the gold rate of a
// currency.
func PlotByName(name string) (PlotType, bool) {
	if currency, ok := strings.CutPrefix(name, goldPlotPrefix); ok && currency != "" {
		return goldPlot(currency), true
	}
	for _, p := range plotTypes {
		if p.Name == name {
			return p, true
		}
	}
	return PlotType{}, false
}

func goldPlot(currency string) PlotType {
	return ratePlot(goldPlotPrefix+currency, fmt.Sprintf("%s per time", currency), func(d *SimulationData) float64 {
		return d.GoldPerSecond[currency]
	})
}

// Bars returns the chart bars in display order: open-world monsters, the
// wandering monster, slayer-area monsters, dungeons, strongholds, depths and
// slayer tasks. A monster appears once, at its first position.
func Bars(reg Registry) []EntityRef {
	var bars []EntityRef
	seen := make(map[string]bool)
	addMonster := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		bars = append(bars, EntityRef{Kind: KindMonster, ID: id})
	}
	for _, area := range reg.Areas() {
		if area.Kind == AreaCombat {
			for _, m := range area.Monsters {
				addMonster(m)
			}
		}
	}
	addMonster(reg.WanderingMonster())
	for _, area := range reg.Areas() {
		if area.Kind == AreaSlayer {
			for _, m := range area.Monsters {
				addMonster(m)
			}
		}
	}
	for _, kind := range ContainerKinds {
		for _, c := range reg.Containers(kind) {
			bars = append(bars, c.Ref())
		}
	}
	for _, t := range reg.SlayerTasks() {
		bars = append(bars, EntityRef{Kind: KindSlayerTask, ID: t.ID})
	}
	return bars
}

// GetDataSet returns one value per bar of Bars(reg). Bars whose record failed
// or whose entity is filtered are NaN. Scaled plots report the rate over the
// time unit window and prefer the supply-adjusted rate when one exists.
func GetDataSet(store *Store, reg Registry, plot PlotType, unit TimeUnit) []float64 {
	bars := Bars(reg)
	out := make([]float64, len(bars))
	for i, ref := range bars {
		out[i] = barValue(store, ref, plot, unit)
	}
	return out
}

func barValue(store *Store, ref EntityRef, plot PlotType, unit TimeUnit) float64 {
	d, ok := store.Record(ref)
	if !ok || !d.SimSuccess || !store.Included(ref) {
		return math.NaN()
	}
	v := plot.value(d)
	if !plot.Scaled {
		return v
	}
	if adj, ok := d.AdjustedRates[plot.Name]; ok {
		v = adj
	}
	return v * unit.Window(d.KillTimeS)
}
