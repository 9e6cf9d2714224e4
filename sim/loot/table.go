// Package loot computes the loot-derived fields of simulation records: gold
// value per currency, drop rates and the rare-event chances.
package loot

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/combat-sim/combat-sim/sim"
)

// MaxTableDepth bounds nested drop-table walks.
const MaxTableDepth = 16

// walker expands drop tables through openable items with a depth and cycle
// guard. Truncated branches are logged once per walker.
type walker struct {
	reg    sim.Registry
	warned map[string]bool
}

func newWalker(reg sim.Registry) *walker {
	return &walker{reg: reg, warned: make(map[string]bool)}
}

// visit calls fn for every terminal item reachable from rows with the
// expected quantity of that item per roll of rows. Openable items are
// expanded into their own tables; an item is terminal when it has no table.
func (w *walker) visit(rows []sim.DropRow, mult float64, path []string, fn func(item *sim.Item, qty float64)) {
	total := totalWeight(rows)
	if total <= 0 {
		return
	}
	for _, row := range rows {
		if row.Weight <= 0 {
			continue
		}
		qty := mult * row.Weight / total * row.AverageQuantity()
		item, ok := w.reg.Item(row.Item)
		if !ok {
			panic(fmt.Sprintf("loot: unknown item %q in drop table", row.Item))
		}
		if len(item.Table) == 0 {
			fn(item, qty)
			continue
		}
		if len(path) >= MaxTableDepth || contains(path, item.ID) {
			w.truncated(append(path, item.ID))
			fn(item, qty)
			continue
		}
		w.visit(item.Table, qty, append(path, item.ID), fn)
	}
}

func (w *walker) truncated(path []string) {
	key := strings.Join(path, ">")
	if w.warned[key] {
		return
	}
	w.warned[key] = true
	logrus.Warnf("loot: drop table walk stopped at %s (cycle or depth > %d)", key, MaxTableDepth)
}

// ExpectedQuantity returns the expected number of target items obtained from
// one roll of rows, opening nested tables.
func ExpectedQuantity(reg sim.Registry, rows []sim.DropRow, target string) float64 {
	var sum float64
	newWalker(reg).visit(rows, 1, nil, func(item *sim.Item, qty float64) {
		if item.ID == target {
			sum += qty
		}
	})
	return sum
}

// ExpectedValue returns the expected sale value of one roll of rows per
// currency. Openable items are valued by their contents.
func ExpectedValue(reg sim.Registry, rows []sim.DropRow) map[string]float64 {
	out := make(map[string]float64)
	newWalker(reg).visit(rows, 1, nil, func(item *sim.Item, qty float64) {
		if item.Value.Amount > 0 {
			out[item.Value.Currency] += qty * item.Value.Amount
		}
	})
	return out
}

// ItemValue returns the value of one unit of an item per currency, opening it
// when it has a table.
func ItemValue(reg sim.Registry, id string) map[string]float64 {
	return ExpectedValue(reg, []sim.DropRow{{Item: id, Weight: 1, Min: 1, Max: 1}})
}

// ItemQuantity returns how many target items one unit of item id yields,
// opening it when it has a table.
func ItemQuantity(reg sim.Registry, id, target string) float64 {
	return ExpectedQuantity(reg, []sim.DropRow{{Item: id, Weight: 1, Min: 1, Max: 1}}, target)
}

func totalWeight(rows []sim.DropRow) float64 {
	var total float64
	for _, r := range rows {
		if r.Weight > 0 {
			total += r.Weight
		}
	}
	return total
}

func contains(path []string, id string) bool {
	for _, p := range path {
		if p == id {
			return true
		}
	}
	return false
}
