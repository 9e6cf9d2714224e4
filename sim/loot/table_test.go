package loot

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/combat-sim/combat-sim/sim"
)

func TestExpectedQuantity_OpensNestedTables(t *testing.T) {
	reg := lootFixture()
	rows := reg.monsters["cow"].Loot

	// half the rolls are a gem, half a chest holding a gem a quarter of the time
	assert.InDelta(t, 0.5+0.5*0.25, ExpectedQuantity(reg, rows, "gem"), 1e-12)
	assert.InDelta(t, 0.5*0.75*2, ExpectedQuantity(reg, rows, "bone"), 1e-12)
	assert.Zero(t, ExpectedQuantity(reg, rows, "chest"), "openable items are not terminal")
	assert.Zero(t, ExpectedQuantity(reg, rows, "signet"))
}

func TestExpectedValue_PerCurrency(t *testing.T) {
	reg := lootFixture()
	reg.items["shard"] = &sim.Item{ID: "shard", Value: sim.Price{Currency: "ap", Amount: 8}}
	rows := []sim.DropRow{
		{Item: "gem", Weight: 1, Min: 1, Max: 3},
		{Item: "shard", Weight: 1, Min: 1, Max: 1},
		{Item: "ghost", Weight: 0, Min: 1, Max: 1},
	}

	got := ExpectedValue(reg, rows)

	assert.InDelta(t, 0.5*2*100, got["gp"], 1e-12)
	assert.InDelta(t, 0.5*8, got["ap"], 1e-12)
	assert.Len(t, got, 2)
}

func TestExpectedValue_EmptyTable(t *testing.T) {
	assert.Empty(t, ExpectedValue(lootFixture(), nil))
	assert.Empty(t, ExpectedValue(lootFixture(), []sim.DropRow{{Item: "gem", Weight: 0}}))
}

func TestItemValue_OpensChest(t *testing.T) {
	reg := lootFixture()

	assert.InDelta(t, 100.0, ItemValue(reg, "gem")["gp"], 1e-12)
	assert.InDelta(t, 0.25*100+0.75*2*5, ItemValue(reg, "chest")["gp"], 1e-12)
	assert.InDelta(t, 0.25, ItemQuantity(reg, "chest", "gem"), 1e-12)
	assert.InDelta(t, 1.0, ItemQuantity(reg, "gem", "gem"), 1e-12)
}

func TestExpectedQuantity_CycleStopsAtRepeatedItem(t *testing.T) {
	// GIVEN a sack that usually holds a gem but sometimes another sack
	reg := lootFixture()
	reg.items["sack"] = &sim.Item{ID: "sack", Value: sim.Price{Currency: "gp", Amount: 1}, Table: []sim.DropRow{
		{Item: "gem", Weight: 3, Min: 1, Max: 1},
		{Item: "sack", Weight: 1, Min: 1, Max: 1},
	}}

	// WHEN a sack is opened
	gems := ItemQuantity(reg, "sack", "gem")
	value := ItemValue(reg, "sack")

	// THEN the inner sack is treated as terminal and valued at face value
	assert.InDelta(t, 0.75, gems, 1e-12)
	assert.InDelta(t, 0.75*100+0.25*1, value["gp"], 1e-12)
}

func TestExpectedQuantity_DeepNestingIsBounded(t *testing.T) {
	// GIVEN a chain of boxes deeper than the walk limit ending in a gem
	reg := lootFixture()
	depth := MaxTableDepth + 4
	for i := 0; i < depth; i++ {
		next := "gem"
		if i < depth-1 {
			next = boxID(i + 1)
		}
		reg.items[boxID(i)] = &sim.Item{ID: boxID(i), Table: []sim.DropRow{{Item: next, Weight: 1, Min: 1, Max: 1}}}
	}

	// WHEN the outer box is opened
	// THEN the walk stops without reaching the gem
	assert.Zero(t, ItemQuantity(reg, boxID(0), "gem"))
}

func TestExpectedQuantity_UnknownItemPanics(t *testing.T) {
	assert.Panics(t, func() {
		ExpectedQuantity(lootFixture(), []sim.DropRow{{Item: "ghost", Weight: 1, Min: 1, Max: 1}}, "gem")
	})
}

func boxID(i int) string {
	return "box" + string(rune('a'+i))
}
