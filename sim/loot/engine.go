package loot

import (
	"github.com/combat-sim/combat-sim/sim"
)

// Engine implements sim.ValueEngine.
type Engine struct{}

// NewEngine creates a loot value engine.
func NewEngine() *Engine {
	return &Engine{}
}

// killValue is what one kill of a monster yields.
type killValue struct {
	gold   map[string]float64 // currency -> expected value
	drops  float64            // expected count of the tracked drop item
	signet float64            // chance of the signet roll
}

// Update writes gold, drop and chance fields on every record. Leaves are valued
// first because composite chances are averaged from their members.
func (e *Engine) Update(store *sim.Store, reg sim.Registry, settings *sim.Settings) {
	u := &update{reg: reg, settings: settings, cache: make(map[string]killValue)}
	for _, key := range store.Leaves() {
		d, ok := store.Leaf(key)
		if !ok {
			continue
		}
		u.leaf(d)
	}
	for _, kind := range sim.ContainerKinds {
		for _, c := range reg.Containers(kind) {
			if d, ok := store.Composite(c.Ref()); ok {
				u.container(store, c, d)
			}
		}
	}
	for _, t := range reg.SlayerTasks() {
		if d, ok := store.Composite(sim.EntityRef{Kind: sim.KindSlayerTask, ID: t.ID}); ok {
			u.task(store, t, d)
		}
	}
}

type update struct {
	reg      sim.Registry
	settings *sim.Settings
	cache    map[string]killValue
}

func (u *update) leaf(d *sim.SimulationData) {
	clearDerived(d)
	if !d.SimSuccess {
		return
	}
	kv := u.monster(d.MonsterID)
	unit := u.settings.TimeUnit
	d.GoldPerSecond = perSecond(kv.gold, d.KillTimeS)
	d.DropChance = kv.drops / d.KillTimeS
	d.SignetChance = Project(kv.signet, d.KillTimeS, unit)
	pet := RollChancePerKill(d.PetRolls, u.settings.Rolls.PetDivisor, d.KillTimeS)
	d.PetChance = Project(pet, d.KillTimeS, unit)
	mark := RollChancePerKill(d.MarkRolls, u.settings.Rolls.MarkDivisor, d.KillTimeS)
	d.MarkChance = Project(mark, d.KillTimeS, unit)
}

func (u *update) container(store *sim.Store, c *sim.Container, d *sim.SimulationData) {
	clearDerived(d)
	if !d.SimSuccess {
		return
	}
	gold := make(map[string]float64)
	var drops float64
	var members []*sim.SimulationData
	for _, m := range c.Monsters {
		md, ok := store.Leaf(sim.WorkKey{MonsterID: m, EntityID: c.ID})
		if !ok || !md.SimSuccess {
			continue
		}
		members = append(members, md)
		kv := u.monster(m)
		addAll(gold, kv.gold, 1)
		drops += kv.drops
	}
	if len(c.Rewards) > 0 {
		addAll(gold, ExpectedValue(u.reg, c.Rewards), 1)
		drops += u.dropsIn(c.Rewards)
	}
	for _, f := range c.FixedRewards {
		addAll(gold, ItemValue(u.reg, f.Item), f.Quantity)
		if target := u.settings.DropItem; target != "" {
			drops += ItemQuantity(u.reg, f.Item, target) * f.Quantity
		}
	}
	d.GoldPerSecond = perSecond(gold, d.KillTimeS)
	d.DropChance = drops / d.KillTimeS
	meanChances(d, members)
}

func (u *update) task(store *sim.Store, t *sim.SlayerTask, d *sim.SimulationData) {
	clearDerived(d)
	if !d.SimSuccess {
		return
	}
	gold := make(map[string]float64)
	var drops, seconds float64
	var members []*sim.SimulationData
	for _, m := range store.TaskMembers(t.ID) {
		md, ok := store.Leaf(sim.WorkKey{MonsterID: m})
		if !ok || !md.SimSuccess {
			continue
		}
		members = append(members, md)
		kv := u.monster(m)
		addAll(gold, kv.gold, 1)
		drops += kv.drops
		seconds += md.KillTimeS
	}
	if len(members) == 0 {
		return
	}
	d.GoldPerSecond = perSecond(gold, seconds)
	d.DropChance = drops / seconds
	meanChances(d, members)
}

// monster returns the expected yield of one kill of monster id.
func (u *update) monster(id string) killValue {
	if kv, ok := u.cache[id]; ok {
		return kv
	}
	m, ok := u.reg.Monster(id)
	if !ok {
		return killValue{}
	}
	var realm sim.Realm
	if r, ok := u.reg.Realm(m.Realm); ok {
		realm = *r
	}
	double := 1 + u.settings.DoubleLootChance/100
	lootMult := m.LootChance / 100 * (1 - u.settings.NoLootChance/100) * double

	kv := killValue{gold: make(map[string]float64)}
	if m.Gold != nil {
		currency := m.Gold.Currency
		if currency == "" {
			currency = realm.Currency
		}
		kv.gold[currency] += (m.Gold.Min + m.Gold.Max) / 2
	}
	if len(m.Loot) > 0 {
		addAll(kv.gold, ExpectedValue(u.reg, m.Loot), lootMult)
		kv.drops += u.dropsIn(m.Loot) * lootMult
	}
	if m.Bones != nil {
		addAll(kv.gold, ItemValue(u.reg, m.Bones.Item), m.Bones.Quantity*double)
		if target := u.settings.DropItem; target != "" {
			kv.drops += ItemQuantity(u.reg, m.Bones.Item, target) * m.Bones.Quantity * double
		}
	}
	if signet := u.reg.SignetItem(); realm.Signet && signet != "" {
		kv.signet = SignetChancePerKill(m.CombatLevel, u.settings.Rolls.SignetDivisor)
		addAll(kv.gold, ItemValue(u.reg, signet), kv.signet)
		if u.settings.DropItem == signet {
			kv.drops += kv.signet
		}
	}
	u.cache[id] = kv
	return kv
}

func (u *update) dropsIn(rows []sim.DropRow) float64 {
	if u.settings.DropItem == "" {
		return 0
	}
	return ExpectedQuantity(u.reg, rows, u.settings.DropItem)
}

// meanChances sets the composite chances to the arithmetic mean over the
// members that simulated successfully.
func meanChances(d *sim.SimulationData, members []*sim.SimulationData) {
	if len(members) == 0 {
		return
	}
	n := float64(len(members))
	for _, m := range members {
		d.SignetChance += m.SignetChance / n
		d.PetChance += m.PetChance / n
		d.MarkChance += m.MarkChance / n
	}
}

func clearDerived(d *sim.SimulationData) {
	d.GoldPerSecond = nil
	d.DropChance = 0
	d.SignetChance = 0
	d.PetChance = 0
	d.MarkChance = 0
}

func perSecond(perKill map[string]float64, seconds float64) map[string]float64 {
	if len(perKill) == 0 || !(seconds > 0) {
		return nil
	}
	out := make(map[string]float64, len(perKill))
	for c, v := range perKill {
		out[c] = v / seconds
	}
	return out
}

func addAll(dst, src map[string]float64, scale float64) {
	for k, v := range src {
		dst[k] += v * scale
	}
}
