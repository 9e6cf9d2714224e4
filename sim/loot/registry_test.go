package loot

import "github.com/combat-sim/combat-sim/sim"

// mapRegistry is a hand-built sim.Registry for value tests.
type mapRegistry struct {
	realms     map[string]*sim.Realm
	items      map[string]*sim.Item
	monsters   map[string]*sim.Monster
	containers map[sim.EntityKind][]*sim.Container
	tasks      []*sim.SlayerTask
	signet     string
}

// lootFixture prices:
//
//	gem 100gp, bone 5gp, signet 1000gp
//	chest opens to gem (weight 1) or 2 bones (weight 3)
//	cow: level 100, 10-20gp, 1 bone, 50% loot of gem or chest
func lootFixture() *mapRegistry {
	return &mapRegistry{
		realms: map[string]*sim.Realm{
			"melvor": {ID: "melvor", Currency: "gp", Signet: true},
			"abyss":  {ID: "abyss", Currency: "ap"},
		},
		items: map[string]*sim.Item{
			"gem":    {ID: "gem", Value: sim.Price{Currency: "gp", Amount: 100}},
			"bone":   {ID: "bone", Value: sim.Price{Currency: "gp", Amount: 5}},
			"signet": {ID: "signet", Value: sim.Price{Currency: "gp", Amount: 1000}},
			"chest": {ID: "chest", Table: []sim.DropRow{
				{Item: "gem", Weight: 1, Min: 1, Max: 1},
				{Item: "bone", Weight: 3, Min: 2, Max: 2},
			}},
		},
		monsters: map[string]*sim.Monster{
			"cow": {
				ID: "cow", Realm: "melvor", CombatLevel: 100, LootChance: 50,
				Gold:  &sim.GoldDrop{Currency: "gp", Min: 10, Max: 20},
				Bones: &sim.ItemQuantity{Item: "bone", Quantity: 1},
				Loot:  []sim.DropRow{
					{Item: "gem", Weight: 1, Min: 1, Max: 1},
					{Item: "chest", Weight: 1, Min: 1, Max: 1},
				},
			},
			"shade": {
				ID: "shade", Realm: "abyss", CombatLevel: 300, LootChance: 100,
				Gold: &sim.GoldDrop{Min: 4, Max: 4},
			},
		},
		containers: map[sim.EntityKind][]*sim.Container{
			sim.KindDungeon: {{
				ID: "raid", Kind: sim.KindDungeon, Realm: "melvor",
				Monsters:     []string{"cow", "cow"},
				Rewards:      []sim.DropRow{{Item: "gem", Weight: 1, Min: 1, Max: 1}},
				FixedRewards: []sim.ItemQuantity{{Item: "bone", Quantity: 2}},
			}},
		},
		tasks:  []*sim.SlayerTask{{ID: "easy", Realm: "melvor", MinLevel: 1}},
		signet: "signet",
	}
}

func (r *mapRegistry) Realm(id string) (*sim.Realm, bool) {
	v, ok := r.realms[id]
	return v, ok
}

func (r *mapRegistry) Monster(id string) (*sim.Monster, bool) {
	v, ok := r.monsters[id]
	return v, ok
}

func (r *mapRegistry) Item(id string) (*sim.Item, bool) {
	v, ok := r.items[id]
	return v, ok
}

func (r *mapRegistry) Areas() []*sim.Area { return nil }
func (r *mapRegistry) AreaOf(string) (*sim.Area, bool) { return nil, false }
func (r *mapRegistry) WanderingMonster() string { return "" }
func (r *mapRegistry) SlayerTasks() []*sim.SlayerTask { return r.tasks }
func (r *mapRegistry) SignetItem() string { return r.signet }
func (r *mapRegistry) Containers(k sim.EntityKind) []*sim.Container { return r.containers[k] }

func (r *mapRegistry) Container(kind sim.EntityKind, id string) (*sim.Container, bool) {
	for _, c := range r.containers[kind] {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (r *mapRegistry) SlayerTask(id string) (*sim.SlayerTask, bool) {
	for _, t := range r.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}
