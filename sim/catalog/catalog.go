package catalog

import (
	"fmt"

	"github.com/combat-sim/combat-sim/sim"
)

// Catalog is the in-memory entity registry. It implements sim.Registry and is
// read-only after construction.
type Catalog struct {
	realms      map[string]*sim.Realm
	items       map[string]*sim.Item
	monsters    map[string]*sim.Monster
	areas       []*sim.Area
	areaOf      map[string]*sim.Area
	wandering   string
	containers  map[sim.EntityKind][]*sim.Container
	containerBy map[sim.EntityRef]*sim.Container
	tasks       []*sim.SlayerTask
	taskBy      map[string]*sim.SlayerTask
	signet      string
}

var _ sim.Registry = (*Catalog)(nil)

// Load reads, validates and builds a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	spec, err := LoadSpec(path)
	if err != nil {
		return nil, err
	}
	return New(spec)
}

// Parse validates and builds a catalog from YAML data.
func Parse(data []byte) (*Catalog, error) {
	spec, err := ParseSpec(data)
	if err != nil {
		return nil, err
	}
	return New(spec)
}

// New validates spec and builds a catalog from it.
func New(spec *Spec) (*Catalog, error) {
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}
	c := &Catalog{
		realms:      make(map[string]*sim.Realm),
		items:       make(map[string]*sim.Item),
		monsters:    make(map[string]*sim.Monster),
		areaOf:      make(map[string]*sim.Area),
		wandering:   spec.WanderingMonster,
		containers:  make(map[sim.EntityKind][]*sim.Container),
		containerBy: make(map[sim.EntityRef]*sim.Container),
		taskBy:      make(map[string]*sim.SlayerTask),
		signet:      spec.SignetItem,
	}
	for _, r := range spec.Realms {
		c.realms[r.ID] = &sim.Realm{ID: r.ID, Name: r.Name, Currency: r.Currency, Signet: r.Signet}
	}
	for _, it := range spec.Items {
		c.items[it.ID] = &sim.Item{
			ID:    it.ID,
			Name:  it.Name,
			Value: sim.Price{Currency: it.Value.Currency, Amount: it.Value.Amount},
			Table: convertDrops(it.Table),
		}
	}
	for _, m := range spec.Monsters {
		c.monsters[m.ID] = convertMonster(m)
	}
	for _, a := range spec.Areas {
		area := &sim.Area{
			ID:           a.ID,
			Name:         a.Name,
			Kind:         sim.AreaKind(a.Kind),
			Realm:        a.Realm,
			Monsters:     append([]string(nil), a.Monsters...),
			Requirements: convertRequirements(a.Requirements),
		}
		c.areas = append(c.areas, area)
		for _, m := range a.Monsters {
			if _, ok := c.areaOf[m]; !ok {
				c.areaOf[m] = area
			}
		}
	}
	c.addContainers(sim.KindDungeon, spec.Dungeons)
	c.addContainers(sim.KindStronghold, spec.Strongholds)
	c.addContainers(sim.KindDepth, spec.Depths)
	for _, t := range spec.SlayerTasks {
		task := &sim.SlayerTask{
			ID:           t.ID,
			Name:         t.Name,
			Realm:        t.Realm,
			MinLevel:     t.MinLevel,
			MaxLevel:     t.MaxLevel,
			Requirements: convertRequirements(t.Requirements),
		}
		c.tasks = append(c.tasks, task)
		c.taskBy[t.ID] = task
	}
	return c, nil
}

func (c *Catalog) addContainers(kind sim.EntityKind, specs []ContainerSpec) {
	for _, s := range specs {
		ct := &sim.Container{
			ID:           s.ID,
			Name:         s.Name,
			Kind:         kind,
			Realm:        s.Realm,
			Monsters:     append([]string(nil), s.Monsters...),
			Requirements: convertRequirements(s.Requirements),
			Rewards:      convertDrops(s.Rewards),
			Hint:         s.Hint,
		}
		for _, f := range s.FixedRewards {
			ct.FixedRewards = append(ct.FixedRewards, sim.ItemQuantity{Item: f.Item, Quantity: f.Quantity})
		}
		c.containers[kind] = append(c.containers[kind], ct)
		c.containerBy[ct.Ref()] = ct
	}
}

func convertMonster(m MonsterSpec) *sim.Monster {
	out := &sim.Monster{
		ID:               m.ID,
		Name:             m.Name,
		Realm:            m.Realm,
		CombatLevel:      m.CombatLevel,
		Hitpoints:        m.Hitpoints,
		MaxHit:           m.MaxHit,
		AttackIntervalMS: m.AttackIntervalMS,
		Accuracy:         m.Accuracy,
		Evasion:          m.Evasion,
		ReflectDamage:    m.ReflectDamage,
		DamageType:       m.DamageType,
		CanSlayer:        m.Slayer,
		LootChance:       100,
		Loot:             convertDrops(m.Loot),
	}
	if m.LootChance != nil {
		out.LootChance = *m.LootChance
	}
	if m.Gold != nil {
		out.Gold = &sim.GoldDrop{Currency: m.Gold.Currency, Min: m.Gold.Min, Max: m.Gold.Max}
	}
	if m.Bones != nil {
		out.Bones = &sim.ItemQuantity{Item: m.Bones.Item, Quantity: m.Bones.Quantity}
	}
	return out
}

func convertDrops(rows []DropSpec) []sim.DropRow {
	if len(rows) == 0 {
		return nil
	}
	out := make([]sim.DropRow, len(rows))
	for i, r := range rows {
		lo, hi := quantityRange(r)
		out[i] = sim.DropRow{Item: r.Item, Weight: r.Weight, Min: lo, Max: hi}
	}
	return out
}

func convertRequirements(reqs []RequirementSpec) []sim.Requirement {
	if len(reqs) == 0 {
		return nil
	}
	out := make([]sim.Requirement, len(reqs))
	for i, r := range reqs {
		out[i] = sim.Requirement{
			Type:   sim.RequirementType(r.Type),
			Skill:  r.Skill,
			Level:  r.Level,
			Item:   r.Item,
			Entity: r.Entity,
			Count:  r.Count,
		}
	}
	return out
}

func (c *Catalog) Realm(id string) (*sim.Realm, bool) {
	r, ok := c.realms[id]
	return r, ok
}

func (c *Catalog) Monster(id string) (*sim.Monster, bool) {
	m, ok := c.monsters[id]
	return m, ok
}

func (c *Catalog) Item(id string) (*sim.Item, bool) {
	it, ok := c.items[id]
	return it, ok
}

func (c *Catalog) Areas() []*sim.Area {
	return c.areas
}

func (c *Catalog) AreaOf(monsterID string) (*sim.Area, bool) {
	a, ok := c.areaOf[monsterID]
	return a, ok
}

func (c *Catalog) WanderingMonster() string {
	return c.wandering
}

func (c *Catalog) Containers(kind sim.EntityKind) []*sim.Container {
	return c.containers[kind]
}

func (c *Catalog) Container(kind sim.EntityKind, id string) (*sim.Container, bool) {
	ct, ok := c.containerBy[sim.EntityRef{Kind: kind, ID: id}]
	return ct, ok
}

func (c *Catalog) SlayerTasks() []*sim.SlayerTask {
	return c.tasks
}

func (c *Catalog) SlayerTask(id string) (*sim.SlayerTask, bool) {
	t, ok := c.taskBy[id]
	return t, ok
}

func (c *Catalog) SignetItem() string {
	return c.signet
}

// Monsters returns the number of monsters in the catalog.
func (c *Catalog) Monsters() int {
	return len(c.monsters)
}
