package sim

import (
	"fmt"
	"strings"
)

// EntityKind identifies the family a simulable entity belongs to.
type EntityKind string

const (
	KindMonster    EntityKind = "monster"
	KindDungeon    EntityKind = "dungeon"
	KindStronghold EntityKind = "stronghold"
	KindDepth      EntityKind = "depth"
	KindSlayerTask EntityKind = "task"
)

// ContainerKinds lists the ordinary composite kinds in display order.
// Slayer tasks are composites too but follow their own aggregation rules.
var ContainerKinds = []EntityKind{KindDungeon, KindStronghold, KindDepth}

var validEntityKinds = map[EntityKind]bool{
	KindMonster: true, KindDungeon: true, KindStronghold: true, KindDepth: true, KindSlayerTask: true,
}

// IsContainer reports whether k is a dungeon, stronghold or depth.
func (k EntityKind) IsContainer() bool {
	return k == KindDungeon || k == KindStronghold || k == KindDepth
}

// EntityRef names one entity of the registry.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

// String renders the ref as "kind:id", the form accepted by ParseEntityRef.
func (r EntityRef) String() string {
	if r.IsZero() {
		return ""
	}
	return string(r.Kind) + ":" + r.ID
}

// IsZero reports whether no entity is referenced.
func (r EntityRef) IsZero() bool {
	return r.Kind == "" && r.ID == ""
}

// ParseEntityRef parses "kind:id". An empty string yields the zero ref.
func ParseEntityRef(s string) (EntityRef, error) {
	if s == "" {
		return EntityRef{}, nil
	}
	kind, id, ok := strings.Cut(s, ":")
	if !ok || id == "" {
		return EntityRef{}, fmt.Errorf("invalid entity reference %q; expected kind:id", s)
	}
	ref := EntityRef{Kind: EntityKind(kind), ID: id}
	if !validEntityKinds[ref.Kind] {
		return EntityRef{}, fmt.Errorf("unknown entity kind %q in %q; valid: monster, dungeon, stronghold, depth, task", kind, s)
	}
	return ref, nil
}

// AreaKind distinguishes open-world combat areas from slayer areas.
type AreaKind string

const (
	AreaCombat AreaKind = "combat"
	AreaSlayer AreaKind = "slayer"
)

// RequirementType enumerates the entry requirement checks.
type RequirementType string

const (
	RequireSkillLevel   RequirementType = "skill_level"
	RequireItemEquipped RequirementType = "item_equipped"
	RequireCompletion   RequirementType = "completion"
)

// Requirement is one entry condition of an area or container.
type Requirement struct {
	Type   RequirementType `yaml:"type" json:"type"`
	Skill  string          `yaml:"skill,omitempty" json:"skill,omitempty"`
	Level  int             `yaml:"level,omitempty" json:"level,omitempty"`
	Item   string          `yaml:"item,omitempty" json:"item,omitempty"`
	Entity string          `yaml:"entity,omitempty" json:"entity,omitempty"`
	Count  int             `yaml:"count,omitempty" json:"count,omitempty"`
}

// PlayerState is the part of the player profile that gates access to content.
type PlayerState struct {
	SkillLevels map[string]int `yaml:"skill_levels" json:"skillLevels"`
	Equipped    []string       `yaml:"equipped" json:"equipped"`
	DamageType  string         `yaml:"damage_type" json:"damageType"`
	Completions map[string]int `yaml:"completions" json:"completions"`
}

// Satisfies reports whether the player meets a single requirement.
func (p PlayerState) Satisfies(req Requirement) bool {
	switch req.Type {
	case RequireSkillLevel:
		return p.SkillLevels[req.Skill] >= req.Level
	case RequireItemEquipped:
		for _, id := range p.Equipped {
			if id == req.Item {
				return true
			}
		}
		return false
	case RequireCompletion:
		return p.Completions[req.Entity] >= req.Count
	default:
		panic(fmt.Sprintf("PlayerState: unknown requirement type %q", req.Type))
	}
}

// MeetsAll reports whether every requirement is satisfied.
func (p PlayerState) MeetsAll(reqs []Requirement) bool {
	for _, r := range reqs {
		if !p.Satisfies(r) {
			return false
		}
	}
	return true
}

// CanDamage reports whether the player's damage type can hurt a monster that
// requires the given damage type. An empty requirement accepts any type.
func (p PlayerState) CanDamage(required string) bool {
	return required == "" || required == p.DamageType
}

// Realm groups content that shares a currency and loot mechanics.
type Realm struct {
	ID       string
	Name     string
	Currency string // default currency of gold drops
	Signet   bool   // monsters in this realm roll the signet ring half
}

// Price is a sale value in one currency.
type Price struct {
	Currency string
	Amount   float64
}

// DropRow is one weighted row of a drop table.
type DropRow struct {
	Item   string
	Weight float64
	Min    float64
	Max    float64
}

// AverageQuantity returns the mean quantity a row yields when it is rolled.
func (r DropRow) AverageQuantity() float64 {
	if r.Min == r.Max {
		return r.Min
	}
	return (r.Min + r.Max) / 2
}

// ItemQuantity is a fixed grant of an item.
type ItemQuantity struct {
	Item     string
	Quantity float64
}

// Item is a catalog item. Items with a non-empty Table are openable and
// yield one roll of that table when opened.
type Item struct {
	ID    string
	Name  string
	Value Price
	Table []DropRow
}

// GoldDrop is the uniform currency drop of a monster.
type GoldDrop struct {
	Currency string
	Min      float64
	Max      float64
}

// Monster is a single combat opponent.
type Monster struct {
	ID               string
	Name             string
	Realm            string
	CombatLevel      int
	Hitpoints        float64
	MaxHit           float64
	AttackIntervalMS float64
	Accuracy         float64 // chance each monster attack lands
	Evasion          float64 // chance each player attack misses
	ReflectDamage    float64 // damage reflected per landed player hit
	DamageType       string  // player damage type required to hurt it
	CanSlayer        bool
	LootChance       float64 // percent chance loot is rolled on a kill
	Gold             *GoldDrop
	Bones            *ItemQuantity
	Loot             []DropRow
}

// Area is an open-world combat area or a slayer area.
type Area struct {
	ID           string
	Name         string
	Kind         AreaKind
	Realm        string
	Monsters     []string
	Requirements []Requirement
}

// Container is a dungeon, stronghold or abyssal depth: an ordered sequence of
// monsters fought in one clear.
type Container struct {
	ID           string
	Name         string
	Kind         EntityKind
	Realm        string
	Monsters     []string
	Requirements []Requirement
	Rewards      []DropRow      // one roll per clear
	FixedRewards []ItemQuantity // granted every clear
	Hint         string         // shown with failure text when the simulation is known to be inaccurate
}

// Ref returns the container's entity reference.
func (c *Container) Ref() EntityRef {
	return EntityRef{Kind: c.Kind, ID: c.ID}
}

// SlayerTask is a task category whose members are selected at queue time.
type SlayerTask struct {
	ID           string
	Name         string
	Realm        string
	MinLevel     int
	MaxLevel     int // 0 means no upper bound
	Requirements []Requirement
}

// InLevelWindow reports whether a combat level falls inside the task window.
func (t *SlayerTask) InLevelWindow(level int) bool {
	if level < t.MinLevel {
		return false
	}
	return t.MaxLevel == 0 || level <= t.MaxLevel
}

// Registry is the read-only entity catalog consumed by the engine.
// Implementations live in sim/catalog.
type Registry interface {
	Realm(id string) (*Realm, bool)
	Monster(id string) (*Monster, bool)
	Item(id string) (*Item, bool)
	// Areas returns combat and slayer areas in display order.
	Areas() []*Area
	// AreaOf returns the first area containing the monster.
	AreaOf(monsterID string) (*Area, bool)
	// WanderingMonster returns the monster of the wandering-encounter slot, or "".
	WanderingMonster() string
	Containers(kind EntityKind) []*Container
	Container(kind EntityKind, id string) (*Container, bool)
	SlayerTasks() []*SlayerTask
	SlayerTask(id string) (*SlayerTask, bool)
	// SignetItem returns the item rolled by the signet mechanic, or "".
	SignetItem() string
}
