// Package catalog loads the entity registry from YAML.
package catalog

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Spec is the YAML form of a catalog file.
type Spec struct {
	Realms           []RealmSpec     `yaml:"realms"`
	SignetItem       string          `yaml:"signet_item,omitempty"`
	Items            []ItemSpec      `yaml:"items"`
	Monsters         []MonsterSpec   `yaml:"monsters"`
	Areas            []AreaSpec      `yaml:"areas"`
	WanderingMonster string          `yaml:"wandering_monster,omitempty"`
	Dungeons         []ContainerSpec `yaml:"dungeons,omitempty"`
	Strongholds      []ContainerSpec `yaml:"strongholds,omitempty"`
	Depths           []ContainerSpec `yaml:"depths,omitempty"`
	SlayerTasks      []TaskSpec      `yaml:"slayer_tasks,omitempty"`
}

// RealmSpec defines a realm.
type RealmSpec struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Currency string `yaml:"currency"`
	Signet   bool   `yaml:"signet,omitempty"`
}

// PriceSpec is an item sale value.
type PriceSpec struct {
	Currency string  `yaml:"currency"`
	Amount   float64 `yaml:"amount"`
}

// DropSpec is one row of a drop table. Min and Max default to 1.
type DropSpec struct {
	Item   string   `yaml:"item"`
	Weight float64  `yaml:"weight"`
	Min    *float64 `yaml:"min,omitempty"`
	Max    *float64 `yaml:"max,omitempty"`
}

// ItemSpec defines an item; Table makes it openable.
type ItemSpec struct {
	ID    string     `yaml:"id"`
	Name  string     `yaml:"name"`
	Value PriceSpec  `yaml:"value,omitempty"`
	Table []DropSpec `yaml:"table,omitempty"`
}

// GoldSpec is a uniform currency drop. An empty currency uses the realm's.
type GoldSpec struct {
	Currency string  `yaml:"currency,omitempty"`
	Min      float64 `yaml:"min"`
	Max      float64 `yaml:"max"`
}

// QuantitySpec is a fixed item grant.
type QuantitySpec struct {
	Item     string  `yaml:"item"`
	Quantity float64 `yaml:"quantity"`
}

// MonsterSpec defines a monster. LootChance is a percentage and defaults to 100.
type MonsterSpec struct {
	ID               string        `yaml:"id"`
	Name             string        `yaml:"name"`
	Realm            string        `yaml:"realm"`
	CombatLevel      int           `yaml:"combat_level"`
	Hitpoints        float64       `yaml:"hitpoints"`
	MaxHit           float64       `yaml:"max_hit"`
	AttackIntervalMS float64       `yaml:"attack_interval_ms"`
	Accuracy         float64       `yaml:"accuracy"`
	Evasion          float64       `yaml:"evasion,omitempty"`
	ReflectDamage    float64       `yaml:"reflect_damage,omitempty"`
	DamageType       string        `yaml:"damage_type,omitempty"`
	Slayer           bool          `yaml:"slayer,omitempty"`
	LootChance       *float64      `yaml:"loot_chance,omitempty"`
	Gold             *GoldSpec     `yaml:"gold,omitempty"`
	Bones            *QuantitySpec `yaml:"bones,omitempty"`
	Loot             []DropSpec    `yaml:"loot,omitempty"`
}

// RequirementSpec is an entry requirement.
type RequirementSpec struct {
	Type   string `yaml:"type"`
	Skill  string `yaml:"skill,omitempty"`
	Level  int    `yaml:"level,omitempty"`
	Item   string `yaml:"item,omitempty"`
	Entity string `yaml:"entity,omitempty"`
	Count  int    `yaml:"count,omitempty"`
}

// AreaSpec defines a combat or slayer area.
type AreaSpec struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Kind         string            `yaml:"kind"`
	Realm        string            `yaml:"realm"`
	Monsters     []string          `yaml:"monsters"`
	Requirements []RequirementSpec `yaml:"requirements,omitempty"`
}

// ContainerSpec defines a dungeon, stronghold or depth.
type ContainerSpec struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Realm        string            `yaml:"realm"`
	Monsters     []string          `yaml:"monsters"`
	Requirements []RequirementSpec `yaml:"requirements,omitempty"`
	Rewards      []DropSpec        `yaml:"rewards,omitempty"`
	FixedRewards []QuantitySpec    `yaml:"fixed_rewards,omitempty"`
	Hint         string            `yaml:"hint,omitempty"`
}

// TaskSpec defines a slayer task category. MaxLevel 0 means unbounded.
type TaskSpec struct {
	ID           string            `yaml:"id"`
	Name         string            `yaml:"name"`
	Realm        string            `yaml:"realm"`
	MinLevel     int               `yaml:"min_level"`
	MaxLevel     int               `yaml:"max_level,omitempty"`
	Requirements []RequirementSpec `yaml:"requirements,omitempty"`
}

// LoadSpec reads and parses a YAML catalog file.
// Uses strict parsing: unrecognized keys (typos) are rejected.
func LoadSpec(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	return ParseSpec(data)
}

// ParseSpec parses YAML catalog data strictly.
func ParseSpec(data []byte) (*Spec, error) {
	var spec Spec
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&spec); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}
	return &spec, nil
}
