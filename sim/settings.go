package sim

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// TimeUnit is the window rates and chances are reported over.
type TimeUnit string

const (
	UnitKill   TimeUnit = "kill"
	UnitSecond TimeUnit = "second"
	UnitMinute TimeUnit = "minute"
	UnitHour   TimeUnit = "hour"
	UnitDay    TimeUnit = "day"
)

var unitSeconds = map[TimeUnit]float64{
	UnitSecond: 1,
	UnitMinute: 60,
	UnitHour:   3600,
	UnitDay:    86400,
}

// IsValid reports whether u is a known time unit.
func (u TimeUnit) IsValid() bool {
	_, ok := unitSeconds[u]
	return ok || u == UnitKill
}

// Window returns the length of the unit in seconds. For UnitKill the window
// is one kill, so killTimeS is returned.
func (u TimeUnit) Window(killTimeS float64) float64 {
	if u == UnitKill {
		return killTimeS
	}
	s, ok := unitSeconds[u]
	if !ok {
		panic(fmt.Sprintf("TimeUnit: unknown unit %q", u))
	}
	return s
}

// CombatProfile holds the player's combat stats used by the combat engine.
type CombatProfile struct {
	Hitpoints        float64 `yaml:"hitpoints" json:"hitpoints"`
	MinHit           float64 `yaml:"min_hit" json:"minHit"`
	MaxHit           float64 `yaml:"max_hit" json:"maxHit"`
	AttackIntervalMS float64 `yaml:"attack_interval_ms" json:"attackIntervalMs"`
	Accuracy         float64 `yaml:"accuracy" json:"accuracy"`                 // chance a player attack lands before monster evasion
	Evasion          float64 `yaml:"evasion" json:"evasion"`                   // chance a monster attack misses
	DamageReduction  float64 `yaml:"damage_reduction" json:"damageReduction"` // fraction of incoming damage removed
	AutoEatThreshold float64 `yaml:"auto_eat_threshold" json:"autoEatThreshold"`
	FoodHealing      float64 `yaml:"food_healing" json:"foodHealing"`
	StyleSkill       string  `yaml:"style_skill" json:"styleSkill"`
	OnSlayerTask     bool    `yaml:"on_slayer_task" json:"onSlayerTask"`

	PrayerPointsPerAttack float64 `yaml:"prayer_points_per_attack" json:"prayerPointsPerAttack"`
	PrayerPointsPerKill   float64 `yaml:"prayer_points_per_kill" json:"prayerPointsPerKill"`
	AmmoPerAttack         float64 `yaml:"ammo_per_attack" json:"ammoPerAttack"`
	// RunesPerAttack is rune id -> runes spent per attack.
	RunesPerAttack            map[string]float64 `yaml:"runes_per_attack" json:"runesPerAttack"`
	CombinationRunesPerAttack float64            `yaml:"combination_runes_per_attack" json:"combinationRunesPerAttack"`
	PotionChargesPerAttack    float64            `yaml:"potion_charges_per_attack" json:"potionChargesPerAttack"`
	Familiars                 []string           `yaml:"familiars" json:"familiars"`
	TabletsPerAttack          float64            `yaml:"tablets_per_attack" json:"tabletsPerAttack"`
}

// RollSettings holds the divisors of the rare-event rolls.
type RollSettings struct {
	PetDivisor    float64 `yaml:"pet_divisor" json:"petDivisor"`
	MarkDivisor   float64 `yaml:"mark_divisor" json:"markDivisor"`
	SignetDivisor float64 `yaml:"signet_divisor" json:"signetDivisor"`
}

// Settings is the full run configuration. Its JSON encoding is the state
// snapshot sent with every trial request.
type Settings struct {
	Player     PlayerState   `yaml:"player" json:"player"`
	Combat     CombatProfile `yaml:"combat" json:"combat"`
	TrialCount int           `yaml:"trial_count" json:"trialCount"`
	TickBudget int64         `yaml:"tick_budget" json:"tickBudget"`
	Seed       int64         `yaml:"seed" json:"seed"`
	// ItemTimeoutMS bounds one remote trial. Zero disables the limit.
	ItemTimeoutMS int64 `yaml:"item_timeout_ms" json:"itemTimeoutMs"`

	TimeUnit         TimeUnit `yaml:"time_unit" json:"timeUnit"`
	DropItem         string   `yaml:"drop_item" json:"dropItem"`
	DoubleLootChance float64  `yaml:"double_loot_chance" json:"doubleLootChance"` // percent
	NoLootChance     float64  `yaml:"no_loot_chance" json:"noLootChance"`         // percent of kills without a loot roll

	Selected string   `yaml:"selected" json:"selected"`
	Exclude  []string `yaml:"exclude" json:"exclude"`

	// Supply is consumable kind -> stock on hand. See SupplyKinds.
	Supply map[string]float64 `yaml:"supply" json:"supply"`
	Rolls  RollSettings       `yaml:"rolls" json:"rolls"`
}

// DefaultSettings returns the settings used for any field a file omits.
func DefaultSettings() *Settings {
	return &Settings{
		Combat: CombatProfile{
			Hitpoints:        100,
			MinHit:           1,
			MaxHit:           10,
			AttackIntervalMS: 2400,
			Accuracy:         0.8,
			AutoEatThreshold: 0.4,
			FoodHealing:      20,
			StyleSkill:       "attack",
		},
		TrialCount: 1000,
		TickBudget: 1_000_000,
		Seed:       42,
		TimeUnit:   UnitHour,
		Rolls: RollSettings{
			PetDivisor:    250_000_000,
			MarkDivisor:   100_000_000,
			SignetDivisor: 500_000,
		},
	}
}

// LoadSettings reads a YAML settings file over DefaultSettings.
// Unknown fields are rejected.
func LoadSettings(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings parses YAML settings over DefaultSettings and validates them.
func ParseSettings(data []byte) (*Settings, error) {
	s := DefaultSettings()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(s); err != nil {
		return nil, fmt.Errorf("parsing settings YAML: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}
	return s, nil
}

// Validate checks that the settings are usable for a run.
func (s *Settings) Validate() error {
	if s.TrialCount < 1 {
		return fmt.Errorf("trial_count must be >= 1, got %d", s.TrialCount)
	}
	if s.TickBudget < 1 {
		return fmt.Errorf("tick_budget must be >= 1, got %d", s.TickBudget)
	}
	if s.ItemTimeoutMS < 0 {
		return fmt.Errorf("item_timeout_ms must be >= 0, got %d", s.ItemTimeoutMS)
	}
	if !s.TimeUnit.IsValid() {
		return fmt.Errorf("unknown time_unit %q; valid: kill, second, minute, hour, day", s.TimeUnit)
	}
	if s.DoubleLootChance < 0 || s.DoubleLootChance > 100 {
		return fmt.Errorf("double_loot_chance must be in [0, 100], got %v", s.DoubleLootChance)
	}
	if s.NoLootChance < 0 || s.NoLootChance > 100 {
		return fmt.Errorf("no_loot_chance must be in [0, 100], got %v", s.NoLootChance)
	}
	if _, err := ParseEntityRef(s.Selected); err != nil {
		return fmt.Errorf("selected: %w", err)
	}
	for _, e := range s.Exclude {
		ref, err := ParseEntityRef(e)
		if err != nil {
			return fmt.Errorf("exclude: %w", err)
		}
		if ref.IsZero() {
			return fmt.Errorf("exclude: empty entity reference")
		}
	}
	for kind, stock := range s.Supply {
		if _, ok := supplyRates[kind]; !ok {
			return fmt.Errorf("unknown supply kind %q; valid: %v", kind, SupplyKinds())
		}
		if stock < 0 || math.IsNaN(stock) {
			return fmt.Errorf("supply %q must be >= 0, got %v", kind, stock)
		}
	}
	if err := s.Combat.validate(); err != nil {
		return fmt.Errorf("combat: %w", err)
	}
	r := s.Rolls
	if !(r.PetDivisor > 0) || !(r.MarkDivisor > 0) || !(r.SignetDivisor > 0) {
		return fmt.Errorf("rolls: divisors must be > 0, got pet=%v mark=%v signet=%v", r.PetDivisor, r.MarkDivisor, r.SignetDivisor)
	}
	return nil
}

func (c *CombatProfile) validate() error {
	if !(c.Hitpoints > 0) {
		return fmt.Errorf("hitpoints must be > 0, got %v", c.Hitpoints)
	}
	if c.MinHit < 0 || c.MaxHit < c.MinHit {
		return fmt.Errorf("hit range [%v, %v] is invalid", c.MinHit, c.MaxHit)
	}
	if !(c.AttackIntervalMS > 0) {
		return fmt.Errorf("attack_interval_ms must be > 0, got %v", c.AttackIntervalMS)
	}
	for name, v := range map[string]float64{
		"accuracy":           c.Accuracy,
		"evasion":            c.Evasion,
		"damage_reduction":   c.DamageReduction,
		"auto_eat_threshold": c.AutoEatThreshold,
	} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%s must be in [0, 1], got %v", name, v)
		}
	}
	if c.FoodHealing < 0 {
		return fmt.Errorf("food_healing must be >= 0, got %v", c.FoodHealing)
	}
	for id, n := range c.RunesPerAttack {
		if n < 0 {
			return fmt.Errorf("runes_per_attack[%s] must be >= 0, got %v", id, n)
		}
	}
	return nil
}

// SelectedRef returns the parsed selected target. Validate guarantees it parses.
func (s *Settings) SelectedRef() EntityRef {
	ref, err := ParseEntityRef(s.Selected)
	if err != nil {
		panic(fmt.Sprintf("Settings: invalid selected target %q: %v", s.Selected, err))
	}
	return ref
}

// Snapshot serializes the settings for a trial request.
func (s *Settings) Snapshot() ([]byte, error) {
	return json.Marshal(s)
}

// DecodeSnapshot parses a settings snapshot produced by Snapshot.
// Unknown fields are rejected.
func DecodeSnapshot(data []byte) (*Settings, error) {
	var s Settings
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding settings snapshot: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings snapshot: %w", err)
	}
	return &s, nil
}
