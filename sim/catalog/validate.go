package catalog

import (
	"fmt"
	"math"
)

var validAreaKinds = map[string]bool{"combat": true, "slayer": true}

var validRequirementTypes = map[string]bool{"skill_level": true, "item_equipped": true, "completion": true}

// Validate checks field ranges and that every reference resolves.
func (s *Spec) Validate() error {
	realms := make(map[string]bool)
	for i, r := range s.Realms {
		if r.ID == "" {
			return fmt.Errorf("realm[%d]: id is required", i)
		}
		if realms[r.ID] {
			return fmt.Errorf("realm %q defined twice", r.ID)
		}
		if r.Currency == "" {
			return fmt.Errorf("realm %q: currency is required", r.ID)
		}
		realms[r.ID] = true
	}

	items := make(map[string]bool)
	for i, it := range s.Items {
		if it.ID == "" {
			return fmt.Errorf("item[%d]: id is required", i)
		}
		if items[it.ID] {
			return fmt.Errorf("item %q defined twice", it.ID)
		}
		items[it.ID] = true
	}
	for _, it := range s.Items {
		if it.Value.Amount < 0 {
			return fmt.Errorf("item %q: value must be >= 0, got %v", it.ID, it.Value.Amount)
		}
		if it.Value.Amount > 0 && it.Value.Currency == "" {
			return fmt.Errorf("item %q: value currency is required", it.ID)
		}
		if err := validateDrops("item "+it.ID+" table", it.Table, items); err != nil {
			return err
		}
	}
	if s.SignetItem != "" && !items[s.SignetItem] {
		return fmt.Errorf("signet_item %q is not a known item", s.SignetItem)
	}

	monsters := make(map[string]bool)
	for i := range s.Monsters {
		m := &s.Monsters[i]
		if err := validateMonster(m, realms, items); err != nil {
			return err
		}
		if monsters[m.ID] {
			return fmt.Errorf("monster %q defined twice", m.ID)
		}
		monsters[m.ID] = true
	}

	areas := make(map[string]bool)
	for i, a := range s.Areas {
		prefix := fmt.Sprintf("area[%d] %q", i, a.ID)
		if a.ID == "" || areas[a.ID] {
			return fmt.Errorf("%s: id must be unique and non-empty", prefix)
		}
		areas[a.ID] = true
		if !validAreaKinds[a.Kind] {
			return fmt.Errorf("%s: unknown kind %q; valid: combat, slayer", prefix, a.Kind)
		}
		if !realms[a.Realm] {
			return fmt.Errorf("%s: unknown realm %q", prefix, a.Realm)
		}
		if err := validateMembers(prefix, a.Monsters, monsters); err != nil {
			return err
		}
		if err := validateRequirements(prefix, a.Requirements, items); err != nil {
			return err
		}
	}
	if s.WanderingMonster != "" && !monsters[s.WanderingMonster] {
		return fmt.Errorf("wandering_monster %q is not a known monster", s.WanderingMonster)
	}

	for _, group := range []struct {
		name  string
		specs []ContainerSpec
	}{{"dungeon", s.Dungeons}, {"stronghold", s.Strongholds}, {"depth", s.Depths}} {
		seen := make(map[string]bool)
		for i, c := range group.specs {
			prefix := fmt.Sprintf("%s[%d] %q", group.name, i, c.ID)
			if c.ID == "" || seen[c.ID] {
				return fmt.Errorf("%s: id must be unique and non-empty", prefix)
			}
			seen[c.ID] = true
			if !realms[c.Realm] {
				return fmt.Errorf("%s: unknown realm %q", prefix, c.Realm)
			}
			if len(c.Monsters) == 0 {
				return fmt.Errorf("%s: at least one monster is required", prefix)
			}
			if err := validateMembers(prefix, c.Monsters, monsters); err != nil {
				return err
			}
			if err := validateRequirements(prefix, c.Requirements, items); err != nil {
				return err
			}
			if err := validateDrops(prefix+" rewards", c.Rewards, items); err != nil {
				return err
			}
			for _, f := range c.FixedRewards {
				if !items[f.Item] {
					return fmt.Errorf("%s: unknown fixed reward item %q", prefix, f.Item)
				}
				if f.Quantity <= 0 {
					return fmt.Errorf("%s: fixed reward %q quantity must be > 0", prefix, f.Item)
				}
			}
		}
	}

	tasks := make(map[string]bool)
	for i, t := range s.SlayerTasks {
		prefix := fmt.Sprintf("slayer_task[%d] %q", i, t.ID)
		if t.ID == "" || tasks[t.ID] {
			return fmt.Errorf("%s: id must be unique and non-empty", prefix)
		}
		tasks[t.ID] = true
		if !realms[t.Realm] {
			return fmt.Errorf("%s: unknown realm %q", prefix, t.Realm)
		}
		if t.MinLevel < 0 || (t.MaxLevel != 0 && t.MaxLevel < t.MinLevel) {
			return fmt.Errorf("%s: invalid level window [%d, %d]", prefix, t.MinLevel, t.MaxLevel)
		}
		if err := validateRequirements(prefix, t.Requirements, items); err != nil {
			return err
		}
	}
	return nil
}

func validateMonster(m *MonsterSpec, realms, items map[string]bool) error {
	prefix := fmt.Sprintf("monster %q", m.ID)
	if m.ID == "" {
		return fmt.Errorf("monster: id is required")
	}
	if !realms[m.Realm] {
		return fmt.Errorf("%s: unknown realm %q", prefix, m.Realm)
	}
	if m.CombatLevel < 1 {
		return fmt.Errorf("%s: combat_level must be >= 1, got %d", prefix, m.CombatLevel)
	}
	if err := validateFinitePositive(prefix+".hitpoints", m.Hitpoints); err != nil {
		return err
	}
	if err := validateFinitePositive(prefix+".attack_interval_ms", m.AttackIntervalMS); err != nil {
		return err
	}
	if m.MaxHit < 0 || m.ReflectDamage < 0 {
		return fmt.Errorf("%s: max_hit and reflect_damage must be >= 0", prefix)
	}
	// Monster hits roll in [1, max_hit].
	if m.MaxHit > 0 && m.MaxHit < 1 {
		return fmt.Errorf("%s: max_hit must be 0 or >= 1, got %v", prefix, m.MaxHit)
	}
	for name, v := range map[string]float64{"accuracy": m.Accuracy, "evasion": m.Evasion} {
		if v < 0 || v > 1 || math.IsNaN(v) {
			return fmt.Errorf("%s: %s must be in [0, 1], got %v", prefix, name, v)
		}
	}
	if m.LootChance != nil && (*m.LootChance < 0 || *m.LootChance > 100) {
		return fmt.Errorf("%s: loot_chance must be in [0, 100], got %v", prefix, *m.LootChance)
	}
	if m.Gold != nil && (m.Gold.Min < 0 || m.Gold.Max < m.Gold.Min) {
		return fmt.Errorf("%s: gold range [%v, %v] is invalid", prefix, m.Gold.Min, m.Gold.Max)
	}
	if m.Bones != nil && !items[m.Bones.Item] {
		return fmt.Errorf("%s: unknown bones item %q", prefix, m.Bones.Item)
	}
	return validateDrops(prefix+" loot", m.Loot, items)
}

func validateDrops(prefix string, rows []DropSpec, items map[string]bool) error {
	for i, r := range rows {
		if !items[r.Item] {
			return fmt.Errorf("%s[%d]: unknown item %q", prefix, i, r.Item)
		}
		if r.Weight < 0 || math.IsNaN(r.Weight) {
			return fmt.Errorf("%s[%d]: weight must be >= 0, got %v", prefix, i, r.Weight)
		}
		lo, hi := quantityRange(r)
		if lo < 0 || hi < lo {
			return fmt.Errorf("%s[%d]: quantity range [%v, %v] is invalid", prefix, i, lo, hi)
		}
	}
	return nil
}

func validateMembers(prefix string, members []string, monsters map[string]bool) error {
	for _, m := range members {
		if !monsters[m] {
			return fmt.Errorf("%s: unknown monster %q", prefix, m)
		}
	}
	return nil
}

func validateRequirements(prefix string, reqs []RequirementSpec, items map[string]bool) error {
	for i, r := range reqs {
		if !validRequirementTypes[r.Type] {
			return fmt.Errorf("%s: requirement[%d]: unknown type %q; valid: skill_level, item_equipped, completion", prefix, i, r.Type)
		}
		switch r.Type {
		case "skill_level":
			if r.Skill == "" {
				return fmt.Errorf("%s: requirement[%d]: skill is required", prefix, i)
			}
		case "item_equipped":
			if !items[r.Item] {
				return fmt.Errorf("%s: requirement[%d]: unknown item %q", prefix, i, r.Item)
			}
		case "completion":
			if r.Entity == "" {
				return fmt.Errorf("%s: requirement[%d]: entity is required", prefix, i)
			}
		}
	}
	return nil
}

// validateFinitePositive returns an error if val is not a finite positive number.
func validateFinitePositive(name string, val float64) error {
	if math.IsNaN(val) || math.IsInf(val, 0) || val <= 0 {
		return fmt.Errorf("%s must be a finite positive number, got %f", name, val)
	}
	return nil
}

func quantityRange(r DropSpec) (float64, float64) {
	lo, hi := 1.0, 1.0
	if r.Min != nil {
		lo = *r.Min
	}
	if r.Max != nil {
		hi = *r.Max
	} else if r.Min != nil {
		hi = lo
	}
	return lo, hi
}
