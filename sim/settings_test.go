package sim

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSettings_OmittedFieldsKeepDefaults(t *testing.T) {
	s, err := ParseSettings([]byte("trial_count: 50\ntime_unit: minute\n"))

	require.NoError(t, err)
	assert.Equal(t, 50, s.TrialCount)
	assert.Equal(t, UnitMinute, s.TimeUnit)
	assert.Equal(t, int64(1_000_000), s.TickBudget)
	assert.Equal(t, 250_000_000.0, s.Rolls.PetDivisor)
	assert.Equal(t, "attack", s.Combat.StyleSkill)
}

func TestParseSettings_UnknownFieldRejected(t *testing.T) {
	_, err := ParseSettings([]byte("trial_cuont: 50\n"))
	assert.Error(t, err)
}

func TestLoadSettings_ExampleFile(t *testing.T) {
	s, err := LoadSettings(filepath.Join("..", "examples", "settings.yaml"))

	require.NoError(t, err)
	assert.Equal(t, 60, s.Player.SkillLevels["slayer"])
	assert.Equal(t, []string{"depth:void_depth"}, s.Exclude)
	assert.Equal(t, "herb_seed", s.DropItem)
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := LoadSettings(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestSettings_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(s *Settings)
		wantErr string
	}{
		{"defaults valid", func(s *Settings) {}, ""},
		{"zero trials", func(s *Settings) { s.TrialCount = 0 }, "trial_count"},
		{"zero budget", func(s *Settings) { s.TickBudget = 0 }, "tick_budget"},
		{"negative timeout", func(s *Settings) { s.ItemTimeoutMS = -1 }, "item_timeout_ms"},
		{"unknown unit", func(s *Settings) { s.TimeUnit = "fortnight" }, "time_unit"},
		{"double loot above 100", func(s *Settings) { s.DoubleLootChance = 101 }, "double_loot_chance"},
		{"negative no loot", func(s *Settings) { s.NoLootChance = -1 }, "no_loot_chance"},
		{"no loot above 100", func(s *Settings) { s.NoLootChance = 100.5 }, "no_loot_chance"},
		{"bad selection", func(s *Settings) { s.Selected = "castle:x" }, "selected"},
		{"empty exclusion", func(s *Settings) { s.Exclude = []string{""} }, "exclude"},
		{"unknown supply", func(s *Settings) { s.Supply = map[string]float64{"arrows": 1} }, "supply kind"},
		{"negative supply", func(s *Settings) { s.Supply = map[string]float64{"food": -1} }, "supply"},
		{"bad hit range", func(s *Settings) { s.Combat.MinHit = 20 }, "hit range"},
		{"accuracy above one", func(s *Settings) { s.Combat.Accuracy = 1.5 }, "accuracy"},
		{"zero divisor", func(s *Settings) { s.Rolls.SignetDivisor = 0 }, "divisors"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := DefaultSettings()
			tc.mutate(s)
			err := s.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSettings_SnapshotRoundTrip(t *testing.T) {
	s := DefaultSettings()
	s.Selected = "dungeon:raid"
	s.Supply = map[string]float64{"food": 10}

	blob, err := s.Snapshot()
	require.NoError(t, err)
	got, err := DecodeSnapshot(blob)

	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestDecodeSnapshot_RejectsUnknownFields(t *testing.T) {
	_, err := DecodeSnapshot([]byte(`{"trialCount": 5, "bogus": true}`))
	assert.Error(t, err)
}

func TestSettings_SelectedRef(t *testing.T) {
	s := DefaultSettings()
	assert.True(t, s.SelectedRef().IsZero())

	s.Selected = "task:easy"
	assert.Equal(t, EntityRef{Kind: KindSlayerTask, ID: "easy"}, s.SelectedRef())

	s.Selected = "nonsense"
	assert.Panics(t, func() { s.SelectedRef() })
}

func TestTimeUnit_Window(t *testing.T) {
	assert.Equal(t, 3600.0, UnitHour.Window(5))
	assert.Equal(t, 5.0, UnitKill.Window(5))
	assert.Equal(t, 86400.0, UnitDay.Window(5))
	assert.Panics(t, func() { TimeUnit("week").Window(1) })
}

func TestParseSettings_WritesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "s.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: 7\n"), 0o644))

	s, err := LoadSettings(path)

	require.NoError(t, err)
	assert.Equal(t, int64(7), s.Seed)
	entries, _ := os.ReadDir(dir)
	assert.Len(t, entries, 1)
}
