package engine

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/combat-sim/combat-sim/sim"
	"github.com/combat-sim/combat-sim/sim/catalog"
)

const engineCatalog = `
realms:
  - {id: melvor, name: Melvor, currency: gp}
monsters:
  - {id: cow, name: Cow, realm: melvor, combat_level: 3, hitpoints: 80, max_hit: 3, attack_interval_ms: 3000, accuracy: 0.4, slayer: true}
  - {id: brute, name: Brute, realm: melvor, combat_level: 40, hitpoints: 10, max_hit: 150, attack_interval_ms: 2400, accuracy: 1}
  - {id: spiky, name: Spiky, realm: melvor, combat_level: 10, hitpoints: 40, max_hit: 1, attack_interval_ms: 3000, accuracy: 0.1, reflect_damage: 2}
  - {id: wall, name: Wall, realm: melvor, combat_level: 1, hitpoints: 1e12, max_hit: 0, attack_interval_ms: 3000, accuracy: 0}
  - {id: wisp, name: Wisp, realm: melvor, combat_level: 200, hitpoints: 90, max_hit: 6, attack_interval_ms: 2500, accuracy: 0.7, damage_type: abyssal}
`

func newTestChannel(t *testing.T) *Channel {
	t.Helper()
	reg, err := catalog.Parse([]byte(engineCatalog))
	require.NoError(t, err)
	return New(reg)
}

func request(t *testing.T, settings *sim.Settings, monster string, trials int, budget int64) sim.TrialRequest {
	t.Helper()
	snap, err := settings.Snapshot()
	require.NoError(t, err)
	return sim.TrialRequest{MonsterID: monster, Snapshot: snap, TrialCount: trials, TickBudget: budget}
}

func TestChannel_Simulate_Succeeds(t *testing.T) {
	// GIVEN the default player against a cow
	ch := newTestChannel(t)
	req := request(t, sim.DefaultSettings(), "cow", 20, 1_000_000)

	// WHEN the trial runs
	resp, err := ch.Simulate(context.Background(), req)

	// THEN every kill resolves within budget with sane rates
	require.NoError(t, err)
	o := resp.Result
	require.True(t, o.SimSuccess, o.Reason)
	assert.NoError(t, o.Validate())
	assert.Equal(t, "cow", resp.MonsterID)
	assert.Greater(t, o.KillTimeS, 0.0)
	assert.LessOrEqual(t, o.TickCount, int64(1_000_000))
	assert.InDelta(t, float64(o.TickCount)*TickMS/1000/20, o.KillTimeS, 1e-9)
	assert.Zero(t, o.DeathRate)
	assert.Greater(t, o.XPPerSecond, 0.0)
	assert.Zero(t, o.SlayerXPPerSecond, "not on a slayer task")
	assert.Equal(t, map[string]float64{"attack": 2400}, o.PetRolls)
	assert.Nil(t, o.MarkRolls)
}

func TestChannel_Simulate_DeterministicForSeed(t *testing.T) {
	ch := newTestChannel(t)
	req := request(t, sim.DefaultSettings(), "cow", 10, 1_000_000)

	first, err := ch.Simulate(context.Background(), req)
	require.NoError(t, err)
	second, err := ch.Simulate(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, first.Result, second.Result)

	other := sim.DefaultSettings()
	other.Seed = 7
	third, err := ch.Simulate(context.Background(), request(t, other, "cow", 10, 1_000_000))
	require.NoError(t, err)
	assert.NotEqual(t, first.Result, third.Result)
}

func TestChannel_Simulate_TickBudgetExhausted(t *testing.T) {
	ch := newTestChannel(t)

	resp, err := ch.Simulate(context.Background(), request(t, sim.DefaultSettings(), "cow", 5, 10))

	require.NoError(t, err)
	assert.False(t, resp.Result.SimSuccess)
	assert.Equal(t, ReasonTickBudget, resp.Result.Reason)
	assert.Equal(t, int64(10), resp.Result.TickCount)
}

func TestChannel_Simulate_DeathsCounted(t *testing.T) {
	ch := newTestChannel(t)

	resp, err := ch.Simulate(context.Background(), request(t, sim.DefaultSettings(), "brute", 50, 10_000_000))

	require.NoError(t, err)
	o := resp.Result
	require.True(t, o.SimSuccess, o.Reason)
	assert.Greater(t, o.DeathRate, 0.0)
	assert.Less(t, o.DeathRate, 1.0)
	assert.Greater(t, o.HighestDamageTaken, 0.0)
	assert.Zero(t, o.LowestHitpoints)
}

func TestChannel_Simulate_ReflectAndConsumables(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.Combat.RunesPerAttack = map[string]float64{"air": 2, "mind": 1}
	settings.Combat.Familiars = []string{"wolf"}
	settings.Combat.TabletsPerAttack = 1
	settings.Combat.OnSlayerTask = true
	ch := newTestChannel(t)

	resp, err := ch.Simulate(context.Background(), request(t, settings, "spiky", 5, 1_000_000))

	require.NoError(t, err)
	o := resp.Result
	require.True(t, o.SimSuccess, o.Reason)
	assert.Equal(t, 2.0, o.HighestReflectDamageTaken)
	assert.InDelta(t, o.UsedRunesBreakdown["air"]+o.UsedRunesBreakdown["mind"], o.RunesUsedPerSecond, 1e-12)
	assert.InDelta(t, 2*o.UsedRunesBreakdown["mind"], o.UsedRunesBreakdown["air"], 1e-12)
	assert.InDelta(t, o.AttacksMadePerSecond, o.TabletsUsedPerSecond, 1e-12)
	assert.Equal(t, map[string]float64{"wolf": 2400}, o.MarkRolls)
	assert.Zero(t, o.SlayerXPPerSecond, "spiky is not a slayer monster")
}

func TestChannel_Simulate_SlayerXPOnTask(t *testing.T) {
	settings := sim.DefaultSettings()
	settings.Combat.OnSlayerTask = true
	ch := newTestChannel(t)

	resp, err := ch.Simulate(context.Background(), request(t, settings, "cow", 5, 1_000_000))

	require.NoError(t, err)
	o := resp.Result
	assert.InDelta(t, 80/slayerXPDivisor/o.KillTimeS, o.SlayerXPPerSecond, 1e-9)
}

func TestChannel_Simulate_RequiresDamageType(t *testing.T) {
	ch := newTestChannel(t)

	resp, err := ch.Simulate(context.Background(), request(t, sim.DefaultSettings(), "wisp", 5, 1_000_000))

	require.NoError(t, err)
	assert.False(t, resp.Result.SimSuccess)
	assert.Equal(t, "requires abyssal damage", resp.Result.Reason)

	settings := sim.DefaultSettings()
	settings.Player.DamageType = "abyssal"
	resp, err = ch.Simulate(context.Background(), request(t, settings, "wisp", 5, 1_000_000))
	require.NoError(t, err)
	assert.True(t, resp.Result.SimSuccess, resp.Result.Reason)
}

func TestChannel_Simulate_RequestErrors(t *testing.T) {
	ch := newTestChannel(t)
	good := request(t, sim.DefaultSettings(), "cow", 5, 1000)

	tests := []struct {
		name   string
		mutate func(r *sim.TrialRequest)
	}{
		{"unknown monster", func(r *sim.TrialRequest) { r.MonsterID = "dragon" }},
		{"zero trials", func(r *sim.TrialRequest) { r.TrialCount = 0 }},
		{"zero budget", func(r *sim.TrialRequest) { r.TickBudget = 0 }},
		{"bad snapshot", func(r *sim.TrialRequest) { r.Snapshot = []byte("{") }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := good
			tc.mutate(&req)
			_, err := ch.Simulate(context.Background(), req)
			assert.Error(t, err)
		})
	}
}

func TestChannel_Simulate_ContextCancelled(t *testing.T) {
	ch := newTestChannel(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := ch.Simulate(ctx, request(t, sim.DefaultSettings(), "wall", 1, 1<<40))

	require.NoError(t, err)
	assert.Equal(t, ReasonCancelled, resp.Result.Reason)
}

func TestChannel_Cancel_AbortsTrialInFlight(t *testing.T) {
	// GIVEN a trial that would never finish on its own
	ch := newTestChannel(t)
	req := request(t, sim.DefaultSettings(), "wall", 1, 1<<40)
	done := make(chan sim.TrialResponse, 1)
	go func() {
		resp, _ := ch.Simulate(context.Background(), req)
		done <- resp
	}()

	// WHEN the channel is cancelled
	var resp sim.TrialResponse
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case resp = <-done:
			break wait
		case <-ticker.C:
			ch.Cancel()
		}
	}

	// THEN the trial stops as cancelled
	assert.False(t, resp.Result.SimSuccess)
	assert.Equal(t, ReasonCancelled, resp.Result.Reason)
}

func TestDuel_FractionalMaxHitNeverExceeded(t *testing.T) {
	// GIVEN a monster whose max hit is below one
	player := sim.DefaultSettings().Combat
	d := &duel{
		player:    &player,
		monster:   &sim.Monster{ID: "gnat", Hitpoints: 30, MaxHit: 0.5, AttackIntervalMS: 600, Accuracy: 1},
		rng:       rand.New(rand.NewSource(3)),
		stop:      func() bool { return false },
		canDamage: true,
	}

	// WHEN it lands hits over many kills
	o := d.run(50, 1_000_000)

	// THEN no hit is larger than the max hit
	require.True(t, o.SimSuccess, o.Reason)
	assert.Greater(t, o.HighestDamageTaken, 0.0)
	assert.LessOrEqual(t, o.HighestDamageTaken, 0.5)
}

func TestNew_NilRegistryPanics(t *testing.T) {
	assert.Panics(t, func() { New(nil) })
}
