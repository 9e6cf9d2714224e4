// Package engine is the in-process reference combat engine. It resolves
// trials tick by tick and serves as a sim.ComputeChannel.
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/combat-sim/combat-sim/sim"
)

// TickMS is the length of one combat tick in milliseconds.
const TickMS = 50

// ReasonTickBudget is the failure reason of a trial that ran out of ticks.
const ReasonTickBudget = "tick budget exhausted before all kills resolved"

// ReasonCancelled is the failure reason of an aborted trial.
const ReasonCancelled = "trial cancelled"

// Channel runs trials in-process against a registry.
type Channel struct {
	reg sim.Registry
	// cancelGen is bumped by Cancel; a trial aborts when it changes.
	cancelGen atomic.Int64
}

var _ sim.ComputeChannel = (*Channel)(nil)

// New creates an in-process channel.
func New(reg sim.Registry) *Channel {
	if reg == nil {
		panic("engine.New: registry must not be nil")
	}
	return &Channel{reg: reg}
}

// Simulate decodes the settings snapshot and runs the trial. Request errors
// (unknown monster, bad snapshot) are returned as errors; combat failures are
// reported in the outcome.
func (c *Channel) Simulate(ctx context.Context, req sim.TrialRequest) (sim.TrialResponse, error) {
	gen := c.cancelGen.Load()
	start := time.Now()
	settings, err := sim.DecodeSnapshot(req.Snapshot)
	if err != nil {
		return sim.TrialResponse{}, err
	}
	m, ok := c.reg.Monster(req.MonsterID)
	if !ok {
		return sim.TrialResponse{}, fmt.Errorf("unknown monster %q", req.MonsterID)
	}
	if req.TrialCount < 1 || req.TickBudget < 1 {
		return sim.TrialResponse{}, fmt.Errorf("trial count and tick budget must be >= 1, got %d and %d", req.TrialCount, req.TickBudget)
	}

	key := sim.WorkKey{MonsterID: req.MonsterID, EntityID: req.EntityID}
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(settings.Seed)).ForSubsystem(sim.SubsystemTrial(key))
	d := &duel{
		player:  &settings.Combat,
		monster: m,
		rng:     rng,
		stop: func() bool {
			return ctx.Err() != nil || c.cancelGen.Load() != gen
		},
		canDamage: settings.Player.CanDamage(m.DamageType),
		onTask:    settings.Combat.OnSlayerTask && m.CanSlayer,
	}
	outcome := d.run(req.TrialCount, req.TickBudget)
	logrus.Debugf("engine: %s resolved in %d ticks (success=%v)", key, outcome.TickCount, outcome.SimSuccess)
	return sim.TrialResponse{
		MonsterID:   req.MonsterID,
		EntityID:    req.EntityID,
		ElapsedTime: time.Since(start),
		Result:      outcome,
	}, nil
}

// Cancel aborts the trial in flight, if any.
func (c *Channel) Cancel() {
	c.cancelGen.Add(1)
}
