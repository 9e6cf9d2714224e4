package sim

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRecorder keeps appended snapshots in memory.
type memRecorder struct {
	snaps []*Snapshot
	err   error
}

func (r *memRecorder) Append(snap *Snapshot) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.snaps = append(r.snaps, snap)
	return "run-" + string(rune('0'+len(r.snaps))), nil
}

// newTestSimulator builds a Simulator with a counting value engine.
func newTestSimulator(t *testing.T, reg Registry, settings *Settings, recorder Recorder, channels ...ComputeChannel) (*Simulator, *stubValueEngine) {
	t.Helper()
	values := &stubValueEngine{}
	prev := NewValueEngineFunc
	NewValueEngineFunc = func() ValueEngine { return values }
	defer func() { NewValueEngineFunc = prev }()
	return NewSimulator(reg, settings, recorder, channels...), values
}

func TestSimulator_RunAll_AggregatesOnce(t *testing.T) {
	// GIVEN the queue fixture and a channel answering 10s kills
	reg := queueFixture()
	ch := newFakeChannel()
	ch.outcomes["raid/golbin"] = successOutcome(10, 5)
	ch.outcomes["raid/cow"] = successOutcome(30, 1)
	rec := &memRecorder{}
	s, values := newTestSimulator(t, reg, DefaultSettings(), rec, ch)

	// WHEN everything runs
	result, err := s.Run(context.Background(), ModeAll)

	// THEN all items complete and exactly one aggregation pass runs
	require.NoError(t, err)
	assert.Equal(t, 5, result.Report.Completed)
	assert.Equal(t, 1, s.AggregatePasses())
	assert.Equal(t, int32(1), values.updates.Load())

	// AND the dungeon composite sums every fight of a clear, golbin twice
	d, _ := s.Store().Composite(EntityRef{Kind: KindDungeon, ID: "raid"})
	assert.True(t, d.SimSuccess)
	assert.InDelta(t, 50.0, d.KillTimeS, 1e-9)
	assert.InDelta(t, (5*10*2+1*30)/50.0, d.XPPerSecond, 1e-9)

	// AND the run is recorded
	require.Len(t, rec.snaps, 1)
	assert.Equal(t, "run-1", result.HistoryID)
	assert.Len(t, result.Trace.Records(), 5)
}

func TestSimulator_Cancel_KeepsCompletedResultsAndAggregatesOnce(t *testing.T) {
	// GIVEN a run that is cancelled while the second item is in flight
	reg := queueFixture()
	ch := newFakeChannel()
	s, values := newTestSimulator(t, reg, DefaultSettings(), nil, ch)
	ch.onCall = func(n int) {
		if n == 2 {
			s.Cancel()
		}
	}

	// WHEN the run executes
	result, err := s.Run(context.Background(), ModeAll)

	// THEN completed results are merged and no further item was sent
	require.NoError(t, err)
	assert.True(t, result.Report.Cancelled)
	assert.Equal(t, 2, ch.callCount())
	cow, _ := s.Store().Leaf(WorkKey{MonsterID: "cow"})
	chicken, _ := s.Store().Leaf(WorkKey{MonsterID: "chicken"})
	assert.True(t, cow.SimSuccess)
	assert.True(t, chicken.SimSuccess)
	bard, _ := s.Store().Leaf(WorkKey{MonsterID: "bard"})
	assert.False(t, bard.SimSuccess)
	assert.False(t, bard.InQueue)

	// AND the channel was told to cancel
	assert.Equal(t, int32(1), ch.cancelled.Load())
	// AND exactly one aggregation pass ran
	assert.Equal(t, 1, s.AggregatePasses())
	assert.Equal(t, int32(1), values.updates.Load())
}

func TestSimulator_RunSelected_NothingSelected(t *testing.T) {
	ch := newFakeChannel()
	s, values := newTestSimulator(t, queueFixture(), DefaultSettings(), nil, ch)

	result, err := s.Run(context.Background(), ModeSelected)

	assert.ErrorIs(t, err, ErrNothingSelected)
	assert.Nil(t, result)
	assert.Zero(t, s.AggregatePasses())
	assert.Zero(t, values.updates.Load())
}

func TestSimulator_RunSelected_OnlyTargetRecordsChange(t *testing.T) {
	// GIVEN a completed full run
	reg := queueFixture()
	ch := newFakeChannel()
	settings := DefaultSettings()
	s, _ := newTestSimulator(t, reg, settings, nil, ch)
	_, err := s.Run(context.Background(), ModeAll)
	require.NoError(t, err)

	// WHEN the cow is re-run alone with a different outcome
	ch.outcomes["cow"] = successOutcome(2, 9)
	settings.Selected = "monster:cow"
	result, err := s.Run(context.Background(), ModeSelected)

	// THEN only the cow was dispatched and the chicken keeps its result
	require.NoError(t, err)
	assert.Equal(t, 1, result.Report.Total)
	cow, _ := s.Store().Leaf(WorkKey{MonsterID: "cow"})
	assert.Equal(t, 9.0, cow.XPPerSecond)
	chicken, _ := s.Store().Leaf(WorkKey{MonsterID: "chicken"})
	assert.True(t, chicken.SimSuccess)
	assert.Equal(t, 2, s.AggregatePasses())
}

func TestSimulator_RunSelected_SelectionErrorStillAggregates(t *testing.T) {
	settings := DefaultSettings()
	settings.Selected = "monster:dragon"
	ch := newFakeChannel()
	s, _ := newTestSimulator(t, queueFixture(), settings, nil, ch)

	result, err := s.Run(context.Background(), ModeSelected)

	var selErr *SelectionError
	require.True(t, errors.As(err, &selErr))
	assert.Equal(t, ReasonCannotAccess, selErr.Reason)
	require.NotNil(t, result)
	assert.Zero(t, result.Report.Total)
	assert.Zero(t, ch.callCount())
	assert.Equal(t, 1, s.AggregatePasses())
	assert.Contains(t, s.FailureText(EntityRef{Kind: KindMonster, ID: "dragon"}), "cannot access area")
}

func TestSimulator_Run_ConcurrentRunRejected(t *testing.T) {
	// GIVEN a run blocked inside its first trial
	ch := newFakeChannel()
	started := make(chan struct{})
	release := make(chan struct{})
	ch.onCall = func(n int) {
		if n == 1 {
			close(started)
			<-release
		}
	}
	s, _ := newTestSimulator(t, queueFixture(), DefaultSettings(), nil, ch)
	done := make(chan error, 1)
	go func() {
		_, err := s.Run(context.Background(), ModeAll)
		done <- err
	}()
	<-started

	// WHEN a second run starts
	_, err := s.Run(context.Background(), ModeAll)

	// THEN it is rejected while the first completes normally
	assert.ErrorIs(t, err, ErrAlreadyRunning)
	close(release)
	assert.NoError(t, <-done)
}

func TestSimulator_ExcludeSettingFiltersEntities(t *testing.T) {
	settings := DefaultSettings()
	settings.Exclude = []string{"dungeon:raid"}
	ch := newFakeChannel()
	s, _ := newTestSimulator(t, queueFixture(), settings, nil, ch)

	_, err := s.Run(context.Background(), ModeAll)

	require.NoError(t, err)
	for _, k := range ch.called() {
		assert.NotEqual(t, "raid", k.EntityID)
	}
	d, _ := s.Store().Composite(EntityRef{Kind: KindDungeon, ID: "raid"})
	assert.Equal(t, ReasonFiltered, d.Reason)
	assert.Equal(t, "Not simulated: entity filtered.", s.FailureText(EntityRef{Kind: KindDungeon, ID: "raid"}))
}

func TestSimulator_FailureText_AppendsContainerHint(t *testing.T) {
	reg := queueFixture()
	reg.containers[KindDungeon][0].Hint = "Waves are approximate."
	ch := newFakeChannel()
	ch.outcomes["raid/cow"] = TrialOutcome{Reason: "player died"}
	s, _ := newTestSimulator(t, reg, DefaultSettings(), nil, ch)

	_, err := s.Run(context.Background(), ModeAll)
	require.NoError(t, err)

	text := s.FailureText(EntityRef{Kind: KindDungeon, ID: "raid"})
	assert.Equal(t, "Simulation failed: player died Waves are approximate.", text)
	assert.Empty(t, s.FailureText(EntityRef{Kind: KindMonster, ID: "cow"}))
}

func TestSimulator_FailureText_ListsTaskExclusions(t *testing.T) {
	// GIVEN both easy task members die
	ch := newFakeChannel()
	ch.outcomes["cow"] = TrialOutcome{Reason: "player died"}
	ch.outcomes["chicken"] = TrialOutcome{Reason: "player died"}
	s, _ := newTestSimulator(t, queueFixture(), DefaultSettings(), nil, ch)

	// WHEN the run completes
	_, err := s.Run(context.Background(), ModeAll)
	require.NoError(t, err)

	// THEN the task failure names the candidate that was never a member
	text := s.FailureText(EntityRef{Kind: KindSlayerTask, ID: "easy"})
	assert.Equal(t, "Simulation failed: player died Excluded: dragon (combat level 80 outside 1-49).", text)
}

func TestSimulator_Restore_ReproducesRecords(t *testing.T) {
	// GIVEN a recorded run
	reg := queueFixture()
	ch := newFakeChannel()
	ch.outcomes["raid/golbin"] = successOutcome(10, 5)
	rec := &memRecorder{}
	s, _ := newTestSimulator(t, reg, DefaultSettings(), rec, ch)
	_, err := s.Run(context.Background(), ModeAll)
	require.NoError(t, err)
	require.Len(t, rec.snaps, 1)

	// WHEN a fresh simulator restores the snapshot
	other := newFakeChannel()
	restored, values := newTestSimulator(t, reg, DefaultSettings(), nil, other)
	require.NoError(t, restored.Restore(rec.snaps[0]))

	// THEN records match without any trial being dispatched
	assert.Zero(t, other.callCount())
	assert.Equal(t, 1, restored.AggregatePasses())
	assert.Equal(t, int32(1), values.updates.Load())
	xp, _ := PlotByName("xp")
	want, got := s.DataSet(xp), restored.DataSet(xp)
	require.Len(t, got, len(want))
	for i := range want {
		if math.IsNaN(want[i]) {
			assert.True(t, math.IsNaN(got[i]), "bar %d", i)
			continue
		}
		assert.Equal(t, want[i], got[i], "bar %d", i)
	}
	members := restored.Store().TaskMembers("easy")
	assert.Equal(t, []string{"cow", "chicken"}, members)

	// AND the task exclusions survive the round trip
	assert.Equal(t, "combat level 80 outside 1-49", rec.snaps[0].SlayerExclusions["easy"]["dragon"])
	assert.Equal(t, rec.snaps[0].SlayerExclusions["easy"], restored.Store().TaskExclusions("easy"))
}

func TestSimulator_Restore_RejectsBadSettings(t *testing.T) {
	s, _ := newTestSimulator(t, queueFixture(), DefaultSettings(), nil, newFakeChannel())

	err := s.Restore(&Snapshot{Settings: []byte(`{"trialCount": 0}`)})

	assert.Error(t, err)
	assert.Zero(t, s.AggregatePasses())
}

func TestSimulator_RecorderErrorDoesNotFailRun(t *testing.T) {
	rec := &memRecorder{err: errors.New("disk full")}
	s, _ := newTestSimulator(t, queueFixture(), DefaultSettings(), rec, newFakeChannel())

	result, err := s.Run(context.Background(), ModeAll)

	require.NoError(t, err)
	assert.Empty(t, result.HistoryID)
}

func TestNewSimulator_InvalidArguments_Panic(t *testing.T) {
	assert.Panics(t, func() { NewSimulator(nil, DefaultSettings(), nil, newFakeChannel()) })
	assert.Panics(t, func() { NewSimulator(queueFixture(), nil, nil, newFakeChannel()) })

	prev := NewValueEngineFunc
	NewValueEngineFunc = nil
	defer func() { NewValueEngineFunc = prev }()
	assert.Panics(t, func() { NewSimulator(queueFixture(), DefaultSettings(), nil, newFakeChannel()) })
}
