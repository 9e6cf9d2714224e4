package sim

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/combat-sim/combat-sim/sim/trace"
)

// Snapshot is a restorable copy of a run's results: the settings blob plus
// the records of every entity family. Monsters is keyed by WorkKey.String()
// and holds container member records too.
type Snapshot struct {
	Settings    json.RawMessage           `json:"settings"`
	Monsters    map[string]SimulationData `json:"monsters"`
	Dungeons    map[string]SimulationData `json:"dungeons"`
	Strongholds map[string]SimulationData `json:"strongholds"`
	Depths      map[string]SimulationData `json:"depths"`
	Slayer      map[string]SimulationData `json:"slayer"`
	// SlayerMembers is task id -> eligible members at queue time.
	SlayerMembers map[string][]string `json:"slayerMembers,omitempty"`
	// SlayerExclusions is task id -> monster id -> why it was not a member.
	SlayerExclusions map[string]map[string]string `json:"slayerExclusions,omitempty"`
}

// Recorder keeps an append-only history of run snapshots.
type Recorder interface {
	Append(snap *Snapshot) (string, error)
}

// RunResult describes a finished run.
type RunResult struct {
	Report    RunReport
	Trace     *trace.RunTrace
	HistoryID string
}

// Simulator orchestrates a run: reset, queue, dispatch, aggregate, value.
type Simulator struct {
	reg        Registry
	settings   *Settings
	store      *Store
	builder    *QueueBuilder
	dispatcher *Dispatcher
	aggregator *Aggregator
	values     ValueEngine
	recorder   Recorder

	running atomic.Bool
	passes  atomic.Int64

	mu    sync.Mutex
	token *CancelToken
}

// NewSimulator creates a Simulator over the registry. The settings must be
// validated; recorder may be nil to disable history.
func NewSimulator(reg Registry, settings *Settings, recorder Recorder, channels ...ComputeChannel) *Simulator {
	if reg == nil {
		panic("Simulator: registry must not be nil")
	}
	if settings == nil {
		panic("Simulator: settings must not be nil")
	}
	if NewValueEngineFunc == nil {
		panic("Simulator: NewValueEngineFunc not registered; import sim/loot")
	}
	store := NewStore()
	for _, e := range settings.Exclude {
		ref, err := ParseEntityRef(e)
		if err != nil {
			panic(fmt.Sprintf("Simulator: invalid exclusion %q: %v", e, err))
		}
		store.SetIncluded(ref, false)
	}
	s := &Simulator{
		reg:        reg,
		settings:   settings,
		store:      store,
		builder:    NewQueueBuilder(reg, store, settings.Player),
		aggregator: NewAggregator(reg, store),
		values:     NewValueEngineFunc(),
		recorder:   recorder,
	}
	s.dispatcher = NewDispatcher(store, DispatchConfig{
		TrialCount:  settings.TrialCount,
		TickBudget:  settings.TickBudget,
		ItemTimeout: time.Duration(settings.ItemTimeoutMS) * time.Millisecond,
	}, settings.Snapshot, channels...)
	ResetRecords(reg, store, settings.Player, EntityRef{})
	return s
}

// Store returns the record store.
func (s *Simulator) Store() *Store { return s.store }

// Settings returns the run settings.
func (s *Simulator) Settings() *Settings { return s.settings }

// Registry returns the entity registry.
func (s *Simulator) Registry() Registry { return s.reg }

// AggregatePasses returns how many aggregation passes have run.
func (s *Simulator) AggregatePasses() int { return int(s.passes.Load()) }

// AddObserver registers a progress observer on the dispatcher.
func (s *Simulator) AddObserver(o ProgressObserver) { s.dispatcher.AddObserver(o) }

// Run simulates every eligible target (ModeAll) or the selected target
// (ModeSelected). A *SelectionError is returned after the target's records are
// updated; ErrNothingSelected is returned before anything changes.
func (s *Simulator) Run(ctx context.Context, mode Mode) (*RunResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Store(false)

	var target EntityRef
	if mode == ModeSelected {
		target = s.settings.SelectedRef()
		if target.IsZero() {
			return nil, ErrNothingSelected
		}
	}

	token := &CancelToken{}
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.token = nil
		s.mu.Unlock()
	}()

	started := time.Now()
	ResetRecords(s.reg, s.store, s.settings.Player, target)
	q, buildErr := s.builder.Build(mode, target)
	var selErr *SelectionError
	if buildErr != nil && !errors.As(buildErr, &selErr) {
		return nil, buildErr
	}

	rt := trace.NewRunTrace(started)
	s.dispatcher.SetTrace(rt)
	report := s.dispatcher.Run(ctx, q, token)
	s.finish(s.settings)

	result := &RunResult{Report: report, Trace: rt}
	if s.recorder != nil {
		snap, err := s.Snapshot()
		if err != nil {
			logrus.Warnf("history: %v", err)
		} else if id, err := s.recorder.Append(snap); err != nil {
			logrus.Warnf("history: appending run: %v", err)
		} else {
			result.HistoryID = id
		}
	}
	logrus.Infof("run finished in %v: %d/%d items, cancelled=%v", time.Since(started).Round(time.Millisecond),
		report.Completed, report.Total, report.Cancelled)
	return result, buildErr
}

// finish runs the single aggregation pass of a run and the passes that depend
// on it.
func (s *Simulator) finish(settings *Settings) {
	s.aggregator.RecomputeAll()
	s.passes.Add(1)
	s.values.Update(s.store, s.reg, settings)
	ApplySupplyAdjustment(s.store, settings.Supply, settings.TimeUnit)
}

// Cancel stops dispatch of further items and forwards a cancel to every
// compute channel. It does not wait for in-flight trials.
func (s *Simulator) Cancel() {
	s.mu.Lock()
	token := s.token
	s.mu.Unlock()
	if token != nil {
		token.Cancel()
	}
	s.dispatcher.CancelChannels()
}

// DataSet returns the chart values of plot over Bars(registry).
func (s *Simulator) DataSet(plot PlotType) []float64 {
	return GetDataSet(s.store, s.reg, plot, s.settings.TimeUnit)
}

// FailureText explains why the record of ref has no result, or "" on success.
func (s *Simulator) FailureText(ref EntityRef) string {
	d, ok := s.store.Record(ref)
	if !ok {
		return ""
	}
	var hint string
	switch {
	case ref.Kind.IsContainer():
		if c, ok := s.reg.Container(ref.Kind, ref.ID); ok {
			hint = c.Hint
		}
	case ref.Kind == KindSlayerTask:
		hint = exclusionHint(s.store.TaskExclusions(ref.ID))
	}
	return GetSimFailureText(d, s.settings.TickBudget, hint)
}

// exclusionHint lists excluded task candidates sorted by monster id.
func exclusionHint(exclusions map[string]string) string {
	if len(exclusions) == 0 {
		return ""
	}
	ids := make([]string, 0, len(exclusions))
	for id := range exclusions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%s (%s)", id, exclusions[id])
	}
	return "Excluded: " + strings.Join(parts, ", ") + "."
}

// Snapshot captures the current records for the history.
func (s *Simulator) Snapshot() (*Snapshot, error) {
	blob, err := s.settings.Snapshot()
	if err != nil {
		return nil, fmt.Errorf("serializing settings: %w", err)
	}
	snap := &Snapshot{
		Settings:         blob,
		Monsters:         make(map[string]SimulationData),
		Dungeons:         s.composites(KindDungeon),
		Strongholds:      s.composites(KindStronghold),
		Depths:           s.composites(KindDepth),
		Slayer:           s.composites(KindSlayerTask),
		SlayerMembers:    make(map[string][]string),
		SlayerExclusions: make(map[string]map[string]string),
	}
	for _, key := range s.store.Leaves() {
		if d, ok := s.store.Leaf(key); ok {
			snap.Monsters[key.String()] = *d.Clone()
		}
	}
	for id := range snap.Slayer {
		if m := s.store.TaskMembers(id); len(m) > 0 {
			snap.SlayerMembers[id] = m
		}
		if ex := s.store.TaskExclusions(id); len(ex) > 0 {
			snap.SlayerExclusions[id] = ex
		}
	}
	return snap, nil
}

func (s *Simulator) composites(kind EntityKind) map[string]SimulationData {
	out := make(map[string]SimulationData)
	for _, ref := range s.store.Composites(kind) {
		if d, ok := s.store.Composite(ref); ok {
			out[ref.ID] = *d.Clone()
		}
	}
	return out
}

// Restore loads a snapshot's records and recomputes aggregates and values
// without dispatching any trial. Values are computed with the snapshot's own
// settings; the simulator's settings for later runs are unchanged.
func (s *Simulator) Restore(snap *Snapshot) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	settings := s.settings
	if len(snap.Settings) > 0 {
		decoded, err := DecodeSnapshot(bytes.Clone(snap.Settings))
		if err != nil {
			return fmt.Errorf("restoring settings: %w", err)
		}
		settings = decoded
	}
	for _, d := range snap.Monsters {
		if d.MonsterID == "" {
			continue
		}
		rec := d.Clone()
		rec.InQueue = false
		s.store.setLeaf(WorkKey{MonsterID: rec.MonsterID, EntityID: rec.EntityID}, rec)
	}
	restore := func(kind EntityKind, m map[string]SimulationData) {
		for id, d := range m {
			rec := d.Clone()
			rec.InQueue = false
			s.store.setComposite(EntityRef{Kind: kind, ID: id}, rec)
		}
	}
	restore(KindDungeon, snap.Dungeons)
	restore(KindStronghold, snap.Strongholds)
	restore(KindDepth, snap.Depths)
	restore(KindSlayerTask, snap.Slayer)
	for id := range snap.Slayer {
		s.store.SetTaskMembers(id, snap.SlayerMembers[id], snap.SlayerExclusions[id])
	}
	s.finish(settings)
	logrus.Infof("restored snapshot: %d monster records", len(snap.Monsters))
	return nil
}
