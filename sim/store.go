package sim

import (
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"
)

// WorkKey identifies a leaf record: a monster, optionally fought inside a
// container. Open-world and slayer-task monsters have an empty EntityID.
type WorkKey struct {
	MonsterID string
	EntityID  string
}

// String renders "monster" or "entity/monster".
func (k WorkKey) String() string {
	if k.EntityID == "" {
		return k.MonsterID
	}
	return k.EntityID + "/" + k.MonsterID
}

// Store is the simulation record store. Leaf records are written by the
// dispatcher, composite records by the aggregator, and loot-derived fields by
// the value engine. Methods are safe for concurrent use; phases never share
// a record.
type Store struct {
	mu         sync.Mutex
	leaves     map[WorkKey]*SimulationData
	composites map[EntityRef]*SimulationData
	excluded   map[EntityRef]bool

	taskMembers    map[string][]string
	taskExclusions map[string]map[string]string
}

// NewStore creates an empty store. Every entity is included until filtered.
func NewStore() *Store {
	return &Store{
		leaves:         make(map[WorkKey]*SimulationData),
		composites:     make(map[EntityRef]*SimulationData),
		excluded:       make(map[EntityRef]bool),
		taskMembers:    make(map[string][]string),
		taskExclusions: make(map[string]map[string]string),
	}
}

// SetIncluded sets the inclusion filter of an entity.
func (s *Store) SetIncluded(ref EntityRef, included bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if included {
		delete(s.excluded, ref)
	} else {
		s.excluded[ref] = true
	}
}

// Included reports the inclusion filter of an entity.
func (s *Store) Included(ref EntityRef) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.excluded[ref]
}

// Leaf returns the leaf record for key.
func (s *Store) Leaf(key WorkKey) (*SimulationData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.leaves[key]
	return d, ok
}

// Composite returns the composite record for ref.
func (s *Store) Composite(ref EntityRef) (*SimulationData, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.composites[ref]
	return d, ok
}

// Record returns the record a bar displays: the composite for containers and
// tasks, the open-world leaf for monsters.
func (s *Store) Record(ref EntityRef) (*SimulationData, bool) {
	if ref.Kind == KindMonster {
		return s.Leaf(WorkKey{MonsterID: ref.ID})
	}
	return s.Composite(ref)
}

// ResetLeaf replaces the leaf record with a fresh "not simulated" one.
func (s *Store) ResetLeaf(key WorkKey, realm string) *SimulationData {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := NewSimulationData(key.MonsterID, key.EntityID, realm)
	s.leaves[key] = d
	return d
}

// ResetComposite replaces the composite record with a fresh one.
func (s *Store) ResetComposite(ref EntityRef, realm string) *SimulationData {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := NewSimulationData("", ref.ID, realm)
	s.composites[ref] = d
	if ref.Kind == KindSlayerTask {
		delete(s.taskMembers, ref.ID)
		delete(s.taskExclusions, ref.ID)
	}
	return d
}

// MarkQueued flags the leaf record as queued. It returns false when the record
// is already queued in this run, which callers use to drop duplicate work.
func (s *Store) MarkQueued(key WorkKey) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.leaves[key]
	if !ok {
		panic(fmt.Sprintf("Store: no record for work item %q", key))
	}
	if d.InQueue {
		return false
	}
	d.InQueue = true
	d.Reason = ReasonNotSimulated
	return true
}

// SetLeafReason marks an unqueued leaf record failed with reason.
func (s *Store) SetLeafReason(key WorkKey, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.leaves[key]; ok && !d.InQueue {
		d.Fail(reason)
	}
}

// RecordResult merges a trial outcome into the leaf record and stamps the
// measured cost of the trial.
func (s *Store) RecordResult(key WorkKey, o TrialOutcome, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.leaves[key]
	if !ok {
		panic(fmt.Sprintf("Store: result for unknown work item %q", key))
	}
	d.Merge(o, elapsed)
}

// RecordFailure marks the leaf record failed after a compute error.
func (s *Store) RecordFailure(key WorkKey, reason string, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.leaves[key]
	if !ok {
		panic(fmt.Sprintf("Store: failure for unknown work item %q", key))
	}
	d.Fail(reason)
	d.SimulationTime = float64(elapsed) / float64(time.Millisecond)
}

// ClearQueued drops the queued flag of every leaf. Used after a cancelled run
// so that unsent items do not linger as queued.
func (s *Store) ClearQueued() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range s.leaves {
		d.InQueue = false
	}
}

// SetTaskMembers stores the eligible members of a slayer task computed at
// queue time together with the exclusion reason of each rejected candidate.
func (s *Store) SetTaskMembers(taskID string, members []string, exclusions map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.taskMembers[taskID] = append([]string(nil), members...)
	s.taskExclusions[taskID] = maps.Clone(exclusions)
}

// TaskMembers returns the eligible members of a slayer task.
func (s *Store) TaskMembers(taskID string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.taskMembers[taskID]...)
}

// TaskExclusions returns monster id -> reason for candidates rejected by a task.
func (s *Store) TaskExclusions(taskID string) map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.taskExclusions[taskID]))
	for k, v := range s.taskExclusions[taskID] {
		out[k] = v
	}
	return out
}

// Leaves returns the leaf keys in sorted order.
func (s *Store) Leaves() []WorkKey {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]WorkKey, 0, len(s.leaves))
	for k := range s.leaves {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Composites returns the composite refs of the given kind in sorted order.
func (s *Store) Composites(kind EntityKind) []EntityRef {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []EntityRef
	for r := range s.composites {
		if r.Kind == kind {
			refs = append(refs, r)
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs
}

// setComposite installs an aggregated record.
func (s *Store) setComposite(ref EntityRef, d *SimulationData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.composites[ref] = d
}

// setLeaf installs a leaf record, replacing any existing one.
func (s *Store) setLeaf(key WorkKey, d *SimulationData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leaves[key] = d
}
