package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// memRegistry is an in-memory Registry for tests.
type memRegistry struct {
	realms     map[string]*Realm
	monsters   map[string]*Monster
	items      map[string]*Item
	areas      []*Area
	wandering  string
	containers map[EntityKind][]*Container
	tasks      []*SlayerTask
	signet     string
}

func newMemRegistry() *memRegistry {
	return &memRegistry{
		realms:     map[string]*Realm{"melvor": {ID: "melvor", Currency: "gp", Signet: true}},
		monsters:   make(map[string]*Monster),
		items:      make(map[string]*Item),
		containers: make(map[EntityKind][]*Container),
	}
}

func (r *memRegistry) addMonster(id string, level int) *Monster {
	m := &Monster{ID: id, Name: id, Realm: "melvor", CombatLevel: level, Hitpoints: 10, CanSlayer: true, LootChance: 100}
	r.monsters[id] = m
	return m
}

func (r *memRegistry) addArea(id string, kind AreaKind, monsters ...string) *Area {
	a := &Area{ID: id, Name: id, Kind: kind, Realm: "melvor", Monsters: monsters}
	r.areas = append(r.areas, a)
	return a
}

func (r *memRegistry) addContainer(kind EntityKind, id string, monsters ...string) *Container {
	c := &Container{ID: id, Name: id, Kind: kind, Realm: "melvor", Monsters: monsters}
	r.containers[kind] = append(r.containers[kind], c)
	return c
}

func (r *memRegistry) addTask(id string, minLevel, maxLevel int) *SlayerTask {
	t := &SlayerTask{ID: id, Name: id, Realm: "melvor", MinLevel: minLevel, MaxLevel: maxLevel}
	r.tasks = append(r.tasks, t)
	return t
}

func (r *memRegistry) Realm(id string) (*Realm, bool) {
	v, ok := r.realms[id]
	return v, ok
}

func (r *memRegistry) Monster(id string) (*Monster, bool) {
	v, ok := r.monsters[id]
	return v, ok
}

func (r *memRegistry) Item(id string) (*Item, bool) {
	v, ok := r.items[id]
	return v, ok
}

func (r *memRegistry) Areas() []*Area { return r.areas }

func (r *memRegistry) AreaOf(monsterID string) (*Area, bool) {
	for _, a := range r.areas {
		for _, m := range a.Monsters {
			if m == monsterID {
				return a, true
			}
		}
	}
	return nil, false
}

func (r *memRegistry) WanderingMonster() string { return r.wandering }

func (r *memRegistry) Containers(kind EntityKind) []*Container { return r.containers[kind] }

func (r *memRegistry) Container(kind EntityKind, id string) (*Container, bool) {
	for _, c := range r.containers[kind] {
		if c.ID == id {
			return c, true
		}
	}
	return nil, false
}

func (r *memRegistry) SlayerTasks() []*SlayerTask { return r.tasks }

func (r *memRegistry) SlayerTask(id string) (*SlayerTask, bool) {
	for _, t := range r.tasks {
		if t.ID == id {
			return t, true
		}
	}
	return nil, false
}

func (r *memRegistry) SignetItem() string { return r.signet }

// fakeChannel answers trials from a table of outcomes keyed by WorkKey.String().
// Unknown keys succeed with a 10s kill time.
type fakeChannel struct {
	mu       sync.Mutex
	outcomes map[string]TrialOutcome
	errs     map[string]error
	calls    []WorkKey
	// onCall runs before each answer; tests use it to cancel mid-run.
	onCall    func(n int)
	delay     time.Duration
	cancelled atomic.Int32
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{outcomes: make(map[string]TrialOutcome), errs: make(map[string]error)}
}

func (f *fakeChannel) Simulate(ctx context.Context, req TrialRequest) (TrialResponse, error) {
	key := WorkKey{MonsterID: req.MonsterID, EntityID: req.EntityID}
	f.mu.Lock()
	f.calls = append(f.calls, key)
	n := len(f.calls)
	o, ok := f.outcomes[key.String()]
	err := f.errs[key.String()]
	onCall := f.onCall
	f.mu.Unlock()

	if onCall != nil {
		onCall(n)
	}
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if err != nil {
		return TrialResponse{}, err
	}
	if !ok {
		o = successOutcome(10, 1)
	}
	return TrialResponse{MonsterID: req.MonsterID, EntityID: req.EntityID, ElapsedTime: time.Millisecond, Result: o}, nil
}

func (f *fakeChannel) Cancel() { f.cancelled.Add(1) }

func (f *fakeChannel) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeChannel) called() []WorkKey {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]WorkKey(nil), f.calls...)
}

// successOutcome returns a successful outcome with the given kill time and
// xp rate.
func successOutcome(killTimeS, xpPerSecond float64) TrialOutcome {
	return TrialOutcome{
		SimSuccess:      true,
		TickCount:       int64(killTimeS * 20),
		XPPerSecond:     xpPerSecond,
		LowestHitpoints: 50,
		KillTimeS:       killTimeS,
	}
}

// staticSnapshot is a SnapshotFunc returning a fixed blob.
func staticSnapshot() ([]byte, error) { return []byte(`{}`), nil }

// failingSnapshot is a SnapshotFunc that always fails.
func failingSnapshot() ([]byte, error) { return nil, fmt.Errorf("boom") }

// stubValueEngine counts Update calls.
type stubValueEngine struct {
	updates atomic.Int32
}

func (e *stubValueEngine) Update(*Store, Registry, *Settings) { e.updates.Add(1) }
