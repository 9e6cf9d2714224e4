package sim

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Mode selects which targets a run simulates.
type Mode int

const (
	// ModeAll simulates every eligible target.
	ModeAll Mode = iota
	// ModeSelected simulates only the currently selected target.
	ModeSelected
)

func (m Mode) String() string {
	if m == ModeSelected {
		return "selected"
	}
	return "all"
}

// WorkItem is one (monster, optional container) pair needing a fresh trial.
type WorkItem struct {
	MonsterID string
	EntityID  string
}

// Key returns the record key the item's result is merged into.
func (w WorkItem) Key() WorkKey {
	return WorkKey{MonsterID: w.MonsterID, EntityID: w.EntityID}
}

// Queue is the ordered list of work items of one run.
type Queue struct {
	items []WorkItem
}

// Len returns the number of queued items.
func (q *Queue) Len() int {
	return len(q.items)
}

// Items returns a copy of the queued items in dispatch order.
func (q *Queue) Items() []WorkItem {
	return append([]WorkItem(nil), q.items...)
}

// QueueBuilder computes the work of a run from the registry, the inclusion
// filters and the player's access.
type QueueBuilder struct {
	reg    Registry
	store  *Store
	player PlayerState
}

// NewQueueBuilder creates a QueueBuilder.
func NewQueueBuilder(reg Registry, store *Store, player PlayerState) *QueueBuilder {
	return &QueueBuilder{reg: reg, store: store, player: player}
}

// Build returns the work queue for mode. In ModeSelected a missing selection
// yields ErrNothingSelected and a filtered or inaccessible target yields a
// *SelectionError; the returned queue is then empty.
func (b *QueueBuilder) Build(mode Mode, selected EntityRef) (*Queue, error) {
	q := &Queue{}
	switch mode {
	case ModeAll:
		b.queueAll(q)
		return q, nil
	case ModeSelected:
		if selected.IsZero() {
			return q, ErrNothingSelected
		}
		if err := b.queueSelected(q, selected); err != nil {
			return &Queue{}, err
		}
		return q, nil
	default:
		panic(fmt.Sprintf("QueueBuilder: unknown mode %d", mode))
	}
}

func (b *QueueBuilder) queueAll(q *Queue) {
	for _, area := range b.reg.Areas() {
		if area.Kind == AreaSlayer && !b.player.MeetsAll(area.Requirements) {
			logrus.Debugf("slayer area %s is not accessible; %d monsters skipped", area.ID, len(area.Monsters))
			for _, m := range area.Monsters {
				b.store.SetLeafReason(WorkKey{MonsterID: m}, ReasonCannotAccess)
			}
			continue
		}
		for _, m := range area.Monsters {
			b.queueMonster(q, m)
		}
	}
	if w := b.reg.WanderingMonster(); w != "" {
		b.queueMonster(q, w)
	}
	for _, kind := range ContainerKinds {
		for _, c := range b.reg.Containers(kind) {
			if b.store.Included(c.Ref()) {
				b.queueContainer(q, c)
			}
		}
	}
	for _, t := range b.reg.SlayerTasks() {
		if b.store.Included(EntityRef{Kind: KindSlayerTask, ID: t.ID}) {
			b.queueTask(q, t)
		}
	}
}

func (b *QueueBuilder) queueSelected(q *Queue, ref EntityRef) error {
	if !b.store.Included(ref) {
		return &SelectionError{Target: ref, Reason: ReasonFiltered}
	}
	switch {
	case ref.Kind == KindMonster:
		b.mustMonster(ref.ID)
		if area, ok := b.reg.AreaOf(ref.ID); ok && area.Kind == AreaSlayer && !b.player.MeetsAll(area.Requirements) {
			b.store.SetLeafReason(WorkKey{MonsterID: ref.ID}, ReasonCannotAccess)
			return &SelectionError{Target: ref, Reason: ReasonCannotAccess}
		}
		b.push(q, WorkItem{MonsterID: ref.ID})
	case ref.Kind.IsContainer():
		c := b.mustContainer(ref)
		if !b.queueContainer(q, c) {
			return &SelectionError{Target: ref, Reason: ReasonCannotAccess}
		}
	case ref.Kind == KindSlayerTask:
		t := b.mustTask(ref.ID)
		if !b.queueTask(q, t) {
			rec, _ := b.store.Composite(ref)
			return &SelectionError{Target: ref, Reason: rec.Reason}
		}
	default:
		panic(fmt.Sprintf("QueueBuilder: cannot select entity kind %q", ref.Kind))
	}
	return nil
}

func (b *QueueBuilder) queueMonster(q *Queue, id string) {
	key := WorkKey{MonsterID: id}
	if !b.store.Included(EntityRef{Kind: KindMonster, ID: id}) {
		b.store.SetLeafReason(key, ReasonFiltered)
		return
	}
	b.push(q, WorkItem{MonsterID: id})
}

// queueContainer queues every member of c and reports whether c was accessible.
func (b *QueueBuilder) queueContainer(q *Queue, c *Container) bool {
	if !b.player.MeetsAll(c.Requirements) {
		logrus.Debugf("%s %s is not accessible", c.Kind, c.ID)
		for _, m := range c.Monsters {
			b.store.SetLeafReason(WorkKey{MonsterID: m, EntityID: c.ID}, ReasonCannotAccess)
		}
		return false
	}
	for _, m := range c.Monsters {
		b.push(q, WorkItem{MonsterID: m, EntityID: c.ID})
	}
	return true
}

// queueTask computes the task's members, queues them and reports whether any
// member qualified. A task without members is marked skipped.
func (b *QueueBuilder) queueTask(q *Queue, t *SlayerTask) bool {
	ref := EntityRef{Kind: KindSlayerTask, ID: t.ID}
	rec, ok := b.store.Composite(ref)
	if !ok {
		panic(fmt.Sprintf("QueueBuilder: no record for slayer task %q", t.ID))
	}
	if !b.player.MeetsAll(t.Requirements) {
		b.store.SetTaskMembers(t.ID, nil, nil)
		rec.IsSkipped = true
		rec.Reason = ReasonCannotAccess
		return false
	}
	members, exclusions := b.TaskMembers(t)
	b.store.SetTaskMembers(t.ID, members, exclusions)
	if len(members) == 0 {
		rec.IsSkipped = true
		rec.Reason = fmt.Sprintf("%s (combat level %s, realm %s)", ReasonNoTaskMonsters, levelWindow(t), t.Realm)
		logrus.Debugf("slayer task %s skipped: %s", t.ID, rec.Reason)
		return false
	}
	for _, m := range members {
		b.push(q, WorkItem{MonsterID: m})
	}
	return true
}

// TaskMembers evaluates every slayer candidate against the task and returns
// the eligible monsters in registry order plus the reason each other
// candidate was excluded.
func (b *QueueBuilder) TaskMembers(t *SlayerTask) ([]string, map[string]string) {
	var members []string
	exclusions := make(map[string]string)
	for _, c := range taskCandidates(b.reg) {
		mon := b.mustMonster(c.monsterID)
		var reason string
		switch {
		case mon.Realm != t.Realm:
			reason = fmt.Sprintf("realm %s does not match task realm %s", mon.Realm, t.Realm)
		case !t.InLevelWindow(mon.CombatLevel):
			reason = fmt.Sprintf("combat level %d outside %s", mon.CombatLevel, levelWindow(t))
		case !b.store.Included(EntityRef{Kind: KindMonster, ID: mon.ID}):
			reason = ReasonFiltered
		case !b.player.CanDamage(mon.DamageType):
			reason = fmt.Sprintf("requires %s damage", mon.DamageType)
		case c.area.Kind == AreaSlayer && !b.player.MeetsAll(c.area.Requirements):
			reason = ReasonCannotAccess
		}
		if reason != "" {
			exclusions[mon.ID] = reason
			continue
		}
		members = append(members, mon.ID)
	}
	return members, exclusions
}

func (b *QueueBuilder) push(q *Queue, item WorkItem) {
	if b.store.MarkQueued(item.Key()) {
		q.items = append(q.items, item)
	}
}

func (b *QueueBuilder) mustMonster(id string) *Monster {
	m, ok := b.reg.Monster(id)
	if !ok {
		panic(fmt.Sprintf("QueueBuilder: unknown monster %q", id))
	}
	return m
}

func (b *QueueBuilder) mustContainer(ref EntityRef) *Container {
	c, ok := b.reg.Container(ref.Kind, ref.ID)
	if !ok {
		panic(fmt.Sprintf("QueueBuilder: unknown %s %q", ref.Kind, ref.ID))
	}
	return c
}

func (b *QueueBuilder) mustTask(id string) *SlayerTask {
	t, ok := b.reg.SlayerTask(id)
	if !ok {
		panic(fmt.Sprintf("QueueBuilder: unknown slayer task %q", id))
	}
	return t
}

type taskCandidate struct {
	monsterID string
	area      *Area
}

// taskCandidates lists slayer-eligible monsters from every area, each once,
// with the first area it appears in.
func taskCandidates(reg Registry) []taskCandidate {
	seen := make(map[string]bool)
	var out []taskCandidate
	for _, area := range reg.Areas() {
		for _, id := range area.Monsters {
			if seen[id] {
				continue
			}
			seen[id] = true
			if m, ok := reg.Monster(id); ok && m.CanSlayer {
				out = append(out, taskCandidate{monsterID: id, area: area})
			}
		}
	}
	return out
}

func levelWindow(t *SlayerTask) string {
	if t.MaxLevel == 0 {
		return fmt.Sprintf("%d+", t.MinLevel)
	}
	return fmt.Sprintf("%d-%d", t.MinLevel, t.MaxLevel)
}

// ResetRecords installs fresh records for the targets of a run: every tracked
// entity when target is zero, otherwise the target and its member records.
func ResetRecords(reg Registry, store *Store, player PlayerState, target EntityRef) {
	if target.IsZero() {
		resetAll(reg, store)
		return
	}
	switch {
	case target.Kind == KindMonster:
		resetMonster(reg, store, target.ID)
	case target.Kind.IsContainer():
		if c, ok := reg.Container(target.Kind, target.ID); ok {
			resetContainer(store, c)
		}
	case target.Kind == KindSlayerTask:
		if t, ok := reg.SlayerTask(target.ID); ok {
			store.ResetComposite(target, t.Realm)
			members, _ := NewQueueBuilder(reg, store, player).TaskMembers(t)
			for _, m := range members {
				resetMonster(reg, store, m)
			}
		}
	}
}

func resetAll(reg Registry, store *Store) {
	for _, area := range reg.Areas() {
		for _, m := range area.Monsters {
			resetMonster(reg, store, m)
		}
	}
	if w := reg.WanderingMonster(); w != "" {
		resetMonster(reg, store, w)
	}
	for _, kind := range ContainerKinds {
		for _, c := range reg.Containers(kind) {
			resetContainer(store, c)
		}
	}
	for _, t := range reg.SlayerTasks() {
		store.ResetComposite(EntityRef{Kind: KindSlayerTask, ID: t.ID}, t.Realm)
	}
}

func resetMonster(reg Registry, store *Store, id string) {
	realm := ""
	if m, ok := reg.Monster(id); ok {
		realm = m.Realm
	}
	store.ResetLeaf(WorkKey{MonsterID: id}, realm)
}

func resetContainer(store *Store, c *Container) {
	store.ResetComposite(c.Ref(), c.Realm)
	for _, m := range c.Monsters {
		store.ResetLeaf(WorkKey{MonsterID: m, EntityID: c.ID}, c.Realm)
	}
}
