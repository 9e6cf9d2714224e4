package sim

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/combat-sim/combat-sim/sim/trace"
)

// TrialRequest is one unit of work sent to a compute channel.
type TrialRequest struct {
	MonsterID  string `json:"monsterId"`
	EntityID   string `json:"entityId,omitempty"`
	Snapshot   []byte `json:"snapshot"`
	TrialCount int    `json:"trialCount"`
	TickBudget int64  `json:"tickBudget"`
}

// TrialResponse is a compute channel's answer to a TrialRequest.
type TrialResponse struct {
	MonsterID   string        `json:"monsterId"`
	EntityID    string        `json:"entityId,omitempty"`
	ElapsedTime time.Duration `json:"elapsedTime"`
	Result      TrialOutcome  `json:"result"`
}

// ComputeChannel runs combat trials. Simulate blocks until the trial resolves;
// Cancel asks the channel to abort in-flight work and returns immediately.
type ComputeChannel interface {
	Simulate(ctx context.Context, req TrialRequest) (TrialResponse, error)
	Cancel()
}

// SnapshotFunc serializes the state a trial needs (player profile, settings).
type SnapshotFunc func() ([]byte, error)

// ProgressObserver is notified after each resolved work item.
type ProgressObserver func(completed, total int)

// CancelToken is the cooperative stop flag of one run.
type CancelToken struct {
	cancelled atomic.Bool
}

// Cancel requests that no further work be dispatched.
func (t *CancelToken) Cancel() { t.cancelled.Store(true) }

// Cancelled reports whether Cancel was called.
func (t *CancelToken) Cancelled() bool { return t.cancelled.Load() }

// DispatchConfig holds the per-trial limits sent with every request.
type DispatchConfig struct {
	TrialCount int
	TickBudget int64
	// ItemTimeout bounds a single Simulate call. Zero means no limit.
	ItemTimeout time.Duration
}

// RunReport summarizes one dispatch run.
type RunReport struct {
	Total     int
	Completed int
	Failed    int
	Cancelled bool
	// Err is the first compute failure of the run, surfaced once.
	Err error
}

// Dispatcher drains a Queue through one or more compute channels and merges
// every result into the Store.
type Dispatcher struct {
	store     *Store
	cfg       DispatchConfig
	snapshot  SnapshotFunc
	channels  []ComputeChannel
	observers []ProgressObserver
	trace     *trace.RunTrace
}

// NewDispatcher creates a Dispatcher. At least one channel is required.
func NewDispatcher(store *Store, cfg DispatchConfig, snapshot SnapshotFunc, channels ...ComputeChannel) *Dispatcher {
	if len(channels) == 0 {
		panic("Dispatcher: at least one compute channel is required")
	}
	if store == nil {
		panic("Dispatcher: store must not be nil")
	}
	if snapshot == nil {
		panic("Dispatcher: snapshot func must not be nil")
	}
	return &Dispatcher{store: store, cfg: cfg, snapshot: snapshot, channels: channels}
}

// AddObserver registers a progress observer.
func (d *Dispatcher) AddObserver(o ProgressObserver) {
	d.observers = append(d.observers, o)
}

// SetTrace enables per-item dispatch records. Nil disables tracing.
func (d *Dispatcher) SetTrace(rt *trace.RunTrace) {
	d.trace = rt
}

// Channels returns the number of compute channels.
func (d *Dispatcher) Channels() int {
	return len(d.channels)
}

// CancelChannels forwards an out-of-band cancel to every channel.
func (d *Dispatcher) CancelChannels() {
	for _, ch := range d.channels {
		ch.Cancel()
	}
}

// Run dispatches every queued item in order until the queue drains or token is
// cancelled. In-flight items always complete and are merged. Item failures are
// recorded on their records and never abort the run.
func (d *Dispatcher) Run(ctx context.Context, q *Queue, token *CancelToken) RunReport {
	items := q.Items()
	report := RunReport{Total: len(items)}
	if len(items) == 0 {
		return report
	}
	if token == nil {
		token = &CancelToken{}
	}
	snap, err := d.snapshot()
	if err != nil {
		// Without a snapshot no trial can run; every item fails the same way.
		reason := computeErrorPrefix + fmt.Sprintf("snapshot: %v", err)
		for _, it := range items {
			d.store.RecordFailure(it.Key(), reason, 0)
		}
		report.Failed = len(items)
		report.Err = fmt.Errorf("building snapshot: %w", err)
		logrus.Errorf("dispatch aborted: %v", report.Err)
		return report
	}

	logrus.Infof("dispatching %d work items over %d channel(s)", len(items), len(d.channels))
	state := &runState{items: items, report: &report}
	if len(d.channels) == 1 {
		d.pull(ctx, 0, d.channels[0], snap, state, token)
	} else {
		var wg sync.WaitGroup
		for i, ch := range d.channels {
			wg.Add(1)
			go func(i int, ch ComputeChannel) {
				defer wg.Done()
				d.pull(ctx, i, ch, snap, state, token)
			}(i, ch)
		}
		wg.Wait()
	}

	if token.Cancelled() || ctx.Err() != nil {
		report.Cancelled = report.Completed < report.Total
		d.store.ClearQueued()
	}
	if report.Err != nil {
		logrus.Errorf("%d of %d work items failed in the compute channel; first error: %v",
			report.Failed, report.Total, report.Err)
	}
	logrus.Infof("dispatch finished: %d/%d items completed", report.Completed, report.Total)
	return report
}

// runState is the queue cursor shared by the pull loops of one run.
type runState struct {
	mu     sync.Mutex
	items  []WorkItem
	next   int
	report *RunReport
}

// take returns the next undispatched item.
func (s *runState) take() (WorkItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.items) {
		return WorkItem{}, false
	}
	it := s.items[s.next]
	s.next++
	return it, true
}

// finish accounts one resolved item and returns the completed count.
func (s *runState) finish(failed bool, err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.report.Completed++
	if failed {
		s.report.Failed++
	}
	if err != nil && s.report.Err == nil {
		s.report.Err = err
	}
	return s.report.Completed
}

func (d *Dispatcher) pull(ctx context.Context, idx int, ch ComputeChannel, snap []byte, state *runState, token *CancelToken) {
	for {
		if token.Cancelled() || ctx.Err() != nil {
			return
		}
		it, ok := state.take()
		if !ok {
			return
		}
		failed, err := d.dispatchOne(ctx, idx, ch, snap, it)
		completed := state.finish(failed, err)
		d.notify(completed, len(state.items))
	}
}

// dispatchOne runs one trial and merges its result. It reports whether the
// item ended in a compute failure, together with that failure.
func (d *Dispatcher) dispatchOne(ctx context.Context, idx int, ch ComputeChannel, snap []byte, it WorkItem) (bool, error) {
	req := TrialRequest{
		MonsterID:  it.MonsterID,
		EntityID:   it.EntityID,
		Snapshot:   snap,
		TrialCount: d.cfg.TrialCount,
		TickBudget: d.cfg.TickBudget,
	}
	callCtx := ctx
	if d.cfg.ItemTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, d.cfg.ItemTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := ch.Simulate(callCtx, req)
	wall := time.Since(start)
	if err == nil {
		err = checkResponse(it, &resp)
	}
	key := it.Key()
	if err != nil {
		err = fmt.Errorf("%s: %w", key, err)
		d.store.RecordFailure(key, computeErrorPrefix+err.Error(), wall)
		d.record(trace.DispatchRecord{
			MonsterID: it.MonsterID, EntityID: it.EntityID, Channel: idx,
			Elapsed: wall, Reason: err.Error(), Err: true,
		})
		logrus.Debugf("channel %d: %s failed: %v", idx, key, err)
		return true, err
	}

	elapsed := resp.ElapsedTime
	if elapsed <= 0 {
		elapsed = wall
	}
	d.store.RecordResult(key, resp.Result, elapsed)
	outOfTicks := !resp.Result.SimSuccess && d.cfg.TickBudget > 0 && resp.Result.TickCount >= d.cfg.TickBudget
	d.record(trace.DispatchRecord{
		MonsterID: it.MonsterID, EntityID: it.EntityID, Channel: idx,
		Elapsed: elapsed, Success: resp.Result.SimSuccess, Reason: resp.Result.Reason,
		TickCount: resp.Result.TickCount, OutOfTicks: outOfTicks,
	})
	logrus.Debugf("channel %d: %s resolved in %v (success=%v)", idx, key, elapsed, resp.Result.SimSuccess)
	return false, nil
}

// checkResponse rejects responses for a different work item and malformed outcomes.
func checkResponse(it WorkItem, resp *TrialResponse) error {
	if resp.MonsterID != it.MonsterID || resp.EntityID != it.EntityID {
		return fmt.Errorf("response for %q does not match request", WorkKey{MonsterID: resp.MonsterID, EntityID: resp.EntityID})
	}
	if err := resp.Result.Validate(); err != nil {
		return fmt.Errorf("malformed outcome: %w", err)
	}
	return nil
}

func (d *Dispatcher) record(r trace.DispatchRecord) {
	if d.trace != nil {
		d.trace.Record(r)
	}
}

func (d *Dispatcher) notify(completed, total int) {
	for _, o := range d.observers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logrus.Warnf("progress observer panicked: %v", r)
				}
			}()
			o(completed, total)
		}()
	}
}
