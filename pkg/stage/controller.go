// Package stage implements the Stage Controller ("Gru"): the component
// that drives one DAG node of a Job to completion by handing work units to
// pulling workers, tracking attempts, running the end-game duplicate
// execution strategy, and monitoring liveness.
//
// The stage-level counters/state and the allocation table/slug queue/
// time heap are guarded by two separate sync.Mutexes that are never held
// simultaneously; the slug queue and time heap back the end-game and
// liveness monitor.
package stage

import (
	"container/heap"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shuttle-mr/shuttle/pkg/metrics"
	"github.com/shuttle-mr/shuttle/pkg/resource"
	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// State is the lifecycle state of a Stage Controller.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateKilled    State = "killed"
)

func (s State) terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateKilled
}

// ClusterRuntime is the external collaborator that actually places worker
// processes on the cluster; Start/SetCapacity/SetPriority/Kill only issue
// requests to it, per spec's explicit scoping of the cluster container
// runtime out of the core.
type ClusterRuntime interface {
	RequestWorkers(stageIndex, capacity int) error
	SetCapacity(stageIndex, capacity int) error
	SetPriority(stageIndex int, priority string) error
	KillWorkers(stageIndex int) error
}

// WorkerRPC is the subset of the worker RPC surface the Stage Controller
// calls directly: canceling losing duplicate attempts, and querying
// liveness during the monitor pass.
type WorkerRPC interface {
	CancelAttempt(endpoint string, unitNo, attemptNo int) error
	QueryAttempt(endpoint string, unitNo, attemptNo int) (onUnit bool, err error)
}

// Config is a Stage Controller's tunable policy, set from the Node's
// config at submit time.
type Config struct {
	Capacity          int
	RetryBudget       int
	AllowDuplicates   bool
	DuplicateCap      int // defaults to 5 in practice; 0 here just disables duplicates
	NearlyFinishedPct float64 // fraction of total units that triggers the nearly-finished callback
	BootstrapInterval time.Duration
}

// allocation is one (unit, attempt) allocation record.
type allocation struct {
	unitNo    int
	attemptNo int
	endpoint  string
	state     types.AttemptState
	allocTime time.Time
	duration  time.Duration
	heapIndex int
}

// Controller drives one stage to completion.
type Controller struct {
	stageIndex int
	cfg        Config
	runtime    ClusterRuntime
	rpc        WorkerRPC
	log        zerolog.Logger

	resourceMgr *resource.Manager

	// meta: stage-level state and counters.
	metaMu     sync.Mutex
	state      State
	totalTasks int
	startTime  time.Time
	endTime    time.Time
	killed     int
	failed     int
	nearlyFired bool

	// alloc: allocation table, per-unit attempt counters, slug queue,
	// time heap and completed-attempt durations for the adaptive
	// liveness timeout. Never held at the same time as metaMu.
	allocMu      sync.Mutex
	nextAttempt  map[int]int
	failedCount  map[int]int
	allocations  map[int][]*allocation // unitNo -> live allocations (len>1 only during end-game dup)
	runningHeap  allocHeap
	slugs        []int
	completedDur []time.Duration

	onFinished       func(stageIndex int, success bool)
	onNearlyFinished func(stageIndex int)
}

// New builds a Controller for stageIndex, backed by resourceMgr.
func New(stageIndex int, totalTasks int, resourceMgr *resource.Manager, cfg Config, runtime ClusterRuntime, rpc WorkerRPC, log zerolog.Logger) *Controller {
	return &Controller{
		stageIndex:  stageIndex,
		cfg:         cfg,
		runtime:     runtime,
		rpc:         rpc,
		log:         log,
		resourceMgr: resourceMgr,
		state:       StatePending,
		totalTasks:  totalTasks,
		nextAttempt: make(map[int]int),
		failedCount: make(map[int]int),
		allocations: make(map[int][]*allocation),
	}
}

// endGameBegin returns the completed-unit threshold past which Assign may
// re-issue duplicate attempts: max(total-10, total-total*10/100).
func (c *Controller) endGameBegin() int {
	byCount := c.totalTasks - 10
	byPct := c.totalTasks - c.totalTasks*10/100
	if byCount > byPct {
		return byCount
	}
	return byPct
}

// Start requests the cluster runtime to provision workers for this stage
// and transitions pending->running lazily (on first Assign, not here, to
// match spec.md's "transitions ... lazily on first assignment").
func (c *Controller) Start() error {
	if err := c.runtime.RequestWorkers(c.stageIndex, c.cfg.Capacity); err != nil {
		c.metaMu.Lock()
		c.state = StateFailed
		c.metaMu.Unlock()
		return fmt.Errorf("stage %d: start: %w", c.stageIndex, err)
	}
	c.metaMu.Lock()
	c.startTime = time.Now()
	c.metaMu.Unlock()
	return nil
}

// SetCapacity requests the cluster runtime to grow or shrink the worker pool.
func (c *Controller) SetCapacity(n int) error {
	return c.runtime.SetCapacity(c.stageIndex, n)
}

// SetPriority requests the cluster runtime to change scheduling priority.
func (c *Controller) SetPriority(p string) error {
	return c.runtime.SetPriority(c.stageIndex, p)
}

// Kill best-effort terminates all workers for this stage and flips every
// live attempt to killed.
func (c *Controller) Kill() error {
	c.metaMu.Lock()
	if c.state.terminal() {
		c.metaMu.Unlock()
		return nil
	}
	c.state = StateKilled
	c.endTime = time.Now()
	c.metaMu.Unlock()

	c.allocMu.Lock()
	for _, allocs := range c.allocations {
		for _, a := range allocs {
			a.state = types.AttemptStateKilled
		}
	}
	c.allocMu.Unlock()

	if c.onFinished != nil {
		c.onFinished(c.stageIndex, false)
	}
	return c.runtime.KillWorkers(c.stageIndex)
}

// Assign hands workerEndpoint the next unit of work: a fresh pending unit,
// or — once the stage has crossed the end-game threshold and duplicate
// execution is allowed — a duplicate attempt on a unit already running.
// It returns ErrNoUnitsAvailable when there is truly nothing left to do.
func (c *Controller) Assign(workerEndpoint string) (*resource.Item, int, error) {
	c.metaMu.Lock()
	if c.state == StatePending {
		c.state = StateRunning
	}
	c.metaMu.Unlock()

	item, err := c.resourceMgr.Acquire(0)
	if err == nil {
		c.allocMu.Lock()
		attemptNo := c.nextAttemptLocked(item.No)
		c.recordAllocationLocked(item.No, attemptNo, workerEndpoint)
		c.allocMu.Unlock()
		item.Attempt = attemptNo
		return item, attemptNo, nil
	}
	if err != shuttleerr.ErrNoUnitsAvailable {
		return nil, 0, err
	}

	// Nothing pending: try the end-game slug queue.
	c.allocMu.Lock()
	if !c.cfg.AllowDuplicates || c.resourceMgr.Done() < c.endGameBegin() {
		c.allocMu.Unlock()
		return nil, 0, shuttleerr.ErrNoUnitsAvailable
	}
	unitNo, ok := c.popSlugLocked()
	c.allocMu.Unlock()
	if !ok {
		return nil, 0, shuttleerr.ErrNoUnitsAvailable
	}

	dupItem, err := c.resourceMgr.AcquireSpecific(unitNo, 0)
	if err != nil {
		return nil, 0, err
	}
	c.allocMu.Lock()
	attemptNo := c.nextAttemptLocked(unitNo)
	c.recordAllocationLocked(unitNo, attemptNo, workerEndpoint)
	c.allocMu.Unlock()
	dupItem.Attempt = attemptNo
	metrics.DuplicateAttemptsTotal.WithLabelValues(strconv.Itoa(c.stageIndex)).Inc()
	return dupItem, attemptNo, nil
}

func (c *Controller) nextAttemptLocked(unitNo int) int {
	n := c.nextAttempt[unitNo]
	c.nextAttempt[unitNo] = n + 1
	return n
}

func (c *Controller) recordAllocationLocked(unitNo, attemptNo int, endpoint string) {
	a := &allocation{unitNo: unitNo, attemptNo: attemptNo, endpoint: endpoint, state: types.AttemptStateAllocated, allocTime: time.Now()}
	c.allocations[unitNo] = append(c.allocations[unitNo], a)
	heap.Push(&c.runningHeap, a)
}

func (c *Controller) popSlugLocked() (int, bool) {
	if len(c.slugs) == 0 {
		return 0, false
	}
	unitNo := c.slugs[0]
	c.slugs = c.slugs[1:]
	return unitNo, true
}

func (c *Controller) pushSlugLocked(unitNo int) {
	c.slugs = append(c.slugs, unitNo)
}

// Finish processes a completion report for (unitNo, attemptNo) — the
// policy table of spec.md §4.2.2.
func (c *Controller) Finish(unitNo, attemptNo int, outcome types.AttemptState) error {
	c.allocMu.Lock()
	a := c.findAllocationLocked(unitNo, attemptNo)
	if a == nil {
		c.allocMu.Unlock()
		return shuttleerr.ErrAttemptUnknown
	}
	a.duration = time.Since(a.allocTime)
	c.allocMu.Unlock()

	node := strconv.Itoa(c.stageIndex)

	switch outcome {
	case types.AttemptStateDone:
		first, err := c.resourceMgr.Complete(unitNo)
		if err != nil {
			return err
		}
		c.allocMu.Lock()
		if first {
			a.state = types.AttemptStateDone
			c.completedDur = append(c.completedDur, a.duration)
		} else {
			a.state = types.AttemptStateCanceled
		}
		others := c.liveAttemptsExceptLocked(unitNo, attemptNo)
		c.allocMu.Unlock()
		metrics.AttemptDuration.WithLabelValues(node, "done").Observe(a.duration.Seconds())
		if first && c.cfg.AllowDuplicates {
			for _, o := range others {
				_ = c.rpc.CancelAttempt(o.endpoint, unitNo, o.attemptNo)
			}
		}
		return c.afterProgress()

	case types.AttemptStateFailed:
		if c.resourceMgr.IsDone(unitNo) {
			c.allocMu.Lock()
			a.state = types.AttemptStateCanceled
			c.allocMu.Unlock()
			return nil
		}
		if err := c.resourceMgr.Return(unitNo); err != nil {
			return err
		}
		c.allocMu.Lock()
		a.state = types.AttemptStateFailed
		c.failedCount[unitNo]++
		exceeded := c.failedCount[unitNo] >= c.cfg.RetryBudget
		c.allocMu.Unlock()
		metrics.AttemptDuration.WithLabelValues(node, "failed").Observe(a.duration.Seconds())
		if exceeded {
			c.metaMu.Lock()
			c.failed++
			fire := !c.state.terminal()
			if fire {
				c.state = StateFailed
				c.endTime = time.Now()
			}
			c.metaMu.Unlock()
			if fire && c.onFinished != nil {
				c.onFinished(c.stageIndex, false)
			}
		}
		return nil

	case types.AttemptStateKilled:
		if c.resourceMgr.IsDone(unitNo) {
			c.allocMu.Lock()
			a.state = types.AttemptStateCanceled
			c.allocMu.Unlock()
			return nil
		}
		if err := c.resourceMgr.Return(unitNo); err != nil {
			return err
		}
		c.allocMu.Lock()
		a.state = types.AttemptStateKilled
		c.allocMu.Unlock()
		c.metaMu.Lock()
		c.killed++
		c.metaMu.Unlock()
		return nil

	case types.AttemptStateCanceled:
		c.allocMu.Lock()
		a.state = types.AttemptStateCanceled
		c.allocMu.Unlock()
		return nil

	default:
		// move-output-failed: treat as failed if the unit isn't done yet,
		// canceled otherwise.
		if c.resourceMgr.IsDone(unitNo) {
			c.allocMu.Lock()
			a.state = types.AttemptStateCanceled
			c.allocMu.Unlock()
			return nil
		}
		return c.Finish(unitNo, attemptNo, types.AttemptStateFailed)
	}
}

func (c *Controller) findAllocationLocked(unitNo, attemptNo int) *allocation {
	for _, a := range c.allocations[unitNo] {
		if a.attemptNo == attemptNo {
			return a
		}
	}
	return nil
}

func (c *Controller) liveAttemptsExceptLocked(unitNo, attemptNo int) []*allocation {
	var out []*allocation
	for _, a := range c.allocations[unitNo] {
		if a.attemptNo != attemptNo && a.state == types.AttemptStateAllocated {
			out = append(out, a)
		}
	}
	return out
}

// afterProgress fires the nearly-finished and finished callbacks once the
// Resource Manager's counters cross their thresholds.
func (c *Controller) afterProgress() error {
	done := c.resourceMgr.Done()
	total := c.resourceMgr.SumOfItem()
	if total > 0 && done >= total {
		c.metaMu.Lock()
		fire := !c.state.terminal()
		if fire {
			c.state = StateCompleted
			c.endTime = time.Now()
		}
		c.metaMu.Unlock()
		if fire && c.onFinished != nil {
			c.onFinished(c.stageIndex, true)
		}
		return nil
	}
	c.metaMu.Lock()
	pct := c.cfg.NearlyFinishedPct
	if pct <= 0 {
		pct = 0.95
	}
	fire := !c.nearlyFired && total > 0 && float64(done)/float64(total) >= pct
	if fire {
		c.nearlyFired = true
	}
	c.metaMu.Unlock()
	if fire && c.onNearlyFinished != nil {
		c.onNearlyFinished(c.stageIndex)
	}
	return nil
}

// OnFinished registers the callback invoked exactly once when the stage
// reaches a terminal state (success=true only for StateCompleted).
func (c *Controller) OnFinished(fn func(stageIndex int, success bool)) { c.onFinished = fn }

// OnNearlyFinished registers the callback invoked once the stage crosses
// its nearly-finished completion threshold, letting the Job Tracker
// speculatively start successor stages.
func (c *Controller) OnNearlyFinished(fn func(stageIndex int)) { c.onNearlyFinished = fn }

// Statistics is a point-in-time snapshot for ShowJob's task_overview.
type Statistics struct {
	Total, Pending, Running, Done, Failed, Killed int
	State                                         State
	StartTime, EndTime                            time.Time
}

// GetStatistics returns a snapshot of the stage's counters.
func (c *Controller) GetStatistics() Statistics {
	c.metaMu.Lock()
	s := Statistics{Total: c.totalTasks, Failed: c.failed, Killed: c.killed, State: c.state, StartTime: c.startTime, EndTime: c.endTime}
	c.metaMu.Unlock()
	s.Pending = c.resourceMgr.Pending()
	s.Running = c.resourceMgr.Allocated()
	s.Done = c.resourceMgr.Done()
	return s
}

// medianDuration returns the median of observed completed-attempt
// durations, used by the liveness monitor's adaptive timeout.
func medianDuration(durs []time.Duration) time.Duration {
	if len(durs) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), durs...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return time.Duration((int64(sorted[mid-1]) + int64(sorted[mid])) / 2)
}

func scaleDuration(d time.Duration, factor float64) time.Duration {
	return time.Duration(math.Round(float64(d) * factor))
}
