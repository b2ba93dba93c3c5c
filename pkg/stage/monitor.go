package stage

import (
	"container/heap"
	"strconv"
	"time"

	"github.com/shuttle-mr/shuttle/pkg/metrics"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// defaultTimeout is used for the liveness monitor before any attempt has
// completed and the adaptive median is still unavailable.
const defaultTimeout = 2 * time.Minute

// livenessTimeout returns 1.2x the median duration of completed attempts,
// falling back to defaultTimeout while no attempt has completed yet.
func (c *Controller) livenessTimeout() time.Duration {
	c.allocMu.Lock()
	durs := c.completedDur
	c.allocMu.Unlock()
	med := medianDuration(durs)
	if med == 0 {
		return defaultTimeout
	}
	return scaleDuration(med, 1.2)
}

// RunMonitor runs the liveness monitor loop until stop is closed. It is
// cooperative: each tick only ever holds allocMu for the bookkeeping scan,
// never across the QueryAttempt RPC, so it never blocks Assign or Finish
// for longer than a single map lookup.
func (c *Controller) RunMonitor(tick time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.monitorOnce()
		}
	}
}

func (c *Controller) monitorOnce() {
	c.metaMu.Lock()
	done := c.state.terminal()
	c.metaMu.Unlock()
	if done {
		return
	}

	timeout := c.livenessTimeout()
	now := time.Now()

	var overdue []*allocation
	c.allocMu.Lock()
	for c.runningHeap.Len() > 0 {
		top := c.runningHeap[0]
		if top.state != types.AttemptStateAllocated {
			// Already finished: drop it so it does not hide overdue attempts.
			heap.Pop(&c.runningHeap)
			continue
		}
		if now.Sub(top.allocTime) < timeout {
			break
		}
		heap.Pop(&c.runningHeap)
		overdue = append(overdue, top)
	}
	c.allocMu.Unlock()

	for _, a := range overdue {
		alive, err := c.rpc.QueryAttempt(a.endpoint, a.unitNo, a.attemptNo)
		if err == nil && alive {
			// Still on the unit: refresh and keep watching it.
			c.allocMu.Lock()
			a.allocTime = time.Now()
			heap.Push(&c.runningHeap, a)
			c.allocMu.Unlock()
			continue
		}
		// Worker disagrees or is unreachable: declare the attempt dead
		// and return the unit to pending so another worker can pick it
		// up; this also covers the end-game since Return makes the unit
		// Acquire-able again immediately.
		_ = c.resourceMgr.Return(a.unitNo)
		c.allocMu.Lock()
		a.state = types.AttemptStateKilled
		c.allocMu.Unlock()
		c.metaMu.Lock()
		c.killed++
		c.metaMu.Unlock()
		metrics.KilledAttemptsTotal.WithLabelValues(strconv.Itoa(c.stageIndex)).Inc()
	}

	// Feed the slug queue once we're in the end-game: units still
	// running (i.e. not yet Done) become duplicate-execution candidates.
	if c.cfg.AllowDuplicates && c.resourceMgr.Done() >= c.endGameBegin() {
		c.allocMu.Lock()
		for unitNo, allocs := range c.allocations {
			live := 0
			for _, a := range allocs {
				if a.state == types.AttemptStateAllocated {
					live++
				}
			}
			if live > 0 && live < c.cfg.DuplicateCap && !containsInt(c.slugs, unitNo) && !c.resourceMgr.IsDone(unitNo) {
				c.pushSlugLocked(unitNo)
			}
		}
		c.allocMu.Unlock()
	}
}

func containsInt(xs []int, v int) bool {
	for _, x := range xs {
		if x == v {
			return true
		}
	}
	return false
}
