package stage

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shuttle-mr/shuttle/pkg/resource"
	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/shuttle-mr/shuttle/pkg/types"
	"github.com/stretchr/testify/require"
)

type fakeRuntime struct {
	capacity int
	priority string
	killed   bool
}

func (f *fakeRuntime) RequestWorkers(stageIndex, capacity int) error { f.capacity = capacity; return nil }
func (f *fakeRuntime) SetCapacity(stageIndex, capacity int) error    { f.capacity = capacity; return nil }
func (f *fakeRuntime) SetPriority(stageIndex int, p string) error    { f.priority = p; return nil }
func (f *fakeRuntime) KillWorkers(stageIndex int) error              { f.killed = true; return nil }

type fakeRPC struct {
	canceled []int
	alive    bool
	err      error
}

func (f *fakeRPC) CancelAttempt(endpoint string, unitNo, attemptNo int) error {
	f.canceled = append(f.canceled, unitNo)
	return nil
}
func (f *fakeRPC) QueryAttempt(endpoint string, unitNo, attemptNo int) (bool, error) {
	return f.alive, f.err
}

func newTestController(n int, cfg Config) (*Controller, *fakeRuntime, *fakeRPC) {
	rm := resource.NewID(n)
	rt := &fakeRuntime{}
	rpc := &fakeRPC{}
	c := New(0, n, rm, cfg, rt, rpc, zerolog.Nop())
	return c, rt, rpc
}

func TestAssignThenFinishCompletesStage(t *testing.T) {
	c, _, _ := newTestController(2, Config{Capacity: 1, RetryBudget: 1})
	var finished bool
	var success bool
	c.OnFinished(func(stageIndex int, ok bool) { finished = true; success = ok })

	it1, at1, err := c.Assign("w1")
	require.NoError(t, err)
	it2, at2, err := c.Assign("w1")
	require.NoError(t, err)
	require.NotEqual(t, it1.No, it2.No)

	require.NoError(t, c.Finish(it1.No, at1, types.AttemptStateDone))
	require.False(t, finished)
	require.NoError(t, c.Finish(it2.No, at2, types.AttemptStateDone))
	require.True(t, finished)
	require.True(t, success)
}

func TestAssignExhaustedReturnsNoUnits(t *testing.T) {
	c, _, _ := newTestController(1, Config{Capacity: 1, RetryBudget: 1})
	_, _, err := c.Assign("w1")
	require.NoError(t, err)
	_, _, err = c.Assign("w2")
	require.ErrorIs(t, err, shuttleerr.ErrNoUnitsAvailable)
}

func TestFinishFailedReturnsUnitForRetry(t *testing.T) {
	c, _, _ := newTestController(1, Config{Capacity: 1, RetryBudget: 2})
	it, at, err := c.Assign("w1")
	require.NoError(t, err)
	require.NoError(t, c.Finish(it.No, at, types.AttemptStateFailed))

	it2, _, err := c.Assign("w2")
	require.NoError(t, err)
	require.Equal(t, it.No, it2.No)
}

func TestFinishFailedExceedsRetryBudgetFailsStage(t *testing.T) {
	c, _, _ := newTestController(1, Config{Capacity: 1, RetryBudget: 1})
	var success bool
	called := false
	c.OnFinished(func(stageIndex int, ok bool) { called = true; success = ok })

	it, at, err := c.Assign("w1")
	require.NoError(t, err)
	require.NoError(t, c.Finish(it.No, at, types.AttemptStateFailed))
	require.True(t, called)
	require.False(t, success)
}

func TestFinishUnknownAttemptErrors(t *testing.T) {
	c, _, _ := newTestController(1, Config{Capacity: 1, RetryBudget: 1})
	err := c.Finish(0, 99, types.AttemptStateDone)
	require.ErrorIs(t, err, shuttleerr.ErrAttemptUnknown)
}

func TestEndGameDuplicateAssignmentAndCancelOfLoser(t *testing.T) {
	c, _, rpc := newTestController(10, Config{Capacity: 2, RetryBudget: 1, AllowDuplicates: true, DuplicateCap: 5})

	var attempts []struct{ no, attempt int }
	for i := 0; i < 9; i++ {
		it, at, err := c.Assign("w1")
		require.NoError(t, err)
		attempts = append(attempts, struct{ no, attempt int }{it.No, at})
		require.NoError(t, c.Finish(it.No, at, types.AttemptStateDone))
	}
	require.Equal(t, 9, c.resourceMgr.Done())

	last, lastAttempt, err := c.Assign("w2")
	require.NoError(t, err)
	require.Equal(t, 9, last.No)

	c.allocMu.Lock()
	c.pushSlugLocked(last.No)
	c.allocMu.Unlock()

	dup, dupAttempt, err := c.Assign("w3")
	require.NoError(t, err)
	require.Equal(t, last.No, dup.No)
	require.NotEqual(t, lastAttempt, dupAttempt)

	require.NoError(t, c.Finish(dup.No, dupAttempt, types.AttemptStateDone))
	require.Contains(t, rpc.canceled, last.No)
}

func TestKillMarksAllocationsKilled(t *testing.T) {
	c, rt, _ := newTestController(2, Config{Capacity: 1, RetryBudget: 1})
	it, at, err := c.Assign("w1")
	require.NoError(t, err)
	require.NoError(t, c.Kill())
	require.True(t, rt.killed)

	c.allocMu.Lock()
	a := c.findAllocationLocked(it.No, at)
	c.allocMu.Unlock()
	require.Equal(t, types.AttemptStateKilled, a.state)
}

func TestMonitorReturnsUnitOnDeadWorker(t *testing.T) {
	c, _, rpc := newTestController(1, Config{Capacity: 1, RetryBudget: 2})
	rpc.alive = false
	it, at, err := c.Assign("w1")
	require.NoError(t, err)

	c.allocMu.Lock()
	a := c.findAllocationLocked(it.No, at)
	a.allocTime = a.allocTime.Add(-defaultTimeout * 2)
	for i := range c.runningHeap {
		if c.runningHeap[i] == a {
			c.runningHeap[i].allocTime = a.allocTime
		}
	}
	c.allocMu.Unlock()

	c.monitorOnce()
	require.Equal(t, 1, c.resourceMgr.Pending())
}
