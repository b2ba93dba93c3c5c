// Package job implements the Job Tracker: the component that owns one
// Job's DAG and its Stage Controllers, routes Assign/Finish calls to the
// right stage, and starts successor stages as their predecessors finish.
//
// schedulePhase and terminate are the two driving callbacks: schedulePhase
// is registered on every pkg/stage.Controller through OnFinished, and calls
// terminate once the whole job is done.
package job

import (
	"sync"
	"time"

	"github.com/shuttle-mr/shuttle/pkg/dagsched"
	"github.com/shuttle-mr/shuttle/pkg/metrics"
	"github.com/shuttle-mr/shuttle/pkg/resource"
	"github.com/shuttle-mr/shuttle/pkg/shuttleerr"
	"github.com/shuttle-mr/shuttle/pkg/stage"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// Tracker owns a single Job's DAG and per-node Stage Controllers.
type Tracker struct {
	metaMu  sync.Mutex
	job     *types.Job
	started map[int]bool

	scheduler *dagsched.Scheduler
	stages    []*stage.Controller

	onFinished func(job *types.Job)
}

// New builds a Tracker for job, with one Controller per Node in the same
// order as job.Nodes. The caller is responsible for constructing each
// Controller (wiring its resource.Manager, ClusterRuntime and WorkerRPC)
// since those depend on the Node's split strategy and transport.
func New(j *types.Job, stages []*stage.Controller) *Tracker {
	t := &Tracker{
		job:       j,
		started:   make(map[int]bool),
		scheduler: dagsched.New(j.Nodes),
		stages:    stages,
	}
	for _, s := range stages {
		s.OnFinished(func(nodeIndex int, success bool) { t.schedulePhase(nodeIndex, success) })
	}
	return t
}

// OnFinished registers the callback invoked exactly once when the whole
// job reaches a terminal state.
func (t *Tracker) OnFinished(fn func(job *types.Job)) { t.onFinished = fn }

// Start validates the DAG and starts every source stage (no predecessors).
func (t *Tracker) Start() error {
	if !t.scheduler.Validate() {
		return shuttleerr.ErrCyclicDAG
	}
	t.metaMu.Lock()
	t.job.State = types.JobStateRunning
	t.job.StartedAt = time.Now()
	t.metaMu.Unlock()

	for _, idx := range t.scheduler.Sources() {
		if err := t.startStage(idx); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) startStage(idx int) error {
	t.metaMu.Lock()
	if t.started[idx] {
		t.metaMu.Unlock()
		return nil
	}
	t.started[idx] = true
	t.metaMu.Unlock()
	return t.stages[idx].Start()
}

// Kill terminates every non-terminal stage and marks the job killed.
func (t *Tracker) Kill() error {
	var firstErr error
	t.terminate(types.JobStateKilled, func() {
		for _, s := range t.stages {
			if err := s.Kill(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	})
	return firstErr
}

// terminate idempotently transitions the job to a terminal state and fires
// onFinished exactly once: only the caller that wins the race past the
// Terminal() guard runs stop and the callback. Stage.Kill() calls back into
// schedulePhase for every other stage it kills, which re-enters terminate
// and is a no-op the second time around.
func (t *Tracker) terminate(state types.JobState, stop func()) {
	t.metaMu.Lock()
	if t.job.State.Terminal() {
		t.metaMu.Unlock()
		return
	}
	t.job.State = state
	t.job.EndedAt = time.Now()
	start, end := t.job.StartedAt, t.job.EndedAt
	t.metaMu.Unlock()

	if stop != nil {
		stop()
	}
	metrics.JobDuration.WithLabelValues(string(state)).Observe(end.Sub(start).Seconds())
	if t.onFinished != nil {
		t.onFinished(t.job)
	}
}

// Assign routes a pull-loop request for nodeIndex to that node's stage.
func (t *Tracker) Assign(nodeIndex int, workerEndpoint string) (*resource.Item, int, error) {
	if nodeIndex < 0 || nodeIndex >= len(t.stages) {
		return nil, 0, shuttleerr.ErrUnknownNode
	}
	return t.stages[nodeIndex].Assign(workerEndpoint)
}

// Finish routes a completion report to the right stage.
func (t *Tracker) Finish(nodeIndex, unitNo, attemptNo int, outcome types.AttemptState) error {
	if nodeIndex < 0 || nodeIndex >= len(t.stages) {
		return shuttleerr.ErrUnknownNode
	}
	return t.stages[nodeIndex].Finish(unitNo, attemptNo, outcome)
}

// schedulePhase is the Controller.OnFinished callback: on success it
// retires nodeIndex from the DAG and starts any successor whose
// predecessors have all finished; on failure it kills the whole job.
func (t *Tracker) schedulePhase(nodeIndex int, success bool) {
	if !success {
		t.terminate(types.JobStateFailed, func() {
			for _, s := range t.stages {
				_ = s.Kill()
			}
		})
		return
	}

	if err := t.scheduler.RemoveFinishedNode(nodeIndex); err != nil {
		return
	}

	for _, next := range t.scheduler.NextNodes(nodeIndex) {
		for _, avail := range t.scheduler.AvailableNodes() {
			if avail == next {
				_ = t.startStage(next)
			}
		}
	}

	if t.scheduler.Done() {
		t.terminate(types.JobStateCompleted, nil)
	}
}

// Overview is one node's row in ShowJob's task_overview: stage statistics
// paired with the Node it belongs to.
type Overview struct {
	NodeIndex int
	NodeName  string
	Stats     stage.Statistics
}

// GetTaskOverview returns a per-node statistics snapshot for ShowJob.
func (t *Tracker) GetTaskOverview() []Overview {
	out := make([]Overview, len(t.stages))
	for i, s := range t.stages {
		out[i] = Overview{NodeIndex: i, NodeName: t.job.Nodes[i].Name, Stats: s.GetStatistics()}
	}
	return out
}

// GetJob returns the tracked Job's current snapshot.
func (t *Tracker) GetJob() *types.Job {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	cp := *t.job
	return &cp
}
