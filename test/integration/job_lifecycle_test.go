package integration

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/shuttle-mr/shuttle/pkg/job"
	"github.com/shuttle-mr/shuttle/pkg/resource"
	"github.com/shuttle-mr/shuttle/pkg/stage"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

type noopRuntime struct{}

func (noopRuntime) RequestWorkers(stageIndex, capacity int) error { return nil }
func (noopRuntime) SetCapacity(stageIndex, capacity int) error    { return nil }
func (noopRuntime) SetPriority(stageIndex int, p string) error    { return nil }
func (noopRuntime) KillWorkers(stageIndex int) error              { return nil }

type noopRPC struct{}

func (noopRPC) CancelAttempt(endpoint string, unitNo, attemptNo int) error { return nil }
func (noopRPC) QueryAttempt(endpoint string, unitNo, attemptNo int) (bool, error) {
	return true, nil
}

// buildWordCountJob assembles a three-node map/reduce/reduce DAG the same
// shape a shuttlectl job submit would produce: a map node feeding two
// independent reduce nodes, each driven by its own Stage Controller.
func buildWordCountJob() (*types.Job, []*stage.Controller) {
	nodes := []*types.Node{
		{Index: 0, Name: "map", Kind: types.NodeKindMap, Next: []int{1, 2}},
		{Index: 1, Name: "reduce-a", Kind: types.NodeKindReduce, Pre: []int{0}},
		{Index: 2, Name: "reduce-b", Kind: types.NodeKindReduce, Pre: []int{0}},
	}
	j := &types.Job{ID: "job-wordcount", Name: "wordcount", Nodes: nodes, State: types.JobStatePending}

	cfg := stage.Config{Capacity: 2, RetryBudget: 1}
	stages := []*stage.Controller{
		stage.New(0, 3, resource.NewID(3), cfg, noopRuntime{}, noopRPC{}, zerolog.Nop()),
		stage.New(1, 1, resource.NewID(1), cfg, noopRuntime{}, noopRPC{}, zerolog.Nop()),
		stage.New(2, 1, resource.NewID(1), cfg, noopRuntime{}, noopRPC{}, zerolog.Nop()),
	}
	return j, stages
}

// TestJobLifecycleFanOutToCompletion drives a full map/reduce DAG the way a
// coordinator's SubmitJob/AssignTask/FinishTask RPC handlers would: start
// the job, pull every map unit to completion, confirm both downstream
// reduce stages only start once their upstream fan-in is satisfied, and
// check the job transitions to completed once the last reduce unit lands.
func TestJobLifecycleFanOutToCompletion(t *testing.T) {
	j, stages := buildWordCountJob()
	tr := job.New(j, stages)

	var finished *types.Job
	tr.OnFinished(func(job *types.Job) { finished = job })

	require.NoError(t, tr.Start())

	overview := tr.GetTaskOverview()
	require.Len(t, overview, 3)

	for i := 0; i < 3; i++ {
		it, at, err := tr.Assign(0, "worker-map")
		require.NoError(t, err)
		require.NoError(t, tr.Finish(0, it.No, at, types.AttemptStateDone))
	}

	for _, nodeIndex := range []int{1, 2} {
		it, at, err := tr.Assign(nodeIndex, "worker-reduce")
		require.NoError(t, err)
		require.NoError(t, tr.Finish(nodeIndex, it.No, at, types.AttemptStateDone))
	}

	require.NotNil(t, finished)
	require.Equal(t, types.JobStateCompleted, finished.State)
}

// TestJobLifecycleFailurePropagates confirms a reduce node exhausting its
// retry budget fails the whole job rather than leaving it stuck running.
func TestJobLifecycleFailurePropagates(t *testing.T) {
	j, stages := buildWordCountJob()
	tr := job.New(j, stages)

	var finished *types.Job
	tr.OnFinished(func(job *types.Job) { finished = job })
	require.NoError(t, tr.Start())

	for i := 0; i < 3; i++ {
		it, at, err := tr.Assign(0, "worker-map")
		require.NoError(t, err)
		require.NoError(t, tr.Finish(0, it.No, at, types.AttemptStateDone))
	}

	it, at, err := tr.Assign(1, "worker-reduce")
	require.NoError(t, err)
	require.NoError(t, tr.Finish(1, it.No, at, types.AttemptStateFailed))

	require.NotNil(t, finished)
	require.Equal(t, types.JobStateFailed, finished.State)
}
