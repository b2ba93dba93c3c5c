package job

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/shuttle-mr/shuttle/pkg/resource"
	"github.com/shuttle-mr/shuttle/pkg/stage"
	"github.com/shuttle-mr/shuttle/pkg/types"
	"github.com/stretchr/testify/require"
)

type noopRuntime struct {
	started []int
}

func (r *noopRuntime) RequestWorkers(stageIndex, capacity int) error {
	r.started = append(r.started, stageIndex)
	return nil
}
func (r *noopRuntime) SetCapacity(stageIndex, capacity int) error { return nil }
func (r *noopRuntime) SetPriority(stageIndex int, p string) error { return nil }
func (r *noopRuntime) KillWorkers(stageIndex int) error           { return nil }

type noopRPC struct{}

func (noopRPC) CancelAttempt(endpoint string, unitNo, attemptNo int) error { return nil }
func (noopRPC) QueryAttempt(endpoint string, unitNo, attemptNo int) (bool, error) {
	return true, nil
}

func buildLinearJob(t *testing.T) (*types.Job, []*stage.Controller, *noopRuntime) {
	nodes := []*types.Node{
		{Index: 0, Name: "map", Kind: types.NodeKindMap, Next: []int{1}},
		{Index: 1, Name: "reduce", Kind: types.NodeKindReduce},
	}
	j := &types.Job{ID: "job-1", Name: "wordcount", Nodes: nodes, State: types.JobStatePending}

	rt := &noopRuntime{}
	cfg := stage.Config{Capacity: 1, RetryBudget: 1}
	stages := []*stage.Controller{
		stage.New(0, 2, resource.NewID(2), cfg, rt, noopRPC{}, zerolog.Nop()),
		stage.New(1, 1, resource.NewID(1), cfg, rt, noopRPC{}, zerolog.Nop()),
	}
	return j, stages, rt
}

func TestStartRunsOnlySourceStages(t *testing.T) {
	j, stages, rt := buildLinearJob(t)
	tr := New(j, stages)
	require.NoError(t, tr.Start())

	require.Equal(t, []int{0}, rt.started)
}

func TestWholeJobCompletesWhenFinalStageDrains(t *testing.T) {
	j, stages, _ := buildLinearJob(t)
	var finishedJob *types.Job
	tr := New(j, stages)
	tr.OnFinished(func(job *types.Job) { finishedJob = job })
	require.NoError(t, tr.Start())

	for i := 0; i < 2; i++ {
		it, at, err := tr.Assign(0, "w1")
		require.NoError(t, err)
		require.NoError(t, tr.Finish(0, it.No, at, types.AttemptStateDone))
	}

	it, at, err := tr.Assign(1, "w2")
	require.NoError(t, err)
	require.NoError(t, tr.Finish(1, it.No, at, types.AttemptStateDone))

	require.NotNil(t, finishedJob)
	require.Equal(t, types.JobStateCompleted, finishedJob.State)
}

func TestFailedStageFailsWholeJob(t *testing.T) {
	j, stages, _ := buildLinearJob(t)
	var finishedJob *types.Job
	tr := New(j, stages)
	tr.OnFinished(func(job *types.Job) { finishedJob = job })
	require.NoError(t, tr.Start())

	it, at, err := tr.Assign(0, "w1")
	require.NoError(t, err)
	require.NoError(t, tr.Finish(0, it.No, at, types.AttemptStateFailed))

	require.NotNil(t, finishedJob)
	require.Equal(t, types.JobStateFailed, finishedJob.State)
}

func TestUnknownNodeErrors(t *testing.T) {
	j, stages, _ := buildLinearJob(t)
	tr := New(j, stages)
	require.NoError(t, tr.Start())
	_, _, err := tr.Assign(5, "w1")
	require.Error(t, err)
}
