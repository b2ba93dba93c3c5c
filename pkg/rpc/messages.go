package rpc

import "github.com/shuttle-mr/shuttle/pkg/types"

// SubmitJobRequest carries a fully-formed Job (DAG already validated
// client-side against the job description) to the coordinator.
type SubmitJobRequest struct {
	Job *types.Job
}

// SubmitJobResponse returns the coordinator-assigned job ID.
type SubmitJobResponse struct {
	JobID string
}

// ListJobsRequest takes no filters; the CLI filters client-side.
type ListJobsRequest struct{}

// ListJobsResponse is the full job roster as of the call.
type ListJobsResponse struct {
	Jobs []*types.Job
}

// ShowJobRequest names the job to describe.
type ShowJobRequest struct {
	JobID string
}

// NodeOverview is one DAG node's row in ShowJob's task_overview: a
// transport-layer mirror of pkg/job.Overview, kept independent of the
// scheduler package so pkg/rpc never needs to import pkg/stage/pkg/job.
type NodeOverview struct {
	NodeIndex int
	NodeName  string
	State     string
	Total     int
	Pending   int
	Running   int
	Done      int
	Failed    int
	Killed    int
}

// ShowJobResponse pairs the Job snapshot with a per-node statistics table.
type ShowJobResponse struct {
	Job      *types.Job
	Overview []NodeOverview
}

// KillJobRequest names the job to terminate.
type KillJobRequest struct {
	JobID string
}

// KillJobResponse is empty; errors carry the failure reason.
type KillJobResponse struct{}

// AssignTaskRequest is a worker pulling its next unit of work for one DAG
// node of one job.
type AssignTaskRequest struct {
	JobID     string
	NodeIndex int
	WorkerID  string
	Endpoint  string
}

// AssignTaskResponse is either a freshly-allocated unit (Available=true) or
// a signal that nothing is available right now.
type AssignTaskResponse struct {
	Available bool

	UnitNo  int
	Attempt int

	// Resource placement: only the fields relevant to the node's
	// types.ResourceKind are populated.
	InputPath string
	Offset    int64
	Size      int64
	LineStart int64
	LineCount int64

	// Node execution parameters the worker needs to run the unit.
	Command         []string
	OutputPath      string
	PartitionScheme string
	PartitionCount  int
}

// FinishTaskRequest reports the outcome of one attempt.
type FinishTaskRequest struct {
	JobID     string
	NodeIndex int
	UnitNo    int
	Attempt   int
	Outcome   types.AttemptState
	Error     string
}

// FinishTaskResponse is empty; errors carry the failure reason.
type FinishTaskResponse struct{}

// HeartbeatRequest reports a worker's liveness and current slot usage.
type HeartbeatRequest struct {
	WorkerID  string
	Endpoint  string
	Slots     int
	UsedSlots int
}

// HeartbeatResponse tells the worker who the current Raft leader is, so it
// can redial if it was talking to a follower.
type HeartbeatResponse struct {
	LeaderEndpoint string
}

// CancelAttemptRequest asks a worker to abandon a losing duplicate
// attempt; sent by the Stage Controller's end-game, never by the CLI.
type CancelAttemptRequest struct {
	JobID     string
	NodeIndex int
	UnitNo    int
	Attempt   int
}

// CancelAttemptResponse is empty; errors carry the failure reason.
type CancelAttemptResponse struct{}

// QueryAttemptRequest asks a worker whether it still considers itself on
// (unitNo, attemptNo); sent by the liveness monitor.
type QueryAttemptRequest struct {
	JobID     string
	NodeIndex int
	UnitNo    int
	Attempt   int
}

// QueryAttemptResponse reports the worker's own view of the attempt.
type QueryAttemptResponse struct {
	OnUnit bool
}
