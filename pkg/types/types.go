// Package types defines the shared data model for jobs, DAG nodes, work
// units and attempts that flow between the coordinator and workers.
package types

import "time"

// Job is a single submitted MapReduce-style computation: a DAG of Nodes plus
// bookkeeping the coordinator needs to track it to completion.
type Job struct {
	ID        string
	Name      string
	Priority  int
	Nodes     []*Node
	State     JobState
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
	// DeadAt is set when the job reaches a terminal state; pkg/reconciler
	// evicts the job from the dead-table once this TTL has passed.
	DeadAt time.Time
	Error  string
}

// JobState is the lifecycle state of a Job.
type JobState string

const (
	JobStatePending   JobState = "pending"
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
	JobStateKilled    JobState = "killed"
)

// Terminal reports whether the state admits no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateCompleted, JobStateFailed, JobStateKilled:
		return true
	default:
		return false
	}
}

// Node is one stage in a Job's DAG: a map or reduce phase with a resource
// layout describing how its input splits into work units.
type Node struct {
	Index            int
	Name             string
	Kind             NodeKind
	InputFormat      InputFormat
	PartitionScheme  PartitionScheme
	PartitionCount   int
	InputPaths       []string
	OutputPath       string
	Command          []string
	Next             []int // downstream node indices
	Pre              []int // upstream node indices
	TotalUnits       int
	CompletedUnits   int
	FailedAttempts   int
	Resource         ResourceKind
	BlockSizeBytes   int64 // for ResourceKindBlock
	LinesPerUnit     int   // for ResourceKindNLine
	Combine          bool  // run the optional local combiner before partitioning
}

// NodeKind distinguishes map stages from reduce stages.
type NodeKind string

const (
	NodeKindMap    NodeKind = "map"
	NodeKindReduce NodeKind = "reduce"
)

// InputFormat names how a Node's input is framed for splitting.
type InputFormat string

const (
	InputFormatPlainText InputFormat = "plain"
	InputFormatSortedFile InputFormat = "sorted_file"
)

// PartitionScheme names how a map Node routes output keys to reducers.
type PartitionScheme string

const (
	PartitionSchemeKeyField PartitionScheme = "key_field"
	PartitionSchemeIntHash  PartitionScheme = "int_hash"
)

// ResourceKind is the tagged-union discriminant for a Node's Resource
// Manager: which splitting strategy governs its work units.
type ResourceKind string

const (
	ResourceKindID    ResourceKind = "id"
	ResourceKindBlock ResourceKind = "block"
	ResourceKindNLine ResourceKind = "nline"
)

// WorkUnit is one schedulable slice of a Node's input.
type WorkUnit struct {
	No         int
	NodeIndex  int
	State      UnitState
	Attempts   []*Attempt
	// Block/NLine resource fields; zero for ResourceKindID.
	InputPath  string
	ByteOffset int64
	ByteLength int64
	LineStart  int64
	LineCount  int64
}

// UnitState is the lifecycle state of a WorkUnit.
type UnitState string

const (
	UnitStatePending   UnitState = "pending"
	UnitStateRunning   UnitState = "running"
	UnitStateDone      UnitState = "done"
	UnitStateCanceled  UnitState = "canceled"
)

// Attempt is one worker's execution of a WorkUnit.
type Attempt struct {
	No          int
	WorkerID    string
	Endpoint    string
	State       AttemptState
	AllocatedAt time.Time
	FinishedAt  time.Time
	Duration    time.Duration
	Error       string
}

// AttemptState is the lifecycle state of an Attempt.
type AttemptState string

const (
	AttemptStateAllocated AttemptState = "allocated"
	AttemptStateRunning   AttemptState = "running"
	AttemptStateDone      AttemptState = "done"
	AttemptStateFailed    AttemptState = "failed"
	AttemptStateCanceled  AttemptState = "canceled"
	AttemptStateKilled    AttemptState = "killed"
)

// WorkerInfo is the coordinator's view of one roster entry: a worker
// process the Stage Controller can assign work units to and must query
// during liveness checks.
type WorkerInfo struct {
	ID            string
	Endpoint      string
	Slots         int
	UsedSlots     int
	LastHeartbeat time.Time
}

// Alive reports whether the worker has heartbeat within the given window.
func (w *WorkerInfo) Alive(window time.Duration) bool {
	return time.Since(w.LastHeartbeat) < window
}
