package store

import (
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// Store is the coordinator's durable state interface, implemented by
// BoltStore.
type Store interface {
	// Jobs
	CreateJob(job *types.Job) error
	GetJob(id string) (*types.Job, error)
	ListJobs() ([]*types.Job, error)
	UpdateJob(job *types.Job) error
	DeleteJob(id string) error

	// Worker roster
	UpsertWorker(w *types.WorkerInfo) error
	GetWorker(id string) (*types.WorkerInfo, error)
	ListWorkers() ([]*types.WorkerInfo, error)
	DeleteWorker(id string) error

	// Certificate authority
	SaveCA(data []byte) error
	GetCA() ([]byte, error)

	// Checkpoints: opaque per-job blobs the Raft FSM snapshots and
	// restores (stage/resource manager state), opaque to Store itself.
	SaveCheckpoint(jobID string, data []byte) error
	GetCheckpoint(jobID string) ([]byte, error)
	DeleteCheckpoint(jobID string) error

	Close() error
}
