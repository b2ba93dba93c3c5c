package coordgroup

import (
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/hashicorp/raft"

	"github.com/shuttle-mr/shuttle/pkg/store"
	"github.com/shuttle-mr/shuttle/pkg/types"
)

// FSM implements the Raft finite state machine backing the coordinator
// group's durable state: the job roster, the worker roster, the CA, and
// per-job checkpoints. Every mutation to that state goes through Apply so
// all coordinator group members converge on the same log.
type FSM struct {
	mu    sync.RWMutex
	store store.Store
}

// NewFSM creates a new FSM over store.
func NewFSM(st store.Store) *FSM {
	return &FSM{store: st}
}

// Command represents a state change operation in the Raft log.
type Command struct {
	Op   string          `json:"op"`
	Data json.RawMessage `json:"data"`
}

const (
	opCreateJob        = "create_job"
	opUpdateJob        = "update_job"
	opDeleteJob        = "delete_job"
	opUpsertWorker     = "upsert_worker"
	opDeleteWorker     = "delete_worker"
	opSaveCA           = "save_ca"
	opSaveCheckpoint   = "save_checkpoint"
	opDeleteCheckpoint = "delete_checkpoint"
)

// checkpointPayload pairs a job ID with the opaque checkpoint blob, since
// store.SaveCheckpoint takes both as separate arguments.
type checkpointPayload struct {
	JobID string
	Data  []byte
}

// Apply applies one committed Raft log entry to the FSM.
func (f *FSM) Apply(log *raft.Log) interface{} {
	var cmd Command
	if err := json.Unmarshal(log.Data, &cmd); err != nil {
		return fmt.Errorf("unmarshal command: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	switch cmd.Op {
	case opCreateJob:
		var job types.Job
		if err := json.Unmarshal(cmd.Data, &job); err != nil {
			return err
		}
		return f.store.CreateJob(&job)

	case opUpdateJob:
		var job types.Job
		if err := json.Unmarshal(cmd.Data, &job); err != nil {
			return err
		}
		return f.store.UpdateJob(&job)

	case opDeleteJob:
		var jobID string
		if err := json.Unmarshal(cmd.Data, &jobID); err != nil {
			return err
		}
		return f.store.DeleteJob(jobID)

	case opUpsertWorker:
		var worker types.WorkerInfo
		if err := json.Unmarshal(cmd.Data, &worker); err != nil {
			return err
		}
		return f.store.UpsertWorker(&worker)

	case opDeleteWorker:
		var workerID string
		if err := json.Unmarshal(cmd.Data, &workerID); err != nil {
			return err
		}
		return f.store.DeleteWorker(workerID)

	case opSaveCA:
		var data []byte
		if err := json.Unmarshal(cmd.Data, &data); err != nil {
			return err
		}
		return f.store.SaveCA(data)

	case opSaveCheckpoint:
		var payload checkpointPayload
		if err := json.Unmarshal(cmd.Data, &payload); err != nil {
			return err
		}
		return f.store.SaveCheckpoint(payload.JobID, payload.Data)

	case opDeleteCheckpoint:
		var jobID string
		if err := json.Unmarshal(cmd.Data, &jobID); err != nil {
			return err
		}
		return f.store.DeleteCheckpoint(jobID)

	default:
		return fmt.Errorf("unknown command: %s", cmd.Op)
	}
}

// Snapshot captures a point-in-time copy of every job and worker roster
// entry, for Raft's periodic log compaction.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	jobs, err := f.store.ListJobs()
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	workers, err := f.store.ListWorkers()
	if err != nil {
		return nil, fmt.Errorf("list workers: %w", err)
	}

	ca, err := f.store.GetCA()
	if err != nil {
		// CA may not exist yet on a freshly bootstrapped cluster.
		ca = nil
	}

	checkpoints := make(map[string][]byte, len(jobs))
	for _, job := range jobs {
		if data, err := f.store.GetCheckpoint(job.ID); err == nil {
			checkpoints[job.ID] = data
		}
	}

	return &Snapshot{
		Jobs:        jobs,
		Workers:     workers,
		CA:          ca,
		Checkpoints: checkpoints,
	}, nil
}

// Restore replaces the FSM's durable state with the contents of a snapshot,
// on node restart or on a follower catching up via snapshot install.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	var snap Snapshot
	if err := json.NewDecoder(rc).Decode(&snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	for _, job := range snap.Jobs {
		if err := f.store.CreateJob(job); err != nil {
			return fmt.Errorf("restore job %s: %w", job.ID, err)
		}
	}

	for _, worker := range snap.Workers {
		if err := f.store.UpsertWorker(worker); err != nil {
			return fmt.Errorf("restore worker %s: %w", worker.ID, err)
		}
	}

	if len(snap.CA) > 0 {
		if err := f.store.SaveCA(snap.CA); err != nil {
			return fmt.Errorf("restore CA: %w", err)
		}
	}

	for jobID, data := range snap.Checkpoints {
		if err := f.store.SaveCheckpoint(jobID, data); err != nil {
			return fmt.Errorf("restore checkpoint %s: %w", jobID, err)
		}
	}

	return nil
}

// Snapshot is the JSON-encoded point-in-time copy of the FSM's state that
// Raft's snapshot store persists and ships to lagging followers.
type Snapshot struct {
	Jobs        []*types.Job
	Workers     []*types.WorkerInfo
	CA          []byte
	Checkpoints map[string][]byte
}

// Persist writes the snapshot to sink, the shape raft.FSMSnapshot requires.
func (s *Snapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		if err := json.NewEncoder(sink).Encode(s); err != nil {
			return err
		}
		return sink.Close()
	}()

	if err != nil {
		sink.Cancel()
	}

	return err
}

// Release is a no-op; the snapshot holds no external resources.
func (s *Snapshot) Release() {}
