/*
Package coordgroup implements the coordinator group: the Raft quorum that
replicates the job roster, the worker roster, and the cluster CA, and
elects the single coordinator that runs the Job Tracker for each submitted
job.

# Architecture

	┌────────────────── COORDINATOR NODE ──────────────────┐
	│  pkg/api (Coordinator gRPC service)                   │
	│        │                                              │
	│        ▼                                              │
	│  Manager — CreateJob/UpdateJob/UpsertWorker/...        │
	│        │                                              │
	│        ▼                                              │
	│  hashicorp/raft — leader election, log replication     │
	│        │                                              │
	│        ▼                                              │
	│  FSM — Apply/Snapshot/Restore over pkg/store.Store     │
	└────────────────────────────────────────────────────────┘

Every mutation to job, worker, CA or checkpoint state goes through
Manager.apply, which replicates a Command through Raft before the FSM
commits it locally. Reads (GetJob, ListWorkers, ...) go straight to the
local store, since only the current state machine output needs to be
consistent, not every read.

# Leadership

Manager subscribes to Raft's leadership-change notifications and publishes
the winner's RPC endpoint to a pkg/nameservice.Registry, so workers and the
CLI dialing a static seed list can find whoever is presently in charge
without their own Raft participation.

# See Also

  - pkg/store - the durable state FSM.Apply mutates
  - pkg/nameservice - leader endpoint publication/resolution
  - pkg/job - the Job Tracker a coordinator runs once it holds leadership
  - pkg/api - the Coordinator gRPC service built on top of Manager
*/
package coordgroup
