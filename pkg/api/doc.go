/*
Package api implements the Coordinator gRPC service: the leader's control
plane surface for job submission, the worker pull loop, and cluster
introspection. It is built over pkg/rpc's hand-registered JSON codec
rather than generated protobuf, with built-in mTLS support once the
coordinator has provisioned itself a certificate.

# Architecture

	┌──────────────────── CLIENT (CLI/Worker) ───────────────────┐
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │         pkg/rpc client (mTLS once issued)      │          │
	│  └──────────────────┬───────────────────────────┘          │
	└─────────────────────┼────────────────────────────────────┘
	                      │ gRPC, JSON wire codec
	                      │
	┌─────────────────────▼──── COORDINATOR NODE ────────────────┐
	│                                                              │
	│  ┌──────────────────────────────────────────────┐          │
	│  │          Server (pkg/api)                     │          │
	│  │  - SubmitJob/ListJobs/ShowJob/KillJob          │          │
	│  │  - AssignTask/FinishTask/Heartbeat             │          │
	│  │  - mTLS authentication                        │          │
	│  └──────────────────┬───────────────────────────┘          │
	│                     │                                        │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │         pkg/coordgroup.Manager                │          │
	│  │  - Proposes Raft commands                     │          │
	│  │  - Publishes leadership to pkg/nameservice     │          │
	│  └────────────────────────────────────────────────┘         │
	│                     │                                        │
	│  ┌──────────────────▼───────────────────────────┐          │
	│  │   pkg/job.Tracker (one per resident job)      │          │
	│  │  - one pkg/stage.Controller per DAG node       │          │
	│  └────────────────────────────────────────────────┘         │
	└──────────────────────────────────────────────────────────┘

# RPC Methods

The Coordinator service (pkg/rpc.CoordinatorServer) exposes:

  - SubmitJob: validate and persist a new Job, build its Trackers, start it
  - ListJobs: the full job roster
  - ShowJob: one Job plus live per-node progress, when its tracker is resident
  - KillJob: terminate a resident job's tracker
  - AssignTask: a worker's pull for its next unit of work on one DAG node
  - FinishTask: an attempt's outcome, after which the job snapshot is saved as a checkpoint
  - Heartbeat: a worker's liveness/slot report, answered with the current leader

A submitted job is kept resident as a job.Tracker from SubmitJob until it
reaches a terminal state, when the tracker is dropped. KillJob/AssignTask/
FinishTask all require the tracker still be in memory, since that is where
live stage.Controller state (pending/running work units, attempt tables)
lives; ShowJob without a tracker returns the stored Job record with no
per-node progress. Trackers are built only by SubmitJob on the coordinator
that accepted the job. The checkpoints FinishTask saves are not read back:
a coordinator that restarts or takes over leadership has no tracker for a
job that was already running, and does not resume it.

# Usage

Creating and starting the server:

	import (
		"github.com/shuttle-mr/shuttle/pkg/api"
		"github.com/shuttle-mr/shuttle/pkg/coordgroup"
	)

	mgr, err := coordgroup.NewManager(cfg)
	if err != nil {
		log.Fatal(err)
	}

	srv, err := api.NewServer(mgr, registry, fs)
	if err != nil {
		log.Fatal(err)
	}

	err = srv.Start("0.0.0.0:7070")
	if err != nil {
		log.Fatal(err)
	}

# mTLS Authentication

Certificate Types:
  - Coordinator certificates: issued by the cluster CA at Bootstrap/initializeCA
  - Worker certificates: issued once Heartbeat-time cert issuance lands
  - CLI certificates: provisioned out-of-band (see pkg/client)

The server falls back to plaintext only until the coordinator's own
certificate exists on disk (first boot, ahead of Bootstrap); once it does,
every connection negotiates TLS 1.3 with RequestClientCert.

# Leader Forwarding

SubmitJob, KillJob, AssignTask and FinishTask all require the Raft leader:
a follower returns shuttleerr.ErrNotLeader, wrapped with the leader's RPC
endpoint (resolved via pkg/nameservice) when one is known. ListJobs and
ShowJob serve from any replica's local store.

# See Also

  - pkg/coordgroup for the Raft-backed state machine requests are applied against
  - pkg/rpc for the wire types and hand-built ServiceDesc
  - pkg/job and pkg/stage for the per-job scheduling this service drives
  - pkg/client for the Go client implementation
  - pkg/security for mTLS setup
*/
package api
